// Package mariadb builds the external tool invocations for dumping,
// restoring and inspecting MariaDB servers.
package mariadb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/runner"
)

// External tools. Servers shipping only the mysql-compatible symlinks
// resolve these names the same.
const (
	DumpTool   = "mariadb-dump"
	ClientTool = "mariadb"
)

// ToolHint is appended to missing-tool errors.
const ToolHint = "install mariadb-client or set container to route through docker exec"

// validNameRe matches only alphanumeric characters and underscores. This
// keeps database names safe in file paths and unquoted SQL positions.
var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateName checks that a database name contains only safe characters.
func ValidateName(name string) error {
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("invalid database name %q: only alphanumeric characters and underscores allowed", name)
	}
	return nil
}

// Unit identifies one database on one configured server together with the
// connection settings a dump or restore needs.
type Unit struct {
	Host      string
	Port      int
	User      string
	Password  string
	Container string
	Database  string
	Timeout   time.Duration
}

// UnitFor derives a Unit from a server entry and a database entry, honoring
// the per-database timeout override.
func UnitFor(srv config.Server, db config.DatabaseSpec) Unit {
	timeout := srv.Timeout()
	if db.TimeoutSecs > 0 {
		timeout = time.Duration(db.TimeoutSecs) * time.Second
	}
	return Unit{
		Host:      srv.Host,
		Port:      srv.Port,
		User:      srv.User,
		Password:  srv.Password,
		Container: srv.Container,
		Database:  db.Name,
		Timeout:   timeout,
	}
}

// wrap routes a command through docker exec when the unit is containerized.
// The credential travels in the child's environment either way, never in the
// host's argv.
func wrap(u Unit, tool string, args []string) runner.Spec {
	if u.Container != "" {
		dockerArgs := append([]string{"exec", "-i", "-e", "MYSQL_PWD=" + u.Password, u.Container, tool}, args...)
		return runner.Spec{Path: "docker", Args: dockerArgs}
	}
	return runner.Spec{Path: tool, Args: args, Env: []string{"MYSQL_PWD=" + u.Password}}
}

func connArgs(u Unit) []string {
	return []string{"-h", u.Host, "-P", strconv.Itoa(u.Port), "-u", u.User}
}

// DumpSpec builds the producer command for a logical dump of the unit's
// database.
func DumpSpec(u Unit) runner.Spec {
	return wrap(u, DumpTool, append(connArgs(u), u.Database))
}

// ClientSpec builds the import client a restore stream feeds into.
func ClientSpec(u Unit) runner.Spec {
	return wrap(u, ClientTool, append(connArgs(u), u.Database))
}

// QuerySpec builds a one-shot batch-mode client invocation running sql,
// against the unit's database when one is set.
func QuerySpec(u Unit, sql string) runner.Spec {
	args := append(connArgs(u), "-N", "-e", sql)
	if u.Database != "" {
		args = append(args, u.Database)
	}
	return wrap(u, ClientTool, args)
}

// GzipSpec builds the compressor consuming the dump stream.
func GzipSpec() runner.Spec {
	return runner.Spec{Path: "gzip", Args: []string{"-c"}}
}

// GunzipSpec builds the decompressor producing the restore stream. Artifacts
// live on the backup host, so this never routes through a container.
func GunzipSpec(path string) runner.Spec {
	return runner.Spec{Path: "gzip", Args: []string{"-dc", path}}
}

// DropTablesSQL builds one statement batch dropping the given tables with
// foreign key checks suspended for the duration.
func DropTablesSQL(tables []string) string {
	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = "`" + t + "`"
	}
	return "SET FOREIGN_KEY_CHECKS=0; DROP TABLE IF EXISTS " + strings.Join(quoted, ", ") + "; SET FOREIGN_KEY_CHECKS=1;"
}
