package mariadb

import (
	"context"
	"fmt"
	"strings"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/runner"
)

// systemSchemas are never part of wildcard expansion.
var systemSchemas = map[string]bool{
	"information_schema": true,
	"performance_schema": true,
	"mysql":              true,
	"sys":                true,
}

// ListDatabases returns the server's schemas in server order, excluding the
// system ones.
func ListDatabases(ctx context.Context, r runner.Runner, srv config.Server) ([]string, error) {
	u := Unit{
		Host:      srv.Host,
		Port:      srv.Port,
		User:      srv.User,
		Password:  srv.Password,
		Container: srv.Container,
	}

	out, err := r.Output(ctx, QuerySpec(u, "SHOW DATABASES"))
	if err != nil {
		return nil, fmt.Errorf("list databases on %s: %w", srv.Host, err)
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		name := strings.TrimSpace(line)
		if name == "" || systemSchemas[name] {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// ListTables enumerates the tables of the unit's database.
func ListTables(ctx context.Context, r runner.Runner, u Unit) ([]string, error) {
	out, err := r.Output(ctx, QuerySpec(u, "SHOW TABLES"))
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", u.Database, err)
	}

	var tables []string
	for _, line := range strings.Split(string(out), "\n") {
		name := strings.TrimSpace(line)
		if name != "" {
			tables = append(tables, name)
		}
	}
	return tables, nil
}
