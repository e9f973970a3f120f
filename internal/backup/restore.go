package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/mariadb"
	"github.com/edvin/mariaback/internal/metrics"
	"github.com/edvin/mariaback/internal/notify"
	"github.com/edvin/mariaback/internal/runner"
)

// Restorer streams artifacts back into their database.
type Restorer struct {
	logger   zerolog.Logger
	runner   runner.Runner
	notifier notify.Notifier
	root     string
	servers  []config.Server
}

// NewRestorer creates the restore pipeline.
func NewRestorer(logger zerolog.Logger, r runner.Runner, root string, servers []config.Server, notifier notify.Notifier) *Restorer {
	return &Restorer{
		logger:   logger.With().Str("component", "restorer").Logger(),
		runner:   r,
		notifier: notifier,
		root:     root,
		servers:  servers,
	}
}

// ParseRef splits a <host>/<artifact> reference and normalizes the artifact
// name, appending the .sql.gz suffix when absent.
func ParseRef(ref string) (host, name string, err error) {
	host, name, ok := strings.Cut(ref, "/")
	if !ok || host == "" || name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", "", fmt.Errorf("%w: %q (want host/artifact)", ErrInvalidReference, ref)
	}
	if !strings.HasSuffix(name, Suffix) {
		name += Suffix
	}
	return host, name, nil
}

// DatabaseFromName derives the restore target database from an artifact
// name: the stem segment before the first dash. Database names containing
// dashes are not representable in the artifact grammar, so the split is
// unambiguous.
func DatabaseFromName(name string) string {
	stem := strings.TrimSuffix(name, Suffix)
	db, _, _ := strings.Cut(stem, "-")
	return db
}

// Target is a resolved restore destination.
type Target struct {
	Unit     mariadb.Unit
	Artifact string
	Name     string
}

// Resolve validates a reference against configuration and storage without
// touching the database, so callers can confirm before running. The host
// must match a server entry before the artifact is even looked up.
func (r *Restorer) Resolve(ref string) (*Target, error) {
	host, name, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	var srv *config.Server
	for i := range r.servers {
		if r.servers[i].Host == host {
			srv = &r.servers[i]
			break
		}
	}
	if srv == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, host)
	}

	path := filepath.Join(r.root, host, name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("backup not found: %s", path)
	}

	u := mariadb.UnitFor(*srv, config.DatabaseSpec{Name: DatabaseFromName(name)})
	return &Target{Unit: u, Artifact: path, Name: name}, nil
}

// Run restores a reference, optionally dropping the destination's existing
// tables first.
func (r *Restorer) Run(ctx context.Context, ref string, clean bool) error {
	target, err := r.Resolve(ref)
	if err != nil {
		return err
	}
	return r.RunTarget(ctx, target, clean)
}

// RunTarget restores an already resolved target and emits exactly one
// notification. The stream is bounded by process exit, not a timeout.
func (r *Restorer) RunTarget(ctx context.Context, target *Target, clean bool) error {
	u := target.Unit
	log := r.logger.With().Str("host", u.Host).Str("database", u.Database).Str("artifact", target.Name).Logger()

	if clean {
		r.dropTables(ctx, log, u)
	}

	log.Info().Msg("starting restore")

	err := r.runner.RunPipeline(ctx, mariadb.GunzipSpec(target.Artifact), mariadb.ClientSpec(u), io.Discard, 0)
	if err != nil {
		err = classifyRestoreError(err)
		metrics.RestoresTotal.WithLabelValues(u.Host, u.Database, "failure").Inc()
		log.Error().Err(err).Msg("restore failed")
		r.notifier.RestoreFailed(ctx, u.Host, u.Database, err)
		return err
	}

	metrics.RestoresTotal.WithLabelValues(u.Host, u.Database, "success").Inc()
	log.Info().Msg("restore completed")
	r.notifier.RestoreSucceeded(ctx, u.Host, u.Database)
	return nil
}

// dropTables clears the destination schema. Failures here are warnings: the
// import itself decides whether pre-existing objects are fatal.
func (r *Restorer) dropTables(ctx context.Context, log zerolog.Logger, u mariadb.Unit) {
	tables, err := mariadb.ListTables(ctx, r.runner, u)
	if err != nil {
		log.Warn().Err(err).Msg("clean restore: listing tables failed, continuing")
		return
	}
	if len(tables) == 0 {
		return
	}

	log.Info().Int("tables", len(tables)).Msg("dropping existing tables")
	if _, err := r.runner.Output(ctx, mariadb.QuerySpec(u, mariadb.DropTablesSQL(tables))); err != nil {
		log.Warn().Err(err).Msg("clean restore: dropping tables failed, continuing")
	}
}

// classifyRestoreError maps pipeline failures onto the restore taxonomy.
func classifyRestoreError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrToolMissing, mariadb.ToolHint)
	}

	var stage *runner.StageError
	if errors.As(err, &stage) && stage.Stage == runner.StageConsumer {
		msg := strings.TrimSpace(stage.Stderr)
		if msg == "" {
			msg = stage.Err.Error()
		}
		return &ClientError{Stderr: msg}
	}
	return err
}
