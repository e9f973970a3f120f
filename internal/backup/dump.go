package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/mariadb"
	"github.com/edvin/mariaback/internal/metrics"
	"github.com/edvin/mariaback/internal/notify"
	"github.com/edvin/mariaback/internal/offsite"
	"github.com/edvin/mariaback/internal/runner"
)

// Dumper runs the backup pipeline for one unit at a time.
type Dumper struct {
	logger    zerolog.Logger
	runner    runner.Runner
	retention *Retention
	notifier  notify.Notifier
	uploader  *offsite.Uploader

	root     string
	policies config.Retention
}

// NewDumper creates the dump pipeline. uploader may be nil when offsite
// replication is not configured.
func NewDumper(logger zerolog.Logger, r runner.Runner, root string, policies config.Retention, notifier notify.Notifier, uploader *offsite.Uploader) *Dumper {
	return &Dumper{
		logger:    logger.With().Str("component", "dumper").Logger(),
		runner:    r,
		retention: NewRetention(logger),
		notifier:  notifier,
		uploader:  uploader,
		root:      root,
		policies:  policies,
	}
}

// Run dumps one unit's database into a fresh artifact, applies retention and
// emits exactly one notification. It returns the artifact path on success.
// A failed run leaves no partial artifact behind.
func (d *Dumper) Run(ctx context.Context, u mariadb.Unit) (string, error) {
	log := d.logger.With().
		Str("run_id", uuid.New().String()[:8]).
		Str("host", u.Host).
		Str("database", u.Database).
		Logger()

	path, err := d.dump(ctx, log, u)
	if err != nil {
		metrics.BackupsTotal.WithLabelValues(u.Host, u.Database, "failure").Inc()
		log.Error().Err(err).Msg("backup failed")
		d.notifier.BackupFailed(ctx, u.Host, u.Database, err)
		return "", err
	}

	metrics.BackupsTotal.WithLabelValues(u.Host, u.Database, "success").Inc()
	metrics.LastSuccessTimestamp.WithLabelValues(u.Host, u.Database).SetToCurrentTime()
	d.notifier.BackupSucceeded(ctx, u.Host, u.Database)

	// Retention and replication run after the success is recorded: neither
	// can downgrade a finished backup.
	d.retention.Prune(filepath.Dir(path), u.Database, d.policies.PolicyFor(u.Database))

	if d.uploader != nil {
		if err := d.uploader.Upload(ctx, u.Host, path); err != nil {
			log.Warn().Err(err).Msg("offsite upload failed")
		}
	}

	return path, nil
}

func (d *Dumper) dump(ctx context.Context, log zerolog.Logger, u mariadb.Unit) (string, error) {
	if err := mariadb.ValidateName(u.Database); err != nil {
		return "", err
	}

	dir := filepath.Join(d.root, u.Host)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	now := time.Now()
	name := FileName(u.Database, now, NextSequence(dir, u.Database, now))
	path := filepath.Join(dir, name)

	log.Info().Str("artifact", name).Dur("timeout", u.Timeout).Msg("starting backup")
	start := time.Now()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}

	runErr := d.runner.RunPipeline(ctx, mariadb.DumpSpec(u), mariadb.GzipSpec(), f, u.Timeout)
	if closeErr := f.Close(); runErr == nil && closeErr != nil {
		runErr = fmt.Errorf("close artifact: %w", closeErr)
	}

	duration := time.Since(start)
	metrics.BackupDuration.WithLabelValues(u.Host, u.Database).Observe(duration.Seconds())

	if runErr != nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("artifact", name).Msg("removing partial artifact failed")
		}
		return "", classifyDumpError(runErr)
	}

	if info, err := os.Stat(path); err == nil {
		metrics.BackupSizeBytes.WithLabelValues(u.Host, u.Database).Set(float64(info.Size()))
		log.Info().Str("artifact", name).Int64("size_bytes", info.Size()).Dur("duration", duration).Msg("backup completed")
	} else {
		log.Info().Str("artifact", name).Dur("duration", duration).Msg("backup completed")
	}

	return path, nil
}

// classifyDumpError maps pipeline failures onto the dump error taxonomy.
func classifyDumpError(err error) error {
	if errors.Is(err, runner.ErrTimeout) {
		return ErrTimeout
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrToolMissing, mariadb.ToolHint)
	}

	var stage *runner.StageError
	if errors.As(err, &stage) {
		if stage.Stage == runner.StageProducer {
			msg := strings.TrimSpace(stage.Stderr)
			if msg == "" {
				msg = stage.Err.Error()
			}
			return &ProducerError{Stderr: msg}
		}
		return fmt.Errorf("%w: %v", ErrCompressionFailed, stage.Err)
	}
	return err
}
