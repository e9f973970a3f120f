// Package cli wires the mariaback commands.
package cli

import (
	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/backup"
	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/logging"
	"github.com/edvin/mariaback/internal/notify"
	"github.com/edvin/mariaback/internal/offsite"
	"github.com/edvin/mariaback/internal/runner"
)

// app is the shared component graph behind every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	runner   *runner.ExecRunner
	dumper   *backup.Dumper
	restorer *backup.Restorer
}

// newApp loads configuration and builds the graph. console selects
// human-readable log output.
func newApp(console bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.Log, console)
	r := runner.NewExecRunner(logger)
	notifier := notify.NewWebhook(logger, cfg.Notifications)
	uploader := offsite.NewUploader(logger, cfg.Offsite)
	dumper := backup.NewDumper(logger, r, cfg.Storage.Path, cfg.Retention, notifier, uploader)
	restorer := backup.NewRestorer(logger, r, cfg.Storage.Path, cfg.Servers, notifier)

	return &app{
		cfg:      cfg,
		logger:   logger,
		runner:   r,
		dumper:   dumper,
		restorer: restorer,
	}, nil
}
