package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/mariaback/internal/api"
	"github.com/edvin/mariaback/internal/scheduler"
)

func newDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the backup scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(a.logger, a.runner, a.dumper, a.cfg)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				sched.Run(ctx)
				return nil
			})

			if addr := a.cfg.Daemon.Listen; addr != "" {
				srv := api.NewServer(a.logger, a.cfg.Storage.Path, sched)
				g.Go(func() error {
					return srv.Serve(ctx, addr)
				})
			}

			a.logger.Info().Int("servers", len(a.cfg.Servers)).Msg("backup daemon started")
			return g.Wait()
		},
	}
}
