package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "regattacal/internal/log"
	"regattacal/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the events API, iCalendar feed and calendar page",
		Long: `Loads the config (writing a default one on first run), refreshes the
events sheet once, schedules further refreshes on the configured cron spec and
serves HTTP until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(true, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			// --listen overrides the config file.
			if listen != "" {
				cfg.Listen = listen
			}

			appLog.Info("regattacal starting",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"refresh", cfg.RefreshCron,
				"events_url", appLog.RedactURL(cfg.Events.URL),
				"date_order", cfg.DateOrder,
				"series", len(cfg.Series),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := newFeed(cfg)
			initCtx, cancel := context.WithTimeout(ctx, 2*cfg.FetchTimeout)
			if err := svc.Refresh(initCtx); err != nil {
				// Keep serving; the schedule will try again.
				appLog.Error("initial refresh failed", err)
			}
			cancel()

			if err := svc.Start(cfg.RefreshCron, cfg.Location(), 2*cfg.FetchTimeout); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				svc.Stop(stopCtx)
			}()

			var competitors web.Roster
			if l := newRoster(cfg); l != nil {
				competitors = l
			}

			err = web.NewServer(cfg, svc, competitors).Run(ctx)
			appLog.Info("regattacal exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
