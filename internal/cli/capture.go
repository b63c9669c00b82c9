package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"regattacal/internal/calendar"
	"regattacal/internal/capture"
)

func newCaptureCmd(root *rootOptions) *cobra.Command {
	var (
		opts    capture.Options
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Render a month of the calendar to a PNG poster",
		Long: `Opens the /calendar page of a running regattacal server in headless
Chromium and saves a screenshot. The month is clamped to the configured season.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			season := calendar.SeasonFromConfig(cfg.Season)
			opts.Month = calendar.ParseMonth(opts.Month, season).String()
			if opts.BaseURL == "" {
				opts.BaseURL = "http://" + cfg.Listen
			}
			if opts.OutputPath == "" {
				opts.OutputPath = fmt.Sprintf("calendar-%s.png", opts.Month)
			}
			if cfg.BasicAuth != nil {
				opts.Username = cfg.BasicAuth.Username
				opts.Password = cfg.BasicAuth.Password
			}
			opts.Timeout = timeout

			if err := capture.CaptureMonthPNG(cmd.Context(), opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Month, "month", "", "Month to render, YYYY-MM (defaults to the season default)")
	cmd.Flags().StringVar(&opts.OutputPath, "out", "", "PNG output path (defaults to calendar-<month>.png)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "Running server to capture (defaults to http://<listen>)")
	cmd.Flags().IntVar(&opts.Width, "width", capture.DefaultWidth, "Viewport width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", capture.DefaultHeight, "Viewport height in pixels")
	cmd.Flags().DurationVar(&timeout, "timeout", capture.DefaultTimeoutSec*time.Second, "Capture timeout")
	return cmd
}
