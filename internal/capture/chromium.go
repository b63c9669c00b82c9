// Package capture renders the printable month calendar to a PNG poster with
// headless Chromium.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "regattacal/internal/log"
)

// Default poster parameters: A4 portrait at 150 dpi.
const (
	DefaultWidth      = 1240
	DefaultHeight     = 1754
	DefaultTimeoutSec = 30
)

// ReadySelector is set by the /calendar page once the grid is rendered.
const ReadySelector = `[data-ready="true"]`

// Options defines parameters for a month poster capture.
type Options struct {
	// BaseURL is the running server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// Month is YYYY-MM. Empty selects the server's default month.
	Month string

	// OutputPath is where the PNG will be written. Parent directories are
	// created as needed.
	OutputPath string

	// Width and Height are the viewport in pixels. Zero selects the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero selects DefaultTimeoutSec.
	Timeout time.Duration

	// Username and Password are sent as HTTP Basic Auth when set.
	Username string
	Password string
}

// PageURL is the /calendar page for month on base.
func PageURL(base, month string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", errors.New("capture: base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/calendar")
	if err != nil {
		return "", fmt.Errorf("capture: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("capture: unsupported scheme %q", u.Scheme)
	}
	if month != "" {
		q := u.Query()
		q.Set("month", month)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (o *Options) defaults() error {
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return nil
}

// CaptureMonthPNG launches a headless Chromium via chromedp, opens the
// /calendar page for opts.Month, waits for ReadySelector and writes a full
// page screenshot to opts.OutputPath.
func CaptureMonthPNG(parentCtx context.Context, opts Options) error {
	if err := opts.defaults(); err != nil {
		return err
	}
	target, err := PageURL(opts.BaseURL, opts.Month)
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{network.Enable()}
	if opts.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}))
	}
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let web fonts settle before the screenshot.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	appLog.Info("capturing calendar poster", "url", target, "width", opts.Width, "height", opts.Height)
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if dir := filepath.Dir(opts.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("capture: creating output dir: %w", err)
		}
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("calendar poster written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}
