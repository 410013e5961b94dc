// Package capture renders the planner page in headless Chromium and
// returns it as a PNG, for previews and sharing.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"monthplan/internal/config"
	appLog "monthplan/internal/log"
)

const (
	DefaultWidth   = 1280
	DefaultHeight  = 900
	DefaultTimeout = 30 * time.Second

	// readySelector is set by the page once the first view is drawn.
	readySelector = `[data-ready="true"]`
)

// Options defines one screenshot.
type Options struct {
	// URL of the planner page, e.g. "http://127.0.0.1:8080/".
	URL string
	// OutputPath is only used by SnapshotToFile.
	OutputPath string

	Width  int
	Height int

	// Timeout bounds the whole browser session.
	Timeout time.Duration
}

// OptionsFromConfig maps the snapshot section of the config file.
func OptionsFromConfig(c config.SnapshotConfig) Options {
	return Options{
		URL:        c.URL,
		OutputPath: c.Output,
		Width:      c.Width,
		Height:     c.Height,
		Timeout:    time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// Snapshot navigates to opts.URL, waits for the page's data-ready marker
// and returns a full-page PNG.
func Snapshot(parent context.Context, opts Options) ([]byte, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	err := chromedp.Run(ctx, chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// let the last paint settle
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	})
	if err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	appLog.Info("snapshot captured", "bytes", len(png), "took", time.Since(started).Round(time.Millisecond))
	return png, nil
}

// SnapshotToFile captures and writes the PNG to opts.OutputPath.
func SnapshotToFile(ctx context.Context, opts Options) error {
	if opts.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	png, err := Snapshot(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
