package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"monthplan/internal/capture"
	"monthplan/internal/config"
	"monthplan/internal/ics"
	appLog "monthplan/internal/log"
	"monthplan/internal/model"
	"monthplan/internal/planner"
	"monthplan/internal/store"
	"monthplan/internal/tui"
	"monthplan/internal/web"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
	loc *time.Location
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	switch {
	case err != nil && cfg == nil:
		return fmt.Errorf("load config %s: %w", o.configPath, err)
	case err != nil:
		appLog.Warn("could not write default config; continuing with defaults", err, "path", o.configPath)
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("unknown timezone; using local", err, "timezone", cfg.Timezone)
	}
	model.SetTimestampLocation(loc)
	o.cfg, o.loc = cfg, loc
	return nil
}

// openPlanner opens the configured persister and builds the planner for
// today. The returned func releases the persister.
func (o *rootOptions) openPlanner(ctx context.Context) (*planner.Planner, func(), error) {
	p, err := store.NewPersister(o.cfg.Storage.Driver, o.cfg.Storage.Path, o.cfg.Storage.Key)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				appLog.Warn("close storage failed", err)
			}
		}
	}
	st := store.Open(ctx, p)
	return planner.New(st, model.Today(o.loc), o.cfg.Weekday()), release, nil
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner web UI and API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				opts.cfg.Listen = listen
			}
			logStart("serve", opts)
			ctx := cmd.Context()

			p, release, err := opts.openPlanner(ctx)
			if err != nil {
				return err
			}
			defer release()

			importer := ics.NewImporter(ics.NewFetcher(opts.cfg.CacheDir, nil), p.Store(), opts.loc)
			sched, err := newScheduler(ctx, opts.cfg, opts.loc, p, importer)
			if err != nil {
				return err
			}
			sched.Start()
			defer func() {
				<-sched.Stop().Done()
			}()

			// Initial import so a fresh start shows feed tasks right away.
			// It finishes before the storage is released.
			wait := startInitialImport(ctx, p, importer, ics.FeedsFromConfig(opts.cfg.Imports))
			defer wait()

			return web.NewServer(opts.cfg, p, importer).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// newScheduler registers grid rollover and feed refresh. Both run in the
// configured timezone; refreshes stop early once ctx is cancelled.
func newScheduler(ctx context.Context, cfg *config.Config, loc *time.Location, p *planner.Planner, im *ics.Importer) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc(cfg.RolloverCron, func() {
		p.Rollover(model.Today(loc))
	}); err != nil {
		return nil, fmt.Errorf("rollover schedule %q: %w", cfg.RolloverCron, err)
	}

	if feeds := ics.FeedsFromConfig(cfg.Imports); len(feeds) > 0 {
		if _, err := c.AddFunc(cfg.RefreshCron, func() {
			refreshFeeds(ctx, p, im, feeds)
		}); err != nil {
			return nil, fmt.Errorf("refresh schedule %q: %w", cfg.RefreshCron, err)
		}
	}

	// A gesture can postpone rollover; retry every minute until it lands.
	if _, err := c.AddFunc("@every 1m", func() {
		p.Rollover(model.Today(loc))
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// startInitialImport refreshes feeds in the background. The returned func
// blocks until that import is done.
func startInitialImport(ctx context.Context, p *planner.Planner, im *ics.Importer, feeds []ics.Feed) func() {
	var wg sync.WaitGroup
	if len(feeds) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refreshFeeds(ctx, p, im, feeds)
		}()
	}
	return wg.Wait
}

func refreshFeeds(ctx context.Context, p *planner.Planner, im *ics.Importer, feeds []ics.Feed) {
	g := p.Grid()
	if _, err := im.Refresh(ctx, feeds, g.First(), g.Last()); err != nil {
		appLog.Warn("scheduled import finished with errors", err)
	}
}

const tuiLogName = "monthplan.log"

// openLogFile opens the log file the terminal UI writes to, next to the
// task storage.
func openLogFile(cfg *config.Config) (*os.File, error) {
	dir := filepath.Dir(cfg.Storage.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, tuiLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func tuiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the planner in the terminal (mouse required)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stderr would scribble over the alt screen
			lf, err := openLogFile(opts.cfg)
			if err != nil {
				return err
			}
			defer lf.Close()
			fmt.Fprintf(cmd.ErrOrStderr(), "logging to %s\n", lf.Name())
			appLog.SetOutput(lf)
			defer appLog.SetOutput(os.Stderr)

			p, release, err := opts.openPlanner(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			return tui.Run(cmd.Context(), p, opts.loc)
		},
	}
}

func exportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all tasks as an iCalendar file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, release, err := opts.openPlanner(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			body := ics.Export(p.Store().List(), time.Now())
			if out == "" || out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			return os.WriteFile(out, []byte(body), 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "Output file (- for stdout)")
	return cmd
}

func importCmd(opts *rootOptions) *cobra.Command {
	var (
		feedID   string
		category string
	)
	cmd := &cobra.Command{
		Use:   "import [file.ics]",
		Short: "Import an iCalendar file, or refresh the configured feeds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logStart("import", opts)
			ctx := cmd.Context()
			p, release, err := opts.openPlanner(ctx)
			if err != nil {
				return err
			}
			defer release()

			g := p.Grid()
			im := ics.NewImporter(ics.NewFetcher(opts.cfg.CacheDir, nil), p.Store(), opts.loc)

			var results []ics.ImportResult
			if len(args) == 0 {
				results, err = im.Refresh(ctx, ics.FeedsFromConfig(opts.cfg.Imports), g.First(), g.Last())
			} else {
				var res ics.ImportResult
				res, err = importFile(ctx, im, args[0], feedID, category, g.First(), g.Last())
				results = append(results, res)
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d events, %d added, %d updated, %d kept\n", r.Feed, r.Events, r.Added, r.Updated, r.Kept)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&feedID, "id", "file", "Feed id used for stable task ids")
	cmd.Flags().StringVar(&category, "category", "", "Category for events without a matching CATEGORIES value")
	return cmd
}

func importFile(ctx context.Context, im *ics.Importer, path, feedID, category string, from, to model.Date) (ics.ImportResult, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return ics.ImportResult{}, err
	}
	feed := ics.Feed{ID: feedID, Category: model.CategoryToDo}
	if category != "" {
		c, err := model.ParseCategory(category)
		if err != nil {
			return ics.ImportResult{}, err
		}
		feed.Category = c
	}
	return im.ImportBody(ctx, feed, body, from, to)
}

func snapshotCmd(opts *rootOptions) *cobra.Command {
	var url, out string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the running planner page as a PNG",
		RunE: func(cmd *cobra.Command, _ []string) error {
			co := capture.OptionsFromConfig(opts.cfg.Snapshot)
			if url != "" {
				co.URL = url
			}
			if out != "" {
				co.OutputPath = out
			}
			if err := capture.SnapshotToFile(cmd.Context(), co); err != nil {
				return err
			}
			appLog.Info("snapshot written", "path", co.OutputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Page URL (defaults to the configured server)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "PNG output path")
	return cmd
}
