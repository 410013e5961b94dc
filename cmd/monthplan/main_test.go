package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monthplan/internal/config"
	"monthplan/internal/ics"
	appLog "monthplan/internal/log"
	"monthplan/internal/model"
	"monthplan/internal/planner"
	"monthplan/internal/store"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "tui", "export", "import", "snapshot"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.Flags().Lookup("listen"), "bare invocation accepts serve flags")
}

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-1\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"SUMMARY:Offsite\r\n" +
	"DTSTART;VALUE=DATE:%s\r\n" +
	"DTEND;VALUE=DATE:%s\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportThenExport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "monthplan.yaml")
	cfg := "timezone: UTC\n" +
		"storage:\n  driver: file\n  path: " + filepath.Join(dir, "tasks.json") + "\n" +
		"cache_dir: " + filepath.Join(dir, "cache") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "--log-level", "error", "export"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "BEGIN:VCALENDAR")
	assert.NotContains(t, out.String(), "BEGIN:VEVENT")

	icsPath := filepath.Join(dir, "feed.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(eventToday()), 0o600))

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "--log-level", "error", "import", "--category", "Review", icsPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "1 added")

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "--log-level", "error", "export"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "SUMMARY:Offsite")
	assert.Contains(t, out.String(), "CATEGORIES:Review")
}

// eventToday returns a one-day all-day event on today's date in UTC, which
// is always inside the current grid.
func eventToday() string {
	today := time.Now().UTC()
	return fmt.Sprintf(sampleICS, today.Format("20060102"), today.AddDate(0, 0, 1).Format("20060102"))
}

func TestTUILogFileSitsNextToStorage(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data", "tasks.db")

	f, err := openLogFile(cfg)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, filepath.Join(filepath.Dir(cfg.Storage.Path), tuiLogName), f.Name())

	appLog.SetOutput(f)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })
	appLog.Warn("save tasks failed; keeping change in memory", errors.New("disk full"))

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk full")
}

func TestInitialImportIsAwaited(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = fmt.Fprint(w, eventToday())
	}))
	defer srv.Close()

	ctx := context.Background()
	st := store.Open(ctx, store.NewMemoryPersister())
	p := planner.New(st, model.Today(time.UTC), time.Sunday)
	im := ics.NewImporter(ics.NewFetcher(t.TempDir(), srv.Client()), st, time.UTC)

	wait := startInitialImport(ctx, p, im, []ics.Feed{{ID: "team", URL: srv.URL + "/team.ics"}})
	assert.Zero(t, st.Len())
	close(release)
	wait()
	assert.Equal(t, 1, st.Len(), "wait returns only after the import is stored")
}

func TestSchedulerRegistersJobs(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	st := store.Open(ctx, store.NewMemoryPersister())
	p := planner.New(st, model.Today(time.UTC), time.Sunday)
	im := ics.NewImporter(nil, st, time.UTC)

	c, err := newScheduler(ctx, cfg, time.UTC, p, im)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2, "rollover and its retry")

	cfg.Imports = []config.ImportConfig{{ID: "team", URL: "https://example.com/team.ics"}}
	c, err = newScheduler(ctx, cfg, time.UTC, p, im)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 3)

	cfg.RolloverCron = "not a schedule"
	_, err = newScheduler(ctx, cfg, time.UTC, p, im)
	assert.Error(t, err)
}
