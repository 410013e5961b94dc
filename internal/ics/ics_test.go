package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monthplan/internal/model"
	"monthplan/internal/store"
)

func june(d int) model.Date { return model.NewDate(2024, time.June, d) }

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var team = Feed{ID: "team", URL: "https://example.com/team.ics", Category: model.CategoryInProgress}

func TestExport_AllDayEvents(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Name: "Write report", Category: model.CategoryReview, Start: june(10), End: june(12)},
	}
	out := Export(tasks, time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC))

	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "UID:a")
	assert.Contains(t, out, "SUMMARY:Write report")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240610")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240613")
	assert.Contains(t, out, "COLOR:#7ed321")

	events, err := ParseFeed(Feed{ID: "self"}, []byte(out))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)

	got, err := Expand(events, ExpandConfig{Location: time.UTC, From: june(1), To: june(30)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Write report", got[0].Name)
	assert.Equal(t, model.CategoryReview, got[0].Category)
	assert.Equal(t, june(10), got[0].Start)
	assert.Equal(t, june(12), got[0].End)
}

func TestParseFeed_Errors(t *testing.T) {
	_, err := ParseFeed(team, nil)
	assert.Error(t, err)

	events, err := ParseFeed(team, calendar(
		"BEGIN:VEVENT", "SUMMARY:No uid", "DTSTART;VALUE=DATE:20240610", "END:VEVENT",
		"BEGIN:VEVENT", "UID:ok", "SUMMARY:Fine", "DTSTART;VALUE=DATE:20240611", "END:VEVENT",
	))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].UID)
	assert.Equal(t, june(11), model.DateOf(events[0].End).AddDays(-1), "missing DTEND means one day")
}

func TestExpand_WeeklyWithExdateAndOverride(t *testing.T) {
	events, err := ParseFeed(team, calendar(
		"BEGIN:VEVENT",
		"UID:standup",
		"SUMMARY:Planning",
		"CATEGORIES:Review",
		"DTSTART;VALUE=DATE:20240603",
		"DTEND;VALUE=DATE:20240604",
		"RRULE:FREQ=WEEKLY;COUNT=5",
		"EXDATE;VALUE=DATE:20240610",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:standup",
		"SUMMARY:Planning (moved)",
		"RECURRENCE-ID;VALUE=DATE:20240617",
		"DTSTART;VALUE=DATE:20240618",
		"DTEND;VALUE=DATE:20240619",
		"END:VEVENT",
	))
	require.NoError(t, err)
	require.Len(t, events, 2)

	cfg := ExpandConfig{Location: time.UTC, From: june(1), To: june(30)}
	got, err := Expand(events, cfg)
	require.NoError(t, err)
	require.Len(t, got, 3, "June 3, 17 (moved to 18) and 24; June 10 excluded; July 1 outside")

	assert.Equal(t, june(3), got[0].Start)
	assert.Equal(t, june(18), got[1].Start)
	assert.Equal(t, "Planning (moved)", got[1].Name)
	assert.Equal(t, june(24), got[2].Start)
	for _, tk := range got {
		assert.Equal(t, model.CategoryReview, tk.Category)
		assert.Equal(t, tk.Start, tk.End)
		assert.True(t, strings.HasPrefix(tk.ID, "ics-"))
	}

	again, err := Expand(events, cfg)
	require.NoError(t, err)
	assert.Equal(t, got, again, "ids are deterministic")
	assert.NotEqual(t, got[0].ID, got[2].ID)
}

func TestExpand_TimedEventCoversTouchedDays(t *testing.T) {
	events, err := ParseFeed(team, calendar(
		"BEGIN:VEVENT",
		"UID:late",
		"SUMMARY:Deploy",
		"CATEGORIES:Something else",
		"DTSTART:20240610T230000Z",
		"DTEND:20240611T010000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:old",
		"SUMMARY:Old",
		"DTSTART:20240110T100000Z",
		"DTEND:20240110T110000Z",
		"END:VEVENT",
	))
	require.NoError(t, err)

	got, err := Expand(events, ExpandConfig{Location: time.UTC, From: june(1), To: june(30)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, june(10), got[0].Start)
	assert.Equal(t, june(11), got[0].End)
	assert.Equal(t, model.CategoryInProgress, got[0].Category, "unknown category falls back to the feed's")
}

func TestExpand_RejectsInvertedWindow(t *testing.T) {
	_, err := Expand(nil, ExpandConfig{From: june(10), To: june(1)})
	assert.Error(t, err)
}

func TestFetcher_ConditionalAndFallback(t *testing.T) {
	body := calendar("BEGIN:VEVENT", "UID:x", "DTSTART;VALUE=DATE:20240610", "END:VEVENT")
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "t", URL: srv.URL + "/cal.ics"}

	res, err := f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, body, res.Body)

	res, err = f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, body, res.Body)

	fail.Store(true)
	res, err = f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = NewFetcher(t.TempDir(), srv.Client()).Fetch(context.Background(), feed)
	assert.Error(t, err, "no cache to fall back to")

	_, err = f.Fetch(context.Background(), Feed{ID: "empty"})
	assert.Error(t, err)
}

func TestImporter_UpsertsByStableID(t *testing.T) {
	ctx := context.Background()
	st := store.Open(ctx, store.NewMemoryPersister())
	im := NewImporter(nil, st, time.UTC)

	body := calendar(
		"BEGIN:VEVENT", "UID:a", "SUMMARY:Trip", "DTSTART;VALUE=DATE:20240610", "DTEND;VALUE=DATE:20240613", "END:VEVENT",
		"BEGIN:VEVENT", "UID:b", "SUMMARY:Call", "DTSTART;VALUE=DATE:20240620", "END:VEVENT",
	)
	res, err := im.ImportBody(ctx, team, body, june(1), june(30))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 2, st.Len())

	res, err = im.ImportBody(ctx, team, body, june(1), june(30))
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 2, st.Len())

	_, err = im.Refresh(ctx, []Feed{team}, june(1), june(30))
	assert.Error(t, err, "no fetcher configured")
}

func TestImporter_KeepsLocallyMovedTasks(t *testing.T) {
	ctx := context.Background()
	st := store.Open(ctx, store.NewMemoryPersister())
	im := NewImporter(nil, st, time.UTC)

	body := calendar("BEGIN:VEVENT", "UID:a", "SUMMARY:Trip", "DTSTART;VALUE=DATE:20240610", "DTEND;VALUE=DATE:20240613", "END:VEVENT")
	_, err := im.ImportBody(ctx, team, body, june(1), june(30))
	require.NoError(t, err)
	tk := st.List()[0]
	require.NotNil(t, tk.Imported)
	assert.False(t, tk.EditedLocally())

	require.NoError(t, st.UpdateSpan(ctx, tk.ID, june(17), june(19)))

	res, err := im.ImportBody(ctx, team, body, june(1), june(30))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Kept)
	assert.Zero(t, res.Updated)

	got, _ := st.Get(tk.ID)
	assert.Equal(t, june(17), got.Start)
	assert.Equal(t, june(19), got.End)
	assert.True(t, got.EditedLocally())
}

func TestImporter_RefreshReportsFailingFeeds(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.ics" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(calendar("BEGIN:VEVENT", "UID:a", "SUMMARY:Ok", "DTSTART;VALUE=DATE:20240605", "END:VEVENT"))
	}))
	defer srv.Close()

	st := store.Open(ctx, store.NewMemoryPersister())
	im := NewImporter(NewFetcher(t.TempDir(), srv.Client()), st, time.UTC)

	results, err := im.Refresh(ctx, []Feed{
		{ID: "good", URL: srv.URL + "/good.ics"},
		{ID: "bad", URL: srv.URL + "/missing.ics"},
	}, june(1), june(30))
	assert.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Feed)
	assert.Equal(t, 1, results[0].Added)

	tk := st.List()[0]
	assert.Equal(t, model.CategoryToDo, tk.Category)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/x.ics?token=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
