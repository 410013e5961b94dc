package ics

import (
	"context"
	"errors"
	"time"

	"monthplan/internal/config"
	appLog "monthplan/internal/log"
	"monthplan/internal/model"
)

// TaskUpserter is the part of the task store the importer writes to.
type TaskUpserter interface {
	UpsertUnless(ctx context.Context, t model.Task, keep func(existing model.Task) bool) (added, written bool, err error)
}

// ImportResult summarises one feed import.
type ImportResult struct {
	Feed      string `json:"feed"`
	Events    int    `json:"events"`
	Added     int    `json:"added"`
	Updated   int    `json:"updated"`
	// Kept counts imported tasks left alone because they were moved or
	// resized in the planner.
	Kept      int    `json:"kept"`
	FromCache bool   `json:"from_cache"`
}

// Importer copies feed events into the task store.
type Importer struct {
	fetcher *Fetcher
	tasks   TaskUpserter
	loc     *time.Location
}

func NewImporter(fetcher *Fetcher, tasks TaskUpserter, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.Local
	}
	return &Importer{fetcher: fetcher, tasks: tasks, loc: loc}
}

// ImportBody parses body and upserts the instances that overlap [from, to].
func (im *Importer) ImportBody(ctx context.Context, feed Feed, body []byte, from, to model.Date) (ImportResult, error) {
	res := ImportResult{Feed: feed.ID}

	events, err := ParseFeed(feed, body)
	if err != nil {
		return res, err
	}
	res.Events = len(events)

	tasks, err := Expand(events, ExpandConfig{Location: im.loc, From: from, To: to})
	if err != nil {
		return res, err
	}
	for _, t := range tasks {
		added, written, err := im.tasks.UpsertUnless(ctx, t, model.Task.EditedLocally)
		if err != nil {
			return res, err
		}
		switch {
		case added:
			res.Added++
		case written:
			res.Updated++
		default:
			res.Kept++
		}
	}

	appLog.Info("ics import completed", "feed", feed.ID, "events", res.Events, "added", res.Added, "updated", res.Updated, "kept", res.Kept)
	return res, nil
}

// Refresh fetches and imports every feed. A failing feed is logged and
// reported without stopping the others.
func (im *Importer) Refresh(ctx context.Context, feeds []Feed, from, to model.Date) ([]ImportResult, error) {
	if im.fetcher == nil {
		return nil, errors.New("importer has no fetcher")
	}

	results := make([]ImportResult, 0, len(feeds))
	var errs []error
	for _, feed := range feeds {
		fr, err := im.fetcher.Fetch(ctx, feed)
		if err != nil {
			appLog.Error("ics fetch failed", err, "feed", feed.ID, "url", redactURL(feed.URL))
			errs = append(errs, err)
			continue
		}
		res, err := im.ImportBody(ctx, feed, fr.Body, from, to)
		res.FromCache = fr.FromCache
		if err != nil {
			appLog.Error("ics import failed", err, "feed", feed.ID)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// FeedsFromConfig converts the configured imports, skipping entries
// without a URL. The feed id falls back to the name, then the URL.
func FeedsFromConfig(imports []config.ImportConfig) []Feed {
	feeds := make([]Feed, 0, len(imports))
	for _, ic := range imports {
		if ic.URL == "" {
			continue
		}
		id := ic.ID
		if id == "" {
			id = ic.Name
		}
		if id == "" {
			id = ic.URL
		}
		cat := model.CategoryToDo
		if ic.Category != "" {
			c, err := model.ParseCategory(ic.Category)
			if err != nil {
				appLog.Warn("import category ignored", err, "feed", id)
			} else {
				cat = c
			}
		}
		feeds = append(feeds, Feed{ID: id, URL: ic.URL, Category: cat})
	}
	return feeds
}
