package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "monthplan/internal/log"
	"monthplan/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig bounds recurrence expansion to the days the planner shows.
type ExpandConfig struct {
	// Location decides the calendar day of timed events. nil means time.Local.
	Location *time.Location

	// From / To is the inclusive day window; tasks overlapping it are kept.
	From model.Date
	To   model.Date

	// MaxOccurrencesPerEvent caps runaway rules. Zero uses the default.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed events into planner tasks. Recurring events produce one
// task per instance inside the window, EXDATEs are skipped and RECURRENCE-ID
// overrides replace the instance they name. Task ids are derived from feed,
// UID and original instance start, so re-importing updates in place.
func Expand(events []Event, cfg ExpandConfig) ([]model.Task, error) {
	if cfg.To.Before(cfg.From) {
		return nil, errors.New("expand: window end is before window start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	type groupKey struct{ feed, uid string }
	bases := make(map[groupKey][]Event)
	overrides := make(map[groupKey][]Event)
	order := make([]groupKey, 0)
	for _, ev := range events {
		k := groupKey{ev.Feed.ID, ev.UID}
		if ev.IsOverride() {
			overrides[k] = append(overrides[k], ev)
			continue
		}
		if _, seen := bases[k]; !seen {
			order = append(order, k)
		}
		bases[k] = append(bases[k], ev)
	}

	tasks := make([]model.Task, 0)
	for _, k := range order {
		for _, ev := range bases[k] {
			tasks = append(tasks, expandEvent(ev, overrides[k], cfg)...)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if c := tasks[i].Start.Compare(tasks[j].Start); c != 0 {
			return c < 0
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

func expandEvent(ev Event, overrides []Event, cfg ExpandConfig) []model.Task {
	if ev.RawRRule == "" {
		if t, ok := instanceTask(ev, ev.Start, overrides, cfg); ok {
			return []model.Task{t}
		}
		return nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so instances that started
	// before the window but run into it are kept.
	zone := ev.Start.Location()
	span := ev.End.Sub(ev.Start)
	lo := cfg.From.Time(zone).Add(-span)
	hi := cfg.To.AddDays(1).Time(zone)

	starts := set.Between(lo, hi, true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("expand: occurrences truncated", errors.New("max occurrences reached"),
			"uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	out := make([]model.Task, 0, len(starts))
	for _, s := range starts {
		if t, ok := instanceTask(ev, s, overrides, cfg); ok {
			out = append(out, t)
		}
	}
	return out
}

// instanceTask builds the task for the instance originally starting at
// start, applying a matching override.
func instanceTask(ev Event, start time.Time, overrides []Event, cfg ExpandConfig) (model.Task, bool) {
	src := ev
	occStart, occEnd := start, start.Add(ev.End.Sub(ev.Start))
	for _, ov := range overrides {
		if ov.Recurrence.Equal(start) {
			src = ov
			occStart, occEnd = ov.Start, ov.End
			if len(src.Categories) == 0 {
				src.Categories = ev.Categories
			}
			break
		}
	}

	from, to := daySpan(src.AllDay, occStart, occEnd, cfg.Location)
	if to.Before(cfg.From) || from.After(cfg.To) {
		return model.Task{}, false
	}

	name := src.Summary
	if name == "" {
		name = "(untitled)"
	}
	return model.Task{
		ID:       taskID(ev.Feed.ID, ev.UID, start),
		Name:     name,
		Category: categoryFor(src),
		Start:    from,
		End:      to,
		Imported: &model.ImportedSpan{Start: from, End: to},
	}, true
}

// daySpan maps an event interval to inclusive planner days. All-day ends are
// exclusive; timed events cover every day they touch in loc.
func daySpan(allDay bool, start, end time.Time, loc *time.Location) (model.Date, model.Date) {
	if allDay {
		from := model.DateOf(start)
		to := model.DateOf(end).AddDays(-1)
		if to.Before(from) {
			to = from
		}
		return from, to
	}
	last := end
	if end.After(start) {
		last = end.Add(-time.Nanosecond)
	}
	return model.DateOf(start.In(loc)), model.DateOf(last.In(loc))
}

func categoryFor(ev Event) model.Category {
	for _, c := range ev.Categories {
		if cat, err := model.ParseCategory(c); err == nil {
			return cat
		}
	}
	if ev.Feed.Category != "" {
		return ev.Feed.Category
	}
	return model.CategoryToDo
}

func taskID(feedID, uid string, instance time.Time) string {
	sum := sha256.Sum256([]byte(feedID + "\x00" + uid + "\x00" + instance.UTC().Format(time.RFC3339)))
	return "ics-" + hex.EncodeToString(sum[:8])
}
