// Package filter decides which tasks are shown. It is a pure predicate
// over the task list; the filter panel (HTTP or terminal) mutates State
// through the methods below and the planner applies it on every render.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"monthplan/internal/model"
)

// MaxTimeWeeks is the widest relative time window the panel offers.
const MaxTimeWeeks = 3

var ErrInvalidTimeWindow = errors.New("time window must be 0 (all) to 3 weeks")

// State is the session's filter selection.
type State struct {
	// Categories to show; empty means every category.
	Categories []model.Category `json:"categories"`
	// TimeWeeks limits tasks to those overlapping [now, now+TimeWeeks*7d];
	// 0 disables the window.
	TimeWeeks int `json:"time_weeks"`
	// Search is a case-insensitive substring of the task name.
	Search string `json:"search"`
}

// Default returns the unfiltered state.
func Default() State {
	return State{Categories: []model.Category{}}
}

func (s State) HasCategory(c model.Category) bool {
	return slices.Contains(s.Categories, c)
}

// ToggleCategory adds c to the set, or removes it if already present.
func (s *State) ToggleCategory(c model.Category) {
	if i := slices.Index(s.Categories, c); i >= 0 {
		s.Categories = slices.Delete(slices.Clone(s.Categories), i, i+1)
		return
	}
	s.Categories = append(slices.Clone(s.Categories), c)
}

// SetTimeWeeks selects one of All(0), 1, 2 or 3 weeks.
func (s *State) SetTimeWeeks(weeks int) error {
	if weeks < 0 || weeks > MaxTimeWeeks {
		return fmt.Errorf("%w: got %d", ErrInvalidTimeWindow, weeks)
	}
	s.TimeWeeks = weeks
	return nil
}

// SetSearch replaces the search text; applied as typed, no debouncing.
func (s *State) SetSearch(q string) {
	s.Search = q
}

// Matches reports whether t passes all three conditions relative to now.
func (s State) Matches(t model.Task, now model.Date) bool {
	if len(s.Categories) > 0 && !s.HasCategory(t.Category) {
		return false
	}

	if s.TimeWeeks > 0 {
		windowEnd := now.AddDays(s.TimeWeeks * 7)
		if t.Start.After(windowEnd) || t.End.Before(now) {
			return false
		}
	}

	if s.Search != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(s.Search)) {
		return false
	}

	return true
}

// Apply returns the tasks that match, preserving store order.
func Apply(tasks []model.Task, s State, now model.Date) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if s.Matches(t, now) {
			out = append(out, t)
		}
	}
	return out
}
