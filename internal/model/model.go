package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidSpan     = errors.New("task start is after end")
)

// Category is the workflow state a task is filed under.
type Category string

const (
	CategoryToDo       Category = "To Do"
	CategoryInProgress Category = "In Progress"
	CategoryReview     Category = "Review"
	CategoryCompleted  Category = "Completed"
)

// DefaultColor is used for categories without a palette entry.
const DefaultColor = "#4a90e2"

// Categories lists every category in display order.
var Categories = []Category{CategoryToDo, CategoryInProgress, CategoryReview, CategoryCompleted}

var categoryColors = map[Category]string{
	CategoryToDo:       "#4a90e2",
	CategoryInProgress: "#f5a623",
	CategoryReview:     "#7ed321",
	CategoryCompleted:  "#9b9b9b",
}

// ParseCategory matches case-insensitively and tolerates the compact
// spellings used in query strings ("todo", "in-progress", "inprogress").
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.TrimSpace(s)))
	for _, c := range Categories {
		if strings.ToLower(strings.ReplaceAll(string(c), " ", "")) == norm {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Color returns the palette color for c.
func (c Category) Color() string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return DefaultColor
}

// Task is a named, categorized span of whole days. End is inclusive.
type Task struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Start    Date     `json:"start"`
	End      Date     `json:"end"`
	// Color is an optional hex override; empty means "use the category color".
	Color string `json:"color,omitempty"`
	// Imported is set on tasks that came from a calendar feed and holds the
	// span the last import wrote.
	Imported *ImportedSpan `json:"imported,omitempty"`
}

type ImportedSpan struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// EditedLocally reports whether an imported task was moved or resized
// since its last import.
func (t Task) EditedLocally() bool {
	return t.Imported != nil && (t.Start != t.Imported.Start || t.End != t.Imported.End)
}

// DisplayColor returns the explicit color or the category's default.
func (t Task) DisplayColor() string {
	if t.Color != "" {
		return t.Color
	}
	return t.Category.Color()
}

// Validate checks the invariants every stored task must hold.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("task id is empty")
	}
	if t.Start.After(t.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidSpan, t.Start, t.End)
	}
	return nil
}

// WithSpan returns a copy of t moved to [start, end].
func (t Task) WithSpan(start, end Date) Task {
	t.Start = start
	t.End = end
	return t
}
