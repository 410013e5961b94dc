// Package segment decomposes tasks into per-row visual segments. A task
// spanning several weeks yields one segment for each grid row it touches.
// Everything here is recomputed on demand and never stored.
package segment

import (
	"monthplan/internal/grid"
	"monthplan/internal/model"
)

// Segment is the part of a task visible within one grid row.
type Segment struct {
	TaskID   string         `json:"task_id"`
	Name     string         `json:"name"`
	Category model.Category `json:"category"`
	Color    string         `json:"color"`

	// StartIndex/EndIndex are clipped to the row.
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
	Row        int `json:"row"`

	// FullStartIndex/FullEndIndex are the task's un-clipped span.
	FullStartIndex int `json:"full_start_index"`
	FullEndIndex   int `json:"full_end_index"`

	// Preview marks segments computed from an uncommitted drag.
	Preview bool `json:"preview,omitempty"`

	Placement grid.Placement `json:"placement"`
}

// IsFirst reports whether the segment holds the task's start (left handle).
func (s Segment) IsFirst() bool { return s.StartIndex == s.FullStartIndex }

// IsLast reports whether the segment holds the task's end (right handle).
func (s Segment) IsLast() bool { return s.EndIndex == s.FullEndIndex }

// Override replaces a task's committed span while a gesture is live.
type Override struct {
	TaskID string     `json:"id"`
	Start  model.Date `json:"start"`
	End    model.Date `json:"end"`
}

// SplitTask returns one segment per row that t intersects. It returns
// nil, false if either end of t is outside the grid.
func SplitTask(t model.Task, g *grid.Grid) ([]Segment, bool) {
	si, okStart := g.DateToIndex(t.Start)
	ei, okEnd := g.DateToIndex(t.End)
	if !okStart || !okEnd {
		return nil, false
	}

	var segs []Segment
	for r := 0; r < g.Rows(); r++ {
		rowStart, rowEnd := g.RowBounds(r)
		if ei < rowStart || si > rowEnd {
			continue
		}
		s := max(si, rowStart)
		e := min(ei, rowEnd)
		segs = append(segs, Segment{
			TaskID:         t.ID,
			Name:           t.Name,
			Category:       t.Category,
			Color:          t.DisplayColor(),
			StartIndex:     s,
			EndIndex:       e,
			Row:            r,
			FullStartIndex: si,
			FullEndIndex:   ei,
			Placement:      grid.Place(s, e, r),
		})
	}
	return segs, true
}

// Split segments every task, skipping tasks that are not fully on the grid.
func Split(tasks []model.Task, g *grid.Grid) []Segment {
	segs, _ := Build(tasks, g, nil)
	return segs
}

// Build segments tasks, substituting the preview span for the task it
// names. The second result counts tasks skipped for lying off-grid.
func Build(tasks []model.Task, g *grid.Grid, preview *Override) ([]Segment, int) {
	var (
		out     []Segment
		offGrid int
	)
	for _, t := range tasks {
		isPreview := preview != nil && preview.TaskID == t.ID
		if isPreview {
			t = t.WithSpan(preview.Start, preview.End)
		}
		segs, ok := SplitTask(t, g)
		if !ok {
			offGrid++
			continue
		}
		if isPreview {
			for i := range segs {
				segs[i].Preview = true
			}
		}
		out = append(out, segs...)
	}
	return out, offGrid
}
