package tui

import (
	"monthplan/internal/grid"
	"monthplan/internal/planner"
	"monthplan/internal/segment"
)

const (
	// gridTop is the first screen line of the day cells: title, weekdays.
	gridTop = 2

	minCellWidth     = 8
	defaultCellWidth = 14
	// rowHeight is one line for the day numbers plus segment lanes.
	rowHeight = 4
	maxLanes  = rowHeight - 1
)

// placed is a segment assigned to a lane of its grid row.
type placed struct {
	seg  segment.Segment
	lane int
}

// layout holds the screen geometry of one frame, shared by rendering and
// mouse hit-testing so both agree on where segments are.
type layout struct {
	cellWidth int
	rows      int
	byRow     map[int][]placed
	// hidden counts segments that did not fit in their row's lanes.
	hidden map[int]int
}

func newLayout(v planner.View, cellWidth int) layout {
	l := layout{
		cellWidth: cellWidth,
		rows:      v.Rows,
		byRow:     make(map[int][]placed),
		hidden:    make(map[int]int),
	}
	for _, s := range v.Segments {
		lane := l.freeLane(s)
		if lane < 0 {
			l.hidden[s.Row]++
			continue
		}
		l.byRow[s.Row] = append(l.byRow[s.Row], placed{seg: s, lane: lane})
	}
	return l
}

// freeLane returns the lowest lane in s's row not overlapping s, or -1.
func (l layout) freeLane(s segment.Segment) int {
	for lane := 0; lane < maxLanes; lane++ {
		free := true
		for _, p := range l.byRow[s.Row] {
			if p.lane == lane && p.seg.StartIndex <= s.EndIndex && s.StartIndex <= p.seg.EndIndex {
				free = false
				break
			}
		}
		if free {
			return lane
		}
	}
	return -1
}

// rect is the area of the day cells in screen cells.
func (l layout) rect() grid.Rect {
	return grid.Rect{
		Left:   0,
		Top:    gridTop,
		Width:  float64(l.cellWidth * grid.DaysPerWeek),
		Height: float64(l.rows * rowHeight),
	}
}

// hit describes what is under a screen position.
type hit struct {
	index  int
	seg    *segment.Segment
	handle bool
	side   sideKind
}

type sideKind int

const (
	sideLeft sideKind = iota
	sideRight
)

// hitTest resolves (x, y). Positions outside the grid clamp to the
// nearest day, which keeps drags alive when the pointer leaves the grid.
func (l layout) hitTest(g *grid.Grid, x, y int) (hit, bool) {
	idx, ok := g.CellAt(l.rect(), float64(x), float64(y))
	if !ok {
		return hit{}, false
	}
	h := hit{index: idx}

	line := y - gridTop
	if x < 0 || line < 0 || x >= l.cellWidth*grid.DaysPerWeek || line >= l.rows*rowHeight {
		return h, true
	}
	row, lane := line/rowHeight, line%rowHeight-1
	if lane < 0 {
		return h, true
	}
	for _, p := range l.byRow[row] {
		if p.lane != lane {
			continue
		}
		from, to := l.span(p.seg)
		if x < from || x > to {
			continue
		}
		s := p.seg
		h.seg = &s
		switch {
		case x == from && s.IsFirst():
			h.handle, h.side = true, sideLeft
		case x == to && s.IsLast():
			h.handle, h.side = true, sideRight
		}
		return h, true
	}
	return h, true
}

// span is the first and last screen column of a segment.
func (l layout) span(s segment.Segment) (int, int) {
	from := (s.StartIndex % grid.DaysPerWeek) * l.cellWidth
	to := (s.EndIndex%grid.DaysPerWeek+1)*l.cellWidth - 1
	return from, to
}
