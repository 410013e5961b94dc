package grid

import "math"

// Rect is the on-screen bounding box of the day cells (weekday header
// excluded). Units are whatever the host uses: CSS pixels in the browser,
// character cells in the terminal.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CellAt resolves a pointer position to a day index. The rect is divided
// into 7 equal columns and Rows() equal rows; column and row are clamped
// independently, so a pointer that drifted outside the grid during a drag
// still resolves to the nearest cell. It reports false only for a
// degenerate rect.
func (g *Grid) CellAt(r Rect, x, y float64) (int, bool) {
	rows := g.Rows()
	if r.Width <= 0 || r.Height <= 0 || rows == 0 {
		return 0, false
	}
	colWidth := r.Width / DaysPerWeek
	rowHeight := r.Height / float64(rows)

	col := int(math.Floor((x - r.Left) / colWidth))
	row := int(math.Floor((y - r.Top) / rowHeight))

	col = clamp(col, 0, DaysPerWeek-1)
	row = clamp(row, 0, rows-1)
	return row*DaysPerWeek + col, true
}

// Placement positions a segment on a CSS-style grid: 1-based lines,
// ColumnEnd exclusive, with line 1 taken by the weekday header.
type Placement struct {
	ColumnStart int `json:"column_start"`
	ColumnEnd   int `json:"column_end"`
	RowStart    int `json:"row_start"`
	RowEnd      int `json:"row_end"`
}

// Place maps a row-local [startIndex, endIndex] on row to grid lines.
func Place(startIndex, endIndex, row int) Placement {
	return Placement{
		ColumnStart: startIndex%DaysPerWeek + 1,
		ColumnEnd:   endIndex%DaysPerWeek + 2,
		RowStart:    row + 2,
		RowEnd:      row + 3,
	}
}
