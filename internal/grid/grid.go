// Package grid builds the month view's day grid: the full weeks that
// intersect a reference month, laid out as rows of seven day cells, and
// the arithmetic that maps pointer positions and task segments onto it.
package grid

import (
	"fmt"
	"time"

	"monthplan/internal/model"
)

// DaysPerWeek is the number of columns in the grid.
const DaysPerWeek = 7

// Grid is an immutable sequence of consecutive dates. Its length is always
// a multiple of seven and it always contains the whole reference month.
type Grid struct {
	today     model.Date
	weekStart time.Weekday
	days      []model.Date
	index     map[model.Date]int
}

// Build returns the grid spanning startOfWeek(startOfMonth(today)) to
// endOfWeek(endOfMonth(today)).
func Build(today model.Date, weekStart time.Weekday) *Grid {
	first := startOfWeek(today.StartOfMonth(), weekStart)
	last := startOfWeek(today.EndOfMonth(), weekStart).AddDays(DaysPerWeek - 1)

	n := first.DaysUntil(last) + 1
	g := &Grid{
		today:     today,
		weekStart: weekStart,
		days:      make([]model.Date, 0, n),
		index:     make(map[model.Date]int, n),
	}
	for d := first; !d.After(last); d = d.AddDays(1) {
		g.index[d] = len(g.days)
		g.days = append(g.days, d)
	}
	return g
}

func startOfWeek(d model.Date, weekStart time.Weekday) model.Date {
	back := (int(d.Weekday()) - int(weekStart) + DaysPerWeek) % DaysPerWeek
	return d.AddDays(-back)
}

func (g *Grid) Today() model.Date          { return g.today }
func (g *Grid) WeekStart() time.Weekday    { return g.weekStart }
func (g *Grid) Len() int                   { return len(g.days) }
func (g *Grid) Rows() int                  { return len(g.days) / DaysPerWeek }
func (g *Grid) First() model.Date          { return g.days[0] }
func (g *Grid) Last() model.Date           { return g.days[len(g.days)-1] }
func (g *Grid) Contains(d model.Date) bool { _, ok := g.index[d]; return ok }

// Days returns a copy of the day sequence.
func (g *Grid) Days() []model.Date {
	out := make([]model.Date, len(g.days))
	copy(out, g.days)
	return out
}

// DateToIndex reports the day index of d, or false if d is not displayed.
func (g *Grid) DateToIndex(d model.Date) (int, bool) {
	i, ok := g.index[d]
	return i, ok
}

// IndexToDate returns the date at index i. i must be in [0, Len()); use
// Clamp first when the index comes from pointer arithmetic.
func (g *Grid) IndexToDate(i int) model.Date {
	if i < 0 || i >= len(g.days) {
		panic(fmt.Sprintf("grid: day index %d out of range [0,%d)", i, len(g.days)))
	}
	return g.days[i]
}

// Clamp forces i into [0, Len()-1].
func (g *Grid) Clamp(i int) int {
	return clamp(i, 0, len(g.days)-1)
}

// InMonth reports whether index i belongs to the reference month rather
// than the leading/trailing days of the adjacent months.
func (g *Grid) InMonth(i int) bool {
	d := g.days[i]
	return d.Year == g.today.Year && d.Month == g.today.Month
}

// RowBounds returns the first and last day index of row r.
func (g *Grid) RowBounds(r int) (int, int) {
	start := r * DaysPerWeek
	return start, start + DaysPerWeek - 1
}

// MonthLabel is the heading shown above the grid, e.g. "October 2026".
func (g *Grid) MonthLabel() string {
	return fmt.Sprintf("%s %d", g.today.Month, g.today.Year)
}

// Weekdays returns the short column headings starting at the week start.
func (g *Grid) Weekdays() []string {
	out := make([]string, DaysPerWeek)
	for i := range out {
		out[i] = time.Weekday((int(g.weekStart) + i) % DaysPerWeek).String()[:3]
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
