package interact

import (
	"fmt"
	"strings"

	"monthplan/internal/segment"
)

// Event is one pointer event delivered by a host (browser bridge or
// terminal). Pointer positions are already resolved to day indices, see
// grid.CellAt.
type Event interface {
	event()
}

// DayDown is a press on an empty day cell. Only the primary button
// (0) starts a selection.
type DayDown struct {
	Index  int
	Button int
}

// DayEnter is the pointer entering a day cell.
type DayEnter struct {
	Index int
}

// DayDoubleClick opens the creation dialog for a single day.
type DayDoubleClick struct {
	Index int
}

// SegmentDown is a press on the body of a task segment.
type SegmentDown struct {
	Segment segment.Segment
	Pointer int
}

// HandleDown is a press on a segment's left or right resize handle.
type HandleDown struct {
	Segment segment.Segment
	Side    Side
	Pointer int
}

// PointerMove is any pointer motion while a button may be held.
type PointerMove struct {
	Pointer int
}

// PointerUp ends the active gesture, wherever the pointer is.
type PointerUp struct{}

// Cancel abandons the active gesture without committing it.
type Cancel struct{}

func (DayDown) event()        {}
func (DayEnter) event()       {}
func (DayDoubleClick) event() {}
func (SegmentDown) event()    {}
func (HandleDown) event()     {}
func (PointerMove) event()    {}
func (PointerUp) event()      {}
func (Cancel) event()         {}

// Side names a resize handle.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "left", "start":
		return SideLeft, nil
	case "right", "end":
		return SideRight, nil
	default:
		return SideLeft, fmt.Errorf("unknown resize side %q", v)
	}
}
