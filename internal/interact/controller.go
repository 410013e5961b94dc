// Package interact owns the pointer gesture state machine of the month
// grid: drag-to-select a date range, drag-to-move a task and drag-to-resize
// either end of a task.
//
// The state is an explicit variant (idle, selecting, dragging) advanced by
// a single Dispatch function. At most one gesture is active at a time:
// a press that arrives while a gesture is in flight is ignored. Move and
// resize publish a live preview and only touch the task store on release.
package interact

import (
	"context"
	"errors"
	"fmt"

	"monthplan/internal/grid"
	"monthplan/internal/model"
	"monthplan/internal/segment"
)

var (
	ErrUnknownEvent  = errors.New("unknown pointer event")
	ErrGestureActive = errors.New("a gesture is in progress")
)

// Mode is the controller's current state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSelecting
	ModeMoving
	ModeResizing
)

func (m Mode) String() string {
	switch m {
	case ModeSelecting:
		return "selecting"
	case ModeMoving:
		return "moving"
	case ModeResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// SpanUpdater commits a finished move/resize. The task store implements it.
type SpanUpdater interface {
	UpdateSpan(ctx context.Context, id string, start, end model.Date) error
}

// Range is an inclusive date range picked on the grid.
type Range struct {
	StartIndex int        `json:"start_index"`
	EndIndex   int        `json:"end_index"`
	Start      model.Date `json:"start"`
	End        model.Date `json:"end"`
}

// Effect tells the host what a dispatch produced besides state changes.
type Effect struct {
	// OpenDialog is set when a selection finished and the creation dialog
	// should open for that range.
	OpenDialog *Range
	// Committed is set when a move/resize preview was written to the store.
	Committed *segment.Override
}

type gesture interface {
	mode() Mode
}

// selecting carries the latest end index so that the release reads the
// value of the last enter/move event, not a stale copy.
type selecting struct {
	anchor int
	end    int
}

type dragging struct {
	kind           Mode
	side           Side
	taskID         string
	pointerAtStart int
	startAtStart   int
	endAtStart     int
}

func (selecting) mode() Mode  { return ModeSelecting }
func (d dragging) mode() Mode { return d.kind }

// Controller is not safe for concurrent use; hosts serialize events.
type Controller struct {
	grid    *grid.Grid
	tasks   SpanUpdater
	state   gesture
	sel     *[2]int
	preview *segment.Override
}

func New(g *grid.Grid, tasks SpanUpdater) *Controller {
	return &Controller{grid: g, tasks: tasks}
}

func (c *Controller) Mode() Mode {
	if c.state == nil {
		return ModeIdle
	}
	return c.state.mode()
}

// Active reports whether a gesture is in flight.
func (c *Controller) Active() bool { return c.state != nil }

// Selection returns the highlighted range, ordered, if any. It stays
// visible after release until ClearSelection (the dialog closing).
func (c *Controller) Selection() (int, int, bool) {
	if c.sel == nil {
		return 0, 0, false
	}
	return min(c.sel[0], c.sel[1]), max(c.sel[0], c.sel[1]), true
}

func (c *Controller) ClearSelection() {
	if _, ok := c.state.(selecting); ok {
		return
	}
	c.sel = nil
}

// Preview returns a copy of the live override, or nil.
func (c *Controller) Preview() *segment.Override {
	if c.preview == nil {
		return nil
	}
	p := *c.preview
	return &p
}

// SetGrid swaps the grid (day rollover). It is refused mid-gesture since
// the gesture's indices belong to the old grid.
func (c *Controller) SetGrid(g *grid.Grid) error {
	if c.Active() {
		return ErrGestureActive
	}
	c.grid = g
	c.sel = nil
	return nil
}

// Dispatch advances the state machine by one event.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (Effect, error) {
	switch e := ev.(type) {
	case DayDown:
		c.beginSelect(e)
	case DayEnter:
		c.extendSelect(e.Index)
	case DayDoubleClick:
		return c.doubleClick(e.Index), nil
	case SegmentDown:
		c.beginDrag(ModeMoving, SideLeft, e.Segment, e.Pointer)
	case HandleDown:
		c.beginDrag(ModeResizing, e.Side, e.Segment, e.Pointer)
	case PointerMove:
		c.move(e.Pointer)
	case PointerUp:
		return c.release(ctx)
	case Cancel:
		c.state = nil
		c.preview = nil
		c.sel = nil
	default:
		return Effect{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return Effect{}, nil
}

func (c *Controller) beginSelect(e DayDown) {
	if e.Button != 0 || c.state != nil {
		return
	}
	i := c.grid.Clamp(e.Index)
	c.state = selecting{anchor: i, end: i}
	c.sel = &[2]int{i, i}
}

func (c *Controller) extendSelect(index int) {
	s, ok := c.state.(selecting)
	if !ok {
		return
	}
	s.end = c.grid.Clamp(index)
	c.state = s
	c.sel = &[2]int{s.anchor, s.end}
}

func (c *Controller) doubleClick(index int) Effect {
	if c.state != nil {
		return Effect{}
	}
	i := c.grid.Clamp(index)
	c.sel = &[2]int{i, i}
	return Effect{OpenDialog: c.rangeOf(i, i)}
}

// beginDrag ignores a segment whose full span is not on the current grid,
// e.g. one resolved against the grid before a rollover.
func (c *Controller) beginDrag(kind Mode, side Side, seg segment.Segment, pointer int) {
	if c.state != nil {
		return
	}
	if seg.FullStartIndex < 0 || seg.FullEndIndex >= c.grid.Len() || seg.FullStartIndex > seg.FullEndIndex {
		return
	}
	c.state = dragging{
		kind:           kind,
		side:           side,
		taskID:         seg.TaskID,
		pointerAtStart: c.grid.Clamp(pointer),
		startAtStart:   seg.FullStartIndex,
		endAtStart:     seg.FullEndIndex,
	}
	c.sel = nil
}

func (c *Controller) move(pointer int) {
	switch s := c.state.(type) {
	case selecting:
		c.extendSelect(pointer)
	case dragging:
		idx := c.grid.Clamp(pointer)
		var start, end int
		if s.kind == ModeMoving {
			start, end = MoveSpan(s.startAtStart, s.endAtStart, idx-s.pointerAtStart, c.grid.Len())
		} else {
			start, end = ResizeSpan(s.startAtStart, s.endAtStart, s.side, idx, c.grid.Len())
		}
		c.preview = &segment.Override{
			TaskID: s.taskID,
			Start:  c.grid.IndexToDate(start),
			End:    c.grid.IndexToDate(end),
		}
	}
}

func (c *Controller) release(ctx context.Context) (Effect, error) {
	switch s := c.state.(type) {
	case selecting:
		c.state = nil
		return Effect{OpenDialog: c.rangeOf(min(s.anchor, s.end), max(s.anchor, s.end))}, nil
	case dragging:
		p := c.preview
		c.state = nil
		c.preview = nil
		if p == nil {
			return Effect{}, nil
		}
		if err := c.tasks.UpdateSpan(ctx, p.TaskID, p.Start, p.End); err != nil {
			return Effect{}, fmt.Errorf("commit %s: %w", s.kind, err)
		}
		return Effect{Committed: p}, nil
	}
	return Effect{}, nil
}

func (c *Controller) rangeOf(start, end int) *Range {
	return &Range{
		StartIndex: start,
		EndIndex:   end,
		Start:      c.grid.IndexToDate(start),
		End:        c.grid.IndexToDate(end),
	}
}

// MoveSpan shifts [start, end] by delta, keeping its length and clamping
// it inside [0, gridLen-1].
func MoveSpan(start, end, delta, gridLen int) (int, int) {
	length := end - start
	newStart := max(0, min(gridLen-1-length, start+delta))
	return newStart, newStart + length
}

// ResizeSpan moves one end of [start, end] to pointer. The moving end
// never crosses the fixed one and stays inside the grid.
func ResizeSpan(start, end int, side Side, pointer, gridLen int) (int, int) {
	if side == SideLeft {
		return max(0, min(pointer, end)), end
	}
	return start, min(gridLen-1, max(pointer, start))
}
