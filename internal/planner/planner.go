// Package planner wires the month grid, the task store, the filter, the
// gesture controller and the creation dialog into one component. Hosts
// (HTTP server, terminal UI) feed it pointer events and render View.
package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"monthplan/internal/dialog"
	"monthplan/internal/filter"
	"monthplan/internal/grid"
	"monthplan/internal/interact"
	appLog "monthplan/internal/log"
	"monthplan/internal/model"
	"monthplan/internal/segment"
	"monthplan/internal/store"
)

// Planner is safe for concurrent use; every operation runs under one lock
// so events from concurrent requests are applied one at a time.
type Planner struct {
	mu      sync.Mutex
	store   *store.Store
	grid    *grid.Grid
	ctrl    *interact.Controller
	dialog  *dialog.Dialog
	filters filter.State
}

// New builds a planner showing the month of today.
func New(st *store.Store, today model.Date, weekStart time.Weekday) *Planner {
	g := grid.Build(today, weekStart)
	return &Planner{
		store:   st,
		grid:    g,
		ctrl:    interact.New(g, st),
		dialog:  dialog.New(st),
		filters: filter.Default(),
	}
}

func (p *Planner) Store() *store.Store { return p.store }

// Grid returns the grid currently displayed.
func (p *Planner) Grid() *grid.Grid {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grid
}

// Dispatch applies one pointer event. A finished selection opens the
// creation dialog.
func (p *Planner) Dispatch(ctx context.Context, ev interact.Event) (interact.Effect, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatch(ctx, ev)
}

// DispatchOnTask starts a move or resize on taskID. The segment is looked
// up and the event built from it is applied under one lock, so a grid
// rollover cannot land in between.
func (p *Planner) DispatchOnTask(ctx context.Context, taskID string, now model.Date, build func(segment.Segment) interact.Event) (interact.Effect, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seg, ok := p.segmentOf(taskID, now)
	if !ok {
		return interact.Effect{}, fmt.Errorf("%w: task %q is not on the grid", store.ErrNotFound, taskID)
	}
	return p.dispatch(ctx, build(seg))
}

func (p *Planner) dispatch(ctx context.Context, ev interact.Event) (interact.Effect, error) {
	eff, err := p.ctrl.Dispatch(ctx, ev)
	if err != nil {
		appLog.Error("pointer event failed", err, "mode", p.ctrl.Mode())
		return eff, err
	}
	if eff.OpenDialog != nil {
		p.dialog.Open(eff.OpenDialog.Start, eff.OpenDialog.End)
	}
	if eff.Committed != nil {
		appLog.Info("task span committed", "id", eff.Committed.TaskID, "start", eff.Committed.Start, "end", eff.Committed.End)
	}
	return eff, nil
}

// SegmentOf returns the first visible segment of taskID in the current
// view, used to start move/resize gestures from a task id.
func (p *Planner) SegmentOf(taskID string, now model.Date) (segment.Segment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.segmentOf(taskID, now)
}

func (p *Planner) segmentOf(taskID string, now model.Date) (segment.Segment, bool) {
	for _, s := range p.view(now).Segments {
		if s.TaskID == taskID {
			return s, true
		}
	}
	return segment.Segment{}, false
}

func (p *Planner) Filters() filter.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters
}

// UpdateFilters mutates the filter state; fn's error leaves it unchanged.
func (p *Planner) UpdateFilters(fn func(*filter.State) error) (filter.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.filters
	if err := fn(&next); err != nil {
		return p.filters, err
	}
	p.filters = next
	return next, nil
}

// SaveDialog creates the task from the open dialog and clears the
// selection highlight. Validation failures keep everything as is.
func (p *Planner) SaveDialog(ctx context.Context, name string, category model.Category) (model.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.dialog.Save(ctx, name, category)
	if err != nil {
		return t, err
	}
	p.ctrl.ClearSelection()
	return t, nil
}

func (p *Planner) CancelDialog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialog.Close()
	p.ctrl.ClearSelection()
}

func (p *Planner) DialogOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dialog.IsOpen()
}

// Remove deletes a task. There is no gesture for it; hosts expose it directly.
func (p *Planner) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Remove(ctx, id)
}

// Rollover rebuilds the grid for a new day. It returns false while a
// gesture is active; the caller retries on its next tick.
func (p *Planner) Rollover(today model.Date) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.grid.Today() == today {
		return true
	}
	g := grid.Build(today, p.grid.WeekStart())
	if err := p.ctrl.SetGrid(g); err != nil {
		appLog.Info("grid rollover postponed", "reason", err.Error(), "today", today)
		return false
	}
	p.grid = g
	p.dialog.Close()
	appLog.Info("grid rolled over", "today", today, "month", g.MonthLabel(), "days", g.Len())
	return true
}

// Mode reports the active gesture, if any.
func (p *Planner) Mode() interact.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctrl.Mode()
}
