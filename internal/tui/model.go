// Package tui is a terminal host for the planner. Mouse presses, motion
// and releases are resolved to day indices and fed to the same gesture
// controller the browser page drives.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"monthplan/internal/dialog"
	"monthplan/internal/filter"
	"monthplan/internal/interact"
	appLog "monthplan/internal/log"
	"monthplan/internal/model"
	"monthplan/internal/planner"
)

type Model struct {
	ctx     context.Context
	planner *planner.Planner
	loc     *time.Location
	now     func() time.Time

	width     int
	cellWidth int

	name     textinput.Model
	catIdx   int
	search   textinput.Model
	querying bool

	status string
}

// New builds the terminal model. loc decides "today" for the time filter.
func New(ctx context.Context, p *planner.Planner, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}

	name := textinput.New()
	name.Placeholder = "Task name"
	name.CharLimit = 120
	name.Width = 40

	search := textinput.New()
	search.Placeholder = "Search"
	search.CharLimit = 80
	search.Width = 30

	return Model{
		ctx:       ctx,
		planner:   p,
		loc:       loc,
		now:       time.Now,
		cellWidth: defaultCellWidth,
		name:      name,
		search:    search,
		status:    "drag to select days, drag a task to move it, drag its edge to resize. ? for keys",
	}
}

// Run starts the program with mouse motion reporting and blocks until the
// user quits or ctx is cancelled.
func Run(ctx context.Context, p *planner.Planner, loc *time.Location) error {
	prog := tea.NewProgram(New(ctx, p, loc),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) today() model.Date {
	return model.DateOf(m.now().In(m.loc))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.cellWidth = max(minCellWidth, min(defaultCellWidth*2, msg.Width/7))
		return m, nil
	case tea.KeyMsg:
		if m.planner.DialogOpen() {
			return m.updateDialog(msg)
		}
		if m.querying {
			return m.updateSearch(msg)
		}
		return m.updateGrid(msg)
	case tea.MouseMsg:
		if m.planner.DialogOpen() || m.querying {
			return m, nil
		}
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) dispatch(ev interact.Event) (Model, tea.Cmd) {
	eff, err := m.planner.Dispatch(m.ctx, ev)
	if err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	if eff.Committed != nil {
		m.status = fmt.Sprintf("moved to %s – %s", eff.Committed.Start, eff.Committed.End)
	}
	if eff.OpenDialog != nil {
		m.name.SetValue("")
		m.catIdx = 0
		m.status = ""
		return m, m.name.Focus()
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	v := m.planner.View(m.today())
	l := newLayout(v, m.cellWidth)
	h, ok := l.hitTest(m.planner.Grid(), msg.X, msg.Y)
	if !ok {
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m.dispatch(interact.DayDown{Index: h.index, Button: buttonNumber(msg.Button)})
		}
		if msg.Y < gridTop {
			return m, nil
		}
		switch {
		case h.seg != nil && h.handle:
			side := interact.SideLeft
			if h.side == sideRight {
				side = interact.SideRight
			}
			return m.dispatch(interact.HandleDown{Segment: *h.seg, Side: side, Pointer: h.index})
		case h.seg != nil:
			return m.dispatch(interact.SegmentDown{Segment: *h.seg, Pointer: h.index})
		default:
			return m.dispatch(interact.DayDown{Index: h.index, Button: 0})
		}
	case tea.MouseActionMotion:
		switch m.planner.Mode() {
		case interact.ModeSelecting:
			return m.dispatch(interact.DayEnter{Index: h.index})
		case interact.ModeMoving, interact.ModeResizing:
			return m.dispatch(interact.PointerMove{Pointer: h.index})
		}
	case tea.MouseActionRelease:
		if m.planner.Mode() != interact.ModeIdle {
			return m.dispatch(interact.PointerUp{})
		}
	}
	return m, nil
}

func buttonNumber(b tea.MouseButton) int {
	switch b {
	case tea.MouseButtonLeft:
		return 0
	case tea.MouseButtonMiddle:
		return 1
	default:
		return 2
	}
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		return m.dispatch(interact.Cancel{})
	case "n":
		// new task on today, the keyboard twin of a double-click
		if i, ok := m.planner.Grid().DateToIndex(m.today()); ok {
			return m.dispatch(interact.DayDoubleClick{Index: i})
		}
	case "1", "2", "3", "4":
		c := model.Categories[int(key[0]-'1')]
		m.updateFilters(func(s *filter.State) error { s.ToggleCategory(c); return nil })
	case "w":
		m.updateFilters(func(s *filter.State) error { return s.SetTimeWeeks((s.TimeWeeks + 1) % (filter.MaxTimeWeeks + 1)) })
	case "/":
		m.querying = true
		m.search.SetValue(m.planner.Filters().Search)
		return m, m.search.Focus()
	case "?":
		m.status = "1-4 category  w time window  / search  n new task today  esc cancel drag  q quit"
	}
	return m, nil
}

func (m *Model) updateFilters(fn func(*filter.State) error) {
	if _, err := m.planner.UpdateFilters(fn); err != nil {
		m.status = "error: " + err.Error()
	}
}

// updateSearch applies the query as it is typed.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.querying = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	q := m.search.Value()
	m.updateFilters(func(s *filter.State) error { s.SetSearch(q); return nil })
	return m, cmd
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.planner.CancelDialog()
		m.name.Blur()
		m.status = "cancelled"
		return m, nil
	case "tab":
		m.catIdx = (m.catIdx + 1) % len(model.Categories)
		return m, nil
	case "shift+tab":
		m.catIdx = (m.catIdx + len(model.Categories) - 1) % len(model.Categories)
		return m, nil
	case "enter":
		t, err := m.planner.SaveDialog(m.ctx, m.name.Value(), model.Categories[m.catIdx])
		if errors.Is(err, dialog.ErrNameRequired) {
			m.status = "Please enter a task name."
			return m, nil
		}
		if err != nil {
			appLog.Error("create task failed", err)
			m.status = "error: " + err.Error()
			return m, nil
		}
		m.name.Blur()
		m.status = fmt.Sprintf("created %q", t.Name)
		return m, nil
	}
	var cmd tea.Cmd
	m.name, cmd = m.name.Update(msg)
	return m, cmd
}
