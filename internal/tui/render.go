package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"monthplan/internal/filter"
	"monthplan/internal/grid"
	"monthplan/internal/model"
	"monthplan/internal/planner"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	weekdayStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	outStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	selStyle     = lipgloss.NewStyle().Background(lipgloss.Color("#dbe9ff")).Foreground(lipgloss.Color("#000000"))
	todayStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4a90e2"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	dialogStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m Model) View() string {
	v := m.planner.View(m.today())
	l := newLayout(v, m.cellWidth)
	cw := m.cellWidth

	var b strings.Builder
	b.WriteString(titleStyle.Render(v.Month) + "  " + faintStyle.Render(filterSummary(v.Filters, v.OffGrid)))
	b.WriteByte('\n')
	for _, wd := range v.Weekdays {
		b.WriteString(weekdayStyle.Render(fit(wd, cw)))
	}
	b.WriteByte('\n')

	for row := 0; row < v.Rows; row++ {
		for col := 0; col < grid.DaysPerWeek; col++ {
			b.WriteString(dayLabel(v.Days[row*grid.DaysPerWeek+col], cw, col == grid.DaysPerWeek-1, l.hidden[row]))
		}
		b.WriteByte('\n')
		for lane := 0; lane < maxLanes; lane++ {
			b.WriteString(l.laneLine(row, lane))
			b.WriteByte('\n')
		}
	}

	if v.Dialog != nil {
		b.WriteString(m.dialogView(v.Dialog))
		b.WriteByte('\n')
	}
	if m.querying {
		b.WriteString("Search: " + m.search.View() + "\n")
	}
	b.WriteString(faintStyle.Render(m.status))
	return b.String()
}

func dayLabel(d planner.Day, width int, lastCol bool, hidden int) string {
	text := fmt.Sprintf(" %2d", d.Number)
	if lastCol && hidden > 0 {
		text += fmt.Sprintf(" +%d", hidden)
	}
	text = fit(text, width)
	switch {
	case d.Selected:
		return selStyle.Render(text)
	case d.Today:
		return todayStyle.Render(text)
	case !d.InMonth:
		return outStyle.Render(text)
	default:
		return text
	}
}

// laneLine draws one lane of a grid row. Handles are drawn as half blocks
// on the task's real start and end.
func (l layout) laneLine(row, lane int) string {
	segs := make([]placed, 0)
	for _, p := range l.byRow[row] {
		if p.lane == lane {
			segs = append(segs, p)
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].seg.StartIndex < segs[j].seg.StartIndex })

	var b strings.Builder
	col := 0
	for _, p := range segs {
		from, to := l.span(p.seg)
		b.WriteString(strings.Repeat(" ", from-col))

		body := []rune(fit(" "+p.seg.Name, to-from+1))
		if p.seg.IsFirst() {
			body[0] = '▌'
		}
		if p.seg.IsLast() {
			body[len(body)-1] = '▐'
		}
		style := lipgloss.NewStyle().
			Background(lipgloss.Color(p.seg.Color)).
			Foreground(lipgloss.Color("#ffffff"))
		if p.seg.Preview {
			style = style.Italic(true).Underline(true)
		}
		b.WriteString(style.Render(string(body)))
		col = to + 1
	}
	b.WriteString(strings.Repeat(" ", max(0, l.cellWidth*grid.DaysPerWeek-col)))
	return b.String()
}

func (m Model) dialogView(d *planner.DialogView) string {
	span := d.Start.String()
	if d.End != d.Start {
		span += " – " + d.End.String()
	}
	cat := model.Categories[m.catIdx]
	catLine := lipgloss.NewStyle().Foreground(lipgloss.Color(cat.Color())).Render("‹ " + string(cat) + " ›")
	return dialogStyle.Render(strings.Join([]string{
		titleStyle.Render("New task") + "  " + span,
		"Name:     " + m.name.View(),
		"Category: " + catLine + faintStyle.Render("  (tab)"),
		faintStyle.Render("enter save · esc cancel"),
	}, "\n"))
}

func filterSummary(f filter.State, offGrid int) string {
	parts := make([]string, 0, 4)
	if len(f.Categories) > 0 {
		names := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			names[i] = string(c)
		}
		parts = append(parts, "categories: "+strings.Join(names, ", "))
	}
	if f.TimeWeeks > 0 {
		parts = append(parts, fmt.Sprintf("next %d week(s)", f.TimeWeeks))
	}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search: %q", f.Search))
	}
	if offGrid > 0 {
		parts = append(parts, fmt.Sprintf("%d outside this month", offGrid))
	}
	if len(parts) == 0 {
		return "all tasks"
	}
	return strings.Join(parts, " · ")
}

// fit pads or truncates s to exactly width runes.
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		if width <= 1 {
			return string(r[:width])
		}
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-len(r))
}
