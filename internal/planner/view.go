package planner

import (
	"monthplan/internal/filter"
	"monthplan/internal/model"
	"monthplan/internal/segment"
)

// View is everything a host needs to draw one frame.
type View struct {
	Month    string     `json:"month"`
	Weekdays []string   `json:"weekdays"`
	Rows     int        `json:"rows"`
	Today    model.Date `json:"today"`
	Days     []Day      `json:"days"`

	Segments []segment.Segment `json:"segments"`
	// OffGrid counts filtered tasks hidden because an end lies outside
	// the displayed weeks.
	OffGrid int `json:"off_grid"`

	Mode    string            `json:"mode"`
	Preview *segment.Override `json:"preview,omitempty"`
	Dialog  *DialogView       `json:"dialog,omitempty"`
	Filters filter.State      `json:"filters"`
}

type Day struct {
	Index    int        `json:"index"`
	Date     model.Date `json:"date"`
	Number   int        `json:"number"`
	InMonth  bool       `json:"in_month"`
	Selected bool       `json:"selected"`
	Today    bool       `json:"today"`
}

type DialogView struct {
	Start      model.Date       `json:"start"`
	End        model.Date       `json:"end"`
	Categories []model.Category `json:"categories"`
}

// View derives the frame: store → filter → segments, with the live
// preview substituted for the task being dragged. now is the reference
// date of the time-window filter.
func (p *Planner) View(now model.Date) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view(now)
}

func (p *Planner) view(now model.Date) View {
	g := p.grid
	visible := filter.Apply(p.store.List(), p.filters, now)
	preview := p.ctrl.Preview()
	segs, offGrid := segment.Build(visible, g, preview)
	if segs == nil {
		segs = []segment.Segment{}
	}

	selStart, selEnd, hasSel := p.ctrl.Selection()
	days := make([]Day, g.Len())
	for i := range days {
		d := g.IndexToDate(i)
		days[i] = Day{
			Index:    i,
			Date:     d,
			Number:   d.Day,
			InMonth:  g.InMonth(i),
			Selected: hasSel && i >= selStart && i <= selEnd,
			Today:    d == g.Today(),
		}
	}

	v := View{
		Month:    g.MonthLabel(),
		Weekdays: g.Weekdays(),
		Rows:     g.Rows(),
		Today:    g.Today(),
		Days:     days,
		Segments: segs,
		OffGrid:  offGrid,
		Mode:     p.ctrl.Mode().String(),
		Preview:  preview,
		Filters:  p.filters,
	}
	if p.dialog.IsOpen() {
		start, end := p.dialog.Range()
		v.Dialog = &DialogView{Start: start, End: end, Categories: model.Categories}
	}
	return v
}
