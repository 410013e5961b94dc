package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"monthplan/internal/model"
)

const productID = "-//monthplan//Month Planner//EN"

// Export renders tasks as a calendar of all-day events. DTEND is the day
// after the task's last day, as all-day events require.
func Export(tasks []model.Task, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	stamp := now.UTC()
	for _, t := range tasks {
		ev := cal.AddEvent(t.ID)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(t.Name)
		ev.SetAllDayStartAt(t.Start.Time(time.UTC))
		ev.SetAllDayEndAt(t.End.AddDays(1).Time(time.UTC))
		ev.SetProperty(ical.ComponentProperty("CATEGORIES"), string(t.Category))
		ev.SetProperty(ical.ComponentProperty("COLOR"), t.DisplayColor())
	}
	return cal.Serialize()
}
