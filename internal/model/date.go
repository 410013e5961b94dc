package model

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar date without time-of-day or zone. Tasks span
// whole days, so every comparison in the planner happens on Dates.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes overflowing values the way time.Date does
// (e.g. 2024-01-32 becomes 2024-02-01).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current date in loc (time.Local if nil).
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return DateOf(time.Now().In(loc))
}

var timestampLoc atomic.Pointer[time.Location]

// SetTimestampLocation sets the zone ParseDate reads RFC 3339 timestamps
// in. The browser saved local midnight as a UTC instant, so the date is
// only right when read back in the zone it was picked in.
func SetTimestampLocation(loc *time.Location) {
	timestampLoc.Store(loc)
}

func timestampLocation() *time.Location {
	if loc := timestampLoc.Load(); loc != nil {
		return loc
	}
	return time.Local
}

// ParseDate accepts "2006-01-02" as well as RFC 3339 timestamps, which
// are read in the zone set by SetTimestampLocation (time.Local if unset).
func ParseDate(s string) (Date, error) {
	return ParseDateIn(s, timestampLocation())
}

// ParseDateIn is ParseDate with an explicit zone for timestamps.
func ParseDateIn(s string, loc *time.Location) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("parse date: empty value")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return DateOf(t.In(loc)), nil
}

// Time returns midnight of d in loc (time.Local if nil).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) noonUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Weekday() time.Weekday {
	return d.noonUTC().Weekday()
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.noonUTC().Sub(d.noonUTC()).Hours() / 24)
}

func (d Date) StartOfMonth() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

func (d Date) EndOfMonth() Date {
	return NewDate(d.Year, d.Month+1, 0)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
