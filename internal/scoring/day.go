package scoring

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date in the engine's reference time zone.
// The zero Day is not a valid date.
type Day struct {
	year  int
	month time.Month
	day   int
}

// DayOf truncates t to its calendar date in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day{y, m, d}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t, time.UTC), nil
}

func (d Day) midnight() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return d.midnight().Format(dayLayout)
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

// AddDays returns the calendar date n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.midnight().AddDate(0, 0, n), time.UTC)
}

// DaysSince returns the number of calendar days from earlier to d.
// Negative when earlier is after d.
func (d Day) DaysSince(earlier Day) int {
	// UTC midnights have no DST gaps, so every day is exactly 24h.
	return int(d.midnight().Sub(earlier.midnight()).Hours() / 24)
}

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool {
	return d.midnight().Before(o.midnight())
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
