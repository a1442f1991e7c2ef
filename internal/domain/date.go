package domain

import "time"

// CivilDate returns the calendar date of t as observed in loc, expressed as
// midnight UTC so it compares cleanly with DATE columns.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
