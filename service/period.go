package service

import (
	"time"
)

// MonthKey returns the YYYY-MM identifier of the month containing t in loc
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// MonthBounds returns the start of the month containing t in loc and the start of
// the following month. The end is exclusive.
func MonthBounds(t time.Time, loc *time.Location) (start, end time.Time) {
	local := t.In(loc)
	start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, 0)
	return start, end
}
