package utils

import (
	"time"
	_ "time/tzdata"
)

func LoadLocation(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func CurrentDateInTimezone(tz string) string {
	return time.Now().In(LoadLocation(tz)).Format("2006-01-02")
}

// StartOfDay returns midnight of t's calendar day in tz.
func StartOfDay(t time.Time, tz string) time.Time {
	loc := LoadLocation(tz)
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// IsPastDate reports whether a YYYY-MM-DD date lies before today in tz.
func IsPastDate(date string, tz string) bool {
	return date < CurrentDateInTimezone(tz)
}
