// Package jst converts feed timestamps into canonical UTC instants and
// renders them in Japan Standard Time (fixed UTC+9, no DST).
package jst

import "time"

// Zone is Japan Standard Time as a fixed offset.
var Zone = time.FixedZone("JST", 9*60*60)

const (
	displayLayout = "01-02 15:04"
	dayLayout     = "2006-01-02"
)

// minPlausible rejects zero-ish dates produced by broken upstream feeds.
var minPlausible = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Normalize returns the UTC instant of an entry's structured publish time and
// its JST display string. A nil, zero or implausible time falls back to now.
//
// The structured time is already an absolute instant, so it is only ever
// converted with UTC(). Reinterpreting its wall clock in the host zone shifts
// the result by the host's offset.
func Normalize(published *time.Time, now time.Time) (time.Time, string) {
	instant := now
	if published != nil && !published.IsZero() && !published.Before(minPlausible) {
		instant = *published
	}
	instant = instant.UTC().Truncate(time.Second)
	return instant, Display(instant)
}

// Display renders t as MM-DD HH:MM in JST.
func Display(t time.Time) string {
	return t.In(Zone).Format(displayLayout)
}

// DayKey returns the JST calendar date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.In(Zone).Format(dayLayout)
}

// ParseDay parses a YYYY-MM-DD key as midnight JST.
func ParseDay(key string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, key, Zone)
}

// Days returns n day keys ending at anchor's JST date, newest first.
func Days(anchor time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	a := anchor.In(Zone)
	midnight := time.Date(a.Year(), a.Month(), a.Day(), 12, 0, 0, 0, Zone)
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, midnight.AddDate(0, 0, -i).Format(dayLayout))
	}
	return keys
}
