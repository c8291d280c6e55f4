package scheduling

import (
	"errors"
	"strings"
	"time"
	// Timezones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"
)

// LocalMinuteLayout is the wall-clock format sent by datetime-local inputs
const LocalMinuteLayout = "2006-01-02T15:04"

var errUnparsableTime = errors.New("unparsable time")

// ParseReviewTime accepts RFC3339, or a wall-clock minute in loc.
func ParseReviewTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(LocalMinuteLayout, raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, errUnparsableTime
}

// LoadLocation resolves an IANA timezone, falling back to UTC when the name
// is unknown to the host tz database.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidTimezone reports whether name loads as an IANA timezone
func ValidTimezone(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// AnchorLocalDay returns hour:minute on the local calendar day of t, in loc.
func AnchorLocalDay(t time.Time, loc *time.Location, hour, minute int) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
}

// StartOfLocalDay is midnight of t's local day
func StartOfLocalDay(t time.Time, loc *time.Location) time.Time {
	return AnchorLocalDay(t, loc, 0, 0)
}

// DueAt is the instant, in UTC, that lies days local days after t's local
// day at hour:minute.
func DueAt(t time.Time, days int, loc *time.Location, hour, minute int) time.Time {
	return Normalize(AnchorLocalDay(t, loc, hour, minute).AddDate(0, 0, days))
}

// LocalDateKey formats t's local calendar date as YYYY-MM-DD
func LocalDateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// Normalize is the canonical stored form of an instant: UTC, whole seconds.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
