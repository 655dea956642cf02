// Package timeutil resolves league time windows: the 09:00-to-09:00 game day
// and the Monday-to-Sunday game week, both in a fixed civil timezone.
// Every function takes the location explicitly and has no hidden state.
package timeutil

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the league timezone used when none is configured.
const DefaultTimezone = "Europe/Zagreb"

// GameDayOpenHour is the local hour at which a new game day opens.
const GameDayOpenHour = 9

// WeeklyCloseCron fires once the game week has closed (Sunday 23:59 local).
const WeeklyCloseCron = "59 23 * * 0"

// DateLayout is the wire format for week_start dates.
const DateLayout = "2006-01-02"

// LoadLocation loads a timezone by IANA name; empty means DefaultTimezone.
// The tz database is embedded, so only unknown names fail.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// MustLoadLocation is LoadLocation for names known at compile time.
func MustLoadLocation(name string) *time.Location {
	loc, err := LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Now returns the current time in loc.
func Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// ──────────────────────────────────────────────────────────────────────────────
// GAME DAY
// ──────────────────────────────────────────────────────────────────────────────

// GameDayStart returns the most recent 09:00 boundary at or before t.
// Before 09:00 local the boundary belongs to the previous calendar day.
func GameDayStart(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	open := time.Date(l.Year(), l.Month(), l.Day(), GameDayOpenHour, 0, 0, 0, loc)
	if l.Before(open) {
		open = open.AddDate(0, 0, -1)
	}
	return open
}

// GameDayEnd returns the exclusive end of t's game day.
func GameDayEnd(t time.Time, loc *time.Location) time.Time {
	return GameDayStart(t, loc).AddDate(0, 0, 1)
}

// IsBeforeOpening reports whether t falls before today's 09:00 opening.
func IsBeforeOpening(t time.Time, loc *time.Location) bool {
	return t.In(loc).Hour() < GameDayOpenHour
}

// OpeningTime returns today's opening time for t's calendar day.
func OpeningTime(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).Add(GameDayOpenHour * time.Hour)
}

// GameDaysBetween counts game-day boundaries crossed from a to b.
// It is negative when b is earlier than a.
func GameDaysBetween(a, b time.Time, loc *time.Location) int {
	da := GameDayStart(a, loc)
	db := GameDayStart(b, loc)
	// Calendar arithmetic keeps DST transitions from skewing the count.
	ya, ma, dda := da.Date()
	yb, mb, ddb := db.Date()
	ua := time.Date(ya, ma, dda, 0, 0, 0, 0, time.UTC)
	ub := time.Date(yb, mb, ddb, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// ExpectedGameNumber projects the game number for now from the latest known
// game and the time it was submitted. One game is published per game day.
func ExpectedGameNumber(latestGame int, latestAt, now time.Time, loc *time.Location) int {
	return latestGame + GameDaysBetween(latestAt, now, loc)
}

// ──────────────────────────────────────────────────────────────────────────────
// GAME WEEK
// ──────────────────────────────────────────────────────────────────────────────

// StartOfWeek returns Monday 00:00 local of t's week.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	weekday := int(l.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(l.AddDate(0, 0, -(weekday-1)), loc)
}

// WeekEnd returns the exclusive end of the week that starts at weekStart.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}

// PreviousWeekStart returns Monday 00:00 of the week before t's week.
func PreviousWeekStart(t time.Time, loc *time.Location) time.Time {
	return StartOfWeek(t, loc).AddDate(0, 0, -7)
}

// ParseWeekStart parses a YYYY-MM-DD date in loc and normalizes it to the
// Monday of that week.
func ParseWeekStart(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week start %q: %w", s, err)
	}
	return StartOfWeek(d, loc), nil
}

// FormatDate renders t as dd.mm.yyyy for chat replies.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// WeekRange renders "Mon – Sun" of the week that starts at weekStart.
func WeekRange(weekStart time.Time) string {
	return fmt.Sprintf("%s - %s", FormatDate(weekStart), FormatDate(weekStart.AddDate(0, 0, 6)))
}
