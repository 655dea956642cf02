package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 9 * * *"    - every day at 09:00
//   - "59 23 * * 0"  - every Sunday at 23:59
type CronExpression struct {
	raw      string
	location *time.Location

	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)

	// Restricted day fields combine with OR, as in classic cron.
	daysRestricted     bool
	weekdaysRestricted bool
}

// ParseCronExpression parses expr, evaluated in loc (nil means UTC).
// Supports *, */n, n, n-m, n-m/s and comma lists of those.
func ParseCronExpression(expr string, loc *time.Location) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}
	if loc == nil {
		loc = time.UTC
	}

	ce := &CronExpression{
		raw:                expr,
		location:           loc,
		daysRestricted:     fields[2] != "*",
		weekdaysRestricted: fields[4] != "*",
	}

	specs := []struct {
		name     string
		field    string
		min, max int
		dst      *[]int
	}{
		{"minute", fields[0], 0, 59, &ce.minutes},
		{"hour", fields[1], 0, 23, &ce.hours},
		{"day", fields[2], 1, 31, &ce.days},
		{"month", fields[3], 1, 12, &ce.months},
		{"weekday", fields[4], 0, 7, &ce.weekdays},
	}

	for _, s := range specs {
		values, err := parseField(s.field, s.min, s.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", s.name, err)
		}
		*s.dst = values
	}

	// 7 is an alias for Sunday.
	for i, wd := range ce.weekdays {
		if wd == 7 {
			ce.weekdays[i] = 0
		}
	}
	slices.Sort(ce.weekdays)
	ce.weekdays = slices.Compact(ce.weekdays)

	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string, loc *time.Location) *CronExpression {
	ce, err := ParseCronExpression(expr, loc)
	if err != nil {
		panic(err)
	}
	return ce
}

// parseField parses one comma-separated cron field.
func parseField(field string, min, max int) ([]int, error) {
	var result []int

	for _, part := range strings.Split(field, ",") {
		values, err := parseRange(part, min, max)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}

	slices.Sort(result)
	return slices.Compact(result), nil
}

// parseRange parses *, n, n-m with an optional /step.
func parseRange(part string, min, max int) ([]int, error) {
	if part == "" {
		return nil, fmt.Errorf("empty value")
	}

	step := 1
	if base, stepStr, ok := strings.Cut(part, "/"); ok {
		s, err := strconv.Atoi(stepStr)
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepStr)
		}
		step = s
		part = base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = atoiInRange(lo, min, max); err != nil {
			return nil, err
		}
		if end, err = atoiInRange(hi, min, max); err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range: %s", part)
		}
	default:
		v, err := atoiInRange(part, min, max)
		if err != nil {
			return nil, err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	var values []int
	for i := start; i <= end; i += step {
		values = append(values, i)
	}
	return values, nil
}

func atoiInRange(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Location returns the zone the expression is evaluated in.
func (ce *CronExpression) Location() *time.Location {
	return ce.location
}

// Next returns the first matching minute strictly after t, in the
// expression's location. It returns the zero time if nothing matches
// within four years (e.g. "0 0 30 2 *").
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.In(ce.location).Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !slices.Contains(ce.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, ce.location)
			continue
		}
		if !ce.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, ce.location)
			continue
		}
		if !slices.Contains(ce.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, ce.location)
			continue
		}
		if !slices.Contains(ce.minutes, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}

	return time.Time{}
}

func (ce *CronExpression) dayMatches(t time.Time) bool {
	dom := slices.Contains(ce.days, t.Day())
	dow := slices.Contains(ce.weekdays, int(t.Weekday()))

	if ce.daysRestricted && ce.weekdaysRestricted {
		return dom || dow
	}
	return dom && dow
}
