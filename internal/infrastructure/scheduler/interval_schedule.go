package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires on multiples of Interval counted from the zero
// time, so a restart keeps the same ticks.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) (*IntervalSchedule, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval %s is shorter than one second", interval)
	}
	return &IntervalSchedule{Interval: interval}, nil
}

// Next returns the first tick strictly after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Truncate(s.Interval).Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
