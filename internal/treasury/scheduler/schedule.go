package scheduler

import (
	"fmt"
	"time"
)

// Schedule describes a weekly wall-clock payout slot, e.g. Friday 17:00 UTC.
// Next is pure so the run loop and the persisted next-payout timestamp can
// never disagree.
type Schedule struct {
	Weekday  time.Weekday
	Hour     int
	Location *time.Location
}

// NewSchedule validates and builds a weekly schedule.
func NewSchedule(weekday time.Weekday, hour int, loc *time.Location) (Schedule, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return Schedule{}, fmt.Errorf("invalid weekday %d", weekday)
	}
	if hour < 0 || hour > 23 {
		return Schedule{}, fmt.Errorf("invalid hour %d", hour)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Schedule{Weekday: weekday, Hour: hour, Location: loc}, nil
}

// Next returns the first scheduled instant strictly after from. A call landing
// exactly on the slot yields the slot one week later.
func (s Schedule) Next(from time.Time) time.Time {
	local := from.In(s.Location)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, 0, 0, 0, s.Location)
	days := (int(s.Weekday) - int(local.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// Description renders the schedule for status responses and logs.
func (s Schedule) Description() string {
	return fmt.Sprintf("%s %02d:00 %s", s.Weekday, s.Hour, s.Location)
}
