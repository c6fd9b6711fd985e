package scheduler

import (
	"testing"
	"time"
)

func TestScheduleNext(t *testing.T) {
	schedule, err := NewSchedule(time.Friday, 17, time.UTC)
	if err != nil {
		t.Fatalf("construct schedule: %v", err)
	}

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "midweek lands on the coming friday",
			from: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), // Monday
			want: time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "friday morning lands the same day",
			from: time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly on the slot moves a full week",
			from: time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 13, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "friday evening moves to next week",
			from: time.Date(2026, 3, 6, 18, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 13, 17, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := schedule.Next(tc.from)
			if !got.Equal(tc.want) {
				t.Fatalf("Next(%v) = %v, want %v", tc.from, got, tc.want)
			}
			if !got.After(tc.from) {
				t.Fatalf("Next must be strictly in the future: %v from %v", got, tc.from)
			}
			if got.Weekday() != time.Friday || got.Hour() != 17 {
				t.Fatalf("Next landed off slot: %v", got)
			}
		})
	}
}

func TestScheduleNextHonorsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	schedule, err := NewSchedule(time.Friday, 17, loc)
	if err != nil {
		t.Fatalf("construct schedule: %v", err)
	}

	from := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	got := schedule.Next(from)
	if got.In(loc).Hour() != 17 || got.In(loc).Weekday() != time.Friday {
		t.Fatalf("Next landed off the local slot: %v", got.In(loc))
	}
}

func TestNewScheduleValidation(t *testing.T) {
	if _, err := NewSchedule(time.Weekday(9), 17, time.UTC); err == nil {
		t.Fatal("expected error for invalid weekday")
	}
	if _, err := NewSchedule(time.Friday, 24, time.UTC); err == nil {
		t.Fatal("expected error for invalid hour")
	}
	schedule, err := NewSchedule(time.Friday, 17, nil)
	if err != nil {
		t.Fatalf("nil location should default to UTC: %v", err)
	}
	if schedule.Location != time.UTC {
		t.Fatalf("location = %v, want UTC", schedule.Location)
	}
}

func TestScheduleDescription(t *testing.T) {
	schedule, err := NewSchedule(time.Friday, 17, time.UTC)
	if err != nil {
		t.Fatalf("construct schedule: %v", err)
	}
	if got := schedule.Description(); got != "Friday 17:00 UTC" {
		t.Fatalf("description = %q", got)
	}
}
