package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestSnoozeUntil_RelativeDurations(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		duration string
		want     time.Time
	}{
		{SnoozeTenMinutes, now.Add(10 * time.Minute)},
		{SnoozeThirtyMinutes, now.Add(30 * time.Minute)},
		{SnoozeOneHour, now.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			got, err := SnoozeUntil(tt.duration, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("SnoozeUntil(%s) = %v, want %v", tt.duration, got, tt.want)
			}
		})
	}
}

func TestSnoozeUntil_AfterLunch(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before lunch resolves to today 13:00",
			now:  time.Date(2025, 6, 2, 12, 0, 0, 0, loc),
			want: time.Date(2025, 6, 2, 13, 0, 0, 0, loc),
		},
		{
			name: "after lunch rolls to tomorrow 13:00",
			now:  time.Date(2025, 6, 2, 14, 0, 0, 0, loc),
			want: time.Date(2025, 6, 3, 13, 0, 0, 0, loc),
		},
		{
			name: "exactly 13:00 rolls to tomorrow",
			now:  time.Date(2025, 6, 2, 13, 0, 0, 0, loc),
			want: time.Date(2025, 6, 3, 13, 0, 0, 0, loc),
		},
		{
			name: "just before midnight rolls to tomorrow",
			now:  time.Date(2025, 6, 2, 23, 59, 0, 0, loc),
			want: time.Date(2025, 6, 3, 13, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SnoozeUntil(SnoozeAfterLunch, tt.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnoozeUntil_TomorrowMorning(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name string
		now  time.Time
	}{
		{"early morning", time.Date(2025, 6, 2, 1, 0, 0, 0, loc)},
		{"mid morning before 9", time.Date(2025, 6, 2, 8, 59, 0, 0, loc)},
		{"afternoon", time.Date(2025, 6, 2, 15, 0, 0, 0, loc)},
		{"late night", time.Date(2025, 6, 2, 23, 30, 0, 0, loc)},
	}

	want := time.Date(2025, 6, 3, 9, 0, 0, 0, loc)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SnoozeUntil(SnoozeTomorrowMorning, tt.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// Always the next calendar day at 09:00, regardless of current time.
			if !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestSnoozeUntil_MonthBoundary(t *testing.T) {
	now := time.Date(2025, 6, 30, 22, 0, 0, 0, time.UTC)

	got, err := SnoozeUntil(SnoozeTomorrowMorning, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSnoozeUntil_UnknownDuration(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	for _, duration := range []string{"", "45min", "next_week", "10MIN"} {
		if _, err := SnoozeUntil(duration, now); !errors.Is(err, ErrUnknownDuration) {
			t.Errorf("SnoozeUntil(%q): got %v, want ErrUnknownDuration", duration, err)
		}
	}
}
