package scheduler

import (
	"errors"
	"time"
)

// Snooze durations accepted by the API. The set is closed: anything else is
// an input-validation failure, never silently defaulted.
const (
	SnoozeTenMinutes      = "10min"
	SnoozeThirtyMinutes   = "30min"
	SnoozeOneHour         = "1hour"
	SnoozeAfterLunch      = "after_lunch"
	SnoozeTomorrowMorning = "tomorrow_morning"
)

const (
	lunchHour   = 13
	morningHour = 9
)

// ErrUnknownDuration is returned when a snooze duration is not one of the
// enumerated values.
var ErrUnknownDuration = errors.New("unknown snooze duration")

// SnoozeUntil computes the instant a snoozed reminder resurfaces. Relative
// durations are plain offsets from now; after_lunch and tomorrow_morning are
// anchored to the local calendar of the supplied clock value.
func SnoozeUntil(duration string, now time.Time) (time.Time, error) {
	switch duration {
	case SnoozeTenMinutes:
		return now.Add(10 * time.Minute), nil
	case SnoozeThirtyMinutes:
		return now.Add(30 * time.Minute), nil
	case SnoozeOneHour:
		return now.Add(time.Hour), nil
	case SnoozeAfterLunch:
		lunch := time.Date(now.Year(), now.Month(), now.Day(), lunchHour, 0, 0, 0, now.Location())
		if !lunch.After(now) {
			// Lunch already passed, roll to tomorrow.
			lunch = lunch.AddDate(0, 0, 1)
		}
		return lunch, nil
	case SnoozeTomorrowMorning:
		morning := time.Date(now.Year(), now.Month(), now.Day(), morningHour, 0, 0, 0, now.Location())
		return morning.AddDate(0, 0, 1), nil
	default:
		return time.Time{}, ErrUnknownDuration
	}
}
