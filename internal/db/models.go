package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled, per-user notification optionally tied to a task.
//
// Lifecycle: created by the task subsystem with ScheduledFor set and all
// nullable timestamps empty. DeliveredAt is set at most once by the listing
// path; snoozing clears it so the reminder resurfaces as new. DismissedAt is
// terminal: once set, no field changes again.
type Reminder struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	TaskRef      json.RawMessage `json:"task_ref,omitempty"`
	Priority     string          `json:"priority"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
	SnoozedUntil *time.Time      `json:"snoozed_until,omitempty"`
	ReadAt       *time.Time      `json:"read_at,omitempty"`
	DismissedAt  *time.Time      `json:"dismissed_at,omitempty"`
	NudgedAt     *time.Time      `json:"nudged_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Priority constants
const (
	PriorityImportant = "important"
	PriorityNormal    = "normal"
	PriorityGentle    = "gentle"
)

// ValidPriority reports whether p is one of the three reminder priorities.
func ValidPriority(p string) bool {
	return p == PriorityImportant || p == PriorityNormal || p == PriorityGentle
}

// NudgeCandidate is a delivered-but-unread reminder joined with the owner's
// contact address, picked up by the nudge worker.
type NudgeCandidate struct {
	Reminder
	OwnerEmail string `json:"owner_email"`
}
