// Package scheduler owns the reminder lifecycle: due-detection, delivery
// marking, read/dismiss/snooze transitions, and the visibility predicate that
// decides what a client sees right now.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/db"
)

// ErrInvalidState is returned when an operation targets a reminder whose
// state forbids it, e.g. snoozing a dismissed reminder.
var ErrInvalidState = errors.New("reminder is in an invalid state for this operation")

// DefaultPageSize bounds the visible-set page so listing stays O(bounded)
// regardless of backlog size.
const DefaultPageSize = 20

// priorityRank orders the three priority labels for display. The labels do
// not sort alphabetically into the desired order, so the ranking is a table,
// never a string comparison.
var priorityRank = map[string]int{
	db.PriorityImportant: 0,
	db.PriorityNormal:    1,
	db.PriorityGentle:    2,
}

// Clock supplies the current time. Injected so every time-dependent decision
// is deterministic under test.
type Clock func() time.Time

// Store is the persistence contract the scheduler drives. Implementations
// return db.ErrNotFound when an id does not exist or is not owned by the
// caller, and enforce the dismissed guard on every write.
type Store interface {
	GetReminder(ctx context.Context, ownerID, id uuid.UUID) (*db.Reminder, error)
	ListVisible(ctx context.Context, ownerID uuid.UUID, now time.Time, limit int) ([]*db.Reminder, error)
	MarkDelivered(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, now time.Time) error
	MarkRead(ctx context.Context, ownerID, id uuid.UUID, now time.Time) error
	Dismiss(ctx context.Context, ownerID, id uuid.UUID, now time.Time) error
	DismissAll(ctx context.Context, ownerID uuid.UUID, now time.Time) (int64, error)
	Snooze(ctx context.Context, ownerID, id uuid.UUID, until, now time.Time) error
}

// Scheduler implements the reminder state machine over a Store.
type Scheduler struct {
	store    Store
	clock    Clock
	logger   *zap.Logger
	pageSize int
}

// Config holds scheduler tuning knobs.
type Config struct {
	PageSize int
	Clock    Clock
}

// New creates a Scheduler. A nil clock defaults to time.Now.
func New(store Store, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Scheduler{
		store:    store,
		clock:    cfg.Clock,
		logger:   logger,
		pageSize: cfg.PageSize,
	}
}

// Visible reports whether a reminder is currently visible to its owner.
// Pure: derived from stored fields alone.
func Visible(rem *db.Reminder, now time.Time) bool {
	if rem.DismissedAt != nil {
		return false
	}
	if rem.SnoozedUntil != nil {
		return !rem.SnoozedUntil.After(now)
	}
	return !rem.ScheduledFor.After(now)
}

// ListResult is the outcome of listing visible reminders.
type ListResult struct {
	Reminders      []*db.Reminder `json:"reminders"`
	UnreadCount    int            `json:"unread_count"`
	NewlyDelivered int            `json:"-"`
}

// ListVisible computes the owner's visible set and marks every undelivered
// reminder in it as delivered. Two phases sharing one call: first the set is
// computed and ordered, then delivery marks are persisted conditionally
// (set-once-if-null), so repeated calls with an unchanged now are idempotent.
func (s *Scheduler) ListVisible(ctx context.Context, ownerID uuid.UUID) (*ListResult, error) {
	now := s.clock()

	reminders, err := s.store.ListVisible(ctx, ownerID, now, s.pageSize)
	if err != nil {
		return nil, err
	}

	// The store already filters by the predicate; re-check here so an
	// in-memory store with a looser query still yields a correct set.
	visible := reminders[:0]
	for _, rem := range reminders {
		if Visible(rem, now) {
			visible = append(visible, rem)
		}
	}
	sortVisible(visible)
	if len(visible) > s.pageSize {
		visible = visible[:s.pageSize]
	}

	var undelivered []uuid.UUID
	for _, rem := range visible {
		if rem.DeliveredAt == nil {
			undelivered = append(undelivered, rem.ID)
		}
	}

	if len(undelivered) > 0 {
		if err := s.store.MarkDelivered(ctx, ownerID, undelivered, now); err != nil {
			return nil, err
		}
		delivered := now
		for _, rem := range visible {
			if rem.DeliveredAt == nil {
				rem.DeliveredAt = &delivered
			}
		}
		s.logger.Debug("reminders delivered",
			zap.String("owner_id", ownerID.String()),
			zap.Int("count", len(undelivered)),
		)
	}

	unread := 0
	for _, rem := range visible {
		if rem.ReadAt == nil {
			unread++
		}
	}

	return &ListResult{
		Reminders:      visible,
		UnreadCount:    unread,
		NewlyDelivered: len(undelivered),
	}, nil
}

// MarkRead acknowledges a reminder. Already-read reminders are a no-op
// success; dismissed reminders are rejected as invalid-state.
func (s *Scheduler) MarkRead(ctx context.Context, ownerID, id uuid.UUID) error {
	rem, err := s.store.GetReminder(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if rem.DismissedAt != nil {
		return ErrInvalidState
	}
	if rem.ReadAt != nil {
		return nil
	}

	return s.store.MarkRead(ctx, ownerID, id, s.clock())
}

// Dismiss permanently retires a reminder. Terminal and absorbing: repeat
// dismissal is a no-op success, and no later operation mutates the row.
func (s *Scheduler) Dismiss(ctx context.Context, ownerID, id uuid.UUID) error {
	rem, err := s.store.GetReminder(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if rem.DismissedAt != nil {
		return nil
	}

	return s.store.Dismiss(ctx, ownerID, id, s.clock())
}

// DismissAll retires every non-dismissed reminder owned by the caller and
// returns how many were retired.
func (s *Scheduler) DismissAll(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return s.store.DismissAll(ctx, ownerID, s.clock())
}

// Snooze suppresses a reminder until the instant computed from the duration
// label, and clears delivered_at so the reminder resurfaces as new once the
// snooze elapses. Unknown durations and dismissed targets are rejected.
func (s *Scheduler) Snooze(ctx context.Context, ownerID, id uuid.UUID, duration string) (time.Time, error) {
	now := s.clock()

	until, err := SnoozeUntil(duration, now)
	if err != nil {
		return time.Time{}, err
	}

	rem, err := s.store.GetReminder(ctx, ownerID, id)
	if err != nil {
		return time.Time{}, err
	}
	if rem.DismissedAt != nil {
		return time.Time{}, ErrInvalidState
	}

	if err := s.store.Snooze(ctx, ownerID, id, until, now); err != nil {
		return time.Time{}, err
	}

	s.logger.Info("reminder snoozed",
		zap.String("reminder_id", id.String()),
		zap.String("duration", duration),
		zap.Time("until", until),
	)

	return until, nil
}

// sortVisible orders reminders by priority rank, then scheduled_for ascending.
func sortVisible(reminders []*db.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		ri, rj := priorityRank[reminders[i].Priority], priorityRank[reminders[j].Priority]
		if ri != rj {
			return ri < rj
		}
		return reminders[i].ScheduledFor.Before(reminders[j].ScheduledFor)
	})
}
