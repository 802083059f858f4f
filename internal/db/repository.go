package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a reminder does not exist or is not owned by
// the caller. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("reminder not found")

// reminderColumns is the scan order shared by every reminder query.
const reminderColumns = `
	id, owner_id, task_ref, priority, scheduled_for,
	delivered_at, snoozed_until, read_at, dismissed_at, nudged_at,
	created_at, updated_at
`

// Repository handles database operations for reminders
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new reminder repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(
		&rem.ID,
		&rem.OwnerID,
		&rem.TaskRef,
		&rem.Priority,
		&rem.ScheduledFor,
		&rem.DeliveredAt,
		&rem.SnoozedUntil,
		&rem.ReadAt,
		&rem.DismissedAt,
		&rem.NudgedAt,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

// CreateReminder inserts a new reminder into the database
func (r *Repository) CreateReminder(ctx context.Context, rem *Reminder) error {
	query := `
		INSERT INTO reminders (
			id, owner_id, task_ref, priority, scheduled_for
		) VALUES (
			$1, $2, $3, $4, $5
		)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		rem.ID,
		rem.OwnerID,
		rem.TaskRef,
		rem.Priority,
		rem.ScheduledFor,
	).Scan(&rem.CreatedAt, &rem.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return fmt.Errorf("insert reminder: %w", err)
	}

	r.logger.Info("reminder created",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("owner_id", rem.OwnerID.String()),
		zap.String("priority", rem.Priority),
		zap.Time("scheduled_for", rem.ScheduledFor),
	)

	return nil
}

// GetReminder retrieves a reminder by ID, scoped to its owner.
func (r *Repository) GetReminder(ctx context.Context, ownerID, id uuid.UUID) (*Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE id = $1 AND owner_id = $2
	`

	rem, err := scanReminder(r.db.Pool().QueryRow(ctx, query, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get reminder",
			zap.Error(err),
			zap.String("reminder_id", id.String()),
		)
		return nil, fmt.Errorf("query reminder: %w", err)
	}

	return rem, nil
}

// ListVisible returns the owner's reminders that satisfy the visibility
// predicate at the given instant, ordered by priority rank then scheduled_for.
// The ranking is a CASE table: label order is a business rule, not
// lexicographic.
func (r *Repository) ListVisible(ctx context.Context, ownerID uuid.UUID, now time.Time, limit int) ([]*Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE owner_id = $1
		  AND dismissed_at IS NULL
		  AND (
			(scheduled_for <= $2 AND snoozed_until IS NULL)
			OR (snoozed_until IS NOT NULL AND snoozed_until <= $2)
		  )
		ORDER BY
			CASE priority
				WHEN 'important' THEN 0
				WHEN 'normal' THEN 1
				ELSE 2
			END,
			scheduled_for ASC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query visible reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return reminders, nil
}

// MarkDelivered sets delivered_at on the given reminders where it is still
// null. Set-once: rows already delivered or dismissed are left untouched, so
// concurrent callers converge on the same value.
func (r *Repository) MarkDelivered(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE reminders
		SET delivered_at = $3, updated_at = $3
		WHERE owner_id = $1
		  AND id = ANY($2)
		  AND delivered_at IS NULL
		  AND dismissed_at IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, ownerID, ids, now)
	if err != nil {
		r.logger.Error("failed to mark reminders delivered",
			zap.Error(err),
			zap.String("owner_id", ownerID.String()),
		)
		return fmt.Errorf("mark delivered: %w", err)
	}

	if result.RowsAffected() > 0 {
		r.logger.Debug("reminders marked delivered",
			zap.String("owner_id", ownerID.String()),
			zap.Int64("count", result.RowsAffected()),
		)
	}

	return nil
}

// MarkRead sets read_at if it is still null. Repeated calls are no-ops; the
// dismissed guard lives in the WHERE clause so a terminal row never changes.
func (r *Repository) MarkRead(ctx context.Context, ownerID, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE reminders
		SET read_at = COALESCE(read_at, $3), updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND dismissed_at IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, id, ownerID, now)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Dismiss sets dismissed_at if the reminder is not already dismissed.
// Dismissing an already-dismissed reminder affects zero rows, which the
// scheduler treats as a no-op success.
func (r *Repository) Dismiss(ctx context.Context, ownerID, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE reminders
		SET dismissed_at = $3, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND dismissed_at IS NULL
	`

	if _, err := r.db.Pool().Exec(ctx, query, id, ownerID, now); err != nil {
		return fmt.Errorf("dismiss reminder: %w", err)
	}

	return nil
}

// DismissAll dismisses every non-dismissed reminder owned by the caller and
// returns the number of rows retired.
func (r *Repository) DismissAll(ctx context.Context, ownerID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE reminders
		SET dismissed_at = $2, updated_at = $2
		WHERE owner_id = $1 AND dismissed_at IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, ownerID, now)
	if err != nil {
		return 0, fmt.Errorf("dismiss all reminders: %w", err)
	}

	r.logger.Info("reminders dismissed",
		zap.String("owner_id", ownerID.String()),
		zap.Int64("count", result.RowsAffected()),
	)

	return result.RowsAffected(), nil
}

// Snooze sets snoozed_until and clears delivered_at so the reminder re-enters
// the ready state when the snooze elapses. The dismissed guard keeps terminal
// rows immutable.
func (r *Repository) Snooze(ctx context.Context, ownerID, id uuid.UUID, until, now time.Time) error {
	query := `
		UPDATE reminders
		SET snoozed_until = $3, delivered_at = NULL, updated_at = $4
		WHERE id = $1 AND owner_id = $2 AND dismissed_at IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, id, ownerID, until, now)
	if err != nil {
		return fmt.Errorf("snooze reminder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListNudgeCandidates returns reminders delivered before the cutoff that are
// still unread, not dismissed, and have not been nudged, joined with the
// owner's contact address.
func (r *Repository) ListNudgeCandidates(ctx context.Context, deliveredBefore time.Time, limit int) ([]*NudgeCandidate, error) {
	query := `
		SELECT
			r.id, r.owner_id, r.task_ref, r.priority, r.scheduled_for,
			r.delivered_at, r.snoozed_until, r.read_at, r.dismissed_at, r.nudged_at,
			r.created_at, r.updated_at,
			p.email
		FROM reminders r
		JOIN profiles p ON p.owner_id = r.owner_id
		WHERE r.delivered_at IS NOT NULL
		  AND r.delivered_at <= $1
		  AND r.read_at IS NULL
		  AND r.dismissed_at IS NULL
		  AND r.nudged_at IS NULL
		ORDER BY r.delivered_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, deliveredBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query nudge candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*NudgeCandidate
	for rows.Next() {
		var c NudgeCandidate
		err := rows.Scan(
			&c.ID,
			&c.OwnerID,
			&c.TaskRef,
			&c.Priority,
			&c.ScheduledFor,
			&c.DeliveredAt,
			&c.SnoozedUntil,
			&c.ReadAt,
			&c.DismissedAt,
			&c.NudgedAt,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.OwnerEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan nudge candidate: %w", err)
		}
		candidates = append(candidates, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return candidates, nil
}

// MarkNudged records that a nudge was sent for a reminder. Guarded the same
// way as every other write: a dismissed reminder is never touched.
func (r *Repository) MarkNudged(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE reminders
		SET nudged_at = $2, updated_at = $2
		WHERE id = $1 AND nudged_at IS NULL AND dismissed_at IS NULL
	`

	if _, err := r.db.Pool().Exec(ctx, query, id, now); err != nil {
		return fmt.Errorf("mark nudged: %w", err)
	}

	return nil
}
