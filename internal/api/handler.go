package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/db"
	"github.com/tendhq/tend/internal/metrics"
	"github.com/tendhq/tend/internal/redis"
	"github.com/tendhq/tend/internal/scheduler"
)

// SchedulerService is the reminder lifecycle contract the handlers drive.
type SchedulerService interface {
	ListVisible(ctx context.Context, ownerID uuid.UUID) (*scheduler.ListResult, error)
	MarkRead(ctx context.Context, ownerID, id uuid.UUID) error
	Dismiss(ctx context.Context, ownerID, id uuid.UUID) error
	DismissAll(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Snooze(ctx context.Context, ownerID, id uuid.UUID, duration string) (time.Time, error)
}

// ReminderCreator persists new reminders on behalf of the task subsystem.
type ReminderCreator interface {
	CreateReminder(ctx context.Context, rem *db.Reminder) error
}

// CreateReminderRequest represents the incoming request body
type CreateReminderRequest struct {
	Priority     string          `json:"priority"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	TaskRef      json.RawMessage `json:"task_ref,omitempty"`
}

// CreateReminderResponse is returned after creating a reminder
type CreateReminderResponse struct {
	ID string `json:"id"`
}

// ListRemindersResponse is the visible page plus the unread count.
type ListRemindersResponse struct {
	Reminders   []*db.Reminder `json:"reminders"`
	UnreadCount int            `json:"unread_count"`
}

// SnoozeRequest carries the snooze duration label.
type SnoozeRequest struct {
	Duration string `json:"duration"`
}

// SnoozeResponse reports when the reminder resurfaces.
type SnoozeResponse struct {
	SnoozedUntil time.Time `json:"snoozed_until"`
}

// DismissAllResponse reports how many reminders were retired.
type DismissAllResponse struct {
	Dismissed int64 `json:"dismissed"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger      *zap.Logger
	sched       SchedulerService
	creator     ReminderCreator
	idempotency *redis.IdempotencyService // nil if Redis not configured
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, sched SchedulerService, creator ReminderCreator) *Handler {
	return &Handler{
		logger:  logger,
		sched:   sched,
		creator: creator,
	}
}

// NewHandlerWithIdempotency creates a handler with idempotency support
func NewHandlerWithIdempotency(logger *zap.Logger, sched SchedulerService, creator ReminderCreator, idempotency *redis.IdempotencyService) *Handler {
	return &Handler{
		logger:      logger,
		sched:       sched,
		creator:     creator,
		idempotency: idempotency,
	}
}

// ownerID extracts the authenticated owner identity resolved upstream.
func ownerID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.Header.Get("X-User-ID"))
}

// CreateReminder handles POST /v1/reminders.
// Called by the task subsystem when a task's due-date logic produces a
// reminder. Supports dedup via the Idempotency-Key header.
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing owner identity", "X-User-ID header must be a valid UUID")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if !db.ValidPriority(req.Priority) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid priority", "priority must be important, normal, or gentle")
		return
	}

	if req.ScheduledFor.IsZero() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing scheduled_for", "scheduled_for is required")
		return
	}

	if len(req.TaskRef) > 0 && !json.Valid(req.TaskRef) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid task_ref", "task_ref must be valid JSON")
		return
	}

	if idempotencyKey != "" && h.idempotency != nil {
		cachedResult, err := h.idempotency.CheckOrReserve(ctx, owner.String(), idempotencyKey)

		if err != nil {
			if errors.Is(err, redis.ErrDuplicateRequest) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Request is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		} else if cachedResult != nil {
			metrics.RecordIdempotencyHit()
			resp := CreateReminderResponse{ID: cachedResult.ReminderID}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(cachedResult.StatusCode)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
	}

	rem := &db.Reminder{
		ID:           uuid.New(),
		OwnerID:      owner,
		TaskRef:      req.TaskRef,
		Priority:     req.Priority,
		ScheduledFor: req.ScheduledFor,
	}

	if err := h.creator.CreateReminder(ctx, rem); err != nil {
		h.logger.Error("failed to create reminder",
			zap.Error(err),
			zap.String("owner_id", owner.String()),
			zap.String("priority", req.Priority),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create reminder", "")
		return
	}

	metrics.RecordReminderCreated(rem.Priority)

	if idempotencyKey != "" && h.idempotency != nil {
		result := &redis.IdempotencyResult{
			ReminderID: rem.ID.String(),
			StatusCode: http.StatusCreated,
		}
		if err := h.idempotency.Store(ctx, owner.String(), idempotencyKey, result); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	resp := CreateReminderResponse{ID: rem.ID.String()}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// ListReminders handles GET /v1/reminders.
// Listing doubles as delivery marking: every visible reminder without a
// delivered_at gets one before the page is returned.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing owner identity", "X-User-ID header must be a valid UUID")
		return
	}

	result, err := h.sched.ListVisible(ctx, owner)
	if err != nil {
		h.logger.Error("failed to list reminders",
			zap.Error(err),
			zap.String("owner_id", owner.String()),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list reminders", "")
		return
	}

	if result.NewlyDelivered > 0 {
		metrics.RecordRemindersDelivered(result.NewlyDelivered)
	}

	resp := ListRemindersResponse{
		Reminders:   result.Reminders,
		UnreadCount: result.UnreadCount,
	}
	if resp.Reminders == nil {
		resp.Reminders = []*db.Reminder{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// MarkReminderRead handles POST /v1/reminders/{id}/read
func (h *Handler) MarkReminderRead(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	if err := h.sched.MarkRead(r.Context(), owner, id); err != nil {
		h.writeSchedulerError(w, err, "mark read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SnoozeReminder handles POST /v1/reminders/{id}/snooze
func (h *Handler) SnoozeReminder(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req SnoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	until, err := h.sched.Snooze(r.Context(), owner, id, req.Duration)
	if err != nil {
		h.writeSchedulerError(w, err, "snooze")
		return
	}

	metrics.RecordReminderSnoozed(req.Duration)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(SnoozeResponse{SnoozedUntil: until})
}

// DismissReminder handles POST /v1/reminders/{id}/dismiss
func (h *Handler) DismissReminder(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	if err := h.sched.Dismiss(r.Context(), owner, id); err != nil {
		h.writeSchedulerError(w, err, "dismiss")
		return
	}

	metrics.RecordRemindersDismissed(1)

	w.WriteHeader(http.StatusNoContent)
}

// DismissAllReminders handles POST /v1/reminders/dismiss-all
func (h *Handler) DismissAllReminders(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing owner identity", "X-User-ID header must be a valid UUID")
		return
	}

	count, err := h.sched.DismissAll(r.Context(), owner)
	if err != nil {
		h.writeSchedulerError(w, err, "dismiss all")
		return
	}

	if count > 0 {
		metrics.RecordRemindersDismissed(int(count))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(DismissAllResponse{Dismissed: count})
}

func (h *Handler) ownerAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, err := ownerID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing owner identity", "X-User-ID header must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}

	return owner, id, true
}

// writeSchedulerError maps the scheduler's error taxonomy onto HTTP statuses.
// Storage failures propagate as 500s, never retried here.
func (h *Handler) writeSchedulerError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
	case errors.Is(err, scheduler.ErrInvalidState):
		h.writeError(w, http.StatusConflict, "invalid_state", "Reminder state forbids this operation", "the reminder has been dismissed")
	case errors.Is(err, scheduler.ErrUnknownDuration):
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Unknown snooze duration", "duration must be one of 10min, 30min, 1hour, after_lunch, tomorrow_morning")
	default:
		h.logger.Error("scheduler operation failed", zap.Error(err), zap.String("op", op))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Operation failed", "")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
