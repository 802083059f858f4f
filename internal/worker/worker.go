// Package worker runs the background nudge loop: reminders that were
// delivered but left unread past a threshold get one email nudge.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/db"
	"github.com/tendhq/tend/internal/metrics"
)

type Repository interface {
	ListNudgeCandidates(ctx context.Context, deliveredBefore time.Time, limit int) ([]*db.NudgeCandidate, error)
	MarkNudged(ctx context.Context, id uuid.UUID, now time.Time) error
}

type Worker struct {
	repo   Repository
	sender Sender
	config Config
	logger *zap.Logger
	now    func() time.Time
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	NudgeAfter   time.Duration // how long a delivered reminder may sit unread
}

func New(repo Repository, sender Sender, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 25
	}
	if cfg.NudgeAfter == 0 {
		cfg.NudgeAfter = 4 * time.Hour
	}

	return &Worker{
		repo:   repo,
		sender: sender,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("nudge worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	cutoff := w.now().Add(-w.config.NudgeAfter)

	candidates, err := w.repo.ListNudgeCandidates(ctx, cutoff, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to list nudge candidates", zap.Error(err))
		return
	}
	if len(candidates) == 0 {
		return
	}

	w.logger.Debug("processing nudge batch", zap.Int("count", len(candidates)))

	for _, c := range candidates {
		w.processCandidate(ctx, c)
	}
}

func (w *Worker) processCandidate(ctx context.Context, c *db.NudgeCandidate) {
	if err := w.sender.Send(ctx, c); err != nil {
		// nudged_at stays null, so the candidate is retried next poll.
		w.logger.Error("failed to send nudge",
			zap.Error(err),
			zap.String("reminder_id", c.ID.String()),
		)
		metrics.RecordNudgeSent("failed")
		return
	}

	if err := w.repo.MarkNudged(ctx, c.ID, w.now()); err != nil {
		w.logger.Error("failed to mark reminder nudged",
			zap.Error(err),
			zap.String("reminder_id", c.ID.String()),
		)
		return
	}

	metrics.RecordNudgeSent("sent")
}
