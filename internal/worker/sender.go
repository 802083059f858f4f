package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/db"
)

// Sender delivers one nudge email for a stale unread reminder.
type Sender interface {
	Send(ctx context.Context, c *db.NudgeCandidate) error
}

// LogSender logs nudges instead of sending them (for development and tests).
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, c *db.NudgeCandidate) error {
	s.logger.Info("nudge sent",
		zap.String("reminder_id", c.ID.String()),
		zap.String("owner_id", c.OwnerID.String()),
		zap.String("to", c.OwnerEmail),
		zap.String("priority", c.Priority),
	)
	return nil
}
