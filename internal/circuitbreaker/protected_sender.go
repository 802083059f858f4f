package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/db"
)

// Sender mirrors the worker.Sender interface to avoid circular imports.
type Sender interface {
	Send(ctx context.Context, c *db.NudgeCandidate) error
}

// ProtectedSender wraps a nudge Sender with a CircuitBreaker. When the mail
// provider starts failing, the circuit opens and sends fail fast; unsent
// nudges stay eligible and are retried on a later worker poll.
type ProtectedSender struct {
	sender  Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts to deliver a nudge through the circuit breaker.
// If the circuit is open, returns ErrCircuitOpen immediately.
func (p *ProtectedSender) Send(ctx context.Context, c *db.NudgeCandidate) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected nudge",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("reminder_id", c.ID.String()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	err := p.sender.Send(ctx, c)
	if err != nil {
		p.breaker.RecordFailure()
		p.logger.Debug("circuit breaker recorded failure",
			zap.String("breaker", p.breaker.config.Name),
			zap.Error(err),
		)
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Breaker returns the underlying circuit breaker for metrics/monitoring.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
