package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/db"
)

// SESSender sends nudge emails via AWS SES.
type SESSender struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

func NewSESSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return &SESSender{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

// taskDisplay is the subset of the denormalized task payload the nudge body
// uses. The payload is otherwise opaque to this subsystem.
type taskDisplay struct {
	Title string `json:"title"`
}

// Send emails the owner about a reminder that has sat unread.
func (s *SESSender) Send(ctx context.Context, c *db.NudgeCandidate) error {
	if c.OwnerEmail == "" {
		return fmt.Errorf("nudge candidate %s has no owner email", c.ID)
	}

	subject := "A reminder is waiting for you"
	body := fmt.Sprintf("You have an unread %s reminder from %s.",
		c.Priority, c.ScheduledFor.Format("Mon Jan 2, 15:04"))

	if len(c.TaskRef) > 0 {
		var task taskDisplay
		if err := json.Unmarshal(c.TaskRef, &task); err == nil && task.Title != "" {
			subject = fmt.Sprintf("Reminder: %s", task.Title)
			body = fmt.Sprintf("Your %s reminder %q from %s is still unread.",
				c.Priority, task.Title, c.ScheduledFor.Format("Mon Jan 2, 15:04"))
		}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{c.OwnerEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	s.logger.Info("nudge email sent via SES",
		zap.String("reminder_id", c.ID.String()),
		zap.String("to", c.OwnerEmail),
		zap.String("message_id", *result.MessageId),
	)

	return nil
}
