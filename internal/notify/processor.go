package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/pkg/queue"
)

// Sender delivers one email. Implementations may talk SMTP or a provider
// API; LogSender is the default for environments without a mail relay.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender "delivers" emails to the log only. Keeps the pipeline observable
// until a real relay is configured.
type LogSender struct {
	From   string
	Logger *zap.Logger
}

// Send logs the email instead of delivering it.
func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Logger.Info("email",
		zap.String("from", s.From),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}

// Processor consumes email jobs from the queue, hands them to the sender and
// records every attempt in email_logs.
type Processor struct {
	logs   LogStore
	sender Sender
	queue  *queue.Queue
	logger *zap.Logger
}

// NewProcessor creates an email job processor.
func NewProcessor(logs LogStore, sender Sender, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logs: logs, sender: sender, queue: q, logger: logger}
}

// Process executes one email job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sendErr := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.Body)

	record := RecordParams{
		RecipientEmail: payload.RecipientEmail,
		EmailType:      payload.EmailType,
		Subject:        payload.Subject,
	}
	if sendErr != nil {
		record.Status = models.EmailStatusFailed
		record.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now()
		record.Status = models.EmailStatusSent
		record.SentAt = &now
	}
	if err := p.logs.Record(ctx, record); err != nil {
		p.logger.Error("record email log failed", zap.Error(err), zap.String("job_id", job.ID))
	}

	if sendErr != nil {
		return fmt.Errorf("send email: %w", sendErr)
	}
	p.logger.Info("email job completed",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("recipient", payload.RecipientEmail),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
