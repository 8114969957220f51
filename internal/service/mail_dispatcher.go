package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/pkg/jobs"
	"github.com/flextime-hq/flextime-api/pkg/mail"
)

const jobTypeRemovalEmail = "removal_email"

// MailDispatcher sends removal notices asynchronously through a worker
// queue so registration changes never block on the email provider.
type MailDispatcher struct {
	sender  mail.Sender
	from    string
	replyTo string
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMailDispatcher builds a dispatcher around the given sender. metrics
// may be nil when instrumentation is disabled.
func NewMailDispatcher(sender mail.Sender, from, replyTo string, workers, queueSize int, metrics *MetricsService, logger *zap.Logger) *MailDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &MailDispatcher{
		sender:  sender,
		from:    from,
		replyTo: replyTo,
		metrics: metrics,
		logger:  logger,
	}
	d.queue = jobs.NewQueue("mail", d.handle, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: queueSize,
		Logger:     logger,
	})
	return d
}

// Start launches the queue workers.
func (d *MailDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *MailDispatcher) Stop() {
	d.queue.Stop()
}

// DispatchRemoval enqueues a removal notice for delivery.
func (d *MailDispatcher) DispatchRemoval(notice mail.RemovalNotice) error {
	return d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeRemovalEmail,
		Payload: notice,
	})
}

func (d *MailDispatcher) handle(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(mail.RemovalNotice)
	if !ok {
		return fmt.Errorf("unexpected payload for %s job", job.Type)
	}

	result, err := d.sender.Send(ctx, mail.SendRequest{
		From:    d.from,
		To:      []string{notice.StudentEmail},
		ReplyTo: d.replyTo,
		Subject: notice.Subject(),
		HTML:    notice.HTML(),
	})
	d.metrics.RecordEmailResult(err == nil)
	if err != nil {
		return fmt.Errorf("send removal notice to %s: %w", notice.StudentEmail, err)
	}

	d.logger.Sugar().Infow("removal notice sent",
		"to", notice.StudentEmail, "message_id", result.MessageID)
	return nil
}
