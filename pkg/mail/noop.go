package mail

import (
	"context"
	"fmt"
	"time"
)

// NoopSender acknowledges sends without delivering. Used in development and tests.
type NoopSender struct{}

// NewNoopSender creates a NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send returns a synthetic acknowledgement without delivery.
func (s *NoopSender) Send(_ context.Context, _ SendRequest) (SendResult, error) {
	now := time.Now()
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", now.UnixNano()),
		SentAt:    now,
	}, nil
}
