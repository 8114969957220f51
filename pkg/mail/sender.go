package mail

import (
	"context"
	"time"
)

// SendRequest describes a single outbound email.
type SendRequest struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

// SendResult reports the provider acknowledgement for a send.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers emails through a provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
