package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/pkg/mail"
)

type captureSender struct {
	mu       sync.Mutex
	requests []mail.SendRequest
}

func (s *captureSender) Send(ctx context.Context, req mail.SendRequest) (mail.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return mail.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func (s *captureSender) sent() []mail.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.SendRequest(nil), s.requests...)
}

type failingSender struct{}

func (failingSender) Send(ctx context.Context, req mail.SendRequest) (mail.SendResult, error) {
	return mail.SendResult{}, errors.New("provider unavailable")
}

func TestMailDispatcherDeliversRemovalNotice(t *testing.T) {
	sender := &captureSender{}
	dispatcher := NewMailDispatcher(sender, "flex@school.test", "office@school.test", 1, 4, nil, zap.NewNop())
	dispatcher.Start(context.Background())

	notice := mail.RemovalNotice{
		StudentEmail: "jamie@school.test",
		StudentName:  "Jamie Ortiz",
		SessionTitle: "Robotics Lab",
		TeacherName:  "Ms. Rivera",
		Room:         "214",
		FlexDate:     time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		Deadline:     time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC),
		AppURL:       "https://flex.school.test",
	}
	require.NoError(t, dispatcher.DispatchRemoval(notice))
	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	dispatcher.Stop()

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "flex@school.test", sent[0].From)
	assert.Equal(t, []string{"jamie@school.test"}, sent[0].To)
	assert.Equal(t, "office@school.test", sent[0].ReplyTo)
	assert.Equal(t, "Flex Time Session Update - 3/4/2026", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Robotics Lab")
	assert.Contains(t, sent[0].HTML, "Ms. Rivera")
}

func TestMailDispatcherRejectsBeforeStart(t *testing.T) {
	dispatcher := NewMailDispatcher(&captureSender{}, "flex@school.test", "", 1, 1, nil, zap.NewNop())

	err := dispatcher.DispatchRemoval(mail.RemovalNotice{StudentEmail: "jamie@school.test"})
	assert.Error(t, err)
}

func TestMailDispatcherCountsDeliveries(t *testing.T) {
	metrics := NewMetricsService()
	sender := &captureSender{}
	dispatcher := NewMailDispatcher(sender, "flex@school.test", "", 1, 4, metrics, zap.NewNop())
	dispatcher.Start(context.Background())

	require.NoError(t, dispatcher.DispatchRemoval(mail.RemovalNotice{StudentEmail: "jamie@school.test"}))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.emailsSent) == 1
	}, 2*time.Second, 10*time.Millisecond)
	dispatcher.Stop()

	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.emailsFailed))
}

func TestMailDispatcherCountsFailures(t *testing.T) {
	metrics := NewMetricsService()
	dispatcher := NewMailDispatcher(&failingSender{}, "flex@school.test", "", 1, 4, metrics, zap.NewNop())
	dispatcher.Start(context.Background())

	require.NoError(t, dispatcher.DispatchRemoval(mail.RemovalNotice{StudentEmail: "jamie@school.test"}))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.emailsFailed) == 1
	}, 2*time.Second, 10*time.Millisecond)
	dispatcher.Stop()

	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.emailsSent))
}
