package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
)

const defaultNotificationLimit = 50

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByStudent(ctx context.Context, studentID string, unreadOnly bool, limit int) ([]models.NotificationDetail, error)
	CountUnread(ctx context.Context, studentID string) (int, error)
	MarkRead(ctx context.Context, id, studentID string) (int64, error)
	MarkAllRead(ctx context.Context, studentID string) (int64, error)
}

// NotificationService surfaces in-app notifications to students.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService builds the service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, unreadOnly bool) ([]models.NotificationDetail, error) {
	notifications, err := s.repo.ListByStudent(ctx, actor.UserID, unreadOnly, defaultNotificationLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// UnreadCount returns how many of the caller's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, actor *models.JWTClaims) (int, error) {
	count, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor *models.JWTClaims, id string) error {
	affected, err := s.repo.MarkRead(ctx, id, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.JWTClaims) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return affected, nil
}
