package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flextime-hq/flextime-api/internal/models"
)

// NotificationRepository provides persistence for student notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO notifications (id, student_id, type, session_id, flex_date, message, read, created_at)
VALUES (:id, :student_id, :type, :session_id, :flex_date, :message, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByStudent returns a student's notifications, newest first. Session
// context is joined when the referenced session still exists.
func (r *NotificationRepository) ListByStudent(ctx context.Context, studentID string, unreadOnly bool, limit int) ([]models.NotificationDetail, error) {
	query := `SELECT n.*, s.title AS session_title, s.room_number, t.full_name AS teacher_name
FROM notifications n
LEFT JOIN sessions s ON s.id = n.session_id
LEFT JOIN users t ON t.id = s.teacher_id
WHERE n.student_id = $1`
	if unreadOnly {
		query += ` AND NOT n.read`
	}
	query += ` ORDER BY n.created_at DESC LIMIT $2`

	var notifications []models.NotificationDetail
	if err := r.db.SelectContext(ctx, &notifications, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread returns the student's unread notification count.
func (r *NotificationRepository) CountUnread(ctx context.Context, studentID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM notifications WHERE student_id = $1 AND NOT read`
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read, scoped to the owning student.
// Returns the number of rows affected so callers can distinguish a miss.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, studentID string) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1 AND student_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, studentID)
	if err != nil {
		return 0, fmt.Errorf("mark notification read: %w", err)
	}
	return result.RowsAffected()
}

// MarkAllRead marks every unread notification for the student as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, studentID string) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE WHERE student_id = $1 AND NOT read`
	result, err := r.db.ExecContext(ctx, query, studentID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.RowsAffected()
}
