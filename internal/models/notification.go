package models

import "time"

// NotificationType categorises a student-facing notification.
type NotificationType string

const (
	NotificationTypeRemoved NotificationType = "removed"
	NotificationTypeLocked  NotificationType = "locked"
	NotificationTypeSystem  NotificationType = "system"
)

// Notification is a student-facing message tied to a registration change.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Type      NotificationType `db:"type" json:"type"`
	SessionID *string          `db:"session_id" json:"session_id,omitempty"`
	FlexDate  *time.Time       `db:"flex_date" json:"flex_date,omitempty"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationDetail enriches a notification with session context when present.
type NotificationDetail struct {
	Notification
	SessionTitle *string `db:"session_title" json:"session_title,omitempty"`
	RoomNumber   *string `db:"room_number" json:"room_number,omitempty"`
	TeacherName  *string `db:"teacher_name" json:"teacher_name,omitempty"`
}
