package models

import "time"

// RegistrationStatus represents the lifecycle of a registration.
type RegistrationStatus string

// Possible registration statuses. A locked registration can only be
// released by the locking teacher or an admin.
const (
	RegistrationStatusSelected RegistrationStatus = "selected"
	RegistrationStatusLocked   RegistrationStatus = "locked"
	RegistrationStatusAssigned RegistrationStatus = "assigned"
)

// Registration links one student to one session for one flex date.
// At most one registration exists per (student, date).
type Registration struct {
	ID                string             `db:"id" json:"id"`
	SessionID         string             `db:"session_id" json:"session_id"`
	StudentID         string             `db:"student_id" json:"student_id"`
	Date              time.Time          `db:"date" json:"date"`
	Status            RegistrationStatus `db:"status" json:"status"`
	LockedByTeacherID *string            `db:"locked_by_teacher_id" json:"locked_by_teacher_id,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
}

// RegistrationDetail enriches Registration with session and people info.
type RegistrationDetail struct {
	Registration
	SessionTitle      string    `db:"session_title" json:"session_title"`
	RoomNumber        string    `db:"room_number" json:"room_number"`
	TeacherID         string    `db:"teacher_id" json:"teacher_id"`
	TeacherName       string    `db:"teacher_name" json:"teacher_name"`
	StudentName       string    `db:"student_name" json:"student_name"`
	StudentEmail      string    `db:"student_email" json:"student_email"`
	FlexType          FlexType  `db:"flex_type" json:"flex_type"`
	DurationMinutes   int       `db:"duration_minutes" json:"duration_minutes"`
	SelectionDeadline time.Time `db:"selection_deadline" json:"selection_deadline"`
}

// LockInfo identifies the teacher holding a lock on a student's date.
type LockInfo struct {
	RegistrationID string `db:"registration_id"`
	SessionID      string `db:"session_id"`
	TeacherID      string `db:"teacher_id"`
	TeacherName    string `db:"teacher_name"`
}
