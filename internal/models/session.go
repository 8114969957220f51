package models

import (
	"time"

	"github.com/lib/pq"
)

// Session is a teacher-run activity offered on a specific flex date.
type Session struct {
	ID                    string        `db:"id" json:"id"`
	Date                  time.Time     `db:"date" json:"date"`
	TeacherID             string        `db:"teacher_id" json:"teacher_id"`
	RoomNumber            string        `db:"room_number" json:"room_number"`
	Capacity              int           `db:"capacity" json:"capacity"`
	Title                 string        `db:"title" json:"title"`
	LongDescription       *string       `db:"long_description" json:"long_description,omitempty"`
	AllowedGrades         pq.Int64Array `db:"allowed_grades" json:"allowed_grades"`
	CreatedFromTemplateID *string       `db:"created_from_template_id" json:"created_from_template_id,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// AllowsGrade reports whether the session accepts the given grade level.
func (s *Session) AllowsGrade(grade int) bool {
	for _, g := range s.AllowedGrades {
		if int(g) == grade {
			return true
		}
	}
	return false
}

// SessionDetail enriches Session with teacher info.
type SessionDetail struct {
	Session
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string `db:"teacher_email" json:"teacher_email"`
}

// SessionRoster is a session detail plus its registered students.
type SessionRoster struct {
	SessionDetail
	Registrations []RosterEntry `json:"registrations"`
}

// RosterEntry describes one registered student on a session roster.
type RosterEntry struct {
	RegistrationID    string             `db:"registration_id" json:"registration_id"`
	Status            RegistrationStatus `db:"status" json:"status"`
	LockedByTeacherID *string            `db:"locked_by_teacher_id" json:"locked_by_teacher_id,omitempty"`
	StudentID         string             `db:"student_id" json:"student_id"`
	StudentName       string             `db:"student_name" json:"student_name"`
	StudentEmail      string             `db:"student_email" json:"student_email"`
	Grade             *int               `db:"grade" json:"grade,omitempty"`
	Homeroom          *string            `db:"homeroom" json:"homeroom,omitempty"`
}

// AvailableSession is a session annotated for the selection screen.
type AvailableSession struct {
	SessionDetail
	Enrolled       int           `json:"enrolled"`
	IsFull         bool          `json:"is_full"`
	MyRegistration *Registration `json:"my_registration,omitempty"`
}

// SessionTemplate stores a reusable session definition for a teacher.
type SessionTemplate struct {
	ID              string        `db:"id" json:"id"`
	TeacherID       string        `db:"teacher_id" json:"teacher_id"`
	Name            string        `db:"name" json:"name"`
	RoomNumber      string        `db:"room_number" json:"room_number"`
	Capacity        int           `db:"capacity" json:"capacity"`
	Title           string        `db:"title" json:"title"`
	LongDescription *string       `db:"long_description" json:"long_description,omitempty"`
	AllowedGrades   pq.Int64Array `db:"allowed_grades" json:"allowed_grades"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}
