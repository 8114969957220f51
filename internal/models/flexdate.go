package models

import "time"

// FlexType categorises a flex period.
type FlexType string

const (
	FlexTypeAccess    FlexType = "ACCESS"
	FlexTypeStudyTime FlexType = "STUDY TIME"
)

// ValidFlexType reports whether the given value is a known flex type.
func ValidFlexType(t FlexType) bool {
	return t == FlexTypeAccess || t == FlexTypeStudyTime
}

// Allowed flex period durations in minutes.
var FlexDurations = []int{45, 90}

// ValidFlexDuration reports whether the duration is one of the allowed values.
func ValidFlexDuration(minutes int) bool {
	for _, d := range FlexDurations {
		if minutes == d {
			return true
		}
	}
	return false
}

// FlexDate represents a calendar day with a designated flexible-time period.
// IsLocked freezes all registration changes for the date administratively.
type FlexDate struct {
	ID                string    `db:"id" json:"id"`
	Date              time.Time `db:"date" json:"date"`
	FlexType          FlexType  `db:"flex_type" json:"flex_type"`
	DurationMinutes   int       `db:"duration_minutes" json:"duration_minutes"`
	SelectionDeadline time.Time `db:"selection_deadline" json:"selection_deadline"`
	IsLocked          bool      `db:"is_locked" json:"is_locked"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// FlexDateOverview enriches FlexDate with aggregate counts for the admin list.
type FlexDateOverview struct {
	FlexDate
	SessionCount      int `db:"session_count" json:"session_count"`
	RegistrationCount int `db:"registration_count" json:"registration_count"`
}

// UpcomingFlexDate is a flex date annotated with the caller's registration.
type UpcomingFlexDate struct {
	FlexDate
	TotalSessions      int                 `json:"total_sessions"`
	StudentsRegistered int                 `json:"students_registered"`
	MyRegistration     *RegistrationDetail `json:"my_registration,omitempty"`
}
