package dto

// AdminStats is the cached admin overview payload.
type AdminStats struct {
	Users         UserCounts         `json:"users"`
	FlexDates     FlexDateCounts     `json:"flex_dates"`
	Sessions      SessionCounts      `json:"sessions"`
	Registrations RegistrationCounts `json:"registrations"`
}

// UserCounts aggregates user totals per role.
type UserCounts struct {
	Total    int `json:"total"`
	Students int `json:"students"`
	Teachers int `json:"teachers"`
}

// FlexDateCounts aggregates the flex date calendar.
type FlexDateCounts struct {
	Upcoming int `json:"upcoming"`
}

// SessionCounts flags sessions needing attention among upcoming offerings.
type SessionCounts struct {
	OverCapacity int `json:"over_capacity"`
	Empty        int `json:"empty"`
}

// RegistrationCounts covers selection coverage for the next flex date.
type RegistrationCounts struct {
	StudentsWithoutSelection int `json:"students_without_selection"`
}
