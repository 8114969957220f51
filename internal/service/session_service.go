package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
	"github.com/flextime-hq/flextime-api/pkg/export"
)

// recurring session creation expands across at most this many future
// flex dates of the same type.
const maxRecurringExpansion = 20

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error)
	Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.SessionDetail, error)
	ListByDateForGrade(ctx context.Context, date time.Time, grade int) ([]models.SessionDetail, error)
	ListByTeacherFromDate(ctx context.Context, teacherID string, from time.Time) ([]models.SessionDetail, error)
	ExistsForTeacherOnDate(ctx context.Context, teacherID string, date time.Time) (bool, error)
	CountEnrolled(ctx context.Context, sessionID string) (int, error)
	CreateBatch(ctx context.Context, sessions []*models.Session) error
	Update(ctx context.Context, session *models.Session) error
	DeleteCascade(ctx context.Context, sessionID string) ([]string, error)
	CreateTemplate(ctx context.Context, tmpl *models.SessionTemplate) error
	FindTemplateByID(ctx context.Context, id string) (*models.SessionTemplate, error)
	ListTemplatesByTeacher(ctx context.Context, teacherID string) ([]models.SessionTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

type sessionFlexDateReader interface {
	FindByDate(ctx context.Context, date time.Time) (*models.FlexDate, error)
	ListFutureByType(ctx context.Context, after time.Time, flexType models.FlexType, limit int) ([]models.FlexDate, error)
}

type sessionRegistrationReader interface {
	FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.Registration, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

type sessionUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateSessionRequest is the teacher payload for offering a session.
// Recurring expands the offering onto future flex dates sharing the same
// flex type; dates where the teacher already has a session are skipped.
type CreateSessionRequest struct {
	Date            string  `json:"date" validate:"required"`
	TeacherID       string  `json:"teacher_id,omitempty" validate:"omitempty,uuid4"`
	RoomNumber      string  `json:"room_number" validate:"required,max=20"`
	Capacity        int     `json:"capacity" validate:"required,min=1,max=500"`
	Title           string  `json:"title" validate:"required,max=120"`
	LongDescription *string `json:"long_description,omitempty"`
	AllowedGrades   []int   `json:"allowed_grades" validate:"required,min=1,dive,min=9,max=12"`
	Recurring       bool    `json:"recurring"`
	FromTemplateID  *string `json:"from_template_id,omitempty" validate:"omitempty,uuid4"`
	SaveAsTemplate  *string `json:"save_as_template,omitempty" validate:"omitempty,max=60"`
}

// UpdateSessionRequest mutates an existing session.
type UpdateSessionRequest struct {
	RoomNumber      *string `json:"room_number,omitempty" validate:"omitempty,max=20"`
	Capacity        *int    `json:"capacity,omitempty" validate:"omitempty,min=1,max=500"`
	Title           *string `json:"title,omitempty" validate:"omitempty,max=120"`
	LongDescription *string `json:"long_description,omitempty"`
	AllowedGrades   []int   `json:"allowed_grades,omitempty" validate:"omitempty,min=1,dive,min=9,max=12"`
}

// SessionService manages session offerings, templates, and rosters.
type SessionService struct {
	sessions      sessionRepository
	flexDates     sessionFlexDateReader
	registrations sessionRegistrationReader
	users         sessionUserReader
	notifications notificationWriter
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewSessionService builds the service.
func NewSessionService(
	sessions sessionRepository,
	flexDates sessionFlexDateReader,
	registrations sessionRegistrationReader,
	users sessionUserReader,
	notifications notificationWriter,
	validate *validator.Validate,
	logger *zap.Logger,
) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:      sessions,
		flexDates:     flexDates,
		registrations: registrations,
		users:         users,
		notifications: notifications,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

func toGradeArray(grades []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(grades))
	for _, g := range grades {
		arr = append(arr, int64(g))
	}
	return arr
}

// Create offers one or more sessions. Admins may create on behalf of a
// teacher via TeacherID; teachers always create their own.
func (s *SessionService) Create(ctx context.Context, actor *models.JWTClaims, req CreateSessionRequest) ([]models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	teacherID := actor.UserID
	if req.TeacherID != "" {
		if actor.Role != models.RoleAdmin && req.TeacherID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Only admins can create sessions for another teacher")
		}
		teacherID = req.TeacherID
	}

	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Sessions must belong to a teacher")
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	flexDate, err := s.flexDates.FindByDate(ctx, day)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "No flex period is scheduled on this date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load flex date")
	}

	base := models.Session{
		TeacherID:     teacherID,
		RoomNumber:    req.RoomNumber,
		Capacity:      req.Capacity,
		Title:         req.Title,
		AllowedGrades: toGradeArray(req.AllowedGrades),
	}
	if req.LongDescription != nil {
		base.LongDescription = req.LongDescription
	}

	if req.FromTemplateID != nil {
		tmpl, err := s.sessions.FindTemplateByID(ctx, *req.FromTemplateID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "session template not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
		}
		if tmpl.TeacherID != teacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only use your own templates")
		}
		base.CreatedFromTemplateID = &tmpl.ID
	}

	targetDates := []time.Time{day}
	if req.Recurring {
		future, err := s.flexDates.ListFutureByType(ctx, day, flexDate.FlexType, maxRecurringExpansion)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expand recurring session")
		}
		for _, fd := range future {
			targetDates = append(targetDates, fd.Date)
		}
	}

	batch := make([]*models.Session, 0, len(targetDates))
	for _, target := range targetDates {
		exists, err := s.sessions.ExistsForTeacherOnDate(ctx, teacherID, target)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing session")
		}
		if exists {
			if target.Equal(day) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "You already have a session on this date")
			}
			// recurring expansion silently skips occupied dates
			continue
		}
		session := base
		session.Date = target
		batch = append(batch, &session)
	}
	if len(batch) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "You already have a session on this date")
	}

	if err := s.sessions.CreateBatch(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	if req.SaveAsTemplate != nil && strings.TrimSpace(*req.SaveAsTemplate) != "" {
		tmpl := &models.SessionTemplate{
			TeacherID:       teacherID,
			Name:            strings.TrimSpace(*req.SaveAsTemplate),
			RoomNumber:      base.RoomNumber,
			Capacity:        base.Capacity,
			Title:           base.Title,
			LongDescription: base.LongDescription,
			AllowedGrades:   base.AllowedGrades,
		}
		if err := s.sessions.CreateTemplate(ctx, tmpl); err != nil {
			s.logger.Sugar().Warnw("failed to save session template", "teacher_id", teacherID, "error", err)
		}
	}

	created := make([]models.Session, 0, len(batch))
	for _, session := range batch {
		created = append(created, *session)
	}
	return created, nil
}

// Get returns a session with teacher details.
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	detail, err := s.sessions.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return detail, nil
}

// Available lists the sessions a caller can see for one flex date.
// Students only see sessions open to their grade, annotated with
// enrollment and their own registration.
func (s *SessionService) Available(ctx context.Context, actor *models.JWTClaims, date string) ([]models.AvailableSession, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	var details []models.SessionDetail
	if actor.Role == models.RoleStudent {
		student, err := s.users.FindByID(ctx, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if student.Grade == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Your account has no grade level assigned")
		}
		details, err = s.sessions.ListByDateForGrade(ctx, day, *student.Grade)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
		}
	} else {
		details, err = s.sessions.ListByDate(ctx, day)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
		}
	}

	var mine *models.Registration
	if actor.Role == models.RoleStudent {
		mine, err = s.registrations.FindByStudentAndDate(ctx, actor.UserID, day)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
		}
	}

	available := make([]models.AvailableSession, 0, len(details))
	for _, detail := range details {
		enrolled, err := s.registrations.CountBySession(ctx, detail.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollment")
		}
		entry := models.AvailableSession{
			SessionDetail: detail,
			Enrolled:      enrolled,
			IsFull:        enrolled >= detail.Capacity,
		}
		if mine != nil && mine.SessionID == detail.ID {
			entry.MyRegistration = mine
		}
		available = append(available, entry)
	}
	return available, nil
}

// Mine lists the acting teacher's sessions from today forward.
func (s *SessionService) Mine(ctx context.Context, actor *models.JWTClaims) ([]models.SessionDetail, error) {
	sessions, err := s.sessions.ListByTeacherFromDate(ctx, actor.UserID, dateOnly(s.now().UTC()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Roster returns a session with its registered students. Owner or admin.
func (s *SessionService) Roster(ctx context.Context, actor *models.JWTClaims, id string) (*models.SessionRoster, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.TeacherID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only view the roster of your own sessions")
	}

	entries, err := s.sessions.Roster(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return &models.SessionRoster{SessionDetail: *detail, Registrations: entries}, nil
}

// ExportRoster renders the roster as CSV or PDF bytes plus a filename.
func (s *SessionService) ExportRoster(ctx context.Context, actor *models.JWTClaims, id, format string) ([]byte, string, error) {
	roster, err := s.Roster(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}

	data := export.Dataset{
		Headers: []string{"Student", "Email", "Grade", "Homeroom", "Status"},
	}
	for _, entry := range roster.Registrations {
		grade := ""
		if entry.Grade != nil {
			grade = strconv.Itoa(*entry.Grade)
		}
		homeroom := ""
		if entry.Homeroom != nil {
			homeroom = *entry.Homeroom
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student":  entry.StudentName,
			"Email":    entry.StudentEmail,
			"Grade":    grade,
			"Homeroom": homeroom,
			"Status":   string(entry.Status),
		})
	}

	stamp := roster.Date.Format("2006-01-02")
	switch strings.ToLower(format) {
	case "", "csv":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return payload, fmt.Sprintf("roster-%s.csv", stamp), nil
	case "pdf":
		title := fmt.Sprintf("%s - %s", roster.Title, roster.Date.Format("January 2, 2006"))
		payload, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return payload, fmt.Sprintf("roster-%s.pdf", stamp), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// Update mutates a session. Owner or admin; capacity can never drop
// below current enrollment.
func (s *SessionService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateSessionRequest) (*models.SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.TeacherID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only edit your own sessions")
	}

	if req.Capacity != nil {
		enrolled, err := s.sessions.CountEnrolled(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollment")
		}
		if *req.Capacity < enrolled {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("Capacity cannot be lower than current enrollment (%d)", enrolled))
		}
		session.Capacity = *req.Capacity
	}
	if req.RoomNumber != nil {
		session.RoomNumber = *req.RoomNumber
	}
	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.LongDescription != nil {
		session.LongDescription = req.LongDescription
	}
	if len(req.AllowedGrades) > 0 {
		session.AllowedGrades = toGradeArray(req.AllowedGrades)
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return s.Get(ctx, id)
}

// Delete cancels a session. Registrations cascade and every displaced
// student gets a notification telling them to pick again.
func (s *SessionService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.TeacherID != actor.UserID && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only delete your own sessions")
	}

	studentIDs, err := s.sessions.DeleteCascade(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}

	day := dateOnly(session.Date)
	for _, studentID := range studentIDs {
		notification := &models.Notification{
			StudentID: studentID,
			Type:      models.NotificationTypeRemoved,
			FlexDate:  &day,
			Message:   fmt.Sprintf("The session %s was cancelled. Please select another session.", session.Title),
		}
		if err := s.notifications.Create(ctx, notification); err != nil {
			s.logger.Sugar().Warnw("failed to create cancellation notification", "student_id", studentID, "error", err)
		}
	}
	return nil
}

// Templates lists the acting teacher's saved session templates.
func (s *SessionService) Templates(ctx context.Context, actor *models.JWTClaims) ([]models.SessionTemplate, error) {
	templates, err := s.sessions.ListTemplatesByTeacher(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// DeleteTemplate removes one of the acting teacher's templates.
func (s *SessionService) DeleteTemplate(ctx context.Context, actor *models.JWTClaims, id string) error {
	tmpl, err := s.sessions.FindTemplateByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if tmpl.TeacherID != actor.UserID && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only delete your own templates")
	}
	if err := s.sessions.DeleteTemplate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	return nil
}
