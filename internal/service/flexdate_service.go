package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
)

type flexDateRepository interface {
	FindByID(ctx context.Context, id string) (*models.FlexDate, error)
	FindByDate(ctx context.Context, date time.Time) (*models.FlexDate, error)
	List(ctx context.Context, from time.Time) ([]models.FlexDateOverview, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.FlexDate, error)
	CountSessionsForDate(ctx context.Context, date time.Time) (int, error)
	Create(ctx context.Context, fd *models.FlexDate) error
	Update(ctx context.Context, fd *models.FlexDate) error
	Delete(ctx context.Context, id string) error
}

type flexDateSessionReader interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.SessionDetail, error)
}

type flexDateRegistrationReader interface {
	FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.Registration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	StudentIDsForDate(ctx context.Context, date time.Time) ([]string, error)
}

type flexDateAuditWriter interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// CreateFlexDateRequest is the admin payload for declaring a flex date.
type CreateFlexDateRequest struct {
	Date              string `json:"date" validate:"required"`
	FlexType          string `json:"flex_type" validate:"required"`
	DurationMinutes   int    `json:"duration_minutes" validate:"required"`
	SelectionDeadline string `json:"selection_deadline" validate:"required"`
}

// UpdateFlexDateRequest mutates an existing flex date. The calendar day
// itself is immutable; delete and recreate to move a flex period.
type UpdateFlexDateRequest struct {
	FlexType          *string `json:"flex_type,omitempty"`
	DurationMinutes   *int    `json:"duration_minutes,omitempty"`
	SelectionDeadline *string `json:"selection_deadline,omitempty"`
	IsLocked          *bool   `json:"is_locked,omitempty"`
}

// FlexDateService manages the flex calendar. Students see the short
// selection window; teachers and admins plan further out, so they get
// the staff window.
type FlexDateService struct {
	flexDates         flexDateRepository
	sessions          flexDateSessionReader
	registrations     flexDateRegistrationReader
	audit             flexDateAuditWriter
	studentWindowDays int
	staffWindowDays   int
	validator         *validator.Validate
	logger            *zap.Logger
	now               func() time.Time
}

// NewFlexDateService builds the service.
func NewFlexDateService(
	flexDates flexDateRepository,
	sessions flexDateSessionReader,
	registrations flexDateRegistrationReader,
	audit flexDateAuditWriter,
	studentWindowDays int,
	staffWindowDays int,
	validate *validator.Validate,
	logger *zap.Logger,
) *FlexDateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if studentWindowDays <= 0 {
		studentWindowDays = 7
	}
	if staffWindowDays <= 0 {
		staffWindowDays = 365
	}
	return &FlexDateService{
		flexDates:         flexDates,
		sessions:          sessions,
		registrations:     registrations,
		audit:             audit,
		studentWindowDays: studentWindowDays,
		staffWindowDays:   staffWindowDays,
		validator:         validate,
		logger:            logger,
		now:               time.Now,
	}
}

// List returns all flex dates from today forward with aggregate counts.
func (s *FlexDateService) List(ctx context.Context) ([]models.FlexDateOverview, error) {
	dates, err := s.flexDates.List(ctx, dateOnly(s.now().UTC()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list flex dates")
	}
	return dates, nil
}

// Get returns a single flex date.
func (s *FlexDateService) Get(ctx context.Context, id string) (*models.FlexDate, error) {
	fd, err := s.flexDates.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "flex date not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load flex date")
	}
	return fd, nil
}

// Upcoming returns the caller's view of the selection window: each flex
// date inside the window with session counts and the caller's own
// registration when they have one.
func (s *FlexDateService) Upcoming(ctx context.Context, actor *models.JWTClaims) ([]models.UpcomingFlexDate, error) {
	windowDays := s.staffWindowDays
	if actor.Role == models.RoleStudent {
		windowDays = s.studentWindowDays
	}

	today := dateOnly(s.now().UTC())
	dates, err := s.flexDates.ListBetween(ctx, today, today.AddDate(0, 0, windowDays))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list flex dates")
	}

	upcoming := make([]models.UpcomingFlexDate, 0, len(dates))
	for _, fd := range dates {
		entry := models.UpcomingFlexDate{FlexDate: fd}

		sessions, err := s.sessions.ListByDate(ctx, fd.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
		}
		entry.TotalSessions = len(sessions)

		students, err := s.registrations.StudentIDsForDate(ctx, fd.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
		}
		entry.StudentsRegistered = len(students)

		if actor.Role == models.RoleStudent {
			reg, err := s.registrations.FindByStudentAndDate(ctx, actor.UserID, fd.Date)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
			}
			if reg != nil {
				detail, err := s.registrations.FindDetailByID(ctx, reg.ID)
				if err != nil && err != sql.ErrNoRows {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
				}
				entry.MyRegistration = detail
			}
		}

		upcoming = append(upcoming, entry)
	}
	return upcoming, nil
}

// Create declares a new flex date. One flex period per calendar day.
func (s *FlexDateService) Create(ctx context.Context, actor *models.JWTClaims, req CreateFlexDateRequest) (*models.FlexDate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid flex date payload")
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	deadline, err := time.Parse(time.RFC3339, req.SelectionDeadline)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "selection_deadline must be RFC 3339")
	}

	flexType := models.FlexType(req.FlexType)
	if !models.ValidFlexType(flexType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "flex_type must be ACCESS or STUDY TIME")
	}
	if !models.ValidFlexDuration(req.DurationMinutes) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "duration_minutes must be 45 or 90")
	}
	if !deadline.Before(day.AddDate(0, 0, 1)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "selection_deadline must fall on or before the flex date")
	}

	if existing, err := s.flexDates.FindByDate(ctx, day); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "A flex date already exists for this day")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check flex date")
	}

	fd := &models.FlexDate{
		Date:              day,
		FlexType:          flexType,
		DurationMinutes:   req.DurationMinutes,
		SelectionDeadline: deadline.UTC(),
	}
	if err := s.flexDates.Create(ctx, fd); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create flex date")
	}

	s.writeAudit(ctx, actor, models.AuditActionFlexDateCreate, fd.ID)
	return fd, nil
}

// Update mutates the flex type, duration, deadline, or lock flag.
func (s *FlexDateService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateFlexDateRequest) (*models.FlexDate, error) {
	fd, err := s.flexDates.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "flex date not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load flex date")
	}

	if req.FlexType != nil {
		flexType := models.FlexType(*req.FlexType)
		if !models.ValidFlexType(flexType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "flex_type must be ACCESS or STUDY TIME")
		}
		fd.FlexType = flexType
	}
	if req.DurationMinutes != nil {
		if !models.ValidFlexDuration(*req.DurationMinutes) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duration_minutes must be 45 or 90")
		}
		fd.DurationMinutes = *req.DurationMinutes
	}
	if req.SelectionDeadline != nil {
		deadline, err := time.Parse(time.RFC3339, *req.SelectionDeadline)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "selection_deadline must be RFC 3339")
		}
		if !deadline.Before(fd.Date.AddDate(0, 0, 1)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "selection_deadline must fall on or before the flex date")
		}
		fd.SelectionDeadline = deadline.UTC()
	}
	if req.IsLocked != nil {
		fd.IsLocked = *req.IsLocked
	}

	if err := s.flexDates.Update(ctx, fd); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update flex date")
	}

	s.writeAudit(ctx, actor, models.AuditActionFlexDateUpdate, fd.ID)
	return fd, nil
}

// Delete removes a flex date. A date carrying sessions is protected; the
// sessions must be removed first so their students get notified.
func (s *FlexDateService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	fd, err := s.flexDates.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "flex date not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load flex date")
	}

	count, err := s.flexDates.CountSessionsForDate(ctx, fd.Date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("Cannot delete this date: %d session(s) are scheduled on it", count))
	}

	if err := s.flexDates.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete flex date")
	}

	s.writeAudit(ctx, actor, models.AuditActionFlexDateDelete, id)
	return nil
}

func (s *FlexDateService) writeAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string) {
	actorID := actor.UserID
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "flex_date",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", action, "error", err)
	}
}
