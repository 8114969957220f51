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
	"github.com/flextime-hq/flextime-api/pkg/mail"
)

type registrationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.Registration, error)
	FindLockedByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.LockInfo, error)
	Replace(ctx context.Context, reg *models.Registration) error
	Delete(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	ListByStudentFromDate(ctx context.Context, studentID string, from time.Time) ([]models.RegistrationDetail, error)
}

type registrationSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error)
	CountEnrolled(ctx context.Context, sessionID string) (int, error)
}

type registrationFlexDateReader interface {
	FindByDate(ctx context.Context, date time.Time) (*models.FlexDate, error)
}

type registrationUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

type removalMailer interface {
	DispatchRemoval(notice mail.RemovalNotice) error
}

// SelectSessionRequest is the payload for a student selecting a session.
type SelectSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
}

// LockStudentRequest is the payload for a teacher locking a student into
// one of their sessions.
type LockStudentRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	StudentID string `json:"student_id" validate:"required,uuid4"`
}

// RegistrationService implements the selection workflow: students pick
// sessions, teachers lock and remove students, and every change leaves
// the one-registration-per-date invariant intact.
type RegistrationService struct {
	registrations registrationRepository
	sessions      registrationSessionReader
	flexDates     registrationFlexDateReader
	users         registrationUserStore
	notifications notificationWriter
	mailer        removalMailer
	windowDays    int
	appURL        string
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewRegistrationService builds the service. windowDays bounds how far
// ahead students may select; a nil mailer disables removal emails.
func NewRegistrationService(
	registrations registrationRepository,
	sessions registrationSessionReader,
	flexDates registrationFlexDateReader,
	users registrationUserStore,
	notifications notificationWriter,
	mailer removalMailer,
	windowDays int,
	appURL string,
	validate *validator.Validate,
	logger *zap.Logger,
) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowDays <= 0 {
		windowDays = 7
	}
	return &RegistrationService{
		registrations: registrations,
		sessions:      sessions,
		flexDates:     flexDates,
		users:         users,
		notifications: notifications,
		mailer:        mailer,
		windowDays:    windowDays,
		appURL:        appURL,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Select registers the acting student for a session, replacing any prior
// selection for the same date. The replacement is transactional so the
// student is never left registered twice or not at all.
func (s *RegistrationService) Select(ctx context.Context, actor *models.JWTClaims, req SelectSessionRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection payload")
	}

	student, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	flexDate, err := s.flexDates.FindByDate(ctx, dateOnly(session.Date))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "flex date not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load flex date")
	}

	now := s.now().UTC()
	if flexDate.IsLocked {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Registrations are locked for this date")
	}
	if now.After(flexDate.SelectionDeadline) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "The selection deadline for this date has passed")
	}

	today := dateOnly(now)
	sessionDay := dateOnly(session.Date)
	if sessionDay.Before(today) || sessionDay.After(today.AddDate(0, 0, s.windowDays)) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("You can only select sessions within the next %d days", s.windowDays))
	}

	if student.Grade == nil || !session.AllowsGrade(*student.Grade) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "This session is not open to your grade")
	}

	lock, err := s.registrations.FindLockedByStudentAndDate(ctx, student.ID, sessionDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing lock")
	}
	if lock != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("Your selection for this date has been locked by %s", lock.TeacherName))
	}

	enrolled, err := s.sessions.CountEnrolled(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollment")
	}
	if enrolled >= session.Capacity {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Session full")
	}

	reg := &models.Registration{
		SessionID: session.ID,
		StudentID: student.ID,
		Date:      sessionDay,
		Status:    models.RegistrationStatusSelected,
	}
	if err := s.registrations.Replace(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save selection")
	}

	detail, err := s.registrations.FindDetailByID(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection")
	}
	return detail, nil
}

// Cancel removes the acting student's own selection. Locked selections
// stay put unless an admin cancels them.
func (s *RegistrationService) Cancel(ctx context.Context, actor *models.JWTClaims, registrationID string) error {
	reg, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	isAdmin := actor.Role == models.RoleAdmin
	if reg.StudentID != actor.UserID && !isAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only cancel your own selection")
	}
	if reg.Status == models.RegistrationStatusLocked && !isAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "This selection is locked and cannot be changed")
	}

	if !isAdmin {
		flexDate, err := s.flexDates.FindByDate(ctx, dateOnly(reg.Date))
		if err != nil && err != sql.ErrNoRows {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load flex date")
		}
		if flexDate != nil && flexDate.IsLocked {
			return appErrors.Clone(appErrors.ErrValidation, "Registrations are locked for this date")
		}
	}

	if err := s.registrations.Delete(ctx, registrationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel selection")
	}
	return nil
}

// Lock forces a student into one of the acting teacher's sessions. Any
// existing registration for the date is displaced, a lock by another
// teacher wins, and capacity is deliberately not checked. The student is
// notified that the selection is frozen.
func (s *RegistrationService) Lock(ctx context.Context, actor *models.JWTClaims, req LockStudentRequest) (*models.RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lock payload")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	isAdmin := actor.Role == models.RoleAdmin
	if session.TeacherID != actor.UserID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only lock students into your own sessions")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Only students can be locked into sessions")
	}

	sessionDay := dateOnly(session.Date)
	existing, err := s.registrations.FindLockedByStudentAndDate(ctx, student.ID, sessionDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing lock")
	}
	if existing != nil && existing.TeacherID != actor.UserID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("This student has already been locked by %s", existing.TeacherName))
	}

	lockedBy := actor.UserID
	reg := &models.Registration{
		SessionID:         session.ID,
		StudentID:         student.ID,
		Date:              sessionDay,
		Status:            models.RegistrationStatusLocked,
		LockedByTeacherID: &lockedBy,
	}
	if err := s.registrations.Replace(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock student")
	}

	notification := &models.Notification{
		StudentID: student.ID,
		Type:      models.NotificationTypeLocked,
		SessionID: &session.ID,
		FlexDate:  &sessionDay,
		Message:   fmt.Sprintf("You have been locked to %s. You cannot change this selection.", session.Title),
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Sugar().Warnw("failed to create lock notification", "student_id", student.ID, "error", err)
	}

	detail, err := s.registrations.FindDetailByID(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return detail, nil
}

// Unlock releases a locked registration back to selected. Only the
// teacher who placed the lock, or an admin, may release it.
func (s *RegistrationService) Unlock(ctx context.Context, actor *models.JWTClaims, registrationID string) (*models.RegistrationDetail, error) {
	reg, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	if reg.Status != models.RegistrationStatusLocked {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration is not locked")
	}

	isAdmin := actor.Role == models.RoleAdmin
	if !isAdmin && (reg.LockedByTeacherID == nil || *reg.LockedByTeacherID != actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only the locking teacher can release this lock")
	}

	if err := s.registrations.Unlock(ctx, registrationID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlock registration")
	}

	detail, err := s.registrations.FindDetailByID(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return detail, nil
}

// Remove takes a student off a session. The student is notified in-app
// and by email so they can pick a replacement; email failures never fail
// the removal but are reported in the returned flag. The action is
// written to the audit trail.
func (s *RegistrationService) Remove(ctx context.Context, actor *models.JWTClaims, registrationID string) (bool, error) {
	detail, err := s.registrations.FindDetailByID(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	isAdmin := actor.Role == models.RoleAdmin
	if detail.TeacherID != actor.UserID && !isAdmin {
		return false, appErrors.Clone(appErrors.ErrForbidden, "You can only remove students from your own sessions")
	}

	if err := s.registrations.Delete(ctx, registrationID); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove registration")
	}

	flexDay := dateOnly(detail.Date)
	notification := &models.Notification{
		StudentID: detail.StudentID,
		Type:      models.NotificationTypeRemoved,
		SessionID: &detail.SessionID,
		FlexDate:  &flexDay,
		Message:   fmt.Sprintf("You have been removed from %s. Please select another session.", detail.SessionTitle),
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Sugar().Warnw("failed to create removal notification", "student_id", detail.StudentID, "error", err)
	}

	emailSent := false
	if s.mailer != nil {
		notice := mail.RemovalNotice{
			StudentEmail: detail.StudentEmail,
			StudentName:  detail.StudentName,
			SessionTitle: detail.SessionTitle,
			TeacherName:  detail.TeacherName,
			Room:         detail.RoomNumber,
			FlexDate:     detail.Date,
			Deadline:     detail.SelectionDeadline,
			AppURL:       s.appURL,
		}
		if err := s.mailer.DispatchRemoval(notice); err != nil {
			s.logger.Sugar().Warnw("failed to dispatch removal email", "student_id", detail.StudentID, "error", err)
		} else {
			emailSent = true
		}
	}

	actorID := actor.UserID
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionRegistrationRemove,
		Resource:   "registration",
		ResourceID: &registrationID,
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", entry.Action, "error", err)
	}
	return emailSent, nil
}

// ListForStudent returns a student's registrations from today forward.
// Students may only list their own.
func (s *RegistrationService) ListForStudent(ctx context.Context, actor *models.JWTClaims, studentID string) ([]models.RegistrationDetail, error) {
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only view your own registrations")
	}

	regs, err := s.registrations.ListByStudentFromDate(ctx, studentID, dateOnly(s.now().UTC()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, nil
}
