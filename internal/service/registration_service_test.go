package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
	"github.com/flextime-hq/flextime-api/pkg/mail"
)

type mockRegistrationRepo struct {
	regs     map[string]models.Registration
	details  map[string]models.RegistrationDetail
	locks    map[string]models.LockInfo
	replaced *models.Registration
	deleted  []string
	unlocked []string
}

func lockKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format("2006-01-02")
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if r, ok := m.regs[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	if r, ok := m.regs[id]; ok {
		return &models.RegistrationDetail{Registration: r}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.Registration, error) {
	for _, r := range m.regs {
		if r.StudentID == studentID && r.Date.Equal(date) {
			reg := r
			return &reg, nil
		}
	}
	return nil, nil
}

func (m *mockRegistrationRepo) FindLockedByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.LockInfo, error) {
	if info, ok := m.locks[lockKey(studentID, date)]; ok {
		return &info, nil
	}
	return nil, nil
}

func (m *mockRegistrationRepo) Replace(ctx context.Context, reg *models.Registration) error {
	if m.regs == nil {
		m.regs = make(map[string]models.Registration)
	}
	for id, r := range m.regs {
		if r.StudentID == reg.StudentID && r.Date.Equal(reg.Date) {
			delete(m.regs, id)
		}
	}
	if reg.ID == "" {
		reg.ID = "reg-new"
	}
	m.regs[reg.ID] = *reg
	m.replaced = reg
	return nil
}

func (m *mockRegistrationRepo) Delete(ctx context.Context, id string) error {
	delete(m.regs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRegistrationRepo) Unlock(ctx context.Context, id string) error {
	if r, ok := m.regs[id]; ok {
		r.Status = models.RegistrationStatusSelected
		r.LockedByTeacherID = nil
		m.regs[id] = r
	}
	m.unlocked = append(m.unlocked, id)
	return nil
}

func (m *mockRegistrationRepo) ListByStudentFromDate(ctx context.Context, studentID string, from time.Time) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, r := range m.regs {
		if r.StudentID == studentID && !r.Date.Before(from) {
			list = append(list, models.RegistrationDetail{Registration: r})
		}
	}
	return list, nil
}

type mockSessionReader struct {
	sessions map[string]models.Session
	enrolled map[string]int
}

func (m *mockSessionReader) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionReader) FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	if s, ok := m.sessions[id]; ok {
		return &models.SessionDetail{Session: s}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionReader) CountEnrolled(ctx context.Context, sessionID string) (int, error) {
	return m.enrolled[sessionID], nil
}

type mockFlexDateReader struct {
	dates map[string]models.FlexDate
}

func (m *mockFlexDateReader) FindByDate(ctx context.Context, date time.Time) (*models.FlexDate, error) {
	if fd, ok := m.dates[date.Format("2006-01-02")]; ok {
		return &fd, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserStore struct {
	users  map[string]models.User
	audits []models.AuditLog
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	m.audits = append(m.audits, *entry)
	return nil
}

type mockNotificationWriter struct {
	created []models.Notification
}

func (m *mockNotificationWriter) Create(ctx context.Context, n *models.Notification) error {
	m.created = append(m.created, *n)
	return nil
}

type mockRemovalMailer struct {
	notices []mail.RemovalNotice
	err     error
}

func (m *mockRemovalMailer) DispatchRemoval(notice mail.RemovalNotice) error {
	if m.err != nil {
		return m.err
	}
	m.notices = append(m.notices, notice)
	return nil
}

var (
	testNow      = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	testFlexDay  = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	testDeadline = time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC)
)

const (
	studentID = "11111111-1111-4111-8111-111111111111"
	teacherID = "22222222-2222-4222-8222-222222222222"
	otherTID  = "33333333-3333-4333-8333-333333333333"
	sessionID = "44444444-4444-4444-8444-444444444444"
)

func intPtr(v int) *int { return &v }

func newTestFixture() (*mockRegistrationRepo, *mockSessionReader, *mockFlexDateReader, *mockUserStore, *mockNotificationWriter, *mockRemovalMailer) {
	regs := &mockRegistrationRepo{
		regs:    map[string]models.Registration{},
		details: map[string]models.RegistrationDetail{},
		locks:   map[string]models.LockInfo{},
	}
	sessions := &mockSessionReader{
		sessions: map[string]models.Session{
			sessionID: {
				ID:            sessionID,
				Date:          testFlexDay,
				TeacherID:     teacherID,
				RoomNumber:    "214",
				Capacity:      2,
				Title:         "Robotics Lab",
				AllowedGrades: []int64{9, 10, 11, 12},
			},
		},
		enrolled: map[string]int{},
	}
	flexDates := &mockFlexDateReader{
		dates: map[string]models.FlexDate{
			testFlexDay.Format("2006-01-02"): {
				ID:                "fd-1",
				Date:              testFlexDay,
				FlexType:          models.FlexTypeAccess,
				DurationMinutes:   45,
				SelectionDeadline: testDeadline,
			},
		},
	}
	users := &mockUserStore{
		users: map[string]models.User{
			studentID: {ID: studentID, Role: models.RoleStudent, Grade: intPtr(10), FullName: "Jamie Ortiz", Email: "jamie@school.test", Active: true},
			teacherID: {ID: teacherID, Role: models.RoleTeacher, FullName: "Ms. Rivera", Active: true},
		},
	}
	return regs, sessions, flexDates, users, &mockNotificationWriter{}, &mockRemovalMailer{}
}

func newRegistrationService(regs *mockRegistrationRepo, sessions *mockSessionReader, flexDates *mockFlexDateReader, users *mockUserStore, notifs *mockNotificationWriter, mailer *mockRemovalMailer) *RegistrationService {
	svc := NewRegistrationService(regs, sessions, flexDates, users, notifs, mailer, 7, "https://flex.school.test", validator.New(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: studentID, Role: models.RoleStudent}
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func TestRegistrationServiceSelect(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	detail, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusSelected, detail.Status)
	assert.Equal(t, sessionID, regs.replaced.SessionID)
	assert.Equal(t, studentID, regs.replaced.StudentID)
}

func TestRegistrationServiceSelectReplacesExisting(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	regs.regs["reg-old"] = models.Registration{
		ID: "reg-old", SessionID: "other-session", StudentID: studentID,
		Date: testFlexDay, Status: models.RegistrationStatusSelected,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.NoError(t, err)

	// one registration per student per date survives
	var count int
	for _, r := range regs.regs {
		if r.StudentID == studentID && r.Date.Equal(testFlexDay) {
			count++
			assert.Equal(t, sessionID, r.SessionID)
		}
	}
	assert.Equal(t, 1, count)
}

func TestRegistrationServiceSelectDeadlinePassed(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	fd := flexDates.dates[testFlexDay.Format("2006-01-02")]
	fd.SelectionDeadline = testNow.Add(-time.Hour)
	flexDates.dates[testFlexDay.Format("2006-01-02")] = fd
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Nil(t, regs.replaced)
}

func TestRegistrationServiceSelectLockedDate(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	fd := flexDates.dates[testFlexDay.Format("2006-01-02")]
	fd.IsLocked = true
	flexDates.dates[testFlexDay.Format("2006-01-02")] = fd
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Nil(t, regs.replaced)
}

func TestRegistrationServiceSelectSessionFull(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	sessions.enrolled[sessionID] = 2
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "Session full", appErr.Message)
}

func TestRegistrationServiceSelectLockedWins(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	regs.locks[lockKey(studentID, testFlexDay)] = models.LockInfo{
		RegistrationID: "reg-locked", SessionID: "other", TeacherID: otherTID, TeacherName: "Mr. Chen",
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Mr. Chen")
	assert.Nil(t, regs.replaced)
}

func TestRegistrationServiceSelectGradeNotAllowed(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	session := sessions.sessions[sessionID]
	session.AllowedGrades = []int64{11, 12}
	sessions.sessions[sessionID] = session
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestRegistrationServiceSelectOutsideWindow(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	farDay := testNow.AddDate(0, 0, 10)
	session := sessions.sessions[sessionID]
	session.Date = farDay
	sessions.sessions[sessionID] = session
	flexDates.dates[farDay.Format("2006-01-02")] = models.FlexDate{
		ID: "fd-far", Date: farDay, FlexType: models.FlexTypeAccess,
		DurationMinutes: 45, SelectionDeadline: farDay,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Select(context.Background(), studentClaims(), SelectSessionRequest{SessionID: sessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceLockDisplacesSelection(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	regs.regs["reg-old"] = models.Registration{
		ID: "reg-old", SessionID: "other-session", StudentID: studentID,
		Date: testFlexDay, Status: models.RegistrationStatusSelected,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	detail, err := svc.Lock(context.Background(), teacherClaims(teacherID), LockStudentRequest{SessionID: sessionID, StudentID: studentID})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusLocked, detail.Status)
	require.NotNil(t, detail.LockedByTeacherID)
	assert.Equal(t, teacherID, *detail.LockedByTeacherID)

	_, oldExists := regs.regs["reg-old"]
	assert.False(t, oldExists)

	require.Len(t, notifs.created, 1)
	assert.Equal(t, models.NotificationTypeLocked, notifs.created[0].Type)
	assert.Equal(t, "You have been locked to Robotics Lab. You cannot change this selection.", notifs.created[0].Message)
}

func TestRegistrationServiceLockConflict(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	regs.locks[lockKey(studentID, testFlexDay)] = models.LockInfo{
		RegistrationID: "reg-locked", SessionID: "other", TeacherID: otherTID, TeacherName: "Mr. Chen",
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Lock(context.Background(), teacherClaims(teacherID), LockStudentRequest{SessionID: sessionID, StudentID: studentID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Mr. Chen")
}

func TestRegistrationServiceLockIgnoresCapacity(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	sessions.enrolled[sessionID] = 5
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Lock(context.Background(), teacherClaims(teacherID), LockStudentRequest{SessionID: sessionID, StudentID: studentID})
	require.NoError(t, err)
}

func TestRegistrationServiceLockNotOwnSession(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Lock(context.Background(), teacherClaims(otherTID), LockStudentRequest{SessionID: sessionID, StudentID: studentID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceUnlock(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	lockedBy := teacherID
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusLocked, LockedByTeacherID: &lockedBy,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	detail, err := svc.Unlock(context.Background(), teacherClaims(teacherID), "reg-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusSelected, detail.Status)
	assert.Contains(t, regs.unlocked, "reg-1")
}

func TestRegistrationServiceUnlockNotLocked(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusSelected,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Unlock(context.Background(), teacherClaims(teacherID), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, regs.unlocked)
}

func TestRegistrationServiceUnlockWrongTeacher(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	lockedBy := teacherID
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusLocked, LockedByTeacherID: &lockedBy,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Unlock(context.Background(), teacherClaims(otherTID), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceRemove(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusSelected,
	}
	regs.details["reg-1"] = models.RegistrationDetail{
		Registration:      regs.regs["reg-1"],
		SessionTitle:      "Robotics Lab",
		RoomNumber:        "214",
		TeacherID:         teacherID,
		TeacherName:       "Ms. Rivera",
		StudentName:       "Jamie Ortiz",
		StudentEmail:      "jamie@school.test",
		SelectionDeadline: testDeadline,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	emailSent, err := svc.Remove(context.Background(), teacherClaims(teacherID), "reg-1")
	require.NoError(t, err)
	assert.True(t, emailSent)
	assert.Contains(t, regs.deleted, "reg-1")

	require.Len(t, notifs.created, 1)
	assert.Equal(t, models.NotificationTypeRemoved, notifs.created[0].Type)
	assert.Equal(t, "You have been removed from Robotics Lab. Please select another session.", notifs.created[0].Message)

	require.Len(t, mailer.notices, 1)
	assert.Equal(t, "jamie@school.test", mailer.notices[0].StudentEmail)
	assert.Equal(t, "Robotics Lab", mailer.notices[0].SessionTitle)

	require.Len(t, users.audits, 1)
	assert.Equal(t, models.AuditActionRegistrationRemove, users.audits[0].Action)
}

func TestRegistrationServiceRemoveMailFailureStillSucceeds(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	mailer.err = errors.New("provider unavailable")
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
	}
	regs.details["reg-1"] = models.RegistrationDetail{
		Registration: regs.regs["reg-1"], SessionTitle: "Robotics Lab", TeacherID: teacherID,
		StudentEmail: "jamie@school.test",
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	emailSent, err := svc.Remove(context.Background(), teacherClaims(teacherID), "reg-1")
	require.NoError(t, err)
	assert.False(t, emailSent)
	assert.Contains(t, regs.deleted, "reg-1")
	assert.Len(t, notifs.created, 1)
}

func TestRegistrationServiceRemoveNotOwnSession(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
	}
	regs.details["reg-1"] = models.RegistrationDetail{
		Registration: regs.regs["reg-1"], TeacherID: teacherID,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	_, err := svc.Remove(context.Background(), teacherClaims(otherTID), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, regs.deleted)
}

func TestRegistrationServiceCancelLockedForbidden(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	lockedBy := teacherID
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusLocked, LockedByTeacherID: &lockedBy,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	err := svc.Cancel(context.Background(), studentClaims(), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, regs.deleted)
}

func TestRegistrationServiceCancelAfterDeadline(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	fd := flexDates.dates[testFlexDay.Format("2006-01-02")]
	fd.SelectionDeadline = testNow.Add(-time.Hour)
	flexDates.dates[testFlexDay.Format("2006-01-02")] = fd
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusSelected,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	// owners can back out any time; only the freeze flag stops them
	err := svc.Cancel(context.Background(), studentClaims(), "reg-1")
	require.NoError(t, err)
	assert.Contains(t, regs.deleted, "reg-1")
}

func TestRegistrationServiceCancelFrozenDate(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	fd := flexDates.dates[testFlexDay.Format("2006-01-02")]
	fd.IsLocked = true
	flexDates.dates[testFlexDay.Format("2006-01-02")] = fd
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusSelected,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	err := svc.Cancel(context.Background(), studentClaims(), "reg-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, regs.deleted)
}

func TestRegistrationServiceCancelByAdminBypassesLock(t *testing.T) {
	regs, sessions, flexDates, users, notifs, mailer := newTestFixture()
	lockedBy := teacherID
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: sessionID, StudentID: studentID, Date: testFlexDay,
		Status: models.RegistrationStatusLocked, LockedByTeacherID: &lockedBy,
	}
	svc := newRegistrationService(regs, sessions, flexDates, users, notifs, mailer)

	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	err := svc.Cancel(context.Background(), admin, "reg-1")
	require.NoError(t, err)
	assert.Contains(t, regs.deleted, "reg-1")
}
