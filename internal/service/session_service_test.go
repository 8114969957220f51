package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions  map[string]models.Session
	rosters   map[string][]models.RosterEntry
	enrolled  map[string]int
	templates map[string]models.SessionTemplate

	createdBatch  []*models.Session
	updated       *models.Session
	cascaded      []string
	cascadeReturn []string
	savedTemplate *models.SessionTemplate
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	if s, ok := m.sessions[id]; ok {
		return &models.SessionDetail{Session: s}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	return m.rosters[sessionID], nil
}

func (m *mockSessionRepo) ListByDate(ctx context.Context, date time.Time) ([]models.SessionDetail, error) {
	var list []models.SessionDetail
	for _, s := range m.sessions {
		if s.Date.Equal(date) {
			list = append(list, models.SessionDetail{Session: s})
		}
	}
	return list, nil
}

func (m *mockSessionRepo) ListByDateForGrade(ctx context.Context, date time.Time, grade int) ([]models.SessionDetail, error) {
	var list []models.SessionDetail
	for _, s := range m.sessions {
		if s.Date.Equal(date) && s.AllowsGrade(grade) {
			list = append(list, models.SessionDetail{Session: s})
		}
	}
	return list, nil
}

func (m *mockSessionRepo) ListByTeacherFromDate(ctx context.Context, teacherID string, from time.Time) ([]models.SessionDetail, error) {
	var list []models.SessionDetail
	for _, s := range m.sessions {
		if s.TeacherID == teacherID && !s.Date.Before(from) {
			list = append(list, models.SessionDetail{Session: s})
		}
	}
	return list, nil
}

func (m *mockSessionRepo) ExistsForTeacherOnDate(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	for _, s := range m.sessions {
		if s.TeacherID == teacherID && s.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSessionRepo) CountEnrolled(ctx context.Context, sessionID string) (int, error) {
	return m.enrolled[sessionID], nil
}

func (m *mockSessionRepo) CreateBatch(ctx context.Context, sessions []*models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.Session)
	}
	for i, s := range sessions {
		if s.ID == "" {
			s.ID = "session-" + strings.Repeat("x", i+1)
		}
		m.sessions[s.ID] = *s
	}
	m.createdBatch = append(m.createdBatch, sessions...)
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.Session) error {
	m.sessions[session.ID] = *session
	m.updated = session
	return nil
}

func (m *mockSessionRepo) DeleteCascade(ctx context.Context, sessionID string) ([]string, error) {
	delete(m.sessions, sessionID)
	m.cascaded = append(m.cascaded, sessionID)
	return m.cascadeReturn, nil
}

func (m *mockSessionRepo) CreateTemplate(ctx context.Context, tmpl *models.SessionTemplate) error {
	if m.templates == nil {
		m.templates = make(map[string]models.SessionTemplate)
	}
	if tmpl.ID == "" {
		tmpl.ID = "tmpl-new"
	}
	m.templates[tmpl.ID] = *tmpl
	m.savedTemplate = tmpl
	return nil
}

func (m *mockSessionRepo) FindTemplateByID(ctx context.Context, id string) (*models.SessionTemplate, error) {
	if t, ok := m.templates[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) ListTemplatesByTeacher(ctx context.Context, teacherID string) ([]models.SessionTemplate, error) {
	var list []models.SessionTemplate
	for _, t := range m.templates {
		if t.TeacherID == teacherID {
			list = append(list, t)
		}
	}
	return list, nil
}

func (m *mockSessionRepo) DeleteTemplate(ctx context.Context, id string) error {
	delete(m.templates, id)
	return nil
}

type mockSessionFlexDates struct {
	dates  map[string]models.FlexDate
	future []models.FlexDate
}

func (m *mockSessionFlexDates) FindByDate(ctx context.Context, date time.Time) (*models.FlexDate, error) {
	if fd, ok := m.dates[date.Format("2006-01-02")]; ok {
		return &fd, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionFlexDates) ListFutureByType(ctx context.Context, after time.Time, flexType models.FlexType, limit int) ([]models.FlexDate, error) {
	var list []models.FlexDate
	for _, fd := range m.future {
		if fd.Date.After(after) && fd.FlexType == flexType && len(list) < limit {
			list = append(list, fd)
		}
	}
	return list, nil
}

type mockSessionRegistrations struct {
	regs     map[string]models.Registration
	enrolled map[string]int
}

func (m *mockSessionRegistrations) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.Registration, error) {
	for _, r := range m.regs {
		if r.StudentID == studentID && r.Date.Equal(date) {
			reg := r
			return &reg, nil
		}
	}
	return nil, nil
}

func (m *mockSessionRegistrations) CountBySession(ctx context.Context, sessionID string) (int, error) {
	return m.enrolled[sessionID], nil
}

func newSessionFixture() (*mockSessionRepo, *mockSessionFlexDates, *mockSessionRegistrations, *mockUserStore, *mockNotificationWriter) {
	repo := &mockSessionRepo{
		sessions:  map[string]models.Session{},
		rosters:   map[string][]models.RosterEntry{},
		enrolled:  map[string]int{},
		templates: map[string]models.SessionTemplate{},
	}
	flexDates := &mockSessionFlexDates{dates: map[string]models.FlexDate{
		testFlexDay.Format("2006-01-02"): {
			ID: "fd-1", Date: testFlexDay, FlexType: models.FlexTypeAccess,
			DurationMinutes: 45, SelectionDeadline: testDeadline,
		},
	}}
	regs := &mockSessionRegistrations{regs: map[string]models.Registration{}, enrolled: map[string]int{}}
	users := &mockUserStore{users: map[string]models.User{
		studentID: {ID: studentID, Role: models.RoleStudent, Grade: intPtr(10), FullName: "Jamie Ortiz", Active: true},
		teacherID: {ID: teacherID, Role: models.RoleTeacher, FullName: "Ms. Rivera", Active: true},
		otherTID:  {ID: otherTID, Role: models.RoleTeacher, FullName: "Mr. Chen", Active: true},
	}}
	return repo, flexDates, regs, users, &mockNotificationWriter{}
}

func newSessionService(repo *mockSessionRepo, flexDates *mockSessionFlexDates, regs *mockSessionRegistrations, users *mockUserStore, notifs *mockNotificationWriter) *SessionService {
	svc := NewSessionService(repo, flexDates, regs, users, notifs, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func baseCreateRequest() CreateSessionRequest {
	return CreateSessionRequest{
		Date:          testFlexDay.Format("2006-01-02"),
		RoomNumber:    "214",
		Capacity:      24,
		Title:         "Robotics Lab",
		AllowedGrades: []int{9, 10, 11, 12},
	}
}

func TestSessionServiceCreate(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	created, err := svc.Create(context.Background(), teacherClaims(teacherID), baseCreateRequest())
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, teacherID, created[0].TeacherID)
	assert.Equal(t, testFlexDay, created[0].Date)
}

func TestSessionServiceCreateNoFlexDate(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	req := baseCreateRequest()
	req.Date = "2026-03-05"
	_, err := svc.Create(context.Background(), teacherClaims(teacherID), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "No flex period is scheduled on this date", appErr.Message)
}

func TestSessionServiceCreateDateConflict(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["existing"] = models.Session{ID: "existing", TeacherID: teacherID, Date: testFlexDay}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	_, err := svc.Create(context.Background(), teacherClaims(teacherID), baseCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "You already have a session on this date", appErr.Message)
}

func TestSessionServiceCreateOnBehalfRequiresAdmin(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	req := baseCreateRequest()
	req.TeacherID = otherTID
	_, err := svc.Create(context.Background(), teacherClaims(teacherID), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), adminClaims(), req)
	require.NoError(t, err)
	require.Len(t, repo.createdBatch, 1)
	assert.Equal(t, otherTID, repo.createdBatch[0].TeacherID)
}

func TestSessionServiceCreateRecurringSkipsOccupiedDates(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	week2 := testFlexDay.AddDate(0, 0, 7)
	week3 := testFlexDay.AddDate(0, 0, 14)
	flexDates.future = []models.FlexDate{
		{ID: "fd-2", Date: week2, FlexType: models.FlexTypeAccess, DurationMinutes: 45},
		{ID: "fd-3", Date: week3, FlexType: models.FlexTypeAccess, DurationMinutes: 45},
	}
	repo.sessions["busy"] = models.Session{ID: "busy", TeacherID: teacherID, Date: week2}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	req := baseCreateRequest()
	req.Recurring = true
	created, err := svc.Create(context.Background(), teacherClaims(teacherID), req)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, testFlexDay, created[0].Date)
	assert.Equal(t, week3, created[1].Date)
}

func TestSessionServiceCreateSavesTemplate(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	name := "Weekly robotics"
	req := baseCreateRequest()
	req.SaveAsTemplate = &name
	_, err := svc.Create(context.Background(), teacherClaims(teacherID), req)
	require.NoError(t, err)
	require.NotNil(t, repo.savedTemplate)
	assert.Equal(t, "Weekly robotics", repo.savedTemplate.Name)
	assert.Equal(t, teacherID, repo.savedTemplate.TeacherID)
}

func TestSessionServiceCreateFromForeignTemplate(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.templates["tmpl-1"] = models.SessionTemplate{ID: "tmpl-1", TeacherID: otherTID, Name: "Chess club"}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	tmplID := "tmpl-1"
	req := baseCreateRequest()
	req.FromTemplateID = &tmplID
	_, err := svc.Create(context.Background(), teacherClaims(teacherID), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceAvailableStudentView(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["s-1"] = models.Session{
		ID: "s-1", TeacherID: teacherID, Date: testFlexDay, Capacity: 2,
		AllowedGrades: []int64{9, 10}, Title: "Robotics Lab",
	}
	repo.sessions["s-2"] = models.Session{
		ID: "s-2", TeacherID: otherTID, Date: testFlexDay, Capacity: 10,
		AllowedGrades: []int64{11, 12}, Title: "Seniors only",
	}
	regs.enrolled["s-1"] = 2
	regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", SessionID: "s-1", StudentID: studentID, Date: testFlexDay,
	}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	available, err := svc.Available(context.Background(), studentClaims(), testFlexDay.Format("2006-01-02"))
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "s-1", available[0].ID)
	assert.Equal(t, 2, available[0].Enrolled)
	assert.True(t, available[0].IsFull)
	require.NotNil(t, available[0].MyRegistration)
	assert.Equal(t, "reg-1", available[0].MyRegistration.ID)
}

func TestSessionServiceAvailableStudentWithoutGrade(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	student := users.users[studentID]
	student.Grade = nil
	users.users[studentID] = student
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	_, err := svc.Available(context.Background(), studentClaims(), testFlexDay.Format("2006-01-02"))
	require.Error(t, err)
	assert.Equal(t, "Your account has no grade level assigned", appErrors.FromError(err).Message)
}

func TestSessionServiceUpdateCapacityFloor(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["s-1"] = models.Session{ID: "s-1", TeacherID: teacherID, Date: testFlexDay, Capacity: 24}
	repo.enrolled["s-1"] = 10
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	capacity := 5
	_, err := svc.Update(context.Background(), teacherClaims(teacherID), "s-1", UpdateSessionRequest{Capacity: &capacity})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "Capacity cannot be lower than current enrollment (10)", appErr.Message)

	capacity = 12
	detail, err := svc.Update(context.Background(), teacherClaims(teacherID), "s-1", UpdateSessionRequest{Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 12, detail.Capacity)
}

func TestSessionServiceUpdateNotOwner(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["s-1"] = models.Session{ID: "s-1", TeacherID: teacherID, Date: testFlexDay, Capacity: 24}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	title := "Taken over"
	_, err := svc.Update(context.Background(), teacherClaims(otherTID), "s-1", UpdateSessionRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceDeleteNotifiesStudents(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["s-1"] = models.Session{ID: "s-1", TeacherID: teacherID, Date: testFlexDay, Title: "Robotics Lab"}
	repo.cascadeReturn = []string{"student-a", "student-b"}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	err := svc.Delete(context.Background(), teacherClaims(teacherID), "s-1")
	require.NoError(t, err)
	assert.Contains(t, repo.cascaded, "s-1")
	require.Len(t, notifs.created, 2)
	assert.Equal(t, "The session Robotics Lab was cancelled. Please select another session.", notifs.created[0].Message)
	assert.Equal(t, models.NotificationTypeRemoved, notifs.created[0].Type)
}

func TestSessionServiceRosterPermissions(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["s-1"] = models.Session{ID: "s-1", TeacherID: teacherID, Date: testFlexDay}
	repo.rosters["s-1"] = []models.RosterEntry{
		{StudentID: studentID, StudentName: "Jamie Ortiz", StudentEmail: "jamie@school.test", Grade: intPtr(10), Status: models.RegistrationStatusSelected},
	}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	roster, err := svc.Roster(context.Background(), teacherClaims(teacherID), "s-1")
	require.NoError(t, err)
	require.Len(t, roster.Registrations, 1)
	assert.Equal(t, "Jamie Ortiz", roster.Registrations[0].StudentName)

	_, err = svc.Roster(context.Background(), teacherClaims(otherTID), "s-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceExportRosterCSV(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["s-1"] = models.Session{ID: "s-1", TeacherID: teacherID, Date: testFlexDay, Title: "Robotics Lab"}
	repo.rosters["s-1"] = []models.RosterEntry{
		{StudentID: studentID, StudentName: "Jamie Ortiz", StudentEmail: "jamie@school.test", Grade: intPtr(10), Status: models.RegistrationStatusSelected},
	}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	payload, filename, err := svc.ExportRoster(context.Background(), teacherClaims(teacherID), "s-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "roster-2026-03-04.csv", filename)

	body := string(payload)
	assert.Contains(t, body, "Student,Email,Grade,Homeroom,Status")
	assert.Contains(t, body, "Jamie Ortiz,jamie@school.test,10,,selected")
}

func TestSessionServiceExportRosterBadFormat(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.sessions["s-1"] = models.Session{ID: "s-1", TeacherID: teacherID, Date: testFlexDay}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	_, _, err := svc.ExportRoster(context.Background(), teacherClaims(teacherID), "s-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, "format must be csv or pdf", appErrors.FromError(err).Message)
}

func TestSessionServiceDeleteTemplate(t *testing.T) {
	repo, flexDates, regs, users, notifs := newSessionFixture()
	repo.templates["tmpl-1"] = models.SessionTemplate{ID: "tmpl-1", TeacherID: teacherID, Name: "Chess club"}
	svc := newSessionService(repo, flexDates, regs, users, notifs)

	err := svc.DeleteTemplate(context.Background(), teacherClaims(otherTID), "tmpl-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.DeleteTemplate(context.Background(), teacherClaims(teacherID), "tmpl-1")
	require.NoError(t, err)
	_, ok := repo.templates["tmpl-1"]
	assert.False(t, ok)
}
