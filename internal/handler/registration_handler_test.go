package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flextime-hq/flextime-api/internal/middleware"
	"github.com/flextime-hq/flextime-api/internal/models"
	"github.com/flextime-hq/flextime-api/internal/service"
	"github.com/flextime-hq/flextime-api/pkg/mail"
)

const (
	testStudentID = "11111111-1111-4111-8111-111111111111"
	testTeacherID = "22222222-2222-4222-8222-222222222222"
	testSessionID = "44444444-4444-4444-8444-444444444444"
)

// The service clocks against real time, so the fixture date sits two
// days out with the deadline the evening before.
var (
	handlerFlexDay  = time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 2)
	handlerDeadline = handlerFlexDay.Add(-6 * time.Hour)
)

type stubRegistrationRepo struct {
	regs map[string]models.Registration
}

func (s *stubRegistrationRepo) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if r, ok := s.regs[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRegistrationRepo) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	if r, ok := s.regs[id]; ok {
		return &models.RegistrationDetail{
			Registration: r, SessionTitle: "Robotics Lab", TeacherID: testTeacherID,
			StudentEmail: "jamie@school.test",
		}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRegistrationRepo) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.Registration, error) {
	for _, r := range s.regs {
		if r.StudentID == studentID && r.Date.Equal(date) {
			reg := r
			return &reg, nil
		}
	}
	return nil, nil
}

func (s *stubRegistrationRepo) FindLockedByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.LockInfo, error) {
	return nil, nil
}

func (s *stubRegistrationRepo) Replace(ctx context.Context, reg *models.Registration) error {
	if s.regs == nil {
		s.regs = make(map[string]models.Registration)
	}
	for id, r := range s.regs {
		if r.StudentID == reg.StudentID && r.Date.Equal(reg.Date) {
			delete(s.regs, id)
		}
	}
	if reg.ID == "" {
		reg.ID = "reg-new"
	}
	s.regs[reg.ID] = *reg
	return nil
}

func (s *stubRegistrationRepo) Delete(ctx context.Context, id string) error {
	delete(s.regs, id)
	return nil
}

func (s *stubRegistrationRepo) Unlock(ctx context.Context, id string) error {
	return nil
}

func (s *stubRegistrationRepo) ListByStudentFromDate(ctx context.Context, studentID string, from time.Time) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, r := range s.regs {
		if r.StudentID == studentID {
			list = append(list, models.RegistrationDetail{Registration: r})
		}
	}
	return list, nil
}

type stubSessionReader struct {
	capacity int
	enrolled int
}

func (s *stubSessionReader) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if id != testSessionID {
		return nil, sql.ErrNoRows
	}
	return &models.Session{
		ID: testSessionID, Date: handlerFlexDay, TeacherID: testTeacherID,
		Capacity: s.capacity, Title: "Robotics Lab", AllowedGrades: []int64{9, 10, 11, 12},
	}, nil
}

func (s *stubSessionReader) FindDetailByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{Session: *session}, nil
}

func (s *stubSessionReader) CountEnrolled(ctx context.Context, sessionID string) (int, error) {
	return s.enrolled, nil
}

type stubFlexDateReader struct{}

func (s *stubFlexDateReader) FindByDate(ctx context.Context, date time.Time) (*models.FlexDate, error) {
	if !date.Equal(handlerFlexDay) {
		return nil, sql.ErrNoRows
	}
	return &models.FlexDate{
		ID: "fd-1", Date: handlerFlexDay, FlexType: models.FlexTypeAccess,
		DurationMinutes: 45, SelectionDeadline: handlerDeadline,
	}, nil
}

type stubUserStore struct{}

func (s *stubUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	grade := 10
	switch id {
	case testStudentID:
		return &models.User{ID: testStudentID, Role: models.RoleStudent, Grade: &grade, Active: true}, nil
	case testTeacherID:
		return &models.User{ID: testTeacherID, Role: models.RoleTeacher, Active: true}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return nil
}

type stubNotificationWriter struct{}

func (s *stubNotificationWriter) Create(ctx context.Context, n *models.Notification) error {
	return nil
}

type stubMailer struct{}

func (s *stubMailer) DispatchRemoval(notice mail.RemovalNotice) error { return nil }

func buildRegistrationRouter(regs *stubRegistrationRepo, sessions *stubSessionReader) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.NewRegistrationService(
		regs, sessions, &stubFlexDateReader{}, &stubUserStore{},
		&stubNotificationWriter{}, &stubMailer{}, 7, "https://flex.school.test",
		validator.New(), zap.NewNop(),
	)
	handler := NewRegistrationHandler(svc, nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-Test-User"); userID != "" {
			role := models.UserRole(c.GetHeader("X-Test-Role"))
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
		}
		c.Next()
	})
	router.POST("/registrations", handler.Select)
	router.DELETE("/registrations/:id", handler.Cancel)
	router.POST("/registrations/:id/remove", handler.Remove)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRegistrationHandlerSelect(t *testing.T) {
	regs := &stubRegistrationRepo{regs: map[string]models.Registration{}}
	router := buildRegistrationRouter(regs, &stubSessionReader{capacity: 24})

	body := bytes.NewBufferString(`{"session_id":"` + testSessionID + `"}`)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", testStudentID)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))

	resp := performRequest(router, req)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), `"status":"selected"`)
	require.Len(t, regs.regs, 1)
}

func TestRegistrationHandlerSelectUnauthenticated(t *testing.T) {
	router := buildRegistrationRouter(&stubRegistrationRepo{}, &stubSessionReader{capacity: 24})

	body := bytes.NewBufferString(`{"session_id":"` + testSessionID + `"}`)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", body)
	req.Header.Set("Content-Type", "application/json")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegistrationHandlerSelectSessionFull(t *testing.T) {
	router := buildRegistrationRouter(&stubRegistrationRepo{}, &stubSessionReader{capacity: 2, enrolled: 2})

	body := bytes.NewBufferString(`{"session_id":"` + testSessionID + `"}`)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", testStudentID)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))

	resp := performRequest(router, req)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Contains(t, resp.Body.String(), "Session full")
}

func TestRegistrationHandlerSelectBadPayload(t *testing.T) {
	router := buildRegistrationRouter(&stubRegistrationRepo{}, &stubSessionReader{capacity: 24})

	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(`{geen json`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", testStudentID)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))

	resp := performRequest(router, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRegistrationHandlerCancelLocked(t *testing.T) {
	lockedBy := testTeacherID
	regs := &stubRegistrationRepo{regs: map[string]models.Registration{
		"reg-1": {
			ID: "reg-1", SessionID: testSessionID, StudentID: testStudentID,
			Date: handlerFlexDay, Status: models.RegistrationStatusLocked, LockedByTeacherID: &lockedBy,
		},
	}}
	router := buildRegistrationRouter(regs, &stubSessionReader{capacity: 24})

	req, _ := http.NewRequest(http.MethodDelete, "/registrations/reg-1", nil)
	req.Header.Set("X-Test-User", testStudentID)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))

	resp := performRequest(router, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Contains(t, resp.Body.String(), "locked")
}

func TestRegistrationHandlerCancel(t *testing.T) {
	regs := &stubRegistrationRepo{regs: map[string]models.Registration{
		"reg-1": {
			ID: "reg-1", SessionID: testSessionID, StudentID: testStudentID,
			Date: handlerFlexDay, Status: models.RegistrationStatusSelected,
		},
	}}
	router := buildRegistrationRouter(regs, &stubSessionReader{capacity: 24})

	req, _ := http.NewRequest(http.MethodDelete, "/registrations/reg-1", nil)
	req.Header.Set("X-Test-User", testStudentID)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))

	resp := performRequest(router, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Empty(t, regs.regs)
}

func TestRegistrationHandlerRemoveReportsEmailOutcome(t *testing.T) {
	regs := &stubRegistrationRepo{regs: map[string]models.Registration{
		"reg-1": {
			ID: "reg-1", SessionID: testSessionID, StudentID: testStudentID,
			Date: handlerFlexDay, Status: models.RegistrationStatusSelected,
		},
	}}
	router := buildRegistrationRouter(regs, &stubSessionReader{capacity: 24})

	req, _ := http.NewRequest(http.MethodPost, "/registrations/reg-1/remove", nil)
	req.Header.Set("X-Test-User", testTeacherID)
	req.Header.Set("X-Test-Role", string(models.RoleTeacher))

	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"email_sent":true`)
	require.Empty(t, regs.regs)
}
