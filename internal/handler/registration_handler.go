package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flextime-hq/flextime-api/internal/service"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
	"github.com/flextime-hq/flextime-api/pkg/response"
)

// RegistrationHandler wires the selection workflow endpoints.
type RegistrationHandler struct {
	service *service.RegistrationService
	metrics *service.MetricsService
}

// NewRegistrationHandler creates a new handler.
func NewRegistrationHandler(svc *service.RegistrationService, metrics *service.MetricsService) *RegistrationHandler {
	return &RegistrationHandler{service: svc, metrics: metrics}
}

// Select godoc
// @Summary Select a session
// @Description Register the current student for a session, replacing any prior selection for the date
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.SelectSessionRequest true "Selection payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Select(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SelectSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}

	detail, err := h.service.Select(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordRegistrationEvent("select")
	response.Created(c, detail)
}

// Cancel godoc
// @Summary Cancel a selection
// @Description Cancel the current student's selection
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordRegistrationEvent("cancel")
	response.NoContent(c)
}

// Lock godoc
// @Summary Lock a student into a session
// @Description Force a student into one of the teacher's sessions, displacing any existing selection
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.LockStudentRequest true "Lock payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/lock [post]
func (h *RegistrationHandler) Lock(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.LockStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lock payload"))
		return
	}

	detail, err := h.service.Lock(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordRegistrationEvent("lock")
	response.JSON(c, http.StatusOK, detail, nil)
}

// Unlock godoc
// @Summary Release a lock
// @Description Revert a locked registration to a normal selection
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /registrations/{id}/unlock [post]
func (h *RegistrationHandler) Unlock(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.service.Unlock(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordRegistrationEvent("unlock")
	response.JSON(c, http.StatusOK, detail, nil)
}

// Remove godoc
// @Summary Remove a student from a session
// @Description Remove a registration; the student is notified in-app and by email
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id}/remove [post]
func (h *RegistrationHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	emailSent, err := h.service.Remove(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordRegistrationEvent("remove")
	response.JSON(c, http.StatusOK, gin.H{"email_sent": emailSent}, nil)
}

// Mine godoc
// @Summary My registrations
// @Description List the current user's registrations from today forward
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/me [get]
func (h *RegistrationHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	regs, err := h.service.ListForStudent(c.Request.Context(), claims, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, regs, nil)
}

// ForStudent godoc
// @Summary Registrations for a student
// @Description List a student's registrations from today forward
// @Tags Registrations
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /registrations/students/{id} [get]
func (h *RegistrationHandler) ForStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	regs, err := h.service.ListForStudent(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, regs, nil)
}
