package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flextime-hq/flextime-api/internal/service"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
	"github.com/flextime-hq/flextime-api/pkg/response"
)

// FlexDateHandler wires flex calendar endpoints.
type FlexDateHandler struct {
	service *service.FlexDateService
}

// NewFlexDateHandler creates a new handler.
func NewFlexDateHandler(svc *service.FlexDateService) *FlexDateHandler {
	return &FlexDateHandler{service: svc}
}

// List godoc
// @Summary List flex dates
// @Description List upcoming flex dates with session and registration counts
// @Tags FlexDates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /flex-dates [get]
func (h *FlexDateHandler) List(c *gin.Context) {
	dates, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dates, nil)
}

// Upcoming godoc
// @Summary Upcoming flex dates
// @Description Flex dates inside the selection window, annotated with the caller's registration
// @Tags FlexDates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /flex-dates/upcoming [get]
func (h *FlexDateHandler) Upcoming(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dates, err := h.service.Upcoming(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dates, nil)
}

// Get godoc
// @Summary Get flex date
// @Tags FlexDates
// @Produce json
// @Param id path string true "Flex date ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /flex-dates/{id} [get]
func (h *FlexDateHandler) Get(c *gin.Context) {
	fd, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, fd, nil)
}

// Create godoc
// @Summary Create flex date
// @Description Declare a flex period on a calendar day
// @Tags FlexDates
// @Accept json
// @Produce json
// @Param payload body service.CreateFlexDateRequest true "Flex date payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /flex-dates [post]
func (h *FlexDateHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateFlexDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid flex date payload"))
		return
	}

	fd, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, fd)
}

// Update godoc
// @Summary Update flex date
// @Description Edit a flex date's type, duration, deadline, or lock flag
// @Tags FlexDates
// @Accept json
// @Produce json
// @Param id path string true "Flex date ID"
// @Param payload body service.UpdateFlexDateRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /flex-dates/{id} [put]
func (h *FlexDateHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateFlexDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid flex date payload"))
		return
	}

	fd, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, fd, nil)
}

// Delete godoc
// @Summary Delete flex date
// @Description Remove a flex date carrying no sessions
// @Tags FlexDates
// @Produce json
// @Param id path string true "Flex date ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /flex-dates/{id} [delete]
func (h *FlexDateHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
