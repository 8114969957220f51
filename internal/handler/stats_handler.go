package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flextime-hq/flextime-api/internal/service"
	"github.com/flextime-hq/flextime-api/pkg/response"
)

// StatsHandler exposes the admin overview.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler creates a new handler.
func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Overview godoc
// @Summary Admin overview
// @Description Dashboard counters: users, flex dates, sessions needing attention, and selection coverage
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/stats [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	stats, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
