package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
)

// Envelope is the body shape every endpoint returns. Exactly one of Data
// or Error is set; Pagination and Meta ride along when the endpoint has
// them.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON writes a success envelope. Pass a nil pagination for unpaged
// payloads; an optional meta map is attached when provided.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	body := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		body.Meta = meta[0]
	}
	noStore(c)
	c.JSON(status, body)
}

// Created is shorthand for JSON with HTTP 201 and no pagination.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// NoContent writes an empty 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error normalizes err into the shared error shape and writes it with the
// status the error carries.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// API responses carry per-user data, so proxies must not cache them.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
