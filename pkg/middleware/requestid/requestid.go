package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header names the request ID header on both request and response.
	Header = "X-Request-ID"

	contextKey = "request_id"
)

// Middleware tags every request with an ID. A client-supplied X-Request-ID
// is honored so IDs stay stable across service hops; otherwise a fresh
// UUID is minted. The ID is echoed on the response and stashed in the Gin
// context for the access logger.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)

		c.Next()
	}
}

// Value returns the request ID for the current request, or "" when the
// middleware did not run.
func Value(c *gin.Context) string {
	id, _ := c.Get(contextKey)
	if s, ok := id.(string); ok {
		return s
	}
	return ""
}
