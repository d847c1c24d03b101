package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/portalpay/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body size. Deploy payloads are small, so the
// cap mostly guards against misdirected uploads. Requests that declare an
// oversized Content-Length are rejected up front; chunked bodies are capped
// while streaming via MaxBytesReader.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeRequestTooLarge, "request body exceeds the allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
