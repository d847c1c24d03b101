package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/portalpay/backend/internal/domain/split"
)

const ginLoggerKey = "logger"

// GinMiddleware logs each request and stores a request-scoped logger in the
// gin context. The merchant wallet and brand key are attached when the
// request carries them, so split operations correlate without every handler
// repeating the fields.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		query := c.Request.URL.RawQuery

		reqLogger := logger.With(requestFields(c)...)
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		msg := "request completed"
		switch status := c.Writer.Status(); {
		case status >= 500:
			reqLogger.Error(msg, fields...)
		case status >= 400:
			reqLogger.Warn(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

// requestFields builds the identifying fields for a request: request id,
// method and path always, wallet and brand key when present.
func requestFields(c *gin.Context) []zap.Field {
	fields := []zap.Field{
		zap.String("request_id", c.GetString("request_id")),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	}
	if w := c.GetHeader("X-Wallet"); split.IsHexAddress(w) {
		fields = append(fields, zap.String("wallet", split.NormalizeAddress(w)))
	}
	if bk := c.Query("brandKey"); bk != "" {
		fields = append(fields, zap.String("brand_key", bk))
	}
	return fields
}

// Recovery recovers from handler panics, logs them with the request
// identity and answers 500.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				fields := append(requestFields(c),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				logger.Error("panic recovered", fields...)
				c.AbortWithStatus(500)
			}
		}()
		c.Next()
	}
}

// GetGinLogger returns the request-scoped logger, or a no-op logger when
// the middleware did not run (tests, bare engines).
func GetGinLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(ginLoggerKey); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
