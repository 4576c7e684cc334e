package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"tombstone/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status. Requests
// addressing a record also log its type and id.
func Logger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if t := c.Param("type"); t != "" {
			fields = append(fields, "entity", t)
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "entity_id", id)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.ByType(gin.ErrorTypePrivate).String())
		}

		entry := log.WithContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			entry.Errorw("http request", fields...)
			return
		}
		entry.Infow("http request", fields...)
	}
}
