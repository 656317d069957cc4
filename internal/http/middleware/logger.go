package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger prints one line per request including request_id and caller role.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		role := "-"
		if rc, ok := Caller(c); ok {
			role = string(rc.Role)
		}

		log.Printf("[HTTP] request_id=%s method=%s route=%s status=%d bytes=%d latency_ms=%.3f role=%s ip=%s",
			GetRequestID(c),
			c.Request.Method,
			route,
			c.Writer.Status(),
			c.Writer.Size(),
			float64(latency.Microseconds())/1000.0,
			role,
			c.ClientIP(),
		)
	}
}
