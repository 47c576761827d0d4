package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware returns a Gin middleware that instruments HTTP requests
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Record metrics after request is processed
		duration := float64(time.Since(start).Milliseconds())
		statusCode := strconv.Itoa(c.Writer.Status())
		path := c.FullPath() // Use FullPath() to get the route pattern instead of actual path
		if path == "" {
			path = c.Request.URL.Path // Fallback to actual path if route pattern not available
		}

		RecordHTTPRequest(c.Request.Method, path, statusCode, duration)
	}
}
