package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/souqly/marketd/internal/monitoring"
)

// Metrics records latency for each ops request, labelled by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitoring.RecordOpsRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
