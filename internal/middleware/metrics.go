package middleware

import (
	"strconv"
	"time"

	"caixapdv/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template.
func Metrics(m *metrics.ServerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}
