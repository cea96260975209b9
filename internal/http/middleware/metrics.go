package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-backend/internal/observability"
)

// unmeasured routes are probes and scrapes.
var unmeasured = map[string]bool{
	"/healthcheck": true,
	"/metrics":     true,
}

// Metrics records request counts and latency per route and library kind.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if unmeasured[route] {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		m.ObserveAPI(c.Request.Method, route, c.Param("kind"), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
