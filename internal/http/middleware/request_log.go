package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-backend/internal/platform/ctxutil"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

// RequestLogger logs one line per request after it completes. Probe and scrape
// routes log at debug.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		td := ctxutil.GetTraceData(c.Request.Context())

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td != nil {
			if td.TraceID != "" {
				fields = append(fields, "trace_id", td.TraceID)
			}
			if td.RequestID != "" {
				fields = append(fields, "request_id", td.RequestID)
			}
		}
		if kind := c.Param("kind"); kind != "" {
			fields = append(fields, "kind", kind)
		}
		if uid := c.Param("uid"); uid != "" {
			fields = append(fields, "uid", uid)
		}
		if author := ctxutil.AuthorFrom(c.Request.Context()); author != "" {
			fields = append(fields, "author_id", author)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case unmeasured[path] && status < 400:
			log.Debug("HTTP request", fields...)
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
