package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-backend/internal/platform/ctxutil"
)

const headerAuthor = "X-Author-Id"

// AttachAuthor records the caller-supplied author id for version edges.
// Identity is asserted by the fronting gateway, not verified here.
func AttachAuthor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if author := strings.TrimSpace(c.GetHeader(headerAuthor)); author != "" {
			c.Request = c.Request.WithContext(ctxutil.WithAuthor(c.Request.Context(), author))
		}
		c.Next()
	}
}
