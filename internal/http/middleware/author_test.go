package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-backend/internal/platform/ctxutil"
)

func TestAttachAuthor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachAuthor())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.AuthorFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Author-Id", "  curator@example.org ")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "curator@example.org" {
		t.Fatalf("author: %q", seen)
	}

	seen = "unset"
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if seen != "" {
		t.Fatalf("author without header: %q", seen)
	}
}
