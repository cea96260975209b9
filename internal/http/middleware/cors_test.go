package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSAllowsLocalDevOrigins(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	origins := []string{
		"http://localhost:5174",
		"http://127.0.0.1:5174",
	}

	for _, origin := range origins {
		origin := origin
		t.Run(origin, func(t *testing.T) {
			t.Parallel()
			r := gin.New()
			r.Use(CORS())
			r.OPTIONS("/api/library/ActivityGroup", func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodOptions, "/api/library/ActivityGroup", nil)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNoContent)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
				t.Fatalf("unexpected allow-origin header: got=%q want=%q", got, origin)
			}
		})
	}
}

func TestCORSAllowedOriginsFromEnv(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://mdr.example.org, https://admin.example.org")

	r := gin.New()
	r.Use(CORS())
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })

	for origin, allowed := range map[string]bool{
		"https://admin.example.org": true,
		"http://localhost:5173":     false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		got := rec.Header().Get("Access-Control-Allow-Origin")
		if allowed && got != origin {
			t.Fatalf("origin %s: allow-origin=%q", origin, got)
		}
		if !allowed && got != "" {
			t.Fatalf("origin %s must be rejected, allow-origin=%q", origin, got)
		}
	}
}
