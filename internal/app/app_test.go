package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-backend/internal/platform/rootlock"
)

func setMemoryEnv(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("LOG_MODE", "development")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("LIBRARY_CATALOG_YAML", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("ROOT_LOCK_WAIT_SECONDS", "2")
	cfg := LoadConfig(nil)
	if cfg.Port != "8080" || cfg.Store.Driver != "memory" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.LockWait.Seconds() != 2 || cfg.LockTTL.Seconds() != 30 {
		t.Fatalf("lock timings: ttl=%v wait=%v", cfg.LockTTL, cfg.LockWait)
	}
}

func TestNewWiresMemoryStack(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("METRICS_ENABLED", "true")

	a, err := New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Clients.DB != nil || a.Clients.Neo4j != nil || a.Services.Projector != nil {
		t.Fatalf("memory stack must not open external clients")
	}
	if _, ok := a.Clients.Locks.(*rootlock.Memory); !ok {
		t.Fatalf("expected in-process locks, got %T", a.Clients.Locks)
	}
	if a.Metrics == nil {
		t.Fatalf("metrics must be enabled")
	}

	body := `{"name":"Vital signs","definition":"Vitals"}`
	req := httptest.NewRequest(http.MethodPost, "/api/library/ActivityGroup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Author-Id", "author-1")
	w := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "mdr_aggregate_operation") {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("STORE_DRIVER", "oracle")
	if _, err := New(context.Background()); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
