package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck is one named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if len(h.checks) == 0 {
		c.String(http.StatusOK, "ok")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	status := http.StatusOK
	results := gin.H{}
	for _, hc := range h.checks {
		if hc.Check == nil {
			continue
		}
		if err := hc.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[hc.Name] = err.Error()
			continue
		}
		results[hc.Name] = "ok"
	}
	c.JSON(status, results)
}
