package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/observability"
)

// Value resolution outcomes reported through Hooks.ValueResolved.
const (
	ValueUnchanged = "unchanged"
	ValueReused    = "reused"
	ValueCreated   = "created"
	ValueForced    = "forced"
)

// Hooks receives engine signals. ValueResolved and LinksRepointed fire inside
// the write transaction, before commit.
type Hooks interface {
	ObserveOperation(op, status string, dur time.Duration)
	IncConflict(op string)
	IncRetry(op string)
	ValueResolved(kind library.Kind, outcome string)
	LinksRepointed(kind library.Kind, rel library.RelType, n int)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration)   {}
func (noopHooks) IncConflict(string)                               {}
func (noopHooks) IncRetry(string)                                  {}
func (noopHooks) ValueResolved(library.Kind, string)               {}
func (noopHooks) LinksRepointed(library.Kind, library.RelType, int) {}

type metricsHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks reports engine signals as prometheus metrics; nil
// metrics yields a no-op.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{metrics: metrics}
}

func (h metricsHooks) ObserveOperation(op, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(strings.TrimSpace(op), strings.TrimSpace(status), dur)
}

func (h metricsHooks) IncConflict(op string) { h.metrics.IncAggregateConflict(strings.TrimSpace(op)) }

func (h metricsHooks) IncRetry(op string) { h.metrics.IncAggregateRetry(strings.TrimSpace(op)) }

func (h metricsHooks) ValueResolved(kind library.Kind, outcome string) {
	h.metrics.IncValueResolution(string(kind), outcome)
}

func (h metricsHooks) LinksRepointed(kind library.Kind, rel library.RelType, n int) {
	h.metrics.AddLinksRepointed(string(kind), string(rel), n)
}
