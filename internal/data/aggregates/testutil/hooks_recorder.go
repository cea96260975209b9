package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// HooksRecorder keeps every engine signal for assertions.
type HooksRecorder struct {
	mu sync.Mutex

	Operations  []OperationEvent
	Conflicts   []string
	Retries     []string
	Resolutions []Resolution
	Repointed   map[library.RelType]int
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

type Resolution struct {
	Kind    library.Kind
	Outcome string
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

func (h *HooksRecorder) ValueResolved(kind library.Kind, outcome string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Resolutions = append(h.Resolutions, Resolution{Kind: kind, Outcome: outcome})
}

func (h *HooksRecorder) LinksRepointed(_ library.Kind, rel library.RelType, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Repointed == nil {
		h.Repointed = map[library.RelType]int{}
	}
	h.Repointed[rel] += n
}

// Outcomes returns the recorded resolution outcomes for kind, in order.
func (h *HooksRecorder) Outcomes(kind library.Kind) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.Resolutions {
		if r.Kind == kind {
			out = append(out, r.Outcome)
		}
	}
	return out
}
