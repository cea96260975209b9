package aggregates

import (
	"testing"
	"time"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

func TestRequireVersionMatch(t *testing.T) {
	v := library.Version{Major: 1, Minor: 0}
	if err := RequireVersionMatch(v, nil); err != nil {
		t.Fatalf("unexpected err without expectation: %v", err)
	}
	same := library.Version{Major: 1, Minor: 0}
	if err := RequireVersionMatch(v, &same); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	other := library.Version{Major: 1, Minor: 1}
	if err := RequireVersionMatch(v, &other); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestRequireSingleOpenEdge(t *testing.T) {
	ref := library.RootRef{Kind: "ActivityGroup", UID: "ActivityGroup_000001"}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	closed := library.VersionEdge{ID: "e1", Version: library.InitialVersion, Status: library.StatusDraft, StartDate: t0, EndDate: &t1}
	open := library.VersionEdge{ID: "e2", Version: library.Version{Major: 1, Minor: 0}, Status: library.StatusFinal, StartDate: t1}

	got, err := RequireSingleOpenEdge(ref, []library.VersionEdge{closed, open})
	if err != nil || got.ID != "e2" {
		t.Fatalf("want e2, got %+v err=%v", got, err)
	}

	_, err = RequireSingleOpenEdge(ref, []library.VersionEdge{closed})
	if err == nil || MapError("op", err).Error() == "" {
		t.Fatalf("expected error for no open edge")
	}
	if !domainagg.IsCode(MapError("op", err), domainagg.CodeBusinessRule) {
		t.Fatalf("no open edge should be a business rule, got %v", err)
	}

	second := open
	second.ID = "e3"
	_, err = RequireSingleOpenEdge(ref, []library.VersionEdge{open, second})
	if !domainagg.IsCode(MapError("op", err), domainagg.CodeInvariantViolation) {
		t.Fatalf("two open edges should be an invariant violation, got %v", err)
	}
}
