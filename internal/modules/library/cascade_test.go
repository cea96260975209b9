package library_test

import (
	"context"
	"testing"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	lib "github.com/yungbote/mdr-backend/internal/modules/library"
	"github.com/yungbote/mdr-backend/internal/modules/library/steps"
)

func (f *fixture) approveCascade(kind library.Kind, uid string) lib.ApproveResult {
	f.t.Helper()
	res, err := f.uc.Approve(f.ctx, lib.ApproveRequest{Kind: string(kind), UID: uid, Cascade: true, Audit: lib.AuditInput{AuthorID: "tester"}})
	if err != nil {
		f.t.Fatalf("approve %s %s with cascade: %v", kind, uid, err)
	}
	if res.Cascade == nil {
		f.t.Fatalf("approve %s %s: no cascade report", kind, uid)
	}
	return res
}

func wantBranches(t *testing.T, report *steps.CascadeReport, want ...steps.CascadeOutcome) {
	t.Helper()
	if len(report.Branches) != len(want) {
		t.Fatalf("branches: want %d got %+v", len(want), report.Branches)
	}
	for i, w := range want {
		if report.Branches[i].Outcome != w {
			t.Fatalf("branch %d (%s): want %s got %s", i, report.Branches[i].Dependent, w, report.Branches[i].Outcome)
		}
	}
}

func TestCascade_GroupRenameRefreshesSubGroup(t *testing.T) {
	f := newFixture(t)
	a := f.finalGroup("A")
	s := f.finalSubGroup("S", a.UID)
	wantRecord(t, s, "1.0", library.StatusFinal)

	draft := must(f.groups.NewVersion(f.ctx, a.UID, &lib.ActivityGroup{Name: "A2"}, audit))(t)
	wantRecord(t, draft, "1.1", library.StatusDraft)

	res := f.approveCascade(lib.KindActivityGroup, a.UID)
	if !res.Cascade.Performed || res.Cascade.Blocked {
		t.Fatalf("report: %+v", res.Cascade)
	}
	wantBranches(t, res.Cascade, steps.OutcomeRefreshed)
	if got := res.Cascade.Branches[0].Version; got != "2.0" {
		t.Fatalf("refreshed version: want 2.0 got %s", got)
	}

	history := must(f.subGroups.History(f.ctx, s.UID))(t)
	wantHistory := []struct {
		version string
		status  library.Status
	}{
		{"0.1", library.StatusDraft},
		{"1.0", library.StatusFinal},
		{"1.1", library.StatusDraft},
		{"1.2", library.StatusDraft},
		{"2.0", library.StatusFinal},
	}
	if len(history) != len(wantHistory) {
		t.Fatalf("history: want %d edges got %d", len(wantHistory), len(history))
	}
	for i, w := range wantHistory {
		if history[i].Version.String() != w.version || history[i].Status != w.status {
			t.Fatalf("edge %d: want %s %s got %s %s", i, w.version, w.status, history[i].Version, history[i].Status)
		}
	}

	groupNameAt := map[string]string{"1.0": "A", "1.1": "A", "1.2": "A2", "2.0": "A2"}
	for version, name := range groupNameAt {
		rec := must(f.subGroups.Find(f.ctx, s.UID, atVersion(t, version)))(t)
		if len(rec.Value.ActivityGroups) != 1 {
			t.Fatalf("S@%s groups: %+v", version, rec.Value.ActivityGroups)
		}
		if got := rec.Value.ActivityGroups[0].Name; got != name {
			t.Fatalf("S@%s group name: want %q got %q", version, name, got)
		}
	}
	latest := must(f.subGroups.Find(f.ctx, s.UID, library.Query{}))(t)
	if g := latest.Value.ActivityGroups[0]; g.Version != "2.0" || g.Stale {
		t.Fatalf("latest S group ref: %+v", g)
	}
}

func TestCascade_RemovedGroupingBlocksOnlyItsBranch(t *testing.T) {
	f := newFixture(t)
	g := f.finalGroup("G")
	g2 := f.finalGroup("G2")
	s1 := f.finalSubGroup("S1", g.UID, g2.UID)
	x := f.finalActivity("X", g2.UID, s1.UID)
	y := f.finalActivity("Y", g.UID, s1.UID)

	inst := must(f.instances.Create(f.ctx, "", lib.ActivityInstance{
		Name: "IY",
		Groupings: []lib.ActivityInstanceGrouping{{
			Activity:         lib.Ref{UID: y.UID},
			ActivitySubGroup: lib.Ref{UID: s1.UID},
			ActivityGroup:    lib.Ref{UID: g.UID},
		}},
	}, audit))(t)
	must(f.instances.Approve(f.ctx, inst.UID, audit))(t)

	must(f.subGroups.NewVersion(f.ctx, s1.UID, &lib.ActivitySubGroup{
		Name:           "S1",
		ActivityGroups: []lib.Ref{{UID: g.UID}},
	}, audit))(t)
	res := f.approveCascade(lib.KindActivitySubGroup, s1.UID)

	if !res.Cascade.Performed || !res.Cascade.Blocked {
		t.Fatalf("report: %+v", res.Cascade)
	}
	wantBranches(t, res.Cascade,
		steps.OutcomeBlockedRemovedKey, // X relies on (G2, S1)
		steps.OutcomeRefreshed,         // Y
		steps.OutcomeRefreshed,         // IY, through Y
	)
	if b := res.Cascade.Branches[0]; b.Dependent.UID != x.UID {
		t.Fatalf("blocked branch: want %s got %s", x.UID, b.Dependent.UID)
	}
	if b := res.Cascade.Branches[2]; b.Dependent.UID != inst.UID || b.Upstream.UID != y.UID {
		t.Fatalf("instance branch: %+v", b)
	}

	xHistory := must(f.activities.History(f.ctx, x.UID))(t)
	if len(xHistory) != 2 {
		t.Fatalf("X must stay untouched, history=%d edges", len(xHistory))
	}
	xNow := must(f.activities.Find(f.ctx, x.UID, library.Query{}))(t)
	wantRecord(t, xNow, "1.0", library.StatusFinal)
	if sg := xNow.Value.Groupings[0].ActivitySubGroup; sg.Version != "1.0" || !sg.Stale {
		t.Fatalf("X keeps its old subgroup link: %+v", sg)
	}

	yNow := must(f.activities.Find(f.ctx, y.UID, library.Query{}))(t)
	wantRecord(t, yNow, "2.0", library.StatusFinal)
	if sg := yNow.Value.Groupings[0].ActivitySubGroup; sg.Version != "2.0" || sg.Stale {
		t.Fatalf("Y subgroup: %+v", sg)
	}
	iNow := must(f.instances.Find(f.ctx, inst.UID, library.Query{}))(t)
	wantRecord(t, iNow, "2.0", library.StatusFinal)
	if a := iNow.Value.Groupings[0].Activity; a.Version != "2.0" {
		t.Fatalf("instance activity ref: %+v", a)
	}
}

func TestCascade_SkipsDraftDependents(t *testing.T) {
	f := newFixture(t)
	a := f.finalGroup("A")
	s := f.finalSubGroup("S", a.UID)
	must(f.subGroups.NewVersion(f.ctx, s.UID, nil, audit))(t)

	must(f.groups.NewVersion(f.ctx, a.UID, &lib.ActivityGroup{Name: "A renamed"}, audit))(t)
	res := f.approveCascade(lib.KindActivityGroup, a.UID)
	if res.Cascade.Performed {
		t.Fatalf("draft dependent must not be refreshed: %+v", res.Cascade)
	}
	wantBranches(t, res.Cascade, steps.OutcomeSkippedDraft)
	wantRecord(t, must(f.subGroups.Find(f.ctx, s.UID, library.Query{}))(t), "1.1", library.StatusDraft)
}

func TestCascade_SameValueIsUpToDate(t *testing.T) {
	f := newFixture(t)
	a := f.finalGroup("A")
	f.finalSubGroup("S", a.UID)

	must(f.groups.NewVersion(f.ctx, a.UID, nil, audit))(t)
	res := f.approveCascade(lib.KindActivityGroup, a.UID)
	if res.Cascade.Performed {
		t.Fatalf("report: %+v", res.Cascade)
	}
	wantBranches(t, res.Cascade, steps.OutcomeUpToDate)
}

func TestCascade_NonGroupingKindIgnoresFlag(t *testing.T) {
	f := newFixture(t)
	terms := lib.NewRepository(lib.CTTermDef, f.eng)
	term := must(terms.Create(f.ctx, "", lib.CTTerm{Name: "Weight"}, audit))(t)

	res, err := f.uc.Approve(f.ctx, lib.ApproveRequest{Kind: "ctterm", UID: term.UID, Cascade: true})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Cascade != nil {
		t.Fatalf("unexpected cascade report: %+v", res.Cascade)
	}
}

func TestCascade_LockedDependentsConflict(t *testing.T) {
	f := newFixture(t)
	a := f.finalGroup("A")
	s := f.finalSubGroup("S", a.UID)
	release, err := f.locks.Acquire(f.ctx, library.RootRef{Kind: lib.KindActivitySubGroup, UID: s.UID}.String())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release(context.Background())

	must(f.groups.NewVersion(f.ctx, a.UID, &lib.ActivityGroup{Name: "A2"}, audit))(t)
	res, err := f.uc.Approve(f.ctx, lib.ApproveRequest{Kind: string(lib.KindActivityGroup), UID: a.UID, Cascade: true})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if res.Cascade == nil || res.Cascade.Performed {
		t.Fatalf("report: %+v", res.Cascade)
	}
	// The upstream approval itself is committed.
	wantRecord(t, must(f.groups.Find(f.ctx, a.UID, library.Query{}))(t), "2.0", library.StatusFinal)
}
