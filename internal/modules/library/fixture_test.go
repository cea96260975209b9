package library_test

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/mdr-backend/internal/data/graphstore/memory"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	lib "github.com/yungbote/mdr-backend/internal/modules/library"
	"github.com/yungbote/mdr-backend/internal/platform/rootlock"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	eng   *aggregates.Engine
	locks *rootlock.Memory
	uc    lib.Usecases

	groups     lib.Repository[lib.ActivityGroup]
	subGroups  lib.Repository[lib.ActivitySubGroup]
	activities lib.Repository[lib.Activity]
	instances  lib.Repository[lib.ActivityInstance]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewStepClock(time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC), time.Minute)
	ids := &testutil.SeqIDs{Prefix: "n"}
	eng := aggregates.NewEngine(aggregates.BaseDeps{
		Store: memory.New(),
		Now:   clock.Now,
		NewID: ids.Next,
	}, library.DefaultCatalog())
	locks := rootlock.NewMemory(50 * time.Millisecond)
	return &fixture{
		t:          t,
		ctx:        context.Background(),
		eng:        eng,
		locks:      locks,
		uc:         lib.New(lib.UsecasesDeps{Engine: eng, Locks: locks}),
		groups:     lib.NewRepository(lib.ActivityGroupDef, eng),
		subGroups:  lib.NewRepository(lib.ActivitySubGroupDef, eng),
		activities: lib.NewRepository(lib.ActivityDef, eng),
		instances:  lib.NewRepository(lib.ActivityInstanceDef, eng),
	}
}

var audit = domainagg.Audit{AuthorID: "tester"}

// must is called as must(call())(t) so call's results can be spread.
func must[T any](v T, err error) func(*testing.T) T {
	return func(t *testing.T) T {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v
	}
}

func (f *fixture) finalGroup(name string) lib.Record[lib.ActivityGroup] {
	f.t.Helper()
	g := must(f.groups.Create(f.ctx, "", lib.ActivityGroup{Name: name}, audit))(f.t)
	return must(f.groups.Approve(f.ctx, g.UID, audit))(f.t)
}

func (f *fixture) finalSubGroup(name string, groupUIDs ...string) lib.Record[lib.ActivitySubGroup] {
	f.t.Helper()
	v := lib.ActivitySubGroup{Name: name}
	for _, uid := range groupUIDs {
		v.ActivityGroups = append(v.ActivityGroups, lib.Ref{UID: uid})
	}
	s := must(f.subGroups.Create(f.ctx, "", v, audit))(f.t)
	return must(f.subGroups.Approve(f.ctx, s.UID, audit))(f.t)
}

func (f *fixture) finalActivity(name, groupUID, subGroupUID string) lib.Record[lib.Activity] {
	f.t.Helper()
	a := must(f.activities.Create(f.ctx, "", lib.Activity{
		Name: name,
		Groupings: []lib.ActivityGrouping{{
			ActivityGroup:    lib.Ref{UID: groupUID},
			ActivitySubGroup: lib.Ref{UID: subGroupUID},
		}},
	}, audit))(f.t)
	return must(f.activities.Approve(f.ctx, a.UID, audit))(f.t)
}

func wantRecord[T any](t *testing.T, r lib.Record[T], version string, status library.Status) {
	t.Helper()
	if r.Version != version || r.Status != status {
		t.Fatalf("%s %s: want %s %s got %s %s", r.Kind, r.UID, version, status, r.Version, r.Status)
	}
}

func atVersion(t *testing.T, v string) library.Query {
	t.Helper()
	parsed, err := library.ParseVersion(v)
	if err != nil {
		t.Fatalf("parse version %q: %v", v, err)
	}
	return library.Query{Version: &parsed}
}
