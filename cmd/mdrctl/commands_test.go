package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/yungbote/mdr-backend/internal/app"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	librarymod "github.com/yungbote/mdr-backend/internal/modules/library"
)

type fixedEnv struct{ a *app.App }

func (f fixedEnv) Open(context.Context) (*app.App, error) { return f.a, nil }

func memoryApp(t *testing.T) *app.App {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("METRICS_ENABLED", "false")
	a, err := app.New(context.Background())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return a
}

func run(t *testing.T, e env, args ...string) (string, error) {
	t.Helper()
	root := newRootCmdWith(e)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBatches(t *testing.T) {
	refs := make([]library.RootRef, 5)
	got := batches(refs, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Fatalf("batches: %v", got)
	}
	if got := batches(nil, 10); len(got) != 0 {
		t.Fatalf("empty: %v", got)
	}
	if got := batches(refs, 0); len(got) != 5 {
		t.Fatalf("size 0 falls back to 1: %d", len(got))
	}
}

func TestHistoryArgs(t *testing.T) {
	if _, err := run(t, fixedEnv{}, "history", "ActivityGroup"); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestHistoryPrintsVersions(t *testing.T) {
	a := memoryApp(t)
	_, err := a.Services.Library.Create(context.Background(), librarymod.CreateRequest{
		Kind:  "ActivityGroup",
		Body:  json.RawMessage(`{"name":"Vitals"}`),
		Audit: librarymod.AuditInput{AuthorID: "author-1"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := run(t, fixedEnv{a}, "history", "ActivityGroup", "ActivityGroup_000001")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []librarymod.HistoryEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(entries) != 1 || entries[0].Version != "0.1" || entries[0].Status != library.StatusDraft {
		t.Fatalf("entries: %+v", entries)
	}
}

func TestReprojectNeedsNeo4j(t *testing.T) {
	a := memoryApp(t)
	_, err := run(t, fixedEnv{a}, "reproject", "ActivityGroup")
	if err == nil || !strings.Contains(err.Error(), "NEO4J_URI") {
		t.Fatalf("expected neo4j error, got %v", err)
	}
}

func TestMigrateRejectsMemoryDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	if _, err := run(t, fixedEnv{}, "migrate"); err == nil {
		t.Fatalf("expected memory driver error")
	}
}
