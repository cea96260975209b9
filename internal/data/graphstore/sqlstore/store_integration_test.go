package sqlstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/db"
	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/data/graphstore/sqlstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

// openStores returns the relational backends enabled by the environment:
// MDR_SQLITE_INTEGRATION=true for sqlite in a temp dir, and TEST_POSTGRES_DSN
// for postgres.
func openStores(t *testing.T) map[string]*sqlstore.Store {
	t.Helper()
	out := map[string]*sqlstore.Store{}
	log := logger.Nop()
	if os.Getenv("MDR_SQLITE_INTEGRATION") == "true" {
		svc, err := db.Open(db.Config{Driver: db.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "mdr.db")}, log)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = svc.Close() })
		out["sqlite"] = sqlstore.New(svc.DB(), log)
	}
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		svc, err := db.Open(db.Config{Driver: db.DriverPostgres, DSN: dsn}, log)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		t.Cleanup(func() { _ = svc.Close() })
		out["postgres"] = sqlstore.New(svc.DB(), log)
	}
	if len(out) == 0 {
		t.Skip("set MDR_SQLITE_INTEGRATION=true or TEST_POSTGRES_DSN to run sql store integration tests")
	}
	for name, s := range out {
		if err := s.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate %s: %v", name, err)
		}
	}
	return out
}

func TestSQLStoreEdgesAndPointers(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			uid := "ActivityGroup_" + time.Now().UTC().Format("150405.000000000")
			ref := library.RootRef{Kind: "ActivityGroup", UID: uid}
			start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
			v1, e1 := uid+"-v1", uid+"-e1"

			err := s.InTx(ctx, func(tx graphstore.Tx) error {
				if err := tx.InsertRoot(library.Root{Kind: ref.Kind, UID: ref.UID, CreatedAt: start}); err != nil {
					return err
				}
				if err := tx.InsertValue(library.Value{ID: v1, Kind: ref.Kind, RootUID: ref.UID, Ordinal: 1, Content: library.Content{"name": "A"}, CreatedAt: start}); err != nil {
					return err
				}
				if err := tx.InsertEdge(library.VersionEdge{ID: e1, Kind: ref.Kind, RootUID: ref.UID, ValueID: v1, Version: library.InitialVersion, Status: library.StatusDraft, StartDate: start}); err != nil {
					return err
				}
				return tx.SetPointer(ref, library.PointerLatest, v1)
			})
			if err != nil {
				t.Fatalf("seed: %v", err)
			}

			err = s.InTx(ctx, func(tx graphstore.Tx) error {
				return tx.InsertRoot(library.Root{Kind: ref.Kind, UID: ref.UID, CreatedAt: start})
			})
			if !errors.Is(err, graphstore.ErrDuplicate) {
				t.Fatalf("expected duplicate root, got %v", err)
			}

			var first, second bool
			err = s.InTx(ctx, func(tx graphstore.Tx) error {
				if err := tx.LockRoot(ref); err != nil {
					return err
				}
				var err error
				if first, err = tx.CloseEdge(e1, start.Add(time.Hour)); err != nil {
					return err
				}
				second, err = tx.CloseEdge(e1, start.Add(2*time.Hour))
				return err
			})
			if err != nil {
				t.Fatalf("close: %v", err)
			}
			if !first || second {
				t.Fatalf("close results: first=%v second=%v", first, second)
			}

			_ = s.View(ctx, func(tx graphstore.Tx) error {
				edges, err := tx.ListEdges(ref)
				if err != nil || len(edges) != 1 || edges[0].EndDate == nil {
					t.Fatalf("edges: %+v %v", edges, err)
				}
				p, _ := tx.GetPointers(ref)
				if p.Get(library.PointerLatest) != v1 {
					t.Fatalf("pointers: %+v", p)
				}
				v, _ := tx.GetValue(v1)
				if v == nil || v.Content["name"] != "A" {
					t.Fatalf("value: %+v", v)
				}
				return nil
			})
		})
	}
}
