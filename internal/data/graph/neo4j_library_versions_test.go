package graph

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/data/graphstore/memory"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

func TestBuildProjection(t *testing.T) {
	store := memory.New()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	item := library.RootRef{Kind: "OdmItem", UID: "OdmItem_000001"}
	group := library.RootRef{Kind: "OdmItemGroup", UID: "OdmItemGroup_000001"}
	err := store.InTx(context.Background(), func(tx graphstore.Tx) error {
		for _, ref := range []library.RootRef{item, group} {
			if err := tx.InsertRoot(library.Root{Kind: ref.Kind, UID: ref.UID, CreatedAt: t0}); err != nil {
				return err
			}
			v := library.Value{ID: "v-" + ref.UID, Kind: ref.Kind, RootUID: ref.UID, Ordinal: 1, Content: library.Content{"name": ref.UID}, CreatedAt: t0}
			if err := tx.InsertValue(v); err != nil {
				return err
			}
			if err := tx.InsertEdge(library.VersionEdge{ID: "e-" + ref.UID, Kind: ref.Kind, RootUID: ref.UID, ValueID: v.ID, Version: library.InitialVersion, Status: library.StatusDraft, StartDate: t0}); err != nil {
				return err
			}
			if err := tx.SetPointer(ref, library.PointerLatest, v.ID); err != nil {
				return err
			}
		}
		return tx.InsertLink(library.Link{
			ID: "l1", Type: "ITEM_REF",
			FromKind: group.Kind, FromRootUID: group.UID, FromValueID: "v-" + group.UID,
			ToKind: item.Kind, ToRootUID: item.UID, ToValueID: "v-" + item.UID,
			TargetVersion: library.InitialVersion, Props: map[string]any{"order": 1.0}, CreatedAt: t0,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var p Projection
	err = store.View(context.Background(), func(tx graphstore.Tx) error {
		var err error
		p, err = BuildProjection(tx, []library.RootRef{group, {Kind: "OdmItem", UID: "missing"}}, t0)
		return err
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(p.Roots) != 1 || p.Roots[0]["key"] != "OdmItemGroup/OdmItemGroup_000001" {
		t.Fatalf("roots: %+v", p.Roots)
	}
	if len(p.Versions) != 1 || p.Versions[0]["version"] != "0.1" || p.Versions[0]["end_date"] != nil {
		t.Fatalf("versions: %+v", p.Versions)
	}
	links := p.Links["ITEM_REF"]
	if len(links) != 1 || links[0]["props_json"] != `{"order":1}` || links[0]["to_root"] != "OdmItem/OdmItem_000001" {
		t.Fatalf("links: %+v", links)
	}
	if rows := p.Pointers[library.PointerLatest]; len(rows) != 1 || rows[0]["value_id"] != "v-"+group.UID {
		t.Fatalf("pointers: %+v", p.Pointers)
	}
}

func TestVersionProjector_NoClientIsNoop(t *testing.T) {
	p := NewVersionProjector(nil, memory.New(), nil, nil)
	if err := p.Project(context.Background(), []library.RootRef{{Kind: "OdmItem", UID: "x"}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
