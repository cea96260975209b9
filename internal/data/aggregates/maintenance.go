package aggregates

import (
	"context"
	"fmt"
	"sort"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// maxUIDProbe bounds how many minted uids may collide with imported roots
// before allocation gives up.
const maxUIDProbe = 1000

// allocateUID returns uid when given (rejecting an existing one and raising
// the counter past it), otherwise the next free uid of the kind. It runs in
// the caller's transaction so the counter rolls back with a failed create.
func (e *Engine) allocateUID(tx graphstore.Tx, spec library.KindSpec, uid string) (string, error) {
	if uid != "" {
		existing, err := tx.GetRoot(library.RootRef{Kind: spec.Kind, UID: uid})
		if err != nil {
			return "", err
		}
		if existing != nil {
			return "", library.Violation("%s with UID '%s' already exists.", spec.Kind, uid)
		}
		if seq, ok := spec.ParseUIDSequence(uid); ok {
			if err := tx.SetSequenceFloor(spec.Kind, seq); err != nil {
				return "", err
			}
		}
		return uid, nil
	}
	for i := 0; i < maxUIDProbe; i++ {
		seq, err := tx.NextSequence(spec.Kind)
		if err != nil {
			return "", err
		}
		candidate := spec.FormatUID(seq)
		existing, err := tx.GetRoot(library.RootRef{Kind: spec.Kind, UID: candidate})
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
	return "", InvariantError(fmt.Sprintf("no free uid for %s after %d attempts", spec.Kind, maxUIDProbe))
}

// AllocateUID reserves the next uid of kind in its own transaction.
func (e *Engine) AllocateUID(ctx context.Context, kind library.Kind) (string, error) {
	var uid string
	err := executeWrite(ctx, e.deps, "library.allocate_uid", func(tx graphstore.Tx) error {
		spec, err := e.kindSpec(kind)
		if err != nil {
			return err
		}
		uid, err = e.allocateUID(tx, spec, "")
		return err
	})
	return uid, err
}

// SyncSequences raises every kind's counter to the highest persisted uid.
func (e *Engine) SyncSequences(ctx context.Context) (map[library.Kind]int64, error) {
	out := map[library.Kind]int64{}
	err := executeWrite(ctx, e.deps, "library.sync_sequences", func(tx graphstore.Tx) error {
		for _, kind := range e.catalog.Kinds() {
			spec, _ := e.catalog.Kind(kind)
			roots, err := tx.ListRoots(kind)
			if err != nil {
				return err
			}
			var max int64
			for _, r := range roots {
				if seq, ok := spec.ParseUIDSequence(r.UID); ok && seq > max {
					max = seq
				}
			}
			if err := tx.SetSequenceFloor(kind, max); err != nil {
				return err
			}
			cur, err := tx.CurrentSequence(kind)
			if err != nil {
				return err
			}
			out[kind] = cur
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.deps.Log.Info("uid sequences synced", "kinds", len(out))
	return out, nil
}

// StaleLinks lists current outgoing links of the root's latest value whose
// target has moved past the linked value.
func (e *Engine) StaleLinks(ctx context.Context, ref library.RootRef) ([]domainagg.StaleLink, error) {
	var out []domainagg.StaleLink
	err := executeRead(ctx, e.deps, "library.stale_links", func(tx graphstore.Tx) error {
		st, err := loadRoot(tx, ref, false)
		if err != nil {
			return err
		}
		links, err := tx.ListLinksFrom(st.pointers.Get(library.PointerLatest))
		if err != nil {
			return err
		}
		targets := map[library.RootRef]*rootState{}
		for _, l := range currentLinks(links) {
			tref := library.RootRef{Kind: l.ToKind, UID: l.ToRootUID}
			tst, ok := targets[tref]
			if !ok {
				if tst, err = loadRoot(tx, tref, false); err != nil {
					return err
				}
				targets[tref] = tst
			}
			pointer := library.PointerLatest
			if p, ok := e.catalog.Relation(l.Type); ok && p.RequireFinal {
				pointer = library.PointerLatestFinal
			}
			current := tst.pointers.Get(pointer)
			if current == "" || current == l.ToValueID {
				continue
			}
			stale := domainagg.StaleLink{Link: l, CurrentValueID: current}
			if edge, ok := library.LatestEdge(library.EdgesForValue(tst.edges, current)); ok {
				stale.CurrentVersion = edge.Version
			}
			out = append(out, stale)
		}
		return nil
	})
	return out, err
}

// Dependents returns the current links of type rel into ref that start at
// the latest value of their owner.
func (e *Engine) Dependents(ctx context.Context, ref library.RootRef, rel library.RelType) ([]domainagg.DependentLink, error) {
	var out []domainagg.DependentLink
	err := executeRead(ctx, e.deps, "library.dependents", func(tx graphstore.Tx) error {
		incoming, err := tx.ListLinksTo(ref)
		if err != nil {
			return err
		}
		owners := map[library.RootRef]*rootState{}
		for _, l := range incoming {
			if l.Type != rel || !l.Current() {
				continue
			}
			dref := library.RootRef{Kind: l.FromKind, UID: l.FromRootUID}
			dst, ok := owners[dref]
			if !ok {
				if dst, err = loadRoot(tx, dref, false); err != nil {
					return err
				}
				owners[dref] = dst
			}
			if dst.pointers.Get(library.PointerLatest) != l.FromValueID {
				continue
			}
			edge, ok := dst.latestEdge()
			if !ok {
				continue
			}
			out = append(out, domainagg.DependentLink{Dependent: dref, Edge: edge, Link: l})
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Dependent.UID < out[j].Dependent.UID })
	return out, err
}

// Compact deletes superseded links from values of the root that no pointer
// references. Point-in-time reads of those values lose the removed links.
func (e *Engine) Compact(ctx context.Context, ref library.RootRef) (int, error) {
	removed := 0
	err := executeWrite(ctx, e.deps, "library.compact", func(tx graphstore.Tx) error {
		st, err := loadRoot(tx, ref, true)
		if err != nil {
			return err
		}
		live := st.pointers.Targets()
		for _, v := range st.values {
			if live[v.ID] {
				continue
			}
			links, err := tx.ListLinksFrom(v.ID)
			if err != nil {
				return err
			}
			for _, l := range links {
				if l.Current() {
					continue
				}
				if err := tx.DeleteLink(l.ID); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.deps.Log.Info("root compacted", "root", ref.String(), "links_removed", removed)
	return removed, nil
}
