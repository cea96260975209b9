package aggregates

import (
	"time"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// repointIncoming moves current links of repointable types from oldValueID of
// ref to newValueID. Only parents whose latest value is an unreleased Draft
// follow; released parents keep pointing at the value they were approved with.
// The old link is superseded at the transition instant, or deleted when
// disconnect is set.
func (e *Engine) repointIncoming(tx graphstore.Tx, ref library.RootRef, oldValueID, newValueID string, newVersion library.Version, at time.Time, disconnect bool) ([]library.RootRef, error) {
	types := e.catalog.Repointable(ref.Kind)
	if len(types) == 0 || oldValueID == "" || oldValueID == newValueID {
		return nil, nil
	}
	wanted := make(map[library.RelType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	incoming, err := tx.ListLinksTo(ref)
	if err != nil {
		return nil, err
	}
	parents := map[library.RootRef]*rootState{}
	eligible := map[library.RootRef]bool{}
	var touched []library.RootRef
	moved := map[library.RelType]int{}
	for _, l := range incoming {
		if !wanted[l.Type] || !l.Current() || l.ToValueID != oldValueID {
			continue
		}
		pref := library.RootRef{Kind: l.FromKind, UID: l.FromRootUID}
		pst, seen := parents[pref]
		if !seen {
			pst, err = loadRoot(tx, pref, true)
			if err != nil {
				return nil, err
			}
			parents[pref] = pst
		}
		if !draftParent(pst, l.FromValueID) {
			continue
		}
		if !eligible[pref] {
			eligible[pref] = true
			touched = append(touched, pref)
		}
		if err := tx.InsertLink(library.Link{
			ID:            e.deps.NewID(),
			Type:          l.Type,
			FromKind:      l.FromKind,
			FromRootUID:   l.FromRootUID,
			FromValueID:   l.FromValueID,
			ToKind:        ref.Kind,
			ToRootUID:     ref.UID,
			ToValueID:     newValueID,
			TargetVersion: newVersion,
			Props:         l.Props,
			CreatedAt:     at,
		}); err != nil {
			return nil, err
		}
		moved[l.Type]++
		if disconnect {
			if err := tx.DeleteLink(l.ID); err != nil {
				return nil, err
			}
			continue
		}
		ok, err := tx.SupersedeLink(l.ID, at)
		if err != nil {
			return nil, err
		}
		if err := RequireCASSuccess(ok, "link "+l.ID+" was superseded concurrently"); err != nil {
			return nil, err
		}
	}
	for rel, n := range moved {
		e.deps.Hooks.LinksRepointed(ref.Kind, rel, n)
	}
	if len(touched) > 0 {
		e.deps.Log.Debug("incoming links repointed",
			"root", ref.String(),
			"parents", len(touched),
			"disconnect", disconnect,
		)
	}
	return touched, nil
}

// draftParent reports whether valueID is the parent's latest value and has only
// ever been seen in Draft.
func draftParent(st *rootState, valueID string) bool {
	open := library.OpenEdges(st.edges)
	if len(open) != 1 || open[0].Status != library.StatusDraft {
		return false
	}
	if st.pointers.Get(library.PointerLatest) != valueID {
		return false
	}
	for _, e := range library.EdgesForValue(st.edges, valueID) {
		if e.Status != library.StatusDraft {
			return false
		}
	}
	return true
}
