package aggregates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// Find reconstructs a root at one version edge. Selection precedence is
// Version, then At, then Status; with none set the latest edge is used.
func (e *Engine) Find(ctx context.Context, ref library.RootRef, q library.Query) (domainagg.Snapshot, error) {
	var snap domainagg.Snapshot
	err := executeRead(ctx, e.deps, "library.find", func(tx graphstore.Tx) error {
		st, err := loadRoot(tx, ref, false)
		if err != nil {
			return err
		}
		edge, at, err := selectEdge(st, q)
		if err != nil {
			return err
		}
		snap, err = e.hydrate(tx, st, edge, at)
		return err
	})
	return snap, err
}

func selectEdge(st *rootState, q library.Query) (library.VersionEdge, *time.Time, error) {
	switch {
	case q.Version != nil:
		if edge, ok := library.EdgeWithVersion(st.edges, *q.Version, q.Status); ok {
			return edge, nil, nil
		}
		return library.VersionEdge{}, nil, NotFoundError(fmt.Sprintf("%s with UID '%s' has no version %s.", st.ref.Kind, st.ref.UID, *q.Version))
	case q.At != nil:
		at := q.At.UTC()
		if edge, ok := library.EdgeAt(st.edges, at); ok {
			return edge, &at, nil
		}
		return library.VersionEdge{}, nil, NotFoundError(fmt.Sprintf("%s with UID '%s' has no version at %s.", st.ref.Kind, st.ref.UID, at.Format(time.RFC3339)))
	case q.Status != nil:
		if edge, ok := library.LatestWithStatus(st.edges, *q.Status); ok {
			return edge, nil, nil
		}
		return library.VersionEdge{}, nil, NotFoundError(fmt.Sprintf("%s with UID '%s' has no %s version.", st.ref.Kind, st.ref.UID, *q.Status))
	default:
		if edge, ok := st.latestEdge(); ok {
			return edge, nil, nil
		}
		return library.VersionEdge{}, nil, notFoundRoot(st.ref)
	}
}

// History returns every version edge of the root, oldest first.
func (e *Engine) History(ctx context.Context, ref library.RootRef) ([]library.VersionEdge, error) {
	var out []library.VersionEdge
	err := executeRead(ctx, e.deps, "library.history", func(tx graphstore.Tx) error {
		st, err := loadRoot(tx, ref, false)
		if err != nil {
			return err
		}
		out = append([]library.VersionEdge(nil), st.edges...)
		library.SortEdges(out)
		return nil
	})
	return out, err
}

// List returns the latest snapshot of each root of kind that matches q,
// paged, together with the unpaged match count.
func (e *Engine) List(ctx context.Context, kind library.Kind, q library.ListQuery) ([]domainagg.Snapshot, int, error) {
	spec, err := e.kindSpec(kind)
	if err != nil {
		return nil, 0, MapError("library.list", err)
	}
	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	needle := strings.ToLower(strings.TrimSpace(q.NameContains))

	var (
		out   []domainagg.Snapshot
		total int
	)
	err = executeRead(ctx, e.deps, "library.list", func(tx graphstore.Tx) error {
		roots, err := tx.ListRoots(kind)
		if err != nil {
			return err
		}
		sort.Slice(roots, func(i, j int) bool { return roots[i].UID < roots[j].UID })
		type hit struct {
			st   *rootState
			edge library.VersionEdge
		}
		var hits []hit
		for _, r := range roots {
			st, err := loadRoot(tx, r.Ref(), false)
			if err != nil {
				return err
			}
			edge, ok := st.latestEdge()
			if !ok {
				continue
			}
			if q.Status != nil && edge.Status != *q.Status {
				continue
			}
			if needle != "" {
				v, ok := valueByID(st, edge.ValueID)
				if !ok || !strings.Contains(strings.ToLower(v.Content.String(spec.NameField)), needle) {
					continue
				}
			}
			hits = append(hits, hit{st: st, edge: edge})
		}
		total = len(hits)
		from := (page - 1) * size
		if from >= total {
			return nil
		}
		to := from + size
		if to > total {
			to = total
		}
		for _, h := range hits[from:to] {
			snap, err := e.hydrate(tx, h.st, h.edge, nil)
			if err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// hydrate builds the snapshot of st at edge. Links are those valid at at when
// given; otherwise those valid over the edge's window. Each link target is
// resolved to the target edge it was made against, narrowed to the same point
// in time.
func (e *Engine) hydrate(tx graphstore.Tx, st *rootState, edge library.VersionEdge, at *time.Time) (domainagg.Snapshot, error) {
	value, ok := valueByID(st, edge.ValueID)
	if !ok {
		v, err := tx.GetValue(edge.ValueID)
		if err != nil {
			return domainagg.Snapshot{}, err
		}
		if v == nil {
			return domainagg.Snapshot{}, InvariantError(fmt.Sprintf("%s edge %s points at missing value %s", st.ref, edge.ID, edge.ValueID))
		}
		value = *v
	}
	links, err := tx.ListLinksFrom(value.ID)
	if err != nil {
		return domainagg.Snapshot{}, err
	}
	pivot := edge.StartDate
	if at != nil {
		pivot = *at
	}
	targets := rootCache{tx: tx, roots: map[library.RootRef]*rootState{}}
	var relations []library.Relation
	for _, l := range links {
		if !linkVisible(l, edge, at) {
			continue
		}
		tst, err := targets.load(library.RootRef{Kind: l.ToKind, UID: l.ToRootUID})
		if err != nil {
			return domainagg.Snapshot{}, err
		}
		rel, err := e.relationOf(tx, l, tst, pivot)
		if err != nil {
			return domainagg.Snapshot{}, err
		}
		if rel.PropTargets, err = e.propTargets(&targets, l, pivot); err != nil {
			return domainagg.Snapshot{}, err
		}
		relations = append(relations, rel)
	}
	sort.SliceStable(relations, func(i, j int) bool {
		if relations[i].Type != relations[j].Type {
			return relations[i].Type < relations[j].Type
		}
		return relations[i].TargetUID < relations[j].TargetUID
	})
	snap := domainagg.Snapshot{
		Root:      st.root,
		Edge:      edge,
		Value:     value,
		Relations: relations,
	}
	if edge.IsOpen() {
		snap.PossibleActions = library.PossibleActions(edge.Status)
	}
	return snap, nil
}

type rootCache struct {
	tx    graphstore.Tx
	roots map[library.RootRef]*rootState
}

func (c *rootCache) load(ref library.RootRef) (*rootState, error) {
	if st, ok := c.roots[ref]; ok {
		return st, nil
	}
	st, err := loadRoot(c.tx, ref, false)
	if err != nil {
		return nil, err
	}
	c.roots[ref] = st
	return st, nil
}

// propTargets resolves the roots named by l's catalog prop refs as they were
// at pivot. Final-only relations read the latest Final edge started by then.
// Props naming unknown roots, or roots with no edge yet, are left out.
func (e *Engine) propTargets(c *rootCache, l library.Link, pivot time.Time) (map[string]library.PropTarget, error) {
	p, ok := e.catalog.Relation(l.Type)
	if !ok || len(p.PropRefs) == 0 {
		return nil, nil
	}
	var out map[string]library.PropTarget
	for prop, kind := range p.PropRefs {
		uid, _ := l.Props[prop].(string)
		if uid == "" {
			continue
		}
		st, err := c.load(library.RootRef{Kind: kind, UID: uid})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var (
			edge  library.VersionEdge
			found bool
		)
		if p.RequireFinal {
			edge, found = library.LatestWithStatusAt(st.edges, library.StatusFinal, pivot)
		}
		if !found {
			edge, found = library.EdgeAt(st.edges, pivot)
		}
		if !found {
			continue
		}
		value, ok := valueByID(st, edge.ValueID)
		if !ok {
			v, err := c.tx.GetValue(edge.ValueID)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, InvariantError(fmt.Sprintf("%s edge %s points at missing value %s", st.ref, edge.ID, edge.ValueID))
			}
			value = *v
		}
		if out == nil {
			out = make(map[string]library.PropTarget, len(p.PropRefs))
		}
		out[prop] = library.PropTarget{
			Kind:    kind,
			UID:     uid,
			ValueID: value.ID,
			Version: edge.Version,
			Status:  edge.Status,
			Content: value.Content,
		}
	}
	return out, nil
}

// linkVisible decides whether l belongs to the value as seen through edge.
func linkVisible(l library.Link, edge library.VersionEdge, at *time.Time) bool {
	if at != nil {
		return l.ValidAt(*at)
	}
	if edge.IsOpen() {
		return l.Current()
	}
	end := *edge.EndDate
	created := !l.CreatedAt.After(edge.StartDate) || l.CreatedAt.Before(end)
	return created && (l.SupersededAt == nil || !l.SupersededAt.Before(end))
}

func (e *Engine) relationOf(tx graphstore.Tx, l library.Link, tst *rootState, pivot time.Time) (library.Relation, error) {
	own := library.EdgesForValue(tst.edges, l.ToValueID)
	var pinned []library.VersionEdge
	for _, te := range own {
		if te.Version.Compare(l.TargetVersion) == 0 {
			pinned = append(pinned, te)
		}
	}
	if len(pinned) == 0 {
		pinned = own
	}
	tedge, ok := library.EdgeForValueAt(pinned, l.ToValueID, pivot)
	if !ok {
		return library.Relation{}, InvariantError(fmt.Sprintf("link %s targets %s value %s with no version edge", l.ID, tst.ref, l.ToValueID))
	}
	tvalue, ok := valueByID(tst, l.ToValueID)
	if !ok {
		v, err := tx.GetValue(l.ToValueID)
		if err != nil {
			return library.Relation{}, err
		}
		if v == nil {
			return library.Relation{}, InvariantError(fmt.Sprintf("link %s targets missing value %s", l.ID, l.ToValueID))
		}
		tvalue = *v
	}
	current := tst.pointers.Get(library.PointerLatest)
	if p, ok := e.catalog.Relation(l.Type); ok && p.RequireFinal {
		current = tst.pointers.Get(library.PointerLatestFinal)
	}
	return library.Relation{
		Type:          l.Type,
		TargetKind:    l.ToKind,
		TargetUID:     l.ToRootUID,
		TargetValueID: l.ToValueID,
		TargetVersion: tedge.Version,
		TargetStatus:  tedge.Status,
		TargetContent: tvalue.Content,
		Props:         l.Props,
		Stale:         current != l.ToValueID,
	}, nil
}
