package aggregates

import (
	"fmt"
	"sort"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// finalUsable checks that a dependency can be linked as Final: it must have
// been approved and must not be retired now.
func finalUsable(st *rootState) error {
	if st.pointers.Get(library.PointerLatestFinal) == "" {
		return library.Violation("There is no approved %s with UID '%s'.", st.ref.Kind, st.ref.UID)
	}
	if latest, ok := st.latestEdge(); ok && latest.Status == library.StatusRetired {
		return library.Violation("%s with UID '%s' is retired.", st.ref.Kind, st.ref.UID)
	}
	return nil
}

// linkTarget picks the value a new link from a relation of policy p should
// point at: the latest Final value when p requires it, else the latest value.
func linkTarget(st *rootState, p library.RelationPolicy) (string, library.Version, error) {
	if p.RequireFinal {
		if err := finalUsable(st); err != nil {
			return "", library.Version{}, err
		}
		edge, ok := library.LatestWithStatus(st.edges, library.StatusFinal)
		if !ok {
			return "", library.Version{}, InvariantError(fmt.Sprintf("%s has a final pointer but no final edge", st.ref))
		}
		return st.pointers.Get(library.PointerLatestFinal), edge.Version, nil
	}
	latest, ok := st.latestEdge()
	if !ok || st.pointers.Get(library.PointerLatest) == "" {
		return "", library.Version{}, InvariantError(fmt.Sprintf("%s has no latest version", st.ref))
	}
	return st.pointers.Get(library.PointerLatest), latest.Version, nil
}

// resolveRelations turns requested relations into concrete link targets.
// Unknown relation types and missing targets fail the write.
func (e *Engine) resolveRelations(tx graphstore.Tx, kind library.Kind, specs []library.RelationSpec) ([]library.LinkTarget, error) {
	out := make([]library.LinkTarget, 0, len(specs))
	cache := map[library.RootRef]*rootState{}
	for _, spec := range specs {
		p, ok := e.catalog.Relation(spec.Type)
		if !ok {
			return nil, ValidationError(fmt.Sprintf("unknown relation type %s", spec.Type))
		}
		if p.From != kind {
			return nil, ValidationError(fmt.Sprintf("relation %s does not start at %s", spec.Type, kind))
		}
		if spec.TargetUID == "" {
			return nil, ValidationError(fmt.Sprintf("relation %s requires a target uid", spec.Type))
		}
		ref := library.RootRef{Kind: p.To, UID: spec.TargetUID}
		st, ok := cache[ref]
		if !ok {
			var err error
			if st, err = loadRoot(tx, ref, false); err != nil {
				return nil, err
			}
			cache[ref] = st
		}
		valueID, version, err := linkTarget(st, p)
		if err != nil {
			return nil, err
		}
		props, err := library.Content(spec.Props).Normalize()
		if err != nil {
			return nil, ValidationError(fmt.Sprintf("relation %s props: %v", spec.Type, err))
		}
		if len(props) == 0 {
			props = nil
		}
		out = append(out, library.LinkTarget{
			Type:          spec.Type,
			ToKind:        p.To,
			ToRootUID:     spec.TargetUID,
			ToValueID:     valueID,
			TargetVersion: version,
			Props:         props,
		})
	}
	return out, nil
}

// buildCandidate normalizes the proposal and resolves its relations.
// Relation types flagged carry_forward that the proposal omits are copied
// from currentValueID unchanged.
func (e *Engine) buildCandidate(tx graphstore.Tx, kind library.Kind, p domainagg.Proposal, currentValueID string) (library.Candidate, error) {
	content, err := p.Content.Normalize()
	if err != nil {
		return library.Candidate{}, ValidationError(err.Error())
	}
	links, err := e.resolveRelations(tx, kind, p.Relations)
	if err != nil {
		return library.Candidate{}, err
	}
	if currentValueID != "" {
		present := map[library.RelType]bool{}
		for _, r := range p.Relations {
			present[r.Type] = true
		}
		carry := map[library.RelType]bool{}
		for _, pol := range e.catalog.RelationsFrom(kind) {
			if pol.CarryForward && !present[pol.Type] {
				carry[pol.Type] = true
			}
		}
		if len(carry) > 0 {
			existing, err := tx.ListLinksFrom(currentValueID)
			if err != nil {
				return library.Candidate{}, err
			}
			for _, l := range currentLinks(existing) {
				if !carry[l.Type] {
					continue
				}
				links = append(links, library.LinkTarget{
					Type:          l.Type,
					ToKind:        l.ToKind,
					ToRootUID:     l.ToRootUID,
					ToValueID:     l.ToValueID,
					TargetVersion: l.TargetVersion,
					Props:         l.Props,
				})
			}
		}
	}
	return library.Candidate{Content: content, Links: links}, nil
}

func (e *Engine) checkUniqueName(tx graphstore.Tx, ref library.RootRef, content library.Content) error {
	spec, err := e.kindSpec(ref.Kind)
	if err != nil {
		return err
	}
	if !spec.UniqueName {
		return nil
	}
	name := content.String(spec.NameField)
	other, err := findByName(tx, spec, name, ref.UID)
	if err != nil {
		return err
	}
	if other != "" {
		return library.Violation("%s with Name '%s' already exists.", ref.Kind, name)
	}
	return nil
}

// insertValue writes a new value and its outgoing links, stamped at.
func (e *Engine) insertValue(tx graphstore.Tx, ref library.RootRef, ordinal int, c library.Candidate, at time.Time) (library.Value, error) {
	v := library.Value{
		ID:          e.deps.NewID(),
		Kind:        ref.Kind,
		RootUID:     ref.UID,
		Ordinal:     ordinal,
		Content:     c.Content,
		ContentHash: c.Content.Hash(),
		CreatedAt:   at,
	}
	if err := tx.InsertValue(v); err != nil {
		return library.Value{}, err
	}
	seen := map[string]bool{}
	links := append([]library.LinkTarget(nil), c.Links...)
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Type != links[j].Type {
			return links[i].Type < links[j].Type
		}
		return links[i].ToRootUID < links[j].ToRootUID
	})
	for _, lt := range links {
		key := string(lt.Type) + "|" + lt.ToValueID + "|" + string(library.Content(lt.Props).Canonical())
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := tx.InsertLink(library.Link{
			ID:            e.deps.NewID(),
			Type:          lt.Type,
			FromKind:      ref.Kind,
			FromRootUID:   ref.UID,
			FromValueID:   v.ID,
			ToKind:        lt.ToKind,
			ToRootUID:     lt.ToRootUID,
			ToValueID:     lt.ToValueID,
			TargetVersion: lt.TargetVersion,
			Props:         lt.Props,
			CreatedAt:     at,
		}); err != nil {
			return library.Value{}, err
		}
	}
	return v, nil
}

// checkApprovable re-validates the value's links against require_final before
// approval or reactivation.
func (e *Engine) checkApprovable(tx graphstore.Tx, valueID string) error {
	links, err := tx.ListLinksFrom(valueID)
	if err != nil {
		return err
	}
	cache := map[library.RootRef]bool{}
	for _, l := range currentLinks(links) {
		p, ok := e.catalog.Relation(l.Type)
		if !ok || !p.RequireFinal {
			continue
		}
		ref := library.RootRef{Kind: l.ToKind, UID: l.ToRootUID}
		if cache[ref] {
			continue
		}
		st, err := loadRoot(tx, ref, false)
		if err != nil {
			return err
		}
		if err := finalUsable(st); err != nil {
			return err
		}
		cache[ref] = true
	}
	return nil
}
