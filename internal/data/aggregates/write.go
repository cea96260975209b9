package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// step is one lifecycle transition applied to a loaded root.
type step struct {
	action     library.Action
	proposal   *domainagg.Proposal
	audit      domainagg.Audit
	disconnect bool
}

type stepResult struct {
	edge      library.VersionEdge
	unchanged bool
	reused    bool
	// touched lists other roots whose links were repointed.
	touched []library.RootRef
}

// stamp picks the transition instant. An explicit instant before the open
// edge started is rejected; the wall clock is clamped instead.
func (e *Engine) stamp(a domainagg.Audit, open *library.VersionEdge) (time.Time, error) {
	if !a.At.IsZero() {
		at := a.At.UTC()
		if open != nil && at.Before(open.StartDate) {
			return time.Time{}, ValidationError(fmt.Sprintf("transition time %s precedes version %s start", at.Format(time.RFC3339Nano), open.Version))
		}
		return at, nil
	}
	at := e.deps.Now().UTC()
	if open != nil && at.Before(open.StartDate) {
		at = open.StartDate
	}
	return at, nil
}

func (e *Engine) applyStep(tx graphstore.Tx, st *rootState, s step) (stepResult, error) {
	open, err := RequireSingleOpenEdge(st.ref, st.edges)
	if err != nil {
		return stepResult{}, err
	}
	if err := RequireVersionMatch(open.Version, s.audit.ExpectedVersion); err != nil {
		return stepResult{}, err
	}
	tr, err := library.Plan(s.action, open)
	if err != nil {
		return stepResult{}, err
	}
	at, err := e.stamp(s.audit, &open)
	if err != nil {
		return stepResult{}, err
	}

	res := stepResult{reused: true}
	valueID := open.ValueID
	if s.proposal != nil {
		if !tr.ContentAllowed {
			return stepResult{}, ValidationError(fmt.Sprintf("%s does not accept content", s.action))
		}
		cand, err := e.buildCandidate(tx, st.ref.Kind, *s.proposal, open.ValueID)
		if err != nil {
			return stepResult{}, err
		}
		if err := e.checkUniqueName(tx, st.ref, cand.Content); err != nil {
			return stepResult{}, err
		}
		history, err := st.history(tx)
		if err != nil {
			return stepResult{}, err
		}
		match := e.resolver(st.ref.Kind).Resolve(library.DedupInput{
			Candidate: cand,
			History:   history,
			Pointers:  st.pointers,
			Status:    tr.To,
			Force:     s.proposal.ForceNewValue,
		})
		switch {
		case match != nil && match.Value.ID == open.ValueID && s.action == library.ActionEdit:
			e.deps.Hooks.ValueResolved(st.ref.Kind, ValueUnchanged)
			return stepResult{edge: open, unchanged: true, reused: true}, nil
		case match != nil:
			e.deps.Hooks.ValueResolved(st.ref.Kind, ValueReused)
			valueID = match.Value.ID
		default:
			v, err := e.insertValue(tx, st.ref, st.nextOrdinal(), cand, at)
			if err != nil {
				return stepResult{}, err
			}
			outcome := ValueCreated
			if s.proposal.ForceNewValue {
				outcome = ValueForced
			}
			e.deps.Hooks.ValueResolved(st.ref.Kind, outcome)
			valueID = v.ID
			res.reused = false
		}
	}
	if tr.To == library.StatusFinal {
		if err := e.checkApprovable(tx, valueID); err != nil {
			return stepResult{}, err
		}
	}

	if err := CloseOpenEdge(tx, open, at); err != nil {
		return stepResult{}, err
	}
	edge := library.VersionEdge{
		ID:                e.deps.NewID(),
		Kind:              st.ref.Kind,
		RootUID:           st.ref.UID,
		ValueID:           valueID,
		Version:           tr.Version,
		Status:            tr.To,
		StartDate:         at,
		AuthorID:          s.audit.AuthorID,
		ChangeDescription: s.audit.ChangeDescription,
	}
	if err := tx.InsertEdge(edge); err != nil {
		return stepResult{}, err
	}
	if err := tx.SetPointer(st.ref, library.PointerLatest, valueID); err != nil {
		return stepResult{}, err
	}
	if err := tx.SetPointer(st.ref, library.PointerFor(tr.To), valueID); err != nil {
		return stepResult{}, err
	}
	if valueID != open.ValueID {
		touched, err := e.repointIncoming(tx, st.ref, open.ValueID, valueID, tr.Version, at, s.disconnect)
		if err != nil {
			return stepResult{}, err
		}
		res.touched = touched
	}
	if err := st.reload(tx); err != nil {
		return stepResult{}, err
	}
	res.edge = edge
	return res, nil
}

// transition loads and locks the root, applies steps in order and hydrates
// the resulting open edge.
func (e *Engine) transition(ctx context.Context, op string, ref library.RootRef, steps ...step) (domainagg.Snapshot, error) {
	var (
		snap    domainagg.Snapshot
		touched []library.RootRef
	)
	err := executeWrite(ctx, e.deps, op, func(tx graphstore.Tx) error {
		st, err := loadRoot(tx, ref, true)
		if err != nil {
			return err
		}
		var last stepResult
		for _, s := range steps {
			if last, err = e.applyStep(tx, st, s); err != nil {
				return err
			}
			touched = append(touched, last.touched...)
		}
		snap, err = e.hydrate(tx, st, last.edge, nil)
		if err != nil {
			return err
		}
		snap.Unchanged = last.unchanged
		snap.Reused = last.reused
		return nil
	})
	if err != nil {
		return domainagg.Snapshot{}, err
	}
	if !snap.Unchanged {
		e.deps.Log.Debug("library transition committed",
			"op", op,
			"root", ref.String(),
			"version", snap.Edge.Version.String(),
			"status", string(snap.Edge.Status),
			"reused", snap.Reused,
		)
		e.afterCommit(ctx, append([]library.RootRef{ref}, touched...))
	}
	return snap, nil
}

func (e *Engine) Create(ctx context.Context, in domainagg.CreateInput) (domainagg.Snapshot, error) {
	const op = "library.create"
	var snap domainagg.Snapshot
	var ref library.RootRef
	err := executeWrite(ctx, e.deps, op, func(tx graphstore.Tx) error {
		spec, err := e.kindSpec(in.Kind)
		if err != nil {
			return err
		}
		uid, err := e.allocateUID(tx, spec, in.UID)
		if err != nil {
			return err
		}
		ref = library.RootRef{Kind: in.Kind, UID: uid}
		at, err := e.stamp(in.Audit, nil)
		if err != nil {
			return err
		}
		cand, err := e.buildCandidate(tx, in.Kind, in.Proposal, "")
		if err != nil {
			return err
		}
		if err := e.checkUniqueName(tx, ref, cand.Content); err != nil {
			return err
		}
		if err := tx.InsertRoot(library.Root{Kind: in.Kind, UID: uid, CreatedAt: at}); err != nil {
			return err
		}
		v, err := e.insertValue(tx, ref, 1, cand, at)
		if err != nil {
			return err
		}
		edge := library.VersionEdge{
			ID:                e.deps.NewID(),
			Kind:              in.Kind,
			RootUID:           uid,
			ValueID:           v.ID,
			Version:           library.InitialVersion,
			Status:            library.StatusDraft,
			StartDate:         at,
			AuthorID:          in.Audit.AuthorID,
			ChangeDescription: in.Audit.ChangeDescription,
		}
		if err := tx.InsertEdge(edge); err != nil {
			return err
		}
		if err := tx.SetPointer(ref, library.PointerLatest, v.ID); err != nil {
			return err
		}
		if err := tx.SetPointer(ref, library.PointerLatestDraft, v.ID); err != nil {
			return err
		}
		st, err := loadRoot(tx, ref, false)
		if err != nil {
			return err
		}
		snap, err = e.hydrate(tx, st, edge, nil)
		return err
	})
	if err != nil {
		return domainagg.Snapshot{}, err
	}
	e.deps.Log.Debug("library root created", "root", ref.String(), "author_id", in.Audit.AuthorID)
	e.afterCommit(ctx, []library.RootRef{ref})
	return snap, nil
}

func (e *Engine) EditDraft(ctx context.Context, in domainagg.EditInput) (domainagg.Snapshot, error) {
	p := in.Proposal
	return e.transition(ctx, "library.edit_draft", in.Ref, step{
		action:     library.ActionEdit,
		proposal:   &p,
		audit:      in.Audit,
		disconnect: in.Disconnect,
	})
}

func (e *Engine) Approve(ctx context.Context, in domainagg.TransitionInput) (domainagg.Snapshot, error) {
	return e.transition(ctx, "library.approve", in.Ref, step{action: library.ActionApprove, audit: in.Audit})
}

func (e *Engine) NewVersion(ctx context.Context, in domainagg.NewVersionInput) (domainagg.Snapshot, error) {
	return e.transition(ctx, "library.new_version", in.Ref, step{
		action:     library.ActionNewVersion,
		proposal:   in.Proposal,
		audit:      in.Audit,
		disconnect: in.Disconnect,
	})
}

func (e *Engine) Inactivate(ctx context.Context, in domainagg.TransitionInput) (domainagg.Snapshot, error) {
	return e.transition(ctx, "library.inactivate", in.Ref, step{action: library.ActionInactivate, audit: in.Audit})
}

func (e *Engine) Reactivate(ctx context.Context, in domainagg.TransitionInput) (domainagg.Snapshot, error) {
	return e.transition(ctx, "library.reactivate", in.Ref, step{action: library.ActionReactivate, audit: in.Audit})
}

// Refresh re-syncs a Final root with its dependencies: a bump-only draft, an
// edit whose relations are re-resolved to the current targets, then approval.
func (e *Engine) Refresh(ctx context.Context, in domainagg.RefreshInput) (domainagg.Snapshot, error) {
	const op = "library.refresh"
	var (
		snap    domainagg.Snapshot
		touched []library.RootRef
	)
	err := executeWrite(ctx, e.deps, op, func(tx graphstore.Tx) error {
		st, err := loadRoot(tx, in.Ref, true)
		if err != nil {
			return err
		}
		bump := in.Audit
		if _, err := e.applyStep(tx, st, step{action: library.ActionNewVersion, audit: bump}); err != nil {
			return err
		}
		latest, _ := st.latestEdge()
		value, ok := valueByID(st, latest.ValueID)
		if !ok {
			return InvariantError(fmt.Sprintf("%s latest value %s missing", in.Ref, latest.ValueID))
		}
		relations := in.Relations
		if relations == nil {
			links, err := tx.ListLinksFrom(value.ID)
			if err != nil {
				return err
			}
			for _, l := range currentLinks(links) {
				relations = append(relations, library.RelationSpec{Type: l.Type, TargetUID: l.ToRootUID, Props: l.Props})
			}
		}
		follow := in.Audit
		follow.ExpectedVersion = nil
		edit, err := e.applyStep(tx, st, step{
			action:   library.ActionEdit,
			proposal: &domainagg.Proposal{Content: value.Content, Relations: relations},
			audit:    follow,
		})
		if err != nil {
			return err
		}
		touched = append(touched, edit.touched...)
		approved, err := e.applyStep(tx, st, step{action: library.ActionApprove, audit: follow})
		if err != nil {
			return err
		}
		snap, err = e.hydrate(tx, st, approved.edge, nil)
		snap.Reused = edit.unchanged || edit.reused
		return err
	})
	if err != nil {
		return domainagg.Snapshot{}, err
	}
	e.afterCommit(ctx, append([]library.RootRef{in.Ref}, touched...))
	return snap, nil
}

func valueByID(st *rootState, id string) (library.Value, bool) {
	for _, v := range st.values {
		if v.ID == id {
			return v, true
		}
	}
	return library.Value{}, false
}
