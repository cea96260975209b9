package library

import (
	"context"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// Repository is the typed face of the versioned aggregate for one concept.
type Repository[T any] struct {
	Def    Definition[T]
	Engine domainagg.VersionedAggregate
}

func NewRepository[T any](def Definition[T], engine domainagg.VersionedAggregate) Repository[T] {
	return Repository[T]{Def: def, Engine: engine}
}

func (r Repository[T]) ref(uid string) library.RootRef {
	return library.RootRef{Kind: r.Def.Kind, UID: uid}
}

// Create saves v as Draft 0.1. An empty uid allocates the next one.
func (r Repository[T]) Create(ctx context.Context, uid string, v T, audit domainagg.Audit) (Record[T], error) {
	snap, err := r.Engine.Create(ctx, domainagg.CreateInput{
		Kind:     r.Def.Kind,
		UID:      uid,
		Proposal: r.Def.Proposal(v),
		Audit:    audit,
	})
	if err != nil {
		return Record[T]{}, err
	}
	return r.Def.Record(snap), nil
}

func (r Repository[T]) Edit(ctx context.Context, uid string, v T, audit domainagg.Audit) (Record[T], error) {
	snap, err := r.Engine.EditDraft(ctx, domainagg.EditInput{
		Ref:      r.ref(uid),
		Proposal: r.Def.Proposal(v),
		Audit:    audit,
	})
	if err != nil {
		return Record[T]{}, err
	}
	return r.Def.Record(snap), nil
}

func (r Repository[T]) Approve(ctx context.Context, uid string, audit domainagg.Audit) (Record[T], error) {
	return r.transition(ctx, r.Engine.Approve, uid, audit)
}

// NewVersion opens a Draft off the Final version; a nil v keeps the content.
func (r Repository[T]) NewVersion(ctx context.Context, uid string, v *T, audit domainagg.Audit) (Record[T], error) {
	in := domainagg.NewVersionInput{Ref: r.ref(uid), Audit: audit}
	if v != nil {
		p := r.Def.Proposal(*v)
		in.Proposal = &p
	}
	snap, err := r.Engine.NewVersion(ctx, in)
	if err != nil {
		return Record[T]{}, err
	}
	return r.Def.Record(snap), nil
}

func (r Repository[T]) Inactivate(ctx context.Context, uid string, audit domainagg.Audit) (Record[T], error) {
	return r.transition(ctx, r.Engine.Inactivate, uid, audit)
}

func (r Repository[T]) Reactivate(ctx context.Context, uid string, audit domainagg.Audit) (Record[T], error) {
	return r.transition(ctx, r.Engine.Reactivate, uid, audit)
}

type transitionFunc func(context.Context, domainagg.TransitionInput) (domainagg.Snapshot, error)

func (r Repository[T]) transition(ctx context.Context, fn transitionFunc, uid string, audit domainagg.Audit) (Record[T], error) {
	snap, err := fn(ctx, domainagg.TransitionInput{Ref: r.ref(uid), Audit: audit})
	if err != nil {
		return Record[T]{}, err
	}
	return r.Def.Record(snap), nil
}

func (r Repository[T]) Find(ctx context.Context, uid string, q library.Query) (Record[T], error) {
	snap, err := r.Engine.Find(ctx, r.ref(uid), q)
	if err != nil {
		return Record[T]{}, err
	}
	return r.Def.Record(snap), nil
}

func (r Repository[T]) List(ctx context.Context, q library.ListQuery) ([]Record[T], int, error) {
	snaps, total, err := r.Engine.List(ctx, r.Def.Kind, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Record[T], 0, len(snaps))
	for _, s := range snaps {
		out = append(out, r.Def.Record(s))
	}
	return out, total, nil
}

func (r Repository[T]) History(ctx context.Context, uid string) ([]library.VersionEdge, error) {
	return r.Engine.History(ctx, r.ref(uid))
}
