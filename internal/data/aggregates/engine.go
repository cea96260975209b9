package aggregates

import (
	"context"
	"strings"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

var _ domainagg.VersionedAggregate = (*Engine)(nil)

// Projector receives the roots touched by a committed write.
type Projector interface {
	Project(ctx context.Context, refs []library.RootRef) error
}

type ProjectorFunc func(ctx context.Context, refs []library.RootRef) error

func (f ProjectorFunc) Project(ctx context.Context, refs []library.RootRef) error { return f(ctx, refs) }

// Engine is the versioned aggregate for every kind in the catalog.
type Engine struct {
	deps       BaseDeps
	catalog    *library.Catalog
	comparers  map[library.Kind]library.ContentComparer
	projectors []Projector
}

type Option func(*Engine)

// WithComparer overrides scalar content equality for one kind.
func WithComparer(kind library.Kind, cmp library.ContentComparer) Option {
	return func(e *Engine) {
		if cmp != nil {
			e.comparers[kind] = cmp
		}
	}
}

// WithProjector registers a post-commit projector. Projection failures are
// logged and never fail the write.
func WithProjector(p Projector) Option {
	return func(e *Engine) {
		if p != nil {
			e.projectors = append(e.projectors, p)
		}
	}
}

func NewEngine(deps BaseDeps, catalog *library.Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = library.DefaultCatalog()
	}
	e := &Engine{
		deps:      deps.withDefaults(),
		catalog:   catalog,
		comparers: map[library.Kind]library.ContentComparer{},
	}
	e.deps.Log = e.deps.Log.With("component", "VersionedAggregate")
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Catalog() *library.Catalog { return e.catalog }

func (e *Engine) resolver(kind library.Kind) library.Resolver {
	return library.Resolver{Catalog: e.catalog, Comparer: e.comparers[kind]}
}

func (e *Engine) kindSpec(kind library.Kind) (library.KindSpec, error) {
	spec, ok := e.catalog.Kind(kind)
	if !ok {
		return library.KindSpec{}, ValidationError("unknown kind " + string(kind))
	}
	return spec, nil
}

func (e *Engine) afterCommit(ctx context.Context, refs []library.RootRef) {
	if len(e.projectors) == 0 || len(refs) == 0 {
		return
	}
	refs = uniqueRefs(refs)
	for _, p := range e.projectors {
		if err := p.Project(ctx, refs); err != nil {
			e.deps.Log.Warn("projection failed (continuing)", "roots", len(refs), "error", err)
		}
	}
}

func uniqueRefs(refs []library.RootRef) []library.RootRef {
	seen := make(map[library.RootRef]bool, len(refs))
	out := make([]library.RootRef, 0, len(refs))
	for _, r := range refs {
		if r.UID == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// ExistsByName reports whether a root of kind currently carries name in its
// LATEST value. Comparison ignores case and surrounding whitespace.
func (e *Engine) ExistsByName(ctx context.Context, kind library.Kind, name string) (bool, error) {
	spec, err := e.kindSpec(kind)
	if err != nil {
		return false, MapError("library.exists_by_name", err)
	}
	var found bool
	err = executeRead(ctx, e.deps, "library.exists_by_name", func(tx graphstore.Tx) error {
		uid, err := findByName(tx, spec, name, "")
		found = uid != ""
		return err
	})
	return found, err
}

// Exists reports whether the root exists.
func (e *Engine) Exists(ctx context.Context, ref library.RootRef) (bool, error) {
	var found bool
	err := executeRead(ctx, e.deps, "library.exists", func(tx graphstore.Tx) error {
		root, err := tx.GetRoot(ref)
		found = root != nil
		return err
	})
	return found, err
}

// FinalExists reports whether the root has a Final version that is not
// currently retired.
func (e *Engine) FinalExists(ctx context.Context, ref library.RootRef) (bool, error) {
	var ok bool
	err := executeRead(ctx, e.deps, "library.final_exists", func(tx graphstore.Tx) error {
		root, err := tx.GetRoot(ref)
		if err != nil || root == nil {
			return err
		}
		st := &rootState{ref: ref, root: *root}
		if err := st.reload(tx); err != nil {
			return err
		}
		ok = finalUsable(st) == nil
		return nil
	})
	return ok, err
}

func findByName(tx graphstore.Tx, spec library.KindSpec, name, exceptUID string) (string, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return "", nil
	}
	roots, err := tx.ListRoots(spec.Kind)
	if err != nil {
		return "", err
	}
	for _, r := range roots {
		if r.UID == exceptUID {
			continue
		}
		ptrs, err := tx.GetPointers(r.Ref())
		if err != nil {
			return "", err
		}
		v, err := tx.GetValue(ptrs.Get(library.PointerLatest))
		if err != nil {
			return "", err
		}
		if v == nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(v.Content.String(spec.NameField))) == want {
			return r.UID, nil
		}
	}
	return "", nil
}
