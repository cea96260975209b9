// Package memory provides an in-memory graph store used by tests and
// ephemeral environments. Each write transaction runs against a clone of the
// state which replaces the live state only when fn succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

var _ graphstore.Store = (*Store)(nil)

type state struct {
	roots     map[library.RootRef]library.Root
	values    map[string]library.Value
	edges     map[string]library.VersionEdge
	pointers  map[library.RootRef]library.Pointers
	links     map[string]library.Link
	sequences map[library.Kind]int64
}

func newState() state {
	return state{
		roots:     map[library.RootRef]library.Root{},
		values:    map[string]library.Value{},
		edges:     map[string]library.VersionEdge{},
		pointers:  map[library.RootRef]library.Pointers{},
		links:     map[string]library.Link{},
		sequences: map[library.Kind]int64{},
	}
}

func (s state) clone() state {
	out := state{
		roots:     make(map[library.RootRef]library.Root, len(s.roots)),
		values:    make(map[string]library.Value, len(s.values)),
		edges:     make(map[string]library.VersionEdge, len(s.edges)),
		pointers:  make(map[library.RootRef]library.Pointers, len(s.pointers)),
		links:     make(map[string]library.Link, len(s.links)),
		sequences: make(map[library.Kind]int64, len(s.sequences)),
	}
	for k, v := range s.roots {
		out.roots[k] = v
	}
	// Values, edges and links are replaced rather than mutated in place, so a
	// shallow copy of each record is enough.
	for k, v := range s.values {
		out.values[k] = v
	}
	for k, v := range s.edges {
		out.edges[k] = v
	}
	for k, v := range s.pointers {
		p := make(library.Pointers, len(v))
		for pk, id := range v {
			p[pk] = id
		}
		out.pointers[k] = p
	}
	for k, v := range s.links {
		out.links[k] = v
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	return out
}

// Store is a mutex-guarded in-memory graph. Write transactions are serialized.
type Store struct {
	mu    sync.RWMutex
	state state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx graphstore.Tx) error) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx graphstore.Tx) error) error {
	if fn == nil {
		return nil
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&transaction{state: snapshot, readOnly: true})
}

type transaction struct {
	state    state
	readOnly bool
}

func (t *transaction) writable(op string) error {
	if t.readOnly {
		return fmt.Errorf("memory store: %s in read-only view", op)
	}
	return nil
}

func (t *transaction) InsertRoot(root library.Root) error {
	if err := t.writable("insert root"); err != nil {
		return err
	}
	ref := root.Ref()
	if _, ok := t.state.roots[ref]; ok {
		return fmt.Errorf("root %s: %w", ref, graphstore.ErrDuplicate)
	}
	t.state.roots[ref] = root
	return nil
}

func (t *transaction) GetRoot(ref library.RootRef) (*library.Root, error) {
	r, ok := t.state.roots[ref]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *transaction) ListRoots(kind library.Kind) ([]library.Root, error) {
	var out []library.Root
	for ref, r := range t.state.roots {
		if ref.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

// LockRoot is a no-op: write transactions already hold the store mutex.
func (t *transaction) LockRoot(ref library.RootRef) error {
	if _, ok := t.state.roots[ref]; !ok {
		return fmt.Errorf("lock root %s: %w", ref, graphstore.ErrMissing)
	}
	return nil
}

func (t *transaction) InsertValue(v library.Value) error {
	if err := t.writable("insert value"); err != nil {
		return err
	}
	if _, ok := t.state.values[v.ID]; ok {
		return fmt.Errorf("value %s: %w", v.ID, graphstore.ErrDuplicate)
	}
	if _, ok := t.state.roots[library.RootRef{Kind: v.Kind, UID: v.RootUID}]; !ok {
		return fmt.Errorf("value %s root %s/%s: %w", v.ID, v.Kind, v.RootUID, graphstore.ErrMissing)
	}
	v.Content = cloneMap(v.Content)
	t.state.values[v.ID] = v
	return nil
}

func (t *transaction) GetValue(id string) (*library.Value, error) {
	v, ok := t.state.values[id]
	if !ok {
		return nil, nil
	}
	v.Content = cloneMap(v.Content)
	return &v, nil
}

func (t *transaction) ListValues(ref library.RootRef) ([]library.Value, error) {
	var out []library.Value
	for _, v := range t.state.values {
		if v.Kind == ref.Kind && v.RootUID == ref.UID {
			v.Content = cloneMap(v.Content)
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (t *transaction) InsertEdge(e library.VersionEdge) error {
	if err := t.writable("insert edge"); err != nil {
		return err
	}
	if _, ok := t.state.edges[e.ID]; ok {
		return fmt.Errorf("edge %s: %w", e.ID, graphstore.ErrDuplicate)
	}
	if _, ok := t.state.values[e.ValueID]; !ok {
		return fmt.Errorf("edge %s value %s: %w", e.ID, e.ValueID, graphstore.ErrMissing)
	}
	t.state.edges[e.ID] = e
	return nil
}

func (t *transaction) CloseEdge(id string, end time.Time) (bool, error) {
	if err := t.writable("close edge"); err != nil {
		return false, err
	}
	e, ok := t.state.edges[id]
	if !ok || e.EndDate != nil {
		return false, nil
	}
	end = end.UTC()
	e.EndDate = &end
	t.state.edges[id] = e
	return true, nil
}

func (t *transaction) ListEdges(ref library.RootRef) ([]library.VersionEdge, error) {
	var out []library.VersionEdge
	for _, e := range t.state.edges {
		if e.Kind == ref.Kind && e.RootUID == ref.UID {
			out = append(out, e)
		}
	}
	library.SortEdges(out)
	return out, nil
}

func (t *transaction) GetPointers(ref library.RootRef) (library.Pointers, error) {
	out := library.Pointers{}
	for k, v := range t.state.pointers[ref] {
		out[k] = v
	}
	return out, nil
}

func (t *transaction) SetPointer(ref library.RootRef, kind library.PointerKind, valueID string) error {
	if err := t.writable("set pointer"); err != nil {
		return err
	}
	if _, ok := t.state.roots[ref]; !ok {
		return fmt.Errorf("pointer root %s: %w", ref, graphstore.ErrMissing)
	}
	p := t.state.pointers[ref]
	if p == nil {
		p = library.Pointers{}
		t.state.pointers[ref] = p
	}
	if valueID == "" {
		delete(p, kind)
		return nil
	}
	p[kind] = valueID
	return nil
}

func (t *transaction) InsertLink(l library.Link) error {
	if err := t.writable("insert link"); err != nil {
		return err
	}
	if _, ok := t.state.links[l.ID]; ok {
		return fmt.Errorf("link %s: %w", l.ID, graphstore.ErrDuplicate)
	}
	if _, ok := t.state.values[l.FromValueID]; !ok {
		return fmt.Errorf("link %s source %s: %w", l.ID, l.FromValueID, graphstore.ErrMissing)
	}
	if _, ok := t.state.values[l.ToValueID]; !ok {
		return fmt.Errorf("link %s target %s: %w", l.ID, l.ToValueID, graphstore.ErrMissing)
	}
	l.Props = cloneMap(l.Props)
	t.state.links[l.ID] = l
	return nil
}

func (t *transaction) ListLinksFrom(valueID string) ([]library.Link, error) {
	var out []library.Link
	for _, l := range t.state.links {
		if l.FromValueID == valueID {
			l.Props = cloneMap(l.Props)
			out = append(out, l)
		}
	}
	sortLinks(out)
	return out, nil
}

func (t *transaction) ListLinksTo(ref library.RootRef) ([]library.Link, error) {
	var out []library.Link
	for _, l := range t.state.links {
		if l.ToKind == ref.Kind && l.ToRootUID == ref.UID {
			l.Props = cloneMap(l.Props)
			out = append(out, l)
		}
	}
	sortLinks(out)
	return out, nil
}

func (t *transaction) SupersedeLink(id string, at time.Time) (bool, error) {
	if err := t.writable("supersede link"); err != nil {
		return false, err
	}
	l, ok := t.state.links[id]
	if !ok || l.SupersededAt != nil {
		return false, nil
	}
	at = at.UTC()
	l.SupersededAt = &at
	t.state.links[id] = l
	return true, nil
}

func (t *transaction) DeleteLink(id string) error {
	if err := t.writable("delete link"); err != nil {
		return err
	}
	delete(t.state.links, id)
	return nil
}

func (t *transaction) NextSequence(kind library.Kind) (int64, error) {
	if err := t.writable("next sequence"); err != nil {
		return 0, err
	}
	t.state.sequences[kind]++
	return t.state.sequences[kind], nil
}

func (t *transaction) SetSequenceFloor(kind library.Kind, n int64) error {
	if err := t.writable("set sequence floor"); err != nil {
		return err
	}
	if t.state.sequences[kind] < n {
		t.state.sequences[kind] = n
	}
	return nil
}

func (t *transaction) CurrentSequence(kind library.Kind) (int64, error) {
	return t.state.sequences[kind], nil
}

func sortLinks(links []library.Link) {
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.Before(links[j].CreatedAt)
		}
		return links[i].ID < links[j].ID
	})
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
