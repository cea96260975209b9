package aggregates

import (
	"fmt"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// rootState is everything the lifecycle needs to know about one root.
type rootState struct {
	ref      library.RootRef
	root     library.Root
	edges    []library.VersionEdge
	values   []library.Value
	pointers library.Pointers
}

func notFoundRoot(ref library.RootRef) error {
	return NotFoundError(fmt.Sprintf("%s with UID '%s' doesn't exist.", ref.Kind, ref.UID))
}

func loadRoot(tx graphstore.Tx, ref library.RootRef, lock bool) (*rootState, error) {
	root, err := tx.GetRoot(ref)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, notFoundRoot(ref)
	}
	if lock {
		if err := tx.LockRoot(ref); err != nil {
			return nil, err
		}
	}
	st := &rootState{ref: ref, root: *root}
	if err := st.reload(tx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *rootState) reload(tx graphstore.Tx) error {
	var err error
	if s.edges, err = tx.ListEdges(s.ref); err != nil {
		return err
	}
	if s.values, err = tx.ListValues(s.ref); err != nil {
		return err
	}
	if s.pointers, err = tx.GetPointers(s.ref); err != nil {
		return err
	}
	return nil
}

func (s *rootState) nextOrdinal() int {
	max := 0
	for _, v := range s.values {
		if v.Ordinal > max {
			max = v.Ordinal
		}
	}
	return max + 1
}

func (s *rootState) latestEdge() (library.VersionEdge, bool) {
	return library.LatestEdge(s.edges)
}

// history pairs every value of the root with its current outgoing links, in
// existence order.
func (s *rootState) history(tx graphstore.Tx) ([]library.StoredValue, error) {
	out := make([]library.StoredValue, 0, len(s.values))
	for _, v := range s.values {
		links, err := tx.ListLinksFrom(v.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, library.StoredValue{Value: v, Links: links})
	}
	return out, nil
}

func currentLinks(links []library.Link) []library.Link {
	out := make([]library.Link, 0, len(links))
	for _, l := range links {
		if l.Current() {
			out = append(out, l)
		}
	}
	return out
}
