// Package graphstore defines the temporal value store: roots, immutable values,
// HAS_VERSION edges, LATEST* pointers, typed links and per-kind uid sequences.
//
// Implementations must make every write inside InTx atomic: either all of a
// transition (close edge, write edge, move pointers, repoint links) commits or
// none of it does.
package graphstore

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/mdr-backend/internal/domain/library"
)

var (
	// ErrDuplicate is returned when inserting a record whose key already exists.
	ErrDuplicate = errors.New("graphstore: duplicate key")
	// ErrMissing is returned when a write references a record that does not exist.
	ErrMissing = errors.New("graphstore: missing record")
)

// Store opens transactions over the graph.
type Store interface {
	// InTx runs fn in a read-write transaction; fn's error rolls it back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the typed graph-read/write surface. Getters return nil, nil when the
// record does not exist.
type Tx interface {
	InsertRoot(root library.Root) error
	GetRoot(ref library.RootRef) (*library.Root, error)
	ListRoots(kind library.Kind) ([]library.Root, error)
	// LockRoot takes a row-level write lock on the root for the rest of the transaction.
	LockRoot(ref library.RootRef) error

	InsertValue(v library.Value) error
	GetValue(id string) (*library.Value, error)
	// ListValues returns a root's values in existence (ordinal) order.
	ListValues(ref library.RootRef) ([]library.Value, error)

	InsertEdge(e library.VersionEdge) error
	// CloseEdge sets end_date only if the edge is still open. It reports
	// whether this call closed it.
	CloseEdge(id string, end time.Time) (bool, error)
	ListEdges(ref library.RootRef) ([]library.VersionEdge, error)

	GetPointers(ref library.RootRef) (library.Pointers, error)
	SetPointer(ref library.RootRef, kind library.PointerKind, valueID string) error

	InsertLink(l library.Link) error
	ListLinksFrom(valueID string) ([]library.Link, error)
	// ListLinksTo returns links into any value of the given root.
	ListLinksTo(ref library.RootRef) ([]library.Link, error)
	// SupersedeLink closes the link's validity window if it is still current.
	SupersedeLink(id string, at time.Time) (bool, error)
	DeleteLink(id string) error

	// NextSequence increments and returns the uid counter of kind.
	NextSequence(kind library.Kind) (int64, error)
	// SetSequenceFloor raises the counter to at least n.
	SetSequenceFloor(kind library.Kind, n int64) error
	CurrentSequence(kind library.Kind) (int64, error)
}
