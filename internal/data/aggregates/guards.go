package aggregates

import (
	"fmt"
	"time"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// CloseOpenEdge closes e only if it is still the open edge. Losing the race to
// a concurrent writer is a conflict, never a silent overwrite.
func CloseOpenEdge(tx graphstore.Tx, e library.VersionEdge, at time.Time) error {
	ok, err := tx.CloseEdge(e.ID, at)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("version %s of %s/%s was changed concurrently", e.Version, e.Kind, e.RootUID))
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(message)
}

// RequireSingleOpenEdge returns the one open edge of a root.
func RequireSingleOpenEdge(ref library.RootRef, edges []library.VersionEdge) (library.VersionEdge, error) {
	open := library.OpenEdges(edges)
	switch len(open) {
	case 0:
		return library.VersionEdge{}, library.Violation(library.MsgNoOpenVersion)
	case 1:
		return open[0], nil
	default:
		return library.VersionEdge{}, InvariantError(fmt.Sprintf("%s has %d open version edges", ref, len(open)))
	}
}

// RequireVersionMatch validates the caller's expected version, when given.
func RequireVersionMatch(current library.Version, expected *library.Version) error {
	if expected == nil {
		return nil
	}
	if current.Compare(*expected) != 0 {
		return ConflictError(fmt.Sprintf("version mismatch: current %s, expected %s", current, *expected))
	}
	return nil
}
