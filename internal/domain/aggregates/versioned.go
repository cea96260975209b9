package aggregates

import (
	"context"
	"time"

	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// VersionedAggregate owns the lifecycle of versioned library roots. Each write
// method mutates one root's edges, pointers, values and links in a single
// transaction; reads resolve against a version or an instant.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeBusinessRule, CodeConflict,
// CodeInvariantViolation, CodeRetryable, CodeInternal.
type VersionedAggregate interface {
	// Create mints a uid and writes the root, its first value and a Draft 0.1 edge.
	Create(ctx context.Context, in CreateInput) (Snapshot, error)
	// EditDraft replaces the Draft content; unchanged content is a no-op.
	EditDraft(ctx context.Context, in EditInput) (Snapshot, error)
	Approve(ctx context.Context, in TransitionInput) (Snapshot, error)
	// NewVersion opens a Draft off a Final version, optionally with new content.
	NewVersion(ctx context.Context, in NewVersionInput) (Snapshot, error)
	Inactivate(ctx context.Context, in TransitionInput) (Snapshot, error)
	Reactivate(ctx context.Context, in TransitionInput) (Snapshot, error)
	// Refresh runs new_version, an edit with relations re-resolved to their
	// current targets, and approve, in one transaction.
	Refresh(ctx context.Context, in RefreshInput) (Snapshot, error)

	Find(ctx context.Context, ref library.RootRef, q library.Query) (Snapshot, error)
	History(ctx context.Context, ref library.RootRef) ([]library.VersionEdge, error)
	List(ctx context.Context, kind library.Kind, q library.ListQuery) ([]Snapshot, int, error)
}

// Proposal is a candidate content snapshot with its requested relations.
type Proposal struct {
	Content   library.Content
	Relations []library.RelationSpec
	// ForceNewValue bypasses value reuse.
	ForceNewValue bool
}

// Audit carries who/why/when for a version edge.
type Audit struct {
	AuthorID          string
	ChangeDescription string
	// At overrides the transition instant; zero means now.
	At time.Time
	// ExpectedVersion, when set, must equal the open edge's version.
	ExpectedVersion *library.Version
}

type CreateInput struct {
	Kind library.Kind
	// UID is optional; when empty the next uid of the kind is allocated.
	UID      string
	Proposal Proposal
	Audit    Audit
}

type EditInput struct {
	Ref      library.RootRef
	Proposal Proposal
	Audit    Audit
	// Disconnect deletes repointed incoming links instead of superseding them.
	Disconnect bool
}

type TransitionInput struct {
	Ref   library.RootRef
	Audit Audit
}

type NewVersionInput struct {
	Ref library.RootRef
	// Proposal, when nil, keeps the current value.
	Proposal   *Proposal
	Audit      Audit
	Disconnect bool
}

type RefreshInput struct {
	Ref library.RootRef
	// Relations replaces the relation set; nil re-resolves the current links.
	Relations []library.RelationSpec
	Audit     Audit
}

// Snapshot is a root reconstructed at one version edge.
type Snapshot struct {
	Root      library.Root
	Edge      library.VersionEdge
	Value     library.Value
	Relations []library.Relation
	// PossibleActions is empty for historical (closed) edges.
	PossibleActions []library.Action
	// Unchanged is set when a write found nothing to change.
	Unchanged bool
	// Reused is set when the written edge points at a pre-existing value.
	Reused bool
}

func (s Snapshot) Ref() library.RootRef { return s.Root.Ref() }

// RelationsOf returns the relations of one type.
func (s Snapshot) RelationsOf(t library.RelType) []library.Relation {
	var out []library.Relation
	for _, r := range s.Relations {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// StaleLink is a current link whose target root has moved on.
type StaleLink struct {
	Link           library.Link
	CurrentValueID string
	CurrentVersion library.Version
}

// DependentLink is a current link into a root from the latest value of another
// root, with that dependent's latest version edge.
type DependentLink struct {
	Dependent library.RootRef
	Edge      library.VersionEdge
	Link      library.Link
}
