package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/observability"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
	"github.com/yungbote/mdr-backend/internal/platform/rootlock"
)

// CascadeStep is one level of the grouping hierarchy: the dependents of an
// Upstream root reached through Relation, and the grouping keys that decide
// whether a dependent may follow the upstream's new Final value.
type CascadeStep interface {
	Upstream() library.Kind
	Relation() library.RelType
	// ProvidedKeys lists the grouping keys an upstream version offers.
	ProvidedKeys(s domainagg.Snapshot) []string
	// DependentKey is the grouping key a dependent link relies on.
	DependentKey(upstream library.RootRef, l library.Link) string
}

type CascadeOutcome string

const (
	OutcomeRefreshed          CascadeOutcome = "refreshed"
	OutcomeSkippedDraft       CascadeOutcome = "skipped_draft"
	OutcomeSkippedRetired     CascadeOutcome = "skipped_retired"
	OutcomeBlockedRemovedKey  CascadeOutcome = "blocked_removed_key"
	OutcomeNoMatchingGrouping CascadeOutcome = "no_matching_grouping"
	OutcomeUpToDate           CascadeOutcome = "up_to_date"
	OutcomeFailed             CascadeOutcome = "failed"
)

type CascadeBranch struct {
	Upstream  library.RootRef `json:"upstream"`
	Dependent library.RootRef `json:"dependent"`
	Outcome   CascadeOutcome  `json:"outcome"`
	// Version is the dependent's new Final version when refreshed.
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CascadeReport is the structured result of a cascade. Performed is true when
// at least one dependent was refreshed; Blocked is true when some dependent was
// left alone because it relies on a grouping the upstream edit removed.
type CascadeReport struct {
	Root      library.RootRef `json:"root"`
	Performed bool            `json:"performed"`
	Blocked   bool            `json:"blocked"`
	Branches  []CascadeBranch `json:"branches"`
}

// CascadeEngine is the slice of the versioned aggregate the cascade drives.
type CascadeEngine interface {
	Find(ctx context.Context, ref library.RootRef, q library.Query) (domainagg.Snapshot, error)
	Refresh(ctx context.Context, in domainagg.RefreshInput) (domainagg.Snapshot, error)
	Dependents(ctx context.Context, ref library.RootRef, rel library.RelType) ([]domainagg.DependentLink, error)
}

type CascadeDeps struct {
	Engine  CascadeEngine
	Locks   rootlock.Locker
	Log     *logger.Logger
	Metrics *observability.Metrics
	// Steps in hierarchy order; at most one step per upstream kind.
	Steps []CascadeStep
}

type CascadeInput struct {
	// Before is the upstream's previous Final snapshot, zero when it had none.
	Before domainagg.Snapshot
	// After is the upstream's freshly approved snapshot.
	After    domainagg.Snapshot
	AuthorID string
}

// Cascade walks the dependents of In.After level by level, refreshing every
// Final dependent whose grouping keys survive the upstream edit. Each refresh
// commits on its own; an error stops the walk and returns the partial report.
func Cascade(ctx context.Context, deps CascadeDeps, in CascadeInput) (CascadeReport, error) {
	report := CascadeReport{Root: in.After.Ref(), Branches: []CascadeBranch{}}
	if deps.Engine == nil {
		return report, fmt.Errorf("cascade: engine is required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	deps.Log = deps.Log.With("component", "LibraryCascade", "root", report.Root.String())
	err := cascadeLevel(ctx, deps, in.Before, in.After, in.AuthorID, &report)
	deps.Log.Info("cascade finished",
		"performed", report.Performed,
		"blocked", report.Blocked,
		"branches", len(report.Branches),
	)
	return report, err
}

func stepFor(steps []CascadeStep, kind library.Kind) CascadeStep {
	for _, s := range steps {
		if s.Upstream() == kind {
			return s
		}
	}
	return nil
}

func keySet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

type dependentGroup struct {
	ref   library.RootRef
	edge  library.VersionEdge
	links []library.Link
}

func groupDependents(links []domainagg.DependentLink) []dependentGroup {
	byRef := map[library.RootRef]*dependentGroup{}
	var order []library.RootRef
	for _, d := range links {
		g, ok := byRef[d.Dependent]
		if !ok {
			g = &dependentGroup{ref: d.Dependent, edge: d.Edge}
			byRef[d.Dependent] = g
			order = append(order, d.Dependent)
		}
		g.links = append(g.links, d.Link)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })
	out := make([]dependentGroup, 0, len(order))
	for _, r := range order {
		out = append(out, *byRef[r])
	}
	return out
}

func cascadeLevel(ctx context.Context, deps CascadeDeps, before, after domainagg.Snapshot, author string, report *CascadeReport) error {
	step := stepFor(deps.Steps, after.Root.Kind)
	if step == nil {
		return nil
	}
	upstream := after.Ref()
	provided := keySet(step.ProvidedKeys(after))
	removed := map[string]bool{}
	if before.Root.UID != "" {
		for _, k := range step.ProvidedKeys(before) {
			if !provided[k] {
				removed[k] = true
			}
		}
	}

	links, err := deps.Engine.Dependents(ctx, upstream, step.Relation())
	if err != nil {
		return err
	}
	groups := groupDependents(links)
	if len(groups) == 0 {
		return nil
	}

	if deps.Locks != nil {
		keys := make([]string, 0, len(groups))
		for _, g := range groups {
			keys = append(keys, g.ref.String())
		}
		release, err := deps.Locks.Acquire(ctx, keys...)
		if err != nil {
			if errors.Is(err, rootlock.ErrNotAcquired) {
				return domainagg.NewError(domainagg.CodeConflict, "library.cascade",
					fmt.Sprintf("Dependents of %s are locked by another cascade.", upstream.UID), err)
			}
			return domainagg.Wrap(domainagg.CodeRetryable, "library.cascade", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				deps.Log.Warn("cascade lock release failed", "error", err)
			}
		}()
	}

	for _, g := range groups {
		branch := CascadeBranch{Upstream: upstream, Dependent: g.ref}
		branch.Outcome = classify(step, upstream, after, g, provided, removed)
		if branch.Outcome != OutcomeRefreshed {
			record(deps, report, branch)
			continue
		}

		prev, err := deps.Engine.Find(ctx, g.ref, library.Query{})
		if err != nil {
			branch.Outcome, branch.Error = OutcomeFailed, err.Error()
			record(deps, report, branch)
			return err
		}
		if prev.Edge.Status != library.StatusFinal {
			// Moved on since Dependents was read.
			branch.Outcome = skipOutcome(prev.Edge.Status)
			record(deps, report, branch)
			continue
		}
		next, err := deps.Engine.Refresh(ctx, domainagg.RefreshInput{
			Ref: g.ref,
			Audit: domainagg.Audit{
				AuthorID:          author,
				ChangeDescription: fmt.Sprintf("Cascaded from %s %s", upstream.UID, after.Edge.Version),
			},
		})
		if err != nil {
			branch.Outcome, branch.Error = OutcomeFailed, err.Error()
			record(deps, report, branch)
			return err
		}
		branch.Version = next.Edge.Version.String()
		record(deps, report, branch)
		if err := cascadeLevel(ctx, deps, prev, next, author, report); err != nil {
			return err
		}
	}
	return nil
}

func classify(step CascadeStep, upstream library.RootRef, after domainagg.Snapshot, g dependentGroup, provided, removed map[string]bool) CascadeOutcome {
	if g.edge.Status != library.StatusFinal {
		return skipOutcome(g.edge.Status)
	}
	matched := false
	for _, l := range g.links {
		key := step.DependentKey(upstream, l)
		if removed[key] {
			return OutcomeBlockedRemovedKey
		}
		if provided[key] {
			matched = true
		}
	}
	if !matched {
		return OutcomeNoMatchingGrouping
	}
	for _, l := range g.links {
		if l.ToValueID != after.Value.ID {
			return OutcomeRefreshed
		}
	}
	return OutcomeUpToDate
}

func skipOutcome(s library.Status) CascadeOutcome {
	if s == library.StatusRetired {
		return OutcomeSkippedRetired
	}
	return OutcomeSkippedDraft
}

func record(deps CascadeDeps, report *CascadeReport, b CascadeBranch) {
	report.Branches = append(report.Branches, b)
	switch b.Outcome {
	case OutcomeRefreshed:
		report.Performed = true
	case OutcomeBlockedRemovedKey:
		report.Blocked = true
	}
	deps.Metrics.IncCascadeBranch(string(b.Dependent.Kind), string(b.Outcome))
	deps.Log.Debug("cascade branch",
		"upstream", b.Upstream.String(),
		"dependent", b.Dependent.String(),
		"outcome", string(b.Outcome),
	)
}

// GroupingKey joins uid parts into one comparable key.
func GroupingKey(parts ...string) string {
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, "|")
}
