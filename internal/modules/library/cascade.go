package library

import (
	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/modules/library/steps"
)

// groupLevel: SubGroups follow a Group through HAS_GROUP. A Group offers only
// itself as a key, so renames never block.
type groupLevel struct{}

func (groupLevel) Upstream() library.Kind    { return KindActivityGroup }
func (groupLevel) Relation() library.RelType { return RelHasGroup }

func (groupLevel) ProvidedKeys(s domainagg.Snapshot) []string {
	if s.Root.UID == "" {
		return nil
	}
	return []string{steps.GroupingKey(s.Root.UID)}
}

func (groupLevel) DependentKey(upstream library.RootRef, _ library.Link) string {
	return steps.GroupingKey(upstream.UID)
}

// subGroupLevel: Activities follow a SubGroup through IN_SUBGROUP, keyed by
// (group, subgroup).
type subGroupLevel struct{}

func (subGroupLevel) Upstream() library.Kind    { return KindActivitySubGroup }
func (subGroupLevel) Relation() library.RelType { return RelInSubGroup }

func (subGroupLevel) ProvidedKeys(s domainagg.Snapshot) []string {
	var out []string
	for _, r := range s.RelationsOf(RelHasGroup) {
		out = append(out, steps.GroupingKey(r.TargetUID, s.Root.UID))
	}
	return out
}

func (subGroupLevel) DependentKey(upstream library.RootRef, l library.Link) string {
	return steps.GroupingKey(propString(l.Props, propGroupUID), upstream.UID)
}

// activityLevel: ActivityInstances follow an Activity through INSTANCE_OF,
// keyed by (group, subgroup, activity).
type activityLevel struct{}

func (activityLevel) Upstream() library.Kind    { return KindActivity }
func (activityLevel) Relation() library.RelType { return RelInstanceOf }

func (activityLevel) ProvidedKeys(s domainagg.Snapshot) []string {
	var out []string
	for _, r := range s.RelationsOf(RelInSubGroup) {
		out = append(out, steps.GroupingKey(propString(r.Props, propGroupUID), r.TargetUID, s.Root.UID))
	}
	return out
}

func (activityLevel) DependentKey(upstream library.RootRef, l library.Link) string {
	return steps.GroupingKey(propString(l.Props, propGroupUID), propString(l.Props, propSubGroupUID), upstream.UID)
}

// CascadeLevels is the grouping hierarchy Group → SubGroup → Activity → ActivityInstance.
func CascadeLevels() []steps.CascadeStep {
	return []steps.CascadeStep{groupLevel{}, subGroupLevel{}, activityLevel{}}
}

// Cascades reports whether approving kind can cascade to dependents.
func Cascades(kind library.Kind) bool {
	for _, s := range CascadeLevels() {
		if s.Upstream() == kind {
			return true
		}
	}
	return false
}
