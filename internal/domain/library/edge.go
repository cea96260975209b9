package library

import (
	"sort"
	"time"
)

// VersionEdge is the HAS_VERSION relationship from a root to a value.
type VersionEdge struct {
	ID                string
	Kind              Kind
	RootUID           string
	ValueID           string
	Version           Version
	Status            Status
	StartDate         time.Time
	EndDate           *time.Time
	AuthorID          string
	ChangeDescription string
}

func (e VersionEdge) IsOpen() bool { return e.EndDate == nil }

// ActiveAt reports whether t falls in [StartDate, EndDate).
func (e VersionEdge) ActiveAt(t time.Time) bool {
	if t.Before(e.StartDate) {
		return false
	}
	return e.EndDate == nil || t.Before(*e.EndDate)
}

// CompareEdges orders by (major, minor), then end date with open edges last,
// then start date.
func CompareEdges(a, b VersionEdge) int {
	if c := a.Version.Compare(b.Version); c != 0 {
		return c
	}
	switch {
	case a.EndDate == nil && b.EndDate != nil:
		return 1
	case a.EndDate != nil && b.EndDate == nil:
		return -1
	case a.EndDate != nil && b.EndDate != nil:
		if a.EndDate.Before(*b.EndDate) {
			return -1
		}
		if a.EndDate.After(*b.EndDate) {
			return 1
		}
	}
	switch {
	case a.StartDate.Before(b.StartDate):
		return -1
	case a.StartDate.After(b.StartDate):
		return 1
	default:
		return 0
	}
}

// SortEdges sorts in place, oldest first.
func SortEdges(edges []VersionEdge) {
	sort.SliceStable(edges, func(i, j int) bool { return CompareEdges(edges[i], edges[j]) < 0 })
}

// LatestEdge returns the greatest edge by CompareEdges.
func LatestEdge(edges []VersionEdge) (VersionEdge, bool) {
	var best VersionEdge
	found := false
	for _, e := range edges {
		if !found || CompareEdges(e, best) > 0 {
			best = e
			found = true
		}
	}
	return best, found
}

// LatestWithStatus returns the greatest edge carrying status s.
func LatestWithStatus(edges []VersionEdge, s Status) (VersionEdge, bool) {
	filtered := make([]VersionEdge, 0, len(edges))
	for _, e := range edges {
		if e.Status == s {
			filtered = append(filtered, e)
		}
	}
	return LatestEdge(filtered)
}

// LatestWithStatusAt returns the greatest edge carrying status s that started
// at or before t. The edge may have been closed since.
func LatestWithStatusAt(edges []VersionEdge, s Status, t time.Time) (VersionEdge, bool) {
	filtered := make([]VersionEdge, 0, len(edges))
	for _, e := range edges {
		if e.Status == s && !e.StartDate.After(t) {
			filtered = append(filtered, e)
		}
	}
	return LatestEdge(filtered)
}

// OpenEdges returns every edge without an end date.
func OpenEdges(edges []VersionEdge) []VersionEdge {
	var out []VersionEdge
	for _, e := range edges {
		if e.IsOpen() {
			out = append(out, e)
		}
	}
	return out
}

// EdgeAt returns the edge whose window contains t.
func EdgeAt(edges []VersionEdge, t time.Time) (VersionEdge, bool) {
	var hits []VersionEdge
	for _, e := range edges {
		if e.ActiveAt(t) {
			hits = append(hits, e)
		}
	}
	return LatestEdge(hits)
}

// EdgeWithVersion returns the edge with exactly version v, narrowed by status
// when given. Inactivation keeps the version, so several edges can share it.
func EdgeWithVersion(edges []VersionEdge, v Version, status *Status) (VersionEdge, bool) {
	var hits []VersionEdge
	for _, e := range edges {
		if e.Version.Compare(v) != 0 {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		hits = append(hits, e)
	}
	return LatestEdge(hits)
}

// EdgesForValue returns the edges pointing at valueID.
func EdgesForValue(edges []VersionEdge, valueID string) []VersionEdge {
	var out []VersionEdge
	for _, e := range edges {
		if e.ValueID == valueID {
			out = append(out, e)
		}
	}
	return out
}

// EdgeForValueAt picks the edge of valueID that best describes the value at t:
// the one active at t, else the latest one started at or before t, else the
// latest one overall.
func EdgeForValueAt(edges []VersionEdge, valueID string, t time.Time) (VersionEdge, bool) {
	own := EdgesForValue(edges, valueID)
	if e, ok := EdgeAt(own, t); ok {
		return e, true
	}
	var started []VersionEdge
	for _, e := range own {
		if !e.StartDate.After(t) {
			started = append(started, e)
		}
	}
	if e, ok := LatestEdge(started); ok {
		return e, true
	}
	return LatestEdge(own)
}
