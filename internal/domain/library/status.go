package library

import "strings"

type Status string

const (
	StatusDraft   Status = "Draft"
	StatusFinal   Status = "Final"
	StatusRetired Status = "Retired"
)

func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return StatusDraft, true
	case "final":
		return StatusFinal, true
	case "retired":
		return StatusRetired, true
	default:
		return "", false
	}
}

// Released reports whether the status is Final or Retired.
func (s Status) Released() bool { return s == StatusFinal || s == StatusRetired }

// PointerKind names the convenience edges from a root to a value.
type PointerKind string

const (
	PointerLatest        PointerKind = "LATEST"
	PointerLatestDraft   PointerKind = "LATEST_DRAFT"
	PointerLatestFinal   PointerKind = "LATEST_FINAL"
	PointerLatestRetired PointerKind = "LATEST_RETIRED"
)

// PointerFor returns the status category pointer.
func PointerFor(s Status) PointerKind {
	switch s {
	case StatusDraft:
		return PointerLatestDraft
	case StatusFinal:
		return PointerLatestFinal
	case StatusRetired:
		return PointerLatestRetired
	default:
		return PointerLatest
	}
}

// Pointers maps pointer kind to value id for one root.
type Pointers map[PointerKind]string

func (p Pointers) Get(k PointerKind) string {
	if p == nil {
		return ""
	}
	return p[k]
}

// Targets returns every value id reachable from a pointer.
func (p Pointers) Targets() map[string]bool {
	out := make(map[string]bool, len(p))
	for _, id := range p {
		if id != "" {
			out[id] = true
		}
	}
	return out
}
