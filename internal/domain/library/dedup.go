package library

import (
	"bytes"
	"encoding/json"
	"strings"
)

// LinkTarget is a resolved outgoing link of a candidate value.
type LinkTarget struct {
	Type          RelType
	ToKind        Kind
	ToRootUID     string
	ToValueID     string
	TargetVersion Version
	Props         map[string]any
}

// Candidate is a proposed content snapshot with its resolved outgoing links.
type Candidate struct {
	Content Content
	Links   []LinkTarget
}

// StoredValue is an existing value with its current outgoing links.
type StoredValue struct {
	Value Value
	Links []Link
}

// ContentComparer decides scalar equality for one kind.
type ContentComparer interface {
	ContentEquals(candidate, existing Content) bool
}

type ContentComparerFunc func(candidate, existing Content) bool

func (f ContentComparerFunc) ContentEquals(candidate, existing Content) bool {
	return f(candidate, existing)
}

// CanonicalContentEquals compares canonical JSON encodings.
var CanonicalContentEquals = ContentComparerFunc(func(candidate, existing Content) bool {
	return bytes.Equal(candidate.Canonical(), existing.Canonical())
})

type DedupInput struct {
	Candidate Candidate
	History   []StoredValue
	Pointers  Pointers
	// Status is the aggregate status the comparison runs under.
	Status Status
	Force  bool
}

// Resolver picks an existing value to reuse for a candidate.
type Resolver struct {
	Catalog  *Catalog
	Comparer ContentComparer
}

// Resolve returns the value to reuse, or nil when a new value must be created.
// The latest draft/final/retired values are tried first, then the full history
// in existence order.
func (r Resolver) Resolve(in DedupInput) *StoredValue {
	if in.Force {
		return nil
	}
	byID := make(map[string]int, len(in.History))
	for i, v := range in.History {
		byID[v.Value.ID] = i
	}
	released := in.Status.Released()
	checked := map[string]bool{}
	for _, p := range []PointerKind{PointerLatestDraft, PointerLatestFinal, PointerLatestRetired} {
		id := in.Pointers.Get(p)
		idx, ok := byID[id]
		if !ok || checked[id] {
			continue
		}
		checked[id] = true
		if r.Equal(in.Candidate, in.History[idx], released) {
			v := in.History[idx]
			return &v
		}
	}
	for i := range in.History {
		if checked[in.History[i].Value.ID] {
			continue
		}
		if r.Equal(in.Candidate, in.History[i], released) {
			v := in.History[i]
			return &v
		}
	}
	return nil
}

// Equal compares scalar content and the set of outgoing links. While released,
// relation types flagged ignore_when_released compare by target root only.
func (r Resolver) Equal(c Candidate, v StoredValue, released bool) bool {
	cmp := r.Comparer
	if cmp == nil {
		cmp = CanonicalContentEquals
	}
	if !cmp.ContentEquals(c.Content, v.Value.Content) {
		return false
	}
	want := make(map[string]bool, len(c.Links))
	for _, l := range c.Links {
		want[r.linkKey(l.Type, l.ToRootUID, l.ToValueID, l.Props, released)] = true
	}
	have := make(map[string]bool, len(v.Links))
	for _, l := range v.Links {
		if !l.Current() {
			continue
		}
		have[r.linkKey(l.Type, l.ToRootUID, l.ToValueID, l.Props, released)] = true
	}
	if len(want) != len(have) {
		return false
	}
	for k := range want {
		if !have[k] {
			return false
		}
	}
	return true
}

func (r Resolver) linkKey(t RelType, rootUID, valueID string, props map[string]any, released bool) string {
	if released && r.Catalog != nil {
		if p, ok := r.Catalog.Relation(t); ok && p.IgnoreWhenReleased {
			valueID = "*"
		}
	}
	return strings.Join([]string{string(t), rootUID, valueID, canonicalProps(props)}, "|")
}

func canonicalProps(props map[string]any) string {
	if len(props) == 0 {
		return "{}"
	}
	normalized, err := Content(props).Normalize()
	if err != nil {
		return "!"
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "!"
	}
	return string(raw)
}
