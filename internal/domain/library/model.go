package library

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the label of a versioned concept type, e.g. "ActivityGroup".
type Kind string

// RelType is the type of a link between two values.
type RelType string

// RootRef identifies one root.
type RootRef struct {
	Kind Kind   `json:"kind"`
	UID  string `json:"uid"`
}

func (r RootRef) String() string { return string(r.Kind) + "/" + r.UID }

// Root is the immutable identity holder of one logical entity.
type Root struct {
	Kind      Kind
	UID       string
	CreatedAt time.Time
}

func (r Root) Ref() RootRef { return RootRef{Kind: r.Kind, UID: r.UID} }

// Content is the scalar field set of a value node.
type Content map[string]any

// Normalize round-trips the content through JSON so numbers, nested maps and
// slices compare the same way whether they came from input or storage.
func (c Content) Normalize() (Content, error) {
	if c == nil {
		return Content{}, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	out := Content{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return out, nil
}

// Canonical returns the canonical JSON encoding (map keys sorted by encoding/json).
func (c Content) Canonical() []byte {
	if c == nil {
		return []byte("{}")
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return raw
}

// Hash is the sha256 of the canonical encoding.
func (c Content) Hash() string {
	sum := sha256.Sum256(c.Canonical())
	return hex.EncodeToString(sum[:])
}

func (c Content) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// Value is an immutable content snapshot of one root.
type Value struct {
	ID          string
	Kind        Kind
	RootUID     string
	Ordinal     int
	Content     Content
	ContentHash string
	CreatedAt   time.Time
}

// Link is a typed edge from one value to a specific value of another root.
// TargetVersion records which version of the target the link was made against.
type Link struct {
	ID            string
	Type          RelType
	FromKind      Kind
	FromRootUID   string
	FromValueID   string
	ToKind        Kind
	ToRootUID     string
	ToValueID     string
	TargetVersion Version
	Props         map[string]any
	CreatedAt     time.Time
	SupersededAt  *time.Time
}

// ValidAt reports whether the link existed at t.
func (l Link) ValidAt(t time.Time) bool {
	if t.Before(l.CreatedAt) {
		return false
	}
	return l.SupersededAt == nil || t.Before(*l.SupersededAt)
}

func (l Link) Current() bool { return l.SupersededAt == nil }

// RelationSpec is a requested outgoing relation of a candidate value,
// addressed by the target's root uid.
type RelationSpec struct {
	Type      RelType
	TargetUID string
	Props     map[string]any
}

// Relation is a link resolved for presentation: the target value content and
// the target version edge selected for the same point in time.
type Relation struct {
	Type          RelType
	TargetKind    Kind
	TargetUID     string
	TargetValueID string
	TargetVersion Version
	TargetStatus  Status
	TargetContent Content
	Props         map[string]any
	Stale         bool
	// PropTargets holds the roots named by catalog prop refs, keyed by prop.
	PropTargets   map[string]PropTarget
}

// PropTarget is a root named by a link prop, resolved at the link's instant.
type PropTarget struct {
	Kind    Kind
	UID     string
	ValueID string
	Version Version
	Status  Status
	Content Content
}

// Query selects one version of a root. Version wins over At, At wins over
// Status; with none of them set the LATEST pointer is used.
type Query struct {
	Version *Version
	At      *time.Time
	Status  *Status
}

// ListQuery filters roots of a kind by the status of their latest version.
type ListQuery struct {
	Status       *Status
	NameContains string
	Page         int
	PageSize     int
}
