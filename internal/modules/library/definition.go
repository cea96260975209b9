package library

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

// Ref is a relation target: uid on input, resolved name/version on output.
type Ref struct {
	UID     string         `json:"uid"`
	Name    string         `json:"name,omitempty"`
	Version string         `json:"version,omitempty"`
	Status  library.Status `json:"status,omitempty"`
	Stale   bool           `json:"stale,omitempty"`
}

func refOf(r library.Relation) Ref {
	return Ref{
		UID:     r.TargetUID,
		Name:    r.TargetContent.String("name"),
		Version: r.TargetVersion.String(),
		Status:  r.TargetStatus,
		Stale:   r.Stale,
	}
}

// propRef reads the root named by prop, with the name and version it had when
// the relation was read.
func propRef(r library.Relation, prop string) Ref {
	t, ok := r.PropTargets[prop]
	if !ok {
		return Ref{UID: propString(r.Props, prop)}
	}
	return Ref{
		UID:     t.UID,
		Name:    t.Content.String("name"),
		Version: t.Version.String(),
		Status:  t.Status,
	}
}

func optionalRef(rels []library.Relation) *Ref {
	if len(rels) == 0 {
		return nil
	}
	r := refOf(rels[0])
	return &r
}

// Record is one concept at one version edge.
type Record[T any] struct {
	UID               string           `json:"uid"`
	Kind              library.Kind     `json:"kind"`
	Version           string           `json:"version"`
	Status            library.Status   `json:"status"`
	StartDate         time.Time        `json:"start_date"`
	EndDate           *time.Time       `json:"end_date,omitempty"`
	AuthorID          string           `json:"author_id,omitempty"`
	ChangeDescription string           `json:"change_description,omitempty"`
	PossibleActions   []library.Action `json:"possible_actions"`
	Value             T                `json:"value"`
}

// Definition maps a concept type onto value content and relations.
type Definition[T any] struct {
	Kind library.Kind
	// Split separates scalar content from outgoing relations.
	Split func(v T) (library.Content, []library.RelationSpec)
	// Assemble rebuilds the concept from a reconstructed snapshot.
	Assemble func(s domainagg.Snapshot) T
}

func (d Definition[T]) Record(s domainagg.Snapshot) Record[T] {
	actions := s.PossibleActions
	if actions == nil {
		actions = []library.Action{}
	}
	return Record[T]{
		UID:               s.Root.UID,
		Kind:              s.Root.Kind,
		Version:           s.Edge.Version.String(),
		Status:            s.Edge.Status,
		StartDate:         s.Edge.StartDate,
		EndDate:           s.Edge.EndDate,
		AuthorID:          s.Edge.AuthorID,
		ChangeDescription: s.Edge.ChangeDescription,
		PossibleActions:   actions,
		Value:             d.Assemble(s),
	}
}

func (d Definition[T]) Proposal(v T) domainagg.Proposal {
	content, rels := d.Split(v)
	return domainagg.Proposal{Content: content, Relations: rels}
}

// Codec is the untyped view of a Definition used by transports.
type Codec interface {
	ConceptKind() library.Kind
	Decode(raw []byte) (domainagg.Proposal, error)
	Encode(s domainagg.Snapshot) any
}

func (d Definition[T]) ConceptKind() library.Kind { return d.Kind }

func (d Definition[T]) Decode(raw []byte) (domainagg.Proposal, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return domainagg.Proposal{}, fmt.Errorf("decode %s: %w", d.Kind, err)
	}
	return d.Proposal(v), nil
}

func (d Definition[T]) Encode(s domainagg.Snapshot) any { return d.Record(s) }

// Registry resolves codecs by kind name, case-insensitively.
type Registry struct {
	codecs map[string]Codec
	kinds  []library.Kind
}

func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: map[string]Codec{}}
	for _, c := range codecs {
		key := strings.ToLower(string(c.ConceptKind()))
		if _, dup := r.codecs[key]; dup {
			continue
		}
		r.codecs[key] = c
		r.kinds = append(r.kinds, c.ConceptKind())
	}
	return r
}

func (r *Registry) Lookup(kind string) (Codec, bool) {
	c, ok := r.codecs[strings.ToLower(strings.TrimSpace(kind))]
	return c, ok
}

func (r *Registry) Kinds() []library.Kind {
	return append([]library.Kind(nil), r.kinds...)
}

// contentOf encodes v and drops the relation-bearing keys.
func contentOf(v any, drop ...string) library.Content {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := library.Content{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

// fill decodes snapshot content into out.
func fill(s domainagg.Snapshot, out any) {
	raw, err := json.Marshal(s.Value.Content)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func relTo(t library.RelType, uid string, props map[string]any) library.RelationSpec {
	return library.RelationSpec{Type: t, TargetUID: strings.TrimSpace(uid), Props: props}
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propBool(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func propInt(props map[string]any, key string) int {
	switch n := props[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func propStrings(props map[string]any, key string) []string {
	if ss, ok := props[key].([]string); ok {
		return append([]string(nil), ss...)
	}
	raw, _ := props[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
