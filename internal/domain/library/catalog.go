package library

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const catalogEnv = "LIBRARY_CATALOG_YAML"

//go:embed catalog.yaml
var embeddedCatalog []byte

type KindSpec struct {
	Kind       Kind   `yaml:"kind"`
	UIDPrefix  string `yaml:"uid_prefix"`
	NameField  string `yaml:"name_field"`
	UniqueName bool   `yaml:"unique_name"`
}

type RelationPolicy struct {
	Type               RelType         `yaml:"type"`
	From               Kind            `yaml:"from"`
	To                 Kind            `yaml:"to"`
	RequireFinal       bool            `yaml:"require_final"`
	CarryForward       bool            `yaml:"carry_forward"`
	Repointable        bool            `yaml:"repointable"`
	IgnoreWhenReleased bool            `yaml:"ignore_when_released"`
	PropRefs           map[string]Kind `yaml:"prop_refs"`
}

type catalogFile struct {
	Kinds     []KindSpec       `yaml:"kinds"`
	Relations []RelationPolicy `yaml:"relations"`
}

// Catalog holds the known kinds and relation policies.
type Catalog struct {
	kinds     map[Kind]KindSpec
	relations map[RelType]RelationPolicy
}

// LoadCatalog reads the file named by LIBRARY_CATALOG_YAML, or the embedded
// catalog when the variable is unset.
func LoadCatalog() (*Catalog, error) {
	path := strings.TrimSpace(os.Getenv(catalogEnv))
	if path == "" {
		return ParseCatalog(embeddedCatalog)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", catalogEnv, err)
	}
	return ParseCatalog(raw)
}

// DefaultCatalog parses the embedded catalog and panics on failure.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{
		kinds:     make(map[Kind]KindSpec, len(f.Kinds)),
		relations: make(map[RelType]RelationPolicy, len(f.Relations)),
	}
	for _, k := range f.Kinds {
		k.Kind = Kind(strings.TrimSpace(string(k.Kind)))
		if k.Kind == "" {
			return nil, fmt.Errorf("catalog: kind without name")
		}
		if _, dup := c.kinds[k.Kind]; dup {
			return nil, fmt.Errorf("catalog: duplicate kind %s", k.Kind)
		}
		if strings.TrimSpace(k.UIDPrefix) == "" {
			k.UIDPrefix = string(k.Kind)
		}
		c.kinds[k.Kind] = k
	}
	for _, r := range f.Relations {
		r.Type = RelType(strings.TrimSpace(string(r.Type)))
		if r.Type == "" {
			return nil, fmt.Errorf("catalog: relation without type")
		}
		if _, dup := c.relations[r.Type]; dup {
			return nil, fmt.Errorf("catalog: duplicate relation %s", r.Type)
		}
		if _, ok := c.kinds[r.From]; !ok {
			return nil, fmt.Errorf("catalog: relation %s from unknown kind %s", r.Type, r.From)
		}
		if _, ok := c.kinds[r.To]; !ok {
			return nil, fmt.Errorf("catalog: relation %s to unknown kind %s", r.Type, r.To)
		}
		for prop, k := range r.PropRefs {
			if _, ok := c.kinds[k]; !ok {
				return nil, fmt.Errorf("catalog: relation %s prop %s refers to unknown kind %s", r.Type, prop, k)
			}
		}
		c.relations[r.Type] = r
	}
	return c, nil
}

func (c *Catalog) Kind(k Kind) (KindSpec, bool) {
	spec, ok := c.kinds[k]
	return spec, ok
}

func (c *Catalog) Relation(t RelType) (RelationPolicy, bool) {
	p, ok := c.relations[t]
	return p, ok
}

// Kinds returns the known kinds sorted by name.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, 0, len(c.kinds))
	for k := range c.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RelationsFrom returns the policies whose source is kind k.
func (c *Catalog) RelationsFrom(k Kind) []RelationPolicy {
	var out []RelationPolicy
	for _, p := range c.relations {
		if p.From == k {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Repointable returns the relation types whose incoming links follow new values of k.
func (c *Catalog) Repointable(k Kind) []RelType {
	var out []RelType
	for _, p := range c.relations {
		if p.To == k && p.Repointable {
			out = append(out, p.Type)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FormatUID renders "<prefix>_<zero padded sequence>".
func (s KindSpec) FormatUID(seq int64) string {
	return fmt.Sprintf("%s_%06d", s.UIDPrefix, seq)
}

// ParseUIDSequence extracts the sequence from a uid minted by FormatUID.
func (s KindSpec) ParseUIDSequence(uid string) (int64, bool) {
	rest, ok := strings.CutPrefix(uid, s.UIDPrefix+"_")
	if !ok || rest == "" {
		return 0, false
	}
	var n int64
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, true
}
