package library

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if len(c.Kinds()) != 10 {
		t.Fatalf("kinds: got=%d", len(c.Kinds()))
	}
	p, ok := c.Relation("HAS_GROUP")
	if !ok || p.From != "ActivitySubGroup" || p.To != "ActivityGroup" || !p.RequireFinal {
		t.Fatalf("HAS_GROUP policy: %+v", p)
	}
	if got := c.Repointable("OdmItem"); len(got) != 1 || got[0] != "ITEM_REF" {
		t.Fatalf("repointable into OdmItem: %v", got)
	}
	inst, _ := c.Relation("INSTANCE_OF")
	if inst.PropRefs["activity_group_uid"] != "ActivityGroup" || inst.PropRefs["activity_subgroup_uid"] != "ActivitySubGroup" {
		t.Fatalf("INSTANCE_OF prop refs: %+v", inst.PropRefs)
	}
	from := c.RelationsFrom("ActivityItemClass")
	if len(from) != 3 || from[0].Type != "HAS_DATA_TYPE" {
		t.Fatalf("relations from ActivityItemClass: %+v", from)
	}
}

func TestParseCatalogRejectsUnknownKinds(t *testing.T) {
	raw := []byte(`
kinds:
  - kind: A
relations:
  - type: R
    from: A
    to: B
`)
	if _, err := ParseCatalog(raw); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	badProp := []byte(`
kinds:
  - kind: A
relations:
  - type: R
    from: A
    to: A
    prop_refs:
      b_uid: B
`)
	if _, err := ParseCatalog(badProp); err == nil {
		t.Fatalf("expected unknown prop ref kind error")
	}
	dup := []byte(`
kinds:
  - kind: A
  - kind: A
`)
	if _, err := ParseCatalog(dup); err == nil {
		t.Fatalf("expected duplicate kind error")
	}
}

func TestLoadCatalogEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("kinds:\n  - kind: Thing\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(catalogEnv, path)
	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	spec, ok := c.Kind("Thing")
	if !ok || spec.UIDPrefix != "Thing" {
		t.Fatalf("kind spec: %+v", spec)
	}
}

func TestUIDFormatting(t *testing.T) {
	spec := KindSpec{Kind: "ActivityGroup", UIDPrefix: "ActivityGroup"}
	uid := spec.FormatUID(42)
	if uid != "ActivityGroup_000042" {
		t.Fatalf("uid: %s", uid)
	}
	n, ok := spec.ParseUIDSequence(uid)
	if !ok || n != 42 {
		t.Fatalf("parse: %d %v", n, ok)
	}
	if _, ok := spec.ParseUIDSequence("Activity_000001"); ok {
		t.Fatalf("foreign prefix must not parse")
	}
}
