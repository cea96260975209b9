package library_test

import (
	"reflect"
	"testing"

	"github.com/yungbote/mdr-backend/internal/domain/library"
	lib "github.com/yungbote/mdr-backend/internal/modules/library"
)

func uids(refs []lib.Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.UID)
	}
	return out
}

func TestActivityItemClassRoundTrip(t *testing.T) {
	f := newFixture(t)
	classes := lib.NewRepository(lib.ActivityInstanceClassDef, f.eng)
	itemClasses := lib.NewRepository(lib.ActivityItemClassDef, f.eng)
	terms := lib.NewRepository(lib.CTTermDef, f.eng)

	parent := must(classes.Create(f.ctx, "", lib.ActivityInstanceClass{Name: "Finding", Order: 1}, audit))(t)
	child := must(classes.Create(f.ctx, "", lib.ActivityInstanceClass{
		Name:             "Lab",
		Order:            2,
		IsDomainSpecific: true,
		ParentClass:      &lib.Ref{UID: parent.UID},
	}, audit))(t)
	role := must(terms.Create(f.ctx, "", lib.CTTerm{Name: "Topic", SubmissionValue: "TOPIC", Codelist: "ROLE"}, audit))(t)
	role = must(terms.Approve(f.ctx, role.UID, audit))(t)
	dt := must(terms.Create(f.ctx, "", lib.CTTerm{Name: "Text", SubmissionValue: "TEXT", Codelist: "DATATYPE"}, audit))(t)
	dt = must(terms.Approve(f.ctx, dt.UID, audit))(t)

	in := lib.ActivityItemClass{
		Name:         "test_name_code",
		Definition:   "Lab test code",
		NCIConceptID: "C12345",
		Order:        3,
		ActivityInstanceClasses: []lib.ItemClassInstanceClass{
			{Ref: lib.Ref{UID: child.UID}, Mandatory: true, IsAdamParamSpecificEnabled: true},
			{Ref: lib.Ref{UID: parent.UID}},
		},
		Role:     &lib.Ref{UID: role.UID},
		DataType: &lib.Ref{UID: dt.UID},
	}
	created := must(itemClasses.Create(f.ctx, "", in, audit))(t)
	wantRecord(t, created, "0.1", library.StatusDraft)
	if created.UID != "ActivityItemClass_000001" {
		t.Fatalf("uid: %s", created.UID)
	}
	if !reflect.DeepEqual(created.PossibleActions, []library.Action{library.ActionApprove, library.ActionEdit}) {
		t.Fatalf("possible actions: %v", created.PossibleActions)
	}

	got := must(itemClasses.Find(f.ctx, created.UID, library.Query{}))(t)
	v := got.Value
	if v.Name != in.Name || v.Definition != in.Definition || v.NCIConceptID != in.NCIConceptID || v.Order != in.Order {
		t.Fatalf("scalars: %+v", v)
	}
	if v.Role == nil || v.Role.UID != role.UID || v.Role.Name != "Topic" || v.Role.Version != "1.0" {
		t.Fatalf("role: %+v", v.Role)
	}
	if v.DataType == nil || v.DataType.UID != dt.UID {
		t.Fatalf("data type: %+v", v.DataType)
	}
	byUID := map[string]lib.ItemClassInstanceClass{}
	for _, c := range v.ActivityInstanceClasses {
		byUID[c.UID] = c
	}
	if c := byUID[child.UID]; !c.Mandatory || !c.IsAdamParamSpecificEnabled || c.Name != "Lab" {
		t.Fatalf("child class link: %+v", c)
	}
	if c := byUID[parent.UID]; c.Mandatory || c.IsAdamParamSpecificEnabled {
		t.Fatalf("parent class link: %+v", c)
	}

	gotChild := must(classes.Find(f.ctx, child.UID, library.Query{}))(t)
	if gotChild.Value.ParentClass == nil || gotChild.Value.ParentClass.UID != parent.UID || !gotChild.Value.IsDomainSpecific {
		t.Fatalf("instance class: %+v", gotChild.Value)
	}
}

func TestActivityItemClassCarriesRoleForward(t *testing.T) {
	f := newFixture(t)
	itemClasses := lib.NewRepository(lib.ActivityItemClassDef, f.eng)
	terms := lib.NewRepository(lib.CTTermDef, f.eng)
	role := must(terms.Create(f.ctx, "", lib.CTTerm{Name: "Qualifier"}, audit))(t)
	must(terms.Approve(f.ctx, role.UID, audit))(t)

	ic := must(itemClasses.Create(f.ctx, "", lib.ActivityItemClass{Name: "unit", Role: &lib.Ref{UID: role.UID}}, audit))(t)
	edited := must(itemClasses.Edit(f.ctx, ic.UID, lib.ActivityItemClass{Name: "unit", Definition: "Unit of measure"}, audit))(t)
	wantRecord(t, edited, "0.2", library.StatusDraft)
	if edited.Value.Role == nil || edited.Value.Role.UID != role.UID {
		t.Fatalf("role must carry forward: %+v", edited.Value.Role)
	}
}

func TestOdmItemGroupKeepsItemOrder(t *testing.T) {
	f := newFixture(t)
	items := lib.NewRepository(lib.OdmItemDef, f.eng)
	groups := lib.NewRepository(lib.OdmItemGroupDef, f.eng)

	height := must(items.Create(f.ctx, "", lib.OdmItem{Name: "HEIGHT", OID: "I.HEIGHT", DataType: "float", Length: 5}, audit))(t)
	weight := must(items.Create(f.ctx, "", lib.OdmItem{Name: "WEIGHT", OID: "I.WEIGHT", DataType: "float", Length: 5}, audit))(t)
	ig := must(groups.Create(f.ctx, "", lib.OdmItemGroup{
		Name: "VITALS",
		OID:  "IG.VITALS",
		Items: []lib.OdmItemRef{
			{Ref: lib.Ref{UID: weight.UID}, Order: 2, Mandatory: "Yes"},
			{Ref: lib.Ref{UID: height.UID}, Order: 1},
		},
	}, audit))(t)

	got := must(groups.Find(f.ctx, ig.UID, library.Query{}))(t)
	if len(got.Value.Items) != 2 {
		t.Fatalf("items: %+v", got.Value.Items)
	}
	if got.Value.Items[0].UID != height.UID || got.Value.Items[1].UID != weight.UID {
		t.Fatalf("order: %+v", got.Value.Items)
	}
	if got.Value.Items[1].Mandatory != "Yes" || got.Value.Items[1].Order != 2 {
		t.Fatalf("props: %+v", got.Value.Items[1])
	}
	if got.Value.Items[0].Name != "HEIGHT" {
		t.Fatalf("resolved name: %+v", got.Value.Items[0])
	}
}

func TestActivityRoundTripGroupings(t *testing.T) {
	f := newFixture(t)
	g := f.finalGroup("Vital Signs")
	s := f.finalSubGroup("Blood Pressure", g.UID)
	a := must(f.activities.Create(f.ctx, "", lib.Activity{
		Name:         "Systolic",
		NCIConceptID: "C25298",
		Groupings: []lib.ActivityGrouping{{
			ActivityGroup:    lib.Ref{UID: g.UID},
			ActivitySubGroup: lib.Ref{UID: s.UID},
		}},
	}, audit))(t)

	got := must(f.activities.Find(f.ctx, a.UID, library.Query{}))(t)
	if len(got.Value.Groupings) != 1 {
		t.Fatalf("groupings: %+v", got.Value.Groupings)
	}
	gr := got.Value.Groupings[0]
	if gr.ActivityGroup.UID != g.UID || gr.ActivityGroup.Name != "Vital Signs" {
		t.Fatalf("group: %+v", gr.ActivityGroup)
	}
	if gr.ActivitySubGroup.UID != s.UID || gr.ActivitySubGroup.Name != "Blood Pressure" {
		t.Fatalf("subgroup: %+v", gr.ActivitySubGroup)
	}
	if got.Value.NCIConceptID != "C25298" {
		t.Fatalf("nci id: %q", got.Value.NCIConceptID)
	}
}

func TestSubGroupDeclaredGroupsSetOnRead(t *testing.T) {
	f := newFixture(t)
	g1 := f.finalGroup("G1")
	g2 := f.finalGroup("G2")
	s := f.finalSubGroup("S", g2.UID, g1.UID)
	got := must(f.subGroups.Find(f.ctx, s.UID, library.Query{}))(t)
	if want := []string{g1.UID, g2.UID}; !reflect.DeepEqual(uids(got.Value.ActivityGroups), want) {
		t.Fatalf("groups: want %v got %v", want, uids(got.Value.ActivityGroups))
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := lib.DefaultRegistry()
	if len(reg.Kinds()) != 10 {
		t.Fatalf("kinds: %v", reg.Kinds())
	}
	for _, name := range []string{"ActivityGroup", "activitygroup", " OdmForm "} {
		if _, ok := reg.Lookup(name); !ok {
			t.Fatalf("lookup %q failed", name)
		}
	}
	if _, ok := reg.Lookup("StudyVisit"); ok {
		t.Fatalf("unexpected kind")
	}
	catalog := library.DefaultCatalog()
	for _, k := range reg.Kinds() {
		if _, ok := catalog.Kind(k); !ok {
			t.Fatalf("registry kind %s missing from catalog", k)
		}
	}
}

func TestActivityInstanceGroupingNamesAtInstant(t *testing.T) {
	f := newFixture(t)
	g := f.finalGroup("Vital Signs")
	s := f.finalSubGroup("Blood Pressure", g.UID)
	a := f.finalActivity("Systolic", g.UID, s.UID)
	inst := must(f.instances.Create(f.ctx, "", lib.ActivityInstance{
		Name: "Systolic BP",
		Groupings: []lib.ActivityInstanceGrouping{{
			Activity:         lib.Ref{UID: a.UID},
			ActivitySubGroup: lib.Ref{UID: s.UID},
			ActivityGroup:    lib.Ref{UID: g.UID},
		}},
	}, audit))(t)
	approved := must(f.instances.Approve(f.ctx, inst.UID, audit))(t)

	must(f.groups.NewVersion(f.ctx, g.UID, &lib.ActivityGroup{Name: "Vitals"}, audit))(t)
	renamed := must(f.groups.Approve(f.ctx, g.UID, audit))(t)

	wantGroup := func(q library.Query, name, version string) {
		t.Helper()
		got := must(f.instances.Find(f.ctx, inst.UID, q))(t)
		if len(got.Value.Groupings) != 1 {
			t.Fatalf("groupings: %+v", got.Value.Groupings)
		}
		gr := got.Value.Groupings[0]
		if gr.ActivityGroup.UID != g.UID || gr.ActivityGroup.Name != name || gr.ActivityGroup.Version != version {
			t.Fatalf("group: want %s %s got %+v", name, version, gr.ActivityGroup)
		}
		if gr.ActivitySubGroup.Name != "Blood Pressure" || gr.ActivitySubGroup.Version != "1.0" {
			t.Fatalf("subgroup: %+v", gr.ActivitySubGroup)
		}
	}
	before := approved.StartDate
	wantGroup(library.Query{At: &before}, "Vital Signs", "1.0")
	wantGroup(library.Query{}, "Vital Signs", "1.0")
	after := renamed.StartDate
	wantGroup(library.Query{At: &after}, "Vitals", "2.0")
}
