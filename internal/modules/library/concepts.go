package library

import (
	"sort"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

const (
	KindActivityGroup         library.Kind = "ActivityGroup"
	KindActivitySubGroup      library.Kind = "ActivitySubGroup"
	KindActivity              library.Kind = "Activity"
	KindActivityInstance      library.Kind = "ActivityInstance"
	KindActivityInstanceClass library.Kind = "ActivityInstanceClass"
	KindActivityItemClass     library.Kind = "ActivityItemClass"
	KindCTTerm                library.Kind = "CTTerm"
	KindOdmItem               library.Kind = "OdmItem"
	KindOdmItemGroup          library.Kind = "OdmItemGroup"
	KindOdmForm               library.Kind = "OdmForm"
)

const (
	RelHasGroup         library.RelType = "HAS_GROUP"
	RelInSubGroup       library.RelType = "IN_SUBGROUP"
	RelInGroup          library.RelType = "IN_GROUP"
	RelInstanceOf       library.RelType = "INSTANCE_OF"
	RelHasClass         library.RelType = "HAS_CLASS"
	RelHasActivityItem  library.RelType = "HAS_ACTIVITY_ITEM"
	RelParentClass      library.RelType = "PARENT_CLASS"
	RelHasInstanceClass library.RelType = "HAS_INSTANCE_CLASS"
	RelHasRole          library.RelType = "HAS_ROLE"
	RelHasDataType      library.RelType = "HAS_DATA_TYPE"
	RelItemRef          library.RelType = "ITEM_REF"
	RelItemGroupRef     library.RelType = "ITEM_GROUP_REF"
)

// Grouping prop keys carried on IN_SUBGROUP and INSTANCE_OF links.
const (
	propGroupUID    = "activity_group_uid"
	propSubGroupUID = "activity_subgroup_uid"
)

const propCTTermUIDs = "ct_term_uids"

type ActivityGroup struct {
	Name         string `json:"name"`
	Definition   string `json:"definition,omitempty"`
	Abbreviation string `json:"abbreviation,omitempty"`
}

type ActivitySubGroup struct {
	Name           string `json:"name"`
	Definition     string `json:"definition,omitempty"`
	ActivityGroups []Ref  `json:"activity_groups"`
}

type ActivityGrouping struct {
	ActivityGroup    Ref `json:"activity_group"`
	ActivitySubGroup Ref `json:"activity_subgroup"`
}

type Activity struct {
	Name         string             `json:"name"`
	Definition   string             `json:"definition,omitempty"`
	NCIConceptID string             `json:"nci_concept_id,omitempty"`
	Groupings    []ActivityGrouping `json:"activity_groupings"`
}

type ActivityInstanceGrouping struct {
	Activity         Ref `json:"activity"`
	ActivitySubGroup Ref `json:"activity_subgroup"`
	ActivityGroup    Ref `json:"activity_group"`
}

type ActivityItem struct {
	ActivityItemClass   Ref      `json:"activity_item_class"`
	CTTermUIDs          []string `json:"ct_term_uids,omitempty"`
	IsAdamParamSpecific bool     `json:"is_adam_param_specific"`
}

type ActivityInstance struct {
	Name                  string                     `json:"name"`
	Definition            string                     `json:"definition,omitempty"`
	TopicCode             string                     `json:"topic_code,omitempty"`
	ActivityInstanceClass *Ref                       `json:"activity_instance_class,omitempty"`
	Groupings             []ActivityInstanceGrouping `json:"activity_groupings"`
	ActivityItems         []ActivityItem             `json:"activity_items,omitempty"`
}

type ActivityInstanceClass struct {
	Name             string `json:"name"`
	Definition       string `json:"definition,omitempty"`
	Order            int    `json:"order,omitempty"`
	IsDomainSpecific bool   `json:"is_domain_specific"`
	ParentClass      *Ref   `json:"parent_class,omitempty"`
}

type ItemClassInstanceClass struct {
	Ref
	Mandatory                  bool `json:"mandatory"`
	IsAdamParamSpecificEnabled bool `json:"is_adam_param_specific_enabled"`
}

type ActivityItemClass struct {
	Name                    string                   `json:"name"`
	Definition              string                   `json:"definition,omitempty"`
	NCIConceptID            string                   `json:"nci_concept_id,omitempty"`
	Order                   int                      `json:"order,omitempty"`
	ActivityInstanceClasses []ItemClassInstanceClass `json:"activity_instance_classes"`
	// Role and DataType are carried forward from the previous version when omitted.
	Role     *Ref `json:"role,omitempty"`
	DataType *Ref `json:"data_type,omitempty"`
}

type CTTerm struct {
	Name            string `json:"name"`
	SubmissionValue string `json:"submission_value,omitempty"`
	Codelist        string `json:"codelist,omitempty"`
}

type OdmItem struct {
	Name     string `json:"name"`
	OID      string `json:"oid,omitempty"`
	DataType string `json:"datatype,omitempty"`
	Length   int    `json:"length,omitempty"`
}

type OdmItemRef struct {
	Ref
	Order     int    `json:"order_number"`
	Mandatory string `json:"mandatory,omitempty"`
}

type OdmItemGroup struct {
	Name      string       `json:"name"`
	OID       string       `json:"oid,omitempty"`
	Repeating string       `json:"repeating,omitempty"`
	Items     []OdmItemRef `json:"items"`
}

type OdmItemGroupRef struct {
	Ref
	Order     int    `json:"order_number"`
	Mandatory string `json:"mandatory,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
}

type OdmForm struct {
	Name       string            `json:"name"`
	OID        string            `json:"oid,omitempty"`
	Repeating  string            `json:"repeating,omitempty"`
	ItemGroups []OdmItemGroupRef `json:"item_groups"`
}

var ActivityGroupDef = Definition[ActivityGroup]{
	Kind: KindActivityGroup,
	Split: func(v ActivityGroup) (library.Content, []library.RelationSpec) {
		return contentOf(v), nil
	},
	Assemble: func(s domainagg.Snapshot) ActivityGroup {
		var out ActivityGroup
		fill(s, &out)
		return out
	},
}

var ActivitySubGroupDef = Definition[ActivitySubGroup]{
	Kind: KindActivitySubGroup,
	Split: func(v ActivitySubGroup) (library.Content, []library.RelationSpec) {
		rels := make([]library.RelationSpec, 0, len(v.ActivityGroups))
		for _, g := range v.ActivityGroups {
			rels = append(rels, relTo(RelHasGroup, g.UID, nil))
		}
		return contentOf(v, "activity_groups"), rels
	},
	Assemble: func(s domainagg.Snapshot) ActivitySubGroup {
		var out ActivitySubGroup
		fill(s, &out)
		for _, r := range s.RelationsOf(RelHasGroup) {
			out.ActivityGroups = append(out.ActivityGroups, refOf(r))
		}
		return out
	},
}

var ActivityDef = Definition[Activity]{
	Kind: KindActivity,
	Split: func(v Activity) (library.Content, []library.RelationSpec) {
		var rels []library.RelationSpec
		seen := map[string]bool{}
		for _, g := range v.Groupings {
			rels = append(rels, relTo(RelInSubGroup, g.ActivitySubGroup.UID, map[string]any{propGroupUID: g.ActivityGroup.UID}))
			if !seen[g.ActivityGroup.UID] {
				seen[g.ActivityGroup.UID] = true
				rels = append(rels, relTo(RelInGroup, g.ActivityGroup.UID, nil))
			}
		}
		return contentOf(v, "activity_groupings"), rels
	},
	Assemble: func(s domainagg.Snapshot) Activity {
		var out Activity
		fill(s, &out)
		groups := map[string]Ref{}
		for _, r := range s.RelationsOf(RelInGroup) {
			groups[r.TargetUID] = refOf(r)
		}
		for _, r := range s.RelationsOf(RelInSubGroup) {
			guid := propString(r.Props, propGroupUID)
			g, ok := groups[guid]
			if !ok {
				g = Ref{UID: guid}
			}
			out.Groupings = append(out.Groupings, ActivityGrouping{ActivityGroup: g, ActivitySubGroup: refOf(r)})
		}
		return out
	},
}

var ActivityInstanceDef = Definition[ActivityInstance]{
	Kind: KindActivityInstance,
	Split: func(v ActivityInstance) (library.Content, []library.RelationSpec) {
		var rels []library.RelationSpec
		if v.ActivityInstanceClass != nil {
			rels = append(rels, relTo(RelHasClass, v.ActivityInstanceClass.UID, nil))
		}
		for _, g := range v.Groupings {
			rels = append(rels, relTo(RelInstanceOf, g.Activity.UID, map[string]any{
				propGroupUID:    g.ActivityGroup.UID,
				propSubGroupUID: g.ActivitySubGroup.UID,
			}))
		}
		for _, it := range v.ActivityItems {
			terms := append([]string(nil), it.CTTermUIDs...)
			sort.Strings(terms)
			rels = append(rels, relTo(RelHasActivityItem, it.ActivityItemClass.UID, map[string]any{
				propCTTermUIDs:           terms,
				"is_adam_param_specific": it.IsAdamParamSpecific,
			}))
		}
		return contentOf(v, "activity_instance_class", "activity_groupings", "activity_items"), rels
	},
	Assemble: func(s domainagg.Snapshot) ActivityInstance {
		var out ActivityInstance
		fill(s, &out)
		out.ActivityInstanceClass = optionalRef(s.RelationsOf(RelHasClass))
		for _, r := range s.RelationsOf(RelInstanceOf) {
			out.Groupings = append(out.Groupings, ActivityInstanceGrouping{
				Activity:         refOf(r),
				ActivitySubGroup: propRef(r, propSubGroupUID),
				ActivityGroup:    propRef(r, propGroupUID),
			})
		}
		for _, r := range s.RelationsOf(RelHasActivityItem) {
			out.ActivityItems = append(out.ActivityItems, ActivityItem{
				ActivityItemClass:   refOf(r),
				CTTermUIDs:          propStrings(r.Props, propCTTermUIDs),
				IsAdamParamSpecific: propBool(r.Props, "is_adam_param_specific"),
			})
		}
		return out
	},
}

var ActivityInstanceClassDef = Definition[ActivityInstanceClass]{
	Kind: KindActivityInstanceClass,
	Split: func(v ActivityInstanceClass) (library.Content, []library.RelationSpec) {
		var rels []library.RelationSpec
		if v.ParentClass != nil {
			rels = append(rels, relTo(RelParentClass, v.ParentClass.UID, nil))
		}
		return contentOf(v, "parent_class"), rels
	},
	Assemble: func(s domainagg.Snapshot) ActivityInstanceClass {
		var out ActivityInstanceClass
		fill(s, &out)
		out.ParentClass = optionalRef(s.RelationsOf(RelParentClass))
		return out
	},
}

var ActivityItemClassDef = Definition[ActivityItemClass]{
	Kind: KindActivityItemClass,
	Split: func(v ActivityItemClass) (library.Content, []library.RelationSpec) {
		var rels []library.RelationSpec
		for _, c := range v.ActivityInstanceClasses {
			rels = append(rels, relTo(RelHasInstanceClass, c.UID, map[string]any{
				"mandatory":                      c.Mandatory,
				"is_adam_param_specific_enabled": c.IsAdamParamSpecificEnabled,
			}))
		}
		if v.Role != nil {
			rels = append(rels, relTo(RelHasRole, v.Role.UID, nil))
		}
		if v.DataType != nil {
			rels = append(rels, relTo(RelHasDataType, v.DataType.UID, nil))
		}
		return contentOf(v, "activity_instance_classes", "role", "data_type"), rels
	},
	Assemble: func(s domainagg.Snapshot) ActivityItemClass {
		var out ActivityItemClass
		fill(s, &out)
		for _, r := range s.RelationsOf(RelHasInstanceClass) {
			out.ActivityInstanceClasses = append(out.ActivityInstanceClasses, ItemClassInstanceClass{
				Ref:                        refOf(r),
				Mandatory:                  propBool(r.Props, "mandatory"),
				IsAdamParamSpecificEnabled: propBool(r.Props, "is_adam_param_specific_enabled"),
			})
		}
		out.Role = optionalRef(s.RelationsOf(RelHasRole))
		out.DataType = optionalRef(s.RelationsOf(RelHasDataType))
		return out
	},
}

var CTTermDef = Definition[CTTerm]{
	Kind: KindCTTerm,
	Split: func(v CTTerm) (library.Content, []library.RelationSpec) {
		return contentOf(v), nil
	},
	Assemble: func(s domainagg.Snapshot) CTTerm {
		var out CTTerm
		fill(s, &out)
		return out
	},
}

var OdmItemDef = Definition[OdmItem]{
	Kind: KindOdmItem,
	Split: func(v OdmItem) (library.Content, []library.RelationSpec) {
		return contentOf(v), nil
	},
	Assemble: func(s domainagg.Snapshot) OdmItem {
		var out OdmItem
		fill(s, &out)
		return out
	},
}

var OdmItemGroupDef = Definition[OdmItemGroup]{
	Kind: KindOdmItemGroup,
	Split: func(v OdmItemGroup) (library.Content, []library.RelationSpec) {
		rels := make([]library.RelationSpec, 0, len(v.Items))
		for _, it := range v.Items {
			props := map[string]any{"order_number": it.Order}
			if it.Mandatory != "" {
				props["mandatory"] = it.Mandatory
			}
			rels = append(rels, relTo(RelItemRef, it.UID, props))
		}
		return contentOf(v, "items"), rels
	},
	Assemble: func(s domainagg.Snapshot) OdmItemGroup {
		var out OdmItemGroup
		fill(s, &out)
		for _, r := range s.RelationsOf(RelItemRef) {
			out.Items = append(out.Items, OdmItemRef{
				Ref:       refOf(r),
				Order:     propInt(r.Props, "order_number"),
				Mandatory: propString(r.Props, "mandatory"),
			})
		}
		sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].Order < out.Items[j].Order })
		return out
	},
}

var OdmFormDef = Definition[OdmForm]{
	Kind: KindOdmForm,
	Split: func(v OdmForm) (library.Content, []library.RelationSpec) {
		rels := make([]library.RelationSpec, 0, len(v.ItemGroups))
		for _, g := range v.ItemGroups {
			props := map[string]any{"order_number": g.Order}
			if g.Mandatory != "" {
				props["mandatory"] = g.Mandatory
			}
			if g.Vendor != "" {
				props["vendor"] = g.Vendor
			}
			rels = append(rels, relTo(RelItemGroupRef, g.UID, props))
		}
		return contentOf(v, "item_groups"), rels
	},
	Assemble: func(s domainagg.Snapshot) OdmForm {
		var out OdmForm
		fill(s, &out)
		for _, r := range s.RelationsOf(RelItemGroupRef) {
			out.ItemGroups = append(out.ItemGroups, OdmItemGroupRef{
				Ref:       refOf(r),
				Order:     propInt(r.Props, "order_number"),
				Mandatory: propString(r.Props, "mandatory"),
				Vendor:    propString(r.Props, "vendor"),
			})
		}
		sort.SliceStable(out.ItemGroups, func(i, j int) bool { return out.ItemGroups[i].Order < out.ItemGroups[j].Order })
		return out
	},
}

// DefaultRegistry knows every concept kind of the default catalog.
func DefaultRegistry() *Registry {
	return NewRegistry(
		ActivityGroupDef,
		ActivitySubGroupDef,
		ActivityDef,
		ActivityInstanceDef,
		ActivityInstanceClassDef,
		ActivityItemClassDef,
		CTTermDef,
		OdmItemDef,
		OdmItemGroupDef,
		OdmFormDef,
	)
}
