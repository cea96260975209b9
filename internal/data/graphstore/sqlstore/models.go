package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/mdr-backend/internal/domain/library"
)

type rootRow struct {
	Kind      string    `gorm:"column:kind;primaryKey"`
	UID       string    `gorm:"column:uid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (rootRow) TableName() string { return "mdr_root" }

type valueRow struct {
	ID          string         `gorm:"column:id;primaryKey"`
	Kind        string         `gorm:"column:kind;not null;index:idx_mdr_value_root,priority:1"`
	RootUID     string         `gorm:"column:root_uid;not null;index:idx_mdr_value_root,priority:2"`
	Ordinal     int            `gorm:"column:ordinal;not null"`
	Content     datatypes.JSON `gorm:"column:content"`
	ContentHash string         `gorm:"column:content_hash;index"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
}

func (valueRow) TableName() string { return "mdr_value" }

// versionEdgeRow is one HAS_VERSION edge. A partial unique index on
// (kind, root_uid) WHERE end_date IS NULL backs the single-open-edge rule.
type versionEdgeRow struct {
	ID                string     `gorm:"column:id;primaryKey"`
	Kind              string     `gorm:"column:kind;not null;index:idx_mdr_edge_root,priority:1"`
	RootUID           string     `gorm:"column:root_uid;not null;index:idx_mdr_edge_root,priority:2"`
	ValueID           string     `gorm:"column:value_id;not null;index"`
	Major             int        `gorm:"column:major;not null"`
	Minor             int        `gorm:"column:minor;not null"`
	Status            string     `gorm:"column:status;not null"`
	StartDate         time.Time  `gorm:"column:start_date;not null"`
	EndDate           *time.Time `gorm:"column:end_date"`
	AuthorID          string     `gorm:"column:author_id"`
	ChangeDescription string     `gorm:"column:change_description"`
}

func (versionEdgeRow) TableName() string { return "mdr_version_edge" }

type pointerRow struct {
	Kind    string `gorm:"column:kind;primaryKey"`
	RootUID string `gorm:"column:root_uid;primaryKey"`
	Pointer string `gorm:"column:pointer;primaryKey"`
	ValueID string `gorm:"column:value_id;not null"`
}

func (pointerRow) TableName() string { return "mdr_pointer" }

type linkRow struct {
	ID           string         `gorm:"column:id;primaryKey"`
	Type         string         `gorm:"column:type;not null"`
	FromKind     string         `gorm:"column:from_kind;not null"`
	FromRootUID  string         `gorm:"column:from_root_uid;not null"`
	FromValueID  string         `gorm:"column:from_value_id;not null;index"`
	ToKind       string         `gorm:"column:to_kind;not null;index:idx_mdr_link_target,priority:1"`
	ToRootUID    string         `gorm:"column:to_root_uid;not null;index:idx_mdr_link_target,priority:2"`
	ToValueID    string         `gorm:"column:to_value_id;not null"`
	TargetMajor  int            `gorm:"column:target_major;not null"`
	TargetMinor  int            `gorm:"column:target_minor;not null"`
	Props        datatypes.JSON `gorm:"column:props"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null"`
	SupersededAt *time.Time     `gorm:"column:superseded_at"`
}

func (linkRow) TableName() string { return "mdr_link" }

type uidCounterRow struct {
	Kind  string `gorm:"column:kind;primaryKey"`
	Value int64  `gorm:"column:value;not null"`
}

func (uidCounterRow) TableName() string { return "mdr_uid_counter" }

// Models lists every table owned by the store, for AutoMigrate.
func Models() []any {
	return []any{&rootRow{}, &valueRow{}, &versionEdgeRow{}, &pointerRow{}, &linkRow{}, &uidCounterRow{}}
}

func encodeJSON(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return datatypes.JSON([]byte("{}")), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeJSON(raw datatypes.JSON) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func toValueRow(v library.Value) (valueRow, error) {
	content, err := encodeJSON(v.Content)
	if err != nil {
		return valueRow{}, err
	}
	return valueRow{
		ID:          v.ID,
		Kind:        string(v.Kind),
		RootUID:     v.RootUID,
		Ordinal:     v.Ordinal,
		Content:     content,
		ContentHash: v.ContentHash,
		CreatedAt:   v.CreatedAt.UTC(),
	}, nil
}

func (r valueRow) toDomain() (library.Value, error) {
	content, err := decodeJSON(r.Content)
	if err != nil {
		return library.Value{}, err
	}
	if content == nil {
		content = map[string]any{}
	}
	return library.Value{
		ID:          r.ID,
		Kind:        library.Kind(r.Kind),
		RootUID:     r.RootUID,
		Ordinal:     r.Ordinal,
		Content:     content,
		ContentHash: r.ContentHash,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func toEdgeRow(e library.VersionEdge) versionEdgeRow {
	row := versionEdgeRow{
		ID:                e.ID,
		Kind:              string(e.Kind),
		RootUID:           e.RootUID,
		ValueID:           e.ValueID,
		Major:             e.Version.Major,
		Minor:             e.Version.Minor,
		Status:            string(e.Status),
		StartDate:         e.StartDate.UTC(),
		AuthorID:          e.AuthorID,
		ChangeDescription: e.ChangeDescription,
	}
	if e.EndDate != nil {
		end := e.EndDate.UTC()
		row.EndDate = &end
	}
	return row
}

func (r versionEdgeRow) toDomain() library.VersionEdge {
	e := library.VersionEdge{
		ID:                r.ID,
		Kind:              library.Kind(r.Kind),
		RootUID:           r.RootUID,
		ValueID:           r.ValueID,
		Version:           library.Version{Major: r.Major, Minor: r.Minor},
		Status:            library.Status(r.Status),
		StartDate:         r.StartDate.UTC(),
		AuthorID:          r.AuthorID,
		ChangeDescription: r.ChangeDescription,
	}
	if r.EndDate != nil {
		end := r.EndDate.UTC()
		e.EndDate = &end
	}
	return e
}

func toLinkRow(l library.Link) (linkRow, error) {
	props, err := encodeJSON(l.Props)
	if err != nil {
		return linkRow{}, err
	}
	row := linkRow{
		ID:          l.ID,
		Type:        string(l.Type),
		FromKind:    string(l.FromKind),
		FromRootUID: l.FromRootUID,
		FromValueID: l.FromValueID,
		ToKind:      string(l.ToKind),
		ToRootUID:   l.ToRootUID,
		ToValueID:   l.ToValueID,
		TargetMajor: l.TargetVersion.Major,
		TargetMinor: l.TargetVersion.Minor,
		Props:       props,
		CreatedAt:   l.CreatedAt.UTC(),
	}
	if l.SupersededAt != nil {
		at := l.SupersededAt.UTC()
		row.SupersededAt = &at
	}
	return row, nil
}

func (r linkRow) toDomain() (library.Link, error) {
	props, err := decodeJSON(r.Props)
	if err != nil {
		return library.Link{}, err
	}
	l := library.Link{
		ID:            r.ID,
		Type:          library.RelType(r.Type),
		FromKind:      library.Kind(r.FromKind),
		FromRootUID:   r.FromRootUID,
		FromValueID:   r.FromValueID,
		ToKind:        library.Kind(r.ToKind),
		ToRootUID:     r.ToRootUID,
		ToValueID:     r.ToValueID,
		TargetVersion: library.Version{Major: r.TargetMajor, Minor: r.TargetMinor},
		Props:         props,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.SupersededAt != nil {
		at := r.SupersededAt.UTC()
		l.SupersededAt = &at
	}
	return l, nil
}
