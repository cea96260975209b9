package sqlstore

import (
	"testing"
	"time"

	"github.com/yungbote/mdr-backend/internal/domain/library"
)

func TestValueRowRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	v := library.Value{
		ID: "v1", Kind: "ActivityGroup", RootUID: "ActivityGroup_000001", Ordinal: 2,
		Content:     library.Content{"name": "Group", "definition": "def"},
		ContentHash: "abc", CreatedAt: at,
	}
	row, err := toValueRow(v)
	if err != nil {
		t.Fatalf("toValueRow: %v", err)
	}
	if row.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at must be stored in UTC")
	}
	back, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if back.Content["name"] != "Group" || back.Ordinal != 2 || !back.CreatedAt.Equal(at) {
		t.Fatalf("round trip: %+v", back)
	}
}

func TestEmptyContentDecodesToEmptyMap(t *testing.T) {
	back, err := valueRow{ID: "v1", Content: nil}.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if back.Content == nil {
		t.Fatalf("content must not be nil")
	}
}

func TestEdgeRowKeepsOpenEnd(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	e := library.VersionEdge{ID: "e1", Version: library.Version{Major: 1, Minor: 0}, Status: library.StatusFinal, StartDate: start}
	got := toEdgeRow(e).toDomain()
	if got.EndDate != nil || got.Version.Compare(e.Version) != 0 || got.Status != library.StatusFinal {
		t.Fatalf("open edge: %+v", got)
	}
	end := start.Add(time.Hour)
	e.EndDate = &end
	got = toEdgeRow(e).toDomain()
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Fatalf("closed edge: %+v", got)
	}
}

func TestLinkRowProps(t *testing.T) {
	l := library.Link{
		ID: "l1", Type: "INSTANCE_OF", TargetVersion: library.Version{Major: 2},
		Props: map[string]any{"activity_group_uid": "ActivityGroup_000001"},
	}
	row, err := toLinkRow(l)
	if err != nil {
		t.Fatalf("toLinkRow: %v", err)
	}
	back, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if back.Props["activity_group_uid"] != "ActivityGroup_000001" || back.TargetVersion.Major != 2 || !back.Current() {
		t.Fatalf("link: %+v", back)
	}

	l.Props = nil
	row, _ = toLinkRow(l)
	if string(row.Props) != "{}" {
		t.Fatalf("empty props stored as %s", row.Props)
	}
	back, _ = row.toDomain()
	if back.Props != nil {
		t.Fatalf("empty props must decode to nil: %v", back.Props)
	}
}
