package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/observability"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
	"github.com/yungbote/mdr-backend/internal/platform/neo4jdb"
)

var relTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Projection is the neo4j row set for a batch of roots.
type Projection struct {
	Roots    []map[string]any
	Values   []map[string]any
	Versions []map[string]any
	// Pointers is keyed by pointer kind.
	Pointers map[library.PointerKind][]map[string]any
	// Links is keyed by relation type.
	Links map[library.RelType][]map[string]any
}

func rootKey(ref library.RootRef) string { return ref.String() }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func jsonString(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// BuildProjection reads refs from tx into neo4j rows. Missing roots are skipped.
func BuildProjection(tx graphstore.Tx, refs []library.RootRef, now time.Time) (Projection, error) {
	p := Projection{
		Pointers: map[library.PointerKind][]map[string]any{},
		Links:    map[library.RelType][]map[string]any{},
	}
	synced := formatTime(now)
	for _, ref := range refs {
		root, err := tx.GetRoot(ref)
		if err != nil {
			return Projection{}, err
		}
		if root == nil {
			continue
		}
		key := rootKey(ref)
		p.Roots = append(p.Roots, map[string]any{
			"key":        key,
			"kind":       string(ref.Kind),
			"uid":        ref.UID,
			"created_at": formatTime(root.CreatedAt),
			"synced_at":  synced,
		})
		values, err := tx.ListValues(ref)
		if err != nil {
			return Projection{}, err
		}
		for _, v := range values {
			p.Values = append(p.Values, map[string]any{
				"id":           v.ID,
				"kind":         string(v.Kind),
				"root_uid":     v.RootUID,
				"ordinal":      int64(v.Ordinal),
				"content_json": jsonString(v.Content),
				"content_hash": v.ContentHash,
				"created_at":   formatTime(v.CreatedAt),
				"synced_at":    synced,
			})
			links, err := tx.ListLinksFrom(v.ID)
			if err != nil {
				return Projection{}, err
			}
			for _, l := range links {
				if !relTypePattern.MatchString(string(l.Type)) {
					return Projection{}, fmt.Errorf("graph: relation type %q is not a valid neo4j type", l.Type)
				}
				p.Links[l.Type] = append(p.Links[l.Type], map[string]any{
					"link_id":        l.ID,
					"from_id":        l.FromValueID,
					"to_id":          l.ToValueID,
					"to_root":        rootKey(library.RootRef{Kind: l.ToKind, UID: l.ToRootUID}),
					"target_version": l.TargetVersion.String(),
					"props_json":     jsonString(l.Props),
					"created_at":     formatTime(l.CreatedAt),
					"superseded_at":  formatTimePtr(l.SupersededAt),
					"synced_at":      synced,
				})
			}
		}
		edges, err := tx.ListEdges(ref)
		if err != nil {
			return Projection{}, err
		}
		library.SortEdges(edges)
		for _, e := range edges {
			p.Versions = append(p.Versions, map[string]any{
				"id":                 e.ID,
				"root":               key,
				"value_id":           e.ValueID,
				"version":            e.Version.String(),
				"major":              int64(e.Version.Major),
				"minor":              int64(e.Version.Minor),
				"status":             string(e.Status),
				"start_date":         formatTime(e.StartDate),
				"end_date":           formatTimePtr(e.EndDate),
				"author_id":          e.AuthorID,
				"change_description": e.ChangeDescription,
				"synced_at":          synced,
			})
		}
		ptrs, err := tx.GetPointers(ref)
		if err != nil {
			return Projection{}, err
		}
		for kind, valueID := range ptrs {
			if valueID == "" {
				continue
			}
			p.Pointers[kind] = append(p.Pointers[kind], map[string]any{"root": key, "value_id": valueID})
		}
	}
	for _, rows := range p.Pointers {
		sort.Slice(rows, func(i, j int) bool { return rows[i]["root"].(string) < rows[j]["root"].(string) })
	}
	return p, nil
}

// UpsertLibraryVersionGraph writes p, replacing the pointers and links of the
// projected roots.
func UpsertLibraryVersionGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, p Projection) error {
	if client == nil || client.Driver == nil || len(p.Roots) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	for _, q := range []string{
		`CREATE CONSTRAINT library_root_key_unique IF NOT EXISTS FOR (r:LibraryRoot) REQUIRE r.key IS UNIQUE`,
		`CREATE CONSTRAINT library_value_id_unique IF NOT EXISTS FOR (v:LibraryValue) REQUIRE v.id IS UNIQUE`,
	} {
		if res, err := session.Run(ctx, q, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	keys := make([]string, 0, len(p.Roots))
	for _, r := range p.Roots {
		keys = append(keys, r["key"].(string))
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		run := func(q string, params map[string]any) error {
			res, err := tx.Run(ctx, q, params)
			if err != nil {
				return err
			}
			_, err = res.Consume(ctx)
			return err
		}

		if err := run(`
UNWIND $roots AS r
MERGE (n:LibraryRoot {key: r.key})
SET n += r
`, map[string]any{"roots": p.Roots}); err != nil {
			return nil, err
		}
		if len(p.Values) > 0 {
			if err := run(`
UNWIND $values AS v
MERGE (n:LibraryValue {id: v.id})
SET n += v
`, map[string]any{"values": p.Values}); err != nil {
				return nil, err
			}
		}
		if len(p.Versions) > 0 {
			if err := run(`
UNWIND $edges AS e
MATCH (r:LibraryRoot {key: e.root})
MATCH (v:LibraryValue {id: e.value_id})
MERGE (r)-[x:HAS_VERSION {id: e.id}]->(v)
SET x.version = e.version,
    x.major = e.major,
    x.minor = e.minor,
    x.status = e.status,
    x.start_date = e.start_date,
    x.end_date = e.end_date,
    x.author_id = e.author_id,
    x.change_description = e.change_description,
    x.synced_at = e.synced_at
`, map[string]any{"edges": p.Versions}); err != nil {
				return nil, err
			}
		}

		// Pointers move and links are superseded or deleted; replace both.
		if err := run(`
UNWIND $keys AS k
MATCH (r:LibraryRoot {key: k})-[x:LATEST|LATEST_DRAFT|LATEST_FINAL|LATEST_RETIRED]->()
DELETE x
`, map[string]any{"keys": keys}); err != nil {
			return nil, err
		}
		if err := run(`
UNWIND $keys AS k
MATCH (:LibraryRoot {key: k})-[:HAS_VERSION]->(:LibraryValue)-[l]->(:LibraryValue)
WHERE l.link_id IS NOT NULL
DELETE l
`, map[string]any{"keys": keys}); err != nil {
			return nil, err
		}
		for _, kind := range []library.PointerKind{library.PointerLatest, library.PointerLatestDraft, library.PointerLatestFinal, library.PointerLatestRetired} {
			rows := p.Pointers[kind]
			if len(rows) == 0 {
				continue
			}
			q := fmt.Sprintf(`
UNWIND $rows AS p
MATCH (r:LibraryRoot {key: p.root})
MATCH (v:LibraryValue {id: p.value_id})
MERGE (r)-[:%s]->(v)
`, kind)
			if err := run(q, map[string]any{"rows": rows}); err != nil {
				return nil, err
			}
		}
		types := make([]string, 0, len(p.Links))
		for t := range p.Links {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			q := fmt.Sprintf(`
UNWIND $rows AS l
MATCH (a:LibraryValue {id: l.from_id})
MERGE (b:LibraryValue {id: l.to_id})
MERGE (a)-[x:%s {link_id: l.link_id}]->(b)
SET x.to_root = l.to_root,
    x.target_version = l.target_version,
    x.props_json = l.props_json,
    x.created_at = l.created_at,
    x.superseded_at = l.superseded_at,
    x.synced_at = l.synced_at
`, t)
			if err := run(q, map[string]any{"rows": p.Links[library.RelType(t)]}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// VersionProjector mirrors committed roots into neo4j. It is a no-op without
// a client.
type VersionProjector struct {
	Client  *neo4jdb.Client
	Store   graphstore.Store
	Log     *logger.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

func NewVersionProjector(client *neo4jdb.Client, store graphstore.Store, log *logger.Logger, metrics *observability.Metrics) *VersionProjector {
	if log == nil {
		log = logger.Nop()
	}
	return &VersionProjector{
		Client:  client,
		Store:   store,
		Log:     log.With("component", "VersionProjector"),
		Metrics: metrics,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *VersionProjector) Project(ctx context.Context, refs []library.RootRef) error {
	if p == nil || p.Client == nil || p.Client.Driver == nil || p.Store == nil || len(refs) == 0 {
		return nil
	}
	var proj Projection
	err := p.Store.View(ctx, func(tx graphstore.Tx) error {
		var err error
		proj, err = BuildProjection(tx, refs, p.Now())
		return err
	})
	if err == nil {
		err = UpsertLibraryVersionGraph(ctx, p.Client, p.Log, proj)
	}
	if err != nil {
		p.Metrics.IncProjection("failure")
		return fmt.Errorf("project %d roots: %w", len(refs), err)
	}
	p.Metrics.IncProjection("success")
	return nil
}
