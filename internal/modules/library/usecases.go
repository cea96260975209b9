package library

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domainagg "github.com/yungbote/mdr-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/modules/library/steps"
	"github.com/yungbote/mdr-backend/internal/observability"
	"github.com/yungbote/mdr-backend/internal/platform/ctxutil"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
	"github.com/yungbote/mdr-backend/internal/platform/rootlock"
)

// Engine is everything the usecases need from the versioned aggregate.
type Engine interface {
	domainagg.VersionedAggregate
	Exists(ctx context.Context, ref library.RootRef) (bool, error)
	Dependents(ctx context.Context, ref library.RootRef, rel library.RelType) ([]domainagg.DependentLink, error)
	StaleLinks(ctx context.Context, ref library.RootRef) ([]domainagg.StaleLink, error)
	Compact(ctx context.Context, ref library.RootRef) (int, error)
	SyncSequences(ctx context.Context) (map[library.Kind]int64, error)
}

type UsecasesDeps struct {
	Engine   Engine
	Registry *Registry
	// Locks guards cascades; nil disables cross-request locking.
	Locks   rootlock.Locker
	Log     *logger.Logger
	Metrics *observability.Metrics
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Registry == nil {
		deps.Registry = DefaultRegistry()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) Kinds() []library.Kind { return u.deps.Registry.Kinds() }

type AuditInput struct {
	AuthorID          string
	ChangeDescription string
	// ExpectedVersion, when set, must match the open version ("1.2").
	ExpectedVersion string
}

type CreateRequest struct {
	Kind  string
	UID   string
	Body  json.RawMessage
	Audit AuditInput
}

type EditRequest struct {
	Kind          string
	UID           string
	Body          json.RawMessage
	Audit         AuditInput
	ForceNewValue bool
	Disconnect    bool
}

type ApproveRequest struct {
	Kind    string
	UID     string
	Cascade bool
	Audit   AuditInput
}

type NewVersionRequest struct {
	Kind string
	UID  string
	// Body is optional; empty keeps the current content.
	Body       json.RawMessage
	Audit      AuditInput
	Disconnect bool
}

type ApproveResult struct {
	Item    any                  `json:"item"`
	Cascade *steps.CascadeReport `json:"cascade,omitempty"`
}

// GetQuery carries the raw point-in-time selectors of a read.
type GetQuery struct {
	Version        string
	AtSpecificDate string
	Status         string
}

type ListRequest struct {
	Status       string
	NameContains string
	Page         int
	PageSize     int
}

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

type ListResult struct {
	Items    []any `json:"items"`
	Total    int   `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

type HistoryEntry struct {
	Version           string         `json:"version"`
	Status            library.Status `json:"status"`
	StartDate         time.Time      `json:"start_date"`
	EndDate           *time.Time     `json:"end_date,omitempty"`
	AuthorID          string         `json:"author_id,omitempty"`
	ChangeDescription string         `json:"change_description,omitempty"`
}

type StaleLinkView struct {
	Type           library.RelType `json:"type"`
	TargetKind     library.Kind    `json:"target_kind"`
	TargetUID      string          `json:"target_uid"`
	LinkedVersion  string          `json:"linked_version"`
	CurrentVersion string          `json:"current_version"`
}

func validation(op, format string, args ...any) error {
	return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf(format, args...), nil)
}

func (u Usecases) codec(op, kind string) (Codec, error) {
	c, ok := u.deps.Registry.Lookup(kind)
	if !ok {
		return nil, domainagg.NotFound(op, "Unknown library kind '%s'.", strings.TrimSpace(kind))
	}
	return c, nil
}

func (u Usecases) audit(ctx context.Context, op string, in AuditInput) (domainagg.Audit, error) {
	a := domainagg.Audit{
		AuthorID:          strings.TrimSpace(in.AuthorID),
		ChangeDescription: strings.TrimSpace(in.ChangeDescription),
	}
	if a.AuthorID == "" {
		a.AuthorID = ctxutil.AuthorFrom(ctx)
	}
	if v := strings.TrimSpace(in.ExpectedVersion); v != "" {
		parsed, err := library.ParseVersion(v)
		if err != nil {
			return a, validation(op, "Invalid expected version '%s'.", v)
		}
		a.ExpectedVersion = &parsed
	}
	return a, nil
}

func (u Usecases) decode(op string, c Codec, raw json.RawMessage) (domainagg.Proposal, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return domainagg.Proposal{}, validation(op, "Request body is required.")
	}
	p, err := c.Decode(raw)
	if err != nil {
		return domainagg.Proposal{}, domainagg.NewError(domainagg.CodeValidation, op, "Invalid request body.", err)
	}
	return p, nil
}

// checkTerms rejects relation props naming CT terms that do not exist.
func (u Usecases) checkTerms(ctx context.Context, op string, p domainagg.Proposal) error {
	seen := map[string]bool{}
	for _, rel := range p.Relations {
		for _, uid := range propStrings(rel.Props, propCTTermUIDs) {
			if seen[uid] {
				continue
			}
			seen[uid] = true
			ok, err := u.deps.Engine.Exists(ctx, library.RootRef{Kind: KindCTTerm, UID: uid})
			if err != nil {
				return err
			}
			if !ok {
				return domainagg.NewError(domainagg.CodeBusinessRule, op,
					fmt.Sprintf("CT term with uid '%s' doesn't exist.", uid), nil)
			}
		}
	}
	return nil
}

func (u Usecases) Create(ctx context.Context, in CreateRequest) (any, error) {
	const op = "library.create"
	c, err := u.codec(op, in.Kind)
	if err != nil {
		return nil, err
	}
	p, err := u.decode(op, c, in.Body)
	if err != nil {
		return nil, err
	}
	if err := u.checkTerms(ctx, op, p); err != nil {
		return nil, err
	}
	a, err := u.audit(ctx, op, in.Audit)
	if err != nil {
		return nil, err
	}
	snap, err := u.deps.Engine.Create(ctx, domainagg.CreateInput{
		Kind:     c.ConceptKind(),
		UID:      strings.TrimSpace(in.UID),
		Proposal: p,
		Audit:    a,
	})
	if err != nil {
		return nil, err
	}
	return c.Encode(snap), nil
}

func (u Usecases) Edit(ctx context.Context, in EditRequest) (any, error) {
	const op = "library.edit"
	c, err := u.codec(op, in.Kind)
	if err != nil {
		return nil, err
	}
	p, err := u.decode(op, c, in.Body)
	if err != nil {
		return nil, err
	}
	if err := u.checkTerms(ctx, op, p); err != nil {
		return nil, err
	}
	p.ForceNewValue = in.ForceNewValue
	a, err := u.audit(ctx, op, in.Audit)
	if err != nil {
		return nil, err
	}
	snap, err := u.deps.Engine.EditDraft(ctx, domainagg.EditInput{
		Ref:        library.RootRef{Kind: c.ConceptKind(), UID: in.UID},
		Proposal:   p,
		Audit:      a,
		Disconnect: in.Disconnect,
	})
	if err != nil {
		return nil, err
	}
	return c.Encode(snap), nil
}

// Approve finalizes the Draft. With Cascade set on a grouping kind, Final
// dependents are refreshed level by level afterwards.
func (u Usecases) Approve(ctx context.Context, in ApproveRequest) (ApproveResult, error) {
	const op = "library.approve"
	c, err := u.codec(op, in.Kind)
	if err != nil {
		return ApproveResult{}, err
	}
	a, err := u.audit(ctx, op, in.Audit)
	if err != nil {
		return ApproveResult{}, err
	}
	ref := library.RootRef{Kind: c.ConceptKind(), UID: in.UID}
	cascade := in.Cascade && Cascades(ref.Kind)

	var before domainagg.Snapshot
	if cascade {
		final := library.StatusFinal
		before, err = u.deps.Engine.Find(ctx, ref, library.Query{Status: &final})
		if err != nil && !domainagg.IsCode(err, domainagg.CodeNotFound) {
			return ApproveResult{}, err
		}
	}
	snap, err := u.deps.Engine.Approve(ctx, domainagg.TransitionInput{Ref: ref, Audit: a})
	if err != nil {
		return ApproveResult{}, err
	}
	out := ApproveResult{Item: c.Encode(snap)}
	if !cascade {
		return out, nil
	}
	report, err := steps.Cascade(ctx, steps.CascadeDeps{
		Engine:  u.deps.Engine,
		Locks:   u.deps.Locks,
		Log:     u.deps.Log,
		Metrics: u.deps.Metrics,
		Steps:   CascadeLevels(),
	}, steps.CascadeInput{Before: before, After: snap, AuthorID: a.AuthorID})
	out.Cascade = &report
	if err != nil {
		return out, err
	}
	return out, nil
}

func (u Usecases) NewVersion(ctx context.Context, in NewVersionRequest) (any, error) {
	const op = "library.new_version"
	c, err := u.codec(op, in.Kind)
	if err != nil {
		return nil, err
	}
	a, err := u.audit(ctx, op, in.Audit)
	if err != nil {
		return nil, err
	}
	req := domainagg.NewVersionInput{
		Ref:        library.RootRef{Kind: c.ConceptKind(), UID: in.UID},
		Audit:      a,
		Disconnect: in.Disconnect,
	}
	if len(strings.TrimSpace(string(in.Body))) > 0 {
		p, err := u.decode(op, c, in.Body)
		if err != nil {
			return nil, err
		}
		if err := u.checkTerms(ctx, op, p); err != nil {
			return nil, err
		}
		req.Proposal = &p
	}
	snap, err := u.deps.Engine.NewVersion(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Encode(snap), nil
}

func (u Usecases) Inactivate(ctx context.Context, kind, uid string, in AuditInput) (any, error) {
	return u.simpleTransition(ctx, "library.inactivate", kind, uid, in, u.deps.Engine.Inactivate)
}

func (u Usecases) Reactivate(ctx context.Context, kind, uid string, in AuditInput) (any, error) {
	return u.simpleTransition(ctx, "library.reactivate", kind, uid, in, u.deps.Engine.Reactivate)
}

func (u Usecases) simpleTransition(ctx context.Context, op, kind, uid string, in AuditInput, fn transitionFunc) (any, error) {
	c, err := u.codec(op, kind)
	if err != nil {
		return nil, err
	}
	a, err := u.audit(ctx, op, in)
	if err != nil {
		return nil, err
	}
	snap, err := fn(ctx, domainagg.TransitionInput{
		Ref:   library.RootRef{Kind: c.ConceptKind(), UID: uid},
		Audit: a,
	})
	if err != nil {
		return nil, err
	}
	return c.Encode(snap), nil
}

// ParseQuery turns raw selectors into a point-in-time query. Dates accept
// RFC3339 or a bare YYYY-MM-DD (midnight UTC).
func ParseQuery(raw GetQuery) (library.Query, error) {
	const op = "library.get"
	var q library.Query
	if s := strings.TrimSpace(raw.Version); s != "" {
		v, err := library.ParseVersion(s)
		if err != nil {
			return q, validation(op, "Invalid version '%s'.", s)
		}
		q.Version = &v
	}
	if s := strings.TrimSpace(raw.AtSpecificDate); s != "" {
		t, err := parseInstant(s)
		if err != nil {
			return q, validation(op, "Invalid at_specific_date '%s'.", s)
		}
		q.At = &t
	}
	if s := strings.TrimSpace(raw.Status); s != "" {
		st, ok := library.ParseStatus(s)
		if !ok {
			return q, validation(op, "Invalid status '%s'.", s)
		}
		q.Status = &st
	}
	return q, nil
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (u Usecases) Get(ctx context.Context, kind, uid string, raw GetQuery) (any, error) {
	c, err := u.codec("library.get", kind)
	if err != nil {
		return nil, err
	}
	q, err := ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	snap, err := u.deps.Engine.Find(ctx, library.RootRef{Kind: c.ConceptKind(), UID: uid}, q)
	if err != nil {
		return nil, err
	}
	return c.Encode(snap), nil
}

func (u Usecases) List(ctx context.Context, kind string, in ListRequest) (ListResult, error) {
	const op = "library.list"
	c, err := u.codec(op, kind)
	if err != nil {
		return ListResult{}, err
	}
	q := library.ListQuery{NameContains: in.NameContains, Page: in.Page, PageSize: in.PageSize}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if s := strings.TrimSpace(in.Status); s != "" {
		st, ok := library.ParseStatus(s)
		if !ok {
			return ListResult{}, validation(op, "Invalid status '%s'.", s)
		}
		q.Status = &st
	}
	snaps, total, err := u.deps.Engine.List(ctx, c.ConceptKind(), q)
	if err != nil {
		return ListResult{}, err
	}
	out := ListResult{Items: make([]any, 0, len(snaps)), Total: total, Page: q.Page, PageSize: q.PageSize}
	for _, s := range snaps {
		out.Items = append(out.Items, c.Encode(s))
	}
	return out, nil
}

func (u Usecases) History(ctx context.Context, kind, uid string) ([]HistoryEntry, error) {
	c, err := u.codec("library.history", kind)
	if err != nil {
		return nil, err
	}
	edges, err := u.deps.Engine.History(ctx, library.RootRef{Kind: c.ConceptKind(), UID: uid})
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(edges))
	for _, e := range edges {
		out = append(out, HistoryEntry{
			Version:           e.Version.String(),
			Status:            e.Status,
			StartDate:         e.StartDate,
			EndDate:           e.EndDate,
			AuthorID:          e.AuthorID,
			ChangeDescription: e.ChangeDescription,
		})
	}
	return out, nil
}

func (u Usecases) StaleLinks(ctx context.Context, kind, uid string) ([]StaleLinkView, error) {
	c, err := u.codec("library.stale_links", kind)
	if err != nil {
		return nil, err
	}
	links, err := u.deps.Engine.StaleLinks(ctx, library.RootRef{Kind: c.ConceptKind(), UID: uid})
	if err != nil {
		return nil, err
	}
	out := make([]StaleLinkView, 0, len(links))
	for _, s := range links {
		out = append(out, StaleLinkView{
			Type:           s.Link.Type,
			TargetKind:     s.Link.ToKind,
			TargetUID:      s.Link.ToRootUID,
			LinkedVersion:  s.Link.TargetVersion.String(),
			CurrentVersion: s.CurrentVersion.String(),
		})
	}
	return out, nil
}

func (u Usecases) Compact(ctx context.Context, kind, uid string) (int, error) {
	c, err := u.codec("library.compact", kind)
	if err != nil {
		return 0, err
	}
	return u.deps.Engine.Compact(ctx, library.RootRef{Kind: c.ConceptKind(), UID: uid})
}

func (u Usecases) SyncUIDs(ctx context.Context) (map[library.Kind]int64, error) {
	return u.deps.Engine.SyncSequences(ctx)
}

// RootRefs lists every root of kind, uid order.
func (u Usecases) RootRefs(ctx context.Context, kind string) ([]library.RootRef, error) {
	c, err := u.codec("library.roots", kind)
	if err != nil {
		return nil, err
	}
	const pageSize = 1000
	var out []library.RootRef
	for page := 1; ; page++ {
		snaps, total, err := u.deps.Engine.List(ctx, c.ConceptKind(), library.ListQuery{Page: page, PageSize: pageSize})
		if err != nil {
			return nil, err
		}
		for _, s := range snaps {
			out = append(out, s.Ref())
		}
		if len(snaps) == 0 || len(out) >= total {
			return out, nil
		}
	}
}
