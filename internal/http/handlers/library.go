package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mdr-backend/internal/domain/library"
	"github.com/yungbote/mdr-backend/internal/http/response"
	librarymod "github.com/yungbote/mdr-backend/internal/modules/library"
	"github.com/yungbote/mdr-backend/internal/platform/apierr"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

// LibraryService is the slice of the library usecases served over HTTP.
type LibraryService interface {
	Kinds() []library.Kind
	Create(ctx context.Context, in librarymod.CreateRequest) (any, error)
	Edit(ctx context.Context, in librarymod.EditRequest) (any, error)
	Approve(ctx context.Context, in librarymod.ApproveRequest) (librarymod.ApproveResult, error)
	NewVersion(ctx context.Context, in librarymod.NewVersionRequest) (any, error)
	Inactivate(ctx context.Context, kind, uid string, in librarymod.AuditInput) (any, error)
	Reactivate(ctx context.Context, kind, uid string, in librarymod.AuditInput) (any, error)
	Get(ctx context.Context, kind, uid string, q librarymod.GetQuery) (any, error)
	List(ctx context.Context, kind string, in librarymod.ListRequest) (librarymod.ListResult, error)
	History(ctx context.Context, kind, uid string) ([]librarymod.HistoryEntry, error)
	StaleLinks(ctx context.Context, kind, uid string) ([]librarymod.StaleLinkView, error)
}

type LibraryHandler struct {
	log     *logger.Logger
	library LibraryService
}

func NewLibraryHandler(log *logger.Logger, svc LibraryService) *LibraryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LibraryHandler{
		log:     log.With("handler", "LibraryHandler"),
		library: svc,
	}
}

const maxBodyBytes = 1 << 20

func readBody(c *gin.Context) (json.RawMessage, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func auditFrom(c *gin.Context) librarymod.AuditInput {
	return librarymod.AuditInput{
		ChangeDescription: c.Query("change_description"),
		ExpectedVersion:   c.Query("expected_version"),
	}
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return b
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	return n
}

// GET /api/library
func (h *LibraryHandler) ListKinds(c *gin.Context) {
	response.RespondOK(c, gin.H{"kinds": h.library.Kinds()})
}

// POST /api/library/:kind
func (h *LibraryHandler) Create(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	item, err := h.library.Create(c.Request.Context(), librarymod.CreateRequest{
		Kind:  c.Param("kind"),
		UID:   c.Query("uid"),
		Body:  body,
		Audit: auditFrom(c),
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, item)
}

// GET /api/library/:kind
func (h *LibraryHandler) List(c *gin.Context) {
	res, err := h.library.List(c.Request.Context(), c.Param("kind"), librarymod.ListRequest{
		Status:       c.Query("status"),
		NameContains: c.Query("name"),
		Page:         queryInt(c, "page"),
		PageSize:     queryInt(c, "page_size"),
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/library/:kind/:uid
func (h *LibraryHandler) Get(c *gin.Context) {
	item, err := h.library.Get(c.Request.Context(), c.Param("kind"), c.Param("uid"), librarymod.GetQuery{
		Version:        c.Query("version"),
		AtSpecificDate: c.Query("at_specific_date"),
		Status:         c.Query("status"),
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, item)
}

// PATCH /api/library/:kind/:uid
func (h *LibraryHandler) Edit(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	item, err := h.library.Edit(c.Request.Context(), librarymod.EditRequest{
		Kind:          c.Param("kind"),
		UID:           c.Param("uid"),
		Body:          body,
		Audit:         auditFrom(c),
		ForceNewValue: queryBool(c, "force_new_value"),
		Disconnect:    queryBool(c, "disconnect"),
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, item)
}

// POST /api/library/:kind/:uid/approvals?cascade=true
func (h *LibraryHandler) Approve(c *gin.Context) {
	res, err := h.library.Approve(c.Request.Context(), librarymod.ApproveRequest{
		Kind:    c.Param("kind"),
		UID:     c.Param("uid"),
		Cascade: queryBool(c, "cascade"),
		Audit:   auditFrom(c),
	})
	if err != nil && res.Item == nil {
		response.RespondErr(c, err)
		return
	}
	if err != nil {
		// The approval committed; only the cascade failed.
		h.log.Warn("cascade failed after approval", "kind", c.Param("kind"), "uid", c.Param("uid"), "error", err)
		ae := apierr.FromError(err)
		response.RespondOK(c, approveResponse{
			ApproveResult: res,
			CascadeError:  &response.APIError{Message: ae.Error(), Code: ae.Code},
		})
		return
	}
	response.RespondCreated(c, approveResponse{ApproveResult: res})
}

// approveResponse reports a committed approval. CascadeError is set when the
// dependents refresh failed afterwards; Cascade then holds the partial report.
type approveResponse struct {
	librarymod.ApproveResult
	CascadeError *response.APIError `json:"cascade_error,omitempty"`
}

// POST /api/library/:kind/:uid/versions
func (h *LibraryHandler) NewVersion(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	item, err := h.library.NewVersion(c.Request.Context(), librarymod.NewVersionRequest{
		Kind:       c.Param("kind"),
		UID:        c.Param("uid"),
		Body:       body,
		Audit:      auditFrom(c),
		Disconnect: queryBool(c, "disconnect"),
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, item)
}

// GET /api/library/:kind/:uid/versions
func (h *LibraryHandler) History(c *gin.Context) {
	entries, err := h.library.History(c.Request.Context(), c.Param("kind"), c.Param("uid"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": entries})
}

// DELETE /api/library/:kind/:uid/activations
func (h *LibraryHandler) Inactivate(c *gin.Context) {
	item, err := h.library.Inactivate(c.Request.Context(), c.Param("kind"), c.Param("uid"), auditFrom(c))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, item)
}

// POST /api/library/:kind/:uid/activations
func (h *LibraryHandler) Reactivate(c *gin.Context) {
	item, err := h.library.Reactivate(c.Request.Context(), c.Param("kind"), c.Param("uid"), auditFrom(c))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, item)
}

// GET /api/library/:kind/:uid/stale-links
func (h *LibraryHandler) StaleLinks(c *gin.Context) {
	links, err := h.library.StaleLinks(c.Request.Context(), c.Param("kind"), c.Param("uid"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stale_links": links})
}
