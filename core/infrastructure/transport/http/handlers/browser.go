package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/domain/interfaces"
	"github.com/hyperterse/tablescope/core/infrastructure/transport/http/dto"
	"github.com/hyperterse/tablescope/core/infrastructure/transport/http/middleware"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// BrowserHandler serves the session, table and cache endpoints.
type BrowserHandler struct {
	*BaseHandler
	svc          interfaces.BrowserService
	cookieMaxAge int
}

func NewBrowserHandler(svc interfaces.BrowserService, cookieMaxAge int) *BrowserHandler {
	if cookieMaxAge <= 0 {
		cookieMaxAge = 3600
	}
	return &BrowserHandler{
		BaseHandler:  NewBaseHandler("http:browser"),
		svc:          svc,
		cookieMaxAge: cookieMaxAge,
	}
}

// pathParam returns the decoded value of a route parameter. chi routes on
// RawPath when the request carries one, and on the already decoded Path
// otherwise, so only the former needs unescaping.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// Session resolves the caller's token before running fn.
func (h *BrowserHandler) Session(fn func(w http.ResponseWriter, r *http.Request, token string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := SessionToken(r)
		if err != nil {
			h.WriteError(w, err)
			return
		}
		fn(w, r, token)
	}
}

func (h *BrowserHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	h.WriteSuccess(w, dto.HealthResponse{Success: true})
}

func (h *BrowserHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req dto.ConnectRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	res, err := h.svc.Connect(r.Context(), req.Descriptor())
	if err != nil {
		h.WriteError(w, err)
		return
	}
	setSessionCookie(w, res.SessionID, h.cookieMaxAge)
	h.WriteSuccess(w, res)
}

func (h *BrowserHandler) Reconnect(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Reconnect(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	setSessionCookie(w, res.SessionID, h.cookieMaxAge)
	h.WriteSuccess(w, res)
}

func (h *BrowserHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "session_id")
	n, err := h.svc.Disconnect(r.Context(), token)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	clearSessionCookie(w)
	h.WriteSuccess(w, dto.DisconnectResponse{
		Message:             "Successfully disconnected from database",
		SessionID:           token,
		CacheEntriesCleared: n,
	})
}

func (h *BrowserHandler) ConnectionInfo(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "session_id")
	desc, err := h.svc.ConnectionInfo(r.Context(), token)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.ConnectionInfoResponse{
		SessionID: token,
		Server:    desc.Server,
		Database:  desc.Database,
		User:      desc.User,
		Port:      desc.Port,
		DBType:    desc.Kind,
	})
}

func (h *BrowserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.svc.Sessions(r.Context())
	if err != nil {
		h.WriteError(w, err)
		return
	}
	if tokens == nil {
		tokens = []string{}
	}
	h.WriteSuccess(w, dto.SessionsResponse{ActiveSessions: tokens})
}

func (h *BrowserHandler) DropSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "session_id")
	deleted, err := h.svc.DropSession(r.Context(), token)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.DropSessionResponse{
		Message:           fmt.Sprintf("Force disconnected session %s", token),
		ConnectionDeleted: deleted,
	})
}

func (h *BrowserHandler) Tables(w http.ResponseWriter, r *http.Request, token string) {
	tables, err := h.svc.Tables(r.Context(), token)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, tables)
}

func (h *BrowserHandler) Columns(w http.ResponseWriter, r *http.Request, token string) {
	cols, err := h.svc.Columns(r.Context(), token, pathParam(r, "table"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.ColumnsResponse{Columns: cols})
}

func (h *BrowserHandler) Schema(w http.ResponseWriter, r *http.Request, token string) {
	table := pathParam(r, "table")
	cols, err := h.svc.Columns(r.Context(), token, table)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.SchemaResponse{TableName: table, Columns: cols})
}

func (h *BrowserHandler) Count(w http.ResponseWriter, r *http.Request, token string) {
	table := pathParam(r, "table")
	n, err := h.svc.Count(r.Context(), token, table)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.CountResponse{Table: table, Count: n})
}

func (h *BrowserHandler) Preview(w http.ResponseWriter, r *http.Request, token string) {
	records, err := h.svc.Preview(r.Context(), token, pathParam(r, "table"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, records)
}

// pageRequest reads page, page_size and repeated columns parameters.
func pageRequest(r *http.Request, table string) (domain.PageRequest, error) {
	q := r.URL.Query()
	req := domain.PageRequest{Table: table}
	for name, target := range map[string]*int{"page": &req.Page, "page_size": &req.PageSize} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, apperrors.ValidationFailed("%s must be an integer", name)
		}
		*target = n
	}
	for _, c := range q["columns"] {
		if c = strings.TrimSpace(c); c != "" {
			req.Columns = append(req.Columns, c)
		}
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return req, apperrors.ValidationFailed("%s", err.Error())
	}
	return req, nil
}

func (h *BrowserHandler) Records(w http.ResponseWriter, r *http.Request, token string) {
	req, err := pageRequest(r, pathParam(r, "table"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.writePage(w, r, token, req)
}

// SelectedRecords is the explicit projection route; it requires columns.
func (h *BrowserHandler) SelectedRecords(w http.ResponseWriter, r *http.Request, token string) {
	req, err := pageRequest(r, pathParam(r, "table"))
	if err != nil {
		h.WriteError(w, err)
		return
	}
	if !req.Projected() {
		h.WriteError(w, apperrors.ValidationFailed("at least one column is required"))
		return
	}
	h.writePage(w, r, token, req)
}

func (h *BrowserHandler) writePage(w http.ResponseWriter, r *http.Request, token string, req domain.PageRequest) {
	page, err := h.svc.Records(r.Context(), token, req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.RecordsResponse{
		Table:      req.Table,
		Columns:    req.Columns,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
		Records:    page.Records,
	})
}

func (h *BrowserHandler) Record(w http.ResponseWriter, r *http.Request, token string) {
	table, id := pathParam(r, "table"), pathParam(r, "id")
	rec, err := h.svc.Record(r.Context(), token, table, id)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.RecordResponse{Record: rec, Table: table, RecordID: id})
}

func (h *BrowserHandler) CreateRecord(w http.ResponseWriter, r *http.Request, token string) {
	table := pathParam(r, "table")
	var req dto.CreateRecordRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	id, err := h.svc.CreateRecord(r.Context(), token, table, req.Data)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.CreateRecordResponse{
		Success:  true,
		Message:  fmt.Sprintf("Successfully created new record in %s", table),
		RecordID: id,
	})
}

func (h *BrowserHandler) UpdateRecord(w http.ResponseWriter, r *http.Request, token string) {
	table, id := pathParam(r, "table"), pathParam(r, "id")
	var req dto.UpdateRecordRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	ok, err := h.svc.UpdateRecord(r.Context(), token, table, id, req.Column, req.Value)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	if !ok {
		h.WriteError(w, apperrors.WriteConflict(table, id))
		return
	}
	h.WriteSuccess(w, dto.MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully updated record %s", id),
	})
}

func (h *BrowserHandler) DeleteRecord(w http.ResponseWriter, r *http.Request, token string) {
	table, id := pathParam(r, "table"), pathParam(r, "id")
	ok, err := h.svc.DeleteRecord(r.Context(), token, table, id)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	if !ok {
		h.WriteError(w, apperrors.WriteConflict(table, id))
		return
	}
	h.WriteSuccess(w, dto.DeleteRecordResponse{
		Success:      true,
		Message:      fmt.Sprintf("Successfully deleted record %s", id),
		DeletedCount: 1,
	})
}

func (h *BrowserHandler) BulkDelete(w http.ResponseWriter, r *http.Request, token string) {
	table := pathParam(r, "table")
	var req dto.BulkDeleteRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	n, err := h.svc.BulkDelete(r.Context(), token, table, req.IDs())
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.DeleteRecordResponse{
		Success:      true,
		Message:      fmt.Sprintf("Successfully deleted %d record(s)", n),
		DeletedCount: n,
	})
}

func (h *BrowserHandler) CacheStatus(w http.ResponseWriter, r *http.Request, token string) {
	status, err := h.svc.CacheStatus(r.Context(), token)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, status)
}

func (h *BrowserHandler) CacheHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.HealthResponse{Success: true, Cache: "ok"})
}

func (h *BrowserHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.CacheStats(r.Context())
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.CacheStatsResponse{Success: true, Stats: stats})
}

func (h *BrowserHandler) ClearSessionCache(w http.ResponseWriter, r *http.Request, token string) {
	n, err := h.svc.ClearSessionCache(r.Context(), token)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.ClearCacheResponse{
		Message:             "Session cache cleared",
		CacheEntriesCleared: n,
	})
}

func (h *BrowserHandler) ClearTableCache(w http.ResponseWriter, r *http.Request, token string) {
	table := pathParam(r, "table")
	n, err := h.svc.ClearTableCache(r.Context(), token, table)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteSuccess(w, dto.ClearCacheResponse{
		Message:             fmt.Sprintf("Cache cleared for table %s", table),
		CacheEntriesCleared: n,
	})
}
