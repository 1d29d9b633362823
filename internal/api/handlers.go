package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/model"
	"github.com/openjustice/courtwatch/internal/store"
)

// Handler serves the read API.
type Handler struct {
	store store.Store
	log   *zap.Logger
}

func NewHandler(st store.Store, log *zap.Logger) *Handler {
	return &Handler{store: st, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.respondErr(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RegionFilter{
		Name: q.Get("name"),
		IDs:  int64List(q["id"]),
	}
	page := pageFromRequest(r)

	regions, total, err := h.store.ListRegions(r.Context(), f, page)
	if err != nil {
		h.fail(w, "list regions", err)
		return
	}
	regions, info := store.ResolvePage(regions, page, total, func(x model.Region) int64 { return x.ID })

	items := make([]regionDTO, 0, len(regions))
	for _, x := range regions {
		items = append(items, regionToDTO(x))
	}
	h.respond(w, http.StatusOK, listResponse{Pagination: paginationFromInfo(info), Items: items})
}

func (h *Handler) ListCourts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.CourtFilter{
		Name:      q.Get("name"),
		IDs:       int64List(q["id"]),
		RegionIDs: int64List(q["region"]),
	}
	page := pageFromRequest(r)

	courts, total, err := h.store.ListCourts(r.Context(), f, page)
	if err != nil {
		h.fail(w, "list courts", err)
		return
	}
	courts, info := store.ResolvePage(courts, page, total, func(x model.Court) int64 { return x.ID })

	items := make([]courtDTO, 0, len(courts))
	for _, x := range courts {
		items = append(items, courtToDTO(x))
	}
	h.respond(w, http.StatusOK, listResponse{Pagination: paginationFromInfo(info), Items: items})
}

func (h *Handler) GetCourt(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	court, err := h.store.GetCourt(r.Context(), id)
	if err != nil {
		h.fail(w, "get court", err)
		return
	}
	if court == nil {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	h.respond(w, http.StatusOK, courtToDTO(*court))
}

func (h *Handler) CourtHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	court, err := h.store.GetCourt(r.Context(), id)
	if err != nil {
		h.fail(w, "get court", err)
		return
	}
	if court == nil {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	h.listLogs(w, r, store.LogFilter{CourtID: &id}, true)
}

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.CaseFilter{
		Defendants:    q["defendant"],
		Judges:        q["judge"],
		Articles:      q["article"],
		CourtIDs:      int64List(q["court"]),
		RegionIDs:     int64List(q["region"]),
		EntryFrom:     dateParam(q.Get("from")),
		EntryTo:       dateParam(q.Get("to")),
		ResultFrom:    dateParam(q.Get("rfrom")),
		ResultTo:      dateParam(q.Get("rto")),
		EffectiveFrom: dateParam(q.Get("ecfrom")),
		EffectiveTo:   dateParam(q.Get("ecto")),
	}
	page := pageFromRequest(r)

	cases, total, err := h.store.ListCases(r.Context(), f, page)
	if err != nil {
		h.fail(w, "list cases", err)
		return
	}
	cases, info := store.ResolvePage(cases, page, total, func(x model.Case) int64 { return x.ID })

	items := make([]caseDTO, 0, len(cases))
	for _, x := range cases {
		items = append(items, caseToDTO(x))
	}
	h.respond(w, http.StatusOK, listResponse{Pagination: paginationFromInfo(info), Items: items})
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	c, err := h.store.GetCase(r.Context(), id)
	if err != nil {
		h.fail(w, "get case", err)
		return
	}
	if c == nil {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	h.respond(w, http.StatusOK, caseToDTO(*c))
}

func (h *Handler) CaseHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	c, err := h.store.GetCase(r.Context(), id)
	if err != nil {
		h.fail(w, "get case", err)
		return
	}
	if c == nil {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	h.listLogs(w, r, store.LogFilter{CaseID: &id}, false)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(r)
	sessions, total, err := h.store.ListSessions(r.Context(), page)
	if err != nil {
		h.fail(w, "list sessions", err)
		return
	}
	sessions, info := store.ResolvePage(sessions, page, total, func(x model.ScrapeSession) int64 { return x.ID })

	items := make([]sessionDTO, 0, len(sessions))
	for _, x := range sessions {
		items = append(items, sessionToDTO(x))
	}
	h.respond(w, http.StatusOK, listResponse{Pagination: paginationFromInfo(info), Items: items})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	s, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		h.fail(w, "get session", err)
		return
	}
	if s == nil {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	h.respond(w, http.StatusOK, sessionToDTO(*s))
}

func (h *Handler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	s, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		h.fail(w, "get session", err)
		return
	}
	if s == nil {
		h.respondErr(w, http.StatusNotFound, "not found")
		return
	}
	h.listLogs(w, r, store.LogFilter{SessionID: &id}, true)
}

// listLogs pages the audit log under a filter, optionally hydrating the
// referenced cases.
func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request, f store.LogFilter, withCase bool) {
	page := pageFromRequest(r)
	logs, total, err := h.store.ListLogs(r.Context(), f, page)
	if err != nil {
		h.fail(w, "list logs", err)
		return
	}
	logs, info := store.ResolvePage(logs, page, total, func(x model.ScrapeLog) int64 { return x.ID })

	cases := map[int64]*model.Case{}
	if withCase {
		for _, l := range logs {
			if _, ok := cases[l.CaseID]; ok {
				continue
			}
			c, err := h.store.GetCase(r.Context(), l.CaseID)
			if err != nil {
				h.fail(w, "hydrate log case", err)
				return
			}
			cases[l.CaseID] = c
		}
	}

	items := make([]logDTO, 0, len(logs))
	for _, l := range logs {
		items = append(items, logToDTO(l, cases[l.CaseID]))
	}
	h.respond(w, http.StatusOK, listResponse{Pagination: paginationFromInfo(info), Items: items})
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, status int, msg string) {
	h.respond(w, status, map[string]string{"error": msg})
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.log.Error(action, zap.Error(err))
	h.respondErr(w, http.StatusInternalServerError, "internal error")
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func int64List(values []string) []int64 {
	var out []int64
	for _, v := range values {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func dateParam(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		return nil
	}
	return &t
}
