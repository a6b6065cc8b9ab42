package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/geto-app/geto/internal/domain"
)

// entryRequest is the body of entry create and update calls. A template id
// supplies defaults that explicit fields override.
type entryRequest struct {
	Template      string `json:"template,omitempty"`
	Label         string `json:"label"`
	Scope         string `json:"scope"`
	Key           string `json:"key"`
	ValueOnLaunch string `json:"value_on_launch"`
	ValueOnRevert string `json:"value_on_revert"`
	Enabled       *bool  `json:"enabled,omitempty"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type entriesResponse struct {
	Package string                `json:"package"`
	Entries []domain.SettingEntry `json:"entries"`
}

func (req entryRequest) overlay(base domain.SettingEntry) (domain.SettingEntry, error) {
	if req.Scope != "" {
		scope, err := domain.ParseScope(req.Scope)
		if err != nil {
			return domain.SettingEntry{}, err
		}
		base.Scope = scope
	}
	if req.Label != "" {
		base.Label = req.Label
	}
	if req.Key != "" {
		base.Key = strings.TrimSpace(req.Key)
	}
	if req.ValueOnLaunch != "" {
		base.ValueOnLaunch = req.ValueOnLaunch
	}
	if req.ValueOnRevert != "" {
		base.ValueOnRevert = req.ValueOnRevert
	}
	if req.Enabled != nil {
		base.Enabled = *req.Enabled
	}
	return base, nil
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid entry id "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}

func (s *APIServer) requireEntries(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Entries == nil {
		writeError(w, r, http.StatusServiceUnavailable, "entry store unavailable")
		return false
	}
	return true
}

func (s *APIServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	if !s.requireEntries(w, r) {
		return
	}
	pkg := packageParam(r)
	entries, err := s.deps.Entries.List(r.Context(), pkg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.SettingEntry{}
	}
	render.JSON(w, r, entriesResponse{Package: pkg, Entries: entries})
}

func (s *APIServer) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	if !s.requireEntries(w, r) {
		return
	}
	var req entryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pkg := packageParam(r)
	base := domain.SettingEntry{Package: pkg, Enabled: true}
	if req.Template != "" {
		tpl, ok, err := s.findTemplate(req.Template)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, http.StatusBadRequest, "unknown template "+strconv.Quote(req.Template))
			return
		}
		base = tpl.ToEntry(pkg)
	}

	entry, err := req.overlay(base)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	stored, err := s.deps.Entries.Add(r.Context(), entry)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, stored)
}

func (s *APIServer) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	if !s.requireEntries(w, r) {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	entry, err := s.deps.Entries.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

func (s *APIServer) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	if !s.requireEntries(w, r) {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	existing, err := s.deps.Entries.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	entry, err := req.overlay(existing)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	stored, err := s.deps.Entries.Update(r.Context(), entry)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.JSON(w, r, stored)
}

func (s *APIServer) handleToggleEntry(w http.ResponseWriter, r *http.Request) {
	if !s.requireEntries(w, r) {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	entry, err := s.deps.Entries.Toggle(r.Context(), id, req.Enabled)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

func (s *APIServer) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if !s.requireEntries(w, r) {
		return
	}
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Entries.Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
