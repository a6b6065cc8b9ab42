package server

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/usecase"
)

// RunResponse is returned by the apply, revert and auto-launch endpoints and
// by the pending-result endpoint.
type RunResponse struct {
	UseCase       string               `json:"use_case"`
	Package       string               `json:"package"`
	Outcome       domain.Outcome       `json:"outcome"`
	Message       string               `json:"message,omitempty"`
	Intent        *domain.LaunchIntent `json:"intent,omitempty"`
	Launched      bool                 `json:"launched"`
	LaunchError   string               `json:"launch_error,omitempty"`
	Remediation   string               `json:"remediation,omitempty"`
	CorrelationID string               `json:"correlation_id,omitempty"`
	Writes        int                  `json:"writes,omitempty"`
	DurationMS    int64                `json:"duration_ms,omitempty"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
}

func (s *APIServer) runResponse(useCase, pkg string, outcome domain.Outcome, intent *domain.LaunchIntent) RunResponse {
	resp := RunResponse{
		UseCase: useCase,
		Package: pkg,
		Outcome: outcome,
		Message: outcomeMessage(useCase, outcome),
		Intent:  intent,
	}
	if outcome == domain.OutcomeNoPermission && s.deps.Permissions != nil {
		resp.Remediation = s.deps.Permissions.PermissionGrantCommand(pkg)
	}
	return resp
}

func outcomeMessage(useCase string, outcome domain.Outcome) string {
	if useCase == usecase.UseCaseRevert {
		return domain.RevertResult{Outcome: outcome}.Message()
	}
	return outcome.Message()
}

// launch fires the intent of a successful run unless the request carries
// launch=false. A launch failure is reported in the body; the settings stay
// written.
func (s *APIServer) launch(r *http.Request, resp *RunResponse) {
	if resp.Outcome != domain.OutcomeSuccess || resp.Intent == nil || s.deps.Launcher == nil {
		return
	}
	if v := r.URL.Query().Get("launch"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil && !enabled {
			return
		}
	}
	if err := s.deps.Launcher.Launch(r.Context(), *resp.Intent); err != nil {
		log.Printf("[APIServer] launch %s: %v", resp.Intent.Component, err)
		resp.LaunchError = err.Error()
		return
	}
	resp.Launched = true
}

func packageParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "pkg"))
}

func (s *APIServer) handleApply(w http.ResponseWriter, r *http.Request) {
	if s.deps.Apply == nil {
		writeError(w, r, http.StatusServiceUnavailable, "apply unavailable")
		return
	}
	pkg := packageParam(r)
	result, err := s.deps.Apply.Apply(r.Context(), pkg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	resp := s.runResponse(usecase.UseCaseApply, pkg, result.Outcome, result.Intent)
	s.launch(r, &resp)
	render.JSON(w, r, resp)
}

func (s *APIServer) handleRevert(w http.ResponseWriter, r *http.Request) {
	if s.deps.Revert == nil {
		writeError(w, r, http.StatusServiceUnavailable, "revert unavailable")
		return
	}
	pkg := packageParam(r)
	result, err := s.deps.Revert.Revert(r.Context(), pkg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.JSON(w, r, s.runResponse(usecase.UseCaseRevert, pkg, result.Outcome, nil))
}

func (s *APIServer) handleAutoLaunch(w http.ResponseWriter, r *http.Request) {
	if s.deps.AutoLaunch == nil {
		writeError(w, r, http.StatusServiceUnavailable, "auto-launch unavailable")
		return
	}
	pkg := packageParam(r)
	result, err := s.deps.AutoLaunch.Run(r.Context(), pkg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	resp := s.runResponse(usecase.UseCaseAutoLaunch, pkg, result.Outcome, result.Intent)
	s.launch(r, &resp)
	render.JSON(w, r, resp)
}

func (s *APIServer) handleTakeResult(w http.ResponseWriter, r *http.Request) {
	useCase := chi.URLParam(r, "usecase")
	if !s.inbox.known(useCase) {
		writeError(w, r, http.StatusNotFound, "unknown use case "+useCase)
		return
	}
	pending, ok := s.inbox.take(useCase)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	event := pending.Event
	resp := s.runResponse(event.UseCase, event.Package, event.Outcome, event.Intent)
	resp.CorrelationID = pending.CorrelationID
	resp.Writes = event.Writes
	resp.DurationMS = event.Duration.Milliseconds()
	if !pending.Timestamp.IsZero() {
		ts := pending.Timestamp
		resp.CompletedAt = &ts
	}
	render.JSON(w, r, resp)
}
