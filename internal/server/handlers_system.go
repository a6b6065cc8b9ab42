package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/robfig/cron/v3"

	"github.com/geto-app/geto/internal/adb"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/templates"
	"github.com/geto-app/geto/internal/version"
)

// HealthResponse is served by /healthz.
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	Instance      string    `json:"instance,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

type devicesResponse struct {
	Devices []adb.Device `json:"devices"`
}

type packagesResponse struct {
	Source   string   `json:"source"`
	Packages []string `json:"packages"`
}

type cleanupResponse struct {
	DryRun          bool     `json:"dry_run"`
	RemovedPackages []string `json:"removed_packages"`
	RemovedEntries  int64    `json:"removed_entries"`
}

type templatesResponse struct {
	Templates []templates.Template `json:"templates"`
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	render.JSON(w, r, HealthResponse{
		Status:        "ok",
		Version:       version.String(),
		Instance:      s.opts.InstanceName,
		Timestamp:     now.UTC(),
		UptimeSeconds: now.Sub(s.started).Seconds(),
	})
}

func (s *APIServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.deps.Devices == nil {
		writeError(w, r, http.StatusServiceUnavailable, "device query unavailable")
		return
	}
	devices, err := s.deps.Devices.Devices(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	if devices == nil {
		devices = []adb.Device{}
	}
	render.JSON(w, r, devicesResponse{Devices: devices})
}

// handlePackages lists device packages. ?source=third_party restricts the
// listing to user-installed apps and ?source=configured lists the packages
// that own stored entries.
func (s *APIServer) handlePackages(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "device"
	}

	var (
		pkgs []string
		err  error
	)
	switch source {
	case "device", "third_party":
		if s.deps.Packages == nil {
			writeError(w, r, http.StatusServiceUnavailable, "package query unavailable")
			return
		}
		if source == "device" {
			pkgs, err = s.deps.Packages.InstalledPackages(r.Context())
		} else {
			pkgs, err = s.deps.Packages.ThirdPartyPackages(r.Context())
		}
		if err != nil {
			writeError(w, r, http.StatusBadGateway, err.Error())
			return
		}
	case "configured":
		if !s.requireEntries(w, r) {
			return
		}
		pkgs, err = s.deps.Entries.Packages(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
	default:
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown package source %q", source))
		return
	}

	if pkgs == nil {
		pkgs = []string{}
	}
	render.JSON(w, r, packagesResponse{Source: source, Packages: pkgs})
}

func (s *APIServer) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	if s.deps.Preferences == nil {
		writeError(w, r, http.StatusServiceUnavailable, "preferences unavailable")
		return
	}
	prefs, err := s.deps.Preferences.Preferences(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.JSON(w, r, prefs)
}

// handlePutPreferences merges the body over the stored preferences, so
// omitted fields keep their current value.
func (s *APIServer) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	if s.deps.Preferences == nil {
		writeError(w, r, http.StatusServiceUnavailable, "preferences unavailable")
		return
	}
	prefs, err := s.deps.Preferences.Preferences(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := render.DecodeJSON(r.Body, &prefs); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validatePreferences(prefs); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Preferences.SavePreferences(r.Context(), prefs); err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.JSON(w, r, prefs)
}

func validatePreferences(prefs domain.UserPreferences) error {
	switch prefs.Theme {
	case domain.ThemeSystem, domain.ThemeLight, domain.ThemeDark:
	default:
		return fmt.Errorf("unknown theme %q", prefs.Theme)
	}
	if prefs.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(prefs.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", prefs.CleanupSchedule, err)
		}
	}
	return nil
}

// handleCleanup runs the orphan sweep. ?dry_run=true only reports the
// packages that would be removed.
func (s *APIServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cleanup == nil {
		writeError(w, r, http.StatusServiceUnavailable, "cleanup unavailable")
		return
	}
	if r.URL.Query().Get("dry_run") == "true" {
		orphans, err := s.deps.Cleanup.Orphans(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if orphans == nil {
			orphans = []string{}
		}
		render.JSON(w, r, cleanupResponse{DryRun: true, RemovedPackages: orphans})
		return
	}

	report, err := s.deps.Cleanup.Run(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	removed := report.RemovedPackages
	if removed == nil {
		removed = []string{}
	}
	render.JSON(w, r, cleanupResponse{RemovedPackages: removed, RemovedEntries: report.RemovedEntries})
}

func (s *APIServer) handleTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Templates()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	render.JSON(w, r, templatesResponse{Templates: list})
}

func (s *APIServer) findTemplate(id string) (templates.Template, bool, error) {
	list, err := s.deps.Templates()
	if err != nil {
		return templates.Template{}, false, err
	}
	for _, tpl := range list {
		if tpl.ID == id {
			return tpl, true, nil
		}
	}
	return templates.Template{}, false, nil
}
