package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geto-app/geto/internal/adb"
	configstore "github.com/geto-app/geto/internal/config/store"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/eventbus"
	"github.com/geto-app/geto/internal/templates"
	"github.com/geto-app/geto/internal/usecase"
	"github.com/geto-app/geto/internal/version"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, deps Deps) *APIServer {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewFakeClockAt(testStart)
	}
	srv := NewAPIServer(deps, Options{InstanceName: "default", WatchInterval: 10 * time.Millisecond})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *APIServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// --- health ---

func TestHealthReportsVersionAndUptime(t *testing.T) {
	defer version.ForTesting("1.4.0")()
	clock := clockwork.NewFakeClockAt(testStart)
	srv := newTestServer(t, Deps{Clock: clock})
	clock.Advance(90 * time.Second)

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.4.0", resp.Version)
	assert.Equal(t, "default", resp.Instance)
	assert.InDelta(t, 90, resp.UptimeSeconds, 0.001)
}

// --- use case runs ---

func TestApplyReturnsOutcomeAndIntent(t *testing.T) {
	applier := &mockApplier{
		applyFn: func(_ context.Context, pkg string) (domain.ApplyResult, error) {
			assert.Equal(t, "com.example.game", pkg)
			return domain.ApplyResult{
				Outcome: domain.OutcomeSuccess,
				Intent:  &domain.LaunchIntent{Package: pkg, Component: pkg + "/.Main"},
			}, nil
		},
	}
	srv := newTestServer(t, Deps{Apply: applier})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunResponse](t, rec)
	assert.Equal(t, usecase.UseCaseApply, resp.UseCase)
	assert.Equal(t, domain.OutcomeSuccess, resp.Outcome)
	assert.Equal(t, "Settings applied successfully", resp.Message)
	require.NotNil(t, resp.Intent)
	assert.Equal(t, "com.example.game/.Main", resp.Intent.Component)
	assert.Empty(t, resp.Remediation)
}

func successfulApplier() *mockApplier {
	return &mockApplier{
		applyFn: func(_ context.Context, pkg string) (domain.ApplyResult, error) {
			return domain.ApplyResult{
				Outcome: domain.OutcomeSuccess,
				Intent:  &domain.LaunchIntent{Package: pkg, Component: pkg + "/.Main"},
			}, nil
		},
	}
}

func TestApplyFiresLaunchIntent(t *testing.T) {
	launcher := &mockLauncher{}
	srv := newTestServer(t, Deps{Apply: successfulApplier(), Launcher: launcher})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunResponse](t, rec)
	assert.True(t, resp.Launched)
	assert.Empty(t, resp.LaunchError)
	assert.Equal(t, []string{"com.example.game/.Main"}, launcher.components())
}

func TestApplyLaunchFalseSkipsIntent(t *testing.T) {
	launcher := &mockLauncher{}
	srv := newTestServer(t, Deps{Apply: successfulApplier(), Launcher: launcher})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/apply?launch=false", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunResponse](t, rec)
	assert.False(t, resp.Launched)
	require.NotNil(t, resp.Intent)
	assert.Empty(t, launcher.components())
}

func TestApplyLaunchFailureKeepsSuccess(t *testing.T) {
	launcher := &mockLauncher{err: errors.New("activity not found")}
	srv := newTestServer(t, Deps{Apply: successfulApplier(), Launcher: launcher})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunResponse](t, rec)
	assert.Equal(t, domain.OutcomeSuccess, resp.Outcome)
	assert.False(t, resp.Launched)
	assert.Equal(t, "activity not found", resp.LaunchError)
}

func TestFailedApplyDoesNotLaunch(t *testing.T) {
	launcher := &mockLauncher{}
	applier := &mockApplier{
		applyFn: func(context.Context, string) (domain.ApplyResult, error) {
			return domain.ApplyResult{Outcome: domain.OutcomeFailure}, nil
		},
	}
	srv := newTestServer(t, Deps{Apply: applier, Launcher: launcher})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[RunResponse](t, rec).Launched)
	assert.Empty(t, launcher.components())
}

func TestAutoLaunchFiresIntentOnSuccess(t *testing.T) {
	launcher := &mockLauncher{}
	auto := &mockAutoLauncher{
		runFn: func(_ context.Context, pkg string) (domain.AutoLaunchResult, error) {
			return domain.AutoLaunchResult{
				Outcome: domain.OutcomeSuccess,
				Intent:  &domain.LaunchIntent{Package: pkg, Component: pkg + "/.Main"},
			}, nil
		},
	}
	srv := newTestServer(t, Deps{AutoLaunch: auto, Launcher: launcher})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/autolaunch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[RunResponse](t, rec).Launched)
	assert.Equal(t, []string{"com.example.game/.Main"}, launcher.components())
}

func TestApplyNoPermissionIncludesRemediation(t *testing.T) {
	applier := &mockApplier{
		applyFn: func(context.Context, string) (domain.ApplyResult, error) {
			return domain.ApplyResult{Outcome: domain.OutcomeNoPermission}, nil
		},
	}
	srv := newTestServer(t, Deps{Apply: applier, Permissions: mockPermissions{}})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunResponse](t, rec)
	assert.Equal(t, domain.OutcomeNoPermission, resp.Outcome)
	assert.Contains(t, resp.Remediation, "pm grant com.example.game")
}

func TestRevertUsesRevertMessage(t *testing.T) {
	srv := newTestServer(t, Deps{Revert: &mockReverter{}})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/revert", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunResponse](t, rec)
	assert.Equal(t, "Settings reverted successfully", resp.Message)
	assert.Nil(t, resp.Intent)
}

func TestAutoLaunchIgnoredHasNoMessage(t *testing.T) {
	srv := newTestServer(t, Deps{AutoLaunch: &mockAutoLauncher{}})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/autolaunch", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunResponse](t, rec)
	assert.Equal(t, domain.OutcomeIgnored, resp.Outcome)
	assert.Empty(t, resp.Message)
}

func TestRunStoreErrorIs500(t *testing.T) {
	applier := &mockApplier{
		applyFn: func(context.Context, string) (domain.ApplyResult, error) {
			return domain.ApplyResult{}, errors.New("disk I/O error")
		},
	}
	srv := newTestServer(t, Deps{Apply: applier})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/apply", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "disk I/O error")
}

func TestRunWithoutUseCaseIs503(t *testing.T) {
	srv := newTestServer(t, Deps{})
	for _, path := range []string{"apply", "revert", "autolaunch"} {
		rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/"+path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestMalformedPackageIs400(t *testing.T) {
	applier := &mockApplier{
		applyFn: func(context.Context, string) (domain.ApplyResult, error) {
			t.Fatal("apply must not run for a malformed package")
			return domain.ApplyResult{}, nil
		},
	}
	srv := newTestServer(t, Deps{Apply: applier})

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/v1/packages/com..game/apply"},
		{http.MethodPost, "/v1/packages/com.1game/entries"},
		{http.MethodGet, "/ws/packages/bad%20name/entries"},
	} {
		rec := do(t, srv, tc.method, tc.target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.target)
	}
}

// --- pending results ---

func publishResult(bus *eventbus.Bus, td eventbus.TopicDef[eventbus.ResultEvent], event eventbus.ResultEvent, id string) {
	eventbus.PublishWithOpts(context.Background(), bus, td, eventbus.SourceApply, event, eventbus.WithCorrelationID(id))
}

func TestTakeResultConsumesPendingOnce(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	srv := newTestServer(t, Deps{Bus: bus})

	publishResult(bus, eventbus.Results.Apply, eventbus.ResultEvent{
		UseCase:  usecase.UseCaseApply,
		Package:  "com.example.game",
		Outcome:  domain.OutcomeSuccess,
		Writes:   2,
		Duration: 1500 * time.Millisecond,
	}, "run-1")

	rec := do(t, srv, http.MethodGet, "/v1/results/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RunResponse](t, rec)
	assert.Equal(t, "run-1", resp.CorrelationID)
	assert.Equal(t, 2, resp.Writes)
	assert.Equal(t, int64(1500), resp.DurationMS)
	assert.NotNil(t, resp.CompletedAt)

	rec = do(t, srv, http.MethodGet, "/v1/results/apply", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTakeResultKeepsNewestOnly(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	srv := newTestServer(t, Deps{Bus: bus})

	publishResult(bus, eventbus.Results.Revert, eventbus.ResultEvent{UseCase: usecase.UseCaseRevert, Outcome: domain.OutcomeFailure}, "old")
	publishResult(bus, eventbus.Results.Revert, eventbus.ResultEvent{UseCase: usecase.UseCaseRevert, Outcome: domain.OutcomeSuccess}, "new")

	rec := do(t, srv, http.MethodGet, "/v1/results/revert", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RunResponse](t, rec)
	assert.Equal(t, "new", resp.CorrelationID)
	assert.Equal(t, domain.OutcomeSuccess, resp.Outcome)
	assert.Equal(t, "Settings reverted successfully", resp.Message)

	rec = do(t, srv, http.MethodGet, "/v1/results/revert", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTakeResultTopicsAreIndependent(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	srv := newTestServer(t, Deps{Bus: bus})

	publishResult(bus, eventbus.Results.AutoLaunch, eventbus.ResultEvent{UseCase: usecase.UseCaseAutoLaunch, Outcome: domain.OutcomeIgnored}, "auto")

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodGet, "/v1/results/apply", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/results/autolaunch", "").Code)
}

func TestTakeResultUnknownUseCase(t *testing.T) {
	srv := newTestServer(t, Deps{Bus: eventbus.New()})
	rec := do(t, srv, http.MethodGet, "/v1/results/explode", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- entries ---

func TestListEntriesEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, Deps{Entries: &mockEntryManager{}})

	rec := do(t, srv, http.MethodGet, "/v1/packages/com.example.game/entries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"package":"com.example.game","entries":[]}`, rec.Body.String())
}

func TestAddEntryFromBody(t *testing.T) {
	var got domain.SettingEntry
	entries := &mockEntryManager{
		addFn: func(_ context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
			got = entry
			entry.ID = 9
			return entry, nil
		},
	}
	srv := newTestServer(t, Deps{Entries: entries})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/entries",
		`{"label":"Touches","scope":"SYSTEM","key":"show_touches","value_on_launch":"1","value_on_revert":"0"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "com.example.game", got.Package)
	assert.Equal(t, domain.ScopeSystem, got.Scope)
	assert.True(t, got.Enabled)
	assert.Equal(t, int64(9), decode[domain.SettingEntry](t, rec).ID)
}

func TestAddEntryFromTemplate(t *testing.T) {
	var got domain.SettingEntry
	entries := &mockEntryManager{
		addFn: func(_ context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
			got = entry
			return entry, nil
		},
	}
	tpl := templates.Template{ID: "touches", Label: "Show touches", Scope: domain.ScopeSystem, Key: "show_touches", ValueOnLaunch: "1", ValueOnRevert: "0"}
	srv := newTestServer(t, Deps{
		Entries:   entries,
		Templates: func() ([]templates.Template, error) { return []templates.Template{tpl}, nil },
	})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/entries", `{"template":"touches","value_on_revert":"1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "show_touches", got.Key)
	assert.Equal(t, "1", got.ValueOnLaunch)
	assert.Equal(t, "1", got.ValueOnRevert)

	rec = do(t, srv, http.MethodPost, "/v1/packages/com.example.game/entries", `{"template":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddEntryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		code int
	}{
		{"bad scope", nil, `{"scope":"vendor","key":"k"}`, http.StatusBadRequest},
		{"bad json", nil, `{`, http.StatusBadRequest},
		{"invalid entry", domain.ErrInvalidEntry, `{"scope":"system"}`, http.StatusBadRequest},
		{"read only", configstore.ErrReadOnly, `{"scope":"system","key":"k"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := &mockEntryManager{
				addFn: func(_ context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
					return domain.SettingEntry{}, tt.err
				},
			}
			srv := newTestServer(t, Deps{Entries: entries})
			rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.game/entries", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestAddEntryPackageNotInstalledCarriesSuggestions(t *testing.T) {
	entries := &mockEntryManager{
		addFn: func(context.Context, domain.SettingEntry) (domain.SettingEntry, error) {
			return domain.SettingEntry{}, &usecase.PackageNotInstalledError{Package: "com.example.gmae", Suggestions: []string{"com.example.game"}}
		},
	}
	srv := newTestServer(t, Deps{Entries: entries})

	rec := do(t, srv, http.MethodPost, "/v1/packages/com.example.gmae/entries", `{"scope":"system","key":"k"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"com.example.game"}, decode[ErrorResponse](t, rec).Suggestions)
}

func TestUpdateEntryOverlaysStoredEntry(t *testing.T) {
	stored := domain.SettingEntry{ID: 4, Package: "com.example.game", Scope: domain.ScopeGlobal, Key: "k", ValueOnLaunch: "1", ValueOnRevert: "0", Enabled: true}
	var got domain.SettingEntry
	entries := &mockEntryManager{
		getFn: func(_ context.Context, id int64) (domain.SettingEntry, error) {
			assert.Equal(t, int64(4), id)
			return stored, nil
		},
		updateFn: func(_ context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
			got = entry
			return entry, nil
		},
	}
	srv := newTestServer(t, Deps{Entries: entries})

	rec := do(t, srv, http.MethodPut, "/v1/entries/4", `{"value_on_launch":"2","enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", got.ValueOnLaunch)
	assert.Equal(t, "0", got.ValueOnRevert)
	assert.False(t, got.Enabled)
	assert.Equal(t, domain.ScopeGlobal, got.Scope)
}

func TestUpdateEntryScopeChangeRejected(t *testing.T) {
	entries := &mockEntryManager{
		updateFn: func(context.Context, domain.SettingEntry) (domain.SettingEntry, error) {
			return domain.SettingEntry{}, configstore.ErrScopeImmutable
		},
	}
	srv := newTestServer(t, Deps{Entries: entries})

	rec := do(t, srv, http.MethodPut, "/v1/entries/4", `{"scope":"secure"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEntryIDValidation(t *testing.T) {
	srv := newTestServer(t, Deps{Entries: &mockEntryManager{}})
	for _, id := range []string{"abc", "0", "-3"} {
		rec := do(t, srv, http.MethodDelete, "/v1/entries/"+id, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}

func TestToggleAndDeleteEntry(t *testing.T) {
	var deleted int64
	entries := &mockEntryManager{
		deleteFn: func(_ context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	srv := newTestServer(t, Deps{Entries: entries})

	rec := do(t, srv, http.MethodPost, "/v1/entries/7/toggle", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.SettingEntry](t, rec).Enabled)

	rec = do(t, srv, http.MethodDelete, "/v1/entries/7", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(7), deleted)
}

func TestDeleteMissingEntryIs404(t *testing.T) {
	entries := &mockEntryManager{
		deleteFn: func(context.Context, int64) error {
			return configstore.NotFoundError{Entity: "setting entry", Key: "7"}
		},
	}
	srv := newTestServer(t, Deps{Entries: entries})

	rec := do(t, srv, http.MethodDelete, "/v1/entries/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- system ---

func TestDevicesAndPackages(t *testing.T) {
	srv := newTestServer(t, Deps{
		Devices:  &mockDevices{devices: []adb.Device{{Serial: "emulator-5554", State: "device"}}},
		Packages: &mockPackages{installed: []string{"android", "com.example.game"}, thirdParty: []string{"com.example.game"}},
		Entries: &mockEntryManager{packagesFn: func(context.Context) ([]string, error) {
			return []string{"com.example.stale"}, nil
		}},
	})

	rec := do(t, srv, http.MethodGet, "/v1/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "emulator-5554")

	rec = do(t, srv, http.MethodGet, "/v1/packages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"source":"device","packages":["android","com.example.game"]}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/packages?source=third_party", "")
	assert.JSONEq(t, `{"source":"third_party","packages":["com.example.game"]}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/packages?source=configured", "")
	assert.JSONEq(t, `{"source":"configured","packages":["com.example.stale"]}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/packages?source=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevicesAdbFailureIs502(t *testing.T) {
	srv := newTestServer(t, Deps{Devices: &mockDevices{err: errors.New("adb: not found")}})
	rec := do(t, srv, http.MethodGet, "/v1/devices", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPreferencesMergeAndValidate(t *testing.T) {
	prefs := &mockPreferences{prefs: domain.DefaultPreferences()}
	srv := newTestServer(t, Deps{Preferences: prefs})

	rec := do(t, srv, http.MethodPut, "/v1/preferences", `{"use_auto_launch":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, prefs.saved, 1)
	assert.True(t, prefs.saved[0].UseAutoLaunch)
	assert.Equal(t, domain.ThemeSystem, prefs.saved[0].Theme)
	assert.Equal(t, domain.DefaultCleanupSchedule, prefs.saved[0].CleanupSchedule)

	rec = do(t, srv, http.MethodPut, "/v1/preferences", `{"theme":"neon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, "/v1/preferences", `{"cleanup_schedule":"every tuesday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, prefs.saved, 1)

	rec = do(t, srv, http.MethodGet, "/v1/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.UserPreferences](t, rec).UseAutoLaunch)
}

func TestCleanupDryRunAndRun(t *testing.T) {
	cleaner := &mockCleaner{
		orphansFn: func(context.Context) ([]string, error) { return []string{"com.example.gone"}, nil },
		runFn: func(context.Context) (usecase.CleanupReport, error) {
			return usecase.CleanupReport{RemovedPackages: []string{"com.example.gone"}, RemovedEntries: 3}, nil
		},
	}
	srv := newTestServer(t, Deps{Cleanup: cleaner})

	rec := do(t, srv, http.MethodPost, "/v1/cleanup?dry_run=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dry_run":true,"removed_packages":["com.example.gone"],"removed_entries":0}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/v1/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dry_run":false,"removed_packages":["com.example.gone"],"removed_entries":3}`, rec.Body.String())
}

func TestCleanupEmptyDeviceListingIsConflict(t *testing.T) {
	cleaner := &mockCleaner{
		runFn: func(context.Context) (usecase.CleanupReport, error) {
			return usecase.CleanupReport{}, usecase.ErrNoInstalledPackages
		},
	}
	srv := newTestServer(t, Deps{Cleanup: cleaner})
	rec := do(t, srv, http.MethodPost, "/v1/cleanup", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTemplatesEmbeddedCatalog(t *testing.T) {
	srv := newTestServer(t, Deps{})
	rec := do(t, srv, http.MethodGet, "/v1/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[templatesResponse](t, rec)
	assert.NotEmpty(t, resp.Templates)
}

func TestCORSAllowsLoopbackOnly(t *testing.T) {
	srv := newTestServer(t, Deps{Entries: &mockEntryManager{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/packages/com.example.game/entries", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/packages/com.example.game/entries", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- websocket ---

func TestEntryStreamPushesUpdates(t *testing.T) {
	updates := make(chan []domain.SettingEntry, 2)
	updates <- nil
	updates <- []domain.SettingEntry{{ID: 1, Package: "com.example.game", Scope: domain.ScopeSystem, Key: "k"}}

	entries := &mockEntryManager{
		watchFn: func(_ context.Context, pkg string, _ time.Duration) (<-chan []domain.SettingEntry, error) {
			assert.Equal(t, "com.example.game", pkg)
			return updates, nil
		},
	}
	srv := newTestServer(t, Deps{Entries: entries})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/packages/com.example.game/entries"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "entries", first.Type)
	assert.Empty(t, first.Entries)

	var second Message
	require.NoError(t, conn.ReadJSON(&second))
	require.Len(t, second.Entries, 1)
	assert.Equal(t, "k", second.Entries[0].Key)
}

func TestEntryStreamRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, Deps{Entries: &mockEntryManager{}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/packages/com.example.game/entries"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	srv := NewAPIServer(Deps{}, Options{Listen: "127.0.0.1:0"})
	require.NoError(t, srv.Start(context.Background()))
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Error(t, srv.Start(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
}
