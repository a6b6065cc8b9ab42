package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geto-app/geto/internal/adb"
	"github.com/geto-app/geto/internal/config"
	configstore "github.com/geto-app/geto/internal/config/store"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/eventbus"
	"github.com/geto-app/geto/internal/testutil"
	"github.com/geto-app/geto/internal/usecase"
)

type stubRunner struct {
	mu    sync.Mutex
	calls []string
}

func (r *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	call := strings.Join(args, " ")
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	switch {
	case call == "devices -l":
		return []byte("List of devices attached\nemulator-5554 device product:sdk model:Pixel_7 device:emu\n"), nil
	case strings.HasPrefix(call, "shell pm list packages"):
		return []byte("package:com.example.game\n"), nil
	}
	return nil, nil
}

func startDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())

	store, cleanup := testutil.OpenStore(t)
	t.Cleanup(cleanup)
	return runDaemon(t, store)
}

// startDaemonWithClock drives the store's change polling with a fake clock.
func startDaemonWithClock(t *testing.T) (*Daemon, *clockwork.FakeClock) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())

	clock := clockwork.NewFakeClock()
	store, err := configstore.Open(configstore.Options{
		DBPath: filepath.Join(t.TempDir(), "geto.db"),
		Clock:  clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	d, _ := runDaemon(t, store)
	return d, clock
}

func runDaemon(t *testing.T, store *configstore.Store) (*Daemon, string) {
	t.Helper()
	d, err := New(Options{
		Store:  store,
		ADB:    adb.New(adb.Options{Binary: "adb", Runner: &stubRunner{}}),
		Listen: "127.0.0.1:0",
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Start() }()
	t.Cleanup(func() {
		_ = d.Shutdown()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	var base string
	require.Eventually(t, func() bool {
		addr := d.APIServer().Addr()
		if strings.HasSuffix(addr, ":0") {
			return false
		}
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		base = "http://" + addr
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	return d, base
}

func TestDaemonServesAPIAndWritesPIDFile(t *testing.T) {
	d, base := startDaemon(t)

	pid, running := IsRunning(d.store.InstanceName())
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	addr, err := d.store.DaemonAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base, "http://"+addr)

	resp, err := http.Get(base + "/v1/devices")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Devices []adb.Device `json:"devices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Devices, 1)
	assert.Equal(t, "emulator-5554", body.Devices[0].Serial)

	metrics, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestDaemonApplyWithNoEntriesPublishesResult(t *testing.T) {
	_, base := startDaemon(t)

	resp, err := http.Post(base+"/v1/packages/com.example.game/apply", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/v1/results/apply")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Outcome domain.Outcome `json:"outcome"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, domain.OutcomeEmptyEntrySet, result.Outcome)
}

func TestDaemonReschedulesCleanupOnPreferenceChange(t *testing.T) {
	d, clock := startDaemonWithClock(t)
	assert.Equal(t, domain.DefaultCleanupSchedule, d.CleanupSchedule())

	// Wait for the config watcher ticker before writing.
	clock.BlockUntil(1)

	ctx := context.Background()
	prefs, err := d.store.Preferences(ctx)
	require.NoError(t, err)
	prefs.CleanupSchedule = "@every 1h"
	require.NoError(t, d.store.SavePreferences(ctx, prefs))

	clock.Advance(configWatchInterval)
	require.Eventually(t, func() bool {
		return d.CleanupSchedule() == "@every 1h"
	}, 5*time.Second, 20*time.Millisecond)

	prefs.CleanupSchedule = ""
	require.NoError(t, d.store.SavePreferences(ctx, prefs))

	clock.BlockUntil(1)
	clock.Advance(configWatchInterval)
	require.Eventually(t, func() bool {
		return d.CleanupSchedule() == ""
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

// --- cleanup scheduler ---

type stubCleanup struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (s *stubCleanup) Run(ctx context.Context) (usecase.CleanupReport, error) {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	return usecase.CleanupReport{RemovedPackages: []string{"com.example.gone"}, RemovedEntries: 2}, s.err
}

func (s *stubCleanup) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

type stubPrefs struct {
	prefs domain.UserPreferences
	err   error
}

func (p *stubPrefs) Preferences(context.Context) (domain.UserPreferences, error) {
	return p.prefs, p.err
}

func (p *stubPrefs) SavePreferences(_ context.Context, prefs domain.UserPreferences) error {
	p.prefs = prefs
	return nil
}

func TestCleanupSchedulerDisabledWithEmptySchedule(t *testing.T) {
	runner := &stubCleanup{}
	sched := NewCleanupScheduler(runner, &stubPrefs{prefs: domain.UserPreferences{Theme: domain.ThemeSystem}})

	require.NoError(t, sched.Start(context.Background()))
	assert.Equal(t, "", sched.Schedule())
	require.NoError(t, sched.Shutdown(context.Background()))
	assert.Zero(t, runner.count())
}

func TestCleanupSchedulerRejectsInvalidSchedule(t *testing.T) {
	sched := NewCleanupScheduler(&stubCleanup{}, &stubPrefs{prefs: domain.UserPreferences{CleanupSchedule: "whenever"}})
	require.Error(t, sched.Start(context.Background()))
}

func TestCleanupSchedulerPropagatesPreferenceErrors(t *testing.T) {
	sched := NewCleanupScheduler(&stubCleanup{}, &stubPrefs{err: errors.New("db locked")})
	require.Error(t, sched.Start(context.Background()))
}

func TestCleanupSchedulerRunsOnSchedule(t *testing.T) {
	runner := &stubCleanup{}
	sched := NewCleanupScheduler(runner, &stubPrefs{prefs: domain.UserPreferences{CleanupSchedule: "@every 1s"}})

	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	require.Eventually(t, func() bool { return runner.count() > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestCleanupSchedulerRunOnceToleratesErrors(t *testing.T) {
	runner := &stubCleanup{err: usecase.ErrNoInstalledPackages}
	sched := NewCleanupScheduler(runner, &stubPrefs{})
	sched.runOnce()
	assert.Equal(t, 1, runner.count())
}

// --- result logger ---

func TestResultLoggerLogsResults(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()

	lines := make(chan string, 4)
	logger := newResultLogger(bus)
	logger.logf = func(format string, args ...any) {
		lines <- format
	}
	require.NoError(t, logger.Start(context.Background()))
	defer logger.Shutdown(context.Background())

	eventbus.Publish(context.Background(), bus, eventbus.Results.Apply, eventbus.SourceApply, eventbus.ResultEvent{
		UseCase: usecase.UseCaseApply,
		Package: "com.example.game",
		Outcome: domain.OutcomeSuccess,
	})
	eventbus.Publish(context.Background(), bus, eventbus.Cleanup.Completed, eventbus.SourceCleanup, eventbus.CleanupCompletedEvent{
		RemovedPackages: []string{"com.example.gone"},
		RemovedEntries:  1,
	})

	for i := 0; i < 2; i++ {
		select {
		case line := <-lines:
			assert.Contains(t, line, "[Results]")
		case <-time.After(2 * time.Second):
			t.Fatal("expected a log line")
		}
	}
}
