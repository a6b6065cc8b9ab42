package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geto-app/geto/internal/domain"
)

// --- Mock implementations ---

type mockEntryRepo struct {
	mu      sync.Mutex
	entries []domain.SettingEntry
	nextID  int64

	entriesForPackageFn func(ctx context.Context, pkg string) ([]domain.SettingEntry, error)
	packagesFn          func(ctx context.Context) ([]string, error)
	deleteByPackagesFn  func(ctx context.Context, pkgs []string) (int64, error)
}

func newMockEntryRepo(entries ...domain.SettingEntry) *mockEntryRepo {
	m := &mockEntryRepo{}
	for _, e := range entries {
		m.nextID++
		if e.ID == 0 {
			e.ID = m.nextID
		}
		m.entries = append(m.entries, e)
	}
	return m
}

func (m *mockEntryRepo) UpsertEntry(_ context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := entry.Validate(); err != nil {
		return domain.SettingEntry{}, err
	}
	if entry.ID == 0 {
		m.nextID++
		entry.ID = m.nextID
		m.entries = append(m.entries, entry)
		return entry, nil
	}
	for i := range m.entries {
		if m.entries[i].ID == entry.ID {
			m.entries[i] = entry
			return entry, nil
		}
	}
	return domain.SettingEntry{}, errors.New("not found")
}

func (m *mockEntryRepo) DeleteEntry(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (m *mockEntryRepo) SetEntryEnabled(_ context.Context, id int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Enabled = enabled
			return nil
		}
	}
	return errors.New("not found")
}

func (m *mockEntryRepo) Entry(_ context.Context, id int64) (domain.SettingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.SettingEntry{}, errors.New("not found")
}

func (m *mockEntryRepo) EntriesForPackage(ctx context.Context, pkg string) ([]domain.SettingEntry, error) {
	if m.entriesForPackageFn != nil {
		return m.entriesForPackageFn(ctx, pkg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SettingEntry
	for _, e := range m.entries {
		if e.Package == pkg {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEntryRepo) WatchEntries(ctx context.Context, pkg string, _ time.Duration) (<-chan []domain.SettingEntry, error) {
	list, err := m.EntriesForPackage(ctx, pkg)
	if err != nil {
		return nil, err
	}
	ch := make(chan []domain.SettingEntry, 1)
	ch <- list
	close(ch)
	return ch, nil
}

func (m *mockEntryRepo) Packages(ctx context.Context) ([]string, error) {
	if m.packagesFn != nil {
		return m.packagesFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, e := range m.entries {
		if !seen[e.Package] {
			seen[e.Package] = true
			out = append(out, e.Package)
		}
	}
	return out, nil
}

func (m *mockEntryRepo) DeleteByPackages(ctx context.Context, pkgs []string) (int64, error) {
	if m.deleteByPackagesFn != nil {
		return m.deleteByPackagesFn(ctx, pkgs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[string]bool{}
	for _, p := range pkgs {
		drop[p] = true
	}
	var kept []domain.SettingEntry
	var removed int64
	for _, e := range m.entries {
		if drop[e.Package] {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

type mockPrefsRepo struct {
	preferencesFn func(ctx context.Context) (domain.UserPreferences, error)
	calls         int
}

func (m *mockPrefsRepo) Preferences(ctx context.Context) (domain.UserPreferences, error) {
	m.calls++
	if m.preferencesFn != nil {
		return m.preferencesFn(ctx)
	}
	return domain.DefaultPreferences(), nil
}

func (m *mockPrefsRepo) SavePreferences(context.Context, domain.UserPreferences) error {
	return nil
}

func prefsWithAutoLaunch(on bool) *mockPrefsRepo {
	return &mockPrefsRepo{preferencesFn: func(context.Context) (domain.UserPreferences, error) {
		p := domain.DefaultPreferences()
		p.UseAutoLaunch = on
		return p, nil
	}}
}

type write struct {
	Scope domain.Scope
	Key   string
	Value string
}

type mockWriter struct {
	putFn  func(ctx context.Context, scope domain.Scope, key, value string) (bool, error)
	writes []write
}

func (m *mockWriter) Put(ctx context.Context, scope domain.Scope, key, value string) (bool, error) {
	m.writes = append(m.writes, write{Scope: scope, Key: key, Value: value})
	if m.putFn != nil {
		return m.putFn(ctx, scope, key, value)
	}
	return true, nil
}

type mockReader struct {
	getFn  func(ctx context.Context, scope domain.Scope, key string) (string, bool, error)
	listFn func(ctx context.Context, scope domain.Scope) ([]string, error)
}

func (m *mockReader) Get(ctx context.Context, scope domain.Scope, key string) (string, bool, error) {
	if m.getFn != nil {
		return m.getFn(ctx, scope, key)
	}
	return "", false, nil
}

func (m *mockReader) List(ctx context.Context, scope domain.Scope) ([]string, error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope)
	}
	return nil, nil
}

type mockPackages struct {
	installedFn    func(ctx context.Context) ([]string, error)
	launchIntentFn func(ctx context.Context, pkg string) (domain.LaunchIntent, error)
}

func (m *mockPackages) InstalledPackages(ctx context.Context) ([]string, error) {
	if m.installedFn != nil {
		return m.installedFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPackages) LaunchIntent(ctx context.Context, pkg string) (domain.LaunchIntent, error) {
	if m.launchIntentFn != nil {
		return m.launchIntentFn(ctx, pkg)
	}
	return domain.LaunchIntent{Package: pkg, Component: pkg + "/.MainActivity"}, nil
}

type recordedRun struct {
	UseCase string
	Outcome domain.Outcome
	Writes  int
}

type mockRecorder struct {
	runs     []recordedRun
	cleanups []int64
}

func (m *mockRecorder) ObserveRun(useCase string, outcome domain.Outcome, writes int, _ time.Duration) {
	m.runs = append(m.runs, recordedRun{UseCase: useCase, Outcome: outcome, Writes: writes})
}

func (m *mockRecorder) ObserveCleanup(_ int, removedEntries int64) {
	m.cleanups = append(m.cleanups, removedEntries)
}
