package server

import (
	"context"
	"sync"
	"time"

	"github.com/geto-app/geto/internal/adb"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/usecase"
)

type mockApplier struct {
	applyFn func(ctx context.Context, pkg string) (domain.ApplyResult, error)
}

func (m *mockApplier) Apply(ctx context.Context, pkg string) (domain.ApplyResult, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, pkg)
	}
	return domain.ApplyResult{Outcome: domain.OutcomeSuccess}, nil
}

type mockReverter struct {
	revertFn func(ctx context.Context, pkg string) (domain.RevertResult, error)
}

func (m *mockReverter) Revert(ctx context.Context, pkg string) (domain.RevertResult, error) {
	if m.revertFn != nil {
		return m.revertFn(ctx, pkg)
	}
	return domain.RevertResult{Outcome: domain.OutcomeSuccess}, nil
}

type mockAutoLauncher struct {
	runFn func(ctx context.Context, pkg string) (domain.AutoLaunchResult, error)
}

func (m *mockAutoLauncher) Run(ctx context.Context, pkg string) (domain.AutoLaunchResult, error) {
	if m.runFn != nil {
		return m.runFn(ctx, pkg)
	}
	return domain.AutoLaunchResult{Outcome: domain.OutcomeIgnored}, nil
}

type mockEntryManager struct {
	addFn      func(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error)
	getFn      func(ctx context.Context, id int64) (domain.SettingEntry, error)
	updateFn   func(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error)
	toggleFn   func(ctx context.Context, id int64, enabled bool) (domain.SettingEntry, error)
	deleteFn   func(ctx context.Context, id int64) error
	listFn     func(ctx context.Context, pkg string) ([]domain.SettingEntry, error)
	watchFn    func(ctx context.Context, pkg string, interval time.Duration) (<-chan []domain.SettingEntry, error)
	packagesFn func(ctx context.Context) ([]string, error)
}

func (m *mockEntryManager) Add(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
	if m.addFn != nil {
		return m.addFn(ctx, entry)
	}
	entry.ID = 1
	return entry, nil
}

func (m *mockEntryManager) Get(ctx context.Context, id int64) (domain.SettingEntry, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.SettingEntry{ID: id}, nil
}

func (m *mockEntryManager) Update(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, entry)
	}
	return entry, nil
}

func (m *mockEntryManager) Toggle(ctx context.Context, id int64, enabled bool) (domain.SettingEntry, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, id, enabled)
	}
	return domain.SettingEntry{ID: id, Enabled: enabled}, nil
}

func (m *mockEntryManager) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockEntryManager) List(ctx context.Context, pkg string) ([]domain.SettingEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, pkg)
	}
	return nil, nil
}

func (m *mockEntryManager) Watch(ctx context.Context, pkg string, interval time.Duration) (<-chan []domain.SettingEntry, error) {
	if m.watchFn != nil {
		return m.watchFn(ctx, pkg, interval)
	}
	ch := make(chan []domain.SettingEntry)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (m *mockEntryManager) Packages(ctx context.Context) ([]string, error) {
	if m.packagesFn != nil {
		return m.packagesFn(ctx)
	}
	return nil, nil
}

type mockPreferences struct {
	prefs  domain.UserPreferences
	saved  []domain.UserPreferences
	loadFn func(ctx context.Context) (domain.UserPreferences, error)
}

func (m *mockPreferences) Preferences(ctx context.Context) (domain.UserPreferences, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return m.prefs, nil
}

func (m *mockPreferences) SavePreferences(_ context.Context, prefs domain.UserPreferences) error {
	m.prefs = prefs
	m.saved = append(m.saved, prefs)
	return nil
}

type mockCleaner struct {
	orphansFn func(ctx context.Context) ([]string, error)
	runFn     func(ctx context.Context) (usecase.CleanupReport, error)
}

func (m *mockCleaner) Orphans(ctx context.Context) ([]string, error) {
	if m.orphansFn != nil {
		return m.orphansFn(ctx)
	}
	return nil, nil
}

func (m *mockCleaner) Run(ctx context.Context) (usecase.CleanupReport, error) {
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return usecase.CleanupReport{}, nil
}

type mockDevices struct {
	devices []adb.Device
	err     error
}

func (m *mockDevices) Devices(context.Context) ([]adb.Device, error) {
	return m.devices, m.err
}

type mockPackages struct {
	installed  []string
	thirdParty []string
	err        error
}

func (m *mockPackages) InstalledPackages(context.Context) ([]string, error) {
	return m.installed, m.err
}

func (m *mockPackages) ThirdPartyPackages(context.Context) ([]string, error) {
	return m.thirdParty, m.err
}

type mockPermissions struct{}

func (mockPermissions) PermissionGrantCommand(pkg string) string {
	return "adb shell pm grant " + pkg + " android.permission.WRITE_SECURE_SETTINGS"
}

type mockLauncher struct {
	mu       sync.Mutex
	launched []string
	err      error
}

func (m *mockLauncher) Launch(_ context.Context, intent domain.LaunchIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.launched = append(m.launched, intent.Component)
	return nil
}

func (m *mockLauncher) components() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.launched...)
}
