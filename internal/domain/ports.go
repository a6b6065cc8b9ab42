package domain

import (
	"context"
	"time"
)

// EntryRepository persists setting entries keyed by target package.
type EntryRepository interface {
	UpsertEntry(ctx context.Context, entry SettingEntry) (SettingEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	SetEntryEnabled(ctx context.Context, id int64, enabled bool) error
	Entry(ctx context.Context, id int64) (SettingEntry, error)
	EntriesForPackage(ctx context.Context, pkg string) ([]SettingEntry, error)
	WatchEntries(ctx context.Context, pkg string, interval time.Duration) (<-chan []SettingEntry, error)
	Packages(ctx context.Context) ([]string, error)
	DeleteByPackages(ctx context.Context, pkgs []string) (int64, error)
}

// PreferencesRepository loads and stores UserPreferences.
type PreferencesRepository interface {
	Preferences(ctx context.Context) (UserPreferences, error)
	SavePreferences(ctx context.Context, prefs UserPreferences) error
}

// SettingsWriter applies a key/value pair to a platform settings scope.
// A false return without error is an ordinary unsuccessful write. Rejections
// for missing permission or malformed values wrap ErrPermissionDenied and
// ErrInvalidValue respectively.
type SettingsWriter interface {
	Put(ctx context.Context, scope Scope, key, value string) (bool, error)
}

// SettingsReader queries the platform settings store.
type SettingsReader interface {
	// Get returns the current value and whether the key is present.
	Get(ctx context.Context, scope Scope, key string) (string, bool, error)
	// List returns every key currently present in scope.
	List(ctx context.Context, scope Scope) ([]string, error)
}

// PackageQuery resolves installed packages and their launch intents.
type PackageQuery interface {
	InstalledPackages(ctx context.Context) ([]string, error)
	LaunchIntent(ctx context.Context, pkg string) (LaunchIntent, error)
}

// Launcher starts the activity named by a launch intent.
type Launcher interface {
	Launch(ctx context.Context, intent LaunchIntent) error
}
