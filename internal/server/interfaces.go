package server

import (
	"context"
	"time"

	"github.com/geto-app/geto/internal/adb"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/usecase"
)

// Applier runs the apply use case.
type Applier interface {
	Apply(ctx context.Context, pkg string) (domain.ApplyResult, error)
}

// Reverter runs the revert use case.
type Reverter interface {
	Revert(ctx context.Context, pkg string) (domain.RevertResult, error)
}

// AutoLauncher runs the auto-launch use case.
type AutoLauncher interface {
	Run(ctx context.Context, pkg string) (domain.AutoLaunchResult, error)
}

// EntryManager exposes entry authoring to the API.
type EntryManager interface {
	Add(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error)
	Get(ctx context.Context, id int64) (domain.SettingEntry, error)
	Update(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error)
	Toggle(ctx context.Context, id int64, enabled bool) (domain.SettingEntry, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, pkg string) ([]domain.SettingEntry, error)
	Watch(ctx context.Context, pkg string, interval time.Duration) (<-chan []domain.SettingEntry, error)
	Packages(ctx context.Context) ([]string, error)
}

// Cleaner runs or previews the orphan sweep.
type Cleaner interface {
	Orphans(ctx context.Context) ([]string, error)
	Run(ctx context.Context) (usecase.CleanupReport, error)
}

// DeviceLister enumerates attached devices.
type DeviceLister interface {
	Devices(ctx context.Context) ([]adb.Device, error)
}

// PackageLister enumerates packages installed on the device.
type PackageLister interface {
	InstalledPackages(ctx context.Context) ([]string, error)
	ThirdPartyPackages(ctx context.Context) ([]string, error)
}

// Launcher starts an app through its launch intent.
type Launcher interface {
	Launch(ctx context.Context, intent domain.LaunchIntent) error
}

// PermissionHelper renders the command that grants the secure-settings
// permission to pkg.
type PermissionHelper interface {
	PermissionGrantCommand(pkg string) string
}
