package domain

import "errors"

var (
	// ErrPermissionDenied is wrapped by SettingsWriter implementations when the
	// platform rejects a write for lack of the elevated permission.
	ErrPermissionDenied = errors.New("permission denied writing setting")
	// ErrInvalidValue is wrapped when the platform rejects the supplied value.
	ErrInvalidValue = errors.New("invalid value for setting")
	// ErrInvalidEntry marks entries that fail Validate.
	ErrInvalidEntry = errors.New("invalid setting entry")
	// ErrPackageNotInstalled is returned when a package does not resolve on the device.
	ErrPackageNotInstalled = errors.New("package not installed")
	// ErrNoLaunchIntent is returned when a package has no launcher activity.
	ErrNoLaunchIntent = errors.New("no launch intent for package")
)
