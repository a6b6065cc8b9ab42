package domain

// Theme selects the colour scheme of presentation clients.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// DefaultCleanupSchedule runs the orphan sweep four times a day.
const DefaultCleanupSchedule = "@every 6h"

// UserPreferences is the per-instance preference record.
type UserPreferences struct {
	UseAutoLaunch   bool   `json:"use_auto_launch"`
	Theme           Theme  `json:"theme"`
	UseDynamicColor bool   `json:"use_dynamic_color"`
	CleanupSchedule string `json:"cleanup_schedule"`
}

// DefaultPreferences returns the preferences of a fresh instance.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		UseAutoLaunch:   false,
		Theme:           ThemeSystem,
		UseDynamicColor: false,
		CleanupSchedule: DefaultCleanupSchedule,
	}
}
