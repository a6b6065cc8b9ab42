package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/geto-app/geto/internal/domain"
)

// Settings keys backing domain.UserPreferences.
const (
	SettingUseAutoLaunch   = "preferences.use_auto_launch"
	SettingTheme           = "preferences.theme"
	SettingUseDynamicColor = "preferences.use_dynamic_color"
	SettingCleanupSchedule = "preferences.cleanup_schedule"
)

var preferenceKeys = []string{
	SettingUseAutoLaunch,
	SettingTheme,
	SettingUseDynamicColor,
	SettingCleanupSchedule,
}

func defaultPreferences() domain.UserPreferences {
	return domain.DefaultPreferences()
}

func preferencesToSettings(prefs domain.UserPreferences) map[string]string {
	return map[string]string{
		SettingUseAutoLaunch:   cast.ToString(prefs.UseAutoLaunch),
		SettingTheme:           string(prefs.Theme),
		SettingUseDynamicColor: cast.ToString(prefs.UseDynamicColor),
		SettingCleanupSchedule: prefs.CleanupSchedule,
	}
}

// Preferences returns the stored preferences. Missing or unparsable values
// fall back to their defaults. A stored empty cleanup schedule is kept as is
// and means the sweep is disabled.
func (s *Store) Preferences(ctx context.Context) (domain.UserPreferences, error) {
	values, err := s.LoadSettings(ctx, preferenceKeys...)
	if err != nil {
		return domain.UserPreferences{}, fmt.Errorf("config: load preferences: %w", err)
	}

	prefs := defaultPreferences()
	if raw, ok := values[SettingUseAutoLaunch]; ok {
		if v, err := cast.ToBoolE(raw); err == nil {
			prefs.UseAutoLaunch = v
		}
	}
	if raw, ok := values[SettingTheme]; ok {
		switch theme := domain.Theme(strings.ToLower(strings.TrimSpace(raw))); theme {
		case domain.ThemeSystem, domain.ThemeLight, domain.ThemeDark:
			prefs.Theme = theme
		}
	}
	if raw, ok := values[SettingUseDynamicColor]; ok {
		if v, err := cast.ToBoolE(raw); err == nil {
			prefs.UseDynamicColor = v
		}
	}
	if raw, ok := values[SettingCleanupSchedule]; ok {
		prefs.CleanupSchedule = strings.TrimSpace(raw)
	}
	return prefs, nil
}

// SavePreferences persists every preference field.
func (s *Store) SavePreferences(ctx context.Context, prefs domain.UserPreferences) error {
	if prefs.Theme == "" {
		prefs.Theme = domain.ThemeSystem
	}
	prefs.CleanupSchedule = strings.TrimSpace(prefs.CleanupSchedule)
	if err := s.SaveSettings(ctx, preferencesToSettings(prefs)); err != nil {
		return fmt.Errorf("config: save preferences: %w", err)
	}
	return nil
}
