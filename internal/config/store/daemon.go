package store

import (
	"context"
	"fmt"
	"strings"
)

// SettingDaemonAddress holds the address the daemon API last bound to.
const SettingDaemonAddress = "daemon.api_address"

// DaemonAddress returns the recorded API address, or "" when the daemon has
// never run for this instance.
func (s *Store) DaemonAddress(ctx context.Context) (string, error) {
	values, err := s.LoadSettings(ctx, SettingDaemonAddress)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(values[SettingDaemonAddress]), nil
}

// SaveDaemonAddress records the API address so clients can reach the daemon.
func (s *Store) SaveDaemonAddress(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("config: daemon address is required")
	}
	return s.SaveSettings(ctx, map[string]string{SettingDaemonAddress: addr})
}
