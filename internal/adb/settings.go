package adb

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/geto-app/geto/internal/domain"
)

var (
	permissionMarkers = []string{"SecurityException", "Permission denial", "Permission Denial"}
	invalidMarkers    = []string{"IllegalArgumentException", "Invalid value", "NumberFormatException"}
)

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Put writes key=value into scope. Permission and value rejections are
// reported as domain.ErrPermissionDenied and domain.ErrInvalidValue; any other
// unsuccessful run returns false without error.
func (c *Client) Put(ctx context.Context, scope domain.Scope, key, value string) (bool, error) {
	if !scope.Valid() {
		return false, fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidValue, scope)
	}

	out, err := c.shell(ctx, "settings", "put", scope.String(), key, value)
	switch {
	case containsAny(out, permissionMarkers):
		return false, fmt.Errorf("adb: put %s/%s: %w", scope, key, domain.ErrPermissionDenied)
	case containsAny(out, invalidMarkers):
		return false, fmt.Errorf("adb: put %s/%s=%q: %w", scope, key, value, domain.ErrInvalidValue)
	case err != nil:
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Printf("[adb] settings put %s %s failed: %v (%s)", scope, key, err, strings.TrimSpace(out))
		return false, nil
	}
	return true, nil
}

// Get returns the current value of key in scope. The device reports missing
// keys as "null".
func (c *Client) Get(ctx context.Context, scope domain.Scope, key string) (string, bool, error) {
	out, err := c.shell(ctx, "settings", "get", scope.String(), key)
	if err != nil {
		return "", false, commandError(fmt.Sprintf("settings get %s %s", scope, key), out, err)
	}
	value := strings.TrimRight(out, "\r\n")
	if value == "null" {
		return "", false, nil
	}
	return value, true, nil
}

// List returns every key present in scope, sorted.
func (c *Client) List(ctx context.Context, scope domain.Scope) ([]string, error) {
	out, err := c.shell(ctx, "settings", "list", scope.String())
	if err != nil {
		return nil, commandError(fmt.Sprintf("settings list %s", scope), out, err)
	}
	return parseSettingsList(out), nil
}

func parseSettingsList(out string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, _, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
