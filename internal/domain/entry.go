package domain

import (
	"fmt"
	"strings"
)

// Scope names one of the three Android settings namespaces.
type Scope string

const (
	ScopeSystem Scope = "system"
	ScopeSecure Scope = "secure"
	ScopeGlobal Scope = "global"
)

// Scopes lists every valid scope in display order.
var Scopes = []Scope{ScopeSystem, ScopeSecure, ScopeGlobal}

// ParseScope converts user input into a Scope. Matching is case-insensitive.
func ParseScope(raw string) (Scope, error) {
	scope := Scope(strings.ToLower(strings.TrimSpace(raw)))
	if !scope.Valid() {
		return "", fmt.Errorf("unknown settings scope %q (expected system, secure or global)", raw)
	}
	return scope, nil
}

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSystem, ScopeSecure, ScopeGlobal:
		return true
	default:
		return false
	}
}

func (s Scope) String() string {
	return string(s)
}

// SettingEntry is one user-configured toggle bound to a target package.
type SettingEntry struct {
	ID            int64  `json:"id"`
	Enabled       bool   `json:"enabled"`
	Scope         Scope  `json:"scope"`
	Package       string `json:"package"`
	Label         string `json:"label"`
	Key           string `json:"key"`
	ValueOnLaunch string `json:"value_on_launch"`
	ValueOnRevert string `json:"value_on_revert"`
	SafeToWrite   bool   `json:"safe_to_write"`
}

// Validate checks the invariants of a persisted entry.
func (e SettingEntry) Validate() error {
	if strings.TrimSpace(e.Package) == "" {
		return fmt.Errorf("%w: package is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Key) == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidEntry)
	}
	if !e.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidEntry, e.Scope)
	}
	return nil
}

// DisplayLabel falls back to the key when no label was given.
func (e SettingEntry) DisplayLabel() string {
	if label := strings.TrimSpace(e.Label); label != "" {
		return label
	}
	return e.Key
}

// SameAs reports whether e and other would write the same values, ignoring
// ID, package and label.
func (e SettingEntry) SameAs(other SettingEntry) bool {
	return e.identity() == other.identity()
}

func (e SettingEntry) identity() entryIdentity {
	return entryIdentity{
		enabled:       e.Enabled,
		scope:         e.Scope,
		key:           e.Key,
		valueOnLaunch: e.ValueOnLaunch,
		valueOnRevert: e.ValueOnRevert,
	}
}

type entryIdentity struct {
	enabled       bool
	scope         Scope
	key           string
	valueOnLaunch string
	valueOnRevert string
}

// Distinct drops entries that are value-identical to an earlier one,
// ignoring ID and label. Order is preserved.
func Distinct(entries []SettingEntry) []SettingEntry {
	if len(entries) < 2 {
		return entries
	}
	seen := make(map[entryIdentity]struct{}, len(entries))
	out := make([]SettingEntry, 0, len(entries))
	for _, entry := range entries {
		id := entry.identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, entry)
	}
	return out
}

// EnabledOnly returns the entries with Enabled set.
func EnabledOnly(entries []SettingEntry) []SettingEntry {
	out := make([]SettingEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Enabled {
			out = append(out, entry)
		}
	}
	return out
}
