package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/eventbus"
)

// PackageNotInstalledError is returned by EntryService.Add when the target
// package is missing from the device.
type PackageNotInstalledError struct {
	Package     string
	Suggestions []string
}

func (e *PackageNotInstalledError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("package %s is not installed", e.Package)
	}
	return fmt.Sprintf("package %s is not installed (did you mean %s?)", e.Package, strings.Join(e.Suggestions, ", "))
}

func (e *PackageNotInstalledError) Unwrap() error {
	return domain.ErrPackageNotInstalled
}

// EntryService authors setting entries against the connected device.
type EntryService struct {
	entries  domain.EntryRepository
	reader   domain.SettingsReader
	packages domain.PackageQuery
	bus      *eventbus.Bus
}

// NewEntryService constructs an EntryService. bus may be nil.
func NewEntryService(entries domain.EntryRepository, reader domain.SettingsReader, packages domain.PackageQuery, bus *eventbus.Bus) *EntryService {
	return &EntryService{entries: entries, reader: reader, packages: packages, bus: bus}
}

// Add stores a new entry after checking that the package is installed. The
// safe-to-write flag records whether the key already exists on the device and
// a blank revert value is prefilled with the key's current value.
func (s *EntryService) Add(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
	entry.ID = 0
	entry.Package = strings.TrimSpace(entry.Package)
	entry.Key = strings.TrimSpace(entry.Key)
	if err := entry.Validate(); err != nil {
		return domain.SettingEntry{}, err
	}

	if err := s.ensureInstalled(ctx, entry.Package); err != nil {
		return domain.SettingEntry{}, err
	}

	safe, err := s.SafeToWrite(ctx, entry.Scope, entry.Key)
	if err != nil {
		return domain.SettingEntry{}, err
	}
	entry.SafeToWrite = safe

	if entry.ValueOnRevert == "" {
		current, ok, err := s.reader.Get(ctx, entry.Scope, entry.Key)
		if err != nil {
			return domain.SettingEntry{}, fmt.Errorf("usecase: read current %s/%s: %w", entry.Scope, entry.Key, err)
		}
		if ok {
			entry.ValueOnRevert = current
		}
	}

	stored, err := s.entries.UpsertEntry(ctx, entry)
	if err != nil {
		return domain.SettingEntry{}, err
	}
	s.publish(ctx, stored.Package, stored.ID, eventbus.EntryUpserted)
	return stored, nil
}

func (s *EntryService) ensureInstalled(ctx context.Context, pkg string) error {
	installed, err := s.packages.InstalledPackages(ctx)
	if err != nil {
		return fmt.Errorf("usecase: list installed packages: %w", err)
	}
	if slices.Contains(installed, pkg) {
		return nil
	}
	return &PackageNotInstalledError{Package: pkg, Suggestions: nearest(installed, pkg, maxSuggestions)}
}

// SafeToWrite reports whether key already exists in scope on the device.
func (s *EntryService) SafeToWrite(ctx context.Context, scope domain.Scope, key string) (bool, error) {
	keys, err := s.reader.List(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("usecase: list %s settings: %w", scope, err)
	}
	return slices.Contains(keys, key), nil
}

// Get returns one stored entry.
func (s *EntryService) Get(ctx context.Context, id int64) (domain.SettingEntry, error) {
	return s.entries.Entry(ctx, id)
}

// Update rewrites an existing entry. The scope cannot change; a blank
// package or scope is taken from the stored entry. The safe-to-write flag is
// recomputed when the key changes.
func (s *EntryService) Update(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
	existing, err := s.entries.Entry(ctx, entry.ID)
	if err != nil {
		return domain.SettingEntry{}, err
	}
	if strings.TrimSpace(entry.Package) == "" {
		entry.Package = existing.Package
	}
	if entry.Scope == "" {
		entry.Scope = existing.Scope
	}

	entry.Key = strings.TrimSpace(entry.Key)
	if entry.Key != existing.Key {
		safe, err := s.SafeToWrite(ctx, entry.Scope, entry.Key)
		if err != nil {
			return domain.SettingEntry{}, err
		}
		entry.SafeToWrite = safe
	} else {
		entry.SafeToWrite = existing.SafeToWrite
	}

	stored, err := s.entries.UpsertEntry(ctx, entry)
	if err != nil {
		return domain.SettingEntry{}, err
	}
	s.publish(ctx, stored.Package, stored.ID, eventbus.EntryUpserted)
	return stored, nil
}

// Toggle sets the enabled flag of an entry.
func (s *EntryService) Toggle(ctx context.Context, id int64, enabled bool) (domain.SettingEntry, error) {
	if err := s.entries.SetEntryEnabled(ctx, id, enabled); err != nil {
		return domain.SettingEntry{}, err
	}
	entry, err := s.entries.Entry(ctx, id)
	if err != nil {
		return domain.SettingEntry{}, err
	}
	s.publish(ctx, entry.Package, entry.ID, eventbus.EntryToggled)
	return entry, nil
}

// Delete removes an entry.
func (s *EntryService) Delete(ctx context.Context, id int64) error {
	entry, err := s.entries.Entry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.entries.DeleteEntry(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, entry.Package, id, eventbus.EntryDeleted)
	return nil
}

// List returns the stored entries of pkg.
func (s *EntryService) List(ctx context.Context, pkg string) ([]domain.SettingEntry, error) {
	return s.entries.EntriesForPackage(ctx, strings.TrimSpace(pkg))
}

// Watch streams the entries of pkg.
func (s *EntryService) Watch(ctx context.Context, pkg string, interval time.Duration) (<-chan []domain.SettingEntry, error) {
	return s.entries.WatchEntries(ctx, strings.TrimSpace(pkg), interval)
}

// Packages lists the packages that own entries.
func (s *EntryService) Packages(ctx context.Context) ([]string, error) {
	return s.entries.Packages(ctx)
}

// SuggestKeys returns existing keys in scope that are close to key.
func (s *EntryService) SuggestKeys(ctx context.Context, scope domain.Scope, key string) ([]string, error) {
	keys, err := s.reader.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("usecase: list %s settings: %w", scope, err)
	}
	return nearest(keys, key, maxSuggestions), nil
}

// Import stores entries without consulting the device. Entries that match
// one already stored for the same package are skipped. It returns the number
// of entries added.
func (s *EntryService) Import(ctx context.Context, entries []domain.SettingEntry) (int, error) {
	existing := make(map[string][]domain.SettingEntry)
	added := 0
	for _, entry := range entries {
		entry.ID = 0
		entry.Package = strings.TrimSpace(entry.Package)
		if err := entry.Validate(); err != nil {
			return added, err
		}

		current, ok := existing[entry.Package]
		if !ok {
			list, err := s.entries.EntriesForPackage(ctx, entry.Package)
			if err != nil {
				return added, fmt.Errorf("usecase: load entries for %s: %w", entry.Package, err)
			}
			current = list
		}
		if slices.ContainsFunc(current, entry.SameAs) {
			existing[entry.Package] = current
			continue
		}

		stored, err := s.entries.UpsertEntry(ctx, entry)
		if err != nil {
			return added, err
		}
		existing[entry.Package] = append(current, stored)
		added++
		s.publish(ctx, stored.Package, stored.ID, eventbus.EntryUpserted)
	}
	return added, nil
}

func (s *EntryService) publish(ctx context.Context, pkg string, id int64, action eventbus.EntryAction) {
	eventbus.Publish(ctx, s.bus, eventbus.Entries.Changed, eventbus.SourceEntryService, eventbus.EntriesChangedEvent{
		Package: pkg,
		EntryID: id,
		Action:  action,
	})
}
