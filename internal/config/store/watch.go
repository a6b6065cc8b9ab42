package store

import (
	"context"
	"database/sql"
	"log"
	"slices"
	"time"

	"github.com/geto-app/geto/internal/domain"
)

const minWatchInterval = 250 * time.Millisecond

// ChangeSnapshot captures update markers for watched tables.
type ChangeSnapshot struct {
	Settings string
	Entries  string
}

// ChangeEvent describes modified groups since the last snapshot.
type ChangeEvent struct {
	SettingsChanged bool
	EntriesChanged  bool
	Snapshot        ChangeSnapshot
}

// Changed returns true when at least one tracked group changed.
func (e ChangeEvent) Changed() bool {
	return e.SettingsChanged || e.EntriesChanged
}

func clampInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return time.Second
	}
	if interval < minWatchInterval {
		return minWatchInterval
	}
	return interval
}

// Watch polls the store for changes and emits events on the returned channel.
// The caller must cancel ctx to terminate the watcher. The interval is clamped
// to a minimum of 250ms.
func (s *Store) Watch(ctx context.Context, interval time.Duration) (<-chan ChangeEvent, error) {
	if s == nil {
		return nil, sql.ErrConnDone
	}

	initial, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan ChangeEvent, 1)
	ticker := s.clock.NewTicker(clampInterval(interval))

	go func() {
		defer close(out)
		defer ticker.Stop()

		last := initial
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				next, err := s.snapshot(ctx)
				if err != nil {
					continue
				}

				ev := diffSnapshots(last, next)
				if !ev.Changed() {
					continue
				}
				select {
				case out <- ev:
					last = next
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *Store) snapshot(ctx context.Context) (ChangeSnapshot, error) {
	var snap ChangeSnapshot
	if err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) || '|' || IFNULL(MAX(updated_at), '') || '|' ||
               IFNULL(GROUP_CONCAT(key || '=' || value, char(31)), '')
        FROM (
            SELECT key, value, updated_at
            FROM settings
            WHERE instance_name = ?
            ORDER BY key
        )
    `, s.instanceName).Scan(&snap.Settings); err != nil {
		return ChangeSnapshot{}, err
	}

	if err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) || '|' || IFNULL(MAX(id), 0) || '|' || IFNULL(MAX(updated_at), '')
        FROM setting_entries
        WHERE instance_name = ?
    `, s.instanceName).Scan(&snap.Entries); err != nil {
		return ChangeSnapshot{}, err
	}

	return snap, nil
}

func diffSnapshots(prev, curr ChangeSnapshot) ChangeEvent {
	return ChangeEvent{
		SettingsChanged: curr.Settings != prev.Settings,
		EntriesChanged:  curr.Entries != prev.Entries,
		Snapshot:        curr,
	}
}

// WatchEntries streams the entries of pkg. The current list is emitted
// immediately, then again whenever it differs from the last emitted list.
// The channel is closed when ctx is cancelled.
func (s *Store) WatchEntries(ctx context.Context, pkg string, interval time.Duration) (<-chan []domain.SettingEntry, error) {
	if s == nil {
		return nil, sql.ErrConnDone
	}

	initial, err := s.EntriesForPackage(ctx, pkg)
	if err != nil {
		return nil, err
	}

	out := make(chan []domain.SettingEntry, 1)
	out <- initial
	ticker := s.clock.NewTicker(clampInterval(interval))

	go func() {
		defer close(out)
		defer ticker.Stop()

		last := initial
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				next, err := s.EntriesForPackage(ctx, pkg)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("[Config] watch entries for %s: %v", pkg, err)
					}
					continue
				}
				if slices.Equal(last, next) {
					continue
				}
				select {
				case out <- next:
					last = next
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
