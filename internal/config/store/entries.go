package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/geto-app/geto/internal/domain"
)

// ErrScopeImmutable is returned when an update tries to move an entry to
// another settings scope.
var ErrScopeImmutable = errors.New("config: entry scope cannot change")

const timestampNow = `STRFTIME('%Y-%m-%dT%H:%M:%fZ', 'now')`

// deleteChunkSize keeps IN (...) lists below SQLite's host parameter limit.
const deleteChunkSize = 500

func entryNotFound(id int64) NotFoundError {
	return NotFoundError{Entity: "setting entry", Key: strconv.FormatInt(id, 10)}
}

// UpsertEntry inserts entry when its ID is zero and updates it otherwise.
// The stored entry is returned with its assigned ID.
func (s *Store) UpsertEntry(ctx context.Context, entry domain.SettingEntry) (domain.SettingEntry, error) {
	entry.Package = strings.TrimSpace(entry.Package)
	entry.Key = strings.TrimSpace(entry.Key)
	if err := entry.Validate(); err != nil {
		return domain.SettingEntry{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if entry.ID == 0 {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO setting_entries (instance_name, package, label, scope, key, value_on_launch, value_on_revert, enabled, safe_to_write)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, s.instanceName, entry.Package, entry.Label, string(entry.Scope), entry.Key,
				entry.ValueOnLaunch, entry.ValueOnRevert, boolToInt(entry.Enabled), boolToInt(entry.SafeToWrite))
			if err != nil {
				return fmt.Errorf("config: insert setting entry: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("config: read setting entry id: %w", err)
			}
			entry.ID = id
			return nil
		}

		var scope string
		err := tx.QueryRowContext(ctx, `
			SELECT scope FROM setting_entries WHERE instance_name = ? AND id = ?
		`, s.instanceName, entry.ID).Scan(&scope)
		if errors.Is(err, sql.ErrNoRows) {
			return entryNotFound(entry.ID)
		}
		if err != nil {
			return fmt.Errorf("config: load setting entry %d: %w", entry.ID, err)
		}
		if domain.Scope(scope) != entry.Scope {
			return fmt.Errorf("%w: entry %d is %s", ErrScopeImmutable, entry.ID, scope)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE setting_entries
			SET package = ?, label = ?, key = ?, value_on_launch = ?, value_on_revert = ?,
			    enabled = ?, safe_to_write = ?, updated_at = `+timestampNow+`
			WHERE instance_name = ? AND id = ?
		`, entry.Package, entry.Label, entry.Key, entry.ValueOnLaunch, entry.ValueOnRevert,
			boolToInt(entry.Enabled), boolToInt(entry.SafeToWrite), s.instanceName, entry.ID); err != nil {
			return fmt.Errorf("config: update setting entry %d: %w", entry.ID, err)
		}
		return nil
	})
	if err != nil {
		return domain.SettingEntry{}, err
	}
	return entry, nil
}

// DeleteEntry removes the entry with the given id.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM setting_entries WHERE instance_name = ? AND id = ?
		`, s.instanceName, id)
		if err != nil {
			return fmt.Errorf("config: delete setting entry %d: %w", id, err)
		}
		return requireAffected(res, id)
	})
}

// SetEntryEnabled flips the participation flag of one entry.
func (s *Store) SetEntryEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE setting_entries
			SET enabled = ?, updated_at = `+timestampNow+`
			WHERE instance_name = ? AND id = ?
		`, boolToInt(enabled), s.instanceName, id)
		if err != nil {
			return fmt.Errorf("config: set setting entry %d enabled: %w", id, err)
		}
		return requireAffected(res, id)
	})
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("config: rows affected: %w", err)
	}
	if n == 0 {
		return entryNotFound(id)
	}
	return nil
}

// Entry returns one entry by id.
func (s *Store) Entry(ctx context.Context, id int64) (domain.SettingEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM setting_entries
		WHERE instance_name = ? AND id = ?
	`, s.instanceName, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SettingEntry{}, entryNotFound(id)
	}
	if err != nil {
		return domain.SettingEntry{}, fmt.Errorf("config: load setting entry %d: %w", id, err)
	}
	return entry, nil
}

// EntriesForPackage returns a snapshot of the entries of pkg ordered by id.
func (s *Store) EntriesForPackage(ctx context.Context, pkg string) ([]domain.SettingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM setting_entries
		WHERE instance_name = ? AND package = ?
		ORDER BY id
	`, s.instanceName, strings.TrimSpace(pkg))
	if err != nil {
		return nil, fmt.Errorf("config: list setting entries: %w", err)
	}
	return scanList(rows, scanEntry, "config: scan setting entry", "config: iterate setting entries")
}

// Packages returns the distinct package names that own at least one entry.
func (s *Store) Packages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT package
		FROM setting_entries
		WHERE instance_name = ?
		ORDER BY package
	`, s.instanceName)
	if err != nil {
		return nil, fmt.Errorf("config: list entry packages: %w", err)
	}
	return scanList(rows, scanString, "config: scan entry package", "config: iterate entry packages")
}

// DeleteByPackages removes every entry owned by one of pkgs and returns the
// number of deleted rows.
func (s *Store) DeleteByPackages(ctx context.Context, pkgs []string) (int64, error) {
	if len(pkgs) == 0 {
		return 0, nil
	}

	var total int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(pkgs); start += deleteChunkSize {
			end := min(start+deleteChunkSize, len(pkgs))
			chunk := pkgs[start:end]

			placeholders := strings.TrimRight(strings.Repeat("?,", len(chunk)), ",")
			args := make([]any, 0, len(chunk)+1)
			args = append(args, s.instanceName)
			for _, pkg := range chunk {
				args = append(args, pkg)
			}

			res, err := tx.ExecContext(ctx, fmt.Sprintf(`
				DELETE FROM setting_entries
				WHERE instance_name = ? AND package IN (%s)
			`, placeholders), args...)
			if err != nil {
				return fmt.Errorf("config: delete entries by package: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("config: rows affected: %w", err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
