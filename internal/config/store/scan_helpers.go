package store

import (
	"database/sql"
	"fmt"

	"github.com/geto-app/geto/internal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const entryColumns = `id, package, label, scope, key, value_on_launch, value_on_revert, enabled, safe_to_write`

func scanEntry(scanner rowScanner) (domain.SettingEntry, error) {
	var (
		entry       domain.SettingEntry
		scope       string
		enabled     int
		safeToWrite int
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.Package,
		&entry.Label,
		&scope,
		&entry.Key,
		&entry.ValueOnLaunch,
		&entry.ValueOnRevert,
		&enabled,
		&safeToWrite,
	); err != nil {
		return domain.SettingEntry{}, err
	}
	entry.Scope = domain.Scope(scope)
	entry.Enabled = enabled != 0
	entry.SafeToWrite = safeToWrite != 0
	return entry, nil
}

func scanString(scanner rowScanner) (string, error) {
	var value string
	err := scanner.Scan(&value)
	return value, err
}

func scanStringPair(scanner rowScanner) (string, string, error) {
	var key, value string
	err := scanner.Scan(&key, &value)
	return key, value, err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// scanList scans all rows with scanFn, wraps scan/iteration errors with
// provided operation names and always closes rows before returning.
func scanList[T any](
	rows *sql.Rows,
	scanFn func(rowScanner) (T, error),
	scanOp string,
	iterOp string,
) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		item, err := scanFn(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", scanOp, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", iterOp, err)
	}
	return result, nil
}
