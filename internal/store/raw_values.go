package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/neonvoidvibes/align/internal/scoring"
)

// PutRawValues replaces the whole raw row for day in one transaction.
func (db *DB) PutRawValues(day scoring.Day, values scoring.Values) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin put raw values: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM raw_values WHERE day = ?`, day.String()); err != nil {
		return fmt.Errorf("clear raw values %s: %w", day, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO raw_values (day, category, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw values: %w", err)
	}
	defer stmt.Close()

	for _, cat := range sortedKeys(values) {
		if _, err := stmt.Exec(day.String(), cat, values[cat]); err != nil {
			return fmt.Errorf("insert raw value %s/%s: %w", day, cat, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit raw values: %w", err)
	}
	return nil
}

// LatestRawValues returns the most recent day with any raw data and its row.
// ok is false when nothing has ever been recorded.
func (db *DB) LatestRawValues() (day scoring.Day, values scoring.Values, ok bool, err error) {
	var latest sql.NullString
	if err := db.QueryRow(`SELECT MAX(day) FROM raw_values`).Scan(&latest); err != nil {
		return scoring.Day{}, nil, false, fmt.Errorf("latest raw day: %w", err)
	}
	if !latest.Valid {
		return scoring.Day{}, nil, false, nil
	}

	day, err = scoring.ParseDay(latest.String)
	if err != nil {
		return scoring.Day{}, nil, false, err
	}
	rows, err := db.RawValuesForDays([]scoring.Day{day})
	if err != nil {
		return scoring.Day{}, nil, false, err
	}
	return day, rows[day], true, nil
}

// RawValuesForDays returns the raw rows for the given days. Days with no data
// are absent from the result.
func (db *DB) RawValuesForDays(days []scoring.Day) (scoring.History, error) {
	out := make(scoring.History)
	if len(days) == 0 {
		return out, nil
	}

	args := make([]any, len(days))
	for i, d := range days {
		args[i] = d.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(days)), ",")

	rows, err := db.Query(`
		SELECT day, category, value FROM raw_values
		WHERE day IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query raw values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dayStr, cat string
			value       float64
		)
		if err := rows.Scan(&dayStr, &cat, &value); err != nil {
			return nil, fmt.Errorf("scan raw value: %w", err)
		}
		d, err := scoring.ParseDay(dayStr)
		if err != nil {
			return nil, err
		}
		if out[d] == nil {
			out[d] = make(scoring.Values)
		}
		out[d][cat] = value
	}
	return out, rows.Err()
}

func sortedKeys(v scoring.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
