package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neonvoidvibes/align/internal/scoring"
)

// ErrNoSnapshot is returned when no score snapshot matches a query.
var ErrNoSnapshot = errors.New("no score snapshot")

// PutSnapshot writes a day's snapshot, replacing any earlier one for that day.
// Display score, priority and every category score commit together or not at all.
func (db *DB) PutSnapshot(snap scoring.Snapshot) error {
	computed := snap.ComputedAt
	if computed.IsZero() {
		computed = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin put snapshot: %w", err)
	}
	defer tx.Rollback()

	day := snap.Day.String()
	if _, err := tx.Exec(`DELETE FROM category_scores WHERE day = ?`, day); err != nil {
		return fmt.Errorf("clear category scores %s: %w", day, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO score_snapshots (day, display_score, priority, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			display_score = excluded.display_score,
			priority      = excluded.priority,
			computed_at   = excluded.computed_at
	`, day, snap.DisplayScore, snap.Priority, computed.UnixMilli()); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", day, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO category_scores (day, category, score) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare category scores: %w", err)
	}
	defer stmt.Close()

	for _, cat := range sortedKeys(snap.Scores) {
		if _, err := stmt.Exec(day, cat, snap.Scores[cat]); err != nil {
			return fmt.Errorf("insert category score %s/%s: %w", day, cat, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent day's snapshot, or ErrNoSnapshot.
func (db *DB) LatestSnapshot() (*scoring.Snapshot, error) {
	return db.loadSnapshot(db.QueryRow(`
		SELECT day, display_score, priority, computed_at
		FROM score_snapshots ORDER BY day DESC LIMIT 1
	`))
}

// SnapshotForDay returns the snapshot for day, or ErrNoSnapshot.
func (db *DB) SnapshotForDay(day scoring.Day) (*scoring.Snapshot, error) {
	return db.loadSnapshot(db.QueryRow(`
		SELECT day, display_score, priority, computed_at
		FROM score_snapshots WHERE day = ?
	`, day.String()))
}

// RecentSnapshots returns up to limit snapshots, newest first, with category scores.
func (db *DB) RecentSnapshots(limit int) ([]scoring.Snapshot, error) {
	rows, err := db.Query(`
		SELECT day, display_score, priority, computed_at
		FROM score_snapshots ORDER BY day DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}

	var snaps []scoring.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, *s)
	}
	// Release the cursor before issuing per-day score queries.
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snaps {
		scores, err := db.categoryScores(snaps[i].Day)
		if err != nil {
			return nil, err
		}
		snaps[i].Scores = scores
	}
	return snaps, nil
}

func (db *DB) loadSnapshot(row *sql.Row) (*scoring.Snapshot, error) {
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	s.Scores, err = db.categoryScores(s.Day)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) categoryScores(day scoring.Day) (scoring.Values, error) {
	rows, err := db.Query(`SELECT category, score FROM category_scores WHERE day = ?`, day.String())
	if err != nil {
		return nil, fmt.Errorf("category scores %s: %w", day, err)
	}
	defer rows.Close()

	scores := make(scoring.Values)
	for rows.Next() {
		var (
			cat   string
			score float64
		)
		if err := rows.Scan(&cat, &score); err != nil {
			return nil, fmt.Errorf("scan category score: %w", err)
		}
		scores[cat] = score
	}
	return scores, rows.Err()
}

func scanSnapshot(row rowScanner) (*scoring.Snapshot, error) {
	var (
		s        scoring.Snapshot
		day      string
		computed int64
	)
	if err := row.Scan(&day, &s.DisplayScore, &s.Priority, &computed); err != nil {
		return nil, err
	}
	d, err := scoring.ParseDay(day)
	if err != nil {
		return nil, err
	}
	s.Day = d
	s.ComputedAt = time.UnixMilli(computed)
	return &s, nil
}
