package store

import (
	"errors"
	"testing"
	"time"

	"github.com/neonvoidvibes/align/internal/scoring"
)

func day(t *testing.T, s string) scoring.Day {
	t.Helper()
	d, err := scoring.ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	return d
}

func TestLatestRawValuesEmpty(t *testing.T) {
	db := testDB(t)

	_, values, ok, err := db.LatestRawValues()
	if err != nil {
		t.Fatalf("LatestRawValues: %v", err)
	}
	if ok {
		t.Error("expected ok=false on empty store")
	}
	if values != nil {
		t.Errorf("values = %v, want nil", values)
	}
}

func TestPutAndLatestRawValues(t *testing.T) {
	db := testDB(t)

	d1 := day(t, "2026-03-01")
	d2 := day(t, "2026-03-04")
	if err := db.PutRawValues(d2, scoring.Values{"sleep": 7, "focus": 60}); err != nil {
		t.Fatalf("PutRawValues: %v", err)
	}
	if err := db.PutRawValues(d1, scoring.Values{"sleep": 5}); err != nil {
		t.Fatalf("PutRawValues: %v", err)
	}

	latest, values, ok, err := db.LatestRawValues()
	if err != nil {
		t.Fatalf("LatestRawValues: %v", err)
	}
	if !ok || latest != d2 {
		t.Fatalf("latest = %v ok=%v, want %v", latest, ok, d2)
	}
	if values["sleep"] != 7 || values["focus"] != 60 || len(values) != 2 {
		t.Errorf("values = %v", values)
	}
}

func TestPutRawValuesReplacesWholeDay(t *testing.T) {
	db := testDB(t)

	d := day(t, "2026-03-01")
	db.PutRawValues(d, scoring.Values{"sleep": 7, "focus": 60})
	if err := db.PutRawValues(d, scoring.Values{"sleep": 8}); err != nil {
		t.Fatalf("PutRawValues: %v", err)
	}

	rows, err := db.RawValuesForDays([]scoring.Day{d})
	if err != nil {
		t.Fatalf("RawValuesForDays: %v", err)
	}
	if got := rows[d]; len(got) != 1 || got["sleep"] != 8 {
		t.Errorf("row = %v, want only sleep=8", got)
	}
}

func TestRawValuesForDaysOmitsMissing(t *testing.T) {
	db := testDB(t)

	d := day(t, "2026-03-05")
	db.PutRawValues(d.AddDays(-1), scoring.Values{"movement": 20})
	db.PutRawValues(d.AddDays(-3), scoring.Values{"movement": 40})
	db.PutRawValues(d.AddDays(-30), scoring.Values{"movement": 99})

	rows, err := db.RawValuesForDays(scoring.PriorDays(d))
	if err != nil {
		t.Fatalf("RawValuesForDays: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d days, want 2: %v", len(rows), rows)
	}
	if rows[d.AddDays(-1)]["movement"] != 20 || rows[d.AddDays(-3)]["movement"] != 40 {
		t.Errorf("rows = %v", rows)
	}
	if _, ok := rows[d.AddDays(-2)]; ok {
		t.Error("missing day should be absent, not empty")
	}
}

func TestRawValuesForNoDays(t *testing.T) {
	db := testDB(t)

	rows, err := db.RawValuesForDays(nil)
	if err != nil {
		t.Fatalf("RawValuesForDays: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want empty", rows)
	}
}

func TestLatestSnapshotEmpty(t *testing.T) {
	db := testDB(t)

	_, err := db.LatestSnapshot()
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestPutSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)

	snap := scoring.Snapshot{
		Day:          day(t, "2026-03-01"),
		Scores:       scoring.Values{"vitality": 0.4, "mindfulness": 0.1, "connection": 0.9},
		DisplayScore: 42,
		Priority:     "mindfulness",
		ComputedAt:   time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
	}
	if err := db.PutSnapshot(snap); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	got, err := db.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got.Day != snap.Day || got.DisplayScore != 42 || got.Priority != "mindfulness" {
		t.Errorf("snapshot = %+v", got)
	}
	if !got.ComputedAt.Equal(snap.ComputedAt) {
		t.Errorf("ComputedAt = %v, want %v", got.ComputedAt, snap.ComputedAt)
	}
	if len(got.Scores) != 3 || got.Scores["connection"] != 0.9 {
		t.Errorf("scores = %v", got.Scores)
	}
}

func TestPutSnapshotOverwritesDay(t *testing.T) {
	db := testDB(t)

	d := day(t, "2026-03-01")
	db.PutSnapshot(scoring.Snapshot{Day: d, Scores: scoring.Values{"a": 1, "b": 1}, DisplayScore: 90, Priority: "a"})
	if err := db.PutSnapshot(scoring.Snapshot{Day: d, Scores: scoring.Values{"a": 0.2}, DisplayScore: 20, Priority: "b"}); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	got, err := db.SnapshotForDay(d)
	if err != nil {
		t.Fatalf("SnapshotForDay: %v", err)
	}
	if got.DisplayScore != 20 || got.Priority != "b" {
		t.Errorf("snapshot = %+v", got)
	}
	if len(got.Scores) != 1 || got.Scores["a"] != 0.2 {
		t.Errorf("scores = %v, want only a=0.2", got.Scores)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM score_snapshots`).Scan(&count)
	if count != 1 {
		t.Errorf("snapshot rows = %d, want 1", count)
	}
}

func TestSnapshotForDayMissing(t *testing.T) {
	db := testDB(t)

	_, err := db.SnapshotForDay(day(t, "2020-01-01"))
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestRecentSnapshots(t *testing.T) {
	db := testDB(t)

	d := day(t, "2026-03-01")
	for i := 0; i < 4; i++ {
		db.PutSnapshot(scoring.Snapshot{
			Day:          d.AddDays(i),
			Scores:       scoring.Values{"focus": float64(i) / 10},
			DisplayScore: i * 10,
			Priority:     "focus",
		})
	}

	snaps, err := db.RecentSnapshots(3)
	if err != nil {
		t.Fatalf("RecentSnapshots: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	if snaps[0].Day != d.AddDays(3) || snaps[2].Day != d.AddDays(1) {
		t.Errorf("order = %v, %v, %v", snaps[0].Day, snaps[1].Day, snaps[2].Day)
	}
	if snaps[0].Scores["focus"] != 0.3 {
		t.Errorf("scores = %v", snaps[0].Scores)
	}
}
