package aggregator

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE register_readings (
    timestamp INTEGER NOT NULL,
    register_id INTEGER NOT NULL,
    value REAL NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (timestamp, register_id)
);
CREATE TABLE aggregate_register_hourly (
    hour_start INTEGER NOT NULL,
    register_id INTEGER NOT NULL,
    avg_value REAL NOT NULL,
    min_value REAL NOT NULL,
    max_value REAL NOT NULL,
    sample_count INTEGER NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (hour_start, register_id)
);
`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatal(err)
	}
	return db
}

func insertReading(t *testing.T, db *sql.DB, ts int64, id uint16, value float64) {
	t.Helper()
	_, err := db.Exec("INSERT INTO register_readings (timestamp, register_id, value, unit) VALUES (?, ?, ?, ?)", ts, id, value, "m³")
	if err != nil {
		t.Fatal(err)
	}
}

func TestHourHelpers(t *testing.T) {
	at := time.Date(2026, 5, 4, 13, 47, 12, 0, time.UTC)
	start := roundToHourStart(at)
	if want := time.Date(2026, 5, 4, 13, 0, 0, 0, time.UTC).Unix(); start != want {
		t.Fatalf("hour start=%d want %d", start, want)
	}
	if end := getHourEnd(start); end != start+3599 {
		t.Fatalf("hour end=%d", end)
	}
}

func TestAggregateAndCleanup_PreviousHour(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 5, 4, 14, 5, 0, 0, time.UTC)
	prev := time.Date(2026, 5, 4, 13, 0, 0, 0, time.UTC).Unix()

	insertReading(t, db, prev+60, 68, 10)
	insertReading(t, db, prev+1800, 68, 20)
	insertReading(t, db, prev+3599, 68, 30)
	insertReading(t, db, prev+3600, 68, 1000) // current hour, excluded
	insertReading(t, db, prev+60, 60, 5)

	if err := aggregateAndCleanup(db, now); err != nil {
		t.Fatalf("err=%v", err)
	}

	var avg, minV, maxV float64
	var count int
	err := db.QueryRow(
		"SELECT avg_value, min_value, max_value, sample_count FROM aggregate_register_hourly WHERE hour_start = ? AND register_id = ?",
		prev, 68,
	).Scan(&avg, &minV, &maxV, &count)
	if err != nil {
		t.Fatalf("query err=%v", err)
	}
	if avg != 20 || minV != 10 || maxV != 30 || count != 3 {
		t.Fatalf("avg=%v min=%v max=%v count=%d", avg, minV, maxV, count)
	}

	var rows int
	db.QueryRow("SELECT COUNT(*) FROM aggregate_register_hourly").Scan(&rows)
	if rows != 2 {
		t.Fatalf("expected 2 aggregate rows, got %d", rows)
	}
}

func TestCleanupOldData(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 6, 1, 0, 30, 0, 0, time.UTC)
	old := now.AddDate(0, -4, 0).Unix()
	recent := now.Add(-2 * time.Hour).Unix()

	insertReading(t, db, old, 60, 1)
	insertReading(t, db, recent, 60, 2)

	// Nothing aggregated yet, nothing removed.
	if deleted, err := cleanupOldData(db, now); err != nil || deleted != 0 {
		t.Fatalf("deleted=%d err=%v", deleted, err)
	}

	if _, err := aggregateRegistersHourly(db, roundToHourStart(time.Unix(recent, 0))); err != nil {
		t.Fatalf("aggregate err=%v", err)
	}
	deleted, err := cleanupOldData(db, now)
	if err != nil || deleted != 1 {
		t.Fatalf("deleted=%d err=%v", deleted, err)
	}
}

func TestAggregateAndCleanup_BackfillsMissedHours(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC).Unix()

	// First run covers 08:00.
	insertReading(t, db, base+60, 68, 1)
	if err := aggregateAndCleanup(db, time.Unix(base+3600+300, 0)); err != nil {
		t.Fatalf("err=%v", err)
	}

	// Collector was down for 09:00 and 10:00; next run happens after 11:00.
	insertReading(t, db, base+3600+60, 68, 2)
	insertReading(t, db, base+2*3600+60, 68, 3)
	insertReading(t, db, base+3*3600+60, 68, 4)
	if err := aggregateAndCleanup(db, time.Unix(base+4*3600+300, 0)); err != nil {
		t.Fatalf("err=%v", err)
	}

	rows, err := db.Query("SELECT hour_start, avg_value FROM aggregate_register_hourly WHERE register_id = 68 ORDER BY hour_start")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var hours []int64
	var values []float64
	for rows.Next() {
		var h int64
		var v float64
		if err := rows.Scan(&h, &v); err != nil {
			t.Fatal(err)
		}
		hours = append(hours, h)
		values = append(values, v)
	}
	if len(hours) != 4 {
		t.Fatalf("hours=%v", hours)
	}
	for i := range hours {
		if hours[i] != base+int64(i)*3600 || values[i] != float64(i+1) {
			t.Fatalf("hour %d: start=%d avg=%v", i, hours[i], values[i])
		}
	}
}

func TestFirstPendingHour_EmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	last := time.Date(2026, 5, 4, 13, 0, 0, 0, time.UTC).Unix()

	first, err := firstPendingHour(db, last)
	if err != nil || first != last {
		t.Fatalf("first=%d err=%v want %d", first, err, last)
	}
}
