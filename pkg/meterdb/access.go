package meterdb

import (
	"database/sql"

	"github.com/NotCoffee418/kamstrup_meter/pkg/coordinator"
)

// InsertSnapshot stores every register that returned a value.
// Absent registers are skipped.
func InsertSnapshot(snap *coordinator.Snapshot) error {
	return insertSnapshot(GetDB(), snap)
}

func GetRegisterReadings(registerID uint16, from, to int64) ([]MeterDbRegisterReading, error) {
	return getRegisterReadings(GetDB(), registerID, from, to)
}

func insertSnapshot(db *sql.DB, snap *coordinator.Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO register_readings (timestamp, register_id, value, unit) " +
			"VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	timestamp := snap.Timestamp.Unix()
	for id, v := range snap.Values {
		if !v.Valid {
			continue
		}
		if _, err := stmt.Exec(timestamp, uint16(id), v.Value, v.Unit); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func getRegisterReadings(db *sql.DB, registerID uint16, from, to int64) ([]MeterDbRegisterReading, error) {
	rows, err := db.Query(
		"SELECT timestamp, register_id, value, unit FROM register_readings "+
			"WHERE register_id = ? AND timestamp >= ? AND timestamp <= ? "+
			"ORDER BY timestamp",
		registerID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []MeterDbRegisterReading
	for rows.Next() {
		var r MeterDbRegisterReading
		if err := rows.Scan(&r.Timestamp, &r.RegisterID, &r.Value, &r.Unit); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
