package aggregator

import (
	"database/sql"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/meterdb"
	"github.com/rs/zerolog/log"
)

// Raw readings older than this are removed once they have been aggregated.
const rawRetentionMonths = 3

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// getHourEnd returns the Unix timestamp of the last second of the hour (next hour start - 1)
func getHourEnd(hourStart int64) int64 {
	return time.Unix(hourStart, 0).Add(time.Hour).Unix() - 1
}

// aggregateRegistersHourly stores per register statistics for a specific hour
func aggregateRegistersHourly(db *sql.DB, hourStart int64) (int, error) {
	hourEnd := getHourEnd(hourStart)

	query := `
		SELECT
			register_id,
			AVG(value) as avg_value,
			MIN(value) as min_value,
			MAX(value) as max_value,
			COUNT(*) as count,
			MAX(unit) as unit
		FROM register_readings
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY register_id
	`

	rows, err := db.Query(query, hourStart, hourEnd)
	if err != nil {
		return 0, err
	}

	var aggregates []meterdb.AggregateRegisterHourly
	for rows.Next() {
		a := meterdb.AggregateRegisterHourly{HourStart: hourStart}
		if err := rows.Scan(&a.RegisterID, &a.AvgValue, &a.MinValue, &a.MaxValue, &a.SampleCount, &a.Unit); err != nil {
			rows.Close()
			return 0, err
		}
		aggregates = append(aggregates, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	insertQuery := `
		INSERT OR REPLACE INTO aggregate_register_hourly
		(hour_start, register_id, avg_value, min_value, max_value, sample_count, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, a := range aggregates {
		_, err := db.Exec(insertQuery, a.HourStart, a.RegisterID, a.AvgValue, a.MinValue, a.MaxValue, a.SampleCount, a.Unit)
		if err != nil {
			return 0, err
		}
	}
	return len(aggregates), nil
}

// cleanupOldData removes raw readings older than the retention window if we have aggregated them
func cleanupOldData(db *sql.DB, now time.Time) (int64, error) {
	cutoff := now.UTC().AddDate(0, -rawRetentionMonths, 0)
	cutoffTimestamp := cutoff.Unix()

	// Only clean up if aggregates reach past the cutoff point
	var lastAggregateHour sql.NullInt64
	err := db.QueryRow("SELECT MAX(hour_start) FROM aggregate_register_hourly").Scan(&lastAggregateHour)
	if err != nil {
		return 0, err
	}
	if !lastAggregateHour.Valid || lastAggregateHour.Int64 < cutoffTimestamp {
		return 0, nil
	}

	res, err := db.Exec("DELETE FROM register_readings WHERE timestamp < ?", cutoffTimestamp)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		log.Info().Int64("rows", deleted).Str("before", cutoff.Format(time.RFC3339)).Msg("Cleaned up old readings")
	}
	return deleted, nil
}

// AggregateAndCleanup performs all aggregation and cleanup tasks
// This is the main function to call for data aggregation
func AggregateAndCleanup() error {
	return aggregateAndCleanup(meterdb.GetDB(), time.Now().UTC())
}

func aggregateAndCleanup(db *sql.DB, now time.Time) error {
	// The current hour is still ongoing, the previous one is the last complete hour
	lastHour := roundToHourStart(now.Add(-time.Hour))

	firstHour, err := firstPendingHour(db, lastHour)
	if err != nil {
		log.Error().Err(err).Msg("Error finding hours to aggregate")
		return err
	}

	log.Info().
		Str("from", time.Unix(firstHour, 0).UTC().Format(time.RFC3339)).
		Str("to", time.Unix(lastHour, 0).UTC().Format(time.RFC3339)).
		Msg("Aggregating data")

	count := 0
	for hourStart := firstHour; hourStart <= lastHour; hourStart += 3600 {
		n, err := aggregateRegistersHourly(db, hourStart)
		if err != nil {
			log.Error().Err(err).Msg("Error aggregating hourly register values")
			return err
		}
		count += n
	}

	if _, err := cleanupOldData(db, now); err != nil {
		log.Error().Err(err).Msg("Error cleaning up old data")
		return err
	}

	log.Info().Int("aggregates", count).Msg("Aggregation and cleanup completed successfully")
	return nil
}

// firstPendingHour is the hour after the newest aggregate, or the hour of the
// oldest raw reading when nothing has been aggregated yet. lastHour is always
// redone so readings that arrived late are included.
func firstPendingHour(db *sql.DB, lastHour int64) (int64, error) {
	var lastAggregate sql.NullInt64
	if err := db.QueryRow("SELECT MAX(hour_start) FROM aggregate_register_hourly").Scan(&lastAggregate); err != nil {
		return 0, err
	}
	if lastAggregate.Valid {
		return min(lastAggregate.Int64+3600, lastHour), nil
	}

	var oldestReading sql.NullInt64
	if err := db.QueryRow("SELECT MIN(timestamp) FROM register_readings").Scan(&oldestReading); err != nil {
		return 0, err
	}
	if !oldestReading.Valid {
		return lastHour, nil
	}
	return min(roundToHourStart(time.Unix(oldestReading.Int64, 0)), lastHour), nil
}
