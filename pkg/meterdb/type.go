package meterdb

type MeterDbRegisterReading struct {
	Timestamp  int64   `db:"timestamp"`
	RegisterID uint16  `db:"register_id"`
	Value      float64 `db:"value"`
	Unit       string  `db:"unit"`
}

// Aggregate models - hourly statistics per register
type AggregateRegisterHourly struct {
	HourStart   int64   `db:"hour_start"`
	RegisterID  uint16  `db:"register_id"`
	AvgValue    float64 `db:"avg_value"`
	MinValue    float64 `db:"min_value"`
	MaxValue    float64 `db:"max_value"`
	SampleCount uint32  `db:"sample_count"`
	Unit        string  `db:"unit"`
}
