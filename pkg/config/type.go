package config

import "github.com/NotCoffee418/kamstrup_meter/pkg/kmp"

type MeterCollectorConfig struct {
	KamstrupAPIHost          string `toml:"kamstrup_api_host" json:"kamstrup_api_host"`
	TLSEnabled               bool   `toml:"tls_enabled" json:"tls_enabled"`
	AggregateIntervalMinutes int    `toml:"aggregate_interval_minutes" json:"aggregate_interval_minutes"`
}

type KamstrupAPIConfig struct {
	SerialDevice string `toml:"serial_device" json:"serial_device"`
	Baudrate     uint   `toml:"baudrate" json:"baudrate"`
	// Wait for each byte from the meter, 0.5 to 5 seconds.
	ReadTimeoutSeconds float64 `toml:"read_timeout_seconds" json:"read_timeout_seconds"`
	// Time between poll cycles, 60 to 86400 seconds.
	ScanIntervalSeconds int              `toml:"scan_interval_seconds" json:"scan_interval_seconds"`
	ListenAddress       string           `toml:"listen_address" json:"listen_address"`
	ListenPort          int              `toml:"listen_port" json:"listen_port"`
	Registers           []kmp.RegisterID `toml:"registers" json:"registers"`
}
