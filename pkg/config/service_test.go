package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
)

func TestLoadKamstrupAPIConfig_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kamstrup_api.toml")

	cfg, err := LoadKamstrupAPIConfigFrom(path)
	if err != nil {
		t.Fatalf("load err=%v", err)
	}
	if cfg.Baudrate != 1200 || cfg.ReadTimeout() != time.Second || cfg.ScanInterval() != time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	again, err := LoadKamstrupAPIConfigFrom(path)
	if err != nil {
		t.Fatalf("reload err=%v", err)
	}
	if len(again.Registers) != len(cfg.Registers) || again.SerialDevice != cfg.SerialDevice {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}

func TestLoadKamstrupAPIConfig_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kamstrup_api.toml")
	content := `serial_device = "/dev/ttyACM0"
read_timeout_seconds = 2.5
scan_interval_seconds = 300
registers = [60, 68, 1004]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadKamstrupAPIConfigFrom(path)
	if err != nil {
		t.Fatalf("load err=%v", err)
	}
	if cfg.SerialDevice != "/dev/ttyACM0" || cfg.ReadTimeout() != 2500*time.Millisecond {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if cfg.Baudrate != 1200 {
		t.Fatalf("missing field should keep default, got %d", cfg.Baudrate)
	}
	want := []kmp.RegisterID{60, 68, 1004}
	if len(cfg.Registers) != len(want) {
		t.Fatalf("registers=%v", cfg.Registers)
	}
	for i := range want {
		if cfg.Registers[i] != want[i] {
			t.Fatalf("registers=%v", cfg.Registers)
		}
	}
}

func TestKamstrupAPIConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *KamstrupAPIConfig)
	}{
		{"timeout too small", func(c *KamstrupAPIConfig) { c.ReadTimeoutSeconds = 0.1 }},
		{"timeout too large", func(c *KamstrupAPIConfig) { c.ReadTimeoutSeconds = 6 }},
		{"interval too small", func(c *KamstrupAPIConfig) { c.ScanIntervalSeconds = 10 }},
		{"interval too large", func(c *KamstrupAPIConfig) { c.ScanIntervalSeconds = 86401 }},
		{"no device", func(c *KamstrupAPIConfig) { c.SerialDevice = "" }},
		{"no baudrate", func(c *KamstrupAPIConfig) { c.Baudrate = 0 }},
	}
	if err := DefaultKamstrupAPIConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultKamstrupAPIConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadKamstrupAPIConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kamstrup_api.toml")
	if err := os.WriteFile(path, []byte("scan_interval_seconds = 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKamstrupAPIConfigFrom(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadMeterCollectorConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter_collector.toml")
	cfg, err := LoadMeterCollectorConfigFrom(path)
	if err != nil {
		t.Fatalf("load err=%v", err)
	}
	if cfg.KamstrupAPIHost != "localhost:9040" || cfg.AggregateInterval() != time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
