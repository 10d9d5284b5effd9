package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/kamstrup_meter/pkg/pathing"
	"github.com/NotCoffee418/kamstrup_meter/pkg/registers"
)

var (
	ActiveKamstrupAPIConfig    *KamstrupAPIConfig
	ActiveMeterCollectorConfig *MeterCollectorConfig
)

func DefaultKamstrupAPIConfig() *KamstrupAPIConfig {
	return &KamstrupAPIConfig{
		SerialDevice:        "/dev/ttyUSB0",
		Baudrate:            1200,
		ReadTimeoutSeconds:  1.0,
		ScanIntervalSeconds: 60,
		ListenAddress:       "0.0.0.0",
		ListenPort:          9040,
		Registers:           registers.Defaults(),
	}
}

func DefaultMeterCollectorConfig() *MeterCollectorConfig {
	return &MeterCollectorConfig{
		KamstrupAPIHost:          "localhost:9040",
		TLSEnabled:               false,
		AggregateIntervalMinutes: 60,
	}
}

func LoadKamstrupAPIConfig() error {
	cfg, err := LoadKamstrupAPIConfigFrom(filepath.Join(pathing.GetConfigDir(), "kamstrup_api.toml"))
	if err != nil {
		return err
	}
	ActiveKamstrupAPIConfig = cfg
	return nil
}

func LoadMeterCollectorConfig() error {
	cfg, err := LoadMeterCollectorConfigFrom(filepath.Join(pathing.GetConfigDir(), "meter_collector.toml"))
	if err != nil {
		return err
	}
	ActiveMeterCollectorConfig = cfg
	return nil
}

// LoadKamstrupAPIConfigFrom reads configPath, writing the defaults there first
// if the file does not exist.
func LoadKamstrupAPIConfigFrom(configPath string) (*KamstrupAPIConfig, error) {
	cfg := DefaultKamstrupAPIConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

func LoadMeterCollectorConfigFrom(configPath string) (*MeterCollectorConfig, error) {
	cfg := DefaultMeterCollectorConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// Fields missing from an existing file keep the values already in cfg.
func loadOrCreate(configPath string, cfg any) error {
	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		return toml.NewEncoder(cfgFile).Encode(cfg)
	}

	// Load existing config
	_, err := toml.DecodeFile(configPath, cfg)
	return err
}

func (c *KamstrupAPIConfig) Validate() error {
	if c.SerialDevice == "" {
		return fmt.Errorf("serial_device is required")
	}
	if c.Baudrate == 0 {
		return fmt.Errorf("baudrate must be > 0")
	}
	if c.ReadTimeoutSeconds < 0.5 || c.ReadTimeoutSeconds > 5.0 {
		return fmt.Errorf("read_timeout_seconds must be between 0.5 and 5.0, got %v", c.ReadTimeoutSeconds)
	}
	if c.ScanIntervalSeconds < 60 || c.ScanIntervalSeconds > 86400 {
		return fmt.Errorf("scan_interval_seconds must be between 60 and 86400, got %d", c.ScanIntervalSeconds)
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port out of range: %d", c.ListenPort)
	}
	return nil
}

func (c *KamstrupAPIConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds * float64(time.Second))
}

func (c *KamstrupAPIConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

func (c *MeterCollectorConfig) Validate() error {
	if c.KamstrupAPIHost == "" {
		return fmt.Errorf("kamstrup_api_host is required")
	}
	if c.AggregateIntervalMinutes <= 0 {
		return fmt.Errorf("aggregate_interval_minutes must be > 0")
	}
	return nil
}

func (c *MeterCollectorConfig) AggregateInterval() time.Duration {
	return time.Duration(c.AggregateIntervalMinutes) * time.Minute
}
