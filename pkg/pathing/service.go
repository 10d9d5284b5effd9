package pathing

import (
	"os"
	"path/filepath"
)

const (
	EnvConfigDir = "KAMSTRUP_CONFIG_DIR"
	EnvDataDir   = "KAMSTRUP_DATA_DIR"
)

// EnsureDirs creates the directories the binaries write to.
func EnsureDirs() error {
	// Directories that must exist:
	dirs := []string{
		GetConfigDir(),
		GetDataDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "kamstrup-meter.db")
}

func GetDataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	return "/var/lib/kamstrup_meter"
}

func GetConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	return "/etc/kamstrup_meter"
}
