// Package conf loads syncplayer configuration from a YAML file, environment
// variables, and built-in defaults using viper.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings holds the full runtime configuration for a syncplayer instance.
type Settings struct {
	Debug bool // true to enable debug-level logging

	Device struct {
		Name    string // playback device ID, passed to the backend as is (no name matching); empty selects the system default
		Backend string // malgo backend name: "", "alsa", "wasapi", "coreaudio"; not read, the backend is chosen per OS
	}

	Audio struct {
		SampleRate int // output sample rate in Hz
		Channels   int // output channel count
		BitDepth   int // output bit depth, 16 or 32
		Volume     int // initial volume, 0-100
	}

	// Sync is loaded and defaulted but not passed to the drift corrector,
	// which uses fixed constants with these same default values.
	Sync struct {
		DeadbandMicros      int64   // |error| below this is left uncorrected
		ReanchorMicros      int64   // |error| above this triggers a hard re-anchor
		ReanchorCooldownSec float64 // minimum seconds between re-anchors
		MaxCorrectionPct    float64 // proportional correction cadence cap, fraction of sample rate
	}

	Calibrator struct {
		Enabled         bool   // true to run acoustic cross-correlation calibration
		CaptureDevice   string // capture device ID, passed to the backend as is (no name matching); empty selects the system default
		ReferenceSignal string // path to a reference signal file; not read, no reference signal is loaded or generated
	}

	Metrics struct {
		Enabled bool   // true to expose a Prometheus metrics endpoint
		Listen  string // address to listen on, e.g. ":9110"
	}

	Log LogSettings
}

// LogSettings configures the rotated JSON log file.
type LogSettings struct {
	Path       string // JSON log file path
	Level      string // "trace", "debug", "info", "warn", "error"; not read, the log level comes from Debug
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	settingsInstance *Settings
	settingsOnce     sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads configuration from the default search paths (creating a
// default config file if none exists) and environment variables, and
// returns the resulting Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(settings)

	settingsInstance = settings
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("SYNCPLAYER")
	viper.AutomaticEnv()

	configPaths, err := DefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("resolving default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if ok := isConfigFileNotFound(err, &notFound); ok {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

func isConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	asErr, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = asErr
	}
	return ok
}

func createDefaultConfig(dir string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("reading embedded default config: %v", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

// Setting returns the process-wide Settings, loading it on first access.
func Setting() *Settings {
	settingsOnce.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("loading settings: %v", err)
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
