package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfigPaths returns, in search order, the directories viper should
// look in for config.yaml.
func DefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("fetching executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("fetching user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		return []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "syncplayer"),
		}, nil
	default:
		return []string{
			filepath.Join(homeDir, ".config", "syncplayer"),
			"/etc/syncplayer",
		}, nil
	}
}
