package config

import (
	"os"
	"path/filepath"
)

// AppName names the per-user directories.
const AppName = "saverx"

// GetAppDir returns the configuration root: $XDG_CONFIG_HOME/saverx when set,
// otherwise ~/.config/saverx.
func GetAppDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// GetStateDir holds runtime files such as the instance lock and port file.
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

// DefaultDownloadDir is where finished files land unless settings override it.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "SaverX_Downloads")
	}
	return filepath.Join(home, "Downloads", "SaverX_Downloads")
}

// EnsureDirs creates the app, logs and state directories.
func EnsureDirs() error {
	for _, dir := range []string{GetAppDir(), GetLogsDir(), GetStateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
