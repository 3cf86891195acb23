package autostart

import (
	"os"
	"path/filepath"
)

func desktopPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autostart", "padbridge.desktop"), nil
}

func enable(execPath string) error {
	path, err := desktopPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeEntryFile(path, desktopTmpl, execPath)
}

func disable() error {
	path, err := desktopPath()
	if err != nil {
		return err
	}
	return removeFile(path)
}

func isEnabled() bool {
	path, err := desktopPath()
	if err != nil {
		return false
	}
	return fileExists(path)
}
