package autostart

import (
	"os"
	"path/filepath"
)

func plistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", appID+".plist"), nil
}

func enable(execPath string) error {
	path, err := plistPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeEntryFile(path, plistTmpl, execPath)
}

func disable() error {
	path, err := plistPath()
	if err != nil {
		return err
	}
	return removeFile(path)
}

func isEnabled() bool {
	path, err := plistPath()
	if err != nil {
		return false
	}
	return fileExists(path)
}
