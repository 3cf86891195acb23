//go:build !windows

// Package osutils provides the platform specific helpers: privilege checks,
// firewall setup and foreground process lookup.
package osutils

import (
	"fmt"
	"log"
	"runtime"
)

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return false
}

// EnsureFirewallRule is a stub for non-Windows platforms
func EnsureFirewallRule(apiPort, auxPort int) error {
	log.Println("Firewall: Automatic rule management is only supported on Windows")
	return nil
}

// ForegroundExecutable is not available outside Windows
func ForegroundExecutable() (string, error) {
	return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
}
