//go:build !darwin && !linux && !windows

package autostart

func enable(execPath string) error { return ErrUnsupported }

func disable() error { return ErrUnsupported }

func isEnabled() bool { return false }
