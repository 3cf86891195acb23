package osutils

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned by helpers the OS cannot provide.
	// It matches errors.ErrUnsupported.
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform: %w", errors.ErrUnsupported)

	// ErrNoForegroundWindow is returned when no window has focus
	ErrNoForegroundWindow = errors.New("no foreground window")
)
