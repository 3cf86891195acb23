package bridge

import (
	"errors"

	"padbridge/internal/config"
)

var (
	// ErrNotFound is what a Store returns for a toggle it never stored
	ErrNotFound = config.ErrNotFound

	// ErrMenuItem is returned when a toggle cannot be added to the UI
	ErrMenuItem = errors.New("failed to add menu item")
)
