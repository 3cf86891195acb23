package config

import "errors"

var (
	// ErrNotFound is returned when a setting has never been stored
	ErrNotFound = errors.New("setting not found")

	// ErrInvalidKey is returned when a setting key is empty
	ErrInvalidKey = errors.New("invalid setting key")
)
