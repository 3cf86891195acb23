package input

import "errors"

// ErrNoController is returned when no controller is attached to a channel
var ErrNoController = errors.New("no controller on channel")
