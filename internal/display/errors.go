package display

import "errors"

// ErrOutOfMemory is returned when a surface allocation cannot be served
var ErrOutOfMemory = errors.New("out of surface memory")
