package switcher

import "errors"

// ErrVetoed is returned when a panel switch is refused
var ErrVetoed = errors.New("panel switch vetoed")
