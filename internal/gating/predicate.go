// Package gating decides per running application whether screen mirroring
// and input redirection are in effect.
package gating

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplicationID is an opaque title identity
type ApplicationID uint64

// String formats the id as a 16 digit hex title id
func (id ApplicationID) String() string {
	return fmt.Sprintf("%016X", uint64(id))
}

// ParseApplicationID parses a hex title id, with or without 0x prefix or dash
func ParseApplicationID(s string) (ApplicationID, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.ReplaceAll(s, "-", "")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid application id %q: %w", s, err)
	}
	return ApplicationID(v), nil
}

// Predicate reports whether an application is one we may affect
type Predicate interface {
	Matches(id ApplicationID) bool
}

// Exact matches a single application
type Exact ApplicationID

// Matches implements Predicate
func (e Exact) Matches(id ApplicationID) bool {
	return ApplicationID(e) == id
}

// Range matches any id in [Lo, Hi] that is not listed in Except
type Range struct {
	Lo     ApplicationID
	Hi     ApplicationID
	Except []ApplicationID
}

// Matches implements Predicate
func (r Range) Matches(id ApplicationID) bool {
	if id < r.Lo || id > r.Hi {
		return false
	}
	for _, ex := range r.Except {
		if ex == id {
			return false
		}
	}
	return true
}

// SystemTitleHigh is the upper word shared by all system application titles
const SystemTitleHigh = 0x00050010

// SystemTitles matches every system application except the listed ones
func SystemTitles(except ...ApplicationID) Range {
	lo := ApplicationID(uint64(SystemTitleHigh) << 32)
	return Range{
		Lo:     lo,
		Hi:     lo | 0xFFFFFFFF,
		Except: except,
	}
}

// Policy names accepted by NewPredicate
const (
	PolicyExact  = "exact"
	PolicySystem = "system"
)

// NewPredicate builds the predicate selected by a policy name
func NewPredicate(policy string, target ApplicationID, except []ApplicationID) (Predicate, error) {
	switch policy {
	case "", PolicyExact:
		return Exact(target), nil
	case PolicySystem:
		return SystemTitles(except...), nil
	default:
		return nil, fmt.Errorf("unknown gating policy: %s", policy)
	}
}
