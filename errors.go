package goboo

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when an analysis is constructed or invoked
// with parameters that cannot describe a valid computation: non-positive bin
// counts or radii, a minimum radius at or above the maximum, or a degenerate
// box. It is always returned synchronously, before any parallel work starts.
var ErrInvalidArgument = errors.New("invalid argument")

// DimensionError indicates that two arrays which must be aligned
// element-by-element (for example positions and orientations) have different
// lengths.
type DimensionError struct {
	Name             string
	Expected, Actual int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: %s has length %d, expected %d",
		e.Name, e.Actual, e.Expected)
}

// CheckLen returns a DimensionError if actual differs from expected.
func CheckLen(name string, expected, actual int) error {
	if expected != actual {
		return &DimensionError{Name: name, Expected: expected, Actual: actual}
	}
	return nil
}
