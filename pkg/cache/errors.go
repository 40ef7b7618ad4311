package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCapacity is returned when a requested capacity limit is rejected.
var ErrInvalidCapacity = errors.New("invalid cache size")

// CapacityTooSmallError reports a capacity below the current occupancy.
// The caller has to clear entries before shrinking that far.
type CapacityTooSmallError struct {
	Requested int
	Current   int
}

// Error implements the error interface.
func (e *CapacityTooSmallError) Error() string {
	return fmt.Sprintf("the cache size you are trying to set (%d) is less than current number of items in the cache (%d): free up the cache first",
		e.Requested, e.Current)
}

// Unwrap lets errors.Is match ErrInvalidCapacity.
func (e *CapacityTooSmallError) Unwrap() error {
	return ErrInvalidCapacity
}

// parseCapacity turns a raw operator-supplied value into a capacity.
func parseCapacity(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return 0, fmt.Errorf("%w: max size must be a whole number of at least 1, got %q", ErrInvalidCapacity, raw)
	}
	return value, nil
}
