package timerwheel

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidParameter rejects a Schedule call with a bad interval, fire
	// budget, or payload size.
	ErrInvalidParameter = errors.New("timerwheel: invalid parameter")

	// ErrCapacityExceeded means the node arena has no free slot.
	ErrCapacityExceeded = errors.New("timerwheel: capacity exceeded")

	// ErrInvalidHandle means the handle's slot index is malformed: zero or
	// beyond the configured capacity.
	ErrInvalidHandle = errors.New("timerwheel: invalid handle")

	// ErrStaleHandle means the handle's slot exists but no longer holds the
	// timer the handle was issued for, either because the timer was removed
	// or because the slot has since been recycled under a newer generation.
	ErrStaleHandle = errors.New("timerwheel: stale handle")

	// ErrLayoutMismatch means an Attach found a header whose recorded
	// geometry disagrees with the caller's expectation.
	ErrLayoutMismatch = errors.New("timerwheel: layout mismatch")

	// ErrInsufficientSize means the supplied region is smaller than
	// TotalSize requires.
	ErrInsufficientSize = errors.New("timerwheel: region too small")

	// ErrClockRegression means a new expiry would land behind the wheel's
	// current time, which indicates a broken clock source.
	ErrClockRegression = errors.New("timerwheel: clock went backwards")
)
