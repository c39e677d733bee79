package feeder

import "errors"

// Domain errors for the feeder package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, feeder.ErrInvalidSchedule) {
//	    // handle validation failure
//	}
var (
	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("feeder: invalid schedule")

	// ErrInvalidControl is returned when control record validation fails.
	ErrInvalidControl = errors.New("feeder: invalid control")

	// ErrStoreUnavailable is returned when the persistence layer cannot
	// service a request. Callers treat this as non-fatal: the triggering
	// bus message is logged and dropped while broadcasting proceeds.
	ErrStoreUnavailable = errors.New("feeder: store unavailable")
)
