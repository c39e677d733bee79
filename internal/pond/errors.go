package pond

import "errors"

// Domain errors for the pond package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, pond.ErrPondNotFound) {
//	    // handle not found case
//	}
var (
	// ErrPondNotFound is returned when a pond ID does not exist.
	ErrPondNotFound = errors.New("pond: not found")

	// ErrPondExists is returned when creating a pond with an ID that already exists.
	ErrPondExists = errors.New("pond: already exists")

	// ErrInvalidPond is returned when pond validation fails.
	ErrInvalidPond = errors.New("pond: invalid")
)
