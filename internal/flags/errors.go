package flags

import "errors"

// Sentinel errors returned by constructors and setters. Persistence
// failures are never reported through errors; Save returns false instead.
var (
	// ErrInvalidName reports a unit, section, name, or tag value that
	// violates the identifier grammar (see ValidName).
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidParameter reports a malformed load request: an empty
	// filename, or a flag file missing one of the mandatory fields.
	ErrInvalidParameter = errors.New("invalid parameter")
)
