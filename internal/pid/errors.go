package pid

import "errors"

// Configuration errors returned by New.
var (
	// ErrInvalidBounds indicates Min is greater than Max or either is NaN.
	ErrInvalidBounds = errors.New("pid: invalid target bounds")

	// ErrInvalidSaturation indicates a non-positive output saturation.
	ErrInvalidSaturation = errors.New("pid: saturation must be positive")

	// ErrInvalidIntegralLimit indicates a negative or NaN integral threshold.
	ErrInvalidIntegralLimit = errors.New("pid: max integral error must be non-negative")

	// ErrNilCollaborator indicates a missing sensor or actuator.
	ErrNilCollaborator = errors.New("pid: sensor and actuator are required")
)
