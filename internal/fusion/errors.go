package fusion

import "errors"

var (
	// ErrNotInitialized is returned by the stage methods before the first
	// measurement has set the belief.
	ErrNotInitialized = errors.New("filter not initialised")
	// ErrCovarianceNotPD is returned when the augmented covariance has no
	// Cholesky factor.
	ErrCovarianceNotPD = errors.New("augmented covariance is not positive definite")
	// ErrSingularInnovation is returned when an innovation covariance
	// cannot be inverted.
	ErrSingularInnovation = errors.New("innovation covariance is singular")
	// ErrNonFinite is returned for a measurement carrying NaN or Inf, and
	// when a step would leave NaN or Inf in the belief.
	ErrNonFinite = errors.New("non-finite value")
	// ErrSensorMismatch is returned when an update is handed a measurement
	// from the other sensor.
	ErrSensorMismatch = errors.New("measurement sensor does not match update")
)
