// Package fusion owns the single-object state estimator that fuses LiDAR
// position fixes and radar range/bearing/range-rate returns.
//
// Responsibilities: belief initialisation from the first reading,
// sigma-point prediction through the constant turn rate and velocity
// (CTRV) motion model, a linear LiDAR correction and an unscented radar
// correction. Key types: UKF, Measurement, Config, Step.
//
// The estimator is synchronous and owns its belief exclusively; callers
// deliver measurements in non-decreasing timestamp order.
//
// Dependency rule: fusion may depend on config and monitoring only. File
// parsing, scoring and persistence live in measurements, evaluation and
// storage.
package fusion
