package models

import "errors"

// Every sentinel is prefixed with "hyperspectral:". Callers wrap them with
// fmt.Errorf("context: %w", ErrX) and match with errors.Is.
//
// Structural errors (ErrInvalidRegion, ErrBandIndexOutOfRange, ErrInvalidParams,
// ErrDimensionMismatch, ErrTooFewSamples) are returned before any numeric work.
// The numeric ones are normally carried as a Warning instead of an error.
var (
	// ErrInvalidRegion is returned for a region outside the cube extent or with
	// start >= end on either axis. Out-of-range single pixels use it too.
	ErrInvalidRegion = errors.New("hyperspectral: invalid region")

	// ErrBandIndexOutOfRange is returned for a band index outside [0, bands).
	ErrBandIndexOutOfRange = errors.New("hyperspectral: band index out of range")

	// ErrUndefinedStatistic marks a mean or angle with no valid contributing
	// values (empty filtered set or zero-norm vector).
	ErrUndefinedStatistic = errors.New("hyperspectral: undefined statistic")

	// ErrConvergenceNotReached marks a k-means run stopped by its iteration cap.
	ErrConvergenceNotReached = errors.New("hyperspectral: convergence not reached")

	// ErrNumericalInstability marks an eigendecomposition whose imaginary
	// residue exceeded the configured tolerance.
	ErrNumericalInstability = errors.New("hyperspectral: numerical instability")

	// ErrDimensionMismatch is returned when vector or matrix shapes disagree.
	ErrDimensionMismatch = errors.New("hyperspectral: dimension mismatch")

	// ErrTooFewSamples is returned when an operation needs more input vectors
	// than it was given.
	ErrTooFewSamples = errors.New("hyperspectral: too few samples")

	// ErrInvalidParams is returned for out-of-range tuning parameters.
	ErrInvalidParams = errors.New("hyperspectral: invalid parameters")
)
