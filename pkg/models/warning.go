package models

import "fmt"

// Condition identifies a non-fatal numeric condition
type Condition int

const (
	// UndefinedStatistic marks a mean or angle with no valid contributing value
	UndefinedStatistic Condition = iota

	// ConvergenceNotReached marks a k-means run stopped by its iteration cap
	ConvergenceNotReached

	// NumericalInstability marks an eigendecomposition whose residue exceeded
	// tolerance or whose basis lost rank
	NumericalInstability
)

func (c Condition) String() string {
	switch c {
	case UndefinedStatistic:
		return "UndefinedStatistic"
	case ConvergenceNotReached:
		return "ConvergenceNotReached"
	case NumericalInstability:
		return "NumericalInstability"
	default:
		return fmt.Sprintf("Condition(%d)", int(c))
	}
}

// Warning annotates a result that was produced despite a numeric edge case
type Warning struct {
	Kind    Condition
	Message string
}

// NewWarning formats a warning message
func NewWarning(kind Condition, format string, args ...any) Warning {
	return Warning{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Err returns the warning as an error wrapping the sentinel of its kind
func (w Warning) Err() error {
	var sentinel error
	switch w.Kind {
	case UndefinedStatistic:
		sentinel = ErrUndefinedStatistic
	case ConvergenceNotReached:
		sentinel = ErrConvergenceNotReached
	case NumericalInstability:
		sentinel = ErrNumericalInstability
	default:
		return fmt.Errorf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Errorf("%w: %s", sentinel, w.Message)
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
