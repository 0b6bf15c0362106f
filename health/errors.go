package health

import "errors"

var (
	// ErrCheckFailed is the cause attached to results that fail without an
	// underlying error, such as a heap over budget.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is attached when a check outlives the aggregator timeout.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckerNotFound is returned by Aggregator.Check for an unregistered name.
	ErrCheckerNotFound = errors.New("health: no checker registered under that name")
)
