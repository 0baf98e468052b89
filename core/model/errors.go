package model

import "errors"

var (
	// ErrInvalidCriteria is returned for malformed or out-of-range match requests.
	ErrInvalidCriteria = errors.New("invalid match criteria")
	// ErrNoAvailableResponders means the candidate set was empty after filtering.
	ErrNoAvailableResponders = errors.New("no available responders")
	// ErrCapacityExceeded is returned when a reservation races with another match.
	ErrCapacityExceeded = errors.New("responder capacity exceeded")
	// ErrMatchTimeout means the request exceeded its wait budget.
	ErrMatchTimeout = errors.New("match timeout")
	// ErrDependencyUnavailable wraps profile store or registry lookup failures.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrResponderNotFound is returned for unknown responder identifiers.
	ErrResponderNotFound = errors.New("responder not found")
)
