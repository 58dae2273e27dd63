package calls

import "errors"

var (
	// ErrCallNotFound is returned when neither id space matches a call record.
	ErrCallNotFound = errors.New("calls: call not found")

	// ErrMissingCallID is returned when an operation is given an empty reference.
	ErrMissingCallID = errors.New("calls: call id is required")
)
