package leads

import "errors"

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrMissingOrgID is returned when a lead operation has no organization scope
	ErrMissingOrgID = errors.New("org_id is required")

	// ErrMissingPhone is returned when a merge has no phone number to key on
	ErrMissingPhone = errors.New("phone is required")
)
