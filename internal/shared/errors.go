package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCompanyRequired is the one fatal input error of the reporting
	// pipeline: a report cannot be scoped without a company.
	ErrCompanyRequired = errors.New("company id required")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
