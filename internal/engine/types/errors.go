package types

import "errors"

var (
	// ErrInvalidInput is returned when a submitted URL is rejected.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for ids the registry never issued.
	ErrNotFound = errors.New("job not found")

	// ErrCancelled is returned by fetchers that stop because the user asked them to.
	ErrCancelled = errors.New("cancelled by user")
)
