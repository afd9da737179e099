package usecase

import "errors"

var (
	// ErrInvalidInput marks bad or missing input; the caller must fix
	// the request, retrying is pointless.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrNotReady marks an operation against a location lacking the
	// required prior state, e.g. chat before analysis.
	ErrNotReady = errors.New("location not ready")
	// ErrExternal marks an upstream ingestion or classification
	// failure. It is recorded, never retried automatically.
	ErrExternal = errors.New("external service error")
	// ErrInternal marks everything else.
	ErrInternal = errors.New("internal error")
)
