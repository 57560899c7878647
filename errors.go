package dispatchcore

import "errors"

// Sentinel errors for programmer-error / argument-invalid conditions
// that fail fast rather than producing a typed Result (spec.md §7,
// ArgumentInvalid). Carried in the teacher's sentinel-error-plus-%w style
// (see errors.go in the teacher repo).
var (
	ErrNilMessage       = errors.New("dispatchcore: message must not be nil")
	ErrNilContext       = errors.New("dispatchcore: context must not be nil")
	ErrNilHandler       = errors.New("dispatchcore: next handler must not be nil")
	ErrEmptyMessageType = errors.New("dispatchcore: message type must not be empty")
	ErrHandlerNotFound  = errors.New("dispatchcore: no handler registered for message type")
	ErrNoTransport      = errors.New("dispatchcore: no transport selected")
)
