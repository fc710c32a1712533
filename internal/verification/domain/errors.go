package domain

import "errors"

// Errors returned by Publish before any explorer request is made.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrFlatten        = errors.New("flattening failed")
)

// failure ends a run with a result rather than an error.
type failure struct {
	outcome Outcome
	message string
}

func (f *failure) Error() string {
	return f.message
}
