package observable

import (
	"errors"
	"fmt"
)

// Observation errors.
var (
	ErrInvalidKey      = errors.New("invalid key")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidLength   = errors.New("invalid sequence length")
	ErrNotSequence     = errors.New("target is not a sequence")
	ErrNotMethod       = errors.New("property is not a method")
)

// HandlerError reports a subscriber callback failure.
type HandlerError struct {
	Phase Phase
	Key   any
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler for key %v: %v", e.Phase, e.Key, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
