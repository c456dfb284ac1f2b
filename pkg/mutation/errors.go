package mutation

import "errors"

// Mutation errors.
var (
	ErrUnknownKind   = errors.New("unknown mutation kind")
	ErrSourceClosed  = errors.New("mutation source closed")
	ErrBindingClosed = errors.New("mutation binding closed")
)
