package primary

import "errors"

// Programmer errors: the caller asked for something that cannot exist.
var (
	ErrUnknownTask     = errors.New("unknown task type")
	ErrUnknownStep     = errors.New("unknown processing step")
	ErrInvalidArgument = errors.New("invalid argument")
)
