package scoring

import "errors"

// ErrInvalidResult is returned when a result object cannot be decoded.
var ErrInvalidResult = errors.New("invalid game result")
