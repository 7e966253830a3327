package identity

import "errors"

var (
	ErrNoIdentity      = errors.New("caller identity unknown")
	ErrInvalidUsername = errors.New("invalid username")
)
