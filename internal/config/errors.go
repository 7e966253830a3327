package config

import "errors"

// Sentinel error kinds returned by Load and Validate.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrLoadConfig    = errors.New("cannot load configuration")
)
