package repository

import "errors"

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("record already exists")
	ErrUnavailable = errors.New("remote store unavailable")
)
