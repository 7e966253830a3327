package kv

import "errors"

var (
	ErrNotFound = errors.New("kv: key not found")
	ErrQuota    = errors.New("kv: quota exceeded")
	ErrCorrupt  = errors.New("kv: value is not valid JSON")
)
