package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrInvalidLimit   = errors.New("invalid list limit")
	ErrMissingUser    = errors.New("user id is required")
	ErrMissingItemKey = errors.New("item key is required")
	ErrMissingSubject = errors.New("signal subject is required")
	ErrMissingDSN     = errors.New("database dsn is required")
)
