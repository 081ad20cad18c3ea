package service

import "errors"

// Sentinel kinds returned by the recommendation pipeline. The HTTP layer
// maps each kind to a status code and a fixed message.
var (
	ErrUpstream        = errors.New("upstream service unavailable")
	ErrNoSignal        = errors.New("no reading history yet")
	ErrEmptyCandidates = errors.New("catalog returned no items")
	ErrNoDescription   = errors.New("no catalog item has a description")
	ErrValidation      = errors.New("invalid input")
	ErrNotStarted      = errors.New("service not started")
)
