package catalog

import "errors"

// ErrUpstream is returned for any failed catalog call: non-2xx status,
// transport error, deadline expiry, undecodable body or an open circuit.
var ErrUpstream = errors.New("catalog upstream error")

// errCallerDone marks failures caused by the caller's context ending. They
// do not count against the circuit breaker.
var errCallerDone = errors.New("caller context done")
