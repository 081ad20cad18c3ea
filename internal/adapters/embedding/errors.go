package embedding

import "errors"

var (
	// ErrLoadModel wraps any failure while loading vocabulary or weights.
	ErrLoadModel = errors.New("failed to load embedding model")
	// ErrUnknownProvider is returned for an unsupported backend name.
	ErrUnknownProvider = errors.New("unknown embedder provider")
	// ErrEncode wraps backend failures during Encode.
	ErrEncode = errors.New("failed to encode texts")
)
