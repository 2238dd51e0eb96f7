package keyspace

import "errors"

// Keyspace errors. All of them are configuration errors: they are detected
// before any request is sent.
var (
	// ErrAlphabetTooSmall is returned when an alphabet has fewer than two symbols.
	ErrAlphabetTooSmall = errors.New("alphabet must contain at least two symbols")

	// ErrDuplicateSymbol is returned when a symbol appears twice in an alphabet.
	ErrDuplicateSymbol = errors.New("alphabet symbols must be distinct")

	// ErrInvalidLength is returned when the path length is not positive.
	ErrInvalidLength = errors.New("path length must be at least 1")

	// ErrSpaceOverflow is returned when alphabet^length does not fit in an int64.
	ErrSpaceOverflow = errors.New("path space exceeds the supported index range")

	// ErrPathLength is returned by Encode for a path of the wrong length.
	ErrPathLength = errors.New("path length does not match codec length")

	// ErrUnknownSymbol is returned by Encode for a symbol outside the alphabet.
	ErrUnknownSymbol = errors.New("path contains a symbol outside the alphabet")

	// ErrInvalidWorkers is returned when a partition is requested for fewer than one worker.
	ErrInvalidWorkers = errors.New("worker count must be at least 1")

	// ErrInvalidSpan is returned when a span has a negative start or start > end.
	ErrInvalidSpan = errors.New("invalid index span")
)
