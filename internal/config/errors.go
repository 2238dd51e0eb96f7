package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() before any network traffic.
// Callers can use errors.Is() to tell them apart.
var (
	// ErrNoOrigin is returned when no origin is specified.
	ErrNoOrigin = errors.New("no origin specified: provide a base URL such as https://example.com")

	// ErrInvalidOrigin is returned when the origin is not an absolute http(s) URL.
	ErrInvalidOrigin = errors.New("invalid origin: must be an absolute http or https URL without query or fragment")

	// ErrInvalidPathLength is returned when the path length is not positive.
	ErrInvalidPathLength = errors.New("invalid path length: must be at least 1")

	// ErrInvalidAlphabet is returned when the alphabet has fewer than two
	// symbols or repeats a symbol.
	ErrInvalidAlphabet = errors.New("invalid alphabet: need at least two distinct symbols")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be at least 1")

	// ErrInvalidTolerance is returned when the size tolerance is negative.
	ErrInvalidTolerance = errors.New("invalid tolerance: must be non-negative")

	// ErrInvalidStartIndex is returned when the resume point is outside the index space.
	ErrInvalidStartIndex = errors.New("invalid start index: must be inside the path space")

	// ErrInvalidStartPath is returned when the start path does not belong to the path space.
	ErrInvalidStartPath = errors.New("invalid start path: length or symbols do not match the path space")

	// ErrInvalidBatchSize is returned when the progress batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBackoff is returned when a backoff delay is negative or the
	// maximum backoff is smaller than a base delay.
	ErrInvalidBackoff = errors.New("invalid backoff: delays must be non-negative and not exceed the maximum")

	// ErrInvalidRetries is returned when a retry ceiling is below 1.
	ErrInvalidRetries = errors.New("invalid retry ceiling: must be at least 1")

	// ErrInvalidStrategy is returned for an unknown classification strategy.
	ErrInvalidStrategy = errors.New("invalid strategy: must be size-delta, signature-absence or combined")

	// ErrInvalidMethod is returned for a probe method other than GET or HEAD.
	ErrInvalidMethod = errors.New("invalid method: must be GET or HEAD")

	// ErrHeadWithSignature is returned when HEAD is combined with a strategy
	// that needs the response body.
	ErrHeadWithSignature = errors.New("HEAD cannot be used with a signature-based strategy: use GET")

	// ErrInvalidExcerptSize is returned when the excerpt size is not positive.
	ErrInvalidExcerptSize = errors.New("invalid excerpt size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSamples is returned when fewer than one calibration sample is requested.
	ErrInvalidSamples = errors.New("invalid calibration samples: must be at least 1")

	// ErrInvalidConnections is returned when the connection pool size is not positive.
	ErrInvalidConnections = errors.New("invalid connection limit: must be positive")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")
)
