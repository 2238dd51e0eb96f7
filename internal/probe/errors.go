package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidOrigin is returned by NewClient for an origin that is not an
	// absolute http or https URL.
	ErrInvalidOrigin = errors.New("invalid origin")

	// ErrInvalidProxyAddress is returned when the proxy is neither host:port
	// nor a socks5:// URL.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port or socks5://[user:pass@]host:port")

	// ErrInvalidMethod is returned for methods other than GET and HEAD.
	ErrInvalidMethod = errors.New("invalid probe method: must be GET or HEAD")
)

// TransportError reports a probe that produced no usable response:
// connection refused or reset, DNS failure, timeout, or a body read error.
type TransportError struct {
	// Path is the probed path.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("probe %q: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the probe exceeded its deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
