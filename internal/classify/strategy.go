package classify

import (
	"errors"
	"fmt"
)

// Strategy selects how a non-blocked response is compared to the baseline.
type Strategy int

const (
	// SizeDelta matches 2xx responses whose size differs from the baseline
	// by more than the tolerance.
	SizeDelta Strategy = iota

	// SignatureAbsence matches 2xx responses whose excerpt lacks the
	// baseline signature.
	SignatureAbsence

	// Combined matches only when both SizeDelta and SignatureAbsence do.
	Combined
)

// ErrUnknownStrategy is returned by ParseStrategy for an unrecognised name.
var ErrUnknownStrategy = errors.New("unknown classification strategy")

// ParseStrategy converts a strategy name as used on the command line.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "size-delta", "":
		return SizeDelta, nil
	case "signature-absence":
		return SignatureAbsence, nil
	case "combined":
		return Combined, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// String returns the command-line name of the strategy.
func (s Strategy) String() string {
	switch s {
	case SizeDelta:
		return "size-delta"
	case SignatureAbsence:
		return "signature-absence"
	case Combined:
		return "combined"
	default:
		return "unknown"
	}
}

// NeedsSignature reports whether the strategy compares response bodies
// against the baseline signature.
func (s Strategy) NeedsSignature() bool {
	return s == SignatureAbsence || s == Combined
}
