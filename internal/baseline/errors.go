package baseline

import "errors"

var (
	// ErrCalibration is the root of every calibration failure. It is fatal:
	// no worker may start without a baseline.
	ErrCalibration = errors.New("calibration failed")

	// ErrNonDeterministic is returned when calibration samples disagree.
	ErrNonDeterministic = errors.New("not-found responses are not deterministic")

	// ErrNoSignature is returned when a signature strategy is selected but
	// no signature is configured and the not-found page has no title.
	ErrNoSignature = errors.New("no not-found signature available: configure one with --signature")

	// ErrSignatureNotFound is returned when the signature is absent from the
	// not-found page it is supposed to identify.
	ErrSignatureNotFound = errors.New("signature does not appear in the not-found page")

	// ErrBlockedDuringCalibration is returned when the target rate limits
	// the calibration requests.
	ErrBlockedDuringCalibration = errors.New("target answered calibration with 429 Too Many Requests")
)
