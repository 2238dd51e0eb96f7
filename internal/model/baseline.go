package model

import "time"

// Baseline is the reference response signature for a path that does not
// exist on the origin. It is captured before any worker starts and is
// read-only for the rest of the scan.
type Baseline struct {
	// Origin is the scheme://host[:port] the baseline was captured against.
	Origin string `json:"origin"`

	// Method is the HTTP method used for calibration (GET or HEAD).
	Method string `json:"method"`

	// AcceptEncoding is the Accept-Encoding header sent while calibrating.
	// Sizes are raw wire sizes, so a baseline is only valid for the same value.
	AcceptEncoding string `json:"accept_encoding"`

	// StatusCode is the status of the not-found response.
	StatusCode int `json:"status_code"`

	// Size is the not-found response size in bytes.
	Size int64 `json:"size"`

	// SizeKnown is false when the size could not be established
	// (HEAD without Content-Length).
	SizeKnown bool `json:"size_known"`

	// ContentEncoding is the Content-Encoding of the not-found response,
	// "identity" when absent.
	ContentEncoding string `json:"content_encoding"`

	// Excerpt is the leading bytes of the not-found body.
	Excerpt []byte `json:"excerpt,omitempty"`

	// Signature is the substring that identifies the not-found page.
	Signature string `json:"signature,omitempty"`

	// Fingerprint is the hex SHA3-256 of Excerpt.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Samples is the number of calibration requests that agreed.
	Samples int `json:"samples"`

	// CapturedAt is when the baseline was captured.
	CapturedAt time.Time `json:"captured_at"`
}
