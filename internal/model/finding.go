package model

import (
	"fmt"
	"time"
)

// Finding is a persisted match: a candidate path whose response differs
// from the baseline. Once emitted it is never modified.
type Finding struct {
	// Origin is the scanned origin.
	Origin string `json:"origin"`

	// Path is the candidate path without the leading slash.
	Path string `json:"path"`

	// Index is the path's position in the index space.
	Index int64 `json:"index"`

	// StatusCode is the response status.
	StatusCode int `json:"status_code"`

	// Size is the observed response size in bytes, -1 when unknown.
	Size int64 `json:"size"`

	// Diff is the absolute size difference from the baseline.
	Diff int64 `json:"diff"`

	// Title is the page <title>, when the excerpt contained one.
	Title string `json:"title,omitempty"`

	// Fingerprint is the hex SHA3-256 of the body excerpt.
	Fingerprint string `json:"fingerprint,omitempty"`

	// WorkerID identifies the worker that found the path.
	WorkerID int `json:"worker_id"`

	// FoundAt is when the match was classified.
	FoundAt time.Time `json:"found_at"`
}

// URL returns the full URL of the finding.
func (f Finding) URL() string {
	return f.Origin + "/" + f.Path
}

// LogLine renders the finding as one line of the append-only findings log.
func (f Finding) LogLine() string {
	return fmt.Sprintf("%s MATCH /%s status=%d size=%d diff=%d\n",
		f.FoundAt.UTC().Format(time.RFC3339), f.Path, f.StatusCode, f.Size, f.Diff)
}

// UndeterminedReason explains why an index could not be classified.
type UndeterminedReason string

const (
	// ReasonTransport means every attempt failed at the transport level.
	ReasonTransport UndeterminedReason = "transport"

	// ReasonBlocked means every attempt was answered with a challenge or 429.
	ReasonBlocked UndeterminedReason = "blocked"
)

// Undetermined records an index that exhausted its retries. It is kept so
// that completeness can be audited after the scan.
type Undetermined struct {
	// Origin is the scanned origin.
	Origin string `json:"origin"`

	// Path is the candidate path without the leading slash.
	Path string `json:"path"`

	// Index is the path's position in the index space.
	Index int64 `json:"index"`

	// Reason is why the index was given up.
	Reason UndeterminedReason `json:"reason"`

	// Attempts is the number of probes issued for the index.
	Attempts int `json:"attempts"`

	// LastError is the last transport error, if any.
	LastError string `json:"last_error,omitempty"`

	// WorkerID identifies the worker that gave up.
	WorkerID int `json:"worker_id"`

	// RecordedAt is when the index was given up.
	RecordedAt time.Time `json:"recorded_at"`
}

// LogLine renders the record as one line of the append-only findings log.
func (u Undetermined) LogLine() string {
	return fmt.Sprintf("%s UNDETERMINED /%s reason=%s attempts=%d\n",
		u.RecordedAt.UTC().Format(time.RFC3339), u.Path, u.Reason, u.Attempts)
}
