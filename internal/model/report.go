package model

import "time"

// ScanReport is the result of one scan run.
// It is filled in step by step by the scan pipeline and finally rendered
// by the report writers and stored in the database.
type ScanReport struct {
	// ID is the unique scan identifier.
	ID string `json:"id"`

	// Origin is the scanned origin.
	Origin string `json:"origin"`

	// Alphabet and PathLength define the index space.
	Alphabet   string `json:"alphabet"`
	PathLength int    `json:"path_length"`

	// Strategy is the classification strategy name.
	Strategy string `json:"strategy"`

	// Method is the probe method.
	Method string `json:"method"`

	// Workers is the number of workers.
	Workers int `json:"workers"`

	// StartIndex and EndIndex bound the scanned span [StartIndex, EndIndex).
	StartIndex int64 `json:"start_index"`
	EndIndex   int64 `json:"end_index"`

	// Baseline is the not-found signature used by this scan.
	Baseline *Baseline `json:"baseline,omitempty"`

	// BaselineCached is true when the baseline came from the cache.
	BaselineCached bool `json:"baseline_cached"`

	// StartedAt and FinishedAt bound the enumeration phase.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Processed is the number of indexes classified or given up.
	Processed int64 `json:"processed"`

	// TransportErrors is the number of failed probe attempts.
	TransportErrors int64 `json:"transport_errors"`

	// Findings holds every match, in the order they were reported.
	Findings []Finding `json:"findings"`

	// Undetermined holds every index that exhausted its retries.
	Undetermined []Undetermined `json:"undetermined"`

	// Cancelled is true when the scan was stopped before covering its span.
	Cancelled bool `json:"cancelled"`

	// ResumeIndex is the lowest index not yet covered by every worker.
	// Only meaningful when Cancelled is true.
	ResumeIndex int64 `json:"resume_index"`

	// ResumePath is ResumeIndex decoded to a path.
	ResumePath string `json:"resume_path,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the fatal error that ended the scan, if any.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewScanReport creates an empty report for origin.
func NewScanReport(id, origin string) *ScanReport {
	return &ScanReport{
		ID:             id,
		Origin:         origin,
		Findings:       make([]Finding, 0),
		Undetermined:   make([]Undetermined, 0),
		PerformedSteps: make([]string, 0),
	}
}

// Total returns the number of indexes in the scanned span.
func (r *ScanReport) Total() int64 {
	return r.EndIndex - r.StartIndex
}

// Elapsed returns the duration of the enumeration phase.
func (r *ScanReport) Elapsed() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Throughput returns processed indexes per second over the whole run.
func (r *ScanReport) Throughput() float64 {
	elapsed := r.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(r.Processed) / elapsed
}

// HasFindings reports whether at least one match was found.
func (r *ScanReport) HasFindings() bool {
	return len(r.Findings) > 0
}

// Complete reports whether every index of the span was processed.
func (r *ScanReport) Complete() bool {
	return !r.Cancelled && r.Error == nil && r.Processed == r.Total()
}
