package telemetry

import (
	"time"

	"github.com/nao1215/pathfinder/internal/model"
)

// Snapshot is the scan state at one instant.
type Snapshot struct {
	// Total is the number of indexes in the scanned span.
	Total int64

	// Processed is the number of indexes finished by all workers.
	Processed int64

	Matches         int64
	Undetermined    int64
	TransportErrors int64

	// Workers is the number of workers; Drained how many have finished.
	Workers int
	Drained int

	// LastPath is the most recently reported path.
	LastPath string

	Elapsed time.Duration

	// Throughput is processed indexes per second.
	Throughput float64

	// ETA is the estimated time to finish, 0 when unknown.
	ETA time.Duration
}

// Percent returns the completed share of the span in percent.
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 100
	}
	return float64(s.Processed) / float64(s.Total) * 100
}

// Summary is the final state returned when the event stream ends.
type Summary struct {
	Snapshot

	// Cancelled reports whether any worker stopped before its range end.
	Cancelled bool

	// ResumeIndex is the lowest cursor among unfinished workers: restarting
	// there covers every unprocessed index. -1 when the scan completed.
	ResumeIndex int64

	Findings            []model.Finding
	UndeterminedRecords []model.Undetermined
}

// Complete reports whether every index was processed.
func (s Summary) Complete() bool {
	return !s.Cancelled && s.ResumeIndex < 0
}

func computeRates(s *Snapshot) {
	secs := s.Elapsed.Seconds()
	if secs <= 0 || s.Processed == 0 {
		s.Throughput = 0
		s.ETA = 0
		return
	}
	s.Throughput = float64(s.Processed) / secs
	remaining := s.Total - s.Processed
	if remaining <= 0 {
		s.ETA = 0
		return
	}
	s.ETA = time.Duration(float64(remaining) / s.Throughput * float64(time.Second))
}
