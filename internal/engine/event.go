package engine

import (
	"time"

	"github.com/nao1215/pathfinder/internal/keyspace"
	"github.com/nao1215/pathfinder/internal/model"
)

// Event is emitted by workers. The concrete types are ProgressEvent,
// MatchEvent, UndeterminedEvent and DrainedEvent.
type Event interface {
	// Worker returns the id of the emitting worker.
	Worker() int

	event()
}

// ProgressEvent reports cumulative worker progress. It is emitted every
// batch of processed indexes and once more when the worker drains.
type ProgressEvent struct {
	WorkerID int

	// Processed is the number of indexes this worker has finished.
	// It never decreases.
	Processed int64

	// TransportErrors is the number of failed probe attempts so far.
	TransportErrors int64

	// Cursor is the next index the worker will probe.
	Cursor int64

	// LastPath is the most recently processed path.
	LastPath string

	At time.Time
}

// MatchEvent carries a finding.
type MatchEvent struct {
	WorkerID int
	Finding  model.Finding
}

// UndeterminedEvent carries an index that exhausted its retries.
type UndeterminedEvent struct {
	WorkerID int
	Record   model.Undetermined
}

// DrainedEvent is the last event of a worker.
type DrainedEvent struct {
	WorkerID int

	// Range is the worker's assigned range.
	Range keyspace.Range

	// Cursor is the first index not processed; Range.End when complete.
	Cursor int64

	// Processed is the final processed count.
	Processed int64

	// Cancelled reports whether the worker stopped before its range end.
	Cancelled bool
}

func (e ProgressEvent) Worker() int { return e.WorkerID }
func (e MatchEvent) Worker() int { return e.WorkerID }
func (e UndeterminedEvent) Worker() int { return e.WorkerID }
func (e DrainedEvent) Worker() int { return e.WorkerID }

func (ProgressEvent) event() {}
func (MatchEvent) event() {}
func (UndeterminedEvent) event() {}
func (DrainedEvent) event() {}
