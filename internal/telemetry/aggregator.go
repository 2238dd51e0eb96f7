package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/pathfinder/internal/engine"
	"github.com/nao1215/pathfinder/internal/model"
)

// Sink persists findings and undetermined records.
type Sink interface {
	RecordFinding(ctx context.Context, f model.Finding) error
	RecordUndetermined(ctx context.Context, u model.Undetermined) error
}

// Renderer displays progress.
type Renderer interface {
	// Render shows an intermediate snapshot.
	Render(s Snapshot)

	// Finish shows the final summary.
	Finish(s Summary)
}

type workerState struct {
	processed       int64
	transportErrors int64
	drained         bool
}

// Aggregator folds worker events into scan-wide counters.
type Aggregator struct {
	total    int64
	workers  int
	sink     Sink
	renderer Renderer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithSink forwards every finding and undetermined record to sink.
func WithSink(sink Sink) AggregatorOption {
	return func(a *Aggregator) {
		a.sink = sink
	}
}

// WithRenderer renders progress every interval and the final summary.
func WithRenderer(r Renderer, interval time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.renderer = r
		if interval > 0 {
			a.interval = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an aggregator for a span of total indexes
// enumerated by workers workers.
func NewAggregator(total int64, workers int, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		total:    total,
		workers:  workers,
		interval: 2 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Consume reads events until the channel closes and returns the summary.
// Sink writes use a context detached from ctx's cancellation so that
// findings reported while shutting down are still persisted.
func (a *Aggregator) Consume(ctx context.Context, events <-chan engine.Event) Summary {
	start := a.now()
	sinkCtx := context.WithoutCancel(ctx)

	perWorker := make(map[int]*workerState, a.workers)
	state := func(id int) *workerState {
		ws, ok := perWorker[id]
		if !ok {
			ws = &workerState{}
			perWorker[id] = ws
		}
		return ws
	}

	sum := Summary{
		Snapshot:    Snapshot{Total: a.total, Workers: a.workers},
		ResumeIndex: -1,
	}

	var tick <-chan time.Time
	if a.renderer != nil {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	snapshot := func() Snapshot {
		s := sum.Snapshot
		s.Processed, s.TransportErrors = 0, 0
		for _, ws := range perWorker {
			s.Processed += ws.processed
			s.TransportErrors += ws.transportErrors
		}
		s.Elapsed = a.now().Sub(start)
		computeRates(&s)
		return s
	}

	for {
		select {
		case e, ok := <-events:
			if !ok {
				sum.Snapshot = snapshot()
				if a.renderer != nil {
					a.renderer.Finish(sum)
				}
				return sum
			}

			switch ev := e.(type) {
			case engine.ProgressEvent:
				ws := state(ev.WorkerID)
				if ev.Processed > ws.processed {
					ws.processed = ev.Processed
				}
				if ev.TransportErrors > ws.transportErrors {
					ws.transportErrors = ev.TransportErrors
				}
				if ev.LastPath != "" {
					sum.LastPath = ev.LastPath
				}

			case engine.MatchEvent:
				sum.Matches++
				sum.Findings = append(sum.Findings, ev.Finding)
				a.logger.Info("match", "path", ev.Finding.Path, "status", ev.Finding.StatusCode, "diff", ev.Finding.Diff)
				if a.sink != nil {
					if err := a.sink.RecordFinding(sinkCtx, ev.Finding); err != nil {
						a.logger.Error("failed to record finding", "path", ev.Finding.Path, "error", err)
					}
				}

			case engine.UndeterminedEvent:
				sum.Undetermined++
				sum.UndeterminedRecords = append(sum.UndeterminedRecords, ev.Record)
				if a.sink != nil {
					if err := a.sink.RecordUndetermined(sinkCtx, ev.Record); err != nil {
						a.logger.Error("failed to record undetermined index", "path", ev.Record.Path, "error", err)
					}
				}

			case engine.DrainedEvent:
				ws := state(ev.WorkerID)
				if !ws.drained {
					ws.drained = true
					sum.Drained++
				}
				if ev.Processed > ws.processed {
					ws.processed = ev.Processed
				}
				if ev.Cancelled {
					sum.Cancelled = true
				}
				if ev.Cursor < ev.Range.End && (sum.ResumeIndex < 0 || ev.Cursor < sum.ResumeIndex) {
					sum.ResumeIndex = ev.Cursor
				}
				if sum.Drained == a.workers {
					a.logger.Debug("all workers drained", "workers", a.workers)
				}
			}

		case <-tick:
			a.renderer.Render(snapshot())
		}
	}
}
