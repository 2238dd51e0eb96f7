package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/pathfinder/internal/classify"
	"github.com/nao1215/pathfinder/internal/keyspace"
	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/probe"
)

// Prober issues one request per path. *probe.Client satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
}

// Classifier turns a response into a verdict. *classify.Classifier satisfies it.
type Classifier interface {
	Classify(r *probe.Result) classify.Verdict
}

// State is the lifecycle state of a worker.
type State int32

const (
	// Running means the worker is probing.
	Running State = iota

	// PausedBackoff means the worker is waiting before re-probing an index.
	PausedBackoff

	// Drained means the worker has finished or was cancelled.
	Drained
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case PausedBackoff:
		return "paused_backoff"
	case Drained:
		return "drained"
	default:
		return "unknown"
	}
}

// ErrPanic wraps a panic recovered while probing or classifying.
var ErrPanic = errors.New("recovered panic")

// Worker enumerates one range. It is driven by Run and is not reusable.
type Worker struct {
	id         int
	rng        keyspace.Range
	codec      *keyspace.Codec
	prober     Prober
	classifier Classifier
	settings   Settings
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time

	state           atomic.Int32
	cursor          int64
	processed       int64
	transportErrors int64
	lastPath        string
}

func newWorker(id int, rng keyspace.Range, s *Scheduler) *Worker {
	return &Worker{
		id:         id,
		rng:        rng,
		codec:      s.codec,
		prober:     s.prober,
		classifier: s.classifier,
		settings:   s.settings,
		logger:     s.logger.With("worker", id),
		sleep:      s.sleep,
		now:        s.now,
		cursor:     rng.Start,
	}
}

// State returns the current state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// outcome of resolving one index.
type outcome int

const (
	resolved outcome = iota
	interrupted
)

// Run probes the range until it is exhausted or ctx is cancelled. emit is
// called synchronously for every event; the last one is always a
// DrainedEvent, preceded by a ProgressEvent unless the last batch already
// reported the final count.
func (w *Worker) Run(ctx context.Context, emit func(Event)) {
	w.setState(Running)
	cancelled := false

	for w.cursor < w.rng.End {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		path := w.codec.Decode(w.cursor)
		if w.resolve(ctx, w.cursor, path, emit) == interrupted {
			cancelled = true
			break
		}

		w.cursor++
		w.processed++
		w.lastPath = path
		if w.processed%int64(w.settings.BatchSize) == 0 {
			emit(w.progress())
		}
	}

	w.setState(Drained)
	if w.processed == 0 || w.processed%int64(w.settings.BatchSize) != 0 {
		emit(w.progress())
	}
	emit(DrainedEvent{
		WorkerID:  w.id,
		Range:     w.rng,
		Cursor:    w.cursor,
		Processed: w.processed,
		Cancelled: cancelled,
	})
	w.logger.Debug("worker drained",
		"range", w.rng.String(),
		"cursor", w.cursor,
		"processed", w.processed,
		"cancelled", cancelled,
	)
}

// resolve probes index until it is classified or its retries run out.
func (w *Worker) resolve(ctx context.Context, index int64, path string, emit func(Event)) outcome {
	var (
		attempts int
		failures int
		blocks   int
		lastErr  error
	)
	errBackOff := w.settings.newBackOff(w.settings.ErrorBackoff)
	blockBackOff := w.settings.newBackOff(w.settings.BackoffDelay)

	for {
		if ctx.Err() != nil {
			return interrupted
		}
		attempts++

		res, verdict, err := w.attempt(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return interrupted
			}
			w.transportErrors++
			failures++
			lastErr = err
			w.logger.Debug("probe failed", "path", path, "attempt", attempts, "error", err)

			if failures >= w.settings.MaxRetries {
				w.giveUp(index, path, model.ReasonTransport, attempts, lastErr, emit)
				return resolved
			}
			if w.pause(ctx, errBackOff.NextBackOff()) != nil {
				return interrupted
			}
			continue
		}
		failures = 0
		errBackOff.Reset()

		switch verdict.Class {
		case model.Match:
			emit(MatchEvent{WorkerID: w.id, Finding: w.finding(index, res, verdict)})
			return resolved

		case model.Blocked:
			blocks++
			if blocks >= w.settings.MaxBlockedRetries {
				w.giveUp(index, path, model.ReasonBlocked, attempts, lastErr, emit)
				return resolved
			}
			delay := blockBackOff.NextBackOff()
			w.logger.Warn("blocked response, backing off",
				"path", path, "status", res.StatusCode, "delay", delay, "attempt", blocks)
			if w.pause(ctx, delay) != nil {
				return interrupted
			}

		default:
			return resolved
		}
	}
}

// attempt probes and classifies path once. A panic in either step is
// reported as an error for this attempt.
func (w *Worker) attempt(ctx context.Context, path string) (res *probe.Result, v classify.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("recovered panic while probing", "path", path, "panic", r)
			res = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	res, err = w.prober.Probe(ctx, path)
	if err != nil {
		return nil, v, err
	}
	return res, w.classifier.Classify(res), nil
}

func (w *Worker) pause(ctx context.Context, d time.Duration) error {
	w.setState(PausedBackoff)
	defer w.setState(Running)
	return w.sleep(ctx, d)
}

func (w *Worker) giveUp(index int64, path string, reason model.UndeterminedReason, attempts int, lastErr error, emit func(Event)) {
	rec := model.Undetermined{
		Origin:     w.settings.Origin,
		Path:       path,
		Index:      index,
		Reason:     reason,
		Attempts:   attempts,
		WorkerID:   w.id,
		RecordedAt: w.now(),
	}
	if lastErr != nil {
		rec.LastError = lastErr.Error()
	}
	w.logger.Warn("giving up on index", "path", path, "reason", reason, "attempts", attempts)
	emit(UndeterminedEvent{WorkerID: w.id, Record: rec})
}

func (w *Worker) finding(index int64, res *probe.Result, v classify.Verdict) model.Finding {
	size := res.Size
	if !res.SizeKnown {
		size = -1
	}
	f := model.Finding{
		Origin:     w.settings.Origin,
		Path:       res.Path,
		Index:      index,
		StatusCode: res.StatusCode,
		Size:       size,
		Diff:       v.Diff,
		WorkerID:   w.id,
		FoundAt:    w.now(),
	}
	if f.Path == "" {
		f.Path = w.codec.Decode(index)
	}
	if len(res.Excerpt) > 0 {
		f.Title = probe.Title(res.Excerpt)
		f.Fingerprint = probe.Fingerprint(res.Excerpt)
	}
	return f
}

func (w *Worker) progress() ProgressEvent {
	return ProgressEvent{
		WorkerID:        w.id,
		Processed:       w.processed,
		TransportErrors: w.transportErrors,
		Cursor:          w.cursor,
		LastPath:        w.lastPath,
		At:              w.now(),
	}
}
