package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pathfinder/internal/keyspace"
)

// Scheduler starts one worker per range and fans their events into a
// single channel.
type Scheduler struct {
	codec      *keyspace.Codec
	prober     Prober
	classifier Classifier
	settings   Settings
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSettings sets the worker tuning. Zero values fall back to defaults.
func WithSettings(s Settings) Option {
	return func(sc *Scheduler) {
		sc.settings = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *Scheduler) {
		sc.logger = logger
	}
}

// NewScheduler creates a scheduler probing paths of codec with prober and
// judging them with classifier.
func NewScheduler(codec *keyspace.Codec, prober Prober, classifier Classifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		codec:      codec,
		prober:     prober,
		classifier: classifier,
		settings:   DefaultSettings(),
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.settings = s.settings.normalized()
	return s
}

// Run starts one worker per range and returns the event channel. The
// channel is closed after every worker has emitted its DrainedEvent. The
// caller must drain it; workers block until their events are received.
func (s *Scheduler) Run(ctx context.Context, ranges []keyspace.Range) <-chan Event {
	events := make(chan Event, 4*len(ranges)+1)
	emit := func(e Event) { events <- e }

	var g errgroup.Group
	for i, rng := range ranges {
		w := newWorker(i, rng, s)
		g.Go(func() error {
			w.Run(ctx, emit)
			return nil
		})
	}

	go func() {
		_ = g.Wait() //nolint:errcheck // workers never return errors
		close(events)
	}()

	s.logger.Debug("scheduler started", "workers", len(ranges))
	return events
}
