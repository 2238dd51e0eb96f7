package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/pathfinder/internal/classify"
	"github.com/nao1215/pathfinder/internal/engine"
	"github.com/nao1215/pathfinder/internal/keyspace"
	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/telemetry"
)

// ErrNoBaseline is returned by EnumerateStep when no baseline was resolved.
var ErrNoBaseline = errors.New("enumeration requires a baseline")

// ScanRecorder stores the scan history. *database.Store satisfies it.
type ScanRecorder interface {
	BeginScan(ctx context.Context, r *model.ScanReport) error
	FinishScan(ctx context.Context, r *model.ScanReport) error
}

// BaselineResolver returns the baseline of the scanned origin and whether
// it came from the cache. *baseline.Calibrator satisfies it.
type BaselineResolver interface {
	Resolve(ctx context.Context) (*model.Baseline, bool, error)
}

// RegisterStep records the start of the scan so that interrupted scans
// still appear in the history.
type RegisterStep struct {
	recorder ScanRecorder
}

// NewRegisterStep creates a step that registers the scan with recorder.
func NewRegisterStep(recorder ScanRecorder) *RegisterStep {
	return &RegisterStep{recorder: recorder}
}

// Name returns the step name.
func (s *RegisterStep) Name() string {
	return "register"
}

// Do records the scan start.
func (s *RegisterStep) Do(ctx context.Context, report *model.ScanReport) error {
	return s.recorder.BeginScan(ctx, report)
}

// CalibrateStep resolves the not-found baseline, from the cache or by
// calibrating the origin. A calibration failure is fatal: no worker starts.
type CalibrateStep struct {
	resolver BaselineResolver
	logger   *slog.Logger
}

// NewCalibrateStep creates a calibration step.
func NewCalibrateStep(resolver BaselineResolver, logger *slog.Logger) *CalibrateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalibrateStep{resolver: resolver, logger: logger}
}

// Name returns the step name.
func (s *CalibrateStep) Name() string {
	return "calibrate"
}

// Do stores the baseline in the report.
func (s *CalibrateStep) Do(ctx context.Context, report *model.ScanReport) error {
	b, cached, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	report.Baseline = b
	report.BaselineCached = cached

	s.logger.Info("baseline ready",
		"origin", report.Origin,
		"status", b.StatusCode,
		"size", b.Size,
		"size_known", b.SizeKnown,
		"cached", cached,
	)
	return nil
}

// EnumerateStep partitions the span over the workers, runs them and folds
// their events into the report.
type EnumerateStep struct {
	codec          *keyspace.Codec
	prober         engine.Prober
	strategy       classify.Strategy
	span           keyspace.Range
	workers        int
	classifierOpts []classify.Option
	schedulerOpts  []engine.Option
	aggregatorOpts []telemetry.AggregatorOption
}

// EnumerateStepOption configures an EnumerateStep.
type EnumerateStepOption func(*EnumerateStep)

// WithClassifierOptions passes options to the classifier built from the
// resolved baseline.
func WithClassifierOptions(opts ...classify.Option) EnumerateStepOption {
	return func(s *EnumerateStep) {
		s.classifierOpts = append(s.classifierOpts, opts...)
	}
}

// WithSchedulerOptions passes options to the scheduler.
func WithSchedulerOptions(opts ...engine.Option) EnumerateStepOption {
	return func(s *EnumerateStep) {
		s.schedulerOpts = append(s.schedulerOpts, opts...)
	}
}

// WithAggregatorOptions passes options to the telemetry aggregator.
func WithAggregatorOptions(opts ...telemetry.AggregatorOption) EnumerateStepOption {
	return func(s *EnumerateStep) {
		s.aggregatorOpts = append(s.aggregatorOpts, opts...)
	}
}

// NewEnumerateStep creates a step enumerating span of codec with workers
// concurrent workers.
func NewEnumerateStep(codec *keyspace.Codec, prober engine.Prober, strategy classify.Strategy, span keyspace.Range, workers int, opts ...EnumerateStepOption) *EnumerateStep {
	s := &EnumerateStep{
		codec:    codec,
		prober:   prober,
		strategy: strategy,
		span:     span,
		workers:  workers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *EnumerateStep) Name() string {
	return "enumerate"
}

// Do runs the workers until they drain. A cancelled enumeration is not an
// error: the report is marked cancelled with the index to resume from.
func (s *EnumerateStep) Do(ctx context.Context, report *model.ScanReport) error {
	if report.Baseline == nil {
		return ErrNoBaseline
	}

	classifier, err := classify.New(s.strategy, report.Baseline, s.classifierOpts...)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	ranges, err := keyspace.PartitionSpan(s.span.Start, s.span.End, s.workers)
	if err != nil {
		return err
	}

	report.Alphabet = s.codec.Alphabet().String()
	report.PathLength = s.codec.Length()
	report.Strategy = s.strategy.String()
	report.Workers = len(ranges)
	report.StartIndex = s.span.Start
	report.EndIndex = s.span.End

	scheduler := engine.NewScheduler(s.codec, s.prober, classifier, s.schedulerOpts...)
	aggregator := telemetry.NewAggregator(s.span.Len(), len(ranges), s.aggregatorOpts...)

	report.StartedAt = now()
	summary := aggregator.Consume(ctx, scheduler.Run(ctx, ranges))
	report.FinishedAt = now()

	report.Processed = summary.Processed
	report.TransportErrors = summary.TransportErrors
	report.Findings = append(report.Findings, summary.Findings...)
	report.Undetermined = append(report.Undetermined, summary.UndeterminedRecords...)
	report.Cancelled = summary.Cancelled || summary.ResumeIndex >= 0
	report.ResumeIndex = summary.ResumeIndex
	if summary.ResumeIndex >= 0 {
		report.ResumePath = s.codec.Decode(summary.ResumeIndex)
	}
	return nil
}

// SettleStep closes out a scan that was interrupted before enumeration
// started: the whole span is left to resume and the cancellation is not
// recorded as a failure.
type SettleStep struct {
	codec *keyspace.Codec
	span  keyspace.Range
}

// NewSettleStep creates a settle step for span.
func NewSettleStep(codec *keyspace.Codec, span keyspace.Range) *SettleStep {
	return &SettleStep{codec: codec, span: span}
}

// Name returns the step name.
func (s *SettleStep) Name() string {
	return "settle"
}

// Do is a no-op once enumeration has run or when the scan failed for a
// reason other than cancellation.
func (s *SettleStep) Do(_ context.Context, report *model.ScanReport) error {
	if report.EndIndex != 0 || s.span.Empty() {
		return nil
	}
	if !report.Cancelled && !errors.Is(report.Error, context.Canceled) {
		return nil
	}

	report.Cancelled = true
	report.Error = nil
	report.ErrorMessage = ""
	report.Alphabet = s.codec.Alphabet().String()
	report.PathLength = s.codec.Length()
	report.StartIndex = s.span.Start
	report.EndIndex = s.span.End
	report.ResumeIndex = s.span.Start
	report.ResumePath = s.codec.Decode(s.span.Start)
	return nil
}

// PersistStep stores the finished scan record.
type PersistStep struct {
	recorder ScanRecorder
}

// NewPersistStep creates a step that stores the report with recorder.
func NewPersistStep(recorder ScanRecorder) *PersistStep {
	return &PersistStep{recorder: recorder}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do stores the report. FinishedAt is set when enumeration never ran.
func (s *PersistStep) Do(ctx context.Context, report *model.ScanReport) error {
	if report.FinishedAt.IsZero() {
		report.FinishedAt = now()
	}
	if report.StartedAt.IsZero() {
		report.StartedAt = report.FinishedAt
	}
	return s.recorder.FinishScan(ctx, report)
}
