package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/pathfinder/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the report to modify.
	// Returns an error if the step fails critically; non-critical errors
	// should be recorded in the report and return nil.
	Do(ctx context.Context, report *model.ScanReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// final steps run after steps regardless of their outcome.
	final []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
		final: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after every regular step, even
// when one of them failed or ctx was cancelled. Final steps receive a
// context that is not cancelled with ctx.
func (p *Pipeline) AddFinalStep(step Step) {
	p.final = append(p.final, step)
}

// Execute runs all pipeline steps in sequence, then the final steps.
//
// Cancellation is checked before each regular step. A cancelled pipeline
// marks the report cancelled and returns ctx.Err() after running the final
// steps. The first step error is returned unless continueOnError is set;
// it is also recorded in the report.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	err := p.run(ctx, report)

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.final {
		if ferr := p.do(finalCtx, step, report); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, report *model.ScanReport) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.Cancelled = true
			return ctx.Err()
		default:
		}

		if err := p.do(ctx, step, report); err != nil && !p.continueOnError {
			return err
		}
	}
	return nil
}

func (p *Pipeline) do(ctx context.Context, step Step, report *model.ScanReport) error {
	p.logger.Info("executing step",
		"step", step.Name(),
		"origin", report.Origin,
	)

	if err := step.Do(ctx, report); err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"origin", report.Origin,
			"error", err,
		)
		if report.Error == nil {
			report.Error = err
			report.ErrorMessage = err.Error()
		}
		return err
	}

	p.logger.Debug("step completed",
		"step", step.Name(),
		"origin", report.Origin,
	)
	report.PerformedSteps = append(report.PerformedSteps, step.Name())
	return nil
}

// StepCount returns the number of regular steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order, final
// steps last.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps)+len(p.final))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.final {
		names = append(names, step.Name())
	}
	return names
}
