package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/pathfinder/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.ScanReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, report *model.ScanReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func newTestReport() *model.ScanReport {
	return model.NewScanReport("scan-1", "https://example.com")
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		if p := New(WithContinueOnError(true)); !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		if p := New(WithLogger(nil)); p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	t.Run("adds multiple steps with AddSteps", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "step-1"})
		p.AddSteps(&mockStep{name: "step-2"}, &mockStep{name: "step-3"})

		if p.StepCount() != 3 {
			t.Errorf("expected 3 steps, got %d", p.StepCount())
		}
	})

	t.Run("step names list final steps last", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddFinalStep(&mockStep{name: "persist"})
		p.AddSteps(&mockStep{name: "calibrate"}, &mockStep{name: "enumerate"})

		names := p.StepNames()
		expected := []string{"calibrate", "enumerate", "persist"}
		if len(names) != len(expected) {
			t.Fatalf("expected %d names, got %v", len(expected), names)
		}
		for i, name := range names {
			if name != expected[i] {
				t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
			}
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *model.ScanReport) error {
					order = append(order, name)
					return nil
				},
			}
		}

		p := New()
		p.AddFinalStep(record("final"))
		p.AddSteps(record("step-1"), record("step-2"))

		report := newTestReport()
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "step-1" || order[1] != "step-2" || order[2] != "final" {
			t.Errorf("wrong execution order: %v", order)
		}
		if len(report.PerformedSteps) != 3 {
			t.Errorf("expected 3 performed steps, got %v", report.PerformedSteps)
		}
	})

	t.Run("stops on first error but runs final steps", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		skipped := &mockStep{name: "should-not-run"}
		final := &mockStep{name: "final"}

		p := New()
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *model.ScanReport) error {
				return expectedErr
			},
		})
		p.AddStep(skipped)
		p.AddFinalStep(final)

		report := newTestReport()
		err := p.Execute(context.Background(), report)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if skipped.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if final.callCount != 1 {
			t.Error("final step should have been called")
		}
		if report.ErrorMessage != expectedErr.Error() {
			t.Errorf("expected error message %q, got %q", expectedErr.Error(), report.ErrorMessage)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		next := &mockStep{name: "should-run"}

		p := New(WithContinueOnError(true))
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *model.ScanReport) error {
				return errors.New("step failed")
			},
		})
		p.AddStep(next)

		if err := p.Execute(context.Background(), newTestReport()); err != nil {
			t.Errorf("expected nil error with continueOnError, got %v", err)
		}
		if next.callCount != 1 {
			t.Error("second step should have been called")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		skipped := &mockStep{name: "should-not-run"}
		var finalCtxErr error
		final := &mockStep{
			name: "final",
			doFunc: func(ctx context.Context, _ *model.ScanReport) error {
				finalCtxErr = ctx.Err()
				return nil
			},
		}

		p := New()
		p.AddStep(skipped)
		p.AddFinalStep(final)

		report := newTestReport()
		err := p.Execute(ctx, report)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if skipped.callCount != 0 {
			t.Error("step should not have been called")
		}
		if !report.Cancelled {
			t.Error("report.Cancelled should be true")
		}
		if final.callCount != 1 {
			t.Fatal("final step should run after cancellation")
		}
		if finalCtxErr != nil {
			t.Errorf("final step context should not be cancelled, got %v", finalCtxErr)
		}
	})

	t.Run("final step error is returned when steps succeeded", func(t *testing.T) {
		t.Parallel()

		finalErr := errors.New("disk full")
		p := New()
		p.AddStep(&mockStep{name: "ok"})
		p.AddFinalStep(&mockStep{
			name: "final",
			doFunc: func(_ context.Context, _ *model.ScanReport) error {
				return finalErr
			},
		})

		if err := p.Execute(context.Background(), newTestReport()); !errors.Is(err, finalErr) {
			t.Errorf("expected %v, got %v", finalErr, err)
		}
	})
}
