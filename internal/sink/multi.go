package sink

import (
	"context"
	"errors"

	"github.com/nao1215/pathfinder/internal/model"
)

// Recorder is anything that persists findings.
type Recorder interface {
	RecordFinding(ctx context.Context, f model.Finding) error
	RecordUndetermined(ctx context.Context, u model.Undetermined) error
}

// Multi writes every record to all of its recorders. A failing recorder
// does not stop the others; the errors are joined.
type Multi []Recorder

// RecordFinding writes f to every recorder.
func (m Multi) RecordFinding(ctx context.Context, f model.Finding) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordFinding(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordUndetermined writes u to every recorder.
func (m Multi) RecordUndetermined(ctx context.Context, u model.Undetermined) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordUndetermined(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
