package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Settings are the per-worker tuning knobs.
type Settings struct {
	// Origin is recorded on findings and undetermined records.
	Origin string

	// BatchSize is the number of processed indexes between progress events.
	BatchSize int

	// BackoffDelay is the first pause after a blocked response.
	BackoffDelay time.Duration

	// ErrorBackoff is the first pause after a transport error.
	ErrorBackoff time.Duration

	// MaxBackoff caps both backoff sequences.
	MaxBackoff time.Duration

	// MaxRetries is the number of consecutive transport failures after which
	// an index is recorded as undetermined.
	MaxRetries int

	// MaxBlockedRetries is the number of consecutive blocked responses after
	// which an index is recorded as undetermined.
	MaxBlockedRetries int
}

// DefaultSettings returns the default tuning.
func DefaultSettings() Settings {
	return Settings{
		BatchSize:         250,
		BackoffDelay:      5 * time.Second,
		ErrorBackoff:      time.Second,
		MaxBackoff:        time.Minute,
		MaxRetries:        3,
		MaxBlockedRetries: 3,
	}
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.BatchSize <= 0 {
		s.BatchSize = d.BatchSize
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = d.MaxRetries
	}
	if s.MaxBlockedRetries <= 0 {
		s.MaxBlockedRetries = d.MaxBlockedRetries
	}
	if s.MaxBackoff < s.BackoffDelay {
		s.MaxBackoff = s.BackoffDelay
	}
	if s.MaxBackoff < s.ErrorBackoff {
		s.MaxBackoff = s.ErrorBackoff
	}
	return s
}

// newBackOff returns a doubling sequence starting at initial and capped at
// MaxBackoff. It never stops on its own; the retry ceilings end it. Each
// index gets a fresh sequence.
func (s Settings) newBackOff(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = s.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
