package baseline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/probe"
)

// Target is the origin being calibrated.
// *probe.Client satisfies it.
type Target interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
	Origin() string
	Method() string
	AcceptEncoding() string
}

// Cache stores baselines between runs. LoadBaseline returns (nil, nil)
// when nothing is cached for the key.
type Cache interface {
	LoadBaseline(ctx context.Context, origin, method, acceptEncoding string) (*model.Baseline, error)
	SaveBaseline(ctx context.Context, b *model.Baseline) error
}

// Calibrator captures the baseline of one target.
type Calibrator struct {
	target          Target
	samples         int
	tolerance       int64
	signature       string
	needsSignature  bool
	cache           Cache
	recalibrate     bool
	logger          *slog.Logger
	now             func() time.Time
	calibrationPath func(sample int) string
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithSamples sets the number of agreeing requests. Values below 1 are ignored.
func WithSamples(n int) Option {
	return func(c *Calibrator) {
		if n >= 1 {
			c.samples = n
		}
	}
}

// WithTolerance sets how far sample sizes may drift from each other.
func WithTolerance(bytes int64) Option {
	return func(c *Calibrator) {
		c.tolerance = bytes
	}
}

// WithSignature sets an explicit not-found signature.
func WithSignature(sig string) Option {
	return func(c *Calibrator) {
		c.signature = sig
	}
}

// WithSignatureRequired makes a missing signature a calibration failure.
// Signature-based strategies need it.
func WithSignatureRequired(required bool) Option {
	return func(c *Calibrator) {
		c.needsSignature = required
	}
}

// WithCache enables the baseline cache.
func WithCache(cache Cache) Option {
	return func(c *Calibrator) {
		c.cache = cache
	}
}

// WithRecalibrate ignores cached baselines. Fresh baselines are still saved.
func WithRecalibrate(recalibrate bool) Option {
	return func(c *Calibrator) {
		c.recalibrate = recalibrate
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calibrator) {
		c.logger = logger
	}
}

// NewCalibrator creates a calibrator for target.
func NewCalibrator(target Target, opts ...Option) *Calibrator {
	c := &Calibrator{
		target:  target,
		samples: 2,
		logger:  slog.Default(),
		now:     time.Now,
	}
	c.calibrationPath = func(sample int) string {
		return fmt.Sprintf("CALIBRATION_LOCK_%d_%d", c.now().UnixNano(), sample)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns a cached baseline when one exists for the target and
// recalibration was not requested, and calibrates otherwise. The second
// result reports whether the baseline came from the cache. Cache failures
// are logged and fall back to calibration.
func (c *Calibrator) Resolve(ctx context.Context) (*model.Baseline, bool, error) {
	if c.cache != nil && !c.recalibrate {
		cached, err := c.cache.LoadBaseline(ctx, c.target.Origin(), c.target.Method(), c.target.AcceptEncoding())
		switch {
		case err != nil:
			c.logger.Warn("failed to load cached baseline", "origin", c.target.Origin(), "error", err)
		case cached != nil && c.usable(cached):
			c.logger.Debug("using cached baseline", "origin", cached.Origin, "captured_at", cached.CapturedAt)
			return cached, true, nil
		}
	}

	b, err := c.Calibrate(ctx)
	if err != nil {
		return nil, false, err
	}

	if c.cache != nil {
		if err := c.cache.SaveBaseline(ctx, b); err != nil {
			c.logger.Warn("failed to save baseline", "origin", b.Origin, "error", err)
		}
	}
	return b, false, nil
}

// usable reports whether a cached baseline satisfies the current signature
// settings.
func (c *Calibrator) usable(b *model.Baseline) bool {
	if c.signature != "" && b.Signature != c.signature {
		return false
	}
	if c.needsSignature && b.Signature == "" {
		return false
	}
	return true
}

// Calibrate probes the target with paths that cannot exist and returns
// the agreed not-found baseline. Every failure wraps ErrCalibration.
func (c *Calibrator) Calibrate(ctx context.Context) (*model.Baseline, error) {
	results := make([]*probe.Result, 0, c.samples)
	for i := range c.samples {
		path := c.calibrationPath(i)
		res, err := c.target.Probe(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: probing %s: %w", ErrCalibration, path, err)
		}
		if res.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", ErrCalibration, ErrBlockedDuringCalibration)
		}
		results = append(results, res)
	}

	first := results[0]
	for _, r := range results[1:] {
		if err := c.agree(first, r); err != nil {
			return nil, fmt.Errorf("%w: %w: %v", ErrCalibration, ErrNonDeterministic, err)
		}
	}

	encoding := first.ContentEncoding
	if encoding == "" {
		encoding = "identity"
	}

	b := &model.Baseline{
		Origin:          c.target.Origin(),
		Method:          c.target.Method(),
		AcceptEncoding:  c.target.AcceptEncoding(),
		StatusCode:      first.StatusCode,
		Size:            first.Size,
		SizeKnown:       first.SizeKnown,
		ContentEncoding: encoding,
		Excerpt:         first.Excerpt,
		Fingerprint:     probe.Fingerprint(first.Excerpt),
		Samples:         len(results),
		CapturedAt:      c.now(),
	}

	sig, err := c.deriveSignature(results)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalibration, err)
	}
	b.Signature = sig

	if b.StatusCode >= 200 && b.StatusCode < 300 {
		c.logger.Warn("missing paths answer with a success status; relying on size and signature",
			"origin", b.Origin, "status", b.StatusCode)
	}
	c.logger.Debug("calibrated",
		"origin", b.Origin,
		"status", b.StatusCode,
		"size", b.Size,
		"encoding", b.ContentEncoding,
		"signature", b.Signature,
		"fingerprint", b.Fingerprint,
	)
	return b, nil
}

func (c *Calibrator) agree(a, b *probe.Result) error {
	if a.StatusCode != b.StatusCode {
		return fmt.Errorf("status %d vs %d", a.StatusCode, b.StatusCode)
	}
	if a.SizeKnown != b.SizeKnown {
		return fmt.Errorf("size known for only one of %s and %s", a.Path, b.Path)
	}
	if !a.SizeKnown {
		return nil
	}
	diff := a.Size - b.Size
	if diff < 0 {
		diff = -diff
	}
	if diff > c.tolerance {
		return fmt.Errorf("size %d vs %d exceeds tolerance %d", a.Size, b.Size, c.tolerance)
	}
	return nil
}

// deriveSignature picks the configured signature or, when one is required,
// the title of the not-found page. A signature must occur in every sample.
func (c *Calibrator) deriveSignature(results []*probe.Result) (string, error) {
	sig := c.signature
	if sig == "" {
		title := probe.Title(results[0].Excerpt)
		if title == "" || !bytes.Contains(results[0].Excerpt, []byte(title)) {
			if c.needsSignature {
				return "", ErrNoSignature
			}
			return "", nil
		}
		sig = title
	}

	for _, r := range results {
		if !bytes.Contains(r.Excerpt, []byte(sig)) {
			if !c.needsSignature && c.signature == "" {
				return "", nil
			}
			return "", fmt.Errorf("%w: %q", ErrSignatureNotFound, sig)
		}
	}
	return sig, nil
}
