package classify

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/probe"
)

var (
	// ErrNoBaseline is returned by New without a baseline.
	ErrNoBaseline = errors.New("classifier needs a baseline")

	// ErrNoSignature is returned by New when a signature strategy is paired
	// with a baseline that has no signature.
	ErrNoSignature = errors.New("strategy needs a baseline signature")
)

// Verdict is the outcome of classifying one response.
type Verdict struct {
	// Class is the classification.
	Class model.Classification

	// Diff is the absolute size difference from the baseline, 0 when either
	// size is unknown.
	Diff int64
}

// Classifier compares responses with a fixed baseline. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	strategy  Strategy
	baseline  *model.Baseline
	signature []byte
	tolerance int64
	markers   [][]byte
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTolerance sets the size difference that still counts as the
// not-found page.
func WithTolerance(bytes int64) Option {
	return func(c *Classifier) {
		c.tolerance = bytes
	}
}

// WithBlockMarkers sets the excerpt substrings that identify challenge
// pages. Matching is case-insensitive.
func WithBlockMarkers(markers []string) Option {
	return func(c *Classifier) {
		c.markers = c.markers[:0]
		for _, m := range markers {
			if m == "" {
				continue
			}
			c.markers = append(c.markers, bytes.ToLower([]byte(m)))
		}
	}
}

// New creates a classifier for baseline b.
func New(strategy Strategy, b *model.Baseline, opts ...Option) (*Classifier, error) {
	if b == nil {
		return nil, ErrNoBaseline
	}
	if strategy.NeedsSignature() && b.Signature == "" {
		return nil, ErrNoSignature
	}

	c := &Classifier{
		strategy:  strategy,
		baseline:  b,
		signature: []byte(b.Signature),
		tolerance: 100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Strategy returns the configured strategy.
func (c *Classifier) Strategy() Strategy {
	return c.strategy
}

// Classify returns the verdict for r.
func (c *Classifier) Classify(r *probe.Result) Verdict {
	v := Verdict{Class: model.NoMatch}
	if r.SizeKnown && c.baseline.SizeKnown {
		v.Diff = absDiff(r.Size, c.baseline.Size)
	}

	if c.blocked(r) {
		v.Class = model.Blocked
		return v
	}
	if !isSuccess(r.StatusCode) {
		return v
	}

	var match bool
	switch c.strategy {
	case SizeDelta:
		match = c.sizeDiffers(r)
	case SignatureAbsence:
		match = c.signatureAbsent(r)
	case Combined:
		match = c.sizeDiffers(r) && c.signatureAbsent(r)
	}
	if match {
		v.Class = model.Match
	}
	return v
}

func (c *Classifier) blocked(r *probe.Result) bool {
	if r.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if len(c.markers) == 0 || len(r.Excerpt) == 0 {
		return false
	}
	lower := bytes.ToLower(r.Excerpt)
	for _, m := range c.markers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}

// sizeDiffers falls back to comparing status codes when either size is unknown.
func (c *Classifier) sizeDiffers(r *probe.Result) bool {
	if !r.SizeKnown || !c.baseline.SizeKnown {
		return r.StatusCode != c.baseline.StatusCode
	}
	return absDiff(r.Size, c.baseline.Size) > c.tolerance
}

func (c *Classifier) signatureAbsent(r *probe.Result) bool {
	return len(r.Excerpt) > 0 && !bytes.Contains(r.Excerpt, c.signature)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
