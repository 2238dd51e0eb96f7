package baseline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/probe"
)

// fakeTarget answers each probe with the next scripted result.
type fakeTarget struct {
	mu      sync.Mutex
	results []*probe.Result
	errs    []error
	paths   []string
}

func (f *fakeTarget) Probe(_ context.Context, path string) (*probe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.paths)
	f.paths = append(f.paths, path)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	r := *f.results[i%len(f.results)]
	r.Path = path
	return &r, nil
}

func (f *fakeTarget) Origin() string { return "https://example.com" }
func (f *fakeTarget) Method() string { return http.MethodGet }
func (f *fakeTarget) AcceptEncoding() string { return "br, gzip, deflate" }

type memoryCache struct {
	mu    sync.Mutex
	saved []*model.Baseline
	load  *model.Baseline
	err   error
}

func (m *memoryCache) LoadBaseline(_ context.Context, _, _, _ string) (*model.Baseline, error) {
	return m.load, m.err
}

func (m *memoryCache) SaveBaseline(_ context.Context, b *model.Baseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, b)
	return nil
}

const notFoundPage = "<html><head><title>Page Not Found</title></head><body><h2>TERRA: CONQUEST</h2></body></html>"

func notFound(size int64) *probe.Result {
	return &probe.Result{StatusCode: http.StatusNotFound, Size: size, SizeKnown: true, Excerpt: []byte(notFoundPage)}
}

func TestCalibrate(t *testing.T) {
	t.Parallel()

	t.Run("agreeing samples produce a baseline", func(t *testing.T) {
		t.Parallel()

		target := &fakeTarget{results: []*probe.Result{notFound(5117), notFound(5150)}}
		c := NewCalibrator(target, WithTolerance(100))

		b, err := c.Calibrate(context.Background())
		if err != nil {
			t.Fatalf("Calibrate() error = %v", err)
		}
		if b.StatusCode != http.StatusNotFound || b.Size != 5117 || !b.SizeKnown {
			t.Errorf("unexpected baseline: %+v", b)
		}
		if b.Samples != 2 {
			t.Errorf("expected 2 samples, got %d", b.Samples)
		}
		if b.ContentEncoding != "identity" {
			t.Errorf("expected identity encoding, got %q", b.ContentEncoding)
		}
		if b.Fingerprint != probe.Fingerprint([]byte(notFoundPage)) {
			t.Error("expected fingerprint of the not-found excerpt")
		}
		if b.Origin != "https://example.com" || b.AcceptEncoding != "br, gzip, deflate" {
			t.Errorf("unexpected cache key fields: %+v", b)
		}
	})

	t.Run("calibration paths cannot collide with candidates", func(t *testing.T) {
		t.Parallel()

		target := &fakeTarget{results: []*probe.Result{notFound(10)}}
		if _, err := NewCalibrator(target, WithSamples(3)).Calibrate(context.Background()); err != nil {
			t.Fatalf("Calibrate() error = %v", err)
		}
		if len(target.paths) != 3 {
			t.Fatalf("expected 3 probes, got %d", len(target.paths))
		}
		seen := map[string]bool{}
		for _, p := range target.paths {
			if !strings.HasPrefix(p, "CALIBRATION_") {
				t.Errorf("unexpected calibration path %q", p)
			}
			if seen[p] {
				t.Errorf("calibration path %q reused", p)
			}
			seen[p] = true
		}
	})

	t.Run("status disagreement is non-deterministic", func(t *testing.T) {
		t.Parallel()

		ok := &probe.Result{StatusCode: http.StatusOK, Size: 5117, SizeKnown: true}
		target := &fakeTarget{results: []*probe.Result{notFound(5117), ok}}
		_, err := NewCalibrator(target).Calibrate(context.Background())
		if !errors.Is(err, ErrCalibration) || !errors.Is(err, ErrNonDeterministic) {
			t.Errorf("expected non-deterministic calibration error, got %v", err)
		}
	})

	t.Run("size drift beyond tolerance is non-deterministic", func(t *testing.T) {
		t.Parallel()

		target := &fakeTarget{results: []*probe.Result{notFound(5117), notFound(5300)}}
		_, err := NewCalibrator(target, WithTolerance(100)).Calibrate(context.Background())
		if !errors.Is(err, ErrNonDeterministic) {
			t.Errorf("expected ErrNonDeterministic, got %v", err)
		}
	})

	t.Run("transport failure is fatal", func(t *testing.T) {
		t.Parallel()

		cause := &probe.TransportError{Path: "x", Err: errors.New("connection refused")}
		target := &fakeTarget{results: []*probe.Result{notFound(1)}, errs: []error{cause}}
		_, err := NewCalibrator(target).Calibrate(context.Background())
		if !errors.Is(err, ErrCalibration) {
			t.Fatalf("expected ErrCalibration, got %v", err)
		}
		if !probe.IsTransport(err) {
			t.Errorf("expected wrapped transport error, got %v", err)
		}
	})

	t.Run("rate limited calibration fails", func(t *testing.T) {
		t.Parallel()

		limited := &probe.Result{StatusCode: http.StatusTooManyRequests, SizeKnown: true}
		target := &fakeTarget{results: []*probe.Result{limited}}
		_, err := NewCalibrator(target).Calibrate(context.Background())
		if !errors.Is(err, ErrBlockedDuringCalibration) {
			t.Errorf("expected ErrBlockedDuringCalibration, got %v", err)
		}
	})
}

func TestCalibrateSignature(t *testing.T) {
	t.Parallel()

	t.Run("configured signature is kept", func(t *testing.T) {
		t.Parallel()

		target := &fakeTarget{results: []*probe.Result{notFound(100)}}
		c := NewCalibrator(target, WithSignature("<h2>TERRA: CONQUEST</h2>"), WithSignatureRequired(true))
		b, err := c.Calibrate(context.Background())
		if err != nil {
			t.Fatalf("Calibrate() error = %v", err)
		}
		if b.Signature != "<h2>TERRA: CONQUEST</h2>" {
			t.Errorf("unexpected signature %q", b.Signature)
		}
	})

	t.Run("title is derived when required", func(t *testing.T) {
		t.Parallel()

		target := &fakeTarget{results: []*probe.Result{notFound(100)}}
		b, err := NewCalibrator(target, WithSignatureRequired(true)).Calibrate(context.Background())
		if err != nil {
			t.Fatalf("Calibrate() error = %v", err)
		}
		if b.Signature != "Page Not Found" {
			t.Errorf("expected derived title, got %q", b.Signature)
		}
	})

	t.Run("missing title with required signature fails", func(t *testing.T) {
		t.Parallel()

		bare := &probe.Result{StatusCode: http.StatusNotFound, Size: 9, SizeKnown: true, Excerpt: []byte("not found")}
		target := &fakeTarget{results: []*probe.Result{bare}}
		_, err := NewCalibrator(target, WithSignatureRequired(true)).Calibrate(context.Background())
		if !errors.Is(err, ErrNoSignature) {
			t.Errorf("expected ErrNoSignature, got %v", err)
		}
	})

	t.Run("configured signature absent from the page fails", func(t *testing.T) {
		t.Parallel()

		target := &fakeTarget{results: []*probe.Result{notFound(100)}}
		_, err := NewCalibrator(target, WithSignature("Nothing here")).Calibrate(context.Background())
		if !errors.Is(err, ErrSignatureNotFound) {
			t.Errorf("expected ErrSignatureNotFound, got %v", err)
		}
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("uses cached baseline", func(t *testing.T) {
		t.Parallel()

		cached := &model.Baseline{Origin: "https://example.com", StatusCode: 404, Size: 42, SizeKnown: true}
		cache := &memoryCache{load: cached}
		target := &fakeTarget{results: []*probe.Result{notFound(1)}}

		b, fromCache, err := NewCalibrator(target, WithCache(cache)).Resolve(context.Background())
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !fromCache || b != cached {
			t.Errorf("expected cached baseline, got %+v (cached=%v)", b, fromCache)
		}
		if len(target.paths) != 0 {
			t.Errorf("expected no probes, got %d", len(target.paths))
		}
	})

	t.Run("recalibrate bypasses and refreshes the cache", func(t *testing.T) {
		t.Parallel()

		cache := &memoryCache{load: &model.Baseline{Size: 42}}
		target := &fakeTarget{results: []*probe.Result{notFound(100)}}

		b, fromCache, err := NewCalibrator(target, WithCache(cache), WithRecalibrate(true)).Resolve(context.Background())
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if fromCache || b.Size != 100 {
			t.Errorf("expected fresh baseline, got %+v", b)
		}
		if len(cache.saved) != 1 {
			t.Errorf("expected baseline to be saved, got %d saves", len(cache.saved))
		}
	})

	t.Run("cached baseline without required signature is recalibrated", func(t *testing.T) {
		t.Parallel()

		cache := &memoryCache{load: &model.Baseline{Size: 42}}
		target := &fakeTarget{results: []*probe.Result{notFound(100)}}

		b, fromCache, err := NewCalibrator(target, WithCache(cache), WithSignatureRequired(true)).Resolve(context.Background())
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if fromCache || b.Signature == "" {
			t.Errorf("expected fresh baseline with signature, got %+v", b)
		}
	})

	t.Run("cache errors fall back to calibration", func(t *testing.T) {
		t.Parallel()

		cache := &memoryCache{err: errors.New("disk on fire")}
		target := &fakeTarget{results: []*probe.Result{notFound(100)}}

		_, fromCache, err := NewCalibrator(target, WithCache(cache)).Resolve(context.Background())
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if fromCache {
			t.Error("expected calibration after cache error")
		}
	})
}

func TestCalibrate_HTTPServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(notFoundPage))
	}))
	defer srv.Close()

	client, err := probe.NewClient(srv.URL, probe.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	b, err := NewCalibrator(client, WithSignatureRequired(true)).Calibrate(context.Background())
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if b.StatusCode != http.StatusNotFound || b.Size != int64(len(notFoundPage)) {
		t.Errorf("unexpected baseline: status=%d size=%d", b.StatusCode, b.Size)
	}
	if b.Signature != "Page Not Found" {
		t.Errorf("unexpected signature %q", b.Signature)
	}
}
