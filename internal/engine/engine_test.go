package engine

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pathfinder/internal/classify"
	"github.com/nao1215/pathfinder/internal/keyspace"
	"github.com/nao1215/pathfinder/internal/model"
	"github.com/nao1215/pathfinder/internal/probe"
)

// funcProber adapts a function to Prober and records every probed path.
type funcProber struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, path string, call int) (*probe.Result, error)
}

func newFuncProber(fn func(ctx context.Context, path string, call int) (*probe.Result, error)) *funcProber {
	return &funcProber{calls: make(map[string]int), fn: fn}
}

func (p *funcProber) Probe(ctx context.Context, path string) (*probe.Result, error) {
	p.mu.Lock()
	p.calls[path]++
	call := p.calls[path]
	p.mu.Unlock()
	return p.fn(ctx, path, call)
}

func (p *funcProber) callsFor(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

func notFound(path string) *probe.Result {
	return &probe.Result{Path: path, StatusCode: http.StatusNotFound, Size: 5117, SizeKnown: true}
}

func found(path string) *probe.Result {
	return &probe.Result{
		Path:       path,
		StatusCode: http.StatusOK,
		Size:       9000,
		SizeKnown:  true,
		Excerpt:    []byte("<title>Admin</title>"),
	}
}

func testClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	c, err := classify.New(classify.SizeDelta,
		&model.Baseline{StatusCode: http.StatusNotFound, Size: 5117, SizeKnown: true},
		classify.WithTolerance(100),
		classify.WithBlockMarkers([]string{"cf-challenge"}),
	)
	if err != nil {
		t.Fatalf("classify.New() error = %v", err)
	}
	return c
}

func testCodec(t *testing.T, alphabet string, length int) *keyspace.Codec {
	t.Helper()
	c, err := keyspace.NewCodec(alphabet, length)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

// sleepRecorder replaces real sleeping and records requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	during func()
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	during := r.during
	r.mu.Unlock()
	if during != nil {
		during()
	}
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestScheduler(codec *keyspace.Codec, p Prober, c Classifier, s Settings) (*Scheduler, *sleepRecorder) {
	rec := &sleepRecorder{}
	sc := NewScheduler(codec, p, c, WithSettings(s))
	sc.sleep = rec.sleep
	return sc, rec
}

func collect(ch <-chan Event) []Event {
	var out []Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func testSettings() Settings {
	return Settings{
		Origin:            "https://example.com",
		BatchSize:         250,
		BackoffDelay:      5 * time.Second,
		ErrorBackoff:      time.Second,
		MaxBackoff:        time.Minute,
		MaxRetries:        3,
		MaxBlockedRetries: 3,
	}
}

func TestScheduler_TwoSymbolSpace(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, "ab", 2)
	prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
		return notFound(path), nil
	})
	ranges, err := keyspace.Partition(codec.Total(), 2)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	sc, _ := newTestScheduler(codec, prober, testClassifier(t), testSettings())
	events := collect(sc.Run(context.Background(), ranges))

	for _, p := range []string{"aa", "ab", "ba", "bb"} {
		if got := prober.callsFor(p); got != 1 {
			t.Errorf("path %q probed %d times, want 1", p, got)
		}
	}

	drained := 0
	for _, e := range events {
		if d, ok := e.(DrainedEvent); ok {
			drained++
			if d.Cancelled || d.Cursor != d.Range.End || d.Processed != 2 {
				t.Errorf("unexpected drained event: %+v", d)
			}
		}
	}
	if drained != 2 {
		t.Errorf("expected 2 drained events, got %d", drained)
	}
}

func TestScheduler_ExactlyOnce(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, keyspace.DefaultAlphabet, 3)
	prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
		if path == "cat" || path == "zzz" {
			return found(path), nil
		}
		return notFound(path), nil
	})
	ranges, err := keyspace.Partition(codec.Total(), 6)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	sc, _ := newTestScheduler(codec, prober, testClassifier(t), testSettings())
	events := collect(sc.Run(context.Background(), ranges))

	var matches []string
	final := map[int]int64{}
	for _, e := range events {
		switch ev := e.(type) {
		case MatchEvent:
			matches = append(matches, ev.Finding.Path)
		case ProgressEvent:
			if ev.Processed < final[ev.WorkerID] {
				t.Errorf("worker %d progress went backwards", ev.WorkerID)
			}
			final[ev.WorkerID] = ev.Processed
		}
	}

	var total int64
	for _, n := range final {
		total += n
	}
	if total != 17576 {
		t.Errorf("expected 17576 processed, got %d", total)
	}
	if len(prober.calls) != 17576 {
		t.Errorf("expected 17576 distinct paths, got %d", len(prober.calls))
	}
	for p, n := range prober.calls {
		if n != 1 {
			t.Fatalf("path %q probed %d times", p, n)
		}
	}

	sort.Strings(matches)
	if len(matches) != 2 || matches[0] != "cat" || matches[1] != "zzz" {
		t.Errorf("unexpected matches %v", matches)
	}
}

func TestWorker_MatchEvent(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, "abc", 2)
	prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
		if path == "bc" {
			return found(path), nil
		}
		return notFound(path), nil
	})

	sc, _ := newTestScheduler(codec, prober, testClassifier(t), testSettings())
	events := collect(sc.Run(context.Background(), []keyspace.Range{{Start: 0, End: 9}}))

	var got *model.Finding
	for _, e := range events {
		if m, ok := e.(MatchEvent); ok {
			got = &m.Finding
		}
	}
	if got == nil {
		t.Fatal("expected a match event")
	}
	if got.Path != "bc" || got.Index != 5 || got.StatusCode != 200 || got.Size != 9000 || got.Diff != 3883 {
		t.Errorf("unexpected finding: %+v", got)
	}
	if got.Origin != "https://example.com" || got.Title != "Admin" || got.Fingerprint == "" {
		t.Errorf("unexpected finding annotations: %+v", got)
	}
}

func TestWorker_TransportErrorsBecomeUndetermined(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, "ab", 2)
	prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
		if path == "ab" {
			return nil, &probe.TransportError{Path: path, Err: errors.New("connection reset")}
		}
		return notFound(path), nil
	})

	sc, rec := newTestScheduler(codec, prober, testClassifier(t), testSettings())
	events := collect(sc.Run(context.Background(), []keyspace.Range{{Start: 0, End: 4}}))

	if got := prober.callsFor("ab"); got != 3 {
		t.Errorf("expected 3 attempts for ab, got %d", got)
	}
	if got := prober.callsFor("ba"); got != 1 {
		t.Errorf("expected worker to advance to ba, got %d calls", got)
	}

	var undetermined []model.Undetermined
	var last ProgressEvent
	for _, e := range events {
		switch ev := e.(type) {
		case UndeterminedEvent:
			undetermined = append(undetermined, ev.Record)
		case ProgressEvent:
			last = ev
		}
	}
	if len(undetermined) != 1 {
		t.Fatalf("expected 1 undetermined record, got %d", len(undetermined))
	}
	u := undetermined[0]
	if u.Path != "ab" || u.Index != 1 || u.Reason != model.ReasonTransport || u.Attempts != 3 {
		t.Errorf("unexpected record: %+v", u)
	}
	if u.LastError == "" {
		t.Error("expected last error to be recorded")
	}
	if last.Processed != 4 || last.TransportErrors != 3 {
		t.Errorf("expected 4 processed and 3 errors, got %+v", last)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	got := rec.recorded()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("error backoff = %v, want %v", got, want)
	}
}

func TestWorker_BlockedBackoff(t *testing.T) {
	t.Parallel()

	t.Run("recovers after a block", func(t *testing.T) {
		t.Parallel()

		codec := testCodec(t, "ab", 1)
		prober := newFuncProber(func(_ context.Context, path string, call int) (*probe.Result, error) {
			if path == "a" && call == 1 {
				return &probe.Result{Path: path, StatusCode: http.StatusTooManyRequests, SizeKnown: true}, nil
			}
			if path == "a" {
				return found(path), nil
			}
			return notFound(path), nil
		})

		sc, rec := newTestScheduler(codec, prober, testClassifier(t), testSettings())
		var observed []State
		var w *Worker
		rec.during = func() { observed = append(observed, w.State()) }
		w = newWorker(0, keyspace.Range{Start: 0, End: 2}, sc)

		var events []Event
		w.Run(context.Background(), func(e Event) { events = append(events, e) })

		if got := rec.recorded(); len(got) != 1 || got[0] != 5*time.Second {
			t.Errorf("expected one 5s pause, got %v", got)
		}
		if len(observed) != 1 || observed[0] != PausedBackoff {
			t.Errorf("expected PausedBackoff during pause, got %v", observed)
		}
		if w.State() != Drained {
			t.Errorf("expected Drained after run, got %s", w.State())
		}

		matches := 0
		for _, e := range events {
			if _, ok := e.(MatchEvent); ok {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("expected the re-probed index to match once, got %d", matches)
		}
	})

	t.Run("still blocked becomes undetermined", func(t *testing.T) {
		t.Parallel()

		codec := testCodec(t, "ab", 1)
		prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
			return &probe.Result{
				Path:       path,
				StatusCode: http.StatusOK,
				Size:       100,
				SizeKnown:  true,
				Excerpt:    []byte(`<div class="cf-challenge">`),
			}, nil
		})

		s := testSettings()
		s.MaxBackoff = 8 * time.Second
		sc, rec := newTestScheduler(codec, prober, testClassifier(t), s)
		events := collect(sc.Run(context.Background(), []keyspace.Range{{Start: 0, End: 2}}))

		var reasons []model.UndeterminedReason
		for _, e := range events {
			if u, ok := e.(UndeterminedEvent); ok {
				reasons = append(reasons, u.Record.Reason)
			}
			if _, ok := e.(MatchEvent); ok {
				t.Error("a blocked response must never match")
			}
		}
		if len(reasons) != 2 || reasons[0] != model.ReasonBlocked {
			t.Errorf("expected two blocked records, got %v", reasons)
		}

		want := []time.Duration{5 * time.Second, 8 * time.Second}
		got := rec.recorded()
		if len(got) != 4 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("block backoff = %v, want %v per index", got, want)
		}
	})
}

func TestWorker_PanicIsRecovered(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, "ab", 1)
	prober := newFuncProber(func(_ context.Context, path string, call int) (*probe.Result, error) {
		if path == "a" && call == 1 {
			panic("boom")
		}
		return notFound(path), nil
	})

	sc, _ := newTestScheduler(codec, prober, testClassifier(t), testSettings())
	events := collect(sc.Run(context.Background(), []keyspace.Range{{Start: 0, End: 2}}))

	if got := prober.callsFor("a"); got != 2 {
		t.Errorf("expected a retry after the panic, got %d calls", got)
	}
	d, ok := events[len(events)-1].(DrainedEvent)
	if !ok || d.Processed != 2 || d.Cancelled {
		t.Errorf("expected normal drain, got %+v", events[len(events)-1])
	}
}

func TestWorker_ProgressBatches(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, "abcde", 1)
	prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
		return notFound(path), nil
	})

	s := testSettings()
	s.BatchSize = 2
	sc, _ := newTestScheduler(codec, prober, testClassifier(t), s)
	events := collect(sc.Run(context.Background(), []keyspace.Range{{Start: 0, End: 5}}))

	var counts []int64
	for _, e := range events {
		if p, ok := e.(ProgressEvent); ok {
			counts = append(counts, p.Processed)
		}
	}
	want := []int64{2, 4, 5}
	if len(counts) != len(want) {
		t.Fatalf("progress counts = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("progress counts = %v, want %v", counts, want)
		}
	}
	if _, ok := events[len(events)-1].(DrainedEvent); !ok {
		t.Error("last event must be DrainedEvent")
	}
}

func TestWorker_NoDuplicateFinalProgress(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, "abcd", 1)
	prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
		return notFound(path), nil
	})

	s := testSettings()
	s.BatchSize = 2
	sc, _ := newTestScheduler(codec, prober, testClassifier(t), s)
	events := collect(sc.Run(context.Background(), []keyspace.Range{{Start: 0, End: 4}}))

	var counts []int64
	for _, e := range events {
		if p, ok := e.(ProgressEvent); ok {
			counts = append(counts, p.Processed)
		}
	}
	if len(counts) != 2 || counts[0] != 2 || counts[1] != 4 {
		t.Errorf("progress counts = %v, want [2 4]", counts)
	}
	d, ok := events[len(events)-1].(DrainedEvent)
	if !ok || d.Processed != 4 {
		t.Errorf("expected drain with 4 processed, got %+v", events[len(events)-1])
	}
}

func TestScheduler_Cancellation(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, keyspace.DefaultAlphabet, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var probes atomic.Int64
	prober := newFuncProber(func(ctx context.Context, path string, _ int) (*probe.Result, error) {
		if probes.Add(1) == 100 {
			cancel()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return notFound(path), nil
	})
	ranges, err := keyspace.Partition(codec.Total(), 4)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	sc, _ := newTestScheduler(codec, prober, testClassifier(t), testSettings())

	done := make(chan []Event)
	go func() { done <- collect(sc.Run(ctx, ranges)) }()

	var events []Event
	select {
	case events = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not drain after cancellation")
	}

	drained := 0
	for _, e := range events {
		d, ok := e.(DrainedEvent)
		if !ok {
			continue
		}
		drained++
		if !d.Cancelled {
			t.Errorf("worker %d not marked cancelled", d.WorkerID)
		}
		if d.Processed != d.Cursor-d.Range.Start {
			t.Errorf("worker %d: processed %d but cursor moved %d", d.WorkerID, d.Processed, d.Cursor-d.Range.Start)
		}
		if d.Cursor >= d.Range.End {
			t.Errorf("worker %d should not have finished its range", d.WorkerID)
		}
	}
	if drained != 4 {
		t.Errorf("expected 4 drained events, got %d", drained)
	}
}

func TestScheduler_EmptyRanges(t *testing.T) {
	t.Parallel()

	codec := testCodec(t, "ab", 1)
	prober := newFuncProber(func(_ context.Context, path string, _ int) (*probe.Result, error) {
		return notFound(path), nil
	})
	ranges, err := keyspace.Partition(codec.Total(), 3)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}

	sc, _ := newTestScheduler(codec, prober, testClassifier(t), testSettings())
	events := collect(sc.Run(context.Background(), ranges))

	drained := 0
	for _, e := range events {
		if d, ok := e.(DrainedEvent); ok {
			drained++
			if d.Cancelled {
				t.Errorf("worker %d reported cancelled", d.WorkerID)
			}
		}
	}
	if drained != 3 {
		t.Errorf("expected every worker to drain, got %d", drained)
	}
}

func TestSettingsBackOff(t *testing.T) {
	t.Parallel()

	t.Run("doubles up to the cap", func(t *testing.T) {
		t.Parallel()
		s := Settings{MaxBackoff: time.Minute}
		b := s.newBackOff(10 * time.Second)

		want := []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second, time.Minute, time.Minute}
		for i, w := range want {
			if got := b.NextBackOff(); got != w {
				t.Errorf("delay #%d = %v, want %v", i, got, w)
			}
		}
	})

	t.Run("zero initial delay stays zero", func(t *testing.T) {
		t.Parallel()
		b := Settings{MaxBackoff: time.Minute}.newBackOff(0)
		for range 3 {
			if got := b.NextBackOff(); got != 0 {
				t.Errorf("delay = %v, want 0", got)
			}
		}
	})

	t.Run("each sequence starts over", func(t *testing.T) {
		t.Parallel()
		s := Settings{MaxBackoff: time.Minute}
		first := s.newBackOff(time.Second)
		first.NextBackOff()
		first.NextBackOff()
		if got := s.newBackOff(time.Second).NextBackOff(); got != time.Second {
			t.Errorf("fresh sequence starts at %v, want 1s", got)
		}
	})
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
