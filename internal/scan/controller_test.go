package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/internal/catalog"
	"card-scanner/internal/detect"
	"card-scanner/internal/identify"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/timeutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var entries = map[string]*catalog.Entry{
	"a": {ID: "a", Metadata: catalog.Metadata{Name: "Ahri"}},
	"b": {ID: "b", Metadata: catalog.Metadata{Name: "Braum"}},
}

func match(id string, sim float64) *pipeline.Result {
	return &pipeline.Result{
		Box:        detect.OrientedBox{CX: 50, CY: 70, W: 60, H: 84, Confidence: 0.8},
		Candidates: []identify.Candidate{{Entry: entries[id], Similarity: sim}},
	}
}

type fakeRecognizer struct {
	mu      sync.Mutex
	ready   bool
	calls   int
	results func(call int) (*pipeline.Result, error)
}

func (f *fakeRecognizer) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeRecognizer) Best(ctx context.Context, frame *image.RGBA) (*pipeline.Result, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.results
	f.mu.Unlock()
	return fn(call)
}

func (f *fakeRecognizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// always returns the same result for every call.
func always(res *pipeline.Result) *fakeRecognizer {
	return &fakeRecognizer{ready: true, results: func(int) (*pipeline.Result, error) { return res, nil }}
}

var frameSource = FrameSourceFunc(func(context.Context) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
})

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) On(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newController(cfg Config, rec Recognizer) (*Controller, *recorder, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(t0)
	events := &recorder{}
	c := New(cfg, frameSource, rec, events.On, WithClock(clock), WithLogger(func(string, ...interface{}) {}))
	return c, events, clock
}

func TestCooldownDedup(t *testing.T) {
	tests := []struct {
		name  string
		gap   time.Duration
		wantN int
	}{
		{"repeat within cooldown", 100 * time.Millisecond, 1},
		{"repeat after cooldown", 2500 * time.Millisecond, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, events, clock := newController(DefaultConfig(), always(match("a", 0.9)))
			ctx := context.Background()

			require.True(t, c.Tick(ctx))
			clock.Advance(tt.gap)
			require.True(t, c.Tick(ctx))

			assert.Equal(t, tt.wantN, events.Len())
			assert.Equal(t, uint64(2-tt.wantN), c.Stats().Suppressed)
		})
	}
}

func TestEventContents(t *testing.T) {
	res := match("b", 0.83)
	c, events, _ := newController(DefaultConfig(), always(res))
	c.Tick(context.Background())

	want := []Event{{
		Identity:   "b",
		Entry:      entries["b"],
		Candidates: res.Candidates,
		Box:        res.Box,
		Confidence: 0.8,
		Similarity: 0.83,
		Timestamp:  t0,
	}}
	if diff := cmp.Diff(want, events.events, cmpopts.IgnoreFields(Event{}, "ID")); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.NotEqual(t, [16]byte{}, [16]byte(events.events[0].ID))
}

func TestAcceptThreshold(t *testing.T) {
	c, events, _ := newController(DefaultConfig(), always(match("a", 0.59)))
	c.Tick(context.Background())
	assert.Equal(t, 0, events.Len())
	assert.Equal(t, uint64(1), c.Stats().NoMatch)

	c, events, _ = newController(DefaultConfig(), always(match("a", 0.60)))
	c.Tick(context.Background())
	assert.Equal(t, 1, events.Len())
}

func TestDifferentIdentityWithinCooldown(t *testing.T) {
	rec := &fakeRecognizer{ready: true, results: func(call int) (*pipeline.Result, error) {
		if call == 1 {
			return match("a", 0.9), nil
		}
		return match("b", 0.9), nil
	}}
	c, events, clock := newController(DefaultConfig(), rec)
	c.Tick(context.Background())
	clock.Advance(150 * time.Millisecond)
	c.Tick(context.Background())
	assert.Equal(t, 2, events.Len())
}

func TestHeldCard(t *testing.T) {
	// one tick every 1.5s with the card never leaving the frame
	run := func(cfg Config) int {
		c, events, clock := newController(cfg, always(match("a", 0.9)))
		for i := 0; i < 4; i++ {
			c.Tick(context.Background())
			clock.Advance(1500 * time.Millisecond)
		}
		return events.Len()
	}

	assert.Equal(t, 2, run(DefaultConfig()), "plain cooldown expires while held")
	assert.Equal(t, 1, run(DefaultConfig().WithAutoScan(true)), "auto-scan reports a held card once")
}

func TestAutoScanResetsAfterEmptyTicks(t *testing.T) {
	// a, nothing, nothing, a again within the cooldown window
	script := func(call int) (*pipeline.Result, error) {
		switch call {
		case 2, 3:
			return nil, nil
		default:
			return match("a", 0.9), nil
		}
	}

	run := func(cfg Config) int {
		c, events, clock := newController(cfg, &fakeRecognizer{ready: true, results: script})
		for i := 0; i < 4; i++ {
			c.Tick(context.Background())
			clock.Advance(150 * time.Millisecond)
		}
		return events.Len()
	}

	assert.Equal(t, 2, run(DefaultConfig().WithAutoScan(true)))
	assert.Equal(t, 1, run(DefaultConfig()))

	t.Run("one empty tick is not enough", func(t *testing.T) {
		single := func(call int) (*pipeline.Result, error) {
			if call == 2 {
				return nil, nil
			}
			return match("a", 0.9), nil
		}
		c, events, clock := newController(DefaultConfig().WithAutoScan(true), &fakeRecognizer{ready: true, results: single})
		for i := 0; i < 3; i++ {
			c.Tick(context.Background())
			clock.Advance(150 * time.Millisecond)
		}
		assert.Equal(t, 1, events.Len())
	})
}

func TestResetCooldown(t *testing.T) {
	c, events, _ := newController(DefaultConfig(), always(match("a", 0.9)))
	c.Tick(context.Background())
	c.ResetCooldown()
	c.Tick(context.Background())
	assert.Equal(t, 2, events.Len())
}

func TestNotReadySkipsCapture(t *testing.T) {
	captured := 0
	source := FrameSourceFunc(func(context.Context) (*image.RGBA, error) {
		captured++
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	})
	rec := always(match("a", 0.9))
	rec.ready = false

	c := New(DefaultConfig(), source, rec, nil, WithLogger(func(string, ...interface{}) {}))
	c.Tick(context.Background())
	assert.Equal(t, 0, captured)
	assert.Equal(t, 0, rec.Calls())
	assert.Equal(t, uint64(1), c.Stats().NotReady)
}

func TestFailuresDoNotStopTicking(t *testing.T) {
	t.Run("no frame is not an error", func(t *testing.T) {
		source := FrameSourceFunc(func(context.Context) (*image.RGBA, error) { return nil, ErrNoFrame })
		c := New(DefaultConfig(), source, always(match("a", 0.9)), nil, WithLogger(func(string, ...interface{}) {}))
		c.Tick(context.Background())
		assert.Equal(t, Stats{Ticks: 1, NoMatch: 1}, c.Stats())
	})

	t.Run("recognizer error", func(t *testing.T) {
		rec := &fakeRecognizer{ready: true, results: func(call int) (*pipeline.Result, error) {
			if call == 1 {
				return nil, errors.New("inference failed")
			}
			return match("a", 0.9), nil
		}}
		c, events, _ := newController(DefaultConfig(), rec)
		c.Tick(context.Background())
		c.Tick(context.Background())
		assert.Equal(t, 1, events.Len())
		assert.Equal(t, uint64(1), c.Stats().Errors)
	})

	t.Run("recognizer panic", func(t *testing.T) {
		rec := &fakeRecognizer{ready: true, results: func(call int) (*pipeline.Result, error) {
			if call == 1 {
				panic("corrupt tensor")
			}
			return match("a", 0.9), nil
		}}
		c, events, _ := newController(DefaultConfig(), rec)
		assert.NotPanics(t, func() { c.Tick(context.Background()) })
		assert.True(t, c.Tick(context.Background()))
		assert.Equal(t, 1, events.Len())
		assert.Equal(t, uint64(1), c.Stats().Errors)
	})
}

// blocking returns a recognizer whose calls wait for release.
func blocking(res *pipeline.Result) (*fakeRecognizer, chan struct{}, chan struct{}) {
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	rec := &fakeRecognizer{ready: true, results: func(int) (*pipeline.Result, error) {
		started <- struct{}{}
		<-release
		return res, nil
	}}
	return rec, started, release
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestLoopTicksAndStops(t *testing.T) {
	rec := always(match("a", 0.9))
	c, events, clock := newController(DefaultConfig(), rec)

	c.Start(context.Background())
	assert.Equal(t, StateScanning, c.State())
	c.Start(context.Background()) // no-op while scanning

	clock.Advance(150 * time.Millisecond)
	require.Eventually(t, func() bool { return events.Len() == 1 }, 2*time.Second, time.Millisecond)

	c.Stop()
	c.Wait()
	assert.Equal(t, StateIdle, c.State())
	calls := rec.Calls()

	clock.Advance(time.Second)
	c.Wait()
	assert.Equal(t, calls, rec.Calls(), "no pipeline call after stop")
	assert.True(t, clock.Tickers()[0].Stopped())

	t.Run("restart resets cadence", func(t *testing.T) {
		c.Start(context.Background())
		defer c.Stop()
		require.Len(t, clock.Tickers(), 2)
		clock.Advance(150 * time.Millisecond)
		require.Eventually(t, func() bool { return rec.Calls() == calls+1 }, 2*time.Second, time.Millisecond)
	})
}

func TestTickSkippedWhileInFlight(t *testing.T) {
	rec, started, release := blocking(match("a", 0.9))
	c, events, clock := newController(DefaultConfig(), rec)

	c.Start(context.Background())
	defer c.Stop()

	clock.Advance(150 * time.Millisecond)
	waitFor(t, started)

	clock.Advance(150 * time.Millisecond)
	require.Eventually(t, func() bool { return c.Stats().Skipped == 1 }, 2*time.Second, time.Millisecond)
	assert.False(t, c.Tick(context.Background()))
	assert.Equal(t, 1, rec.Calls())

	close(release)
	c.Wait()
	assert.Equal(t, 1, events.Len())
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	rec, started, release := blocking(match("a", 0.9))
	c, events, clock := newController(DefaultConfig(), rec)

	c.Start(context.Background())
	clock.Advance(150 * time.Millisecond)
	waitFor(t, started)

	c.Stop()
	close(release)
	c.Wait()

	assert.Equal(t, 0, events.Len())
	assert.Equal(t, uint64(1), c.Stats().Discarded)
}

func TestCancelledContextReturnsToIdle(t *testing.T) {
	rec := always(match("a", 0.9))
	c, _, clock := newController(DefaultConfig(), rec)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	require.Equal(t, StateScanning, c.State())

	cancel()
	require.Eventually(t, func() bool { return c.State() == StateIdle }, 2*time.Second, time.Millisecond)
	assert.True(t, clock.Tickers()[0].Stopped())

	clock.Advance(time.Second)
	c.Wait()
	assert.Equal(t, 0, rec.Calls())
	assert.NotPanics(t, c.Stop)

	c.Start(context.Background())
	defer c.Stop()
	assert.Equal(t, StateScanning, c.State())
	clock.Advance(150 * time.Millisecond)
	require.Eventually(t, func() bool { return rec.Calls() == 1 }, 2*time.Second, time.Millisecond)
}

func TestStopWhenIdle(t *testing.T) {
	c, _, _ := newController(DefaultConfig(), always(nil))
	assert.NotPanics(t, c.Stop)
	assert.Equal(t, "idle", c.State().String())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Error(t, DefaultConfig().WithInterval(0).Validate())
	assert.Error(t, DefaultConfig().WithCooldown(-time.Second).Validate())

	cfg := DefaultConfig().WithAutoScan(true)
	cfg.NoMatchResetTicks = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.AcceptThreshold = 1.5
	assert.Error(t, cfg.Validate())
}
