// Package scan runs the recognition pipeline continuously over a live frame
// source and reports each newly seen card once.
package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"card-scanner/internal/catalog"
	"card-scanner/internal/detect"
	"card-scanner/internal/identify"
	"card-scanner/internal/monitoring"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/timeutil"
)

// ErrNoFrame is returned by a FrameSource that has no frame right now. The
// controller treats it as "no card this tick".
var ErrNoFrame = errors.New("no frame available")

// FrameSource supplies the current camera frame.
type FrameSource interface {
	Frame(ctx context.Context) (*image.RGBA, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) (*image.RGBA, error)

// Frame implements FrameSource.
func (f FrameSourceFunc) Frame(ctx context.Context) (*image.RGBA, error) {
	return f(ctx)
}

// Recognizer identifies the most confident card in a frame.
// *pipeline.Pipeline implements it.
type Recognizer interface {
	Ready() bool
	Best(ctx context.Context, frame *image.RGBA) (*pipeline.Result, error)
}

// State is the controller's outer state.
type State int

const (
	StateIdle State = iota
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	default:
		return "unknown"
	}
}

// Event reports a newly accepted card.
type Event struct {
	ID         uuid.UUID
	Identity   string
	Entry      *catalog.Entry
	Candidates []identify.Candidate
	Box        detect.OrientedBox
	// Confidence is the detector's confidence in the box.
	Confidence float64
	Similarity float64
	Timestamp  time.Time
}

// Stats counts tick outcomes since the controller was created.
type Stats struct {
	Ticks      uint64 // ticks that ran the pipeline
	Skipped    uint64 // ticks dropped because one was still in flight
	NotReady   uint64 // ticks skipped while the recognizer was not ready
	NoMatch    uint64 // ticks without an accepted match
	Suppressed uint64 // accepted matches suppressed by the cooldown
	Emitted    uint64
	Errors     uint64
	Discarded  uint64 // results dropped because scanning stopped meanwhile
}

// session is the per-controller deduplication state.
type session struct {
	lastIdentity  string
	lastMatchedAt time.Time
	noMatchStreak int
}

// Controller drives the scan loop. Its dedup state is private to the
// instance; all methods are safe for concurrent use.
type Controller struct {
	cfg        Config
	source     FrameSource
	recognizer Recognizer
	onEvent    func(Event)
	clock      timeutil.Clock
	logf       func(format string, v ...interface{})

	mu         sync.Mutex
	state      State
	generation uint64
	inFlight   bool
	ticker     timeutil.Ticker
	cancel     context.CancelFunc
	loopDone   chan struct{}
	session    session
	stats      Stats

	ticks sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, for tests.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger replaces the diagnostic logger.
func WithLogger(logf func(format string, v ...interface{})) Option {
	return func(c *Controller) { c.logf = logf }
}

// New creates an idle controller. onEvent is called from the tick goroutine,
// never while the controller holds its lock; it may be nil.
func New(cfg Config, source FrameSource, recognizer Recognizer, onEvent func(Event), opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		source:     source,
		recognizer: recognizer,
		onEvent:    onEvent,
		clock:      timeutil.RealClock{},
		logf: func(format string, v ...interface{}) {
			monitoring.Logf(format, v...)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins ticking. Restarting after Stop resets the cadence but keeps
// the cooldown state; use ResetCooldown to clear it.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateScanning {
		return
	}

	c.state = StateScanning
	c.generation++
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.ticker = c.clock.NewTicker(c.cfg.Interval)
	c.loopDone = make(chan struct{})

	go c.loop(loopCtx, c.ticker, c.generation, c.loopDone)
	c.logf("scan: started (interval %v, cooldown %v, auto %v)", c.cfg.Interval, c.cfg.Cooldown, c.cfg.AutoScan)
}

// Stop returns to idle. No pipeline call starts after Stop returns; a call
// already in flight finishes but its result is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.generation++
	c.ticker.Stop()
	c.cancel()
	done := c.loopDone
	c.mu.Unlock()

	<-done
	c.logf("scan: stopped")
}

// Wait blocks until every dispatched tick has finished.
func (c *Controller) Wait() {
	c.ticks.Wait()
}

// State returns the outer state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the tick counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetCooldown forgets the last accepted identity, so the next sighting of
// any card is reported.
func (c *Controller) ResetCooldown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session{}
}

func (c *Controller) loop(ctx context.Context, ticker timeutil.Ticker, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			c.expire(gen, ctx.Err())
			return
		case <-ticker.C():
			c.dispatch(ctx, gen)
		}
	}
}

// expire returns to idle when the Start context ends without a Stop. Results
// of a tick still in flight are discarded like after Stop.
func (c *Controller) expire(gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateScanning || gen != c.generation {
		return
	}
	c.state = StateIdle
	c.generation++
	c.ticker.Stop()
	c.cancel()
	c.logf("scan: stopped: %v", cause)
}

// dispatch starts a tick in its own goroutine unless one is still running.
func (c *Controller) dispatch(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.state != StateScanning || gen != c.generation {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.stats.Skipped++
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	c.ticks.Add(1)
	go func() {
		defer c.ticks.Done()
		defer c.finish()
		c.process(ctx, gen)
	}()
}

// Tick runs one tick synchronously. It returns false without doing anything
// when another tick is still in flight.
func (c *Controller) Tick(ctx context.Context) bool {
	c.mu.Lock()
	if c.inFlight {
		c.stats.Skipped++
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	gen := c.generation
	c.mu.Unlock()

	defer c.finish()
	c.process(ctx, gen)
	return true
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// process runs the pipeline once. Failures and panics are logged and count
// as a tick without a match; they never escape.
func (c *Controller) process(ctx context.Context, gen uint64) {
	var seq uint64
	defer func() {
		if r := recover(); r != nil {
			c.logf("scan: tick %d panicked: %v", seq, r)
			c.fail(gen)
		}
	}()

	if !c.recognizer.Ready() {
		c.mu.Lock()
		c.stats.NotReady++
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.stats.Ticks++
	seq = c.stats.Ticks
	c.mu.Unlock()

	frame, err := c.source.Frame(ctx)
	if errors.Is(err, ErrNoFrame) {
		c.noMatch(gen)
		return
	}
	if err != nil {
		c.logf("scan: tick %d: failed to capture frame: %v", seq, err)
		c.fail(gen)
		return
	}
	if !c.current(gen) {
		return
	}

	res, err := c.recognizer.Best(ctx, frame)
	if err != nil {
		c.logf("scan: tick %d: %v", seq, err)
		c.fail(gen)
		return
	}
	c.apply(gen, res)
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation
}

func (c *Controller) fail(gen uint64) {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
	c.noMatch(gen)
}

// noMatch records a tick without an accepted match.
func (c *Controller) noMatch(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.stats.Discarded++
		return
	}
	c.stats.NoMatch++
	c.session.noMatchStreak++
	if c.cfg.AutoScan && c.session.noMatchStreak >= c.cfg.NoMatchResetTicks && c.session.lastIdentity != "" {
		c.session.lastIdentity = ""
		c.session.lastMatchedAt = time.Time{}
	}
}

// apply gates, deduplicates and emits one tick's result.
func (c *Controller) apply(gen uint64, res *pipeline.Result) {
	var top identify.Candidate
	accepted := false
	if res != nil {
		if t, ok := res.Top(); ok && t.Similarity >= c.cfg.AcceptThreshold {
			top, accepted = t, true
		}
	}
	if !accepted {
		c.noMatch(gen)
		return
	}

	now := c.clock.Now()
	c.mu.Lock()
	if gen != c.generation {
		c.stats.Discarded++
		c.mu.Unlock()
		return
	}
	c.session.noMatchStreak = 0

	identity := top.Entry.ID
	if identity == c.session.lastIdentity && now.Sub(c.session.lastMatchedAt) < c.cfg.Cooldown {
		c.stats.Suppressed++
		if c.cfg.AutoScan {
			// still the same card in frame; keep it suppressed while held
			c.session.lastMatchedAt = now
		}
		c.mu.Unlock()
		return
	}

	c.session.lastIdentity = identity
	c.session.lastMatchedAt = now
	c.stats.Emitted++
	onEvent := c.onEvent
	c.mu.Unlock()

	ev := Event{
		ID:         uuid.New(),
		Identity:   identity,
		Entry:      top.Entry,
		Candidates: res.Candidates,
		Box:        res.Box,
		Confidence: res.Box.Confidence,
		Similarity: top.Similarity,
		Timestamp:  now,
	}
	c.logf("scan: %s (%s) similarity %.3f", ev.Entry.Metadata.Name, identity, ev.Similarity)
	if onEvent != nil {
		onEvent(ev)
	}
}
