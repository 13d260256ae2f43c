package swap

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last input change before
// a quote is fetched.
const DefaultDebounce = 450 * time.Millisecond

// Update is one state change pushed to the engine's subscriber. While a
// refetch is in flight the previous quote is retained and marked stale so
// the display never blanks between keystrokes.
type Update struct {
	Quote   *Quote
	Err     error
	Loading bool
	Stale   bool
}

// Engine debounces quote requests and serializes their results. Every
// input change bumps a generation counter; a response arriving for an
// older generation is discarded, so rapid edits can never surface a quote
// for an amount the user no longer has typed.
type Engine struct {
	orch     *Orchestrator
	debounce time.Duration
	onUpdate func(Update)
	logger   *zap.Logger

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	pending    *QuoteRequest
	latest     *Quote
	cancel     context.CancelFunc
	closed     bool
}

// NewEngine creates a quote engine. onUpdate is invoked from the engine's
// goroutines and must be safe for concurrent use; debounce <= 0 selects
// the default.
func NewEngine(orch *Orchestrator, debounce time.Duration, onUpdate func(Update), logger *zap.Logger) *Engine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Engine{
		orch:     orch,
		debounce: debounce,
		onUpdate: onUpdate,
		logger:   logger.Named("QuoteEngine"),
	}
}

// Submit records a new input state and schedules a fetch after the
// debounce window. An invalid request clears the current quote instead of
// surfacing an error; partially typed inputs are not failures.
func (e *Engine) Submit(req QuoteRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.generation++
	gen := e.generation
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	if err := req.Validate(); err != nil {
		e.pending = nil
		e.latest = nil
		e.emit(Update{})
		return
	}

	e.pending = &req
	e.emit(Update{Quote: e.latest, Loading: true, Stale: e.latest != nil})
	e.timer = time.AfterFunc(e.debounce, func() {
		e.fire(gen)
	})
}

// Refresh re-fetches the current request immediately, bypassing the
// debounce window. Used after a submitted transaction settles, when the
// quote on screen is known to be consumed.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.pending == nil {
		return
	}
	e.generation++
	gen := e.generation
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.emit(Update{Quote: e.latest, Loading: true, Stale: e.latest != nil})
	go e.fire(gen)
}

// Latest returns the most recent quote, which may be stale while a
// refetch is in flight.
func (e *Engine) Latest() *Quote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Close stops the engine. In-flight fetches are cancelled and no further
// updates are emitted.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// fire fetches the pending request if gen is still current.
func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.generation || e.pending == nil {
		e.mu.Unlock()
		return
	}
	req := *e.pending
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	quote, err := e.orch.Fetch(ctx, req)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.generation {
		e.logger.Debug("Discarding stale quote response",
			zap.Uint64("generation", gen), zap.Uint64("current", e.generation))
		return
	}
	if err != nil {
		// Cancellation by a newer request or by Close is caught above, so
		// this is a real fetch failure.
		e.logger.Warn("Quote fetch failed", zap.Error(err))
		e.latest = nil
		e.emit(Update{Err: err})
		return
	}
	e.latest = quote
	e.emit(Update{Quote: quote})
}

func (e *Engine) emit(u Update) {
	if e.onUpdate != nil {
		e.onUpdate(u)
	}
}
