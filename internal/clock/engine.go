// Package clock reconciles the single running work timer with the server.
// The server holds the truth; the engine keeps a projection of it and
// derives the displayed elapsed time from the server issued start instant.
package clock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

// TimerAPI is the part of the remote API the engine talks to.
type TimerAPI interface {
	ActiveTimer(ctx context.Context) (*domain.ActiveTimer, error)
	StartTimer(ctx context.Context, projectID int64, at time.Time) (*domain.ActiveTimer, error)
	StopTimer(ctx context.Context, timerID int64) (*domain.TimeEntry, error)
}

// State is the engine's timer state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is a point in time view of the engine.
type Status struct {
	State            State     `json:"state"`
	TimerID          int64     `json:"timer_id,omitempty"`
	ProjectID        int64     `json:"project_id,omitempty"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	Display          string    `json:"display"`
	GatewayAvailable bool      `json:"gateway_available"`
	Pending          bool      `json:"pending"`
}

// Running reports whether a timer is running.
func (s Status) Running() bool {
	return s.State == StateRunning
}

// EventKind identifies what changed.
type EventKind string

const (
	EventLoaded  EventKind = "loaded"
	EventStarted EventKind = "started"
	EventStopped EventKind = "stopped"
	EventTick    EventKind = "tick"
	EventReset   EventKind = "reset"
)

// Event is delivered to subscribers after every state change and tick.
type Event struct {
	Kind   EventKind
	Status Status
}

// DefaultTickInterval is how often a running timer refreshes.
const DefaultTickInterval = time.Second

// Option configures an Engine.
type Option func(*Engine)

// WithNow injects the time source.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTickInterval sets the refresh interval of a running timer.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine is the timer state machine.
type Engine struct {
	api      TimerAPI
	now      func() time.Time
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	timer     *domain.ActiveTimer
	elapsed   int64
	available bool
	// pending is set while a load, start or stop request is in flight
	pending bool
	closed  bool

	stopTick func()
	tickGen  uint64

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewEngine creates an engine in the idle state. The gateway is assumed
// available until a load says otherwise.
func NewEngine(api TimerAPI, opts ...Option) *Engine {
	e := &Engine{
		api:       api,
		now:       time.Now,
		interval:  DefaultTickInterval,
		logger:    slog.Default(),
		state:     StateIdle,
		available: true,
		subs:      make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load asks the server for the active timer and adopts its answer. An
// explicit "none" leaves the engine idle; any other failure leaves it idle
// with the gateway marked unavailable, and the error is returned.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}

	timer, err := e.api.ActiveTimer(ctx)

	e.mu.Lock()
	e.pending = false
	switch {
	case err == nil:
		e.available = true
		e.enterRunning(timer)
	case errors.Is(err, domain.ErrNoActiveTimer):
		err = nil
		e.available = true
		e.enterIdle()
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, context.Canceled):
		// neither says anything about reachability
		e.enterIdle()
	default:
		e.available = false
		e.enterIdle()
	}
	st := e.statusLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.WarnContext(ctx, "load active timer", "error", err)
	} else {
		e.logger.DebugContext(ctx, "active timer loaded", "state", st.State, "timer_id", st.TimerID)
	}
	e.notify(EventLoaded, st)
	return err
}

// Reconnect re-runs Load so a reachable server re-enables Start.
func (e *Engine) Reconnect(ctx context.Context) error {
	return e.Load(ctx)
}

// Start opens a timer for the project. It is rejected without a network
// call when a timer already runs, a request is in flight or the gateway was
// found unavailable.
func (e *Engine) Start(ctx context.Context, projectID int64) (Status, error) {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return Status{}, errEngineClosed
	case e.pending:
		e.mu.Unlock()
		return Status{}, domain.ErrBusy
	case e.state == StateRunning:
		e.mu.Unlock()
		return Status{}, domain.ErrAlreadyRunning
	case !e.available:
		e.mu.Unlock()
		return Status{}, domain.ErrGatewayUnavailable
	case projectID <= 0:
		e.mu.Unlock()
		return Status{}, domain.ErrProjectRequired
	}
	e.pending = true
	e.mu.Unlock()

	// a start that reached the server must be observed to completion
	timer, err := e.api.StartTimer(context.WithoutCancel(ctx), projectID, e.now().UTC())

	e.mu.Lock()
	e.pending = false
	if err == nil {
		e.available = true
		e.enterRunning(timer)
	} else if errors.Is(err, domain.ErrSessionExpired) {
		e.enterIdle()
	}
	st := e.statusLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.WarnContext(ctx, "start timer", "project_id", projectID, "error", err)
		return st, err
	}
	e.logger.InfoContext(ctx, "timer started", "timer_id", st.TimerID, "project_id", projectID)
	e.notify(EventStarted, st)
	return st, nil
}

// Stop closes the running timer. On failure the timer keeps running and
// Stop may be called again.
func (e *Engine) Stop(ctx context.Context) (*domain.TimeEntry, error) {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return nil, errEngineClosed
	case e.pending:
		e.mu.Unlock()
		return nil, domain.ErrBusy
	case e.state != StateRunning:
		e.mu.Unlock()
		return nil, domain.ErrNotRunning
	}
	e.pending = true
	timerID := e.timer.ID
	e.mu.Unlock()

	entry, err := e.api.StopTimer(context.WithoutCancel(ctx), timerID)

	e.mu.Lock()
	e.pending = false
	if err == nil {
		e.available = true
		e.enterIdle()
	} else if errors.Is(err, domain.ErrSessionExpired) {
		e.enterIdle()
	}
	st := e.statusLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.WarnContext(ctx, "stop timer", "timer_id", timerID, "error", err)
		return nil, err
	}
	e.logger.InfoContext(ctx, "timer stopped", "timer_id", timerID)
	e.notify(EventStopped, st)
	return entry, nil
}

// Tick recomputes the elapsed time of a running timer. It never changes the
// start instant.
func (e *Engine) Tick() Status {
	e.mu.Lock()
	if e.state != StateRunning {
		st := e.statusLocked()
		e.mu.Unlock()
		return st
	}
	e.elapsed = domain.ElapsedSeconds(e.timer.StartedAt, e.now())
	st := e.statusLocked()
	e.mu.Unlock()

	e.notify(EventTick, st)
	return st
}

// Reset drops the local projection, for example after the session ended.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.enterIdle()
	st := e.statusLocked()
	e.mu.Unlock()
	e.notify(EventReset, st)
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// Close stops the ticker and rejects further start and stop calls.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.cancelTickerLocked()
	e.mu.Unlock()

	e.subMu.Lock()
	e.subs = make(map[int]func(Event))
	e.subMu.Unlock()
	return nil
}

// Subscribe registers fn for every event and returns a function that
// removes it.
func (e *Engine) Subscribe(fn func(Event)) func() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

var errEngineClosed = errors.New("clock engine closed")

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errEngineClosed
	}
	if e.pending {
		return domain.ErrBusy
	}
	e.pending = true
	return nil
}

// enterRunning adopts a server timer. Callers hold mu.
func (e *Engine) enterRunning(t *domain.ActiveTimer) {
	copied := *t
	e.state = StateRunning
	e.timer = &copied
	e.elapsed = domain.ElapsedSeconds(copied.StartedAt, e.now())
	e.startTickerLocked()
}

// enterIdle clears the projection. Callers hold mu.
func (e *Engine) enterIdle() {
	e.state = StateIdle
	e.timer = nil
	e.elapsed = 0
	e.cancelTickerLocked()
}

func (e *Engine) startTickerLocked() {
	e.cancelTickerLocked()
	if e.closed || e.interval <= 0 {
		return
	}

	e.tickGen++
	gen := e.tickGen
	done := make(chan struct{})
	e.stopTick = func() { close(done) }

	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.tickGeneration(gen)
			}
		}
	}()
}

func (e *Engine) cancelTickerLocked() {
	if e.stopTick != nil {
		e.stopTick()
		e.stopTick = nil
	}
}

// tickGeneration ignores ticks from a ticker that was already replaced.
func (e *Engine) tickGeneration(gen uint64) {
	e.mu.Lock()
	stale := gen != e.tickGen || e.stopTick == nil
	e.mu.Unlock()
	if !stale {
		e.Tick()
	}
}

func (e *Engine) statusLocked() Status {
	st := Status{
		State:            e.state,
		ElapsedSeconds:   e.elapsed,
		Display:          domain.FormatHMS(e.elapsed),
		GatewayAvailable: e.available,
		Pending:          e.pending,
	}
	if e.timer != nil {
		st.TimerID = e.timer.ID
		st.ProjectID = e.timer.ProjectID
		st.StartedAt = e.timer.StartedAt
	}
	return st
}

func (e *Engine) notify(kind EventKind, st Status) {
	e.subMu.Lock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	ev := Event{Kind: kind, Status: st}
	for _, fn := range fns {
		fn(ev)
	}
}
