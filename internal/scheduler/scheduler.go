// Package scheduler provides the frame tick source that drives stimulation.
//
// A Scheduler produces ticks at the display refresh cadence and delivers them
// synchronously, one at a time, to every attached handler. Handlers may be
// attached or detached at any moment, including from inside a handler; the
// handler set is snapshotted per tick so such changes apply from the next tick.
//
// All public methods are safe for concurrent use.
package scheduler

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultRate is the nominal refresh rate used when none is configured.
const DefaultRate = 60.0

// smoothing is the weight of the newest interval in the measured frame
// interval. The measured rate is the reciprocal of that average.
const smoothing = 0.1

// Tick describes a single frame.
type Tick struct {
	// Scheduled is when the tick was supposed to fire.
	Scheduled time.Time
	// Called is when the tick actually fired.
	Called time.Time
	// Elapsed is the time since the scheduler was started.
	Elapsed time.Duration
	// FPS is the configured rate, or the measured rate when none is configured.
	FPS float64
	// Measured is set when FPS was measured rather than configured.
	Measured bool
}

// Interval returns the nominal duration of one frame at the tick's rate.
func (t Tick) Interval() time.Duration {
	if t.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / t.FPS)
}

// TickFunc handles a tick. It must not block.
type TickFunc func(Tick)

// HandlerID identifies an attached handler.
type HandlerID uint64

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.nowFunc = now }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Manual disables the internal frame loop. Ticks are only produced by Fire.
func Manual() Option {
	return func(s *Scheduler) { s.manual = true }
}

// Scheduler is a free-running frame timer.
type Scheduler struct {
	mu       sync.Mutex
	handlers map[HandlerID]TickFunc
	nextID   HandlerID
	rate     float64 // configured rate, 0 means measure
	measured float64 // smoothed frame interval in seconds
	started  time.Time
	last     time.Time
	running  bool
	stop     chan struct{}

	dispatchMu sync.Mutex // serializes handler invocation

	manual  bool
	nowFunc func() time.Time
	logger  *slog.Logger
}

// New creates a stopped scheduler. A rate of zero or less means the effective
// rate is measured from actual tick intervals.
func New(rate float64, opts ...Option) *Scheduler {
	if rate < 0 {
		rate = 0
	}
	s := &Scheduler{
		handlers: make(map[HandlerID]TickFunc),
		rate:     rate,
		measured: 1 / DefaultRate,
		nowFunc:  time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// On attaches a handler and returns its id. Attaching while stopped is legal.
func (s *Scheduler) On(fn TickFunc) HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.handlers[s.nextID] = fn
	return s.nextID
}

// Off detaches a handler. Unknown ids are ignored.
func (s *Scheduler) Off(id HandlerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers, id)
}

// Handlers returns the number of attached handlers.
func (s *Scheduler) Handlers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.handlers)
}

// Start begins producing ticks. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = s.nowFunc()
	s.last = time.Time{}
	s.measured = 1 / s.nominalRate()
	s.stop = make(chan struct{})

	s.logger.Debug("scheduler started", "rate", s.rate, "manual", s.manual)

	if !s.manual {
		go s.loop(s.stop, s.frameInterval())
	}
}

// Stop halts tick production. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.logger.Debug("scheduler stopped")
}

// Running reports whether the scheduler is producing ticks.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Elapsed returns the time since Start, or zero when stopped.
func (s *Scheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return 0
	}
	return s.nowFunc().Sub(s.started)
}

// Fire delivers one tick scheduled at the given time to every attached
// handler, in attachment order. It does nothing while stopped.
func (s *Scheduler) Fire(scheduled time.Time) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	called := s.nowFunc()
	if !s.last.IsZero() {
		if d := called.Sub(s.last); d > 0 {
			s.measured = smoothing*d.Seconds() + (1-smoothing)*s.measured
		}
	}
	s.last = called

	tick := Tick{
		Scheduled: scheduled,
		Called:    called,
		Elapsed:   called.Sub(s.started),
		FPS:       s.rate,
	}
	if tick.FPS == 0 {
		tick.FPS = 1 / s.measured
		tick.Measured = true
	}

	ids := make([]HandlerID, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]TickFunc, len(ids))
	for i, id := range ids {
		fns[i] = s.handlers[id]
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(tick)
	}
}

func (s *Scheduler) loop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case scheduled := <-ticker.C:
			s.Fire(scheduled)
		}
	}
}

func (s *Scheduler) nominalRate() float64 {
	if s.rate > 0 {
		return s.rate
	}
	return DefaultRate
}

func (s *Scheduler) frameInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.nominalRate())
}
