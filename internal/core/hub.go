package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the hub's run state.
type State string

const (
	StateNotRunning State = "not_running"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
)

var (
	// ErrAlreadyStarted is returned by Start unless the hub is not running.
	ErrAlreadyStarted = errors.New("core: hub already started")

	// ErrNotStarted is returned by Stop when the hub is not running.
	ErrNotStarted = errors.New("core: hub not started")
)

// Listener is called on a state transition.
type Listener func(ctx context.Context) error

// Logger defines the logging interface for the hub.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type namedListener struct {
	name string
	fn   Listener
}

// Hub tracks the run state and notifies listeners on start and stop.
//
// Thread Safety: All methods are safe for concurrent use.
type Hub struct {
	logger Logger

	mu      sync.RWMutex
	state   State
	onStart []namedListener
	onStop  []namedListener

	// serialises Start and Stop so listeners never overlap
	transition sync.Mutex
}

// New creates a hub in StateNotRunning. logger may be nil.
func New(logger Logger) *Hub {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Hub{logger: logger, state: StateNotRunning}
}

// State returns the current state.
func (h *Hub) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// IsRunning reports whether the hub is starting or running. Listeners run
// during StateStarting, so components started by them already see the hub
// as running.
func (h *Hub) IsRunning() bool {
	s := h.State()
	return s == StateStarting || s == StateRunning
}

// OnStart registers fn to run when the hub starts.
func (h *Hub) OnStart(name string, fn Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStart = append(h.onStart, namedListener{name: name, fn: fn})
}

// OnStop registers fn to run when the hub stops.
func (h *Hub) OnStop(name string, fn Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStop = append(h.onStop, namedListener{name: name, fn: fn})
}

// Start moves the hub to running and runs the start listeners. If a listener
// fails the stop listeners run, the hub returns to StateNotRunning and the
// listener's error is returned.
func (h *Hub) Start(ctx context.Context) error {
	h.transition.Lock()
	defer h.transition.Unlock()

	h.mu.Lock()
	if h.state != StateNotRunning {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}
	h.state = StateStarting
	listeners := append([]namedListener(nil), h.onStart...)
	h.mu.Unlock()

	h.logger.Info("hub starting", "listeners", len(listeners))
	for _, l := range listeners {
		if err := l.fn(ctx); err != nil {
			h.logger.Error("start listener failed", "listener", l.name, "error", err)
			h.runStop(ctx)
			h.setState(StateNotRunning)
			return fmt.Errorf("starting %s: %w", l.name, err)
		}
	}

	h.setState(StateRunning)
	h.logger.Info("hub running")
	return nil
}

// Stop runs the stop listeners in reverse registration order and returns the
// hub to StateNotRunning. Listener errors are logged and joined.
func (h *Hub) Stop(ctx context.Context) error {
	h.transition.Lock()
	defer h.transition.Unlock()

	h.mu.Lock()
	if h.state != StateRunning {
		h.mu.Unlock()
		return ErrNotStarted
	}
	h.state = StateStopping
	h.mu.Unlock()

	h.logger.Info("hub stopping")
	err := h.runStop(ctx)
	h.setState(StateNotRunning)
	h.logger.Info("hub stopped")
	return err
}

func (h *Hub) runStop(ctx context.Context) error {
	h.mu.RLock()
	listeners := append([]namedListener(nil), h.onStop...)
	h.mu.RUnlock()

	var errs []error
	for i := len(listeners) - 1; i >= 0; i-- {
		l := listeners[i]
		if err := l.fn(ctx); err != nil {
			h.logger.Error("stop listener failed", "listener", l.name, "error", err)
			errs = append(errs, fmt.Errorf("stopping %s: %w", l.name, err))
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}
