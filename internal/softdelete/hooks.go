package softdelete

import (
	"context"
	"errors"
	"sync"
)

// Event is a lifecycle event dispatched by the engine.
type Event string

const (
	EventDestroy     Event = "destroy"
	EventRestore     Event = "restore"
	EventRealDestroy Event = "real_destroy"
)

// ErrHalt is returned by a before callback to stop the chain without error.
// The transition reports false and its transaction is rolled back.
var ErrHalt = errors.New("softdelete: callback chain halted")

// Callback runs before or after a transition body.
type Callback func(ctx context.Context, rec Entity) error

// AroundCallback wraps a transition body; it must call next to let the body run.
type AroundCallback func(ctx context.Context, rec Entity, next func(ctx context.Context) error) error

// Hooks stores lifecycle callbacks for one entity type.
type Hooks struct {
	mu          sync.RWMutex
	before      map[Event][]Callback
	around      map[Event][]AroundCallback
	after       map[Event][]Callback
	afterCommit map[Event][]Callback
}

// NewHooks creates an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{
		before:      make(map[Event][]Callback),
		around:      make(map[Event][]AroundCallback),
		after:       make(map[Event][]Callback),
		afterCommit: make(map[Event][]Callback),
	}
}

// Before registers cb to run before the body of event.
func (h *Hooks) Before(event Event, cb Callback) {
	h.mu.Lock()
	h.before[event] = append(h.before[event], cb)
	h.mu.Unlock()
}

// Around registers cb to wrap the body of event. The first registered is outermost.
func (h *Hooks) Around(event Event, cb AroundCallback) {
	h.mu.Lock()
	h.around[event] = append(h.around[event], cb)
	h.mu.Unlock()
}

// After registers cb to run after the body of event.
func (h *Hooks) After(event Event, cb Callback) {
	h.mu.Lock()
	h.after[event] = append(h.after[event], cb)
	h.mu.Unlock()
}

// AfterCommit registers cb to run once the transaction enclosing event commits.
// Errors returned by cb are logged by the engine, never propagated.
func (h *Hooks) AfterCommit(event Event, cb Callback) {
	h.mu.Lock()
	h.afterCommit[event] = append(h.afterCommit[event], cb)
	h.mu.Unlock()
}

func (h *Hooks) snapshot(event Event) ([]Callback, []AroundCallback, []Callback) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Callback(nil), h.before[event]...),
		append([]AroundCallback(nil), h.around[event]...),
		append([]Callback(nil), h.after[event]...)
}

func (h *Hooks) commitCallbacks(event Event) []Callback {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Callback(nil), h.afterCommit[event]...)
}

// Run executes the callbacks registered for event around body.
// It reports whether body ran. A before callback returning ErrHalt, or an
// around callback that never calls next, skips body and the after callbacks.
func (h *Hooks) Run(ctx context.Context, event Event, rec Entity, body func(ctx context.Context) error) (bool, error) {
	before, around, after := h.snapshot(event)

	for _, cb := range before {
		if err := cb(ctx, rec); err != nil {
			if errors.Is(err, ErrHalt) {
				return false, nil
			}
			return false, err
		}
	}

	ran := false
	chain := func(ctx context.Context) error {
		ran = true
		return body(ctx)
	}
	for i := len(around) - 1; i >= 0; i-- {
		cb, next := around[i], chain
		chain = func(ctx context.Context) error {
			return cb(ctx, rec, next)
		}
	}

	if err := chain(ctx); err != nil {
		if !ran && errors.Is(err, ErrHalt) {
			return false, nil
		}
		return ran, err
	}
	if !ran {
		return false, nil
	}

	for _, cb := range after {
		if err := cb(ctx, rec); err != nil {
			return true, err
		}
	}
	return true, nil
}
