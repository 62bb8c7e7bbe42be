// Package actor runs a state machine on one goroutine.
//
// An Actor owns a value of type S. Commands from callers and events from the
// runtime share one mailbox; each is folded into the state by a pure reducer,
// which returns effects as data. The Runtime performs those effects and feeds
// results back as new inputs. Observers read published snapshots only.
package actor

import (
	"context"
	"sync"
)

// Input is anything accepted by the mailbox: caller commands and runtime
// events alike.
type Input interface {
	isActorInput()
}

// Effect is a side effect requested by a reducer. Effects are plain values;
// only the Runtime executes them.
type Effect interface {
	isActorEffect()
}

// InputBase is embedded by input structs.
type InputBase struct{}

func (InputBase) isActorInput() {}

// EffectBase is embedded by effect structs.
type EffectBase struct{}

func (EffectBase) isActorEffect() {}

// ReducerFunc computes the next state and effects for one input. It must not
// perform I/O, start goroutines or read the clock.
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Step runs reducer once without executing effects.
func Step[S any](state S, input Input, reducer ReducerFunc[S]) (S, []Effect) {
	return reducer(state, input)
}

// Runtime executes effects and reports outcomes through emit.
//
// Emitted inputs are never dropped: they wait in an unbounded FIFO that the
// loop drains alongside the mailbox. emit never blocks, so it may be called
// from HandleEffects as well as from runtime goroutines.
type Runtime interface {
	// HandleEffects is called from the actor goroutine and must not block.
	// Nothing may be emitted after ctx is done.
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))

	// Stop releases background work. Repeated calls are allowed.
	Stop()
}

// Hooks observe the loop. All are optional and run on the actor goroutine.
type Hooks[S any] struct {
	OnInput      func(input Input)
	OnTransition func(prev S, next S, input Input)
	OnEffects    func(effects []Effect)
	// OnDrop sees caller inputs rejected by a full mailbox.
	OnDrop func(input Input)
	// OnPanic recovers a panicking loop. Without it the panic propagates.
	OnPanic func(recovered any)
}

const defaultMailboxSize = 256

// Actor is a single-writer event loop over state S.
type Actor[S any] struct {
	reduce  ReducerFunc[S]
	runtime Runtime
	hooks   Hooks[S]
	equal   func(a, b S) bool

	// mu guards state and subs; only the loop writes state.
	mu    sync.RWMutex
	state S
	subs  map[*subscription[S]]struct{}

	inbox chan Input

	// emitted holds runtime inputs; wake signals that it is non-empty.
	emitMu  sync.Mutex
	emitted []Input
	wake    chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started sync.Once
}

// Option customizes New.
type Option[S any] func(*Actor[S])

// WithHooks installs observation hooks.
func WithHooks[S any](hooks Hooks[S]) Option[S] {
	return func(a *Actor[S]) { a.hooks = hooks }
}

// WithMailboxSize overrides the mailbox capacity. Non-positive sizes are
// ignored.
func WithMailboxSize[S any](n int) Option[S] {
	return func(a *Actor[S]) {
		if n > 0 {
			a.inbox = make(chan Input, n)
		}
	}
}

// WithEqual lets the actor skip publishing when a transition leaves the
// state equal. Without it every input publishes.
func WithEqual[S any](equal func(a, b S) bool) Option[S] {
	return func(a *Actor[S]) { a.equal = equal }
}

// New returns an actor that is not yet running.
func New[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Actor[S] {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor[S]{
		reduce:  reducer,
		runtime: runtime,
		state:   initial,
		subs:    make(map[*subscription[S]]struct{}),
		inbox:   make(chan Input, defaultMailboxSize),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start runs the loop. Only the first call has an effect.
func (a *Actor[S]) Start() {
	a.started.Do(func() { go a.run() })
}

// Stop ends the loop and stops the runtime. Safe to repeat.
func (a *Actor[S]) Stop() {
	a.cancel()
	if a.runtime != nil {
		a.runtime.Stop()
	}
}

// Done is closed once the loop has exited and subscribers are closed.
func (a *Actor[S]) Done() <-chan struct{} { return a.done }

// Enqueue offers a caller input to the mailbox without blocking. It reports
// false when the actor is stopped or the mailbox is full.
func (a *Actor[S]) Enqueue(input Input) bool {
	if input == nil || a.ctx.Err() != nil {
		return false
	}
	select {
	case a.inbox <- input:
		return true
	default:
	}
	if a.hooks.OnDrop != nil {
		a.hooks.OnDrop(input)
	}
	return false
}

// State returns the latest applied state.
func (a *Actor[S]) State() S {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Actor[S]) run() {
	defer close(a.done)
	defer a.closeSubscribers()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if a.hooks.OnPanic == nil {
			panic(r)
		}
		a.hooks.OnPanic(r)
	}()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.wake:
			for _, in := range a.takeEmitted() {
				// A queued input never runs after Stop.
				if a.ctx.Err() != nil {
					return
				}
				a.apply(in, a.emit)
			}
		case in := <-a.inbox:
			if a.ctx.Err() != nil {
				return
			}
			if in != nil {
				a.apply(in, a.emit)
			}
		}
	}
}

// emit queues a runtime input. It never blocks and never drops while the
// actor is running.
func (a *Actor[S]) emit(in Input) {
	if in == nil || a.ctx.Err() != nil {
		return
	}
	a.emitMu.Lock()
	a.emitted = append(a.emitted, in)
	a.emitMu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Actor[S]) takeEmitted() []Input {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	batch := a.emitted
	a.emitted = nil
	return batch
}

// apply reduces one input, publishes the result and hands off effects.
func (a *Actor[S]) apply(in Input, emit func(Input)) {
	if a.hooks.OnInput != nil {
		a.hooks.OnInput(in)
	}

	prev := a.State()
	next, effects := a.reduce(prev, in)

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()

	if a.hooks.OnTransition != nil {
		a.hooks.OnTransition(prev, next, in)
	}
	if a.equal == nil || !a.equal(prev, next) {
		a.publish(next)
	}

	if len(effects) == 0 {
		return
	}
	if a.hooks.OnEffects != nil {
		a.hooks.OnEffects(effects)
	}
	if a.runtime != nil {
		a.runtime.HandleEffects(a.ctx, effects, emit)
	}
}
