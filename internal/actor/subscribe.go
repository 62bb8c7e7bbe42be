package actor

import "sync"

// subscription is a single observer of actor state.
//
// The channel has capacity one and always holds the newest undelivered state,
// so a slow observer skips intermediate states instead of stalling the loop.
//
// mu serializes offer and close, so a cancel racing a publish never sends on
// a closed channel.
type subscription[S any] struct {
	ch chan S

	mu     sync.Mutex
	closed bool
}

func (s *subscription[S]) offer(state S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- state:
			return
		default:
		}
		// Replace the stale undelivered value.
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscription[S]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Subscribe registers an observer. The returned channel receives the current
// state immediately and the latest state after every change. It is closed by
// the cancel func or when the actor loop exits.
func (a *Actor[S]) Subscribe() (<-chan S, func()) {
	sub := &subscription[S]{ch: make(chan S, 1)}

	a.mu.Lock()
	sub.ch <- a.state
	if a.subs == nil {
		// Loop already exited.
		a.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	a.subs[sub] = struct{}{}
	a.mu.Unlock()

	return sub.ch, func() {
		a.mu.Lock()
		delete(a.subs, sub)
		a.mu.Unlock()
		sub.close()
	}
}

// publish offers state to every subscriber without blocking.
func (a *Actor[S]) publish(state S) {
	a.mu.RLock()
	subs := make([]*subscription[S], 0, len(a.subs))
	for sub := range a.subs {
		subs = append(subs, sub)
	}
	a.mu.RUnlock()

	for _, sub := range subs {
		sub.offer(state)
	}
}

func (a *Actor[S]) closeSubscribers() {
	a.mu.Lock()
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}
