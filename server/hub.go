package server

import (
	"context"
	"sync"
)

// hub keeps the latest published value and fans every new one out to its subscribers.
// Each subscriber holds at most one pending value: a slow subscriber sees the latest value,
// never a backlog, and never slows the publisher down.
type hub[T any] struct {
	mu     sync.Mutex
	latest T
	has    bool
	subs   map[chan T]struct{}
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: map[chan T]struct{}{}}
}

// publish stores @val as the latest value and offers it to every subscriber without blocking.
func (h *hub[T]) publish(val T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest, h.has = val, true
	for sub := range h.subs {
		offer(sub, val)
	}
}

// offer replaces any value pending on @sub with @val.
func offer[T any](sub chan T, val T) {
	select {
	case sub <- val:
		return
	default:
	}
	select {
	case <-sub:
	default:
	}
	select {
	case sub <- val:
	default:
	}
}

// current returns the last published value, if there is one.
func (h *hub[T]) current() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.has
}

// subscribe returns a channel receiving every value published from now on, starting with the
// current latest one. The channel closes when @ctx ends.
func (h *hub[T]) subscribe(ctx context.Context) <-chan T {
	sub := make(chan T, 1)

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	if h.has {
		sub <- h.latest
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub)
		h.mu.Unlock()
	}()
	return sub
}

// subscribers is the number of live subscriptions.
func (h *hub[T]) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
