// Package events provides a small observer primitive used to fan state
// changes out from the session model to the UI and other listeners.
package events

import (
	"sync"
)

// Event is a thread-safe publisher for values of type T. Listeners are
// either callbacks or channels; channel sends are non-blocking so a slow
// listener can never stall the publisher.
type Event[T any] struct {
	mu         sync.RWMutex
	subs       map[uint64]func(T)
	nextID     uint64
	replayLast bool
	last       *T
}

// New creates an Event. When replayLast is true, each new listener is
// immediately handed the most recently published value (if any), so a UI
// attaching late still sees the current state.
func New[T any](replayLast bool) *Event[T] {
	return &Event[T]{
		subs:       make(map[uint64]func(T)),
		replayLast: replayLast,
	}
}

// Subscribe registers a callback and returns a deregistration function.
// The callback runs on the publisher's goroutine.
func (e *Event[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		panic("events: callback cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	var replay *T
	if e.replayLast && e.last != nil {
		v := *e.last
		replay = &v
	}
	e.mu.Unlock()

	// Replay outside the lock so the callback may publish or subscribe.
	if replay != nil {
		fn(*replay)
	}

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// SubscribeChan registers a channel listener and returns a deregistration
// function. Sends are non-blocking: if the channel is full the value is
// dropped for that listener.
func (e *Event[T]) SubscribeChan(ch chan<- T) func() {
	if ch == nil {
		panic("events: channel cannot be nil")
	}
	return e.Subscribe(func(v T) {
		select {
		case ch <- v:
		default:
		}
	})
}

// Publish delivers the value to all current listeners.
func (e *Event[T]) Publish(v T) {
	e.mu.Lock()
	if e.replayLast {
		if e.last == nil {
			e.last = new(T)
		}
		*e.last = v
	}
	subs := make([]func(T), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// ListenerCount returns the number of registered listeners.
func (e *Event[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}
