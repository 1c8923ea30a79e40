// Package notify delivers state-change events to listeners in the order they
// were emitted, on a goroutine owned by the emitter.
package notify

import "sync"

// Emitter queues events and hands them to listeners from one dispatch
// goroutine at a time. The goroutine is started by Emit and exits as soon as
// the queue is empty, so an idle emitter holds no goroutine. Emit never blocks
// on listeners, so a listener may call back into the emitting object,
// including operations that wait for later events.
type Emitter[T any] struct {
	mu          sync.Mutex
	queue       []T
	listeners   []*listener[T]
	dispatching bool
	closed      bool
	drained     chan struct{}
	drainOnce   sync.Once
}

type listener[T any] struct {
	fn      func(T)
	removed bool
}

func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{drained: make(chan struct{})}
}

// Subscribe registers fn and returns a function that unregisters it.
// Listeners are called in registration order.
func (e *Emitter[T]) Subscribe(fn func(T)) func() {
	l := &listener[T]{fn: fn}
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			l.removed = true
			for i, other := range e.listeners {
				if other == l {
					e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit queues v. Events emitted after Close are dropped.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.queue = append(e.queue, v)
	if !e.dispatching {
		e.dispatching = true
		go e.dispatch()
	}
}

// Close stops accepting events. Already queued events are still delivered.
func (e *Emitter[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if !e.dispatching {
		e.markDrained()
	}
}

// Drained is closed once Close has been called and every queued event has
// been delivered.
func (e *Emitter[T]) Drained() <-chan struct{} {
	return e.drained
}

// markDrained closes drained. e.mu must be held.
func (e *Emitter[T]) markDrained() {
	e.drainOnce.Do(func() { close(e.drained) })
}

func (e *Emitter[T]) dispatch() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.dispatching = false
			if e.closed {
				e.markDrained()
			}
			e.mu.Unlock()
			return
		}
		v := e.queue[0]
		var zero T
		e.queue[0] = zero
		e.queue = e.queue[1:]
		listeners := append([]*listener[T](nil), e.listeners...)
		e.mu.Unlock()

		for _, l := range listeners {
			e.mu.Lock()
			removed := l.removed
			e.mu.Unlock()
			if !removed {
				l.fn(v)
			}
		}
	}
}
