// Package actionqueue implements the bounded single-consumer action queue
// described in spec.md section 4.4: a soft-bounded channel of
// user-originated actions (publish, subscribe, authenticate, read, write,
// delete) plus an unbounded slice of internal signals (ConnectingComplete,
// ConnectionClosed, ChannelError, Tick, Dispose) that can never fail to
// enqueue. Pop always prefers internal signals over user actions so that
// reconnect bookkeeping is never starved by application traffic.
package actionqueue

import (
	"sync"

	"github.com/satori-rtm/rtmclient/internal/rtmerr"
)

// Action is anything the event loop can pop and execute. It carries no
// behavior of its own; the event loop type-switches on the concrete value.
type Action interface{}

// Queue is the bounded-user/unbounded-internal hybrid queue (spec.md
// section 4.4). The zero value is not usable; use New.
type Queue struct {
	user chan Action

	mu       sync.Mutex
	internal []Action
	notify   chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Queue whose user-action channel has the given soft bound.
func New(bound int) *Queue {
	return &Queue{
		user:   make(chan Action, bound),
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// PushUser enqueues a user-originated action. It fails with
// rtmerr.ErrQueueFull immediately (never blocks) if the bound is exceeded,
// per spec.md section 4.4 testable property 7.
func (q *Queue) PushUser(a Action) error {
	select {
	case q.user <- a:
		q.wake()
		return nil
	default:
		return rtmerr.ErrQueueFull
	}
}

// PushInternal enqueues an internal signal. It never fails to enqueue.
func (q *Queue) PushInternal(a Action) {
	q.mu.Lock()
	q.internal = append(q.internal, a)
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop blocks until an action is available or the queue is closed. Internal
// signals are always returned before user actions (spec.md section 4.4).
// The second return value is false only once the queue has been drained
// after Close.
func (q *Queue) Pop() (Action, bool) {
	for {
		if a, ok := q.popInternal(); ok {
			return a, true
		}
		select {
		case a := <-q.user:
			return a, true
		default:
		}

		select {
		case a := <-q.user:
			return a, true
		case <-q.notify:
			continue
		case <-q.closed:
			if a, ok := q.popInternal(); ok {
				return a, true
			}
			select {
			case a := <-q.user:
				return a, true
			default:
				return nil, false
			}
		}
	}
}

func (q *Queue) popInternal() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.internal) == 0 {
		return nil, false
	}
	a := q.internal[0]
	q.internal = q.internal[1:]
	return a, true
}

// Close signals Pop to stop blocking once the queue drains. Idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}
