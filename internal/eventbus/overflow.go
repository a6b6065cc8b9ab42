package eventbus

import (
	"context"
	"sync"
)

// overflowBuffer is a mutex-protected circular buffer of Envelopes used by
// topics that must not lose events during bursts.
type overflowBuffer struct {
	mu     sync.Mutex
	buf    []Envelope
	head   int
	count  int
	cap    int
	notify chan struct{}
	done   chan struct{}
}

func newOverflowBuffer(maxSize int) *overflowBuffer {
	if maxSize <= 0 {
		maxSize = defaultMaxOverflow
	}
	return &overflowBuffer{
		buf:    make([]Envelope, maxSize),
		cap:    maxSize,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push appends an envelope to the ring. Returns false if the ring is full.
func (o *overflowBuffer) push(env Envelope) bool {
	o.mu.Lock()
	if o.count >= o.cap {
		o.mu.Unlock()
		return false
	}
	o.buf[(o.head+o.count)%o.cap] = env
	o.count++
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return true
}

func (o *overflowBuffer) pop() (Envelope, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.count == 0 {
		return Envelope{}, false
	}
	env := o.buf[o.head]
	o.buf[o.head] = Envelope{}
	o.head = (o.head + 1) % o.cap
	o.count--
	return env, true
}

func (o *overflowBuffer) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// drainLoop moves envelopes from the ring into ch until ctx is cancelled.
func (o *overflowBuffer) drainLoop(ctx context.Context, ch chan<- Envelope) {
	defer close(o.done)
	for {
		for {
			env, ok := o.pop()
			if !ok {
				break
			}
			select {
			case ch <- env:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-o.notify:
		}
	}
}
