package eventbus

import (
	"context"
	"sync"
)

// SubscriptionCloser is the minimal contract required to close a subscription.
type SubscriptionCloser interface {
	Close()
}

// ServiceLifecycle centralises common service lifecycle plumbing:
// start context, track subscriptions, run workers, and wait for shutdown.
type ServiceLifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs []SubscriptionCloser
	wg   sync.WaitGroup
}

// Start initialises the service context using the provided parent context.
func (l *ServiceLifecycle) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)
}

// Context returns the active service context.
func (l *ServiceLifecycle) Context() context.Context {
	return l.ctx
}

// AddSubscriptions registers subscriptions that should be closed on shutdown.
func (l *ServiceLifecycle) AddSubscriptions(subs ...SubscriptionCloser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sub := range subs {
		if sub != nil {
			l.subs = append(l.subs, sub)
		}
	}
}

// Go runs a worker goroutine tracked by the lifecycle wait group.
func (l *ServiceLifecycle) Go(worker func(ctx context.Context)) {
	if worker == nil {
		return
	}
	l.wg.Add(1)
	go func(ctx context.Context) {
		defer l.wg.Done()
		worker(ctx)
	}(l.ctx)
}

// Stop cancels the service context and closes tracked subscriptions.
func (l *ServiceLifecycle) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// Shutdown stops the lifecycle and waits for workers or ctx expiry.
func (l *ServiceLifecycle) Shutdown(ctx context.Context) error {
	l.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
