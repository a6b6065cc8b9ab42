package daemon

import (
	"context"
	"log"

	"github.com/geto-app/geto/internal/eventbus"
)

// resultLogger writes a log line for every use case result and cleanup
// sweep published on the bus.
type resultLogger struct {
	bus       *eventbus.Bus
	lifecycle eventbus.ServiceLifecycle
	logf      func(format string, args ...any)
}

func newResultLogger(bus *eventbus.Bus) *resultLogger {
	return &resultLogger{bus: bus, logf: log.Printf}
}

func (l *resultLogger) Start(ctx context.Context) error {
	l.lifecycle.Start(ctx)

	topics := []eventbus.TopicDef[eventbus.ResultEvent]{
		eventbus.Results.Apply,
		eventbus.Results.Revert,
		eventbus.Results.AutoLaunch,
	}
	for _, td := range topics {
		sub := eventbus.SubscribeTo(l.bus, td,
			eventbus.WithSubscriptionBuffer(16),
			eventbus.WithSubscriptionName("daemon_log_"+string(td.Topic())),
		)
		l.lifecycle.AddSubscriptions(sub)
		l.lifecycle.Go(func(ctx context.Context) {
			eventbus.ConsumeEnvelope(ctx, sub, nil, l.logResult)
		})
	}

	cleanup := eventbus.SubscribeTo(l.bus, eventbus.Cleanup.Completed, eventbus.WithSubscriptionName("daemon_log_cleanup"))
	l.lifecycle.AddSubscriptions(cleanup)
	l.lifecycle.Go(func(ctx context.Context) {
		eventbus.Consume(ctx, cleanup, nil, l.logCleanup)
	})
	return nil
}

func (l *resultLogger) Shutdown(ctx context.Context) error {
	return l.lifecycle.Shutdown(ctx)
}

func (l *resultLogger) logResult(env eventbus.TypedEnvelope[eventbus.ResultEvent]) {
	ev := env.Payload
	l.logf("[Results] %s %s -> %s (%d writes, %s, id=%s)", ev.UseCase, ev.Package, ev.Outcome, ev.Writes, ev.Duration, env.CorrelationID)
}

func (l *resultLogger) logCleanup(ev eventbus.CleanupCompletedEvent) {
	l.logf("[Results] cleanup removed %d entries across %v", ev.RemovedEntries, ev.RemovedPackages)
}
