package server

import (
	"time"

	"github.com/geto-app/geto/internal/eventbus"
	"github.com/geto-app/geto/internal/usecase"
)

// pendingResult is one unconsumed use case outcome.
type pendingResult struct {
	CorrelationID string
	Event         eventbus.ResultEvent
	Timestamp     time.Time
}

// resultInbox holds at most one unconsumed result per use case. Each topic
// gets a single-slot subscription under the drop-oldest policy, so a newer
// run replaces a result nobody has read yet.
type resultInbox struct {
	subs map[string]*eventbus.Subscription
}

var resultTopics = map[string]eventbus.Topic{
	usecase.UseCaseApply:      eventbus.Results.Apply.Topic(),
	usecase.UseCaseRevert:     eventbus.Results.Revert.Topic(),
	usecase.UseCaseAutoLaunch: eventbus.Results.AutoLaunch.Topic(),
}

func newResultInbox(bus *eventbus.Bus) *resultInbox {
	inbox := &resultInbox{subs: make(map[string]*eventbus.Subscription, len(resultTopics))}
	if bus == nil {
		return inbox
	}
	for useCase, topic := range resultTopics {
		inbox.subs[useCase] = bus.Subscribe(topic,
			eventbus.WithSubscriptionBuffer(1),
			eventbus.WithSubscriptionName("api_results_"+useCase),
		)
	}
	return inbox
}

// known reports whether useCase names a result topic.
func (i *resultInbox) known(useCase string) bool {
	_, ok := resultTopics[useCase]
	return ok
}

// take consumes the pending result of useCase without blocking.
func (i *resultInbox) take(useCase string) (pendingResult, bool) {
	sub, ok := i.subs[useCase]
	if !ok {
		return pendingResult{}, false
	}
	select {
	case env, ok := <-sub.C():
		if !ok {
			return pendingResult{}, false
		}
		event, ok := env.Payload.(eventbus.ResultEvent)
		if !ok {
			return pendingResult{}, false
		}
		return pendingResult{CorrelationID: env.CorrelationID, Event: event, Timestamp: env.Timestamp}, true
	default:
		return pendingResult{}, false
	}
}

func (i *resultInbox) Close() {
	for _, sub := range i.subs {
		sub.Close()
	}
}
