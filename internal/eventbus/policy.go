package eventbus

// DeliveryStrategy determines behaviour when a subscriber's channel is full.
type DeliveryStrategy string

const (
	// StrategyDropOldest removes the oldest event from the channel and enqueues the new one.
	StrategyDropOldest DeliveryStrategy = "drop-oldest"
	// StrategyDropNewest discards the incoming event when the channel is full.
	StrategyDropNewest DeliveryStrategy = "drop-newest"
	// StrategyOverflow spills into a capped ring buffer; a background goroutine drains it back.
	StrategyOverflow DeliveryStrategy = "overflow"
)

// DeliveryPolicy controls how a topic handles backpressure.
type DeliveryPolicy struct {
	Strategy    DeliveryStrategy
	MaxOverflow int // ring buffer cap for StrategyOverflow (0 = defaultMaxOverflow)
}

const defaultMaxOverflow = 256

var defaultPolicy = DeliveryPolicy{Strategy: StrategyDropOldest}

// Result topics keep only the newest outcome: a fresh run replaces an
// unconsumed one instead of queueing behind it.
var defaultPolicies = map[Topic]DeliveryPolicy{
	TopicEntriesChanged:    {Strategy: StrategyOverflow, MaxOverflow: defaultMaxOverflow},
	TopicCleanupCompleted:  {Strategy: StrategyOverflow, MaxOverflow: defaultMaxOverflow},
	TopicResultsApply:      {Strategy: StrategyDropOldest},
	TopicResultsRevert:     {Strategy: StrategyDropOldest},
	TopicResultsAutoLaunch: {Strategy: StrategyDropOldest},
}

// policyFor returns the delivery policy for a topic, falling back to defaultPolicy.
func policyFor(topic Topic, overrides map[Topic]DeliveryPolicy) DeliveryPolicy {
	if overrides != nil {
		if p, ok := overrides[topic]; ok {
			return p
		}
	}
	if p, ok := defaultPolicies[topic]; ok {
		return p
	}
	return defaultPolicy
}
