package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geto-app/geto/internal/eventbus"
)

// EventCounter counts published events grouped by topic and source.
type EventCounter struct {
	events *prometheus.CounterVec
}

// NewEventCounter creates a counter that can be registered as an event bus
// observer.
func NewEventCounter(reg prometheus.Registerer) *EventCounter {
	c := &EventCounter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "events_total",
			Help:      "Total number of published events per topic and source.",
		}, []string{"topic", "source"}),
	}
	reg.MustRegister(c.events)
	return c
}

// OnPublish implements eventbus.Observer.
func (c *EventCounter) OnPublish(env eventbus.Envelope) {
	if env.Topic == "" {
		return
	}
	c.events.WithLabelValues(string(env.Topic), string(env.Source)).Inc()
}

// busCollector exposes the bus' own publish and drop counters.
type busCollector struct {
	bus       *eventbus.Bus
	published *prometheus.Desc
	dropped   *prometheus.Desc
}

func newBusCollector(bus *eventbus.Bus) *busCollector {
	return &busCollector{
		bus: bus,
		published: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "eventbus", "publish_total"),
			"Total number of events published on the bus.", nil, nil),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "eventbus", "dropped_total"),
			"Total number of events dropped by the bus.", nil, nil),
	}
}

func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.published
	ch <- c.dropped
}

func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.bus.Metrics()
	ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(m.PublishTotal))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(m.DroppedTotal))
}
