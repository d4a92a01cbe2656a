package syncra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics publishes replication counters. All methods are nil-safe so the
// hot path never branches on whether metrics were requested.
type metrics struct {
	objects      prometheus.Gauge
	sentMessages *prometheus.CounterVec
	drops        *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncra_replicated_objects",
			Help: "Number of objects tracked by the replication registry.",
		}),
		sentMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncra_messages_sent_total",
			Help: "Replication messages handed to the transport, by kind.",
		}, []string{"kind"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncra_messages_dropped_total",
			Help: "Inbound replication messages dropped, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.objects, m.sentMessages, m.drops)
	return m
}

func (m *metrics) setObjects(n int) {
	if m == nil {
		return
	}
	m.objects.Set(float64(n))
}

func (m *metrics) incSent(kind string) {
	if m == nil {
		return
	}
	m.sentMessages.WithLabelValues(kind).Inc()
}

func (m *metrics) incDrop(reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(reason).Inc()
}
