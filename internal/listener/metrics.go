package listener

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Request path labels for the outbound request counter.
const (
	RequestPathBroadcast = "broadcast"
	RequestPathDirect    = "direct"
)

// ListenerMetrics tracks protocol and delivery statistics. All observe
// methods are nil-safe so instrumentation can be left unconfigured.
type ListenerMetrics struct {
	signalsTotal  *prometheus.CounterVec
	eventsTotal   *prometheus.CounterVec
	requestsTotal *prometheus.CounterVec
	decodeSkipped prometheus.Counter
	droppedTotal  prometheus.Counter

	registerer prometheus.Registerer

	mu         sync.Mutex
	registered bool
}

func newListenerCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outputbridge",
			Subsystem: "listener",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newListenerCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "outputbridge",
			Subsystem: "listener",
			Name:      name,
			Help:      help,
		},
	)
}

// NewListenerMetrics creates the collectors. A nil registerer falls back to
// prometheus.DefaultRegisterer.
func NewListenerMetrics(registerer prometheus.Registerer) *ListenerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ListenerMetrics{
		registerer:    registerer,
		signalsTotal:  newListenerCounterVec("signals_total", "Inbound protocol signals processed", []string{"signal"}),
		eventsTotal:   newListenerCounterVec("events_total", "Events emitted towards the consumer", []string{"kind"}),
		requestsTotal: newListenerCounterVec("requests_total", "Outbound requests posted to the source", []string{"kind", "path"}),
		decodeSkipped: newListenerCounter("decode_skipped_total", "Data payloads skipped as undecodable"),
		droppedTotal:  newListenerCounter("delivery_dropped_total", "Events dropped because no callback was registered"),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *ListenerMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	for _, collector := range m.collectors() {
		if err := m.registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Unregister removes the collectors, mainly for test hygiene.
func (m *ListenerMetrics) Unregister() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, collector := range m.collectors() {
		m.registerer.Unregister(collector)
	}
	m.registered = false
}

func (m *ListenerMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.signalsTotal,
		m.eventsTotal,
		m.requestsTotal,
		m.decodeSkipped,
		m.droppedTotal,
	}
}

func (m *ListenerMetrics) ObserveSignal(signal string) {
	if m == nil {
		return
	}
	m.signalsTotal.WithLabelValues(signal).Inc()
}

func (m *ListenerMetrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *ListenerMetrics) ObserveRequest(kind, path string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(kind, path).Inc()
}

func (m *ListenerMetrics) ObserveDecodeSkip() {
	if m == nil {
		return
	}
	m.decodeSkipped.Inc()
}

func (m *ListenerMetrics) ObserveDrop() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}
