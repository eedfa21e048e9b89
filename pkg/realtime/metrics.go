package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lingchat",
		Subsystem: "realtime",
		Name:      "connection_state",
		Help:      "Current connection state per manager scope (0 disconnected, 1 connecting, 2 connected, 3 error).",
	}, []string{"scope"})

	reconnectAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lingchat",
		Subsystem: "realtime",
		Name:      "reconnect_attempts_total",
		Help:      "Automatic reconnects scheduled after a failure.",
	}, []string{"scope"})

	inboundEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lingchat",
		Subsystem: "realtime",
		Name:      "inbound_events_total",
		Help:      "Frames received from the event stream, by event name.",
	}, []string{"event"})

	emitDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lingchat",
		Subsystem: "realtime",
		Name:      "emit_dropped_total",
		Help:      "Outbound events dropped because the manager was not connected or the write failed.",
	}, []string{"event"})
)

// Collectors returns the package metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		connectionStateGauge,
		reconnectAttemptsTotal,
		inboundEventsTotal,
		emitDroppedTotal,
	}
}
