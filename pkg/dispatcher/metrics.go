package dispatcher

import "github.com/prometheus/client_golang/prometheus"

var dispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lingchat",
	Subsystem: "dispatcher",
	Name:      "messages_total",
	Help:      "Inbound messages by dispatch outcome.",
}, []string{"outcome"})

// Collectors returns the package metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{dispatchedTotal}
}
