package notification

import "github.com/prometheus/client_golang/prometheus"

var notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lingchat",
	Subsystem: "notification",
	Name:      "results_total",
	Help:      "Notification display attempts by result (shown, failed or the suppressing condition).",
}, []string{"result"})

// Collectors returns the package metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{notificationsTotal}
}
