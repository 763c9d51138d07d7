package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	davRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remdav_dav_requests_total",
		Help: "DAV requests by method and status class",
	}, []string{"method", "status"})

	adapterReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remdav_adapter_reloads_total",
		Help: "Adapter source reloads by adapter and outcome",
	}, []string{"adapter", "outcome"}) // outcome=success|failure

	objectsServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remdav_objects_served_total",
		Help: "Calendar and contact objects served by adapter",
	}, []string{"adapter"})
)

// RecordRequest counts a finished DAV request.
func RecordRequest(method, statusClass string) {
	davRequestsTotal.WithLabelValues(method, statusClass).Inc()
}

// RecordReload counts an adapter reload attempt.
func RecordReload(adapter string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	adapterReloadsTotal.WithLabelValues(adapter, outcome).Inc()
}

// RecordObjectServed counts one object handed to a client.
func RecordObjectServed(adapter string) {
	objectsServedTotal.WithLabelValues(adapter).Inc()
}
