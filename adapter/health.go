// Package adapter exposes shmslab pools, queues and health state to
// external monitoring: HTTP health endpoints, Prometheus and OpenTelemetry.
package adapter

import (
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shmslab/pkg/health"
)

// NewHealthHandler returns an HTTP handler serving /live and /ready for
// every target registered on m so far. Liveness fails when a region lost
// its tag; readiness also fails when a target is saturated. When reg is
// not nil the check results are exported as Prometheus gauges.
func NewHealthHandler(m *health.Monitor, reg prometheus.Registerer) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, "shmslab")
	} else {
		h = healthcheck.NewHandler()
	}
	for _, name := range m.Names() {
		name := name
		h.AddLivenessCheck(name+"-region", func() error { return m.Live(name) })
		h.AddReadinessCheck(name+"-saturation", func() error { return m.Check(name) })
	}
	return h
}
