package dbrouter

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquires = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "dbrouter",
		Name:      "acquires_total",
		Help:      "Tenant pool acquire attempts by outcome.",
	}, []string{"tenant_id", "outcome"})

	activeHandles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "controlplane",
		Subsystem: "dbrouter",
		Name:      "active_handles",
		Help:      "Connections currently checked out per tenant.",
	}, []string{"tenant_id"})

	rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "dbrouter",
		Name:      "rotations_total",
		Help:      "Credential rotations by outcome.",
	}, []string{"outcome"})
)

func countAcquire(tenantID uuid.UUID, outcome string) {
	acquires.WithLabelValues(tenantID.String(), outcome).Inc()
}
