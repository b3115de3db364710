package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request counters exposed on /metrics. Labels stay low-cardinality:
// outcome classes, never public keys.
var (
	signTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teesigner",
		Name:      "sign_requests_total",
		Help:      "Sign requests by outcome class.",
	}, []string{"outcome"})

	refusalTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teesigner",
		Name:      "slashing_refusals_total",
		Help:      "Sign requests refused by slashing protection.",
	})

	keygenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teesigner",
		Name:      "keys_generated_total",
		Help:      "Keys generated in the enclave by kind.",
	}, []string{"kind"})

	importTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teesigner",
		Name:      "keys_imported_total",
		Help:      "BLS keys imported over the encrypted channel.",
	})
)
