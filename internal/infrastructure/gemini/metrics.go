package gemini

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutriscan",
		Subsystem: "gemini",
		Name:      "requests_total",
		Help:      "Model requests issued, by operation.",
	}, []string{"operation"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutriscan",
		Subsystem: "gemini",
		Name:      "retries_total",
		Help:      "Retries after a transient model error, by operation.",
	}, []string{"operation"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutriscan",
		Subsystem: "gemini",
		Name:      "failures_total",
		Help:      "Failed operations, by operation and error kind.",
	}, []string{"operation", "kind"})
)
