package compiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compileCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entityql",
		Subsystem: "compiler",
		Name:      "compile_total",
		Help:      "number of compiled queries by outcome.",
	}, []string{"outcome"})

	compileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "entityql",
		Subsystem: "compiler",
		Name:      "compile_duration_seconds",
		Help:      "distribution in seconds of time spent compiling a query.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	dispatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entityql",
		Subsystem: "parser",
		Name:      "dispatch_attempts_total",
		Help:      "number of statement handler attempts by handler and result.",
	}, []string{"handler", "success"})
)
