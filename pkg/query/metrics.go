package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "domquery",
		Name:      "queries_total",
		Help:      "Selector queries dispatched, by engine and operation.",
	}, []string{"engine", "op"})
	metricQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "domquery",
		Name:      "query_errors_total",
		Help:      "Selector queries that failed, by engine and operation.",
	}, []string{"engine", "op"})
	metricIteratorElements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "domquery",
		Name:      "iterator_elements_total",
		Help:      "Element handles yielded by remote iterator bridges.",
	})
	metricDisposedHandles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "domquery",
		Name:      "disposed_handles_total",
		Help:      "Intermediate remote handles the query layer released.",
	})
	metricEngineRegistrations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "domquery",
		Name:      "engine_registrations_total",
		Help:      "Custom query engine registrations accepted.",
	})
	metricCustomEngines = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "domquery",
		Name:      "custom_engines",
		Help:      "Custom query engines currently registered.",
	})
)
