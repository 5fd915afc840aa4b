package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 问答流水线的Prometheus指标
type Metrics struct {
	StageDuration  *prometheus.HistogramVec
	Answers        *prometheus.CounterVec
	SearchDegraded prometheus.Counter
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lotr_rag_stage_duration_seconds",
				Help:    "Duration of each answering pipeline stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		Answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotr_rag_answers_total",
				Help: "Answering pipeline outcomes",
			},
			[]string{"status"},
		),
		SearchDegraded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lotr_rag_search_degraded_total",
				Help: "Vector searches that failed and were answered with empty context",
			},
		),
	}
}
