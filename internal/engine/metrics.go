package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmserve",
			Subsystem: "engine",
			Name:      "loads_total",
			Help:      "Model download+load attempts by result",
		},
		[]string{"result"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmserve",
			Subsystem: "engine",
			Name:      "load_duration_seconds",
			Help:      "Duration of model download+load in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmserve",
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Generation calls by result",
		},
		[]string{"result"},
	)

	generateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmserve",
			Subsystem: "engine",
			Name:      "generate_duration_seconds",
			Help:      "Duration of text generation in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	busyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmserve",
			Subsystem: "engine",
			Name:      "busy_total",
			Help:      "Requests rejected because the execution slot stayed taken",
		},
		[]string{"op"},
	)

	modelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llmserve",
			Subsystem: "engine",
			Name:      "model_loaded",
			Help:      "1 when a model is held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, generationsTotal, generateDuration, busyTotal, modelLoaded)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
