// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for
// the forecast service.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TrainTotal      *prometheus.CounterVec
	PredictTotal    *prometheus.CounterVec
	TrainDuration   prometheus.Histogram
	CacheHits       prometheus.Counter
	ModelTrained    prometheus.Gauge
	HistoryIngested prometheus.Counter
}

// NewMetrics registers the service metrics on reg. Each registry can hold
// one set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TrainTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adforecast_train_total",
			Help: "Training runs by outcome",
		}, []string{"outcome"}),
		PredictTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "adforecast_predict_total",
			Help: "Forecast requests by outcome",
		}, []string{"outcome"}),
		TrainDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "adforecast_train_duration_seconds",
			Help:    "Wall time of successful training runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "adforecast_forecast_cache_hits_total",
			Help: "Forecasts served from cache",
		}),
		ModelTrained: f.NewGauge(prometheus.GaugeOpts{
			Name: "adforecast_model_trained",
			Help: "1 when a trained model is loaded",
		}),
		HistoryIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "adforecast_history_days_ingested_total",
			Help: "Days written to the history store by ingestion",
		}),
	}
}

// Outcome labels an error for the *_total counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
