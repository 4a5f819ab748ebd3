package services

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts pipeline activity. A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	modelFits      *prometheus.CounterVec
	forecastError  *prometheus.HistogramVec
	writeBacks     *prometheus.CounterVec
	storeRequests  *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewPipelineMetrics creates the collectors and registers them on registerer
// (prometheus.DefaultRegisterer when nil).
func NewPipelineMetrics(registerer prometheus.Registerer, environment string) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment = strings.TrimSpace(environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"env": environment}

	m := &PipelineMetrics{
		modelFits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "order_forecast_model_fits_total",
				Help:        "Forecast models fitted, by kind and result.",
				ConstLabels: constLabels,
			},
			[]string{"kind", "result"}, // fit | retrain
		),
		forecastError: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "order_forecast_mae",
				Help:        "Mean absolute error of evaluated forecasts.",
				Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 50, 100},
				ConstLabels: constLabels,
			},
			[]string{"product"},
		),
		writeBacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "order_forecast_status_writebacks_total",
				Help:        "Predicted order statuses written back to the store.",
				ConstLabels: constLabels,
			},
			[]string{"status", "result"},
		),
		storeRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "order_forecast_store_requests_total",
				Help:        "Calls to the remote store, by operation, table and result.",
				ConstLabels: constLabels,
			},
			[]string{"op", "table", "result"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "order_forecast_active_sessions",
				Help:        "Forecast sessions currently held in memory.",
				ConstLabels: constLabels,
			},
		),
	}

	registerer.MustRegister(m.modelFits, m.forecastError, m.writeBacks, m.storeRequests, m.activeSessions)
	return m
}

// ObserveFit records one Fit or Retrain outcome.
func (m *PipelineMetrics) ObserveFit(kind string, err error) {
	if m == nil {
		return
	}
	m.modelFits.WithLabelValues(kind, resultLabel(err)).Inc()
}

// ObserveEvaluation records the MAE of a non-empty evaluation.
func (m *PipelineMetrics) ObserveEvaluation(product string, mae float64) {
	if m == nil {
		return
	}
	m.forecastError.WithLabelValues(product).Observe(mae)
}

// ObserveWriteBack records one status write-back.
func (m *PipelineMetrics) ObserveWriteBack(status string, err error) {
	if m == nil {
		return
	}
	m.writeBacks.WithLabelValues(status, resultLabel(err)).Inc()
}

// ObserveStoreRequest matches airtable.Observer.
func (m *PipelineMetrics) ObserveStoreRequest(op, table string, err error) {
	if m == nil {
		return
	}
	m.storeRequests.WithLabelValues(op, table, resultLabel(err)).Inc()
}

// SetActiveSessions reports the current session count.
func (m *PipelineMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
