package services

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPipelineMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPipelineMetrics(registry, "test")

	m.ObserveFit("fit", nil)
	m.ObserveFit("retrain", errors.New("boom"))
	m.ObserveStoreRequest("fetch", "Comanda", nil)
	m.ObserveStoreRequest("fetch", "Comanda", nil)
	m.ObserveWriteBack("Valid", errors.New("rejected"))
	m.ObserveEvaluation("P1", 1.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelFits.WithLabelValues("fit", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelFits.WithLabelValues("retrain", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeRequests.WithLabelValues("fetch", "Comanda", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writeBacks.WithLabelValues("Valid", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.forecastError))
}

func TestPipelineMetricsNilIsNoop(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.ObserveFit("fit", nil)
		m.ObserveEvaluation("P1", 1)
		m.ObserveWriteBack("Valid", nil)
		m.ObserveStoreRequest("fetch", "Comanda", nil)
		m.SetActiveSessions(3)
	})
}

func TestActiveSessionsGaugeFollowsStore(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPipelineMetrics(registry, "")
	sessions := NewSessionStore(time.Hour, zap.NewNop(), m)

	a := sessions.Create()
	sessions.Create()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeSessions))

	require.True(t, sessions.Delete(a.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
}
