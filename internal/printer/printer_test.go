package printer

import (
	"bytes"
	"testing"
	"time"

	"order-forecast-api/pkg/models"
	"order-forecast-api/pkg/services"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	color.NoColor = true
	buf := &bytes.Buffer{}
	prev := Out
	Out = buf
	t.Cleanup(func() { Out = prev })
	return buf
}

func TestForecastPrintsBothTables(t *testing.T) {
	buf := capture(t)
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	forecast := []models.ForecastPoint{{Date: day, Point: 5, Lower: 4, Upper: 6}}
	result := &services.ForecastResult{
		Product:    "P1",
		Forecast:   forecast,
		Comparison: services.Evaluate([]models.DemandObservation{{Date: day, Quantity: 7}}, forecast),
	}

	require.NoError(t, Forecast(result))
	out := buf.String()
	assert.Contains(t, out, "2025-03-01")
	assert.Contains(t, out, "5.00")
	assert.Contains(t, out, "MAE 2.00  RMSE 2.00")
}

func TestForecastWithoutRealizedDemand(t *testing.T) {
	buf := capture(t)
	result := &services.ForecastResult{Comparison: services.Evaluate(nil, nil)}

	require.NoError(t, Forecast(result))
	assert.Contains(t, buf.String(), "no realized demand")
}

func TestClassificationSummary(t *testing.T) {
	buf := capture(t)
	result := &services.ClassifyResult{
		Report: models.ClassificationReport{
			Classes:  map[models.OrderStatus]models.ClassMetrics{models.StatusValid: {Precision: 1, Recall: 1, F1Score: 1, Support: 2}},
			Accuracy: 1,
		},
		Predictions: []models.StatusPrediction{
			{OrderRecordID: "recA", OrderID: "1", Predicted: models.StatusValid, Written: true},
			{OrderRecordID: "recB", OrderID: "2", Predicted: models.StatusInvalid, Error: "HTTP 422"},
		},
		Written: 1,
		Failed:  1,
	}

	require.NoError(t, Classification(result))
	out := buf.String()
	assert.Contains(t, out, "macro avg")
	assert.Contains(t, out, "failed: HTTP 422")
	assert.Contains(t, out, "2 orders classified, 1 written, 1 failed")
}

func TestWarnings(t *testing.T) {
	buf := capture(t)
	Warnings([]models.Warning{
		{Kind: models.WarningMalformedDate, RecordID: "recL1", Message: "cannot parse"},
		{Kind: models.WarningTableUnavailable, Message: "products unavailable"},
	})
	assert.Contains(t, buf.String(), "[malformed_date] recL1: cannot parse")
	assert.Contains(t, buf.String(), "[table_unavailable] products unavailable")
}
