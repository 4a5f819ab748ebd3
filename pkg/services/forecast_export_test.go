package services

import (
	"bytes"
	"testing"

	"order-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportForecastWorkbook(t *testing.T) {
	forecast := []models.ForecastPoint{
		{Date: date(2025, 3, 1), Point: 5, Lower: 4, Upper: 6},
		{Date: date(2025, 3, 2), Point: 6, Lower: 5, Upper: 7},
	}
	result := &ForecastResult{
		Product:    "P1",
		Month:      "2025-03",
		Forecast:   forecast,
		Comparison: Evaluate([]models.DemandObservation{{Date: date(2025, 3, 1), Quantity: 7}}, forecast),
	}

	data, err := ExportForecastWorkbook(result)
	require.NoError(t, err)
	assert.Equal(t, "forecast_P1_2025-03.xlsx", ForecastExportFilename(result))

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Forecast", "Comparison"}, f.GetSheetList())

	rows, err := f.GetRows("Forecast")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "yhat", "yhat_lower", "yhat_upper"}, rows[0])
	assert.Equal(t, "2025-03-01", rows[1][0])

	rows, err = f.GetRows("Comparison")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-01", "7", "5", "2", "2"}, rows[1])
	assert.Equal(t, "MAE", rows[3][0])
	assert.Equal(t, "2", rows[3][1])
}

func TestExportForecastWorkbookEmptyComparison(t *testing.T) {
	result := &ForecastResult{
		Product:    "P1",
		Month:      "2025-06",
		Forecast:   []models.ForecastPoint{{Date: date(2025, 6, 1), Point: 1}},
		Comparison: Evaluate(nil, nil),
	}

	data, err := ExportForecastWorkbook(result)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Comparison")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
