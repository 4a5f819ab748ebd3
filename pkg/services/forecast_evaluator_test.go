package services

import (
	"math"
	"testing"

	"order-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateJoinsOnDate(t *testing.T) {
	realized := []models.DemandObservation{
		{Date: date(2025, 3, 1), Quantity: 10},
		{Date: date(2025, 3, 2), Quantity: 4},
		{Date: date(2025, 3, 9), Quantity: 1}, // no forecast for this date
	}
	forecast := []models.ForecastPoint{
		{Date: date(2025, 3, 1), Point: 8},
		{Date: date(2025, 3, 2), Point: 7},
		{Date: date(2025, 3, 3), Point: 7},
	}

	result := Evaluate(realized, forecast)
	assert.False(t, result.Empty)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, 2.0, result.Rows[0].Error)
	assert.Equal(t, -3.0, result.Rows[1].Error)
	assert.Equal(t, 3.0, result.Rows[1].AbsError)

	require.NotNil(t, result.MAE)
	require.NotNil(t, result.RMSE)
	assert.InDelta(t, 2.5, *result.MAE, 1e-9)
	assert.InDelta(t, math.Sqrt(6.5), *result.RMSE, 1e-9)
}

func TestEvaluateDisjointDatesIsEmpty(t *testing.T) {
	realized := []models.DemandObservation{{Date: date(2025, 4, 1), Quantity: 3}}
	forecast := []models.ForecastPoint{{Date: date(2025, 3, 1), Point: 3}}

	result := Evaluate(realized, forecast)
	assert.True(t, result.Empty)
	assert.Empty(t, result.Rows)
	assert.Nil(t, result.MAE)
	assert.Nil(t, result.RMSE)
}
