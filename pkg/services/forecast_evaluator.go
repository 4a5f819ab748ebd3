package services

import (
	"math"

	"order-forecast-api/pkg/models"
)

// Evaluate joins realized observations with forecast points on date and scores
// the overlap. An empty overlap is not an error: the result is marked Empty and
// carries no metrics.
func Evaluate(realized []models.DemandObservation, forecast []models.ForecastPoint) models.EvaluationResult {
	predicted := make(map[int64]float64, len(forecast))
	for _, p := range forecast {
		predicted[day(p.Date).Unix()] = p.Point
	}

	rows := make([]models.ComparisonRow, 0)
	for _, obs := range realized {
		yhat, ok := predicted[day(obs.Date).Unix()]
		if !ok {
			continue
		}
		e := float64(obs.Quantity) - yhat
		rows = append(rows, models.ComparisonRow{
			Date:      day(obs.Date),
			Realized:  obs.Quantity,
			Predicted: yhat,
			Error:     e,
			AbsError:  math.Abs(e),
		})
	}

	if len(rows) == 0 {
		return models.EvaluationResult{Rows: rows, Empty: true}
	}

	var absSum, sqSum float64
	for _, r := range rows {
		absSum += r.AbsError
		sqSum += r.Error * r.Error
	}
	n := float64(len(rows))
	mae := absSum / n
	rmse := math.Sqrt(sqSum / n)
	return models.EvaluationResult{Rows: rows, MAE: &mae, RMSE: &rmse}
}
