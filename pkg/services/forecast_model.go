package services

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"order-forecast-api/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultIntervalWidth is the coverage of the forecast uncertainty band.
const DefaultIntervalWidth = 0.80

// weeklySeasonalityMinPoints 週次季節性を推定するのに必要な最小観測数（2週間分）
const weeklySeasonalityMinPoints = 14

// ForecastModel is a fitted additive model y(t) = α + β·t + s(weekday), where t
// counts days since the first training date. A model is immutable once fitted.
type ForecastModel struct {
	ID             string    `json:"id"`
	ProductKey     string    `json:"product_key"`
	Cutoff         time.Time `json:"cutoff"`
	TrainedThrough time.Time `json:"trained_through"`
	FittedAt       time.Time `json:"fitted_at"`
	Generation     int       `json:"generation"`
	ParentID       string    `json:"parent_id,omitempty"`

	origin        time.Time
	intercept     float64
	trend         float64
	weekly        [7]float64 // indexed by time.Weekday
	sigma         float64
	intervalWidth float64
	z             float64
	training      []models.DemandObservation
}

// ModelComponents exposes the fitted parameters.
type ModelComponents struct {
	Intercept      float64            `json:"intercept"`
	TrendPerDay    float64            `json:"trend_per_day"`
	Weekly         map[string]float64 `json:"weekly"`
	ResidualStdDev float64            `json:"residual_std_dev"`
	IntervalWidth  float64            `json:"interval_width"`
}

// TrainingSet returns a copy of the observations the model was fitted on.
func (m *ForecastModel) TrainingSet() []models.DemandObservation {
	out := make([]models.DemandObservation, len(m.training))
	copy(out, m.training)
	return out
}

// Components returns the fitted parameters of the model.
func (m *ForecastModel) Components() ModelComponents {
	weekly := make(map[string]float64, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		weekly[wd.String()] = m.weekly[wd]
	}
	return ModelComponents{
		Intercept:      m.intercept,
		TrendPerDay:    m.trend,
		Weekly:         weekly,
		ResidualStdDev: m.sigma,
		IntervalWidth:  m.intervalWidth,
	}
}

func (m *ForecastModel) mean(d time.Time) float64 {
	t := d.Sub(m.origin).Hours() / 24
	return m.intercept + m.trend*t + m.weekly[d.Weekday()]
}

// ForecastModelManager fits, extends and applies forecast models.
type ForecastModelManager struct {
	intervalWidth float64
	z             float64
	logger        *zap.Logger
	metrics       *PipelineMetrics
	now           func() time.Time
}

// NewForecastModelManager creates a manager whose bands cover intervalWidth
// (0 < w < 1) of a normal residual distribution.
func NewForecastModelManager(intervalWidth float64, logger *zap.Logger, metrics *PipelineMetrics) (*ForecastModelManager, error) {
	if intervalWidth <= 0 || intervalWidth >= 1 {
		return nil, fmt.Errorf("interval width must be in (0, 1), got %v", intervalWidth)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForecastModelManager{
		intervalWidth: intervalWidth,
		z:             distuv.UnitNormal.Quantile(0.5 + intervalWidth/2),
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}, nil
}

// Fit trains a model on the observations dated strictly before cutoff.
func (mm *ForecastModelManager) Fit(productKey string, observations []models.DemandObservation, cutoff time.Time) (*ForecastModel, error) {
	cutoff = day(cutoff)
	var training []models.DemandObservation
	for _, obs := range observations {
		if obs.Date.Before(cutoff) {
			training = append(training, obs)
		}
	}

	model, err := mm.fit(productKey, training, cutoff)
	mm.metrics.ObserveFit("fit", err)
	if err != nil {
		return nil, err
	}
	mm.logger.Info("forecast model fitted",
		zap.String("model_id", model.ID),
		zap.String("product", productKey),
		zap.Time("cutoff", cutoff),
		zap.Int("observations", len(training)),
	)
	return model, nil
}

// Retrain fits a fresh model for productKey on {observations before cutoff} ∪
// realized. On a date present in both, the realized value wins. prev is not
// modified; the new model records it as its parent.
func (mm *ForecastModelManager) Retrain(prev *ForecastModel, productKey string, observations []models.DemandObservation, cutoff time.Time, realized []models.DemandObservation) (*ForecastModel, error) {
	cutoff = day(cutoff)
	byDate := make(map[int64]models.DemandObservation)
	for _, obs := range observations {
		if obs.Date.Before(cutoff) {
			byDate[day(obs.Date).Unix()] = obs
		}
	}
	for _, obs := range realized {
		byDate[day(obs.Date).Unix()] = obs
	}

	training := make([]models.DemandObservation, 0, len(byDate))
	for _, obs := range byDate {
		training = append(training, obs)
	}

	model, err := mm.fit(productKey, training, cutoff)
	mm.metrics.ObserveFit("retrain", err)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		model.Generation = prev.Generation + 1
		model.ParentID = prev.ID
	}
	mm.logger.Info("forecast model retrained",
		zap.String("model_id", model.ID),
		zap.String("parent_id", model.ParentID),
		zap.Int("generation", model.Generation),
		zap.Int("observations", len(training)),
		zap.Int("realized", len(realized)),
	)
	return model, nil
}

// Predict returns horizonDays+1 daily points starting at start.
func (mm *ForecastModelManager) Predict(model *ForecastModel, start time.Time, horizonDays int) ([]models.ForecastPoint, error) {
	if model == nil {
		return nil, errors.New("predict: no model")
	}
	if horizonDays < 0 {
		return nil, fmt.Errorf("predict: horizon must be non-negative, got %d", horizonDays)
	}
	start = day(start)
	band := model.z * model.sigma

	points := make([]models.ForecastPoint, 0, horizonDays+1)
	for i := 0; i <= horizonDays; i++ {
		d := start.AddDate(0, 0, i)
		yhat := model.mean(d)
		points = append(points, models.ForecastPoint{
			Date:  d,
			Point: yhat,
			Lower: yhat - band,
			Upper: yhat + band,
		})
	}
	return points, nil
}

func (mm *ForecastModelManager) fit(productKey string, training []models.DemandObservation, cutoff time.Time) (*ForecastModel, error) {
	if len(training) == 0 {
		return nil, &models.InsufficientDataError{What: "demand observations for " + productKey, Cutoff: cutoff}
	}
	sort.Slice(training, func(i, j int) bool { return training[i].Date.Before(training[j].Date) })

	model := &ForecastModel{
		ID:             uuid.NewString(),
		ProductKey:     productKey,
		Cutoff:         cutoff,
		TrainedThrough: day(training[len(training)-1].Date),
		FittedAt:       mm.now().UTC(),
		Generation:     1,
		origin:         day(training[0].Date),
		intervalWidth:  mm.intervalWidth,
		z:              mm.z,
		training:       training,
	}

	xs := make([]float64, len(training))
	ys := make([]float64, len(training))
	for i, obs := range training {
		xs[i] = day(obs.Date).Sub(model.origin).Hours() / 24
		ys[i] = float64(obs.Quantity)
	}

	// 1. トレンド（単回帰）。点が1つしかない場合は平均値のみ
	if len(training) >= 2 {
		model.intercept, model.trend = stat.LinearRegression(xs, ys, nil, false)
	}
	if len(training) < 2 || math.IsNaN(model.intercept) || math.IsNaN(model.trend) {
		model.intercept, model.trend = stat.Mean(ys, nil), 0
	}

	// 2. 曜日ごとの残差平均を週次季節性とする
	if len(training) >= weeklySeasonalityMinPoints {
		var sums, counts [7]float64
		for i, obs := range training {
			wd := obs.Date.Weekday()
			sums[wd] += ys[i] - (model.intercept + model.trend*xs[i])
			counts[wd]++
		}
		var present, total float64
		for wd := range sums {
			if counts[wd] > 0 {
				model.weekly[wd] = sums[wd] / counts[wd]
				total += model.weekly[wd]
				present++
			}
		}
		center := total / present
		for wd := range model.weekly {
			if counts[wd] > 0 {
				model.weekly[wd] -= center
			}
		}
	}

	// 3. 残差の標準偏差
	residuals := make([]float64, len(training))
	for i, obs := range training {
		residuals[i] = ys[i] - model.mean(obs.Date)
	}
	sigma := 0.0
	if len(residuals) >= 2 {
		sigma = stat.StdDev(residuals, nil)
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		sigma = 0
	}
	model.sigma = sigma
	return model, nil
}

// ModelSummary is the serialisable view of a ForecastModel.
type ModelSummary struct {
	ID             string          `json:"id"`
	ProductKey     string          `json:"product_key"`
	Cutoff         time.Time       `json:"cutoff"`
	TrainedThrough time.Time       `json:"trained_through"`
	FittedAt       time.Time       `json:"fitted_at"`
	Generation     int             `json:"generation"`
	ParentID       string          `json:"parent_id,omitempty"`
	TrainingSize   int             `json:"training_size"`
	Components     ModelComponents `json:"components"`
}

// Summary describes the model for API responses.
func (m *ForecastModel) Summary() ModelSummary {
	return ModelSummary{
		ID:             m.ID,
		ProductKey:     m.ProductKey,
		Cutoff:         m.Cutoff,
		TrainedThrough: m.TrainedThrough,
		FittedAt:       m.FittedAt,
		Generation:     m.Generation,
		ParentID:       m.ParentID,
		TrainingSize:   len(m.training),
		Components:     m.Components(),
	}
}
