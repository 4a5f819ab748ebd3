package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"order-forecast-api/pkg/models"

	"go.uber.org/zap"
)

// TableNames are the store tables the pipeline reads and writes.
type TableNames struct {
	Orders     string
	OrderLines string
	Products   string
	Customers  string
}

// PipelineOptions configures a PipelineService.
type PipelineOptions struct {
	Tables      TableNames
	Fields      models.FieldNames
	HorizonDays int
	Classifier  ClassifierConfig
}

// PipelineService runs the demand forecasting and order classification flows
// against the store.
type PipelineService struct {
	store      DataStore
	mapper     *RecordMapper
	forecaster *ForecastModelManager
	opts       PipelineOptions
	logger     *zap.Logger
	metrics    *PipelineMetrics
}

// NewPipelineService wires a pipeline.
func NewPipelineService(store DataStore, forecaster *ForecastModelManager, opts PipelineOptions, logger *zap.Logger, metrics *PipelineMetrics) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		store:      store,
		mapper:     NewRecordMapper(opts.Fields),
		forecaster: forecaster,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// HorizonDays is the forecast horizon in days.
func (p *PipelineService) HorizonDays() int { return p.opts.HorizonDays }

// ParseMonth parses "YYYY-MM" into the first day of that month.
func ParseMonth(month string) (time.Time, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(month))
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM, got %q", month)
	}
	return t, nil
}

// SeriesResult is the daily demand of one product.
type SeriesResult struct {
	Product      string                     `json:"product"`
	Observations []models.DemandObservation `json:"observations"`
	Warnings     []models.Warning           `json:"warnings"`
}

// PredictRequest asks for a forecast of one product starting at a month.
type PredictRequest struct {
	Product   string `json:"product" binding:"required"`
	Month     string `json:"month" binding:"required"`
	UseCached bool   `json:"use_cached"`
}

// ForecastResult is a forecast plus its comparison with realized demand.
type ForecastResult struct {
	Product         string                  `json:"product"`
	Month           string                  `json:"month"`
	Cutoff          time.Time               `json:"cutoff"`
	HorizonDays     int                     `json:"horizon_days"`
	Model           ModelSummary            `json:"model"`
	UsedCachedModel bool                    `json:"used_cached_model"`
	Forecast        []models.ForecastPoint  `json:"forecast"`
	Comparison      models.EvaluationResult `json:"comparison"`
	Warnings        []models.Warning        `json:"warnings"`
}

// RetrainRequest asks to extend the session model with a month of realized demand.
// Without Realized, the store's observations for the month window are used.
type RetrainRequest struct {
	Product  string                     `json:"product" binding:"required"`
	Month    string                     `json:"month" binding:"required"`
	Realized []models.DemandObservation `json:"realized,omitempty"`
}

// RetrainResult describes the model installed by a retrain.
type RetrainResult struct {
	Product         string           `json:"product"`
	Month           string           `json:"month"`
	Model           ModelSummary     `json:"model"`
	PreviousModelID string           `json:"previous_model_id,omitempty"`
	RealizedCount   int              `json:"realized_count"`
	Warnings        []models.Warning `json:"warnings"`
}

// ClassifyRequest controls a classification run.
type ClassifyRequest struct {
	DryRun bool `json:"dry_run"`
}

// ClassifyResult is the evaluation report plus one entry per classified order.
type ClassifyResult struct {
	Report      models.ClassificationReport `json:"report"`
	Predictions []models.StatusPrediction   `json:"predictions"`
	Written     int                         `json:"written"`
	Failed      int                         `json:"failed"`
	DryRun      bool                        `json:"dry_run"`
	Warnings    []models.Warning            `json:"warnings"`
}

// Products lists the product keys that have order lines.
func (p *PipelineService) Products(ctx context.Context) ([]string, []models.Warning, error) {
	lines, warnings, err := p.loadLines(ctx)
	if err != nil {
		return nil, warnings, err
	}
	return ProductKeys(lines), warnings, nil
}

// DemandSeries returns the daily demand of product.
func (p *PipelineService) DemandSeries(ctx context.Context, product string) (*SeriesResult, error) {
	series, warnings, err := p.demandSeries(ctx, product)
	if err != nil {
		return nil, err
	}
	return &SeriesResult{Product: product, Observations: series, Warnings: warnings}, nil
}

// PredictMonth forecasts product from the first day of the month and compares
// the forecast with the realized demand inside the horizon. The session model
// is used only when requested, fitted for the same product and trained strictly
// before the cutoff; the session is never modified.
func (p *PipelineService) PredictMonth(ctx context.Context, session *ForecastSession, req PredictRequest) (*ForecastResult, error) {
	cutoff, err := ParseMonth(req.Month)
	if err != nil {
		return nil, err
	}
	series, warnings, err := p.demandSeries(ctx, req.Product)
	if err != nil {
		return nil, err
	}

	var model *ForecastModel
	usedCached := false
	if req.UseCached {
		var cached *ForecastModel
		if session != nil {
			cached = session.Model()
		}
		switch {
		case cached == nil:
			warnings = append(warnings, models.Warning{
				Kind:    models.WarningCachedModelMismatch,
				Message: "no cached model in this session; fitted a fresh one",
			})
		case cached.ProductKey != req.Product:
			warnings = append(warnings, models.Warning{
				Kind:    models.WarningCachedModelMismatch,
				Message: fmt.Sprintf("cached model is for product %q; fitted a fresh one for %q", cached.ProductKey, req.Product),
			})
		case !cached.TrainedThrough.Before(cutoff):
			warnings = append(warnings, models.Warning{
				Kind: models.WarningCachedModelOverlap,
				Message: fmt.Sprintf("cached model is trained through %s, not before %s; fitted a fresh one",
					cached.TrainedThrough.Format("2006-01-02"), cutoff.Format("2006-01-02")),
			})
		default:
			model, usedCached = cached, true
		}
	}
	if model == nil {
		model, err = p.forecaster.Fit(req.Product, series, cutoff)
		if err != nil {
			return nil, err
		}
	}

	forecast, err := p.forecaster.Predict(model, cutoff, p.opts.HorizonDays)
	if err != nil {
		return nil, err
	}
	realized := ObservationsBetween(series, cutoff, cutoff.AddDate(0, 0, p.opts.HorizonDays))
	comparison := Evaluate(realized, forecast)
	if !comparison.Empty {
		p.metrics.ObserveEvaluation(req.Product, *comparison.MAE)
	}

	p.logger.Info("forecast computed",
		zap.String("product", req.Product),
		zap.String("month", req.Month),
		zap.Bool("cached_model", usedCached),
		zap.Int("compared_days", len(comparison.Rows)),
	)
	return &ForecastResult{
		Product:         req.Product,
		Month:           req.Month,
		Cutoff:          cutoff,
		HorizonDays:     p.opts.HorizonDays,
		Model:           model.Summary(),
		UsedCachedModel: usedCached,
		Forecast:        forecast,
		Comparison:      comparison,
		Warnings:        warnings,
	}, nil
}

// RetrainMonth refits the session model with the month's realized demand and
// installs the result. On failure the session keeps its previous model.
func (p *PipelineService) RetrainMonth(ctx context.Context, session *ForecastSession, req RetrainRequest) (*RetrainResult, error) {
	if session == nil {
		return nil, errors.New("retrain requires a session")
	}
	cutoff, err := ParseMonth(req.Month)
	if err != nil {
		return nil, err
	}
	series, warnings, err := p.demandSeries(ctx, req.Product)
	if err != nil {
		return nil, err
	}

	windowEnd := cutoff.AddDate(0, 0, p.opts.HorizonDays)
	realized := make([]models.DemandObservation, 0, len(req.Realized))
	for _, obs := range req.Realized {
		if obs.Date.IsZero() {
			return nil, &ValidationError{Field: "realized", Message: "every observation needs a date"}
		}
		d := day(obs.Date)
		if d.Before(cutoff) || d.After(windowEnd) {
			return nil, &ValidationError{Field: "realized", Message: fmt.Sprintf("date %s is outside the window %s..%s",
				d.Format("2006-01-02"), cutoff.Format("2006-01-02"), windowEnd.Format("2006-01-02"))}
		}
		if obs.Quantity < 0 {
			return nil, &ValidationError{Field: "realized", Message: fmt.Sprintf("quantity for %s is negative", d.Format("2006-01-02"))}
		}
		realized = append(realized, models.DemandObservation{ProductKey: req.Product, Date: d, Quantity: obs.Quantity})
	}
	if len(req.Realized) == 0 {
		realized = ObservationsBetween(series, cutoff, windowEnd)
	}

	var prev *ForecastModel
	if cached := session.Model(); cached != nil && cached.ProductKey == req.Product {
		prev = cached
	}

	next, err := p.forecaster.Retrain(prev, req.Product, series, cutoff, realized)
	if err != nil {
		return nil, err
	}
	session.Install(next)

	result := &RetrainResult{
		Product:       req.Product,
		Month:         req.Month,
		Model:         next.Summary(),
		RealizedCount: len(realized),
		Warnings:      warnings,
	}
	if prev != nil {
		result.PreviousModelID = prev.ID
	}
	return result, nil
}

// ClassifyOrders trains the status classifier on labeled orders, predicts a
// status for every order awaiting classification and, unless DryRun, writes
// each prediction back. A failed write is reported on its order and does not
// stop the run.
func (p *PipelineService) ClassifyOrders(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	orderRecords, err := p.store.FetchAll(ctx, p.opts.Tables.Orders)
	if err != nil {
		return nil, err
	}
	lineRecords, err := p.store.FetchAll(ctx, p.opts.Tables.OrderLines)
	if err != nil {
		return nil, err
	}

	orders, warnings := p.mapper.MapOrders(orderRecords)
	lines, lineWarnings := p.mapper.MapOrderLines(lineRecords, nil)
	warnings = append(warnings, lineWarnings...)

	clf, trainWarnings, err := TrainOrderClassifier(orders, lines, p.opts.Classifier)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, trainWarnings...)

	var pending []models.OrderRecord
	for _, o := range orders {
		if o.Status.AwaitingClassification() {
			pending = append(pending, o)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	result := &ClassifyResult{Report: clf.Report(), DryRun: req.DryRun, Predictions: make([]models.StatusPrediction, 0, len(pending))}
	for _, o := range pending {
		status, features, w := clf.Predict(o)
		warnings = append(warnings, w...)
		pred := models.StatusPrediction{OrderRecordID: o.ID, OrderID: o.OrderID, Features: features, Predicted: status}

		if !req.DryRun {
			if err := p.writeStatus(ctx, o.ID, status); err != nil {
				pred.Error = err.Error()
				result.Failed++
			} else {
				pred.Written = true
				result.Written++
			}
		}
		result.Predictions = append(result.Predictions, pred)
	}
	result.Warnings = warnings

	p.logger.Info("orders classified",
		zap.Int("pending", len(pending)),
		zap.Int("written", result.Written),
		zap.Int("failed", result.Failed),
		zap.Bool("dry_run", req.DryRun),
		zap.Float64("accuracy", result.Report.Accuracy),
	)
	return result, nil
}

func (p *PipelineService) writeStatus(ctx context.Context, recordID string, status models.OrderStatus) error {
	fields := map[string]interface{}{p.opts.Fields.Orders.Status: string(status)}
	_, err := p.store.Update(ctx, p.opts.Tables.Orders, recordID, fields)
	p.metrics.ObserveWriteBack(string(status), err)
	if err != nil {
		wbErr := &models.WriteBackError{RecordID: recordID, Status: status, Err: err}
		p.logger.Warn("status write-back failed", zap.String("record_id", recordID), zap.Error(err))
		return wbErr
	}
	return nil
}

func (p *PipelineService) demandSeries(ctx context.Context, product string) ([]models.DemandObservation, []models.Warning, error) {
	lines, warnings, err := p.loadLines(ctx)
	if err != nil {
		return nil, warnings, err
	}
	series, aggWarnings := AggregateDemand(lines, product)
	return series, append(warnings, aggWarnings...), nil
}

// loadLines reads order lines with product keys resolved. When the products
// table is unavailable, lines keep their raw product reference.
func (p *PipelineService) loadLines(ctx context.Context) ([]models.OrderLineRecord, []models.Warning, error) {
	var warnings []models.Warning

	var products []models.Product
	productRecords, err := p.store.FetchAll(ctx, p.opts.Tables.Products)
	if err != nil {
		p.logger.Warn("products table unavailable", zap.Error(err))
		warnings = append(warnings, models.Warning{
			Kind:    models.WarningTableUnavailable,
			Field:   p.opts.Tables.Products,
			Message: err.Error(),
		})
	} else {
		// stock columns are irrelevant here
		products, _ = p.mapper.MapProducts(productRecords)
	}

	lineRecords, err := p.store.FetchAll(ctx, p.opts.Tables.OrderLines)
	if err != nil {
		return nil, warnings, err
	}
	lines, w := p.mapper.MapOrderLines(lineRecords, products)
	return lines, append(warnings, w...), nil
}
