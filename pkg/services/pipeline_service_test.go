package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"order-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTables = TableNames{Orders: "Comanda", OrderLines: "Detall comanda", Products: "Inventari", Customers: "Client"}

func newTestPipeline(t *testing.T, store DataStore) *PipelineService {
	t.Helper()
	mm, err := NewForecastModelManager(DefaultIntervalWidth, zap.NewNop(), nil)
	require.NoError(t, err)
	return NewPipelineService(store, mm, PipelineOptions{
		Tables:      testTables,
		Fields:      models.DefaultFieldNames(),
		HorizonDays: 30,
		Classifier:  DefaultClassifierConfig(),
	}, zap.NewNop(), nil)
}

// seedDemand stores one line per day for P1 from 2025-01-01 through 2025-03-31.
func seedDemand(store *fakeStore) {
	store.add("Inventari", "recProdP1AAAAAAAA", map[string]interface{}{"ProductID": "P1", "ProductName": "Oli"})
	store.add("Inventari", "recProdP2AAAAAAAA", map[string]interface{}{"ProductID": "P2", "ProductName": "Sal"})
	d := date(2025, 1, 1)
	for i := 0; d.Before(date(2025, 4, 1)); i++ {
		store.add("Detall comanda", fmt.Sprintf("recLine%04d", i), map[string]interface{}{
			"ProductID": []interface{}{"recProdP1AAAAAAAA"},
			"Quantity":  float64(5 + i%3),
			"Data":      d.Format("2006-01-02"),
		})
		d = d.AddDate(0, 0, 1)
	}
	store.add("Detall comanda", "recLineP2", map[string]interface{}{
		"ProductID": []interface{}{"recProdP2AAAAAAAA"},
		"Quantity":  float64(1),
		"Data":      "2025-01-15",
	})
}

func TestPipelineProductsAndSeries(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)

	products, warnings, err := p.Products(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"P1", "P2"}, products)

	series, err := p.DemandSeries(context.Background(), "P1")
	require.NoError(t, err)
	assert.Len(t, series.Observations, 90)
	assert.Equal(t, date(2025, 1, 1), series.Observations[0].Date)
}

func TestPipelineProductsTableUnavailable(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	store.failFetch["Inventari"] = true
	p := newTestPipeline(t, store)

	products, warnings, err := p.Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"recProdP1AAAAAAAA", "recProdP2AAAAAAAA"}, products)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarningTableUnavailable, warnings[0].Kind)
}

func TestPipelineLinesTableUnavailableIsDataFetchError(t *testing.T) {
	store := newFakeStore()
	store.failFetch["Detall comanda"] = true
	p := newTestPipeline(t, store)

	_, err := p.DemandSeries(context.Background(), "P1")
	var fetchErr *models.DataFetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestPredictMonthComparesWithRealized(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)
	session := NewSessionStore(0, nil, nil).Create()

	result, err := p.PredictMonth(context.Background(), session, PredictRequest{Product: "P1", Month: "2025-03"})
	require.NoError(t, err)

	require.Len(t, result.Forecast, 31)
	assert.Equal(t, date(2025, 3, 1), result.Forecast[0].Date)
	assert.Len(t, result.Comparison.Rows, 31, "every day of March has realized demand")
	require.NotNil(t, result.Comparison.MAE)
	assert.Less(t, *result.Comparison.MAE, 3.0)
	assert.Equal(t, 59, result.Model.TrainingSize, "January and February only")
	assert.False(t, result.UsedCachedModel)
	assert.Nil(t, session.Model(), "prediction does not install a model")
}

func TestPredictMonthWithoutRealizedIsEmptyComparison(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)

	result, err := p.PredictMonth(context.Background(), nil, PredictRequest{Product: "P1", Month: "2025-06"})
	require.NoError(t, err)
	assert.True(t, result.Comparison.Empty)
	assert.Nil(t, result.Comparison.MAE)
}

func TestPredictMonthWithoutHistoryIsInsufficientData(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)

	_, err := p.PredictMonth(context.Background(), nil, PredictRequest{Product: "P1", Month: "2024-12"})
	var insufficient *models.InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))

	_, err = p.PredictMonth(context.Background(), nil, PredictRequest{Product: "P1", Month: "March"})
	assert.Error(t, err)
}

func TestPredictMonthCachedModelSelection(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)
	session := NewSessionStore(0, nil, nil).Create()
	ctx := context.Background()

	// no cached model yet
	result, err := p.PredictMonth(ctx, session, PredictRequest{Product: "P1", Month: "2025-03", UseCached: true})
	require.NoError(t, err)
	assert.False(t, result.UsedCachedModel)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, models.WarningCachedModelMismatch, result.Warnings[len(result.Warnings)-1].Kind)

	retrained, err := p.RetrainMonth(ctx, session, RetrainRequest{Product: "P1", Month: "2025-03"})
	require.NoError(t, err)

	result, err = p.PredictMonth(ctx, session, PredictRequest{Product: "P1", Month: "2025-04", UseCached: true})
	require.NoError(t, err)
	assert.True(t, result.UsedCachedModel)
	assert.Equal(t, retrained.Model.ID, result.Model.ID)

	// another product never reuses the P1 model
	result, err = p.PredictMonth(ctx, session, PredictRequest{Product: "P2", Month: "2025-03", UseCached: true})
	require.NoError(t, err)
	assert.False(t, result.UsedCachedModel)
	assert.Equal(t, "P2", result.Model.ProductKey)
}

func TestPredictMonthRefusesCachedModelOverlappingWindow(t *testing.T) {
	cases := []struct {
		name         string
		retrainMonth string
		predictMonth string
	}{
		{"previous month window runs past cutoff", "2025-02", "2025-03"},
		{"same month", "2025-03", "2025-03"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			seedDemand(store)
			p := newTestPipeline(t, store)
			session := NewSessionStore(0, nil, nil).Create()
			ctx := context.Background()

			retrained, err := p.RetrainMonth(ctx, session, RetrainRequest{Product: "P1", Month: tc.retrainMonth})
			require.NoError(t, err)

			result, err := p.PredictMonth(ctx, session, PredictRequest{Product: "P1", Month: tc.predictMonth, UseCached: true})
			require.NoError(t, err)
			assert.False(t, result.UsedCachedModel)
			assert.NotEqual(t, retrained.Model.ID, result.Model.ID)
			assert.True(t, result.Model.TrainedThrough.Before(result.Cutoff))
			require.NotEmpty(t, result.Warnings)
			assert.Equal(t, models.WarningCachedModelOverlap, result.Warnings[len(result.Warnings)-1].Kind)

			assert.Equal(t, retrained.Model.ID, session.Model().ID, "session keeps its model")
		})
	}
}

func TestRetrainMonthRejectsRealizedOutsideWindow(t *testing.T) {
	cases := []struct {
		name     string
		realized []models.DemandObservation
	}{
		{"missing date", []models.DemandObservation{{Quantity: 5}}},
		{"before cutoff", []models.DemandObservation{{Date: date(2025, 2, 28), Quantity: 5}}},
		{"after window", []models.DemandObservation{{Date: date(2025, 4, 1), Quantity: 5}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			seedDemand(store)
			p := newTestPipeline(t, store)
			session := NewSessionStore(0, nil, nil).Create()

			_, err := p.RetrainMonth(context.Background(), session, RetrainRequest{Product: "P1", Month: "2025-03", Realized: tc.realized})
			var validation *ValidationError
			require.True(t, errors.As(err, &validation), "got %v", err)
			assert.Equal(t, "realized", validation.Field)
			assert.Nil(t, session.Model())
		})
	}
}

func TestRetrainMonthAcceptsWindowEdges(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)
	session := NewSessionStore(0, nil, nil).Create()

	realized := []models.DemandObservation{
		{Date: date(2025, 3, 1), Quantity: 7},
		{Date: date(2025, 3, 31), Quantity: 8},
	}
	result, err := p.RetrainMonth(context.Background(), session, RetrainRequest{Product: "P1", Month: "2025-03", Realized: realized})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RealizedCount)
	assert.Equal(t, "P1", result.Model.ProductKey)
	assert.Equal(t, date(2025, 3, 31), result.Model.TrainedThrough)
}

func TestRetrainMonthInstallsNewModel(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)
	session := NewSessionStore(0, nil, nil).Create()
	ctx := context.Background()

	first, err := p.RetrainMonth(ctx, session, RetrainRequest{Product: "P1", Month: "2025-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Model.Generation)
	// January plus the realized window 2025-02-01..2025-03-03
	assert.Equal(t, 62, first.Model.TrainingSize)
	assert.Equal(t, 31, first.RealizedCount)

	realized := []models.DemandObservation{{Date: date(2025, 3, 1), Quantity: 40}}
	second, err := p.RetrainMonth(ctx, session, RetrainRequest{Product: "P1", Month: "2025-03", Realized: realized})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Model.Generation)
	assert.Equal(t, first.Model.ID, second.PreviousModelID)
	assert.Equal(t, 1, second.RealizedCount)
	assert.Equal(t, 60, second.Model.TrainingSize)

	installed := session.Model()
	require.NotNil(t, installed)
	assert.Equal(t, second.Model.ID, installed.ID)
	training := installed.TrainingSet()
	assert.Equal(t, 40, training[len(training)-1].Quantity)
}

func TestRetrainMonthFailureKeepsPreviousModel(t *testing.T) {
	store := newFakeStore()
	seedDemand(store)
	p := newTestPipeline(t, store)
	session := NewSessionStore(0, nil, nil).Create()
	prev := &ForecastModel{ID: "keep", ProductKey: "P9"}
	session.Install(prev)

	_, err := p.RetrainMonth(context.Background(), session, RetrainRequest{Product: "P9", Month: "2025-03"})
	var insufficient *models.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Same(t, prev, session.Model())
}

// seedOrders stores labeled orders built by labeledOrders plus pending ones.
func seedOrders(store *fakeStore, pendingIDs ...string) {
	orders, lines := labeledOrders(8)
	for _, o := range orders {
		store.add("Comanda", o.ID, map[string]interface{}{
			"OrderID":        o.OrderID,
			"CustomerID":     []interface{}{o.CustomerRef},
			"Status":         string(o.Status),
			"Data":           o.PlacedOn.Format("2006-01-02"),
			"Detall comanda": []interface{}{o.LineRefs[0]},
		})
	}
	for _, l := range lines {
		store.add("Detall comanda", l.ID, map[string]interface{}{
			"Comanda":  []interface{}{l.OrderRef},
			"Quantity": float64(l.Quantity),
		})
	}
	for i, id := range pendingIDs {
		lineID := "recPendLine" + id
		store.add("Detall comanda", lineID, map[string]interface{}{"Comanda": []interface{}{id}, "Quantity": float64(3 + 100*i)})
		fields := map[string]interface{}{"OrderID": id, "Data": "2025-02-03", "Detall comanda": []interface{}{lineID}}
		if i%2 == 0 {
			fields["Status"] = "Pending"
		}
		store.add("Comanda", id, fields)
	}
}

func TestClassifyOrdersWritesBackPendingOnly(t *testing.T) {
	store := newFakeStore()
	seedOrders(store, "recPending1", "recPending2", "recPending3")
	store.add("Comanda", "recManual", map[string]interface{}{"OrderID": "999", "Status": "Cancelled"})
	p := newTestPipeline(t, store)

	result, err := p.ClassifyOrders(context.Background(), ClassifyRequest{})
	require.NoError(t, err)

	require.Len(t, result.Predictions, 3)
	assert.Equal(t, 3, result.Written)
	assert.Zero(t, result.Failed)
	assert.Equal(t, []string{"recPending1", "recPending2", "recPending3"}, store.updates)

	for _, pred := range result.Predictions {
		assert.True(t, pred.Predicted.IsTerminal())
		assert.True(t, pred.Written)
		assert.Equal(t, string(pred.Predicted), store.field("Comanda", pred.OrderRecordID, "Status"))
		assert.Equal(t, UnknownCustomerCode, pred.Features.CustomerCode)
	}
	assert.Equal(t, "Cancelled", store.field("Comanda", "recManual", "Status"))
	assert.Equal(t, 5, result.Report.TestSize)
}

func TestClassifyOrdersWriteFailureDoesNotStopRun(t *testing.T) {
	store := newFakeStore()
	seedOrders(store, "recPending1", "recPending2", "recPending3")
	store.failWrite["recPending2"] = true
	p := newTestPipeline(t, store)

	result, err := p.ClassifyOrders(context.Background(), ClassifyRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"recPending1", "recPending3"}, store.updates)
	assert.False(t, result.Predictions[1].Written)
	assert.Contains(t, result.Predictions[1].Error, "recPending2")
}

func TestClassifyOrdersDryRunWritesNothing(t *testing.T) {
	store := newFakeStore()
	seedOrders(store, "recPending1")
	p := newTestPipeline(t, store)

	result, err := p.ClassifyOrders(context.Background(), ClassifyRequest{DryRun: true})
	require.NoError(t, err)
	require.Len(t, result.Predictions, 1)
	assert.False(t, result.Predictions[0].Written)
	assert.Empty(t, store.updates)
	assert.Equal(t, "Pending", store.field("Comanda", "recPending1", "Status"))
}

func TestClassifyOrdersIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedOrders(store, "recPending1", "recPending2")
	p := newTestPipeline(t, store)
	ctx := context.Background()

	first, err := p.ClassifyOrders(ctx, ClassifyRequest{})
	require.NoError(t, err)
	require.Len(t, first.Predictions, 2)

	second, err := p.ClassifyOrders(ctx, ClassifyRequest{})
	require.NoError(t, err)
	assert.Empty(t, second.Predictions, "classified orders are now terminal")
}
