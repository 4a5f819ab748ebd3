package models

import (
	"strings"
	"time"
)

// OrderStatus is the lifecycle label of an order in the store.
type OrderStatus string

const (
	StatusValid     OrderStatus = "Valid"
	StatusInvalid   OrderStatus = "Invalid"
	StatusDuplicate OrderStatus = "Duplicate"
	StatusPending   OrderStatus = "Pending"
	StatusUnset     OrderStatus = ""
)

// TerminalStatuses are the labels a classifier is trained on and may emit.
var TerminalStatuses = []OrderStatus{StatusDuplicate, StatusInvalid, StatusValid}

// IsTerminal reports whether s is Valid, Invalid or Duplicate.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusDuplicate:
		return true
	}
	return false
}

// AwaitingClassification reports whether s is Pending, empty or unset.
func (s OrderStatus) AwaitingClassification() bool {
	return s == StatusPending || s == StatusUnset
}

// ParseOrderStatus maps a raw store value onto the enumeration. Values outside
// it are returned as-is with ok == false; they are neither terminal nor awaiting
// classification, so the pipeline leaves such orders alone.
func ParseOrderStatus(raw string) (status OrderStatus, ok bool) {
	status = OrderStatus(strings.TrimSpace(raw))
	switch status {
	case StatusValid, StatusInvalid, StatusDuplicate, StatusPending, StatusUnset:
		return status, true
	}
	return status, false
}

// OrderLineRecord is one line of an order ("Detall comanda").
type OrderLineRecord struct {
	ID         string    `json:"id"`
	OrderRef   string    `json:"order_ref"`
	ProductRef string    `json:"product_ref"`
	ProductKey string    `json:"product_key"` // ProductID resolved through the products table
	Quantity   int       `json:"quantity"`
	OccurredOn time.Time `json:"occurred_on"` // zero when missing or unparseable
	RawDate    string    `json:"raw_date,omitempty"`
}

// OrderRecord is one order ("Comanda").
type OrderRecord struct {
	ID          string      `json:"id"` // store identifier used for write-back
	OrderID     string      `json:"order_id"`
	CustomerRef string      `json:"customer_ref"`
	Status      OrderStatus `json:"status"`
	PlacedOn    time.Time   `json:"placed_on"`
	LineRefs    []string    `json:"line_refs"`
}

// Product is one inventory row.
type Product struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Stock        int    `json:"stock"`
	ReorderLevel int    `json:"reorder_level"`
}

// Customer is one customer row.
type Customer struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	RegisteredOn time.Time `json:"registered_on"`
}

// DemandObservation is the total quantity of one product on one date.
type DemandObservation struct {
	ProductKey string    `json:"product_key"`
	Date       time.Time `json:"date"`
	Quantity   int       `json:"quantity"`
}

// ForecastPoint is one forecast day.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Point float64   `json:"yhat"`
	Lower float64   `json:"yhat_lower"`
	Upper float64   `json:"yhat_upper"`
}

// ComparisonRow is one date present in both the realized series and the forecast.
type ComparisonRow struct {
	Date      time.Time `json:"date"`
	Realized  int       `json:"y"`
	Predicted float64   `json:"yhat"`
	Error     float64   `json:"error"`
	AbsError  float64   `json:"abs_error"`
}

// EvaluationResult holds forecast accuracy over the joined dates.
// MAE and RMSE are nil when Empty is true.
type EvaluationResult struct {
	Rows  []ComparisonRow `json:"rows"`
	MAE   *float64        `json:"mae"`
	RMSE  *float64        `json:"rmse"`
	Empty bool            `json:"empty"`
}

// FeatureVector is the classifier input derived from one order.
type FeatureVector struct {
	CustomerCode  int `json:"customer_code"`
	DayOfWeek     int `json:"day_of_week"`
	TotalQuantity int `json:"total_quantity"`
}

// Values returns the features in model column order.
func (f FeatureVector) Values() []float64 {
	return []float64{float64(f.CustomerCode), float64(f.DayOfWeek), float64(f.TotalQuantity)}
}

// ClassMetrics is one row of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// ClassificationReport summarises classifier accuracy on the held-out split.
type ClassificationReport struct {
	Classes     map[OrderStatus]ClassMetrics `json:"classes"`
	Accuracy    float64                      `json:"accuracy"`
	MacroAvg    ClassMetrics                 `json:"macro avg"`
	WeightedAvg ClassMetrics                 `json:"weighted avg"`
	TrainSize   int                          `json:"train_size"`
	TestSize    int                          `json:"test_size"`
}

// StatusPrediction is one order classified and, unless dry-run, written back.
type StatusPrediction struct {
	OrderRecordID string        `json:"record_id"`
	OrderID       string        `json:"order_id"`
	Features      FeatureVector `json:"features"`
	Predicted     OrderStatus   `json:"predicted"`
	Written       bool          `json:"written"`
	Error         string        `json:"error,omitempty"`
}

// WarningKind classifies non-fatal diagnostics.
type WarningKind string

const (
	WarningMalformedDate       WarningKind = "malformed_date"
	WarningUnresolvedReference WarningKind = "unresolvable_reference"
	WarningMalformedQuantity   WarningKind = "malformed_quantity"
	WarningUnknownStatus       WarningKind = "unknown_status"
	WarningCachedModelMismatch WarningKind = "cached_model_mismatch"
	WarningCachedModelOverlap  WarningKind = "cached_model_overlaps_window"
	WarningTableUnavailable    WarningKind = "table_unavailable"
)

// Warning is a non-fatal diagnostic surfaced to the caller.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	RecordID string      `json:"record_id,omitempty"`
	Field    string      `json:"field,omitempty"`
	Message  string      `json:"message"`
}
