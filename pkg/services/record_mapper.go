package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"order-forecast-api/pkg/airtable"
	"order-forecast-api/pkg/models"
)

// UnknownProductKey is used for lines that reference no product at all.
const UnknownProductKey = "unknown"

// RecordMapper converts raw store rows into typed records.
// Malformed values never fail a mapping; they degrade and produce a Warning.
type RecordMapper struct {
	fields      models.FieldNames
	dateLayouts []string // accepted date formats
}

// NewRecordMapper creates a mapper for the given column names.
func NewRecordMapper(fields models.FieldNames) *RecordMapper {
	return &RecordMapper{
		fields: fields,
		dateLayouts: []string{
			time.RFC3339,
			"2006-01-02",
			"2006-1-2",
			"2006/01/02",
			"2006/1/2",
			"02/01/2006",
			"20060102",
		},
	}
}

// Fields returns the column names the mapper reads.
func (m *RecordMapper) Fields() models.FieldNames { return m.fields }

// MapProducts maps inventory rows.
func (m *RecordMapper) MapProducts(records []airtable.Record) ([]models.Product, []models.Warning) {
	f := m.fields.Products
	products := make([]models.Product, 0, len(records))
	var warnings []models.Warning
	for _, r := range records {
		p := models.Product{
			ID:        r.ID,
			ProductID: stringField(r.Fields[f.ProductID]),
			Name:      stringField(r.Fields[f.Name]),
		}
		var w *models.Warning
		p.Stock, w = m.quantity(r.ID, f.Stock, r.Fields[f.Stock])
		warnings = appendWarning(warnings, w)
		p.ReorderLevel, w = m.quantity(r.ID, f.ReorderLevel, r.Fields[f.ReorderLevel])
		warnings = appendWarning(warnings, w)
		products = append(products, p)
	}
	return products, warnings
}

// MapCustomers maps customer rows.
func (m *RecordMapper) MapCustomers(records []airtable.Record) ([]models.Customer, []models.Warning) {
	f := m.fields.Customers
	customers := make([]models.Customer, 0, len(records))
	var warnings []models.Warning
	for _, r := range records {
		c := models.Customer{
			ID:         r.ID,
			CustomerID: stringField(r.Fields[f.CustomerID]),
			Name:       stringField(r.Fields[f.Name]),
			Email:      stringField(r.Fields[f.Email]),
			Phone:      stringField(r.Fields[f.Phone]),
			Address:    stringField(r.Fields[f.Address]),
		}
		var w *models.Warning
		c.RegisteredOn, _, w = m.date(r.ID, f.Registration, r.Fields[f.Registration])
		warnings = appendWarning(warnings, w)
		customers = append(customers, c)
	}
	return customers, warnings
}

// MapOrderLines maps order lines and resolves their product reference to the
// product key. With products == nil (table unavailable) the raw reference is
// kept without per-line warnings.
func (m *RecordMapper) MapOrderLines(records []airtable.Record, products []models.Product) ([]models.OrderLineRecord, []models.Warning) {
	f := m.fields.OrderLines
	var keyByID map[string]string
	if products != nil {
		keyByID = make(map[string]string, len(products))
		for _, p := range products {
			keyByID[p.ID] = p.ProductID
		}
	}

	lines := make([]models.OrderLineRecord, 0, len(records))
	var warnings []models.Warning
	for _, r := range records {
		line := models.OrderLineRecord{
			ID:         r.ID,
			OrderRef:   firstLink(r.Fields[f.Order]),
			ProductRef: firstLink(r.Fields[f.Product]),
		}

		switch {
		case line.ProductRef == "":
			line.ProductKey = UnknownProductKey
			warnings = append(warnings, models.Warning{
				Kind:     models.WarningUnresolvedReference,
				RecordID: r.ID,
				Field:    f.Product,
				Message:  "order line has no product reference",
			})
		case keyByID == nil:
			line.ProductKey = line.ProductRef
		default:
			if key, ok := keyByID[line.ProductRef]; ok && key != "" {
				line.ProductKey = key
				break
			}
			line.ProductKey = line.ProductRef
			// plain-text product columns carry the key itself
			if looksLikeRecordID(line.ProductRef) {
				ref := &models.UnresolvableReferenceError{Table: "products", RecordID: r.ID, Ref: line.ProductRef}
				warnings = append(warnings, ref.Warning(f.Product))
			}
		}

		var w *models.Warning
		line.Quantity, w = m.quantity(r.ID, f.Quantity, r.Fields[f.Quantity])
		warnings = appendWarning(warnings, w)

		// 日付の検証は集計側で行う
		line.OccurredOn, line.RawDate, _ = m.date(r.ID, f.Date, r.Fields[f.Date])
		lines = append(lines, line)
	}
	return lines, warnings
}

// MapOrders maps order rows.
func (m *RecordMapper) MapOrders(records []airtable.Record) ([]models.OrderRecord, []models.Warning) {
	f := m.fields.Orders
	orders := make([]models.OrderRecord, 0, len(records))
	var warnings []models.Warning
	for _, r := range records {
		o := models.OrderRecord{
			ID:          r.ID,
			OrderID:     stringField(r.Fields[f.OrderID]),
			CustomerRef: firstLink(r.Fields[f.Customer]),
			LineRefs:    linkList(r.Fields[f.Lines]),
		}

		status, ok := models.ParseOrderStatus(stringField(r.Fields[f.Status]))
		o.Status = status
		if !ok {
			warnings = append(warnings, models.Warning{
				Kind:     models.WarningUnknownStatus,
				RecordID: r.ID,
				Field:    f.Status,
				Message:  fmt.Sprintf("status %q is not one of Valid, Invalid, Duplicate, Pending", status),
			})
		}

		var w *models.Warning
		o.PlacedOn, _, w = m.date(r.ID, f.Date, r.Fields[f.Date])
		warnings = appendWarning(warnings, w)
		orders = append(orders, o)
	}
	return orders, warnings
}

// ParseDate parses a date-only value in any accepted layout.
func (m *RecordMapper) ParseDate(s string) (time.Time, bool) {
	return parseAnyDate(s, m.dateLayouts)
}

func (m *RecordMapper) date(recordID, field string, v interface{}) (time.Time, string, *models.Warning) {
	raw := stringField(v)
	if raw == "" {
		return time.Time{}, "", nil
	}
	t, ok := parseAnyDate(raw, m.dateLayouts)
	if !ok {
		return time.Time{}, raw, &models.Warning{
			Kind:     models.WarningMalformedDate,
			RecordID: recordID,
			Field:    field,
			Message:  fmt.Sprintf("cannot parse date %q", raw),
		}
	}
	return t, raw, nil
}

func (m *RecordMapper) quantity(recordID, field string, v interface{}) (int, *models.Warning) {
	if v == nil {
		return 0, nil
	}
	n, ok := numberField(v)
	if !ok || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &models.Warning{
			Kind:     models.WarningMalformedQuantity,
			RecordID: recordID,
			Field:    field,
			Message:  fmt.Sprintf("quantity %v is not a non-negative number", v),
		}
	}
	return int(math.Round(n)), nil
}

// parseAnyDate tries each layout and truncates the result to its calendar date.
func parseAnyDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t), true
		}
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC) }

// firstLink returns the first record id of a linked field, or the value itself
// for plain-text columns.
func firstLink(v interface{}) string {
	links := linkList(v)
	if len(links) == 0 {
		return ""
	}
	return links[0]
}

func linkList(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringField(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := stringField(val); s != "" {
			return []string{s}
		}
		return nil
	}
}

// stringField renders a scalar field; lookup fields (arrays) yield their first element.
func stringField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case []interface{}:
		if len(val) == 0 {
			return ""
		}
		return stringField(val[0])
	case []string:
		if len(val) == 0 {
			return ""
		}
		return strings.TrimSpace(val[0])
	case map[string]interface{}:
		// single select / collaborator objects
		if name, ok := val["name"]; ok {
			return stringField(name)
		}
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func numberField(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case []interface{}:
		if len(val) == 1 {
			return numberField(val[0])
		}
	}
	return 0, false
}

// looksLikeRecordID reports whether s has the shape of a store record id ("rec" + 14 chars).
func looksLikeRecordID(s string) bool {
	return len(s) == 17 && strings.HasPrefix(s, "rec")
}

func appendWarning(warnings []models.Warning, w *models.Warning) []models.Warning {
	if w == nil {
		return warnings
	}
	return append(warnings, *w)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
