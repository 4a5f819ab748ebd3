package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"order-forecast-api/pkg/airtable"
	"order-forecast-api/pkg/models"

	"go.uber.org/zap"
)

// TableKind names a table in the records API.
type TableKind string

const (
	KindOrders     TableKind = "orders"
	KindOrderLines TableKind = "order-lines"
	KindProducts   TableKind = "products"
	KindCustomers  TableKind = "customers"
)

// UnknownDisplayValue replaces linked ids that cannot be resolved.
const UnknownDisplayValue = "Unknown"

// RecordIDColumn holds the store identifier of each listed row.
const RecordIDColumn = "record_id"

// ErrUnknownTable is returned for table kinds outside the records API.
var ErrUnknownTable = errors.New("unknown table")

// ValidationError is a rejected create or edit request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// TableView is a listed table with linked ids rendered as display values.
type TableView struct {
	Table    TableKind                `json:"table"`
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	Warnings []models.Warning         `json:"warnings"`
}

// linkSpec renders column through the display column of another table.
type linkSpec struct {
	column  string
	target  TableKind
	display string
}

// RecordsService lists, creates and edits store records for operators.
type RecordsService struct {
	store  DataStore
	tables TableNames
	fields models.FieldNames
	logger *zap.Logger
}

// NewRecordsService creates a records service.
func NewRecordsService(store DataStore, tables TableNames, fields models.FieldNames, logger *zap.Logger) *RecordsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsService{store: store, tables: tables, fields: fields, logger: logger}
}

// ParseTableKind validates a table kind from a URL.
func ParseTableKind(raw string) (TableKind, error) {
	switch k := TableKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindOrders, KindOrderLines, KindProducts, KindCustomers:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, raw)
}

func (s *RecordsService) tableName(kind TableKind) string {
	switch kind {
	case KindOrders:
		return s.tables.Orders
	case KindOrderLines:
		return s.tables.OrderLines
	case KindProducts:
		return s.tables.Products
	case KindCustomers:
		return s.tables.Customers
	}
	return ""
}

// columns returns the display order of a table and its linked columns.
func (s *RecordsService) columns(kind TableKind) ([]string, []linkSpec) {
	f := s.fields
	switch kind {
	case KindOrders:
		return []string{f.Orders.OrderID, f.Orders.Customer, f.Orders.Status, f.Orders.Date, f.Orders.Lines, RecordIDColumn},
			[]linkSpec{
				{column: f.Orders.Customer, target: KindCustomers, display: f.Customers.CustomerID},
				{column: f.Orders.Lines, target: KindOrderLines, display: f.OrderLines.OrderID},
			}
	case KindOrderLines:
		return []string{f.OrderLines.OrderID, f.OrderLines.Order, f.OrderLines.Product, f.OrderLines.Quantity, RecordIDColumn},
			[]linkSpec{
				{column: f.OrderLines.Order, target: KindOrders, display: f.Orders.OrderID},
				{column: f.OrderLines.Product, target: KindProducts, display: f.Products.ProductID},
			}
	case KindProducts:
		return []string{f.Products.ProductID, f.Products.Name, f.Products.Stock, f.Products.ReorderLevel, "Reposition", f.Products.Lines, RecordIDColumn},
			[]linkSpec{
				{column: f.Products.Lines, target: KindOrderLines, display: f.OrderLines.OrderID},
			}
	case KindCustomers:
		return []string{f.Customers.CustomerID, f.Customers.Name, f.Customers.Email, f.Customers.Phone, f.Customers.Address, f.Customers.Registration, f.Customers.Orders, RecordIDColumn},
			[]linkSpec{
				{column: f.Customers.Orders, target: KindOrders, display: f.Orders.OrderID},
			}
	}
	return nil, nil
}

// List reads a table and renders linked ids as display values: unresolvable ids
// become "Unknown" and multiple links are joined with ", ". When a linked table
// cannot be read, its column keeps the raw ids and a warning is returned.
func (s *RecordsService) List(ctx context.Context, kind TableKind) (*TableView, error) {
	records, err := s.store.FetchAll(ctx, s.tableName(kind))
	if err != nil {
		return nil, err
	}
	columns, links := s.columns(kind)

	// 列は実際に存在するものだけ残す
	present := map[string]bool{RecordIDColumn: true}
	for _, r := range records {
		for name := range r.Fields {
			present[name] = true
		}
	}
	view := &TableView{Table: kind, Rows: make([]map[string]interface{}, 0, len(records))}
	for _, c := range columns {
		if present[c] {
			view.Columns = append(view.Columns, c)
		}
	}

	for _, r := range records {
		row := make(map[string]interface{}, len(view.Columns))
		for _, c := range view.Columns {
			row[c] = r.Fields[c]
		}
		row[RecordIDColumn] = r.ID
		view.Rows = append(view.Rows, row)
	}

	if len(records) == 0 {
		return view, nil
	}

	for _, link := range links {
		if !present[link.column] {
			continue
		}
		lookup, err := s.displayValues(ctx, link.target, link.display)
		if err != nil {
			s.logger.Warn("linked table unavailable", zap.String("table", string(link.target)), zap.Error(err))
			view.Warnings = append(view.Warnings, models.Warning{
				Kind:    models.WarningTableUnavailable,
				Field:   link.column,
				Message: err.Error(),
			})
			continue
		}
		for _, row := range view.Rows {
			row[link.column] = resolveLinks(row[link.column], lookup)
		}
	}
	return view, nil
}

func (s *RecordsService) displayValues(ctx context.Context, kind TableKind, display string) (map[string]string, error) {
	records, err := s.store.FetchAll(ctx, s.tableName(kind))
	if err != nil {
		return nil, err
	}
	lookup := make(map[string]string, len(records))
	for _, r := range records {
		lookup[r.ID] = stringField(r.Fields[display])
	}
	return lookup, nil
}

func resolveLinks(v interface{}, lookup map[string]string) string {
	ids := linkList(v)
	if len(ids) == 0 {
		return UnknownDisplayValue
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		if display, ok := lookup[id]; ok {
			values[i] = display
		} else {
			values[i] = UnknownDisplayValue
		}
	}
	return strings.Join(values, ", ")
}

// NewOrder is a create request for the orders table.
type NewOrder struct {
	CustomerRef string             `json:"customer_record_id"`
	Status      models.OrderStatus `json:"status"`
}

// NewOrderLine is a create request for the order lines table. OrderID is a
// computed column in the store and is never sent.
type NewOrderLine struct {
	OrderRef   string `json:"order_record_id" binding:"required"`
	ProductRef string `json:"product_record_id" binding:"required"`
	Quantity   int    `json:"quantity"`
}

// NewProduct is a create request for the products table.
type NewProduct struct {
	ProductID    string `json:"product_id" binding:"required"`
	Name         string `json:"name"`
	Stock        int    `json:"stock"`
	ReorderLevel int    `json:"reorder_level"`
}

// NewCustomer is a create request for the customers table.
type NewCustomer struct {
	CustomerID       string `json:"customer_id" binding:"required"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	RegistrationDate string `json:"registration_date"`
}

// CreateOrder inserts an order. Status defaults to Pending.
func (s *RecordsService) CreateOrder(ctx context.Context, req NewOrder) (*airtable.Record, error) {
	status := req.Status
	if status == models.StatusUnset {
		status = models.StatusPending
	}
	if _, ok := models.ParseOrderStatus(string(status)); !ok {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not one of Valid, Invalid, Duplicate, Pending", status)}
	}
	customer := []string{}
	if req.CustomerRef != "" {
		customer = []string{req.CustomerRef}
	}
	return s.store.Create(ctx, s.tables.Orders, map[string]interface{}{
		s.fields.Orders.Customer: customer,
		s.fields.Orders.Status:   string(status),
	})
}

// CreateOrderLine inserts an order line.
func (s *RecordsService) CreateOrderLine(ctx context.Context, req NewOrderLine) (*airtable.Record, error) {
	if req.Quantity < 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be >= 0"}
	}
	if req.OrderRef == "" || req.ProductRef == "" {
		return nil, &ValidationError{Field: "order_record_id", Message: "order and product references are required"}
	}
	return s.store.Create(ctx, s.tables.OrderLines, map[string]interface{}{
		s.fields.OrderLines.Order:    []string{req.OrderRef},
		s.fields.OrderLines.Product:  []string{req.ProductRef},
		s.fields.OrderLines.Quantity: req.Quantity,
	})
}

// CreateProduct inserts a product.
func (s *RecordsService) CreateProduct(ctx context.Context, req NewProduct) (*airtable.Record, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, &ValidationError{Field: "product_id", Message: "is required"}
	}
	if req.Stock < 0 || req.ReorderLevel < 0 {
		return nil, &ValidationError{Field: "stock", Message: "stock and reorder level must be >= 0"}
	}
	return s.store.Create(ctx, s.tables.Products, map[string]interface{}{
		s.fields.Products.ProductID:    req.ProductID,
		s.fields.Products.Name:         req.Name,
		s.fields.Products.Stock:        req.Stock,
		s.fields.Products.ReorderLevel: req.ReorderLevel,
	})
}

// CreateCustomer inserts a customer. A registration date, when given, must parse.
func (s *RecordsService) CreateCustomer(ctx context.Context, req NewCustomer) (*airtable.Record, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, &ValidationError{Field: "customer_id", Message: "is required"}
	}
	fields := map[string]interface{}{
		s.fields.Customers.CustomerID: req.CustomerID,
		s.fields.Customers.Name:       req.Name,
		s.fields.Customers.Email:      req.Email,
		s.fields.Customers.Phone:      req.Phone,
		s.fields.Customers.Address:    req.Address,
	}
	if req.RegistrationDate != "" {
		d, ok := NewRecordMapper(s.fields).ParseDate(req.RegistrationDate)
		if !ok {
			return nil, &ValidationError{Field: "registration_date", Message: fmt.Sprintf("cannot parse %q", req.RegistrationDate)}
		}
		fields[s.fields.Customers.Registration] = d.Format("2006-01-02")
	}
	return s.store.Create(ctx, s.tables.Customers, fields)
}

// SetOrderStatus is a manual status edit. It stays authoritative until the
// order is awaiting classification again.
func (s *RecordsService) SetOrderStatus(ctx context.Context, recordID string, status models.OrderStatus) (*airtable.Record, error) {
	if status == models.StatusUnset {
		return nil, &ValidationError{Field: "status", Message: "is required"}
	}
	if _, ok := models.ParseOrderStatus(string(status)); !ok {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not one of Valid, Invalid, Duplicate, Pending", status)}
	}
	return s.store.Update(ctx, s.tables.Orders, recordID, map[string]interface{}{s.fields.Orders.Status: string(status)})
}

// SetProductStock overwrites the stock of a product.
func (s *RecordsService) SetProductStock(ctx context.Context, recordID string, stock int) (*airtable.Record, error) {
	if stock < 0 {
		return nil, &ValidationError{Field: "stock", Message: "must be >= 0"}
	}
	return s.store.Update(ctx, s.tables.Products, recordID, map[string]interface{}{s.fields.Products.Stock: stock})
}
