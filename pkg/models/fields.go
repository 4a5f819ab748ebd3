package models

// FieldNames maps the typed schemas onto the column names of the store.
type FieldNames struct {
	Orders struct {
		OrderID  string `yaml:"order_id"`
		Customer string `yaml:"customer"`
		Status   string `yaml:"status"`
		Date     string `yaml:"date"`
		Lines    string `yaml:"lines"`
	} `yaml:"orders"`

	OrderLines struct {
		OrderID  string `yaml:"order_id"` // computed lookup, read-only
		Order    string `yaml:"order"`
		Product  string `yaml:"product"`
		Quantity string `yaml:"quantity"`
		Date     string `yaml:"date"`
	} `yaml:"order_lines"`

	Products struct {
		ProductID    string `yaml:"product_id"`
		Name         string `yaml:"name"`
		Stock        string `yaml:"stock"`
		ReorderLevel string `yaml:"reorder_level"`
		Lines        string `yaml:"lines"`
	} `yaml:"products"`

	Customers struct {
		CustomerID   string `yaml:"customer_id"`
		Name         string `yaml:"name"`
		Email        string `yaml:"email"`
		Phone        string `yaml:"phone"`
		Address      string `yaml:"address"`
		Registration string `yaml:"registration"`
		Orders       string `yaml:"orders"`
	} `yaml:"customers"`
}

// DefaultFieldNames returns the column names of the order-management base.
func DefaultFieldNames() FieldNames {
	var f FieldNames
	f.Orders.OrderID = "OrderID"
	f.Orders.Customer = "CustomerID"
	f.Orders.Status = "Status"
	f.Orders.Date = "Data"
	f.Orders.Lines = "Detall comanda"

	f.OrderLines.OrderID = "OrderID"
	f.OrderLines.Order = "Comanda"
	f.OrderLines.Product = "ProductID"
	f.OrderLines.Quantity = "Quantity"
	f.OrderLines.Date = "Data"

	f.Products.ProductID = "ProductID"
	f.Products.Name = "ProductName"
	f.Products.Stock = "Stock"
	f.Products.ReorderLevel = "ReorderLevel"
	f.Products.Lines = "Detall comanda"

	f.Customers.CustomerID = "CustomerID"
	f.Customers.Name = "Name"
	f.Customers.Email = "Email"
	f.Customers.Phone = "Phone"
	f.Customers.Address = "Address"
	f.Customers.Registration = "Registration Date"
	f.Customers.Orders = "Comanda"
	return f
}
