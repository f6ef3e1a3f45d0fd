package erp

import "time"

// Address is one known shipping address of a customer.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Country string `json:"country,omitempty"`
}

// Customer is the ERP customer record.
type Customer struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	VATNo           string    `json:"vat_no,omitempty"`
	DefaultCurrency string    `json:"default_currency,omitempty"`
	Addresses       []Address `json:"addresses,omitempty"`
}

// Prices is the ERP price block of a catalog product.
type Prices struct {
	Currency string  `json:"currency,omitempty"`
	Unit     float64 `json:"unit,omitempty"`
	VAT      float64 `json:"vat,omitempty"`
}

// Product is the ERP catalog product record. InternalID is the human-facing
// product code; ID is the catalog UUID.
type Product struct {
	ID         string  `json:"id"`
	InternalID string  `json:"internal_id"`
	Name       string  `json:"name"`
	UOM        string  `json:"uom"`
	Prices     *Prices `json:"prices,omitempty"`
}

// OrderPrices is the fully-populated price block required on order lines.
type OrderPrices struct {
	Currency        string  `json:"currency"`
	Unit            float64 `json:"unit"`
	VAT             float64 `json:"vat"`
	BasePrice       float64 `json:"base_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// OrderLine is one product line of a sales order payload. ExtraID carries the
// product code, ID the catalog UUID.
type OrderLine struct {
	ID       string      `json:"id"`
	ExtraID  string      `json:"extra_id"`
	Name     string      `json:"name"`
	Quantity float64     `json:"quantity"`
	UOM      string      `json:"uom"`
	Prices   OrderPrices `json:"prices"`
}

// CustomerAttr is the customer snapshot embedded in a sales order.
type CustomerAttr struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Country string `json:"country"`
	VAT     string `json:"vat"`
}

// SalesOrder is the transaction payload submitted to the ERP. Status is
// always "draft" on creation; acceptance happens in the ERP.
type SalesOrder struct {
	CustomerID           string       `json:"customer_id"`
	CustomerAttr         CustomerAttr `json:"customer_attr"`
	DefaultCurrency      string       `json:"default_currency"`
	Time                 time.Time    `json:"time"`
	ExpectedShippingTime string       `json:"expected_shipping_time"`
	ShippingAddress      string       `json:"shipping_address"`
	Products             []OrderLine  `json:"products"`
	Status               string       `json:"status"`
	Notes                string       `json:"notes"`
	Version              int          `json:"version"`
	Total                float64      `json:"total"`
	TotalVATIncl         float64      `json:"total_vat_incl"`
	Priority             int          `json:"priority"`
}

// CreatedOrder is the ERP's record of a freshly submitted order.
type CreatedOrder struct {
	ID         string `json:"id"`
	InternalID string `json:"internal_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Warehouse is an ERP warehouse record.
type Warehouse struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// InventoryItem is one stock position.
type InventoryItem struct {
	ProductID   string  `json:"product_id"`
	InternalID  string  `json:"internal_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Quantity    float64 `json:"quantity"`
	UOM         string  `json:"uom,omitempty"`
	WarehouseID string  `json:"warehouse_id,omitempty"`
	Warehouse   string  `json:"warehouse,omitempty"`
}

// LoginResult is the ERP's answer to a credential login.
type LoginResult struct {
	AccessToken string `json:"accessToken"`
}
