package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable bakery item. Products are deactivated rather than removed.
type Product struct {
	Base
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	SalePrice      decimal.Decimal `json:"sale_price"`
	ProductionCost decimal.Decimal `json:"production_cost"`
	ProfitMargin   decimal.Decimal `json:"profit_margin"`
	IsActive       bool            `json:"is_active"`
}

// MarginFor returns (SalePrice - cost) / SalePrice * 100, zero without a sale price.
func (p Product) MarginFor(cost decimal.Decimal) decimal.Decimal {
	if p.SalePrice.IsZero() {
		return decimal.Zero
	}
	return p.SalePrice.Sub(cost).Div(p.SalePrice).Mul(hundred).Round(2)
}

// PaymentMethod enumerates accepted tenders.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCredit   PaymentMethod = "credit"
)

// Valid reports whether m is one of the supported methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentCredit:
		return true
	}
	return false
}

// Sale records units of a product sold.
type Sale struct {
	Base
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	SaleDate      time.Time       `json:"sale_date"`
	CustomerName  string          `json:"customer_name,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

// CalculateTotal returns Quantity * UnitPrice.
func (s Sale) CalculateTotal() decimal.Decimal {
	return s.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}
