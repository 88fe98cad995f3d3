package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MeasurementUnit is the unit an ingredient is stocked and consumed in.
type MeasurementUnit string

// Supported measurement units.
const (
	UnitKilogram   MeasurementUnit = "kilogram"
	UnitGram       MeasurementUnit = "gram"
	UnitLiter      MeasurementUnit = "liter"
	UnitMilliliter MeasurementUnit = "milliliter"
	UnitUnit       MeasurementUnit = "unit"
	UnitPackage    MeasurementUnit = "package"
	UnitDozen      MeasurementUnit = "dozen"
)

// Valid reports whether u is one of the supported units.
func (u MeasurementUnit) Valid() bool {
	switch u {
	case UnitKilogram, UnitGram, UnitLiter, UnitMilliliter, UnitUnit, UnitPackage, UnitDozen:
		return true
	}
	return false
}

// Ingredient is a stocked raw material. CurrentStock never drops below zero
// in committed state.
type Ingredient struct {
	Base
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Unit            MeasurementUnit `json:"unit"`
	CurrentStock    decimal.Decimal `json:"current_stock"`
	MinimumStock    decimal.Decimal `json:"minimum_stock"`
	MaximumStock    decimal.Decimal `json:"maximum_stock"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Supplier        string          `json:"supplier,omitempty"`
	LastRestockDate *time.Time      `json:"last_restock_date,omitempty"`
	ExpirationDate  *time.Time      `json:"expiration_date,omitempty"`
}

// NeedsRestock reports whether stock is at or below the minimum.
func (i Ingredient) NeedsRestock() bool {
	return i.CurrentStock.LessThanOrEqual(i.MinimumStock)
}

// InventoryValue is the stock valued at the current unit price.
func (i Ingredient) InventoryValue() decimal.Decimal {
	return i.CurrentStock.Mul(i.UnitPrice)
}

// StockRatio is CurrentStock / MinimumStock, or zero when no minimum is set.
func (i Ingredient) StockRatio() decimal.Decimal {
	if i.MinimumStock.IsZero() {
		return decimal.Zero
	}
	return i.CurrentStock.Div(i.MinimumStock)
}

// NormalizedName is the key used for the case-insensitive uniqueness check.
func NormalizedName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
