package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductionStatus enumerates the lifecycle of a daily production run.
type ProductionStatus string

// Production lifecycle states. Completed and Cancelled are terminal.
const (
	ProductionPlanned    ProductionStatus = "planned"
	ProductionInProgress ProductionStatus = "in_progress"
	ProductionCompleted  ProductionStatus = "completed"
	ProductionCancelled  ProductionStatus = "cancelled"
)

// Terminal reports whether no further mutation is permitted.
func (s ProductionStatus) Terminal() bool {
	return s == ProductionCompleted || s == ProductionCancelled
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s ProductionStatus) CanTransition(next ProductionStatus) bool {
	switch s {
	case "", ProductionPlanned:
		return next == ProductionInProgress || next == ProductionCompleted || next == ProductionCancelled
	case ProductionInProgress:
		return next == ProductionCompleted || next == ProductionCancelled
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// DailyProduction is one production run of a product on a given date.
type DailyProduction struct {
	Base
	ProductionDate  time.Time        `json:"production_date"`
	ProductID       int64            `json:"product_id"`
	PlannedQuantity decimal.Decimal  `json:"planned_quantity"`
	ActualQuantity  decimal.Decimal  `json:"actual_quantity"`
	WasteQuantity   decimal.Decimal  `json:"waste_quantity"`
	Status          ProductionStatus `json:"status"`
	Notes           string           `json:"notes,omitempty"`
}

// EfficiencyPercentage is actual / planned * 100, zero when nothing was planned.
func (p DailyProduction) EfficiencyPercentage() decimal.Decimal {
	if p.PlannedQuantity.IsZero() {
		return decimal.Zero
	}
	return p.ActualQuantity.Div(p.PlannedQuantity).Mul(hundred)
}

// WastePercentage is waste / planned * 100, zero when nothing was planned.
func (p DailyProduction) WastePercentage() decimal.Decimal {
	if p.PlannedQuantity.IsZero() {
		return decimal.Zero
	}
	return p.WasteQuantity.Div(p.PlannedQuantity).Mul(hundred)
}

// ProductionDetail records planned and actual usage of one ingredient in a run.
type ProductionDetail struct {
	ID              int64           `json:"id"`
	ProductionID    int64           `json:"production_id"`
	IngredientID    int64           `json:"ingredient_id"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity"`
	ActualQuantity  decimal.Decimal `json:"actual_quantity"`
	Variance        decimal.Decimal `json:"variance"`
	Position        int             `json:"position"`
}

// ComputeVariance returns actual - planned.
func (d ProductionDetail) ComputeVariance() decimal.Decimal {
	return d.ActualQuantity.Sub(d.PlannedQuantity)
}

// ProductionRun joins a production header with its detail lines.
type ProductionRun struct {
	DailyProduction
	Details []ProductionDetail `json:"details"`
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
