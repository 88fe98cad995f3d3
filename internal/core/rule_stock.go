package core

import (
	"context"
	"fmt"

	"bakerycore/pkg/domain"
)

// StockNonNegativeRule blocks any commit that leaves an ingredient with negative stock.
func StockNonNegativeRule() domain.Rule {
	return stockNonNegativeRule{}
}

type stockNonNegativeRule struct{}

func (stockNonNegativeRule) Name() string { return "stock_non_negative" }

func (stockNonNegativeRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, ingredient := range view.ListIngredients() {
		if !ingredient.CurrentStock.IsNegative() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "stock_non_negative",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("ingredient %d (%s) stock %s is negative", ingredient.ID, ingredient.Name, ingredient.CurrentStock),
			Entity:   domain.EntityIngredient,
			EntityID: ingredient.ID,
		})
	}
	return res, nil
}

// LowStockRule warns when a committed change leaves an ingredient at or below its minimum.
func LowStockRule() domain.Rule {
	return lowStockRule{}
}

type lowStockRule struct{}

func (lowStockRule) Name() string { return "low_stock" }

func (lowStockRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[int64]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityIngredient || change.After == nil {
			continue
		}
		if _, dup := seen[change.EntityID]; dup {
			continue
		}
		seen[change.EntityID] = struct{}{}
		ingredient, ok := view.FindIngredient(change.EntityID)
		if !ok || !ingredient.NeedsRestock() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "low_stock",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("ingredient %s at %s %s, minimum %s", ingredient.Name, ingredient.CurrentStock, ingredient.Unit, ingredient.MinimumStock),
			Entity:   domain.EntityIngredient,
			EntityID: ingredient.ID,
		})
	}
	return res, nil
}
