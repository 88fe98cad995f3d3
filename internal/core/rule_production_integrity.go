package core

import (
	"context"
	"fmt"

	"bakerycore/pkg/domain"
)

// ProductionIntegrityRule reconciles production detail lines with their parent run:
// every line must reference an existing run and ingredient and carry the
// variance implied by its quantities.
func ProductionIntegrityRule() domain.Rule {
	return productionIntegrityRule{}
}

type productionIntegrityRule struct{}

func (productionIntegrityRule) Name() string { return "production_integrity" }

func (productionIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, run := range view.ListProductions() {
		if _, ok := view.FindProduct(run.ProductID); !ok {
			res.Violations = append(res.Violations, productionViolation(domain.EntityProduction, run.ID,
				fmt.Sprintf("production %d references missing product %d", run.ID, run.ProductID)))
		}
		if run.PlannedQuantity.IsNegative() || run.ActualQuantity.IsNegative() || run.WasteQuantity.IsNegative() {
			res.Violations = append(res.Violations, productionViolation(domain.EntityProduction, run.ID,
				fmt.Sprintf("production %d has negative quantities", run.ID)))
		}
	}

	for _, detail := range view.ListProductionDetails() {
		if _, ok := view.FindProduction(detail.ProductionID); !ok {
			res.Violations = append(res.Violations, productionViolation(domain.EntityProductionDetail, detail.ID,
				fmt.Sprintf("detail %d references missing production %d", detail.ID, detail.ProductionID)))
			continue
		}
		if _, ok := view.FindIngredient(detail.IngredientID); !ok {
			res.Violations = append(res.Violations, productionViolation(domain.EntityProductionDetail, detail.ID,
				fmt.Sprintf("detail %d references missing ingredient %d", detail.ID, detail.IngredientID)))
		}
		if want := detail.ComputeVariance(); !detail.Variance.Equal(want) {
			res.Violations = append(res.Violations, productionViolation(domain.EntityProductionDetail, detail.ID,
				fmt.Sprintf("detail %d variance %s does not match actual minus planned %s", detail.ID, detail.Variance, want)))
		}
	}
	return res, nil
}

func productionViolation(entity domain.EntityType, id int64, message string) domain.Violation {
	return domain.Violation{
		Rule:     "production_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
