package core

import (
	"context"
	"fmt"

	"bakerycore/pkg/domain"
)

// UniqueNamesRule enforces case-insensitive uniqueness of ingredient and product names.
func UniqueNamesRule() domain.Rule {
	return uniqueNamesRule{}
}

type uniqueNamesRule struct{}

func (uniqueNamesRule) Name() string { return "unique_names" }

func (uniqueNamesRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	ingredients := make(map[string]int64)
	for _, ingredient := range view.ListIngredients() {
		key := domain.NormalizedName(ingredient.Name)
		if first, dup := ingredients[key]; dup {
			res.Violations = append(res.Violations, duplicateName(domain.EntityIngredient, ingredient.ID, first, ingredient.Name))
			continue
		}
		ingredients[key] = ingredient.ID
	}

	products := make(map[string]int64)
	for _, product := range view.ListProducts() {
		key := domain.NormalizedName(product.Name)
		if first, dup := products[key]; dup {
			res.Violations = append(res.Violations, duplicateName(domain.EntityProduct, product.ID, first, product.Name))
			continue
		}
		products[key] = product.ID
	}
	return res, nil
}

func duplicateName(entity domain.EntityType, id, first int64, name string) domain.Violation {
	return domain.Violation{
		Rule:     "unique_names",
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf("%s %d reuses name %q of %s %d", entity, id, name, entity, first),
		Entity:   entity,
		EntityID: id,
	}
}
