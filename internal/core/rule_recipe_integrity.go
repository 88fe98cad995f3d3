package core

import (
	"context"
	"fmt"

	"bakerycore/pkg/domain"
)

// RecipeIntegrityRule enforces yield, product linkage and line references for recipes.
func RecipeIntegrityRule() domain.Rule {
	return recipeIntegrityRule{}
}

type recipeIntegrityRule struct{}

func (recipeIntegrityRule) Name() string { return "recipe_integrity" }

func (recipeIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	linked := make(map[int64]int64)
	for _, recipe := range view.ListRecipes() {
		if recipe.Yield < 1 {
			res.Violations = append(res.Violations, recipeViolation(recipe.ID, fmt.Sprintf("recipe %d yield %d must be at least 1", recipe.ID, recipe.Yield)))
		}
		if recipe.ProductID == nil {
			continue
		}
		productID := *recipe.ProductID
		if _, ok := view.FindProduct(productID); !ok {
			res.Violations = append(res.Violations, recipeViolation(recipe.ID, fmt.Sprintf("recipe %d references missing product %d", recipe.ID, productID)))
			continue
		}
		if other, dup := linked[productID]; dup {
			res.Violations = append(res.Violations, recipeViolation(recipe.ID, fmt.Sprintf("product %d already linked to recipe %d", productID, other)))
			continue
		}
		linked[productID] = recipe.ID
	}

	for _, line := range view.ListRecipeLines() {
		if _, ok := view.FindRecipe(line.RecipeID); !ok {
			res.Violations = append(res.Violations, recipeViolation(line.RecipeID, fmt.Sprintf("recipe line %d references missing recipe %d", line.ID, line.RecipeID)))
			continue
		}
		if _, ok := view.FindIngredient(line.IngredientID); !ok {
			res.Violations = append(res.Violations, recipeViolation(line.RecipeID, fmt.Sprintf("recipe %d line references missing ingredient %d", line.RecipeID, line.IngredientID)))
		}
		if !line.Quantity.IsPositive() {
			res.Violations = append(res.Violations, recipeViolation(line.RecipeID, fmt.Sprintf("recipe %d line for ingredient %d has non-positive quantity", line.RecipeID, line.IngredientID)))
		}
	}
	return res, nil
}

func recipeViolation(recipeID int64, message string) domain.Violation {
	return domain.Violation{
		Rule:     "recipe_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityRecipe,
		EntityID: recipeID,
	}
}
