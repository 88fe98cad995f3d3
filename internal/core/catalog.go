package core

import (
	"context"

	"github.com/shopspring/decimal"

	"bakerycore/pkg/domain"
)

// RecipeWithLines is a recipe joined with its ordered lines.
type RecipeWithLines struct {
	Recipe
	Lines []RecipeLine `json:"lines"`
}

// transact runs fn in its own unit of work under the service instrumentation.
func transact[T any](ctx context.Context, s *Service, op string, fn func(domain.UnitOfWork) (T, error)) (T, error) {
	var out T
	err := s.observe(ctx, op, func() error {
		_, err := s.store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
			var err error
			out, err = fn(uow)
			return err
		})
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// CreateIngredient records a new ingredient.
func (s *Service) CreateIngredient(ctx context.Context, ingredient Ingredient) (Ingredient, error) {
	return transact(ctx, s, "create_ingredient", func(uow domain.UnitOfWork) (Ingredient, error) {
		return uow.Ingredients().Add(ingredient)
	})
}

// UpdateIngredient mutates an ingredient's descriptive fields. Stock changes
// made by mutator are discarded; use AdjustStock.
func (s *Service) UpdateIngredient(ctx context.Context, id int64, mutator func(*Ingredient) error) (Ingredient, error) {
	return transact(ctx, s, "update_ingredient", func(uow domain.UnitOfWork) (Ingredient, error) {
		return uow.Ingredients().Update(id, func(i *Ingredient) error {
			stock := i.CurrentStock
			if err := mutator(i); err != nil {
				return err
			}
			i.CurrentStock = stock
			return nil
		})
	})
}

// DeleteIngredient removes an ingredient no recipe or production references.
func (s *Service) DeleteIngredient(ctx context.Context, id int64) error {
	_, err := transact(ctx, s, "delete_ingredient", func(uow domain.UnitOfWork) (struct{}, error) {
		return struct{}{}, uow.Ingredients().Delete(id)
	})
	return err
}

// ListIngredients returns all ingredients ordered by id.
func (s *Service) ListIngredients(_ context.Context) []Ingredient {
	return s.store.NewUnitOfWork().Ingredients().GetAll()
}

// GetIngredient returns one ingredient.
func (s *Service) GetIngredient(_ context.Context, id int64) (Ingredient, error) {
	return s.store.NewUnitOfWork().Ingredients().GetByID(id)
}

// CreateProduct records a new, active product.
func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	return transact(ctx, s, "create_product", func(uow domain.UnitOfWork) (Product, error) {
		return uow.Products().Add(product)
	})
}

// DeactivateProduct hides a product from active listings without removing it.
func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	_, err := transact(ctx, s, "deactivate_product", func(uow domain.UnitOfWork) (struct{}, error) {
		return struct{}{}, uow.Products().Delete(id)
	})
	return err
}

// ListProducts returns all products, or only active ones.
func (s *Service) ListProducts(_ context.Context, activeOnly bool) []Product {
	repo := s.store.NewUnitOfWork().Products()
	if activeOnly {
		return repo.GetActive()
	}
	return repo.GetAll()
}

// CreateRecipe records a recipe and its lines in one transaction.
func (s *Service) CreateRecipe(ctx context.Context, recipe Recipe, lines []RecipeLine) (RecipeWithLines, error) {
	return transact(ctx, s, "create_recipe", func(uow domain.UnitOfWork) (RecipeWithLines, error) {
		created, err := uow.Recipes().Add(recipe)
		if err != nil {
			return RecipeWithLines{}, err
		}
		for _, line := range lines {
			if _, err := uow.Recipes().AddLine(created.ID, line.IngredientID, line.Quantity); err != nil {
				return RecipeWithLines{}, err
			}
		}
		return RecipeWithLines{Recipe: created, Lines: uow.Recipes().Lines(created.ID)}, nil
	})
}

// GetRecipe returns a recipe with its lines.
func (s *Service) GetRecipe(_ context.Context, id int64) (RecipeWithLines, error) {
	uow := s.store.NewUnitOfWork()
	recipe, err := uow.Recipes().GetByID(id)
	if err != nil {
		return RecipeWithLines{}, err
	}
	return RecipeWithLines{Recipe: recipe, Lines: uow.Recipes().Lines(id)}, nil
}

// AddRecipeLine adds quantity of an ingredient to a recipe, merging with an
// existing line for the same ingredient.
func (s *Service) AddRecipeLine(ctx context.Context, recipeID, ingredientID int64, quantity decimal.Decimal) (RecipeLine, error) {
	return transact(ctx, s, "add_recipe_line", func(uow domain.UnitOfWork) (RecipeLine, error) {
		return uow.Recipes().AddLine(recipeID, ingredientID, quantity)
	})
}

// UpdateRecipeLine replaces the quantity of an ingredient in a recipe.
func (s *Service) UpdateRecipeLine(ctx context.Context, recipeID, ingredientID int64, quantity decimal.Decimal) (RecipeLine, error) {
	return transact(ctx, s, "update_recipe_line", func(uow domain.UnitOfWork) (RecipeLine, error) {
		return uow.Recipes().UpdateLine(recipeID, ingredientID, quantity)
	})
}

// RemoveRecipeLine drops an ingredient from a recipe.
func (s *Service) RemoveRecipeLine(ctx context.Context, recipeID, ingredientID int64) error {
	_, err := transact(ctx, s, "remove_recipe_line", func(uow domain.UnitOfWork) (struct{}, error) {
		return struct{}{}, uow.Recipes().RemoveLine(recipeID, ingredientID)
	})
	return err
}

// DeleteRecipe removes a recipe and its lines.
func (s *Service) DeleteRecipe(ctx context.Context, id int64) error {
	_, err := transact(ctx, s, "delete_recipe", func(uow domain.UnitOfWork) (struct{}, error) {
		return struct{}{}, uow.Recipes().Delete(id)
	})
	return err
}

// RecordSale records a sale, pricing it from the product when no unit price is given.
func (s *Service) RecordSale(ctx context.Context, sale Sale) (Sale, error) {
	return transact(ctx, s, "record_sale", func(uow domain.UnitOfWork) (Sale, error) {
		return uow.Sales().Add(sale)
	})
}
