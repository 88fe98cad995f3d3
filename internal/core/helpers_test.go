package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type bakery struct {
	svc    *Service
	flour  Ingredient
	sugar  Ingredient
	bread  Product
	recipe RecipeWithLines
}

// newBakery seeds flour (stock 100, min 20, 0.50), sugar (stock 10, min 5, 2.00),
// a bread product and a bread recipe using 2 flour per batch of 4.
func newBakery(t *testing.T) bakery {
	t.Helper()
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithClock(func() time.Time { return fixedNow }))

	flour, err := svc.CreateIngredient(ctx, Ingredient{
		Name: "Flour", Unit: "kilogram",
		CurrentStock: dec("100"), MinimumStock: dec("20"), UnitPrice: dec("0.50"),
	})
	require.NoError(t, err)
	sugar, err := svc.CreateIngredient(ctx, Ingredient{
		Name: "Sugar", Unit: "kilogram",
		CurrentStock: dec("10"), MinimumStock: dec("5"), UnitPrice: dec("2.00"),
	})
	require.NoError(t, err)
	bread, err := svc.CreateProduct(ctx, Product{Name: "Bread", Category: "loaves", SalePrice: dec("1.00")})
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, Recipe{Name: "Bread", ProductID: &bread.ID, Yield: 4},
		[]RecipeLine{{IngredientID: flour.ID, Quantity: dec("2")}})
	require.NoError(t, err)
	return bakery{svc: svc, flour: flour, sugar: sugar, bread: bread, recipe: recipe}
}

func (b bakery) stock(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	ingredient, err := b.svc.GetIngredient(context.Background(), id)
	require.NoError(t, err)
	return ingredient.CurrentStock
}
