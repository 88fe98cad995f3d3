package core

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/pkg/domain"
)

func TestCalculateCostAndCostPerUnit(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()

	cost, err := b.svc.CalculateCost(ctx, b.recipe.ID)
	require.NoError(t, err)
	assert.True(t, cost.Equal(dec("1.00")), "got %s", cost)

	perUnit, err := b.svc.CostPerUnit(ctx, b.recipe.ID)
	require.NoError(t, err)
	assert.True(t, perUnit.Equal(dec("0.25")), "got %s", perUnit)
	assert.True(t, perUnit.Equal(cost.Div(decimal.NewFromInt(4))))

	_, err = b.svc.CalculateCost(ctx, 404)
	assert.True(t, domain.IsNotFound(err))
}

func TestCalculateCostWithoutLinesIsZero(t *testing.T) {
	b := newBakery(t)
	empty, err := b.svc.CreateRecipe(context.Background(), Recipe{Name: "Water"}, nil)
	require.NoError(t, err)
	cost, err := b.svc.CalculateCost(context.Background(), empty.ID)
	require.NoError(t, err)
	assert.True(t, cost.IsZero())
}

func TestCalculateCostIsLinear(t *testing.T) {
	ctx := context.Background()
	for _, k := range []string{"2", "3.5", "0.1"} {
		b := newBakery(t)
		_, err := b.svc.AddRecipeLine(ctx, b.recipe.ID, b.sugar.ID, dec("0.75"))
		require.NoError(t, err)
		base, err := b.svc.CalculateCost(ctx, b.recipe.ID)
		require.NoError(t, err)

		factor := dec(k)
		for _, line := range b.recipe.Lines {
			_, err := b.svc.UpdateRecipeLine(ctx, b.recipe.ID, line.IngredientID, line.Quantity.Mul(factor))
			require.NoError(t, err)
		}
		_, err = b.svc.UpdateRecipeLine(ctx, b.recipe.ID, b.sugar.ID, dec("0.75").Mul(factor))
		require.NoError(t, err)

		scaled, err := b.svc.CalculateCost(ctx, b.recipe.ID)
		require.NoError(t, err)
		assert.True(t, scaled.Equal(base.Mul(factor)), "k=%s base=%s scaled=%s", k, base, scaled)
	}
}

func TestCostPerUnitWithZeroYieldIsZero(t *testing.T) {
	// Without the default rules a recipe can be committed with yield 0.
	store := memory.NewStore(nil)
	svc := NewService(store)
	ctx := context.Background()
	flour, err := svc.CreateIngredient(ctx, Ingredient{Name: "Flour", Unit: "kilogram", UnitPrice: dec("0.50")})
	require.NoError(t, err)
	recipe, err := svc.CreateRecipe(ctx, Recipe{Name: "Flatbread", Yield: 1}, []RecipeLine{{IngredientID: flour.ID, Quantity: dec("2")}})
	require.NoError(t, err)
	_, err = store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		_, err := uow.Recipes().Update(recipe.ID, func(r *Recipe) error {
			r.Yield = 0
			return nil
		})
		return err
	})
	require.NoError(t, err)

	perUnit, err := svc.CostPerUnit(ctx, recipe.ID)
	require.NoError(t, err)
	assert.True(t, perUnit.IsZero())
}

func TestZeroYieldBlockedByDefaultRules(t *testing.T) {
	b := newBakery(t)
	_, err := b.svc.Store().RunInTransaction(context.Background(), func(uow domain.UnitOfWork) error {
		_, err := uow.Recipes().Update(b.recipe.ID, func(r *Recipe) error {
			r.Yield = 0
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "recipe_integrity", violation.Result.Violations[0].Rule)
}

func TestCanProduceMatchesMissingIngredients(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()
	_, err := b.svc.AddRecipeLine(ctx, b.recipe.ID, b.sugar.ID, dec("1"))
	require.NoError(t, err)

	for _, q := range []string{"1", "10", "10.5", "11", "50", "51"} {
		quantity := dec(q)
		can, err := b.svc.CanProduce(ctx, b.recipe.ID, quantity)
		require.NoError(t, err)
		missing, err := b.svc.MissingIngredients(ctx, b.recipe.ID, quantity)
		require.NoError(t, err)
		assert.Equal(t, !can, len(missing) > 0, "quantity %s", q)
	}

	missing, err := b.svc.MissingIngredients(ctx, b.recipe.ID, dec("51"))
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, b.flour.ID, missing[0].IngredientID)
	assert.True(t, missing[0].Missing.Equal(dec("2")))
	assert.Equal(t, b.sugar.ID, missing[1].IngredientID)
	assert.True(t, missing[1].Required.Equal(dec("51")))
	assert.True(t, missing[1].Missing.Equal(dec("41")))
}

func TestCanProduceRejectsNonPositiveQuantity(t *testing.T) {
	b := newBakery(t)
	for _, q := range []string{"0", "-1"} {
		_, err := b.svc.CanProduce(context.Background(), b.recipe.ID, dec(q))
		assert.True(t, domain.IsInvalidArgument(err), "quantity %s", q)
	}
}

func TestRefreshProductCostingStoresMargin(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()

	product, err := b.svc.RefreshProductCosting(ctx, b.bread.ID)
	require.NoError(t, err)
	assert.True(t, product.ProductionCost.Equal(dec("0.25")))
	assert.True(t, product.ProfitMargin.Equal(dec("75")), "got %s", product.ProfitMargin)

	orphan, err := b.svc.CreateProduct(ctx, Product{Name: "Gift card"})
	require.NoError(t, err)
	cost, err := b.svc.Costing().ProductCost(ctx, orphan.ID)
	require.NoError(t, err)
	assert.True(t, cost.IsZero())
}

func TestCheckIngredientsAvailabilityRoundsUpToBatches(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()

	// 198 units need 50 batches of 2 flour: exactly the 100 in stock.
	missing, err := b.svc.Costing().CheckIngredientsAvailability(ctx, b.bread.ID, 198)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// 201 units need 51 batches.
	missing, err = b.svc.Costing().CheckIngredientsAvailability(ctx, b.bread.ID, 201)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.True(t, missing[0].Required.Equal(dec("102")))

	_, err = b.svc.Costing().CheckIngredientsAvailability(ctx, b.bread.ID, 0)
	assert.True(t, domain.IsInvalidArgument(err))

	orphan, err := b.svc.CreateProduct(ctx, Product{Name: "Gift card"})
	require.NoError(t, err)
	_, err = b.svc.Costing().CheckIngredientsAvailability(ctx, orphan.ID, 1)
	assert.True(t, domain.IsInvalidState(err))
}
