package core

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bakerycore/pkg/domain"
)

func TestPrometheusRecorderCountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err)

	again, err := NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err, "second registration reuses collectors")

	svc := NewInMemoryService(NewDefaultRulesEngine(), WithMetrics(recorder))
	ctx := context.Background()
	flour, err := svc.CreateIngredient(ctx, Ingredient{Name: "Flour", Unit: "kilogram", CurrentStock: dec("5")})
	require.NoError(t, err)
	_, err = svc.AdjustStock(ctx, flour.ID, dec("1"))
	require.NoError(t, err)
	_, err = svc.AdjustStock(ctx, flour.ID, dec("-50"))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.operations.WithLabelValues("adjust_stock", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.operations.WithLabelValues("adjust_stock", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(again.operations.WithLabelValues("create_ingredient", "success")))

	recorder.SetLowStock(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(again.lowStock))
}

func TestServiceLogsFailedOperations(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithLogger(zap.New(core)))
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, 12, dec("1"))
	require.True(t, domain.IsNotFound(err))

	failed := logs.FilterMessage("operation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "adjust_stock", failed[0].ContextMap()["operation"])

	_, err = svc.CreateIngredient(ctx, Ingredient{Name: "Yeast", Unit: "gram"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("operation completed").Len())
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := NewInMemoryService(nil, WithLogger(nil), WithMetrics(nil), WithClock(nil))
	require.NotNil(t, svc.Logger())
	_, err := svc.CreateProduct(context.Background(), Product{Name: "Bun"})
	require.NoError(t, err)
}

func TestUpdateIngredientKeepsStock(t *testing.T) {
	b := newBakery(t)
	updated, err := b.svc.UpdateIngredient(context.Background(), b.flour.ID, func(i *Ingredient) error {
		i.Supplier = "Mill & Co"
		i.CurrentStock = dec("9999")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Mill & Co", updated.Supplier)
	assert.True(t, updated.CurrentStock.Equal(dec("100")))

	sentinel := errors.New("stop")
	_, err = b.svc.UpdateIngredient(context.Background(), b.flour.ID, func(*Ingredient) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestDeleteIngredientReferencedByRecipeConflicts(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()
	err := b.svc.DeleteIngredient(ctx, b.flour.ID)
	assert.True(t, domain.IsConflict(err), "got %v", err)

	require.NoError(t, b.svc.RemoveRecipeLine(ctx, b.recipe.ID, b.flour.ID))
	require.NoError(t, b.svc.DeleteIngredient(ctx, b.flour.ID))
	_, err = b.svc.GetIngredient(ctx, b.flour.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestDeactivateProductKeepsHistory(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()
	require.NoError(t, b.svc.DeactivateProduct(ctx, b.bread.ID))

	assert.Empty(t, b.svc.ListProducts(ctx, true))
	all := b.svc.ListProducts(ctx, false)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	recipe, err := b.svc.GetRecipe(ctx, b.recipe.ID)
	require.NoError(t, err)
	require.NotNil(t, recipe.ProductID)
	assert.Equal(t, b.bread.ID, *recipe.ProductID)
}

func TestRecipeLinesMergeThroughService(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()
	line, err := b.svc.AddRecipeLine(ctx, b.recipe.ID, b.flour.ID, dec("0.5"))
	require.NoError(t, err)
	assert.True(t, line.Quantity.Equal(dec("2.5")))

	recipe, err := b.svc.GetRecipe(ctx, b.recipe.ID)
	require.NoError(t, err)
	require.Len(t, recipe.Lines, 1)

	require.NoError(t, b.svc.DeleteRecipe(ctx, b.recipe.ID))
	_, err = b.svc.GetRecipe(ctx, b.recipe.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestRecordSaleDefaults(t *testing.T) {
	b := newBakery(t)
	ctx := context.Background()
	sale, err := b.svc.RecordSale(ctx, Sale{ProductID: b.bread.ID, Quantity: 3})
	require.NoError(t, err)
	assert.True(t, sale.UnitPrice.Equal(dec("1.00")))
	assert.True(t, sale.TotalPrice.Equal(dec("3")))
	assert.Equal(t, domain.PaymentCash, sale.PaymentMethod)
	assert.False(t, sale.SaleDate.IsZero())

	_, err = b.svc.RecordSale(ctx, Sale{ProductID: b.bread.ID, Quantity: 0})
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = b.svc.RecordSale(ctx, Sale{ProductID: b.bread.ID, Quantity: 1, PaymentMethod: "barter"})
	assert.True(t, domain.IsInvalidArgument(err))
}
