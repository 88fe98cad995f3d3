package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakerycore/internal/core"
	"bakerycore/pkg/domain"
)

var day = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc     *core.Service
	reports *Service
	bread   domain.Product
	roll    domain.Product
	flour   domain.Ingredient
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	flour, err := svc.CreateIngredient(ctx, domain.Ingredient{Name: "Flour", Unit: "kilogram", CurrentStock: dec("100"), MinimumStock: dec("10"), UnitPrice: dec("0.50")})
	require.NoError(t, err)
	bread, err := svc.CreateProduct(ctx, domain.Product{Name: "Bread", SalePrice: dec("2")})
	require.NoError(t, err)
	roll, err := svc.CreateProduct(ctx, domain.Product{Name: "Roll", SalePrice: dec("0.5")})
	require.NoError(t, err)
	return fixture{svc: svc, reports: NewService(svc.Store(), nil), bread: bread, roll: roll, flour: flour}
}

func (f fixture) sell(t *testing.T, product domain.Product, qty int, method domain.PaymentMethod, at time.Time) {
	t.Helper()
	_, err := f.svc.RecordSale(context.Background(), domain.Sale{ProductID: product.ID, Quantity: qty, PaymentMethod: method, SaleDate: at})
	require.NoError(t, err)
}

func (f fixture) produce(t *testing.T, product domain.Product, at time.Time, planned, actual, waste, flourUsed string) domain.ProductionRun {
	t.Helper()
	run, err := f.svc.RegisterProduction(context.Background(), domain.ProductionRun{
		DailyProduction: domain.DailyProduction{
			ProductionDate:  at,
			ProductID:       product.ID,
			PlannedQuantity: dec(planned),
			ActualQuantity:  dec(actual),
			WasteQuantity:   dec(waste),
		},
		Details: []domain.ProductionDetail{{IngredientID: f.flour.ID, PlannedQuantity: dec(flourUsed), ActualQuantity: dec(flourUsed)}},
	}, true)
	require.NoError(t, err)
	return run
}

func TestSalesReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sell(t, f.bread, 3, domain.PaymentCash, day)
	f.sell(t, f.roll, 10, domain.PaymentCard, day.Add(10*time.Hour))
	f.sell(t, f.bread, 1, domain.PaymentCard, day.AddDate(0, 0, 1))
	f.sell(t, f.roll, 4, domain.PaymentCash, day.AddDate(0, 0, 7))

	assert.True(t, f.reports.SalesTotalByDate(ctx, day).Equal(dec("11")))

	total, err := f.reports.SalesTotalByRange(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("13")))

	byProduct, err := f.reports.SalesByProduct(ctx, day, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, byProduct, 2)
	assert.Equal(t, "Bread", byProduct[0].ProductName)
	assert.Equal(t, 4, byProduct[0].Units)
	assert.True(t, byProduct[0].Total.Equal(dec("8")))
	assert.Equal(t, 14, byProduct[1].Units)

	byMethod, err := f.reports.SalesByPaymentMethod(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, byMethod, 2)
	assert.Equal(t, domain.PaymentCard, byMethod[0].Method)
	assert.Equal(t, 2, byMethod[0].Sales)
	assert.True(t, byMethod[0].Total.Equal(dec("7")))
	assert.True(t, byMethod[1].Total.Equal(dec("6")))

	units, err := f.reports.UnitsSoldByProduct(ctx, f.roll.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, units)

	_, err = f.reports.UnitsSoldByProduct(ctx, 99)
	assert.True(t, domain.IsNotFound(err))
}

func TestRangeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	later, earlier := day.AddDate(0, 0, 2), day
	_, err := f.reports.SalesTotalByRange(ctx, later, earlier)
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = f.reports.WasteReport(ctx, later, earlier)
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = f.reports.ProductionCostReport(ctx, later, earlier)
	assert.True(t, domain.IsInvalidArgument(err))

	// Same calendar day in either order is a valid one-day range.
	_, err = f.reports.SalesTotalByRange(ctx, day.Add(5*time.Hour), day)
	assert.NoError(t, err)
}

func TestProductionReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.produce(t, f.bread, day, "100", "90", "5", "20")
	f.produce(t, f.bread, day.Add(3*time.Hour), "50", "40", "4", "10")
	f.produce(t, f.roll, day.AddDate(0, 0, 1), "200", "200", "0", "8")

	assert.True(t, f.reports.TotalProductionByDate(ctx, day).Equal(dec("130")))

	units, err := f.reports.UnitsProducedByProduct(ctx, f.bread.ID, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, units.Equal(dec("130")))

	waste, err := f.reports.WasteReport(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, waste, 2)
	assert.Equal(t, f.bread.ID, waste[0].ProductID)
	assert.True(t, waste[0].Waste.Equal(dec("9")))
	assert.True(t, waste[0].WastePercentage.Equal(dec("6.92")), "got %s", waste[0].WastePercentage)
	assert.True(t, waste[1].WastePercentage.IsZero())

	costs, err := f.reports.ProductionCostReport(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, costs, 1)
	assert.Equal(t, 2, costs[0].Runs)
	assert.True(t, costs[0].IngredientCost.Equal(dec("15")))
	assert.True(t, costs[0].CostPerUnit.Equal(dec("0.1154")), "got %s", costs[0].CostPerUnit)
}

func TestCancelledRunsAreExcluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateRecipe(ctx, domain.Recipe{Name: "Bread", ProductID: &f.bread.ID, Yield: 10},
		[]domain.RecipeLine{{IngredientID: f.flour.ID, Quantity: dec("1")}})
	require.NoError(t, err)

	planned, err := f.svc.PlanProduction(ctx, f.bread.ID, day, dec("20"))
	require.NoError(t, err)
	_, err = f.svc.CancelProduction(ctx, planned.ID, "no staff")
	require.NoError(t, err)

	assert.True(t, f.reports.TotalProductionByDate(ctx, day).IsZero())
	summary, err := f.reports.DailySummary(ctx, day)
	require.NoError(t, err)
	assert.Zero(t, summary.Runs)
}

func TestDailySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.produce(t, f.bread, day, "100", "90", "5", "91")
	f.produce(t, f.roll, day, "100", "70", "0", "1")
	f.sell(t, f.bread, 5, domain.PaymentCash, day)

	summary, err := f.reports.DailySummary(ctx, day.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.DateOnly(day), summary.Date)
	assert.Equal(t, 2, summary.Runs)
	assert.True(t, summary.Produced.Equal(dec("160")))
	assert.True(t, summary.Efficiency.Equal(dec("80")))
	assert.True(t, summary.SalesTotal.Equal(dec("10")))
	assert.Equal(t, 5, summary.UnitsSold)
	assert.Equal(t, 1, summary.LowStockCount)
	assert.True(t, summary.InventoryValue.Equal(dec("4")))
}
