package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/pkg/domain"
)

func TestDefaultRulesEngineRegistersPolicySet(t *testing.T) {
	names := NewDefaultRulesEngine().Rules()
	assert.Equal(t, []string{"stock_non_negative", "unique_names", "recipe_integrity", "production_integrity", "low_stock"}, names)
}

func TestStockNonNegativeRuleBlocksDirectWrites(t *testing.T) {
	b := newBakery(t)
	_, err := b.svc.Store().RunInTransaction(context.Background(), func(uow domain.UnitOfWork) error {
		_, err := uow.Ingredients().Update(b.flour.ID, func(i *Ingredient) error {
			i.CurrentStock = dec("-1")
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "stock_non_negative", violation.Result.Violations[0].Rule)
	assert.True(t, b.stock(t, b.flour.ID).Equal(dec("100")))
}

func TestLowStockRuleWarnsWithoutBlocking(t *testing.T) {
	b := newBakery(t)
	res, err := b.svc.Store().RunInTransaction(context.Background(), func(uow domain.UnitOfWork) error {
		_, err := b.svc.Ledger().AdjustStockIn(uow, b.flour.ID, dec("-85"))
		return err
	})
	require.NoError(t, err)
	warnings := res.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "low_stock", warnings[0].Rule)
	assert.Equal(t, b.flour.ID, warnings[0].EntityID)
}

func TestProductionIntegrityRuleFlagsStaleVariance(t *testing.T) {
	rule := ProductionIntegrityRule()
	store := memory.NewStore(nil)
	ctx := context.Background()
	var detailID int64
	_, err := store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		product, err := uow.Products().Add(Product{Name: "Roll"})
		if err != nil {
			return err
		}
		flour, err := uow.Ingredients().Add(Ingredient{Name: "Flour", Unit: "kilogram"})
		if err != nil {
			return err
		}
		run, err := uow.Productions().Add(DailyProduction{ProductID: product.ID})
		if err != nil {
			return err
		}
		detail, err := uow.Productions().AddDetail(ProductionDetail{ProductionID: run.ID, IngredientID: flour.ID, PlannedQuantity: dec("2"), ActualQuantity: dec("3")})
		detailID = detail.ID
		return err
	})
	require.NoError(t, err)

	snapshot := store.ExportState()
	detail := snapshot.Details[detailID]
	detail.Variance = dec("7")
	snapshot.Details[detailID] = detail
	tampered := memory.NewStore(nil)
	tampered.ImportState(snapshot)

	uow := tampered.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	defer func() { _ = uow.Rollback() }()
	res, err := rule.Evaluate(ctx, viewOf(uow), nil)
	require.NoError(t, err)
	require.True(t, res.HasBlocking())
	assert.Equal(t, domain.EntityProductionDetail, res.Violations[0].Entity)
}

func TestUniqueNamesRuleDetectsDuplicates(t *testing.T) {
	view := staticView{
		ingredients: []Ingredient{{Base: Base{ID: 1}, Name: "Flour"}, {Base: Base{ID: 2}, Name: " FLOUR"}},
		products:    []Product{{Base: Base{ID: 1}, Name: "Bread"}, {Base: Base{ID: 2}, Name: "Roll"}},
	}
	res, err := UniqueNamesRule().Evaluate(context.Background(), view, nil)
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, int64(2), res.Violations[0].EntityID)
}

func TestRecipeIntegrityRuleDetectsDoubleLinkAndBadLines(t *testing.T) {
	productID := int64(1)
	view := staticView{
		products: []Product{{Base: Base{ID: productID}, Name: "Bread"}},
		recipes: []Recipe{
			{Base: Base{ID: 1}, Name: "A", ProductID: &productID, Yield: 1},
			{Base: Base{ID: 2}, Name: "B", ProductID: &productID, Yield: 1},
		},
		lines: []RecipeLine{{ID: 1, RecipeID: 1, IngredientID: 42, Quantity: dec("1")}},
	}
	res, err := RecipeIntegrityRule().Evaluate(context.Background(), view, nil)
	require.NoError(t, err)
	require.Len(t, res.Violations, 2)
	for _, v := range res.Violations {
		assert.Equal(t, domain.SeverityBlock, v.Severity)
	}
}

// viewOf snapshots the open transaction as a rule view.
func viewOf(uow domain.UnitOfWork) domain.RuleView {
	return staticView{
		ingredients: uow.Ingredients().GetAll(),
		products:    uow.Products().GetAll(),
		recipes:     uow.Recipes().GetAll(),
		productions: uow.Productions().GetAll(),
		details:     allDetails(uow),
	}
}

func allDetails(uow domain.UnitOfWork) []ProductionDetail {
	var out []ProductionDetail
	for _, run := range uow.Productions().GetAll() {
		out = append(out, uow.Productions().Details(run.ID)...)
	}
	return out
}

type staticView struct {
	ingredients []Ingredient
	products    []Product
	recipes     []Recipe
	lines       []RecipeLine
	productions []DailyProduction
	details     []ProductionDetail
}

func (v staticView) ListIngredients() []Ingredient             { return v.ingredients }
func (v staticView) ListProducts() []Product                   { return v.products }
func (v staticView) ListRecipes() []Recipe                     { return v.recipes }
func (v staticView) ListRecipeLines() []RecipeLine             { return v.lines }
func (v staticView) ListProductions() []DailyProduction        { return v.productions }
func (v staticView) ListProductionDetails() []ProductionDetail { return v.details }
func (v staticView) FindIngredient(id int64) (Ingredient, bool) {
	return find(v.ingredients, id, func(i Ingredient) int64 { return i.ID })
}
func (v staticView) FindProduct(id int64) (Product, bool) {
	return find(v.products, id, func(p Product) int64 { return p.ID })
}
func (v staticView) FindRecipe(id int64) (Recipe, bool) {
	return find(v.recipes, id, func(r Recipe) int64 { return r.ID })
}
func (v staticView) FindProduction(id int64) (DailyProduction, bool) {
	return find(v.productions, id, func(p DailyProduction) int64 { return p.ID })
}

func find[T any](items []T, id int64, key func(T) int64) (T, bool) {
	for _, item := range items {
		if key(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}
