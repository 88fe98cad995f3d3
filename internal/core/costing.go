package core

import (
	"context"

	"github.com/shopspring/decimal"

	"bakerycore/pkg/domain"
)

// CostingEngine prices recipes from their lines and current ingredient prices.
// All methods are pure reads over committed state except RefreshProductCosting.
type CostingEngine struct {
	store domain.PersistentStore
}

// NewCostingEngine binds a costing engine to store.
func NewCostingEngine(store domain.PersistentStore) *CostingEngine {
	return &CostingEngine{store: store}
}

// CalculateCost is the total cost of one batch: the sum of line quantity
// times ingredient unit price. A recipe without lines costs zero.
func (c *CostingEngine) CalculateCost(ctx context.Context, recipeID int64) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return batchCost(c.store.NewUnitOfWork(), recipeID)
}

// CostPerUnit divides the batch cost by the recipe yield, or returns zero when
// the yield is not positive.
func (c *CostingEngine) CostPerUnit(ctx context.Context, recipeID int64) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return unitCost(c.store.NewUnitOfWork(), recipeID)
}

// CanProduce reports whether current stock covers quantity batches.
func (c *CostingEngine) CanProduce(ctx context.Context, recipeID int64, quantity decimal.Decimal) (bool, error) {
	missing, err := c.MissingIngredients(ctx, recipeID, quantity)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// MissingIngredients lists every line whose requirement for quantity batches
// exceeds current stock. The result is empty exactly when CanProduce is true.
func (c *CostingEngine) MissingIngredients(ctx context.Context, recipeID int64, quantity decimal.Decimal) ([]Shortage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, domain.InvalidArgumentError{Field: "quantity", Reason: "must be greater than zero"}
	}
	return shortages(c.store.NewUnitOfWork(), recipeID, quantity)
}

// ProductCost is the per-unit cost of the product's linked recipe, or zero
// when no recipe is linked.
func (c *CostingEngine) ProductCost(ctx context.Context, productID int64) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return productCost(c.store.NewUnitOfWork(), productID)
}

// RefreshProductCosting stores the product's current cost and profit margin.
func (c *CostingEngine) RefreshProductCosting(ctx context.Context, productID int64) (Product, error) {
	var refreshed Product
	_, err := c.store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		cost, err := productCost(uow, productID)
		if err != nil {
			return err
		}
		refreshed, err = uow.Products().Update(productID, func(p *Product) error {
			p.ProductionCost = cost
			p.ProfitMargin = p.MarginFor(cost)
			return nil
		})
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return refreshed, nil
}

// CheckIngredientsAvailability reports the shortages for producing units of a
// product, rounding up to whole batches of its linked recipe.
func (c *CostingEngine) CheckIngredientsAvailability(ctx context.Context, productID int64, units int) ([]Shortage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if units <= 0 {
		return nil, domain.InvalidArgumentError{Field: "units", Reason: "must be greater than zero"}
	}
	uow := c.store.NewUnitOfWork()
	if _, err := uow.Products().GetByID(productID); err != nil {
		return nil, err
	}
	recipe, ok := uow.Recipes().GetByProductID(productID)
	if !ok {
		return nil, domain.InvalidStateError{Entity: domain.EntityProduct, ID: productID, State: "no linked recipe", Operation: "check ingredients"}
	}
	yield := recipe.Yield
	if yield < 1 {
		yield = 1
	}
	batches := (units + yield - 1) / yield
	return shortages(uow, recipe.ID, decimal.NewFromInt(int64(batches)))
}

func batchCost(uow domain.UnitOfWork, recipeID int64) (decimal.Decimal, error) {
	if _, err := uow.Recipes().GetByID(recipeID); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range uow.Recipes().Lines(recipeID) {
		ingredient, err := uow.Ingredients().GetByID(line.IngredientID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(line.Quantity.Mul(ingredient.UnitPrice))
	}
	return total, nil
}

func unitCost(uow domain.UnitOfWork, recipeID int64) (decimal.Decimal, error) {
	recipe, err := uow.Recipes().GetByID(recipeID)
	if err != nil {
		return decimal.Zero, err
	}
	if recipe.Yield <= 0 {
		return decimal.Zero, nil
	}
	total, err := batchCost(uow, recipeID)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Div(decimal.NewFromInt(int64(recipe.Yield))), nil
}

func productCost(uow domain.UnitOfWork, productID int64) (decimal.Decimal, error) {
	if _, err := uow.Products().GetByID(productID); err != nil {
		return decimal.Zero, err
	}
	recipe, ok := uow.Recipes().GetByProductID(productID)
	if !ok {
		return decimal.Zero, nil
	}
	return unitCost(uow, recipe.ID)
}

func shortages(uow domain.UnitOfWork, recipeID int64, quantity decimal.Decimal) ([]Shortage, error) {
	if _, err := uow.Recipes().GetByID(recipeID); err != nil {
		return nil, err
	}
	var out []Shortage
	for _, line := range uow.Recipes().Lines(recipeID) {
		ingredient, err := uow.Ingredients().GetByID(line.IngredientID)
		if err != nil {
			return nil, err
		}
		required := line.Quantity.Mul(quantity)
		if ingredient.CurrentStock.GreaterThanOrEqual(required) {
			continue
		}
		out = append(out, Shortage{
			IngredientID: ingredient.ID,
			Name:         ingredient.Name,
			Required:     required,
			Available:    ingredient.CurrentStock,
			Missing:      required.Sub(ingredient.CurrentStock),
		})
	}
	return out, nil
}
