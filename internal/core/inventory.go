package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bakerycore/pkg/domain"
)

// Ledger owns ingredient stock. Every stock mutation, whether a direct
// adjustment, a restock or a production consuming ingredients, goes through
// AdjustStockIn so the non-negative invariant is checked in one place.
type Ledger struct {
	store  domain.PersistentStore
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger binds a ledger to store. A nil logger or clock falls back to defaults.
func NewLedger(store domain.PersistentStore, logger *zap.Logger, now func() time.Time) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{store: store, logger: logger, now: now}
}

// AdjustStock applies delta to the ingredient's stock in its own transaction.
func (l *Ledger) AdjustStock(ctx context.Context, ingredientID int64, delta decimal.Decimal) (Ingredient, error) {
	var adjusted Ingredient
	_, err := l.store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		var err error
		adjusted, err = l.AdjustStockIn(uow, ingredientID, delta)
		return err
	})
	if err != nil {
		return Ingredient{}, err
	}
	return adjusted, nil
}

// AdjustStockIn applies delta inside the caller's open unit of work. The
// stock is re-read from the transaction so concurrent writers, which are
// serialized by the store, never act on a stale value. A result below zero
// fails with InsufficientStockError and leaves the stock untouched.
func (l *Ledger) AdjustStockIn(uow domain.UnitOfWork, ingredientID int64, delta decimal.Decimal) (Ingredient, error) {
	if !uow.Active() {
		return Ingredient{}, domain.InvalidStateError{
			Entity:    domain.EntityIngredient,
			ID:        ingredientID,
			State:     "no open transaction",
			Operation: "adjust stock",
		}
	}
	repo := uow.Ingredients()
	current, err := repo.GetByID(ingredientID)
	if err != nil {
		return Ingredient{}, err
	}
	if delta.IsZero() {
		return current, nil
	}
	next := current.CurrentStock.Add(delta)
	if next.IsNegative() {
		l.logger.Debug("stock adjustment rejected",
			zap.Int64("ingredient_id", ingredientID),
			zap.String("available", current.CurrentStock.String()),
			zap.String("delta", delta.String()))
		return Ingredient{}, domain.InsufficientStockError{
			IngredientID: ingredientID,
			Name:         current.Name,
			Available:    current.CurrentStock,
			Requested:    delta,
		}
	}
	return repo.Update(ingredientID, func(i *Ingredient) error {
		i.CurrentStock = next
		if delta.IsPositive() {
			stamp := l.now()
			i.LastRestockDate = &stamp
		}
		return nil
	})
}

// CheckAvailability reports whether the ingredient holds at least required.
func (l *Ledger) CheckAvailability(ctx context.Context, ingredientID int64, required decimal.Decimal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if required.IsNegative() {
		return false, domain.InvalidArgumentError{Field: "required", Reason: "must not be negative"}
	}
	ingredient, err := l.store.NewUnitOfWork().Ingredients().GetByID(ingredientID)
	if err != nil {
		return false, err
	}
	return ingredient.CurrentStock.GreaterThanOrEqual(required), nil
}

// GetLowStock lists ingredients at or below their minimum, most critical first.
func (l *Ledger) GetLowStock(_ context.Context) []Ingredient {
	return l.store.NewUnitOfWork().Ingredients().GetLowStock()
}

// Restock receives quantity units of an ingredient, optionally repricing it.
func (l *Ledger) Restock(ctx context.Context, ingredientID int64, quantity decimal.Decimal, unitPrice *decimal.Decimal) (Ingredient, error) {
	if !quantity.IsPositive() {
		return Ingredient{}, domain.InvalidArgumentError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if unitPrice != nil && unitPrice.IsNegative() {
		return Ingredient{}, domain.InvalidArgumentError{Field: "unit_price", Reason: "must not be negative"}
	}
	var restocked Ingredient
	_, err := l.store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		var err error
		if restocked, err = l.AdjustStockIn(uow, ingredientID, quantity); err != nil {
			return err
		}
		if unitPrice == nil {
			return nil
		}
		restocked, err = uow.Ingredients().Update(ingredientID, func(i *Ingredient) error {
			i.UnitPrice = *unitPrice
			return nil
		})
		return err
	})
	if err != nil {
		return Ingredient{}, err
	}
	l.logger.Info("ingredient restocked",
		zap.Int64("ingredient_id", ingredientID),
		zap.String("quantity", quantity.String()),
		zap.String("stock", restocked.CurrentStock.String()))
	return restocked, nil
}

// GetExpiringSoon lists ingredients expiring between now and days from now,
// soonest first.
func (l *Ledger) GetExpiringSoon(_ context.Context, days int) ([]Ingredient, error) {
	if days < 0 {
		return nil, domain.InvalidArgumentError{Field: "days", Reason: "must not be negative"}
	}
	now := l.now()
	candidates := l.store.NewUnitOfWork().Ingredients().GetExpiringBefore(now.AddDate(0, 0, days))
	out := candidates[:0]
	for _, ingredient := range candidates {
		if ingredient.ExpirationDate.Before(now) {
			continue
		}
		out = append(out, ingredient)
	}
	return out, nil
}

// GetTotalInventoryValue sums stock valued at current unit prices.
func (l *Ledger) GetTotalInventoryValue(_ context.Context) decimal.Decimal {
	return l.store.NewUnitOfWork().Ingredients().GetTotalInventoryValue()
}

// StockAlert is one low-stock ingredient with its stock as a percentage of
// the minimum.
type StockAlert struct {
	IngredientID int64           `json:"ingredient_id"`
	Name         string          `json:"name"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// GetStockAlertReport expands GetLowStock with stock-to-minimum percentages.
func (l *Ledger) GetStockAlertReport(ctx context.Context) []StockAlert {
	low := l.GetLowStock(ctx)
	out := make([]StockAlert, 0, len(low))
	for _, ingredient := range low {
		out = append(out, StockAlert{
			IngredientID: ingredient.ID,
			Name:         ingredient.Name,
			CurrentStock: ingredient.CurrentStock,
			MinimumStock: ingredient.MinimumStock,
			Percentage:   ingredient.StockRatio().Mul(decimal.NewFromInt(100)),
		})
	}
	return out
}
