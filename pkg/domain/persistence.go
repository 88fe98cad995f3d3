package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UnitOfWork is a transaction scope spanning several repository mutations.
// At most one transaction may be open per instance. Reads issued while no
// transaction is open observe committed state; writes require an open one.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) (Result, error)
	Rollback() error
	Active() bool

	Products() ProductRepository
	Ingredients() IngredientRepository
	Recipes() RecipeRepository
	Sales() SaleRepository
	Productions() ProductionRepository
}

// ProductRepository persists products. Delete deactivates.
type ProductRepository interface {
	GetByID(id int64) (Product, error)
	GetAll() []Product
	GetActive() []Product
	GetByCategory(category string) []Product
	FindByName(name string) (Product, bool)
	Add(Product) (Product, error)
	Update(id int64, mutator func(*Product) error) (Product, error)
	Delete(id int64) error
}

// IngredientRepository persists ingredients and answers stock aggregates.
type IngredientRepository interface {
	GetByID(id int64) (Ingredient, error)
	GetAll() []Ingredient
	FindByName(name string) (Ingredient, bool)
	Add(Ingredient) (Ingredient, error)
	Update(id int64, mutator func(*Ingredient) error) (Ingredient, error)
	Delete(id int64) error
	GetLowStock() []Ingredient
	GetExpiringBefore(cutoff time.Time) []Ingredient
	GetTotalInventoryValue() decimal.Decimal
}

// RecipeRepository persists recipes and their owned lines.
type RecipeRepository interface {
	GetByID(id int64) (Recipe, error)
	GetAll() []Recipe
	GetByProductID(productID int64) (Recipe, bool)
	Add(Recipe) (Recipe, error)
	Update(id int64, mutator func(*Recipe) error) (Recipe, error)
	Delete(id int64) error
	Lines(recipeID int64) []RecipeLine
	AddLine(recipeID, ingredientID int64, quantity decimal.Decimal) (RecipeLine, error)
	UpdateLine(recipeID, ingredientID int64, quantity decimal.Decimal) (RecipeLine, error)
	RemoveLine(recipeID, ingredientID int64) error
}

// SaleRepository persists sales.
type SaleRepository interface {
	GetByID(id int64) (Sale, error)
	GetAll() []Sale
	GetByDateRange(start, end time.Time) []Sale
	GetByProduct(productID int64) []Sale
	Add(Sale) (Sale, error)
	Update(id int64, mutator func(*Sale) error) (Sale, error)
	Delete(id int64) error
}

// ProductionRepository persists production runs and their owned detail lines.
type ProductionRepository interface {
	GetByID(id int64) (DailyProduction, error)
	GetRun(id int64) (ProductionRun, error)
	GetAll() []DailyProduction
	GetByDate(date time.Time) []DailyProduction
	GetByDateRange(start, end time.Time) []DailyProduction
	GetByProduct(productID int64) []DailyProduction
	Add(DailyProduction) (DailyProduction, error)
	Update(id int64, mutator func(*DailyProduction) error) (DailyProduction, error)
	Delete(id int64) error
	Details(productionID int64) []ProductionDetail
	AddDetail(ProductionDetail) (ProductionDetail, error)
	UpdateDetail(id int64, mutator func(*ProductionDetail) error) (ProductionDetail, error)
	RemoveDetail(id int64) error
}

// PersistentStore hands out units of work over a shared store.
type PersistentStore interface {
	NewUnitOfWork() UnitOfWork
	RunInTransaction(ctx context.Context, fn func(UnitOfWork) error) (Result, error)
	AuditTrail() []AuditEntry
}
