package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/pkg/domain"
)

// Service is the entry point hosts use: it wires the inventory ledger, the
// costing engine and the production coordinator over one persistent store and
// records every operation in the configured logger and metrics.
type Service struct {
	store      domain.PersistentStore
	ledger     *Ledger
	costing    *CostingEngine
	production *Coordinator
	logger     *zap.Logger
	metrics    MetricsRecorder
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the operation metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source used for stamps and defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = NewLedger(store, s.logger.Named("ledger"), s.now)
	s.costing = NewCostingEngine(store)
	s.production = NewCoordinator(store, s.ledger, s.logger.Named("production"), s.now)
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store using engine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Ledger exposes the inventory ledger.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Costing exposes the recipe costing engine.
func (s *Service) Costing() *CostingEngine { return s.costing }

// Production exposes the production coordinator.
func (s *Service) Production() *Coordinator { return s.production }

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger { return s.logger }

func (s *Service) observe(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.Warn("operation failed", zap.String("operation", op), zap.Duration("duration", elapsed), zap.Error(err))
		return err
	}
	s.logger.Debug("operation completed", zap.String("operation", op), zap.Duration("duration", elapsed))
	return nil
}

// AdjustStock applies delta to an ingredient's stock.
func (s *Service) AdjustStock(ctx context.Context, ingredientID int64, delta decimal.Decimal) (Ingredient, error) {
	var out Ingredient
	err := s.observe(ctx, "adjust_stock", func() error {
		var err error
		out, err = s.ledger.AdjustStock(ctx, ingredientID, delta)
		return err
	})
	return out, err
}

// Restock receives stock for an ingredient, optionally repricing it.
func (s *Service) Restock(ctx context.Context, ingredientID int64, quantity decimal.Decimal, unitPrice *decimal.Decimal) (Ingredient, error) {
	var out Ingredient
	err := s.observe(ctx, "restock", func() error {
		var err error
		out, err = s.ledger.Restock(ctx, ingredientID, quantity, unitPrice)
		return err
	})
	return out, err
}

// CheckAvailability reports whether an ingredient holds at least required.
func (s *Service) CheckAvailability(ctx context.Context, ingredientID int64, required decimal.Decimal) (bool, error) {
	return s.ledger.CheckAvailability(ctx, ingredientID, required)
}

// GetLowStock lists ingredients at or below their minimum, most critical first.
func (s *Service) GetLowStock(ctx context.Context) []Ingredient {
	return s.ledger.GetLowStock(ctx)
}

// CalculateCost returns the batch cost of a recipe.
func (s *Service) CalculateCost(ctx context.Context, recipeID int64) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.observe(ctx, "calculate_cost", func() error {
		var err error
		out, err = s.costing.CalculateCost(ctx, recipeID)
		return err
	})
	return out, err
}

// CostPerUnit returns the per-unit cost of a recipe.
func (s *Service) CostPerUnit(ctx context.Context, recipeID int64) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.observe(ctx, "cost_per_unit", func() error {
		var err error
		out, err = s.costing.CostPerUnit(ctx, recipeID)
		return err
	})
	return out, err
}

// CanProduce reports whether stock covers quantity batches of a recipe.
func (s *Service) CanProduce(ctx context.Context, recipeID int64, quantity decimal.Decimal) (bool, error) {
	return s.costing.CanProduce(ctx, recipeID, quantity)
}

// MissingIngredients lists the shortages for quantity batches of a recipe.
func (s *Service) MissingIngredients(ctx context.Context, recipeID int64, quantity decimal.Decimal) ([]Shortage, error) {
	return s.costing.MissingIngredients(ctx, recipeID, quantity)
}

// RegisterProduction completes a production run atomically.
func (s *Service) RegisterProduction(ctx context.Context, run ProductionRun, updateInventory bool) (ProductionRun, error) {
	var out ProductionRun
	err := s.observe(ctx, "register_production", func() error {
		var err error
		out, err = s.production.RegisterProduction(ctx, run, updateInventory)
		return err
	})
	return out, err
}

// PlanProduction schedules a production run for a product.
func (s *Service) PlanProduction(ctx context.Context, productID int64, date time.Time, plannedUnits decimal.Decimal) (ProductionRun, error) {
	var out ProductionRun
	err := s.observe(ctx, "plan_production", func() error {
		var err error
		out, err = s.production.PlanProduction(ctx, productID, date, plannedUnits)
		return err
	})
	return out, err
}

// AggregateEfficiency averages the non-zero efficiencies of the runs on date.
func (s *Service) AggregateEfficiency(ctx context.Context, date time.Time) decimal.Decimal {
	return s.production.AggregateEfficiency(ctx, date)
}

// StartProduction moves a planned run to in progress.
func (s *Service) StartProduction(ctx context.Context, productionID int64) (DailyProduction, error) {
	var out DailyProduction
	err := s.observe(ctx, "start_production", func() error {
		var err error
		out, err = s.production.StartProduction(ctx, productionID)
		return err
	})
	return out, err
}

// CancelProduction cancels a run that has not completed.
func (s *Service) CancelProduction(ctx context.Context, productionID int64, reason string) (DailyProduction, error) {
	var out DailyProduction
	err := s.observe(ctx, "cancel_production", func() error {
		var err error
		out, err = s.production.CancelProduction(ctx, productionID, reason)
		return err
	})
	return out, err
}

// RefreshProductCosting recomputes and stores a product's cost and margin.
func (s *Service) RefreshProductCosting(ctx context.Context, productID int64) (Product, error) {
	var out Product
	err := s.observe(ctx, "refresh_product_costing", func() error {
		var err error
		out, err = s.costing.RefreshProductCosting(ctx, productID)
		return err
	})
	return out, err
}
