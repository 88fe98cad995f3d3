package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bakerycore/pkg/domain"
)

// Coordinator registers and schedules production runs. Each operation runs in
// one unit of work: either every effect commits or none does.
type Coordinator struct {
	store  domain.PersistentStore
	ledger *Ledger
	logger *zap.Logger
	now    func() time.Time
}

// NewCoordinator wires a coordinator to store, consuming stock through ledger.
func NewCoordinator(store domain.PersistentStore, ledger *Ledger, logger *zap.Logger, now func() time.Time) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{store: store, ledger: ledger, logger: logger, now: now}
}

// RegisterProduction completes a production run. Detail variances are
// recomputed, the run and its details are inserted or reconciled with the
// stored ones, and when updateInventory is set every detail's actual quantity
// is consumed from stock in detail order. Any failure rolls the whole
// registration back and is returned unchanged in kind.
func (c *Coordinator) RegisterProduction(ctx context.Context, run ProductionRun, updateInventory bool) (ProductionRun, error) {
	if err := validateRun(run); err != nil {
		return ProductionRun{}, err
	}
	var registered ProductionRun
	_, err := c.store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		var err error
		registered, err = c.register(uow, run, updateInventory)
		return err
	})
	if err != nil {
		c.logger.Warn("production registration rolled back",
			zap.Int64("production_id", run.ID),
			zap.Int64("product_id", run.ProductID),
			zap.Error(err))
		return ProductionRun{}, err
	}
	c.logger.Info("production registered",
		zap.Int64("production_id", registered.ID),
		zap.Int64("product_id", registered.ProductID),
		zap.Int("details", len(registered.Details)),
		zap.Bool("inventory_updated", updateInventory))
	return registered, nil
}

func validateRun(run ProductionRun) error {
	if run.ProductID == 0 {
		return domain.InvalidArgumentError{Field: "product_id", Reason: "required"}
	}
	for field, v := range map[string]decimal.Decimal{
		"planned_quantity": run.PlannedQuantity,
		"actual_quantity":  run.ActualQuantity,
		"waste_quantity":   run.WasteQuantity,
	} {
		if v.IsNegative() {
			return domain.InvalidArgumentError{Field: field, Reason: "must not be negative"}
		}
	}
	for i, d := range run.Details {
		if d.PlannedQuantity.IsNegative() || d.ActualQuantity.IsNegative() {
			return domain.InvalidArgumentError{Field: fmt.Sprintf("details[%d]", i), Reason: "quantities must not be negative"}
		}
	}
	return nil
}

func (c *Coordinator) register(uow domain.UnitOfWork, run ProductionRun, updateInventory bool) (ProductionRun, error) {
	details := make([]ProductionDetail, len(run.Details))
	for i, d := range run.Details {
		d.Variance = d.ComputeVariance()
		details[i] = d
	}

	repo := uow.Productions()
	header, err := c.upsertHeader(repo, run.DailyProduction)
	if err != nil {
		return ProductionRun{}, err
	}
	persisted, err := reconcileDetails(repo, header.ID, details)
	if err != nil {
		return ProductionRun{}, err
	}

	if updateInventory {
		for _, d := range persisted {
			if _, err := c.ledger.AdjustStockIn(uow, d.IngredientID, d.ActualQuantity.Neg()); err != nil {
				return ProductionRun{}, fmt.Errorf("consume ingredient %d for production %d: %w", d.IngredientID, header.ID, err)
			}
		}
	}

	header, err = repo.Update(header.ID, func(p *DailyProduction) error {
		p.Status = domain.ProductionCompleted
		return nil
	})
	if err != nil {
		return ProductionRun{}, err
	}
	return ProductionRun{DailyProduction: header, Details: persisted}, nil
}

// upsertHeader inserts a new run or overwrites the fields of an existing,
// non-terminal one. The status is left to the caller so details can still be
// attached before the run is completed.
func (c *Coordinator) upsertHeader(repo domain.ProductionRepository, incoming DailyProduction) (DailyProduction, error) {
	if incoming.ID == 0 {
		incoming.Status = domain.ProductionPlanned
		return repo.Add(incoming)
	}
	existing, err := repo.GetByID(incoming.ID)
	if err != nil {
		return DailyProduction{}, err
	}
	if existing.Status.Terminal() {
		return DailyProduction{}, domain.InvalidStateError{
			Entity:    domain.EntityProduction,
			ID:        existing.ID,
			State:     string(existing.Status),
			Operation: "register",
		}
	}
	return repo.Update(incoming.ID, func(p *DailyProduction) error {
		if !incoming.ProductionDate.IsZero() {
			p.ProductionDate = domain.DateOnly(incoming.ProductionDate)
		}
		p.ProductID = incoming.ProductID
		p.PlannedQuantity = incoming.PlannedQuantity
		p.ActualQuantity = incoming.ActualQuantity
		p.WasteQuantity = incoming.WasteQuantity
		p.Notes = incoming.Notes
		return nil
	})
}

// reconcileDetails makes the stored details of a run match incoming: stored
// lines absent from incoming are removed, lines matched by id are updated in
// place and the rest are appended to the run.
func reconcileDetails(repo domain.ProductionRepository, productionID int64, incoming []ProductionDetail) ([]ProductionDetail, error) {
	stored := repo.Details(productionID)
	storedIDs := make(map[int64]struct{}, len(stored))
	for _, d := range stored {
		storedIDs[d.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(incoming))
	for _, d := range incoming {
		if _, ok := storedIDs[d.ID]; ok {
			keep[d.ID] = struct{}{}
		}
	}
	for _, d := range stored {
		if _, ok := keep[d.ID]; ok {
			continue
		}
		if err := repo.RemoveDetail(d.ID); err != nil {
			return nil, err
		}
	}

	out := make([]ProductionDetail, 0, len(incoming))
	for _, d := range incoming {
		var (
			saved ProductionDetail
			err   error
		)
		if _, ok := keep[d.ID]; ok {
			next := d
			saved, err = repo.UpdateDetail(d.ID, func(cur *ProductionDetail) error {
				cur.IngredientID = next.IngredientID
				cur.PlannedQuantity = next.PlannedQuantity
				cur.ActualQuantity = next.ActualQuantity
				return nil
			})
		} else {
			d.ID = 0
			d.ProductionID = productionID
			saved, err = repo.AddDetail(d)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// PlanProduction schedules plannedUnits of a product on date. When the product
// has a linked recipe, one detail per recipe line is planned, scaled from the
// recipe yield.
func (c *Coordinator) PlanProduction(ctx context.Context, productID int64, date time.Time, plannedUnits decimal.Decimal) (ProductionRun, error) {
	if !plannedUnits.IsPositive() {
		return ProductionRun{}, domain.InvalidArgumentError{Field: "planned_quantity", Reason: "must be greater than zero"}
	}
	if date.IsZero() {
		date = c.now()
	}
	var planned ProductionRun
	_, err := c.store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		if _, err := uow.Products().GetByID(productID); err != nil {
			return err
		}
		header, err := uow.Productions().Add(DailyProduction{
			ProductionDate:  domain.DateOnly(date),
			ProductID:       productID,
			PlannedQuantity: plannedUnits,
			Status:          domain.ProductionPlanned,
		})
		if err != nil {
			return err
		}
		planned = ProductionRun{DailyProduction: header}
		recipe, ok := uow.Recipes().GetByProductID(productID)
		if !ok || recipe.Yield < 1 {
			return nil
		}
		scale := plannedUnits.Div(decimal.NewFromInt(int64(recipe.Yield)))
		for _, line := range uow.Recipes().Lines(recipe.ID) {
			detail, err := uow.Productions().AddDetail(ProductionDetail{
				ProductionID:    header.ID,
				IngredientID:    line.IngredientID,
				PlannedQuantity: line.Quantity.Mul(scale),
			})
			if err != nil {
				return err
			}
			planned.Details = append(planned.Details, detail)
		}
		return nil
	})
	if err != nil {
		return ProductionRun{}, err
	}
	return planned, nil
}

// StartProduction moves a planned run to in progress.
func (c *Coordinator) StartProduction(ctx context.Context, productionID int64) (DailyProduction, error) {
	return c.transition(ctx, productionID, domain.ProductionInProgress, "")
}

// CancelProduction moves a planned or in-progress run to cancelled, appending
// reason to its notes.
func (c *Coordinator) CancelProduction(ctx context.Context, productionID int64, reason string) (DailyProduction, error) {
	return c.transition(ctx, productionID, domain.ProductionCancelled, reason)
}

func (c *Coordinator) transition(ctx context.Context, productionID int64, next ProductionStatus, note string) (DailyProduction, error) {
	note = strings.TrimSpace(note)
	var updated DailyProduction
	_, err := c.store.RunInTransaction(ctx, func(uow domain.UnitOfWork) error {
		var err error
		updated, err = uow.Productions().Update(productionID, func(p *DailyProduction) error {
			if !p.Status.CanTransition(next) {
				return domain.InvalidStateError{Entity: domain.EntityProduction, ID: p.ID, State: string(p.Status), Operation: "transition to " + string(next)}
			}
			p.Status = next
			if note != "" {
				if p.Notes != "" {
					p.Notes += "\n"
				}
				p.Notes += note
			}
			return nil
		})
		return err
	})
	if err != nil {
		return DailyProduction{}, err
	}
	return updated, nil
}

// GetProduction returns a run with its details.
func (c *Coordinator) GetProduction(_ context.Context, productionID int64) (ProductionRun, error) {
	return c.store.NewUnitOfWork().Productions().GetRun(productionID)
}

// AggregateEfficiency is the mean efficiency of the runs on date, ignoring
// runs whose efficiency is zero. It is zero when no run qualifies.
func (c *Coordinator) AggregateEfficiency(_ context.Context, date time.Time) decimal.Decimal {
	return AggregateEfficiency(c.store.NewUnitOfWork().Productions().GetByDate(date))
}

// AggregateEfficiency averages the non-zero efficiencies of runs.
func AggregateEfficiency(runs []DailyProduction) decimal.Decimal {
	total := decimal.Zero
	count := int64(0)
	for _, run := range runs {
		efficiency := run.EfficiencyPercentage()
		if !efficiency.IsPositive() {
			continue
		}
		total = total.Add(efficiency)
		count++
	}
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(count))
}
