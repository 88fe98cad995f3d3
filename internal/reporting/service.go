// Package reporting derives read-only summaries from committed bakery state:
// sales totals, production output, waste and ingredient cost per product.
package reporting

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bakerycore/internal/core"
	"bakerycore/pkg/domain"
)

const dateLayout = "2006-01-02"

// Service answers reporting queries. It never opens a transaction.
type Service struct {
	store  domain.PersistentStore
	logger *zap.Logger
}

// NewService wires a reporting service over store.
func NewService(store domain.PersistentStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// ProductSales aggregates the sales of one product.
type ProductSales struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Units       int             `json:"units"`
	Total       decimal.Decimal `json:"total"`
}

// PaymentTotal aggregates sales for one payment method.
type PaymentTotal struct {
	Method domain.PaymentMethod `json:"method"`
	Sales  int                  `json:"sales"`
	Total  decimal.Decimal      `json:"total"`
}

// WasteLine reports produced and wasted units for one product.
type WasteLine struct {
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Produced        decimal.Decimal `json:"produced"`
	Waste           decimal.Decimal `json:"waste"`
	WastePercentage decimal.Decimal `json:"waste_percentage"`
}

// CostLine reports the ingredient cost consumed by one product's runs, priced
// at the ingredients' current unit price.
type CostLine struct {
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Runs           int             `json:"runs"`
	Units          decimal.Decimal `json:"units"`
	IngredientCost decimal.Decimal `json:"ingredient_cost"`
	CostPerUnit    decimal.Decimal `json:"cost_per_unit"`
}

// DailySummary is the end-of-day snapshot archived by the scheduler.
type DailySummary struct {
	Date           time.Time       `json:"date"`
	Runs           int             `json:"runs"`
	Planned        decimal.Decimal `json:"planned"`
	Produced       decimal.Decimal `json:"produced"`
	Waste          decimal.Decimal `json:"waste"`
	Efficiency     decimal.Decimal `json:"efficiency"`
	SalesTotal     decimal.Decimal `json:"sales_total"`
	UnitsSold      int             `json:"units_sold"`
	LowStockCount  int             `json:"low_stock_count"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

// dayRange widens [start, end] to whole UTC days.
func dayRange(start, end time.Time) (time.Time, time.Time, error) {
	from, to := domain.DateOnly(start), domain.DateOnly(end)
	if from.After(to) {
		return time.Time{}, time.Time{}, domain.InvalidArgumentError{
			Field:  "range",
			Reason: fmt.Sprintf("start %s is after end %s", from.Format(dateLayout), to.Format(dateLayout)),
		}
	}
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}

func (s *Service) salesBetween(start, end time.Time) ([]domain.Sale, error) {
	from, to, err := dayRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.store.NewUnitOfWork().Sales().GetByDateRange(from, to), nil
}

// completedRuns drops cancelled runs, which produced nothing.
func completedRuns(runs []domain.DailyProduction) []domain.DailyProduction {
	return slices.DeleteFunc(runs, func(p domain.DailyProduction) bool {
		return p.Status == domain.ProductionCancelled
	})
}

func (s *Service) productName(uow domain.UnitOfWork, id int64) string {
	product, err := uow.Products().GetByID(id)
	if err != nil {
		s.logger.Debug("report references unknown product", zap.Int64("product_id", id))
		return fmt.Sprintf("product %d", id)
	}
	return product.Name
}

// SalesTotalByDate sums the sales recorded on date.
func (s *Service) SalesTotalByDate(ctx context.Context, date time.Time) decimal.Decimal {
	total, _ := s.SalesTotalByRange(ctx, date, date)
	return total
}

// SalesTotalByRange sums the sales recorded between start and end inclusive.
func (s *Service) SalesTotalByRange(_ context.Context, start, end time.Time) (decimal.Decimal, error) {
	sales, err := s.salesBetween(start, end)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.TotalPrice)
	}
	return total, nil
}

// SalesByProduct groups the sales in range by product, highest revenue first.
func (s *Service) SalesByProduct(_ context.Context, start, end time.Time) ([]ProductSales, error) {
	sales, err := s.salesBetween(start, end)
	if err != nil {
		return nil, err
	}
	uow := s.store.NewUnitOfWork()
	byProduct := make(map[int64]*ProductSales)
	for _, sale := range sales {
		line, ok := byProduct[sale.ProductID]
		if !ok {
			line = &ProductSales{ProductID: sale.ProductID, ProductName: s.productName(uow, sale.ProductID)}
			byProduct[sale.ProductID] = line
		}
		line.Units += sale.Quantity
		line.Total = line.Total.Add(sale.TotalPrice)
	}
	out := make([]ProductSales, 0, len(byProduct))
	for _, line := range byProduct {
		out = append(out, *line)
	}
	slices.SortFunc(out, func(a, b ProductSales) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})
	return out, nil
}

// SalesByPaymentMethod groups the sales in range by tender, ordered by method.
func (s *Service) SalesByPaymentMethod(_ context.Context, start, end time.Time) ([]PaymentTotal, error) {
	sales, err := s.salesBetween(start, end)
	if err != nil {
		return nil, err
	}
	byMethod := make(map[domain.PaymentMethod]*PaymentTotal)
	for _, sale := range sales {
		line, ok := byMethod[sale.PaymentMethod]
		if !ok {
			line = &PaymentTotal{Method: sale.PaymentMethod}
			byMethod[sale.PaymentMethod] = line
		}
		line.Sales++
		line.Total = line.Total.Add(sale.TotalPrice)
	}
	out := make([]PaymentTotal, 0, len(byMethod))
	for _, line := range byMethod {
		out = append(out, *line)
	}
	slices.SortFunc(out, func(a, b PaymentTotal) int { return cmp.Compare(a.Method, b.Method) })
	return out, nil
}

// UnitsSoldByProduct returns the lifetime units sold of a product.
func (s *Service) UnitsSoldByProduct(_ context.Context, productID int64) (int, error) {
	uow := s.store.NewUnitOfWork()
	if _, err := uow.Products().GetByID(productID); err != nil {
		return 0, err
	}
	units := 0
	for _, sale := range uow.Sales().GetByProduct(productID) {
		units += sale.Quantity
	}
	return units, nil
}

// TotalProductionByDate sums the actual output of the non-cancelled runs on date.
func (s *Service) TotalProductionByDate(_ context.Context, date time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, run := range completedRuns(s.store.NewUnitOfWork().Productions().GetByDate(date)) {
		total = total.Add(run.ActualQuantity)
	}
	return total
}

// UnitsProducedByProduct sums a product's actual output between start and end.
func (s *Service) UnitsProducedByProduct(_ context.Context, productID int64, start, end time.Time) (decimal.Decimal, error) {
	from, to, err := dayRange(start, end)
	if err != nil {
		return decimal.Zero, err
	}
	uow := s.store.NewUnitOfWork()
	if _, err := uow.Products().GetByID(productID); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, run := range completedRuns(uow.Productions().GetByDateRange(from, to)) {
		if run.ProductID == productID {
			total = total.Add(run.ActualQuantity)
		}
	}
	return total, nil
}

// WasteReport totals produced and wasted units per product in range, ordered by product id.
func (s *Service) WasteReport(_ context.Context, start, end time.Time) ([]WasteLine, error) {
	from, to, err := dayRange(start, end)
	if err != nil {
		return nil, err
	}
	uow := s.store.NewUnitOfWork()
	byProduct := make(map[int64]*WasteLine)
	var order []int64
	for _, run := range completedRuns(uow.Productions().GetByDateRange(from, to)) {
		line, ok := byProduct[run.ProductID]
		if !ok {
			line = &WasteLine{ProductID: run.ProductID, ProductName: s.productName(uow, run.ProductID)}
			byProduct[run.ProductID] = line
			order = append(order, run.ProductID)
		}
		line.Produced = line.Produced.Add(run.ActualQuantity)
		line.Waste = line.Waste.Add(run.WasteQuantity)
	}
	slices.Sort(order)
	out := make([]WasteLine, 0, len(order))
	for _, id := range order {
		line := byProduct[id]
		if line.Produced.IsPositive() {
			line.WastePercentage = line.Waste.Div(line.Produced).Mul(decimal.NewFromInt(100)).Round(2)
		}
		out = append(out, *line)
	}
	return out, nil
}

// ProductionCostReport prices the ingredients actually consumed by each product's
// runs in range, ordered by product id.
func (s *Service) ProductionCostReport(_ context.Context, start, end time.Time) ([]CostLine, error) {
	from, to, err := dayRange(start, end)
	if err != nil {
		return nil, err
	}
	uow := s.store.NewUnitOfWork()
	prices := make(map[int64]decimal.Decimal)
	for _, ingredient := range uow.Ingredients().GetAll() {
		prices[ingredient.ID] = ingredient.UnitPrice
	}
	byProduct := make(map[int64]*CostLine)
	var order []int64
	for _, run := range completedRuns(uow.Productions().GetByDateRange(from, to)) {
		line, ok := byProduct[run.ProductID]
		if !ok {
			line = &CostLine{ProductID: run.ProductID, ProductName: s.productName(uow, run.ProductID)}
			byProduct[run.ProductID] = line
			order = append(order, run.ProductID)
		}
		line.Runs++
		line.Units = line.Units.Add(run.ActualQuantity)
		for _, detail := range uow.Productions().Details(run.ID) {
			line.IngredientCost = line.IngredientCost.Add(detail.ActualQuantity.Mul(prices[detail.IngredientID]))
		}
	}
	slices.Sort(order)
	out := make([]CostLine, 0, len(order))
	for _, id := range order {
		line := byProduct[id]
		if line.Units.IsPositive() {
			line.CostPerUnit = line.IngredientCost.Div(line.Units).Round(4)
		}
		out = append(out, *line)
	}
	return out, nil
}

// DailySummary collects the production, sales and stock figures for date.
func (s *Service) DailySummary(ctx context.Context, date time.Time) (DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return DailySummary{}, err
	}
	uow := s.store.NewUnitOfWork()
	runs := completedRuns(uow.Productions().GetByDate(date))
	summary := DailySummary{
		Date:           domain.DateOnly(date),
		Runs:           len(runs),
		Efficiency:     core.AggregateEfficiency(runs),
		LowStockCount:  len(uow.Ingredients().GetLowStock()),
		InventoryValue: uow.Ingredients().GetTotalInventoryValue(),
	}
	for _, run := range runs {
		summary.Planned = summary.Planned.Add(run.PlannedQuantity)
		summary.Produced = summary.Produced.Add(run.ActualQuantity)
		summary.Waste = summary.Waste.Add(run.WasteQuantity)
	}
	sales, err := s.salesBetween(date, date)
	if err != nil {
		return DailySummary{}, fmt.Errorf("load sales for %s: %w", summary.Date.Format(dateLayout), err)
	}
	for _, sale := range sales {
		summary.SalesTotal = summary.SalesTotal.Add(sale.TotalPrice)
		summary.UnitsSold += sale.Quantity
	}
	s.logger.Debug("daily summary computed",
		zap.String("date", summary.Date.Format(dateLayout)),
		zap.Int("runs", summary.Runs),
		zap.Int("low_stock", summary.LowStockCount))
	return summary, nil
}
