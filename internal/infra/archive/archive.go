// Package archive keeps one immutable-by-date copy of each daily production
// summary outside the transactional store.
package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bakerycore/internal/reporting"
	"bakerycore/pkg/domain"
)

// DayLayout formats the archive key of a summary.
const DayLayout = "2006-01-02"

// Archive stores daily summaries keyed by calendar day. Saving a day that is
// already archived replaces it.
type Archive interface {
	Save(ctx context.Context, summary reporting.DailySummary) error
	Get(ctx context.Context, day time.Time) (reporting.DailySummary, error)
	List(ctx context.Context, from, to time.Time) ([]reporting.DailySummary, error)
	Close(ctx context.Context) error
}

// Document is the stored form of a summary. Money and quantities travel as
// Decimal128 so no precision is lost.
type Document struct {
	Day            string               `bson:"_id"`
	Date           time.Time            `bson:"date"`
	Runs           int                  `bson:"runs"`
	Planned        primitive.Decimal128 `bson:"planned"`
	Produced       primitive.Decimal128 `bson:"produced"`
	Waste          primitive.Decimal128 `bson:"waste"`
	Efficiency     primitive.Decimal128 `bson:"efficiency"`
	SalesTotal     primitive.Decimal128 `bson:"sales_total"`
	UnitsSold      int                  `bson:"units_sold"`
	LowStockCount  int                  `bson:"low_stock_count"`
	InventoryValue primitive.Decimal128 `bson:"inventory_value"`
	ArchivedAt     time.Time            `bson:"archived_at"`
}

// DayKey normalises t to its UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// NewDocument converts a summary for storage.
func NewDocument(s reporting.DailySummary, archivedAt time.Time) (Document, error) {
	doc := Document{
		Day:           DayKey(s.Date),
		Date:          s.Date.UTC(),
		Runs:          s.Runs,
		UnitsSold:     s.UnitsSold,
		LowStockCount: s.LowStockCount,
		ArchivedAt:    archivedAt.UTC(),
	}
	fields := []struct {
		dst *primitive.Decimal128
		src decimal.Decimal
	}{
		{&doc.Planned, s.Planned},
		{&doc.Produced, s.Produced},
		{&doc.Waste, s.Waste},
		{&doc.Efficiency, s.Efficiency},
		{&doc.SalesTotal, s.SalesTotal},
		{&doc.InventoryValue, s.InventoryValue},
	}
	for _, f := range fields {
		v, err := primitive.ParseDecimal128(f.src.String())
		if err != nil {
			return Document{}, fmt.Errorf("encode %s: %w", f.src, err)
		}
		*f.dst = v
	}
	return doc, nil
}

// Summary converts a stored document back.
func (d Document) Summary() (reporting.DailySummary, error) {
	out := reporting.DailySummary{
		Date:          d.Date.UTC(),
		Runs:          d.Runs,
		UnitsSold:     d.UnitsSold,
		LowStockCount: d.LowStockCount,
	}
	fields := []struct {
		dst *decimal.Decimal
		src primitive.Decimal128
	}{
		{&out.Planned, d.Planned},
		{&out.Produced, d.Produced},
		{&out.Waste, d.Waste},
		{&out.Efficiency, d.Efficiency},
		{&out.SalesTotal, d.SalesTotal},
		{&out.InventoryValue, d.InventoryValue},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.src.String())
		if err != nil {
			return reporting.DailySummary{}, fmt.Errorf("decode archived %s for %s: %w", f.src, d.Day, err)
		}
		*f.dst = v
	}
	return out, nil
}

// NotFound reports a day with no archived summary.
func NotFound(day time.Time) error {
	return fmt.Errorf("archived summary for %s: %w", DayKey(day), domain.ErrNotFound)
}

// Memory is an in-process Archive used by tests and the memory storage driver.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
	now  func() time.Time
}

// NewMemory returns an empty archive.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document), now: time.Now}
}

// Save stores or replaces the summary for its day.
func (m *Memory) Save(ctx context.Context, summary reporting.DailySummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := NewDocument(summary, m.now())
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[doc.Day] = doc
	m.mu.Unlock()
	return nil
}

// Get returns the summary archived for day.
func (m *Memory) Get(ctx context.Context, day time.Time) (reporting.DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return reporting.DailySummary{}, err
	}
	m.mu.RLock()
	doc, ok := m.docs[DayKey(day)]
	m.mu.RUnlock()
	if !ok {
		return reporting.DailySummary{}, NotFound(day)
	}
	return doc.Summary()
}

// List returns the summaries between from and to inclusive, oldest first.
func (m *Memory) List(ctx context.Context, from, to time.Time) ([]reporting.DailySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := DayKey(from), DayKey(to)
	m.mu.RLock()
	docs := make([]Document, 0, len(m.docs))
	for key, doc := range m.docs {
		if key >= lo && key <= hi {
			docs = append(docs, doc)
		}
	}
	m.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].Day < docs[j].Day })
	out := make([]reporting.DailySummary, 0, len(docs))
	for _, doc := range docs {
		s, err := doc.Summary()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error { return nil }
