// Package reports renders reporting queries to CSV and JSON artifacts in blob
// storage on a background worker.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bakerycore/internal/blob"
	"bakerycore/internal/core"
	"bakerycore/internal/reporting"
	"bakerycore/pkg/domain"
)

// Kind names a report that can be exported.
type Kind string

const (
	KindSalesByProduct Kind = "sales_by_product"
	KindSalesByPayment Kind = "sales_by_payment"
	KindWaste          Kind = "waste"
	KindProductionCost Kind = "production_cost"
	KindStockAlerts    Kind = "stock_alerts"
	KindDailySummary   Kind = "daily_summary"
)

// Kinds lists the exportable reports.
func Kinds() []Kind {
	return []Kind{KindSalesByProduct, KindSalesByPayment, KindWaste, KindProductionCost, KindStockAlerts, KindDailySummary}
}

func (k Kind) valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Format is an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Status is the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrQueueFull is returned when the worker cannot accept more exports.
var ErrQueueFull = errors.New("report export queue full")

// Artifact is one stored rendering of a report.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) clone() Record {
	r.Formats = append([]Format(nil), r.Formats...)
	r.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		r.CompletedAt = &at
	}
	return r
}

// Input is an export request. Start and End bound ranged reports; single-day
// reports use Start.
type Input struct {
	Kind        Kind      `json:"kind"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Formats     []Format  `json:"formats"`
	RequestedBy string    `json:"requested_by"`
}

// Source answers the reporting queries the worker renders.
type Source interface {
	SalesByProduct(ctx context.Context, start, end time.Time) ([]reporting.ProductSales, error)
	SalesByPaymentMethod(ctx context.Context, start, end time.Time) ([]reporting.PaymentTotal, error)
	WasteReport(ctx context.Context, start, end time.Time) ([]reporting.WasteLine, error)
	ProductionCostReport(ctx context.Context, start, end time.Time) ([]reporting.CostLine, error)
	DailySummary(ctx context.Context, date time.Time) (reporting.DailySummary, error)
}

// AlertSource produces the ingredient stock alert report.
type AlertSource interface {
	GetStockAlertReport(ctx context.Context) []core.StockAlert
}

// Scheduler queues exports and reports their status.
type Scheduler interface {
	EnqueueExport(ctx context.Context, input Input) (Record, error)
	GetExport(id string) (Record, bool)
}

// Option customises a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithQueueSize bounds the number of pending exports. Default 32.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan string, n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// Worker renders exports asynchronously.
type Worker struct {
	source Source
	alerts AlertSource
	store  blob.Store
	logger *zap.Logger
	now    func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Scheduler = (*Worker)(nil)

// NewWorker constructs a worker. Call Start to begin processing.
func NewWorker(source Source, alerts AlertSource, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source: source,
		alerts: alerts,
		store:  store,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan string, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the worker and waits for the running export to return.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// EnqueueExport validates input and queues it.
func (w *Worker) EnqueueExport(_ context.Context, input Input) (Record, error) {
	if !input.Kind.valid() {
		return Record{}, domain.InvalidArgumentError{Field: "kind", Reason: fmt.Sprintf("unknown report %q", input.Kind)}
	}
	if input.End.IsZero() {
		input.End = input.Start
	}
	if input.Start.IsZero() {
		return Record{}, domain.InvalidArgumentError{Field: "start", Reason: "required"}
	}
	if domain.DateOnly(input.Start).After(domain.DateOnly(input.End)) {
		return Record{}, domain.InvalidArgumentError{Field: "range", Reason: "start is after end"}
	}
	formats, err := uniqueFormats(input.Formats)
	if err != nil {
		return Record{}, err
	}

	now := w.now()
	record := Record{
		ID:          uuid.NewString(),
		Kind:        input.Kind,
		Start:       domain.DateOnly(input.Start),
		End:         domain.DateOnly(input.End),
		Formats:     formats,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.clone()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("report export queued", zap.String("export_id", record.ID), zap.String("kind", string(record.Kind)))
	return queued, nil
}

func uniqueFormats(in []Format) ([]Format, error) {
	if len(in) == 0 {
		return []Format{FormatJSON, FormatCSV}, nil
	}
	out := make([]Format, 0, len(in))
	seen := make(map[Format]struct{}, len(in))
	for _, f := range in {
		if f != FormatJSON && f != FormatCSV {
			return nil, domain.InvalidArgumentError{Field: "formats", Reason: fmt.Sprintf("unsupported format %q", f)}
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// GetExport returns a snapshot of an export.
func (w *Worker) GetExport(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.clone(), true
}

func (w *Worker) process(id string) {
	w.mu.Lock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	record.Status = StatusRunning
	record.UpdatedAt = w.now()
	job := record.clone()
	w.mu.Unlock()

	tbl, err := w.build(w.ctx, job)
	if err != nil {
		w.finish(id, nil, fmt.Errorf("build %s: %w", job.Kind, err))
		return
	}
	artifacts := make([]Artifact, 0, len(job.Formats))
	for _, format := range job.Formats {
		artifact, err := w.persist(job, tbl, format)
		if err != nil {
			w.finish(id, nil, err)
			return
		}
		artifacts = append(artifacts, artifact)
	}
	w.finish(id, artifacts, nil)
}

func (w *Worker) persist(job Record, tbl table, format Format) (Artifact, error) {
	payload, err := tbl.render(job, format)
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", format, err)
	}
	key := fmt.Sprintf("reports/%s/%s.%s", job.ID, job.Kind, format)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: format.contentType(),
		Metadata:    map[string]string{"kind": string(job.Kind), "rows": strconv.Itoa(len(tbl.rows))},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s: %w", key, err)
	}
	artifact := Artifact{
		Key:         key,
		Format:      format,
		ContentType: format.contentType(),
		SizeBytes:   info.Size,
		Rows:        len(tbl.rows),
		URL:         info.URL,
		CreatedAt:   w.now(),
	}
	if url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{}); err == nil {
		artifact.URL = url
	} else if !errors.Is(err, blob.ErrUnsupported) {
		w.logger.Warn("presign report artifact", zap.String("key", key), zap.Error(err))
	}
	return artifact, nil
}

func (w *Worker) finish(id string, artifacts []Artifact, err error) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.UpdatedAt = now
		record.CompletedAt = &now
		if err != nil {
			record.Status = StatusFailed
			record.Error = err.Error()
		} else {
			record.Status = StatusSucceeded
			record.Artifacts = artifacts
		}
	}
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("report export failed", zap.String("export_id", id), zap.Error(err))
		return
	}
	w.logger.Info("report export completed", zap.String("export_id", id), zap.Int("artifacts", len(artifacts)))
}

// table is a report flattened for CSV next to its typed rows for JSON.
type table struct {
	columns []string
	rows    [][]string
	data    any
}

func (t table) render(job Record, format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(struct {
			Kind  Kind      `json:"kind"`
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
			Rows  any       `json:"rows"`
		}{job.Kind, job.Start, job.End, t.data})
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.columns); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(t.rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Worker) build(ctx context.Context, job Record) (table, error) {
	switch job.Kind {
	case KindSalesByProduct:
		lines, err := w.source.SalesByProduct(ctx, job.Start, job.End)
		if err != nil {
			return table{}, err
		}
		t := table{columns: []string{"product_id", "product", "units", "total"}, data: lines}
		for _, l := range lines {
			t.rows = append(t.rows, []string{itoa(l.ProductID), l.ProductName, strconv.Itoa(l.Units), l.Total.StringFixed(2)})
		}
		return t, nil
	case KindSalesByPayment:
		lines, err := w.source.SalesByPaymentMethod(ctx, job.Start, job.End)
		if err != nil {
			return table{}, err
		}
		t := table{columns: []string{"payment_method", "sales", "total"}, data: lines}
		for _, l := range lines {
			t.rows = append(t.rows, []string{string(l.Method), strconv.Itoa(l.Sales), l.Total.StringFixed(2)})
		}
		return t, nil
	case KindWaste:
		lines, err := w.source.WasteReport(ctx, job.Start, job.End)
		if err != nil {
			return table{}, err
		}
		t := table{columns: []string{"product_id", "product", "produced", "waste", "waste_percentage"}, data: lines}
		for _, l := range lines {
			t.rows = append(t.rows, []string{itoa(l.ProductID), l.ProductName, l.Produced.String(), l.Waste.String(), l.WastePercentage.StringFixed(2)})
		}
		return t, nil
	case KindProductionCost:
		lines, err := w.source.ProductionCostReport(ctx, job.Start, job.End)
		if err != nil {
			return table{}, err
		}
		t := table{columns: []string{"product_id", "product", "runs", "units", "ingredient_cost", "cost_per_unit"}, data: lines}
		for _, l := range lines {
			t.rows = append(t.rows, []string{itoa(l.ProductID), l.ProductName, strconv.Itoa(l.Runs), l.Units.String(), l.IngredientCost.StringFixed(2), l.CostPerUnit.StringFixed(4)})
		}
		return t, nil
	case KindStockAlerts:
		alerts := w.alerts.GetStockAlertReport(ctx)
		t := table{columns: []string{"ingredient_id", "ingredient", "current_stock", "minimum_stock", "percentage"}, data: alerts}
		for _, a := range alerts {
			t.rows = append(t.rows, []string{itoa(a.IngredientID), a.Name, a.CurrentStock.String(), a.MinimumStock.String(), a.Percentage.StringFixed(2)})
		}
		return t, nil
	case KindDailySummary:
		s, err := w.source.DailySummary(ctx, job.Start)
		if err != nil {
			return table{}, err
		}
		return table{
			columns: []string{"date", "runs", "planned", "produced", "waste", "efficiency", "sales_total", "units_sold", "low_stock", "inventory_value"},
			rows: [][]string{{
				s.Date.Format(time.DateOnly), strconv.Itoa(s.Runs), s.Planned.String(), s.Produced.String(), s.Waste.String(),
				s.Efficiency.StringFixed(2), s.SalesTotal.StringFixed(2), strconv.Itoa(s.UnitsSold), strconv.Itoa(s.LowStockCount), s.InventoryValue.StringFixed(2),
			}},
			data: []reporting.DailySummary{s},
		}, nil
	}
	return table{}, fmt.Errorf("unknown report %q", job.Kind)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
