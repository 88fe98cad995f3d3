package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bakerycore/internal/blob"
	"bakerycore/internal/core"
	infraS3 "bakerycore/internal/infra/blob/s3"
	"bakerycore/internal/reporting"
	"bakerycore/pkg/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var day = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

type stubSource struct {
	err error
}

func (s stubSource) SalesByProduct(context.Context, time.Time, time.Time) ([]reporting.ProductSales, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []reporting.ProductSales{
		{ProductID: 1, ProductName: "Bread", Units: 12, Total: decimal.RequireFromString("24")},
		{ProductID: 2, ProductName: "Roll, seeded", Units: 3, Total: decimal.RequireFromString("1.5")},
	}, nil
}

func (s stubSource) SalesByPaymentMethod(context.Context, time.Time, time.Time) ([]reporting.PaymentTotal, error) {
	return []reporting.PaymentTotal{{Method: domain.PaymentCash, Sales: 2, Total: decimal.RequireFromString("25.5")}}, s.err
}

func (s stubSource) WasteReport(context.Context, time.Time, time.Time) ([]reporting.WasteLine, error) {
	return nil, s.err
}

func (s stubSource) ProductionCostReport(context.Context, time.Time, time.Time) ([]reporting.CostLine, error) {
	return nil, s.err
}

func (s stubSource) DailySummary(_ context.Context, date time.Time) (reporting.DailySummary, error) {
	return reporting.DailySummary{Date: domain.DateOnly(date), Runs: 3, SalesTotal: decimal.RequireFromString("40")}, s.err
}

type stubAlerts []core.StockAlert

func (a stubAlerts) GetStockAlertReport(context.Context) []core.StockAlert { return a }

func startWorker(t *testing.T, source Source, store blob.Store, opts ...Option) *Worker {
	t.Helper()
	w := NewWorker(source, stubAlerts{{IngredientID: 4, Name: "Yeast", CurrentStock: decimal.NewFromInt(1), MinimumStock: decimal.NewFromInt(2), Percentage: decimal.NewFromInt(50)}}, store, opts...)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Stop(ctx))
	})
	return w
}

func waitFor(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	var record Record
	require.Eventually(t, func() bool {
		var ok bool
		record, ok = w.GetExport(id)
		return ok && (record.Status == StatusSucceeded || record.Status == StatusFailed)
	}, 2*time.Second, 5*time.Millisecond)
	return record
}

func readBlob(t *testing.T, store blob.Store, key string) string {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestExportWritesCSVAndJSON(t *testing.T) {
	store := blob.NewMemory()
	w := startWorker(t, stubSource{}, store)

	queued, err := w.EnqueueExport(context.Background(), Input{Kind: KindSalesByProduct, Start: day, End: day.AddDate(0, 0, 6), RequestedBy: "ops"})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, queued.Status)
	assert.Equal(t, []Format{FormatJSON, FormatCSV}, queued.Formats)

	done := waitFor(t, w, queued.ID)
	require.Equal(t, StatusSucceeded, done.Status, done.Error)
	require.Len(t, done.Artifacts, 2)
	require.NotNil(t, done.CompletedAt)

	csvBody := readBlob(t, store, done.Artifacts[1].Key)
	assert.Equal(t, "product_id,product,units,total\n1,Bread,12,24.00\n2,\"Roll, seeded\",3,1.50\n", csvBody)
	assert.Equal(t, 2, done.Artifacts[1].Rows)

	var decoded struct {
		Kind Kind                     `json:"kind"`
		Rows []reporting.ProductSales `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBlob(t, store, done.Artifacts[0].Key)), &decoded))
	assert.Equal(t, KindSalesByProduct, decoded.Kind)
	require.Len(t, decoded.Rows, 2)
	assert.True(t, decoded.Rows[0].Total.Equal(decimal.NewFromInt(24)))
}

func TestExportStockAlertsAndSummaryToS3(t *testing.T) {
	store := infraS3.NewMock()
	w := startWorker(t, stubSource{}, store)

	alerts, err := w.EnqueueExport(context.Background(), Input{Kind: KindStockAlerts, Start: day, Formats: []Format{FormatCSV, FormatCSV}})
	require.NoError(t, err)
	summary, err := w.EnqueueExport(context.Background(), Input{Kind: KindDailySummary, Start: day, Formats: []Format{FormatCSV}})
	require.NoError(t, err)

	done := waitFor(t, w, alerts.ID)
	require.Equal(t, StatusSucceeded, done.Status, done.Error)
	require.Len(t, done.Artifacts, 1)
	assert.Contains(t, done.Artifacts[0].URL, "X-Amz-Signature")
	assert.Contains(t, readBlob(t, store, done.Artifacts[0].Key), "4,Yeast,1,2,50.00")

	done = waitFor(t, w, summary.ID)
	require.Equal(t, StatusSucceeded, done.Status, done.Error)
	assert.True(t, strings.HasPrefix(strings.Split(readBlob(t, store, done.Artifacts[0].Key), "\n")[1], "2024-05-02,3,"))
}

func TestExportFailureIsRecorded(t *testing.T) {
	w := startWorker(t, stubSource{err: errors.New("store offline")}, blob.NewMemory())
	queued, err := w.EnqueueExport(context.Background(), Input{Kind: KindWaste, Start: day})
	require.NoError(t, err)
	done := waitFor(t, w, queued.ID)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.Error, "store offline")
	assert.Empty(t, done.Artifacts)
}

func TestEnqueueValidation(t *testing.T) {
	w := NewWorker(stubSource{}, stubAlerts{}, blob.NewMemory())
	ctx := context.Background()
	for name, input := range map[string]Input{
		"kind":   {Kind: "inventory_forecast", Start: day},
		"start":  {Kind: KindWaste},
		"range":  {Kind: KindWaste, Start: day.AddDate(0, 0, 1), End: day},
		"format": {Kind: KindWaste, Start: day, Formats: []Format{"xlsx"}},
	} {
		_, err := w.EnqueueExport(ctx, input)
		assert.True(t, domain.IsInvalidArgument(err), "%s: %v", name, err)
	}
	_, ok := w.GetExport("missing")
	assert.False(t, ok)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	w := NewWorker(stubSource{}, stubAlerts{}, blob.NewMemory(), WithQueueSize(1))
	ctx := context.Background()
	first, err := w.EnqueueExport(ctx, Input{Kind: KindWaste, Start: day})
	require.NoError(t, err)
	_, err = w.EnqueueExport(ctx, Input{Kind: KindWaste, Start: day})
	assert.ErrorIs(t, err, ErrQueueFull)

	record, ok := w.GetExport(first.ID)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, record.Status)
	require.NoError(t, w.Stop(ctx))
}

func TestRecordSnapshotsAreIsolated(t *testing.T) {
	w := NewWorker(stubSource{}, stubAlerts{}, blob.NewMemory())
	queued, err := w.EnqueueExport(context.Background(), Input{Kind: KindWaste, Start: day, Formats: []Format{FormatCSV}})
	require.NoError(t, err)
	queued.Formats[0] = FormatJSON
	again, _ := w.GetExport(queued.ID)
	assert.Equal(t, FormatCSV, again.Formats[0])
	require.NoError(t, w.Stop(context.Background()))
}
