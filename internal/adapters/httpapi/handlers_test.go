package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bakerycore/internal/adapters/reports"
	"bakerycore/internal/blob"
	"bakerycore/internal/core"
	"bakerycore/internal/reporting"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var today = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type api struct {
	t      *testing.T
	engine *gin.Engine
	svc    *core.Service
}

func newAPI(t *testing.T) api {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(),
		core.WithMetrics(metrics), core.WithClock(func() time.Time { return today }))
	rep := reporting.NewService(svc.Store(), nil)
	worker := reports.NewWorker(rep, svc.Ledger(), blob.NewMemory())
	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = worker.Stop(ctx)
	})
	engine := New(Deps{Service: svc, Reports: rep, Exports: worker, Metrics: reg})
	return api{t: t, engine: engine, svc: svc}
}

func (a api) do(method, path, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

// seed creates flour (10 in stock, min 5, 0.50), a bread product and a recipe
// using 2 flour per batch of 4.
func (a api) seed() {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/ingredients",
		`{"name":"Flour","unit":"kilogram","current_stock":"10","minimum_stock":"5","unit_price":"0.50"}`)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/products", `{"name":"Bread","sale_price":"1.00","is_active":true}`)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/recipes",
		`{"name":"Bread","product_id":1,"yield":4,"lines":[{"ingredient_id":1,"quantity":"2"}]}`)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIngredientEndpoints(t *testing.T) {
	a := newAPI(t)
	a.seed()

	rec := a.do(http.MethodPost, "/ingredients/1/adjust", `{"delta":"-12"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, errorOf(t, rec), "insufficient stock")

	rec = a.do(http.MethodPost, "/ingredients/1/adjust", `{"delta":"-6"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[core.Ingredient](t, rec).CurrentStock.Equal(dec("4")))

	rec = a.do(http.MethodGet, "/ingredients/low-stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[[]core.Ingredient](t, rec)
	require.Len(t, low, 1)
	assert.Equal(t, "Flour", low[0].Name)

	rec = a.do(http.MethodGet, "/ingredients/alerts", "")
	alerts := decode[[]core.StockAlert](t, rec)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Percentage.Equal(dec("80")))

	rec = a.do(http.MethodPost, "/ingredients/1/restock", `{"quantity":"20","unit_price":"0.60"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	restocked := decode[core.Ingredient](t, rec)
	assert.True(t, restocked.CurrentStock.Equal(dec("24")))
	assert.True(t, restocked.UnitPrice.Equal(dec("0.60")))

	rec = a.do(http.MethodGet, "/ingredients", "")
	assert.Len(t, decode[[]core.Ingredient](t, rec), 1)
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)
	a.seed()

	cases := []struct {
		name, method, path, body string
		status                   int
	}{
		{"unknown ingredient", http.MethodGet, "/ingredients/99", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/ingredients/abc", "", http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/ingredients", `{"name":`, http.StatusBadRequest},
		{"missing delta", http.MethodPost, "/ingredients/1/adjust", `{}`, http.StatusBadRequest},
		{"duplicate name", http.MethodPost, "/ingredients", `{"name":"flour","unit":"kilogram"}`, http.StatusConflict},
		{"bad days", http.MethodGet, "/ingredients/expiring?days=soon", "", http.StatusBadRequest},
		{"negative days", http.MethodGet, "/ingredients/expiring?days=-1", "", http.StatusBadRequest},
		{"unknown recipe cost", http.MethodGet, "/recipes/42/cost", "", http.StatusNotFound},
		{"bad quantity", http.MethodGet, "/recipes/1/feasibility?quantity=lots", "", http.StatusBadRequest},
		{"zero quantity", http.MethodGet, "/recipes/1/feasibility?quantity=0", "", http.StatusBadRequest},
		{"bad flag", http.MethodPost, "/productions/register?update_inventory=maybe", `{}`, http.StatusBadRequest},
		{"missing date", http.MethodGet, "/productions/efficiency", "", http.StatusBadRequest},
		{"reversed range", http.MethodGet, "/reports/waste?start=2024-03-15&end=2024-03-01", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, errorOf(t, rec))
		})
	}
}

func TestRecipeCostAndFeasibility(t *testing.T) {
	a := newAPI(t)
	a.seed()

	rec := a.do(http.MethodGet, "/recipes/1/cost", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cost := decode[CostResponse](t, rec)
	assert.True(t, cost.BatchCost.Equal(dec("1")))
	assert.True(t, cost.CostPerUnit.Equal(dec("0.25")))

	rec = a.do(http.MethodGet, "/recipes/1/feasibility?quantity=6", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	feasible := decode[FeasibilityResponse](t, rec)
	assert.False(t, feasible.CanProduce)
	require.Len(t, feasible.Missing, 1)
	assert.True(t, feasible.Missing[0].Missing.Equal(dec("2")))

	rec = a.do(http.MethodGet, "/recipes/1/feasibility?quantity=5", "")
	feasible = decode[FeasibilityResponse](t, rec)
	assert.True(t, feasible.CanProduce)
	assert.NotNil(t, feasible.Missing)

	rec = a.do(http.MethodPost, "/products/1/costing", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[core.Product](t, rec).ProfitMargin.Equal(dec("75")))
}

func TestProductionEndpoints(t *testing.T) {
	a := newAPI(t)
	a.seed()

	body := `{"production_date":"2024-03-15T00:00:00Z","product_id":1,"planned_quantity":"100","actual_quantity":"90",
		"details":[{"ingredient_id":1,"planned_quantity":"4","actual_quantity":"5"}]}`
	rec := a.do(http.MethodPost, "/productions/register", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[core.ProductionRun](t, rec)
	assert.Equal(t, core.ProductionCompleted, run.Status)
	require.Len(t, run.Details, 1)
	assert.True(t, run.Details[0].Variance.Equal(dec("1")))

	stock, err := a.svc.GetIngredient(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, stock.CurrentStock.Equal(dec("5")))

	rec = a.do(http.MethodGet, "/productions/efficiency?date=2024-03-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	eff := decode[EfficiencyResponse](t, rec)
	assert.Equal(t, "2024-03-15", eff.Date)
	assert.True(t, eff.Efficiency.Equal(dec("90")))

	rec = a.do(http.MethodPost, "/productions/1/start", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodPost, "/productions/plan", `{"product_id":1,"date":"2024-03-16","planned_units":"8"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	planned := decode[core.ProductionRun](t, rec)
	assert.Equal(t, core.ProductionPlanned, planned.Status)

	rec = a.do(http.MethodPost, "/productions/"+strconv.FormatInt(planned.ID, 10)+"/cancel", `{"reason":"oven down"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "oven down", decode[core.DailyProduction](t, rec).Notes)

	rec = a.do(http.MethodGet, "/productions/"+strconv.FormatInt(planned.ID, 10), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.ProductionCancelled, decode[core.ProductionRun](t, rec).Status)

	rec = a.do(http.MethodPost, "/productions/register", strings.Replace(body, `"product_id":1`, `"product_id":9`, 1))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSalesAndReports(t *testing.T) {
	a := newAPI(t)
	a.seed()

	rec := a.do(http.MethodPost, "/sales",
		`{"product_id":1,"quantity":3,"unit_price":"1.00","sale_date":"2024-03-15T10:00:00Z","payment_method":"cash"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/reports/sales?start=2024-03-15", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	byProduct := decode[[]reporting.ProductSales](t, rec)
	require.Len(t, byProduct, 1)
	assert.Equal(t, 3, byProduct[0].Units)

	rec = a.do(http.MethodGet, "/reports/sales?start=2024-03-01&end=2024-03-31&group=payment", "")
	byMethod := decode[[]reporting.PaymentTotal](t, rec)
	require.Len(t, byMethod, 1)
	assert.True(t, byMethod[0].Total.Equal(dec("3")))

	rec = a.do(http.MethodGet, "/reports/daily?date=2024-03-15", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[reporting.DailySummary](t, rec)
	assert.Equal(t, 3, summary.UnitsSold)

	rec = a.do(http.MethodGet, "/reports/production-cost?start=2024-03-15", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodDelete, "/products/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, "/products?active=true", "")
	assert.Empty(t, decode[[]core.Product](t, rec))
}

func TestExportEndpoints(t *testing.T) {
	a := newAPI(t)
	a.seed()

	rec := a.do(http.MethodPost, "/reports/exports", `{"kind":"stock_alerts","start":"2024-03-15","formats":["csv"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	queued := decode[reports.Record](t, rec)
	assert.Equal(t, reports.StatusQueued, queued.Status)

	require.Eventually(t, func() bool {
		rec := a.do(http.MethodGet, "/reports/exports/"+queued.ID, "")
		return rec.Code == http.StatusOK && decode[reports.Record](t, rec).Status == reports.StatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	rec = a.do(http.MethodPost, "/reports/exports", `{"kind":"payroll","start":"2024-03-15"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/reports/exports/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fullQueue struct{}

func (fullQueue) EnqueueExport(context.Context, reports.Input) (reports.Record, error) {
	return reports.Record{}, reports.ErrQueueFull
}

func (fullQueue) GetExport(string) (reports.Record, bool) { return reports.Record{}, false }

func TestExportQueueFullAndDisabled(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	full := api{t: t, engine: New(Deps{Service: svc, Exports: fullQueue{}})}
	rec := full.do(http.MethodPost, "/reports/exports", `{"kind":"waste","start":"2024-03-15"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	disabled := api{t: t, engine: New(Deps{Service: svc})}
	rec = disabled.do(http.MethodGet, "/reports/exports/x", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = disabled.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	a.seed()
	rec := a.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bakery_core_operations_total{operation="create_ingredient",status="success"} 1`)
}
