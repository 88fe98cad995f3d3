// Package client is a typed HTTP client for the bakery API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"bakerycore/internal/adapters/httpapi"
	"bakerycore/internal/adapters/reports"
	"bakerycore/internal/core"
	"bakerycore/internal/reporting"
	"bakerycore/pkg/domain"
)

const dayLayout = "2006-01-02"

// APIError is a non-2xx response. It matches the domain error kinds through
// errors.Is so callers can branch the same way they would in process.
type APIError struct {
	Status  int
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bakery api: status %d: %s", e.Status, e.Message)
}

// Is maps the HTTP status back onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == domain.ErrNotFound
	case http.StatusBadRequest:
		return target == domain.ErrInvalidArgument
	case http.StatusConflict:
		return target == domain.ErrConflict
	case http.StatusServiceUnavailable:
		return target == reports.ErrQueueFull
	case http.StatusUnprocessableEntity:
		if strings.Contains(e.Message, "insufficient stock") {
			return target == domain.ErrInsufficientStock
		}
		return target == domain.ErrInvalidState
	}
	return false
}

// Client talks to a bakery server.
type Client struct {
	http *resty.Client
}

// New builds a client for baseURL.
func New(baseURL string) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	return &Client{http: r}
}

func call[T any](ctx context.Context, c *Client, method, path string, body any, query map[string]string) (T, error) {
	var out T
	apiErr := new(APIError)
	req := c.http.R().SetContext(ctx).SetResult(&out).SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		return out, apiErr
	}
	return out, nil
}

func idPath(prefix string, id int64, suffix string) string {
	return prefix + "/" + strconv.FormatInt(id, 10) + suffix
}

// Health checks the server liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := call[map[string]string](ctx, c, http.MethodGet, "/healthz", nil, nil)
	return err
}

// CreateIngredient records a new ingredient.
func (c *Client) CreateIngredient(ctx context.Context, in domain.Ingredient) (domain.Ingredient, error) {
	return call[domain.Ingredient](ctx, c, http.MethodPost, "/ingredients", in, nil)
}

// ListIngredients returns every ingredient.
func (c *Client) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	return call[[]domain.Ingredient](ctx, c, http.MethodGet, "/ingredients", nil, nil)
}

// LowStock lists ingredients at or below their minimum.
func (c *Client) LowStock(ctx context.Context) ([]domain.Ingredient, error) {
	return call[[]domain.Ingredient](ctx, c, http.MethodGet, "/ingredients/low-stock", nil, nil)
}

// AdjustStock applies a signed delta to an ingredient's stock.
func (c *Client) AdjustStock(ctx context.Context, id int64, delta decimal.Decimal) (domain.Ingredient, error) {
	return call[domain.Ingredient](ctx, c, http.MethodPost, idPath("/ingredients", id, "/adjust"),
		httpapi.AdjustRequest{Delta: &delta}, nil)
}

// Restock receives stock, repricing the ingredient when unitPrice is set.
func (c *Client) Restock(ctx context.Context, id int64, quantity decimal.Decimal, unitPrice *decimal.Decimal) (domain.Ingredient, error) {
	return call[domain.Ingredient](ctx, c, http.MethodPost, idPath("/ingredients", id, "/restock"),
		httpapi.RestockRequest{Quantity: quantity, UnitPrice: unitPrice}, nil)
}

// CreateProduct records a new product.
func (c *Client) CreateProduct(ctx context.Context, in domain.Product) (domain.Product, error) {
	return call[domain.Product](ctx, c, http.MethodPost, "/products", in, nil)
}

// CreateRecipe records a recipe with its lines.
func (c *Client) CreateRecipe(ctx context.Context, recipe domain.Recipe, lines []domain.RecipeLine) (core.RecipeWithLines, error) {
	return call[core.RecipeWithLines](ctx, c, http.MethodPost, "/recipes",
		core.RecipeWithLines{Recipe: recipe, Lines: lines}, nil)
}

// RecipeCost returns the batch and per-unit cost of a recipe.
func (c *Client) RecipeCost(ctx context.Context, id int64) (httpapi.CostResponse, error) {
	return call[httpapi.CostResponse](ctx, c, http.MethodGet, idPath("/recipes", id, "/cost"), nil, nil)
}

// Feasibility reports whether stock covers quantity batches of a recipe.
func (c *Client) Feasibility(ctx context.Context, id int64, quantity decimal.Decimal) (httpapi.FeasibilityResponse, error) {
	return call[httpapi.FeasibilityResponse](ctx, c, http.MethodGet, idPath("/recipes", id, "/feasibility"), nil,
		map[string]string{"quantity": quantity.String()})
}

// RegisterProduction completes a production run.
func (c *Client) RegisterProduction(ctx context.Context, run domain.ProductionRun, updateInventory bool) (domain.ProductionRun, error) {
	return call[domain.ProductionRun](ctx, c, http.MethodPost, "/productions/register", run,
		map[string]string{"update_inventory": strconv.FormatBool(updateInventory)})
}

// Efficiency returns the aggregate efficiency of the runs on date.
func (c *Client) Efficiency(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	out, err := call[httpapi.EfficiencyResponse](ctx, c, http.MethodGet, "/productions/efficiency", nil,
		map[string]string{"date": date.Format(dayLayout)})
	return out.Efficiency, err
}

// DailySummary returns the production and sales summary of date.
func (c *Client) DailySummary(ctx context.Context, date time.Time) (reporting.DailySummary, error) {
	return call[reporting.DailySummary](ctx, c, http.MethodGet, "/reports/daily", nil,
		map[string]string{"date": date.Format(dayLayout)})
}

// RequestExport queues a report export.
func (c *Client) RequestExport(ctx context.Context, req httpapi.ExportRequest) (reports.Record, error) {
	return call[reports.Record](ctx, c, http.MethodPost, "/reports/exports", req, nil)
}

// GetExport fetches the status of an export.
func (c *Client) GetExport(ctx context.Context, id string) (reports.Record, error) {
	return call[reports.Record](ctx, c, http.MethodGet, "/reports/exports/"+id, nil, nil)
}
