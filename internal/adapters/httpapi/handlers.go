package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bakerycore/internal/adapters/reports"
	"bakerycore/internal/core"
	"bakerycore/internal/reporting"
	"bakerycore/pkg/domain"
)

type handler struct {
	svc     *core.Service
	reports *reporting.Service
	exports reports.Scheduler
	logger  *zap.Logger
}

// AdjustRequest carries a signed stock delta.
type AdjustRequest struct {
	Delta *decimal.Decimal `json:"delta"`
}

// RestockRequest receives stock, optionally repricing the ingredient.
type RestockRequest struct {
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// PlanRequest schedules a production run.
type PlanRequest struct {
	ProductID    int64           `json:"product_id"`
	Date         string          `json:"date"`
	PlannedUnits decimal.Decimal `json:"planned_units"`
}

// CancelRequest explains a cancellation.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// CostResponse reports the batch and unit cost of a recipe.
type CostResponse struct {
	RecipeID    int64           `json:"recipe_id"`
	BatchCost   decimal.Decimal `json:"batch_cost"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

// FeasibilityResponse reports whether stock covers a number of batches.
type FeasibilityResponse struct {
	RecipeID   int64             `json:"recipe_id"`
	Quantity   decimal.Decimal   `json:"quantity"`
	CanProduce bool              `json:"can_produce"`
	Missing    []domain.Shortage `json:"missing"`
}

// EfficiencyResponse is the aggregate efficiency of one day.
type EfficiencyResponse struct {
	Date       string          `json:"date"`
	Efficiency decimal.Decimal `json:"efficiency"`
}

// ExportRequest queues a report export. Dates are YYYY-MM-DD or RFC 3339.
type ExportRequest struct {
	Kind        reports.Kind     `json:"kind"`
	Start       string           `json:"start"`
	End         string           `json:"end,omitempty"`
	Formats     []reports.Format `json:"formats,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
}

func (h *handler) createIngredient(c *gin.Context) {
	var in core.Ingredient
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.CreateIngredient(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) listIngredients(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListIngredients(c.Request.Context()))
}

func (h *handler) getIngredient(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.GetIngredient(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) lowStock(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetLowStock(c.Request.Context()))
}

func (h *handler) stockAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Ledger().GetStockAlertReport(c.Request.Context()))
}

func (h *handler) expiring(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, domain.InvalidArgumentError{Field: "days", Reason: "must be an integer"})
			return
		}
		days = n
	}
	out, err := h.svc.Ledger().GetExpiringSoon(c.Request.Context(), days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) adjustStock(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if req.Delta == nil {
		h.fail(c, domain.InvalidArgumentError{Field: "delta", Reason: "required"})
		return
	}
	out, err := h.svc.AdjustStock(c.Request.Context(), id, *req.Delta)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) restock(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Restock(c.Request.Context(), id, req.Quantity, req.UnitPrice)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) createProduct(c *gin.Context) {
	var in core.Product
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.CreateProduct(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) listProducts(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))
	c.JSON(http.StatusOK, h.svc.ListProducts(c.Request.Context(), activeOnly))
}

func (h *handler) deactivateProduct(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.DeactivateProduct(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) refreshCosting(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.RefreshProductCosting(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) createRecipe(c *gin.Context) {
	var in core.RecipeWithLines
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.CreateRecipe(c.Request.Context(), in.Recipe, in.Lines)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) getRecipe(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.GetRecipe(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) recipeCost(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	batch, err := h.svc.CalculateCost(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	perUnit, err := h.svc.CostPerUnit(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CostResponse{RecipeID: id, BatchCost: batch, CostPerUnit: perUnit})
}

func (h *handler) feasibility(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	quantity, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		h.fail(c, domain.InvalidArgumentError{Field: "quantity", Reason: "must be a decimal"})
		return
	}
	ctx := c.Request.Context()
	can, err := h.svc.CanProduce(ctx, id, quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	missing, err := h.svc.MissingIngredients(ctx, id, quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	if missing == nil {
		missing = []domain.Shortage{}
	}
	c.JSON(http.StatusOK, FeasibilityResponse{RecipeID: id, Quantity: quantity, CanProduce: can, Missing: missing})
}

func (h *handler) registerProduction(c *gin.Context) {
	updateInventory := true
	if raw := c.Query("update_inventory"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, domain.InvalidArgumentError{Field: "update_inventory", Reason: "must be a boolean"})
			return
		}
		updateInventory = v
	}
	var run core.ProductionRun
	if err := c.ShouldBindJSON(&run); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.RegisterProduction(c.Request.Context(), run, updateInventory)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) planProduction(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	date, err := parseDay("date", req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.PlanProduction(c.Request.Context(), req.ProductID, date, req.PlannedUnits)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) getProduction(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.Production().GetProduction(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) startProduction(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.StartProduction(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) cancelProduction(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req CancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}
	out, err := h.svc.CancelProduction(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) efficiency(c *gin.Context) {
	date, err := parseDay("date", c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, EfficiencyResponse{
		Date:       date.Format(dayLayout),
		Efficiency: h.svc.AggregateEfficiency(c.Request.Context(), date),
	})
}

func (h *handler) recordSale(c *gin.Context) {
	var in core.Sale
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.RecordSale(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) salesReport(c *gin.Context) {
	start, end, err := queryRange(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var out any
	if c.Query("group") == "payment" {
		out, err = h.reports.SalesByPaymentMethod(c.Request.Context(), start, end)
	} else {
		out, err = h.reports.SalesByProduct(c.Request.Context(), start, end)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) wasteReport(c *gin.Context) {
	start, end, err := queryRange(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.reports.WasteReport(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) productionCostReport(c *gin.Context) {
	start, end, err := queryRange(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.reports.ProductionCostReport(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) dailySummary(c *gin.Context) {
	date, err := parseDay("date", c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.reports.DailySummary(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

var errExportsDisabled = errors.New("report exports are not configured")

func (h *handler) enqueueExport(c *gin.Context) {
	if h.exports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errExportsDisabled.Error()})
		return
	}
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	in := reports.Input{Kind: req.Kind, Formats: req.Formats, RequestedBy: req.RequestedBy}
	var err error
	if req.Start != "" {
		if in.Start, err = parseDay("start", req.Start); err != nil {
			h.fail(c, err)
			return
		}
	}
	in.End = in.Start
	if req.End != "" {
		if in.End, err = parseDay("end", req.End); err != nil {
			h.fail(c, err)
			return
		}
	}
	record, err := h.exports.EnqueueExport(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, record)
}

func (h *handler) getExport(c *gin.Context) {
	if h.exports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errExportsDisabled.Error()})
		return
	}
	record, ok := h.exports.GetExport(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "export " + c.Param("id") + " not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}
