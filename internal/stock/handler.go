package stock

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// Handler exposes the stock ledger endpoints.
type Handler struct {
	engine  *Engine
	catalog *catalog.Repository
}

// NewHandler builds the stock HTTP handler.
func NewHandler(engine *Engine, catalogRepo *catalog.Repository) *Handler {
	return &Handler{engine: engine, catalog: catalogRepo}
}

// Routes mounts the stock routes on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/stock/adjust", h.adjust)
	r.Get("/stock/movements", h.movements)
	r.Get("/stock/low", h.lowStock)
	r.Get("/stock/stats", h.stats)
	r.Get("/products/{id}/stock", h.productStock)
}

type adjustRequest struct {
	ProductID int64           `json:"product_id"`
	Type      AdjustmentType  `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Notes     string          `json:"notes"`
}

type adjustResponse struct {
	ProductID     int64           `json:"product_id"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	Status        Status          `json:"status"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	product, err := h.engine.Adjust(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		Type:      req.Type,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		UserID:    shared.ActorFromContext(r.Context()),
		Notes:     req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, adjustResponse{
		ProductID:     product.ID,
		StockQuantity: product.StockQuantity,
		Status:        StatusOf(product),
	})
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{
		Type: MovementType(r.URL.Query().Get("type")),
	}
	if v := r.URL.Query().Get("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid product_id", "product_id must be an integer")
			return
		}
		filter.ProductID = id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid limit", "limit must be an integer")
			return
		}
		filter.Limit = limit
	}

	movements, err := h.engine.Movements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.engine.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

type productStockResponse struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
	Status        Status          `json:"status"`
}

func (h *Handler) productStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be an integer")
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productStockResponse{
		ProductID:     product.ID,
		Name:          product.Name,
		StockQuantity: product.StockQuantity,
		MinStockLevel: product.MinStockLevel,
		Status:        StatusOf(product),
	})
}
