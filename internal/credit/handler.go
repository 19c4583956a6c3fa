package credit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// Handler exposes the customer credit read endpoint.
type Handler struct {
	engine *Engine
}

// NewHandler builds the credit HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes mounts the credit routes on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/customers/{id}/credit", h.availableCredit)
}

type creditResponse struct {
	CustomerID      int64           `json:"customer_id"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
}

func (h *Handler) availableCredit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be an integer")
		return
	}
	available, err := h.engine.AvailableCredit(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, creditResponse{CustomerID: id, AvailableCredit: available})
}
