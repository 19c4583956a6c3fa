package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Business
// rule failures carry their own message; anything unexpected surfaces as a
// generic 500 and is logged by the handler.
func RespondError(w http.ResponseWriter, err error) {
	var validation *shared.ValidationError
	var stock *shared.InsufficientStockError
	var credit *shared.InsufficientCreditError

	switch {
	case errors.As(err, &validation):
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Errors: validation.Fields,
		})
	case errors.As(err, &stock):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", stock.Error())
	case errors.As(err, &credit):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Credit", credit.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		// UserSafeMessage collapses anything outside the business taxonomy
		// to a generic string so driver details never leak to clients.
		Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
