package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/itsstore/go-shop-orders/internal/catalog"
	"github.com/itsstore/go-shop-orders/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes. Validation problems
// go out as an itemized errors array; infrastructure failures stay opaque.
func writeError(w http.ResponseWriter, err error) {
	var verr *orders.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Order validation failed",
			"errors":  verr.Problems,
		})
	case errors.Is(err, orders.ErrDuplicateOrderNumber):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "Failed to create order due to duplicate order number. Please try again.",
		})
	case errors.Is(err, orders.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid status transition."})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
	case errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "An internal server error occurred",
		})
	}
}
