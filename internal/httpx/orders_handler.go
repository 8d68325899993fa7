package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/itsstore/go-shop-orders/internal/metrics"
	"github.com/itsstore/go-shop-orders/internal/orders"
	"github.com/itsstore/go-shop-orders/internal/redisx"
)

type OrdersHandler struct {
	Service *orders.Service
	Redis   *redis.Client
}

type placeOrderReq struct {
	OrderItems      []orders.ItemInput     `json:"orderItems"`
	ShippingAddress orders.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ItemsPrice      int64                  `json:"itemsPrice"`
	TaxPrice        int64                  `json:"taxPrice"`
	ShippingPrice   int64                  `json:"shippingPrice"`
	TotalPrice      int64                  `json:"totalPrice"`
}

type statusUpdateReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Route("/orders", func(r chi.Router) {
		r.With(RequireUser).Post("/", h.placeOrder)
		r.With(RequireUser).Get("/mine", h.myOrders)
		r.With(RequireUser).Get("/{id}", h.getOrder)
		r.With(RequireAdmin).Get("/", h.allOrders)
		r.With(RequireAdmin).Put("/{id}/status", h.updateStatus)
		r.With(RequireAdmin).Put("/{id}/deliver", h.markDelivered)
		r.With(RequireAdmin).Delete("/{id}", h.deleteOrder)
	})
}

// checkRequired enumerates missing required fields instead of failing on the
// first one.
func (req *placeOrderReq) checkRequired() []string {
	var problems []string
	if len(req.OrderItems) == 0 {
		problems = append(problems, "no order items")
	}
	if req.ShippingAddress.Address == "" || req.ShippingAddress.City == "" || req.ShippingAddress.Country == "" {
		problems = append(problems, "incomplete shipping address")
	}
	if req.PaymentMethod == "" {
		problems = append(problems, "payment method is required")
	}
	if req.TotalPrice <= 0 {
		problems = append(problems, "total price must be positive")
	}
	return problems
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if problems := req.checkRequired(); len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Order validation failed",
			"errors":  problems,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Service.PlaceOrder(ctx, u.ID, orders.PlaceCommand{
		Items:              req.OrderItems,
		ShippingAddress:    req.ShippingAddress,
		PaymentMethod:      req.PaymentMethod,
		ItemsPriceCents:    req.ItemsPrice,
		TaxPriceCents:      req.TaxPrice,
		ShippingPriceCents: req.ShippingPrice,
		TotalPriceCents:    req.TotalPrice,
		TraceID:            r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		var verr *orders.ValidationError
		switch {
		case errors.As(err, &verr):
			metrics.OrdersPlacedTotal.WithLabelValues("rejected").Inc()
			metrics.ItemRejectionsTotal.Add(float64(len(verr.Problems)))
		case errors.Is(err, orders.ErrDuplicateOrderNumber):
			metrics.OrdersPlacedTotal.WithLabelValues("conflict").Inc()
		default:
			metrics.OrdersPlacedTotal.WithLabelValues("error").Inc()
		}
		writeError(w, err)
		return
	}
	metrics.OrdersPlacedTotal.WithLabelValues("placed").Inc()

	h.cacheStatus(ctx, &order)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order placed successfully",
		"order":   order,
	})
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.ListByUser(ctx, u.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if order.UserID != u.ID && !u.Admin {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Not authorized to view this order"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) allOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if !req.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid status provided."})
		return
	}
	h.applyStatus(w, r, req.Status)
}

func (h *OrdersHandler) markDelivered(w http.ResponseWriter, r *http.Request) {
	h.applyStatus(w, r, orders.StatusDelivered)
}

func (h *OrdersHandler) applyStatus(w http.ResponseWriter, r *http.Request, status orders.Status) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Service.UpdateStatus(ctx, chi.URLParam(r, "id"), status, r.Header.Get("X-Request-Id"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, &order)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Order status updated to %s!", order.Status),
		"order":   order,
	})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, id)).Err()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order removed"})
}

// cacheStatus warms the status cache so reads served by other instances (and
// the notifier) see fresh state quickly. Best effort.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]any{"status": o.Status, "isDelivered": o.IsDelivered})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
