package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itsstore/go-shop-orders/internal/catalog"
)

type ProductsHandler struct {
	Repo *catalog.Repo
}

type createProductReq struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Image         string `json:"image"`
	Price         int64  `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
}

type setStockReq struct {
	StockQuantity int `json:"stockQuantity"`
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.With(RequireAdmin).Post("/", h.create)
		r.With(RequireAdmin).Put("/{id}/stock", h.setStock)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Repo.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if req.Name == "" || req.Price < 0 || req.StockQuantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required; price and stock must be non-negative"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p := catalog.Product{
		Name:          req.Name,
		Description:   req.Description,
		Image:         req.Image,
		PriceCents:    req.Price,
		StockQuantity: req.StockQuantity,
	}
	if err := h.Repo.Create(ctx, &p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var req setStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if req.StockQuantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "stock quantity cannot be negative"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.SetStock(ctx, chi.URLParam(r, "id"), req.StockQuantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
