package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/rocketshoes-cart/internal/domain"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/service"
	"github.com/go-chi/chi/v5"
)

// CartManager is the cart surface the UI consumes.
type CartManager interface {
	Cart() domain.Cart
	AddProduct(ctx context.Context, productID int64) error
	RemoveProduct(ctx context.Context, productID int64) error
	UpdateProductAmount(ctx context.Context, upd domain.AmountUpdate) error
}

type CartHandler struct {
	cart   CartManager
	logger *slog.Logger
}

func NewCartHandler(cart CartManager, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		cart:   cart,
		logger: logger,
	}
}

type AddProductRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type UpdateAmountRequestDTO struct {
	Amount *int `json:"amount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

func (h *CartHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	if err := h.cart.AddProduct(r.Context(), req.ProductID); err != nil {
		h.handleCartError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

func (h *CartHandler) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateAmountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Amount == nil {
		h.respondError(w, http.StatusBadRequest, "invalid_amount", "amount is required")
		return
	}

	err := h.cart.UpdateProductAmount(r.Context(), domain.AmountUpdate{
		ProductID: productID,
		Amount:    *req.Amount,
	})
	if err != nil {
		h.handleCartError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.cart.RemoveProduct(r.Context(), productID); err != nil {
		h.handleCartError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

func (h *CartHandler) productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func (h *CartHandler) handleCartError(w http.ResponseWriter, err error) {
	var opErr *service.OperationError

	switch {
	case errors.Is(err, service.ErrOutOfStock):
		h.respondError(w, http.StatusConflict, "out_of_stock", err.Error())
	case errors.Is(err, service.ErrProductNotInCart):
		h.respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &opErr):
		h.respondError(w, http.StatusBadGateway, "operation_failed", string(opErr.Op)+" failed")
	default:
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
