package handler

import (
	"log/slog"
	"net/http"

	"edd-manual-purchases/internal/middleware"
	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/purchase"
)

type nonceResponse struct {
	Nonce  string `json:"nonce"`
	Action string `json:"action"`
}

type productsResponse struct {
	Products []model.Product `json:"products"`
}

type variantsRequest struct {
	DownloadID int    `json:"download_id"`
	Nonce      string `json:"nonce"`
}

type variantsResponse struct {
	Variants []model.PriceVariant `json:"variants"`
}

// createPaymentRequest mirrors the create-payment form as JSON.
// A missing amount means the total is computed from the catalog.
type createPaymentRequest struct {
	User      string                `json:"user"`
	Amount    *string               `json:"amount,omitempty"`
	Downloads []model.LineItemInput `json:"downloads"`
	Nonce     string                `json:"nonce"`
}

// handleAPINonce issues a create-payment nonce for the caller.
// POST /admin/api/nonce
func (h *Handler) handleAPINonce(w http.ResponseWriter, r *http.Request) {
	operator := middleware.Operator(r.Context())
	h.writeJSON(w, http.StatusOK, nonceResponse{
		Nonce:  h.Nonces.Create(purchase.NonceAction, operator),
		Action: purchase.NonceAction,
	})
}

// handleAPIProducts lists published downloads.
// GET /admin/api/products
func (h *Handler) handleAPIProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Payments.Products(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	h.writeJSON(w, http.StatusOK, productsResponse{Products: products})
}

// handleAPIVariants returns a download's price tiers.
// POST /admin/api/variants
func (h *Handler) handleAPIVariants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req variantsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	variants, err := h.Payments.PriceVariants(ctx, req.Nonce, middleware.Operator(ctx), req.DownloadID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if variants == nil {
		variants = []model.PriceVariant{}
	}
	h.writeJSON(w, http.StatusOK, variantsResponse{Variants: variants})
}

// handleAPICreatePayment records a manual payment.
// POST /admin/api/payments
func (h *Handler) handleAPICreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createPaymentRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	req := &purchase.CreatePaymentRequest{
		Operator:  middleware.Operator(ctx),
		Nonce:     body.Nonce,
		User:      body.User,
		Downloads: body.Downloads,
	}
	if body.Amount != nil {
		amount, err := purchase.ParseAmount(*body.Amount)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		req.Amount = amount
	}

	h.logger.InfoContext(ctx, "creating payment",
		slog.Int("downloads", len(req.Downloads)),
		slog.Bool("amount_override", req.Amount != nil),
	)

	order, err := h.Payments.CreatePayment(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, order)
}
