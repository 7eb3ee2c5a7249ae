// Package handler provides the HTTP surface of the manual purchase service:
// the admin pages and AJAX endpoint, a JSON API for scripts, and MCP tools.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/nonce"
	"edd-manual-purchases/internal/purchase"
	"edd-manual-purchases/internal/store"
)

// Admin routes.
const (
	PathHistory    = "/admin/payments"
	PathNewPayment = "/admin/payments/new"
	PathButton     = "/admin/payments/button"
	PathActions    = "/admin/actions"
	PathAjax       = "/admin/ajax"
	PathSettings   = "/admin/settings/misc"
)

// LicenseManager saves and activates the add-on license key.
type LicenseManager interface {
	SaveKey(ctx context.Context, key string) (string, error)
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Payments *purchase.Service
	Nonces   *nonce.Manager
	License  LicenseManager
	Options  store.Options

	// MCPOperator is the operator MCP tool calls act as. Nonces issued over MCP
	// are bound to it.
	MCPOperator string

	// Version is reported by the MCP server and /healthz.
	Version string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Deps
	logger  *slog.Logger
	actions *ActionRouter
	ajax    *ActionRouter
}

// New creates a Handler and registers its form and AJAX actions.
func New(deps Deps, logger *slog.Logger) *Handler {
	h := &Handler{
		Deps:    deps,
		logger:  logger,
		actions: NewActionRouter("edd-action", logger),
		ajax:    NewActionRouter("action", logger),
	}

	h.actions.Handle("create_payment", h.handleCreatePayment)
	h.ajax.Handle("edd_mp_check_for_variations", h.handleCheckVariations)
	return h
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Every admin, API, and MCP route is wrapped with auth; health checks are not.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}
	protect := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	// Admin pages
	mux.Handle("GET "+PathHistory, protect(h.handleHistory))
	mux.Handle("GET "+PathNewPayment, protect(h.handleNewPayment))
	mux.Handle("GET "+PathButton, protect(h.handleButton))
	mux.Handle("GET "+PathSettings, protect(h.handleSettings))
	mux.Handle("POST "+PathSettings, protect(h.handleSaveSettings))

	// Form and AJAX action routers
	mux.Handle("POST "+PathActions, auth(h.actions))
	mux.Handle("POST "+PathAjax, auth(h.ajax))

	// JSON API for scripts
	mux.Handle("POST /admin/api/nonce", protect(h.handleAPINonce))
	mux.Handle("GET /admin/api/products", protect(h.handleAPIProducts))
	mux.Handle("POST /admin/api/variants", protect(h.handleAPIVariants))
	mux.Handle("POST /admin/api/payments", protect(h.handleAPICreatePayment))

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", auth(h.NewMCPHandler()))

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: h.Version})
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := h.apiError(r.Context(), err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// apiError finds the APIError in err's chain. Unexpected errors and upstream
// failures are logged here so callers only decide how to present them.
func (h *Handler) apiError(ctx context.Context, err error) *model.APIError {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		h.logger.ErrorContext(ctx, "internal error", slog.String("error", err.Error()))
		return model.NewInternalError(err)
	}
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
	return apiErr
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
