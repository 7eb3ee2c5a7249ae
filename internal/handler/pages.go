package handler

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"edd-manual-purchases/internal/license"
	"edd-manual-purchases/internal/middleware"
	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/purchase"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// messagePaymentCreated is the edd-message value set after a successful submission.
const messagePaymentCreated = "payment_created"

type newPaymentPage struct {
	ActionURL string
	AjaxURL   string
	Nonce     string
	Products  []model.Product
	User      string
	Amount    string
	Error     string
}

type historyPage struct {
	Created       bool
	NewPaymentURL string
}

type settingsPage struct {
	ActionURL     string
	LicenseKey    string
	LicenseStatus string
	Saved         bool
	Error         string
}

type variationsFragment struct {
	Key      string
	Variants []model.PriceVariant
}

// render executes a named template into a buffer first so a template error
// never leaves a half-written page behind.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.ErrorContext(r.Context(), "template failed",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// handleHistory is the payment history landing page.
// GET /admin/payments
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "history", historyPage{
		Created:       r.URL.Query().Get("edd-message") == messagePaymentCreated,
		NewPaymentURL: PathNewPayment,
	})
}

// handleButton returns the Create Payment button shown above the history table.
// GET /admin/payments/button
func (h *Handler) handleButton(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "button", PathNewPayment)
}

// handleNewPayment renders the create-payment form.
// GET /admin/payments/new
func (h *Handler) handleNewPayment(w http.ResponseWriter, r *http.Request) {
	page := h.newPaymentPage(r.Context())
	h.render(w, r, http.StatusOK, "new", page)
}

// newPaymentPage builds the form with a fresh nonce for the current operator.
// A catalog failure still renders the form, with the empty-catalog option.
func (h *Handler) newPaymentPage(ctx context.Context) *newPaymentPage {
	operator := middleware.Operator(ctx)
	page := &newPaymentPage{
		ActionURL: PathActions,
		AjaxURL:   PathAjax,
		Nonce:     h.Nonces.Create(purchase.NonceAction, operator),
	}

	products, err := h.Payments.Products(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "listing downloads failed", slog.String("error", err.Error()))
		return page
	}
	page.Products = products
	return page
}

// handleSettings renders the license settings section.
// GET /admin/settings/misc
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	page, err := h.settingsPage(r.Context())
	if err != nil {
		apiErr := h.apiError(r.Context(), err)
		page.Error = "Settings could not be loaded."
		h.render(w, r, apiErr.StatusCode, "settings", page)
		return
	}
	h.render(w, r, http.StatusOK, "settings", page)
}

// handleSaveSettings stores the license key and activates it.
// POST /admin/settings/misc
func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	// Only a submission carrying the key field touches the license.
	key, submitted := r.PostForm["edd_settings_misc[edd_mp_license_key]"]
	if !submitted || len(key) == 0 {
		h.handleSettings(w, r)
		return
	}

	status, err := h.License.SaveKey(ctx, purchase.CleanInput(key[0]))
	page, loadErr := h.settingsPage(ctx)
	if err != nil || loadErr != nil {
		if err == nil {
			err = loadErr
		}
		apiErr := h.apiError(ctx, err)
		page.Error = "License activation failed."
		h.render(w, r, apiErr.StatusCode, "settings", page)
		return
	}

	h.logger.InfoContext(ctx, "license settings saved", slog.String("status", status))
	page.Saved = true
	h.render(w, r, http.StatusOK, "settings", page)
}

func (h *Handler) settingsPage(ctx context.Context) (*settingsPage, error) {
	page := &settingsPage{ActionURL: PathSettings}

	key, err := h.Options.GetOption(ctx, license.OptionKey)
	if err != nil {
		return page, err
	}
	status, err := h.Options.GetOption(ctx, license.OptionStatus)
	if err != nil {
		return page, err
	}
	page.LicenseKey = key
	page.LicenseStatus = status
	return page, nil
}
