package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"edd-manual-purchases/internal/middleware"
	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/purchase"
)

// handleCreatePayment processes the create-payment form.
// POST /admin/actions with edd-action=create_payment
//
// Success redirects to the history page with the created notice. An invalid
// nonce re-renders a blank form with 403 and touches nothing else; any other
// failure re-renders the form with the submitted buyer and amount.
func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operator := middleware.Operator(ctx)
	form := r.PostForm

	if err := h.Payments.CheckNonce(form.Get(purchase.NonceAction), operator); err != nil {
		h.logger.WarnContext(ctx, "create payment rejected", slog.String("reason", "invalid nonce"))
		h.render(w, r, http.StatusForbidden, "new", h.newPaymentPage(ctx))
		return
	}

	req, err := parseCreatePaymentForm(form)
	if err == nil {
		req.Operator = operator
		_, err = h.Payments.CreatePayment(ctx, req)
	}
	if err != nil {
		apiErr := h.apiError(ctx, err)
		page := h.newPaymentPage(ctx)
		page.User = form.Get("user")
		page.Amount = form.Get("amount")
		page.Error = formErrorMessage(apiErr)
		h.render(w, r, apiErr.StatusCode, "new", page)
		return
	}

	http.Redirect(w, r, PathHistory+"?edd-message="+messagePaymentCreated, http.StatusSeeOther)
}

// formErrorMessage is the notice shown above a re-rendered form.
func formErrorMessage(apiErr *model.APIError) string {
	if apiErr.StatusCode >= http.StatusInternalServerError {
		return "The payment could not be created. Please try again."
	}
	return apiErr.Message
}

// parseCreatePaymentForm reads user, amount, nonce and download rows.
func parseCreatePaymentForm(form url.Values) (*purchase.CreatePaymentRequest, error) {
	amount, err := purchase.ParseAmount(form.Get("amount"))
	if err != nil {
		return nil, err
	}
	downloads, err := parseDownloads(form)
	if err != nil {
		return nil, err
	}
	return &purchase.CreatePaymentRequest{
		Nonce:     form.Get(purchase.NonceAction),
		User:      form.Get("user"),
		Amount:    amount,
		Downloads: downloads,
	}, nil
}

// downloadField matches downloads[KEY][id] and downloads[KEY][options][price_id].
var downloadField = regexp.MustCompile(`^downloads\[([^\[\]]+)\]\[(id|options\]\[price_id)\]$`)

// parseDownloads collects download rows from PHP-style bracketed field names.
// Row keys may be sparse after rows are removed client-side; rows keep their
// key order, numeric keys first. A field submitted twice under one key is
// rejected rather than collapsed.
func parseDownloads(form url.Values) ([]model.LineItemInput, error) {
	type row struct {
		id      string
		priceID *string
	}
	rows := make(map[string]*row)

	for name, values := range form {
		m := downloadField.FindStringSubmatch(name)
		if m == nil || len(values) == 0 {
			continue
		}
		if len(values) > 1 {
			return nil, model.NewValidationError("downloads", "row "+m[1]+" was submitted more than once")
		}
		key, field := m[1], m[2]
		rw, ok := rows[key]
		if !ok {
			rw = &row{}
			rows[key] = rw
		}
		if field == "id" {
			rw.id = values[0]
		} else {
			v := values[0]
			rw.priceID = &v
		}
	}

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return rowKeyLess(keys[i], keys[j]) })

	inputs := make([]model.LineItemInput, 0, len(keys))
	for _, k := range keys {
		rw := rows[k]
		id := 0
		if s := strings.TrimSpace(rw.id); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return nil, model.NewValidationError("downloads", "download id must be a number")
			}
			id = n
		}
		inputs = append(inputs, model.LineItemInput{ProductID: id, PriceID: rw.priceID})
	}
	return inputs, nil
}

func rowKeyLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// handleCheckVariations returns the price select for a download row.
// POST /admin/ajax with action=edd_mp_check_for_variations
//
// The body is empty when the nonce is invalid, the download has no variable
// prices, or the lookup fails.
func (h *Handler) handleCheckVariations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := r.PostForm
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	downloadID, _ := strconv.Atoi(strings.TrimSpace(form.Get("download_id")))
	variants, err := h.Payments.PriceVariants(ctx, form.Get("nonce"), middleware.Operator(ctx), downloadID)
	if err != nil {
		level := slog.LevelDebug
		if !errors.Is(err, model.ErrInvalidRequest) && !errors.Is(err, model.ErrNotFound) {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "variation lookup failed",
			slog.Int("download_id", downloadID),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(variants) == 0 {
		return
	}

	h.render(w, r, http.StatusOK, "variations", variationsFragment{
		Key:      form.Get("key"),
		Variants: variants,
	})
}
