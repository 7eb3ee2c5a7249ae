package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/store"
)

// NonceAction names the forgery token used by the create-payment form and its AJAX calls.
const NonceAction = "edd_create_payment_nonce"

// Gateway is recorded on every order this service creates.
const Gateway = "manual_purchases"

// CompletionMode controls how an order reaches the complete status.
type CompletionMode string

const (
	// CompletionTwoStep inserts the order as pending and then transitions it,
	// which is what makes EDD record sales stats and earnings.
	CompletionTwoStep CompletionMode = "two_step"

	// CompletionDirect inserts the order already complete.
	// Only for hosts that record stats on insert.
	CompletionDirect CompletionMode = "direct"
)

// DefaultBackdate is how far the purchase date is set before submission.
const DefaultBackdate = 24 * time.Hour

// Config carries the store-wide settings an order needs.
type Config struct {
	Currency       string
	Backdate       time.Duration
	CompletionMode CompletionMode
}

// NonceVerifier checks forgery tokens. Implemented by nonce.Manager.
type NonceVerifier interface {
	Valid(token, action, operator string) bool
}

// CreatePaymentRequest is a validated create-payment submission.
type CreatePaymentRequest struct {
	// Operator is the signed-in admin the nonce was issued to.
	Operator string
	Nonce    string

	// User is the raw buyer field: an account id, email, or login.
	User string

	// Amount overrides the computed total when non-nil. A zero amount is an override.
	Amount *model.Money

	Downloads []model.LineItemInput
}

// Service creates manual payments.
type Service struct {
	resolver *BuyerResolver
	pricer   *Pricer
	catalog  store.Catalog
	orders   store.Orders
	nonces   NonceVerifier
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	newKey   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithKeyGenerator replaces the purchase key generator.
func WithKeyGenerator(gen func() string) Option {
	return func(s *Service) { s.newKey = gen }
}

// NewService wires the resolver, pricer, and order submission against one store.
func NewService(st store.Store, nonces NonceVerifier, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg.CompletionMode == "" {
		cfg.CompletionMode = CompletionTwoStep
	}
	s := &Service{
		resolver: NewBuyerResolver(st),
		pricer:   NewPricer(st),
		catalog:  st,
		orders:   st,
		nonces:   nonces,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newKey:   NewPurchaseKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePayment records a manual purchase and returns the completed order.
//
// The nonce is checked before anything else; on failure no store call is made.
// In two-step mode the order is inserted as pending and then moved to complete.
// Neither step is retried. If the move to complete fails the order stays in
// the store as pending; its id is logged and the error names it, since the
// store offers no delete.
func (s *Service) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*model.Order, error) {
	if err := s.CheckNonce(req.Nonce, req.Operator); err != nil {
		return nil, err
	}

	buyer, err := s.resolver.Resolve(ctx, req.User)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricer.Price(ctx, req.Downloads, req.Amount)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		Total:       quote.Total,
		CreatedAt:   s.now().Add(-s.cfg.Backdate),
		PurchaseKey: s.newKey(),
		Email:       buyer.Email,
		Buyer:       buyer,
		Currency:    s.cfg.Currency,
		Gateway:     Gateway,
		Downloads:   req.Downloads,
		LineItems:   quote.Items,
		Status:      model.StatusPending,
	}
	if s.cfg.CompletionMode == CompletionDirect {
		order.Status = model.StatusComplete
	}

	id, err := s.orders.InsertOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}
	order.ID = id

	if order.Status != model.StatusComplete {
		if err := s.orders.SetOrderStatus(ctx, id, model.StatusComplete); err != nil {
			s.logger.ErrorContext(ctx, "order left pending",
				slog.Int("order_id", id),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("completing order %d: %w", id, err)
		}
		order.Status = model.StatusComplete
	}

	s.logger.InfoContext(ctx, "manual payment created",
		slog.Int("order_id", id),
		slog.String("total", order.Total.String()),
		slog.Int("line_items", len(order.LineItems)),
		slog.Bool("guest", buyer.IsGuest()),
		slog.Bool("override", quote.Overridden),
		slog.String("operator", req.Operator),
	)
	return order, nil
}

// CheckNonce verifies a create-payment forgery token for operator.
func (s *Service) CheckNonce(token, operator string) error {
	if !s.nonces.Valid(token, NonceAction, operator) {
		return model.NewNonceError(NonceAction)
	}
	return nil
}

// PriceVariants returns the price tiers of a product for the form's variant select.
// The slice is empty for single-price products.
func (s *Service) PriceVariants(ctx context.Context, token, operator string, productID int) ([]model.PriceVariant, error) {
	if err := s.CheckNonce(token, operator); err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, model.NewValidationError("download_id", "download id required")
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return product.VariablePrices, nil
}

// Products lists the catalog for the form's product select.
func (s *Service) Products(ctx context.Context) ([]model.Product, error) {
	return s.catalog.ListProducts(ctx)
}

// ParseAmount reads the optional amount field.
// Blank means no override; anything else must be a non-negative decimal.
func ParseAmount(raw string) (*model.Money, error) {
	raw = CleanInput(raw)
	if raw == "" {
		return nil, nil
	}
	amount, err := model.ParseMoney(raw)
	if err != nil {
		return nil, model.NewValidationError("amount", "must be a decimal number")
	}
	if amount.IsNegative() {
		return nil, model.NewValidationError("amount", "must not be negative")
	}
	return &amount, nil
}

// NewPurchaseKey returns a random 32 character lowercase hex key.
func NewPurchaseKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
