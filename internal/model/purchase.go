// Package model defines the domain types shared by the manual purchase service:
// buyers, catalog products, line items, and orders handed to the host store.
package model

import (
	"strconv"
	"time"
)

// OrderStatus is the host store's payment status.
type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusComplete OrderStatus = "complete"
)

// Account is a registered store user as returned by the account store.
type Account struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Login     string `json:"login"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Buyer is the purchaser recorded on an order.
// ID is 0 for guests; Email is never empty.
type Buyer struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Discount  string `json:"discount"`
}

// IsGuest reports whether the buyer has no matching account.
func (b Buyer) IsGuest() bool {
	return b.ID == 0
}

// PriceVariant is one tier of a product's variable pricing.
type PriceVariant struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Product is a downloadable catalog item.
// VariablePrices keeps the store's ordering.
type Product struct {
	ID             int            `json:"id"`
	Title          string         `json:"title"`
	Price          Money          `json:"price"`
	VariablePrices []PriceVariant `json:"variable_prices,omitempty"`
}

// HasVariablePrices reports whether the product is sold in price tiers.
func (p *Product) HasVariablePrices() bool {
	return len(p.VariablePrices) > 0
}

// Variant returns the price tier stored under key.
func (p *Product) Variant(key string) (PriceVariant, bool) {
	for _, v := range p.VariablePrices {
		if v.Key == key {
			return v, true
		}
	}
	return PriceVariant{}, false
}

// LineItemInput is one product row submitted by the operator.
// PriceID is nil when no variant select was shown for the row.
type LineItemInput struct {
	ProductID int     `json:"id"`
	PriceID   *string `json:"price_id,omitempty"`
}

// HasVariant reports whether a price tier was selected.
func (in LineItemInput) HasVariant() bool {
	return in.PriceID != nil
}

// LineItem is a priced cart row as stored on the order.
// VariantID is the price key for variant rows and the product id otherwise.
// Price is what the order records, which is zero when the operator overrides the total.
type LineItem struct {
	ProductID int    `json:"id"`
	VariantID string `json:"item_number"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unit_price"`
	Price     Money  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// ProductVariantID is the VariantID used for rows without a price tier.
func ProductVariantID(productID int) string {
	return strconv.Itoa(productID)
}

// Order is the payment record inserted into the host store.
type Order struct {
	ID          int             `json:"id,omitempty"`
	Total       Money           `json:"price"`
	CreatedAt   time.Time       `json:"date"`
	PurchaseKey string          `json:"purchase_key"`
	Email       string          `json:"user_email"`
	Buyer       Buyer           `json:"user_info"`
	Currency    string          `json:"currency"`
	Gateway     string          `json:"gateway"`
	Downloads   []LineItemInput `json:"downloads"`
	LineItems   []LineItem      `json:"cart_details"`
	Status      OrderStatus     `json:"status"`
}
