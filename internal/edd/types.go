// Package edd implements the store contracts against a WordPress site running
// Easy Digital Downloads. Accounts and options go through the WordPress core
// REST API; downloads and orders through the EDD v3 routes.
package edd

import (
	"strconv"

	"edd-manual-purchases/internal/model"
)

// === WordPress API Types ===

// wpUser is a user as returned with context=edit.
type wpUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// wpError is the standard WP_Error JSON body.
type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

// === EDD API Types ===

// eddDownload is a download with its pricing.
// VariablePrices is empty unless the download has variable pricing enabled.
type eddDownload struct {
	ID             int                `json:"id"`
	Title          string             `json:"title"`
	Price          model.Money        `json:"price"`
	VariablePrices []eddVariablePrice `json:"variable_prices"`
}

// eddVariablePrice is one row of the variable price table.
// Index is the stable key EDD stores on cart items; it may be numeric or not.
type eddVariablePrice struct {
	Index  flexString  `json:"index"`
	Name   string      `json:"name"`
	Amount model.Money `json:"amount"`
}

// eddOrderRequest is the body for POST /orders.
type eddOrderRequest struct {
	Total       model.Money      `json:"total"`
	Date        string           `json:"date"`
	PurchaseKey string           `json:"purchase_key"`
	Email       string           `json:"email"`
	UserID      int              `json:"user_id"`
	UserInfo    eddUserInfo      `json:"user_info"`
	Currency    string           `json:"currency"`
	Gateway     string           `json:"gateway"`
	Status      string           `json:"status"`
	Downloads   []eddDownloadRef `json:"downloads"`
	CartDetails []eddCartItem    `json:"cart_details"`
}

type eddUserInfo struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Discount  string `json:"discount"`
}

type eddDownloadRef struct {
	ID      int             `json:"id"`
	Options *eddItemOptions `json:"options,omitempty"`
}

type eddItemOptions struct {
	PriceID string `json:"price_id"`
}

type eddCartItem struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	ItemNumber eddItemNumber `json:"item_number"`
	ItemPrice  model.Money   `json:"item_price"`
	Price      model.Money   `json:"price"`
	Quantity   int           `json:"quantity"`
}

type eddItemNumber struct {
	ID      int            `json:"id"`
	Options eddItemOptions `json:"options"`
}

// eddOrderResponse is the subset of an order the client reads back.
type eddOrderResponse struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

// eddStatusRequest is the body for POST /orders/{id}.
type eddStatusRequest struct {
	Status string `json:"status"`
}

// flexString accepts both JSON strings and numbers.
// Older EDD installs serialize price indexes as integers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*f = flexString(unquoted)
		return nil
	}
	*f = flexString(s)
	return nil
}

// === Conversions ===

func (u *wpUser) toAccount() *model.Account {
	return &model.Account{
		ID:        u.ID,
		Email:     u.Email,
		Login:     u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func (d *eddDownload) toProduct() *model.Product {
	p := &model.Product{
		ID:    d.ID,
		Title: d.Title,
		Price: d.Price,
	}
	for _, vp := range d.VariablePrices {
		p.VariablePrices = append(p.VariablePrices, model.PriceVariant{
			Key:    string(vp.Index),
			Name:   vp.Name,
			Amount: vp.Amount,
		})
	}
	return p
}

// orderDateLayout is the MySQL datetime format EDD stores dates in (UTC).
const orderDateLayout = "2006-01-02 15:04:05"

func newOrderRequest(o *model.Order) *eddOrderRequest {
	req := &eddOrderRequest{
		Total:       o.Total,
		Date:        o.CreatedAt.UTC().Format(orderDateLayout),
		PurchaseKey: o.PurchaseKey,
		Email:       o.Email,
		UserID:      o.Buyer.ID,
		UserInfo: eddUserInfo{
			ID:        o.Buyer.ID,
			Email:     o.Buyer.Email,
			FirstName: o.Buyer.FirstName,
			LastName:  o.Buyer.LastName,
			Discount:  o.Buyer.Discount,
		},
		Currency: o.Currency,
		Gateway:  o.Gateway,
		Status:   string(o.Status),
	}

	for _, in := range o.Downloads {
		ref := eddDownloadRef{ID: in.ProductID}
		if in.HasVariant() {
			ref.Options = &eddItemOptions{PriceID: *in.PriceID}
		}
		req.Downloads = append(req.Downloads, ref)
	}

	// LineItems are priced in submission order, one per download row.
	for i, item := range o.LineItems {
		number := eddItemNumber{ID: item.ProductID}
		if i < len(o.Downloads) && o.Downloads[i].HasVariant() {
			number.Options.PriceID = item.VariantID
		}
		req.CartDetails = append(req.CartDetails, eddCartItem{
			ID:         item.ProductID,
			Name:       item.Name,
			ItemNumber: number,
			ItemPrice:  item.UnitPrice,
			Price:      item.Price,
			Quantity:   item.Quantity,
		})
	}
	return req
}
