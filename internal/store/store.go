// Package store defines the contracts this service needs from the host store.
// The host (EDD on WordPress) owns accounts, products, orders, and option values;
// implementations translate these calls to its API.
package store

import (
	"context"

	"edd-manual-purchases/internal/model"
)

// Accounts looks up registered users.
// Every lookup returns an error wrapping model.ErrNotFound when no user matches.
type Accounts interface {
	GetAccountByID(ctx context.Context, id int) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
}

// Catalog reads downloadable products and their pricing.
type Catalog interface {
	// GetProduct returns a product with its single price and variable price table.
	GetProduct(ctx context.Context, id int) (*model.Product, error)

	// ListProducts returns every published product, in store order.
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// Orders writes payment records.
type Orders interface {
	// InsertOrder stores the order with its current Status and returns the new id.
	InsertOrder(ctx context.Context, order *model.Order) (int, error)

	// SetOrderStatus transitions an existing order.
	// Moving to complete is what makes the host record sales stats and earnings.
	SetOrderStatus(ctx context.Context, id int, status model.OrderStatus) error
}

// Options reads and writes host option values (license key, license status).
// GetOption returns "" with no error for unset options.
type Options interface {
	GetOption(ctx context.Context, name string) (string, error)
	UpdateOption(ctx context.Context, name, value string) error
}

// Store is everything the service needs from one host.
type Store interface {
	Accounts
	Catalog
	Orders
	Options
}
