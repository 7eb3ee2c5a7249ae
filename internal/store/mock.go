package store

import (
	"context"

	"edd-manual-purchases/internal/model"
)

// Mock implements Store for testing.
// Each method can be configured via function fields.
type Mock struct {
	GetAccountByIDFunc    func(ctx context.Context, id int) (*model.Account, error)
	GetAccountByEmailFunc func(ctx context.Context, email string) (*model.Account, error)
	GetAccountByLoginFunc func(ctx context.Context, login string) (*model.Account, error)
	GetProductFunc        func(ctx context.Context, id int) (*model.Product, error)
	ListProductsFunc      func(ctx context.Context) ([]model.Product, error)
	InsertOrderFunc       func(ctx context.Context, order *model.Order) (int, error)
	SetOrderStatusFunc    func(ctx context.Context, id int, status model.OrderStatus) error
	GetOptionFunc         func(ctx context.Context, name string) (string, error)
	UpdateOptionFunc      func(ctx context.Context, name, value string) error
}

// GetAccountByID calls the configured func or reports not found.
func (m *Mock) GetAccountByID(ctx context.Context, id int) (*model.Account, error) {
	if m.GetAccountByIDFunc != nil {
		return m.GetAccountByIDFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("account")
}

// GetAccountByEmail calls the configured func or reports not found.
func (m *Mock) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.GetAccountByEmailFunc != nil {
		return m.GetAccountByEmailFunc(ctx, email)
	}
	return nil, model.NewNotFoundError("account")
}

// GetAccountByLogin calls the configured func or reports not found.
func (m *Mock) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	if m.GetAccountByLoginFunc != nil {
		return m.GetAccountByLoginFunc(ctx, login)
	}
	return nil, model.NewNotFoundError("account")
}

// GetProduct calls the configured func or reports not found.
func (m *Mock) GetProduct(ctx context.Context, id int) (*model.Product, error) {
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("product")
}

// ListProducts calls the configured func or returns an empty catalog.
func (m *Mock) ListProducts(ctx context.Context) ([]model.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx)
	}
	return []model.Product{}, nil
}

// InsertOrder calls the configured func or returns an error.
func (m *Mock) InsertOrder(ctx context.Context, order *model.Order) (int, error) {
	if m.InsertOrderFunc != nil {
		return m.InsertOrderFunc(ctx, order)
	}
	return 0, model.NewInternalError(nil)
}

// SetOrderStatus calls the configured func or returns an error.
func (m *Mock) SetOrderStatus(ctx context.Context, id int, status model.OrderStatus) error {
	if m.SetOrderStatusFunc != nil {
		return m.SetOrderStatusFunc(ctx, id, status)
	}
	return model.NewInternalError(nil)
}

// GetOption calls the configured func or returns an unset option.
func (m *Mock) GetOption(ctx context.Context, name string) (string, error) {
	if m.GetOptionFunc != nil {
		return m.GetOptionFunc(ctx, name)
	}
	return "", nil
}

// UpdateOption calls the configured func or discards the value.
func (m *Mock) UpdateOption(ctx context.Context, name, value string) error {
	if m.UpdateOptionFunc != nil {
		return m.UpdateOptionFunc(ctx, name, value)
	}
	return nil
}

// Verify Mock implements Store interface at compile time.
var _ Store = (*Mock)(nil)
