package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/store"
)

const (
	productA = 10 // single price 10.00
	productB = 20 // variable prices small 15.00, large 25.00
)

func catalogStore() *store.Mock {
	products := map[int]*model.Product{
		productA: {ID: productA, Title: "Product A", Price: model.MustMoney("10.00")},
		productB: {
			ID:    productB,
			Title: "Product B",
			Price: model.MustMoney("15.00"),
			VariablePrices: []model.PriceVariant{
				{Key: "small", Name: "Small", Amount: model.MustMoney("15.00")},
				{Key: "large", Name: "Large", Amount: model.MustMoney("25.00")},
			},
		},
	}
	return &store.Mock{
		GetProductFunc: func(ctx context.Context, id int) (*model.Product, error) {
			if p, ok := products[id]; ok {
				return p, nil
			}
			return nil, model.NewNotFoundError("product")
		},
	}
}

func priceID(s string) *string { return &s }

func money(s string) *model.Money {
	m := model.MustMoney(s)
	return &m
}

func TestPriceWithoutOverride(t *testing.T) {
	p := NewPricer(catalogStore())

	quote, err := p.Price(context.Background(), []model.LineItemInput{
		{ProductID: productA},
		{ProductID: productB, PriceID: priceID("large")},
	}, nil)

	require.NoError(t, err)
	assert.False(t, quote.Overridden)
	assert.Equal(t, "35.00", quote.Total.String())
	assert.Equal(t, "35.00", quote.Subtotal.String())
	require.Len(t, quote.Items, 2)

	assert.Equal(t, productA, quote.Items[0].ProductID)
	assert.Equal(t, "10", quote.Items[0].VariantID)
	assert.Equal(t, "Product A", quote.Items[0].Name)
	assert.Equal(t, "10.00", quote.Items[0].Price.String())
	assert.Equal(t, 1, quote.Items[0].Quantity)

	assert.Equal(t, "large", quote.Items[1].VariantID)
	assert.Equal(t, "25.00", quote.Items[1].UnitPrice.String())
	assert.Equal(t, "25.00", quote.Items[1].Price.String())
}

func TestPriceWithOverride(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"discounted total", "30.00"},
		{"zero is still an override", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPricer(catalogStore())

			quote, err := p.Price(context.Background(), []model.LineItemInput{
				{ProductID: productA},
				{ProductID: productB, PriceID: priceID("large")},
			}, money(tt.override))

			require.NoError(t, err)
			assert.True(t, quote.Overridden)
			assert.Equal(t, tt.override, quote.Total.String())
			assert.Equal(t, "35.00", quote.Subtotal.String())
			for _, item := range quote.Items {
				assert.True(t, item.Price.IsZero(), "recorded price for %d = %s", item.ProductID, item.Price)
				assert.False(t, item.UnitPrice.IsZero())
			}
		})
	}
}

func TestPriceVariantIndependentOfProductID(t *testing.T) {
	p := NewPricer(catalogStore())

	quote, err := p.Price(context.Background(), []model.LineItemInput{
		{ProductID: productB, PriceID: priceID("small")},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "small", quote.Items[0].VariantID)
	assert.Equal(t, productB, quote.Items[0].ProductID)
	assert.Equal(t, "15.00", quote.Items[0].Price.String())
}

func TestPriceErrors(t *testing.T) {
	tests := []struct {
		name     string
		inputs   []model.LineItemInput
		sentinel error
	}{
		{"no rows", nil, model.ErrInvalidRequest},
		{"unselected product", []model.LineItemInput{{ProductID: 0}}, model.ErrInvalidRequest},
		{"unknown product", []model.LineItemInput{{ProductID: 999}}, model.ErrInvalidRequest},
		{"unknown variant", []model.LineItemInput{{ProductID: productB, PriceID: priceID("huge")}}, model.ErrInvalidRequest},
		{"variant on single price product", []model.LineItemInput{{ProductID: productA, PriceID: priceID("0")}}, model.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPricer(catalogStore())

			_, err := p.Price(context.Background(), tt.inputs, nil)

			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestPriceCatalogFailure(t *testing.T) {
	st := catalogStore()
	st.GetProductFunc = func(ctx context.Context, id int) (*model.Product, error) {
		return nil, model.NewUpstreamError("EDD", errors.New("timeout"))
	}

	_, err := NewPricer(st).Price(context.Background(), []model.LineItemInput{{ProductID: productA}}, nil)

	assert.ErrorIs(t, err, model.ErrUpstreamError)
	assert.NotErrorIs(t, err, model.ErrInvalidRequest)
}
