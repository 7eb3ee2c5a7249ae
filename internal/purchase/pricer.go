package purchase

import (
	"context"
	"errors"
	"fmt"

	"edd-manual-purchases/internal/model"
	"edd-manual-purchases/internal/store"
)

// Quote is the priced result for a set of line items.
type Quote struct {
	Items []model.LineItem

	// Subtotal is the sum of catalog unit prices, whether or not an override applies.
	Subtotal model.Money

	// Total is what the order charges: the override when present, otherwise Subtotal.
	Total model.Money

	Overridden bool
}

// Pricer resolves catalog prices for submitted product rows.
type Pricer struct {
	catalog store.Catalog
}

// NewPricer creates a pricer backed by the catalog store.
func NewPricer(catalog store.Catalog) *Pricer {
	return &Pricer{catalog: catalog}
}

// Price looks up each row's unit price and totals them.
//
// A row with a price id reads that tier from the product's variable prices and
// records the tier key as its variant id; other rows use the single price and
// the product id. When override is non-nil every recorded price is zero and the
// override becomes the total, so an operator can charge one blended amount while
// the order still lists the right products.
func (p *Pricer) Price(ctx context.Context, inputs []model.LineItemInput, override *model.Money) (*Quote, error) {
	if len(inputs) == 0 {
		return nil, model.NewValidationError("downloads", "at least one download required")
	}

	quote := &Quote{
		Items:      make([]model.LineItem, 0, len(inputs)),
		Subtotal:   model.ZeroMoney,
		Overridden: override != nil,
	}

	for i, in := range inputs {
		item, err := p.priceItem(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("pricing download %d: %w", i, err)
		}
		quote.Subtotal = quote.Subtotal.Add(item.UnitPrice)
		if quote.Overridden {
			item.Price = model.ZeroMoney
		}
		quote.Items = append(quote.Items, item)
	}

	quote.Total = quote.Subtotal
	if quote.Overridden {
		quote.Total = *override
	}
	return quote, nil
}

func (p *Pricer) priceItem(ctx context.Context, in model.LineItemInput) (model.LineItem, error) {
	if in.ProductID <= 0 {
		return model.LineItem{}, model.NewValidationError("downloads", "download id required")
	}

	product, err := p.catalog.GetProduct(ctx, in.ProductID)
	if errors.Is(err, model.ErrNotFound) {
		return model.LineItem{}, model.NewValidationError("downloads",
			fmt.Sprintf("download %d does not exist", in.ProductID))
	}
	if err != nil {
		return model.LineItem{}, err
	}

	item := model.LineItem{
		ProductID: product.ID,
		VariantID: model.ProductVariantID(product.ID),
		Name:      product.Title,
		UnitPrice: product.Price,
		Quantity:  1,
	}

	if in.HasVariant() {
		variant, ok := product.Variant(*in.PriceID)
		if !ok {
			return model.LineItem{}, model.NewValidationError("price_id",
				fmt.Sprintf("download %d has no price option %q", product.ID, *in.PriceID))
		}
		item.VariantID = variant.Key
		item.UnitPrice = variant.Amount
	}

	item.Price = item.UnitPrice
	return item, nil
}
