package catalog

import (
	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	"github.com/polkiloo/memberpay/internal/domain/model"
)

// Catalog is a static, in-memory list of purchasable membership tiers.
// Changing the lineup requires a redeploy.
type Catalog struct {
	products []model.Product
	byID     map[string]model.Product
}

// New builds a catalog from the given products.
func New(products ...model.Product) *Catalog {
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Catalog{products: products, byID: byID}
}

// Default returns the production membership lineup. Prices are minor units.
func Default() *Catalog {
	return New(
		model.Product{ID: "month", Name: "月度会员", Price: 1990, OriginalPrice: 1990, DurationDays: 30},
		model.Product{ID: "quarter", Name: "季度会员", Price: 2990, OriginalPrice: 5990, DurationDays: 90},
		model.Product{ID: "year", Name: "年度会员", Price: 4990, OriginalPrice: 19990, DurationDays: 365, Recommend: true},
	)
}

// List returns all products in display order.
func (c *Catalog) List() []model.Product {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (model.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return model.Product{}, domainErrors.ErrProductNotFound
	}
	return p, nil
}
