package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/pkg/errors"
)

//go:embed products.json
var productsJSON []byte

// minSearchLength matches the storefront search box: shorter queries return nothing
const minSearchLength = 2

// Catalog is the immutable product list, loaded once per process
type Catalog struct {
	products []domain.Product
	byID     map[string]int
}

// Load parses the embedded product list
func Load() (*Catalog, error) {
	return Parse(productsJSON)
}

// Parse builds a catalog from a JSON product array
func Parse(raw []byte) (*Catalog, error) {
	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		products: products,
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		if !p.Category.IsValid() {
			return nil, fmt.Errorf("product %q has unknown category %q", p.ID, p.Category)
		}
		if p.Currency == "" {
			c.products[i].Currency = domain.BaseCurrency
		}
		c.byID[p.ID] = i
	}
	return c, nil
}

// All returns every product in catalog order
func (c *Catalog) All() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get looks a product up by id
func (c *Catalog) Get(id string) (domain.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// MustGet is Get with a typed not-found error, for HTTP handlers
func (c *Catalog) MustGet(id string) (domain.Product, error) {
	p, ok := c.Get(id)
	if !ok {
		return domain.Product{}, &errors.ErrNotFound{Resource: "product", ID: id}
	}
	return p, nil
}

// ByCategory returns the products of one department
func (c *Catalog) ByCategory(category domain.Category) []domain.Product {
	var out []domain.Product
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Featured returns the first n products
func (c *Catalog) Featured(n int) []domain.Product {
	if n > len(c.products) {
		n = len(c.products)
	}
	if n < 0 {
		n = 0
	}
	out := make([]domain.Product, n)
	copy(out, c.products[:n])
	return out
}

// Search matches the query against name, description and category, case-insensitively
func (c *Catalog) Search(query string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < minSearchLength {
		return nil
	}
	var out []domain.Product
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(string(p.Category)), q) {
			out = append(out, p)
		}
	}
	return out
}
