package cart

import (
	"context"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

// StorageKey is the single persisted key holding the serialized cart array
const StorageKey = "roothaus_cart"

// Change is what every save broadcasts to the other stores sharing a storage
type Change struct {
	Origin string            `json:"origin"`
	Items  []domain.CartItem `json:"items"`
}

// Storage is the persistence port of the cart: the browser's local storage in the
// original storefront, Redis or memory here.
type Storage interface {
	// Load returns the persisted cart; an empty or missing value is an empty cart
	Load(ctx context.Context) ([]domain.CartItem, error)
	// Save replaces the persisted cart and notifies subscribers
	Save(ctx context.Context, change Change) error
	// Subscribe registers fn for every saved change until the returned cancel is called
	Subscribe(ctx context.Context, fn func(Change)) (func(), error)
}
