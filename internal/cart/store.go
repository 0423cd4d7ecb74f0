package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/notify"
)

// ProductLookup resolves catalog products for add-to-cart
type ProductLookup interface {
	Get(id string) (domain.Product, bool)
}

// Store is the shopper's cart: the source of truth for "current cart" until checkout.
// Every mutation persists the full cart; changes saved by other stores on the same
// storage replace the in-memory cart (last writer wins, no locking across stores).
type Store struct {
	mu        sync.Mutex
	items     []domain.CartItem
	listeners []func(count int)

	storage  Storage
	products ProductLookup
	notifier notify.Notifier
	logger   *zap.Logger
	origin   string
	cancel   func()
}

// NewStore loads the persisted cart and subscribes to changes made elsewhere
func NewStore(ctx context.Context, storage Storage, products ProductLookup, notifier notify.Notifier, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	s := &Store{
		storage:  storage,
		products: products,
		notifier: notifier,
		logger:   logger,
		origin:   uuid.NewString(),
	}

	items, err := storage.Load(ctx)
	if err != nil {
		// an unreadable cart starts empty, the next save overwrites it
		logger.Warn("Failed to load persisted cart, starting empty", zap.Error(err))
		items = nil
	}
	s.items = normalize(items)

	cancel, err := storage.Subscribe(ctx, s.apply)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to cart changes: %w", err)
	}
	s.cancel = cancel
	return s, nil
}

// Add puts qty units of a catalog product in the cart. Unknown products and
// non-positive quantities are ignored.
func (s *Store) Add(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return nil
	}
	product, ok := s.products.Get(productID)
	if !ok {
		s.logger.Debug("Ignoring add of unknown product", zap.String("product_id", productID))
		return nil
	}

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == productID {
			s.items[i].Quantity += qty
			found = true
			break
		}
	}
	if !found {
		s.items = append(s.items, domain.CartItem{
			ID:       product.ID,
			Name:     product.Name,
			Price:    product.Price,
			Image:    product.Image,
			Quantity: qty,
		})
	}
	snapshot := cloneItems(s.items)
	s.mu.Unlock()

	if err := s.persist(ctx, snapshot); err != nil {
		return err
	}
	s.notifier.Notify(notify.Notification{Message: "Added to cart!", Level: notify.LevelSuccess})
	return nil
}

// Remove drops a product from the cart
func (s *Store) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	kept := s.items[:0:0]
	for _, item := range s.items {
		if item.ID != productID {
			kept = append(kept, item)
		}
	}
	s.items = kept
	snapshot := cloneItems(s.items)
	s.mu.Unlock()

	return s.persist(ctx, snapshot)
}

// SetQuantity changes the quantity of an item already in the cart; qty <= 0 removes it
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, productID)
	}

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == productID {
			s.items[i].Quantity = qty
			found = true
			break
		}
	}
	snapshot := cloneItems(s.items)
	s.mu.Unlock()

	if !found {
		return nil
	}
	return s.persist(ctx, snapshot)
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	return s.persist(ctx, nil)
}

// Total is the sum of price * quantity in the catalog currency. Display
// conversion never applies here.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count is the number of units in the cart (the badge value)
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countUnits(s.items)
}

// Items returns a copy of the cart lines
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// OnChange registers a listener called with the unit count after every change,
// local or remote
func (s *Store) OnChange(fn func(count int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Close stops listening for changes made elsewhere
func (s *Store) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Store) persist(ctx context.Context, snapshot []domain.CartItem) error {
	s.emit(countUnits(snapshot))
	if err := s.storage.Save(ctx, Change{Origin: s.origin, Items: snapshot}); err != nil {
		s.logger.Error("Failed to persist cart", zap.Error(err))
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}

// apply replaces the in-memory cart with a change saved by another store
func (s *Store) apply(change Change) {
	if change.Origin == s.origin {
		return
	}
	s.mu.Lock()
	s.items = normalize(change.Items)
	count := countUnits(s.items)
	s.mu.Unlock()
	s.emit(count)
}

func (s *Store) emit(count int) {
	s.mu.Lock()
	listeners := make([]func(int), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(count)
	}
}

// normalize drops lines that break the cart invariants (quantity >= 1, one line per id)
func normalize(items []domain.CartItem) []domain.CartItem {
	var out []domain.CartItem
	seen := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.ID == "" {
			continue
		}
		if i, ok := seen[item.ID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		seen[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}

func countUnits(items []domain.CartItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
