package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

// MemoryStorage keeps the serialized cart in memory. Several stores sharing one
// MemoryStorage behave like browser tabs of the same origin.
type MemoryStorage struct {
	mu     sync.Mutex
	value  []byte
	nextID int
	subs   map[int]func(Change)
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{subs: make(map[int]func(Change))}
}

func (m *MemoryStorage) Load(ctx context.Context) ([]domain.CartItem, error) {
	m.mu.Lock()
	raw := m.value
	m.mu.Unlock()
	return decodeItems(raw)
}

func (m *MemoryStorage) Save(ctx context.Context, change Change) error {
	raw, err := json.Marshal(change.Items)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.value = raw
	subs := make([]func(Change), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	// delivered outside the lock so subscribers may call back into the storage
	for _, fn := range subs {
		fn(Change{Origin: change.Origin, Items: cloneItems(change.Items)})
	}
	return nil
}

func (m *MemoryStorage) Subscribe(ctx context.Context, fn func(Change)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}, nil
}

// Raw returns the serialized value, as it would appear under StorageKey
func (m *MemoryStorage) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.value))
	copy(out, m.value)
	return out
}

func decodeItems(raw []byte) ([]domain.CartItem, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return nil
	}
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
