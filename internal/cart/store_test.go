package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/notify"
)

type productMap map[string]domain.Product

func (m productMap) Get(id string) (domain.Product, bool) {
	p, ok := m[id]
	return p, ok
}

var testProducts = productMap{
	"men-briefcase-001": {ID: "men-briefcase-001", Name: "Executive Briefcase", Price: decimal.NewFromInt(450), Currency: "USD"},
	"men-wallet-001":    {ID: "men-wallet-001", Name: "Classic Leather Wallet", Price: decimal.NewFromInt(120), Currency: "USD"},
	"pet-collar-001":    {ID: "pet-collar-001", Name: "Luxury Dog Collar", Price: decimal.RequireFromString("75.50"), Currency: "USD"},
}

func newTestStore(t *testing.T, storage Storage) (*Store, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	s, err := NewStore(context.Background(), storage, testProducts, rec, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, rec
}

func TestAdd_SameProductIncrementsQuantity(t *testing.T) {
	s, rec := newTestStore(t, NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "men-briefcase-001", 1))
	require.NoError(t, s.Add(ctx, "men-briefcase-001", 2))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "men-briefcase-001", items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Executive Briefcase", items[0].Name)

	notes := rec.All()
	require.Len(t, notes, 2)
	assert.Equal(t, notify.Notification{Message: "Added to cart!", Level: notify.LevelSuccess}, notes[0])
}

func TestAdd_UnknownProductIsNoop(t *testing.T) {
	storage := NewMemoryStorage()
	s, rec := newTestStore(t, storage)

	require.NoError(t, s.Add(context.Background(), "nope", 1))
	assert.Empty(t, s.Items())
	assert.Empty(t, rec.All())
	assert.Empty(t, storage.Raw(), "nothing persisted")
}

func TestAdd_NonPositiveQuantityIsNoop(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryStorage())
	require.NoError(t, s.Add(context.Background(), "men-briefcase-001", 0))
	require.NoError(t, s.Add(context.Background(), "men-briefcase-001", -3))
	assert.Empty(t, s.Items())
}

func TestSetQuantity(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "men-briefcase-001", 1))
	require.NoError(t, s.Add(ctx, "men-wallet-001", 1))

	require.NoError(t, s.SetQuantity(ctx, "men-wallet-001", 5))
	assert.Equal(t, 6, s.Count())

	require.NoError(t, s.SetQuantity(ctx, "men-wallet-001", 0))
	for _, item := range s.Items() {
		assert.NotEqual(t, "men-wallet-001", item.ID)
	}

	require.NoError(t, s.SetQuantity(ctx, "men-briefcase-001", -1))
	assert.Empty(t, s.Items())

	// unknown ids are ignored
	require.NoError(t, s.SetQuantity(ctx, "pet-collar-001", 4))
	assert.Empty(t, s.Items())
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "men-briefcase-001", 1))
	require.NoError(t, s.Add(ctx, "pet-collar-001", 2))

	require.NoError(t, s.Remove(ctx, "men-briefcase-001"))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "pet-collar-001", items[0].ID)
}

func TestTotal(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryStorage())
	ctx := context.Background()
	assert.True(t, s.Total().IsZero())

	require.NoError(t, s.Add(ctx, "men-briefcase-001", 1))
	require.NoError(t, s.Add(ctx, "men-wallet-001", 2))
	require.NoError(t, s.Add(ctx, "pet-collar-001", 2))

	// 450 + 2*120 + 2*75.50
	assert.Equal(t, "841", s.Total().String())
}

func TestPersistsEveryMutation(t *testing.T) {
	storage := NewMemoryStorage()
	s, _ := newTestStore(t, storage)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "men-wallet-001", 2))
	assert.JSONEq(t,
		`[{"id":"men-wallet-001","name":"Classic Leather Wallet","price":"120","image":"","quantity":2}]`,
		string(storage.Raw()))

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, "null", string(storage.Raw()))

	// a fresh store (a page reload) sees the persisted state
	require.NoError(t, s.Add(ctx, "men-briefcase-001", 1))
	reloaded, _ := newTestStore(t, storage)
	assert.Equal(t, 1, reloaded.Count())
}

func TestCrossTabSync(t *testing.T) {
	storage := NewMemoryStorage()
	tabA, _ := newTestStore(t, storage)
	tabB, _ := newTestStore(t, storage)
	ctx := context.Background()

	var badge []int
	tabB.OnChange(func(count int) { badge = append(badge, count) })

	require.NoError(t, tabA.Add(ctx, "men-briefcase-001", 2))
	assert.Equal(t, 2, tabB.Count())
	assert.Equal(t, []int{2}, badge)

	require.NoError(t, tabB.SetQuantity(ctx, "men-briefcase-001", 0))
	assert.Equal(t, 0, tabA.Count())
}

func TestNewStore_DropsInvalidPersistedLines(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), Change{Items: []domain.CartItem{
		{ID: "a", Quantity: 1, Price: decimal.NewFromInt(1)},
		{ID: "a", Quantity: 2, Price: decimal.NewFromInt(1)},
		{ID: "b", Quantity: 0},
	}}))

	s, _ := newTestStore(t, storage)
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

type failingStorage struct{ *MemoryStorage }

func (f failingStorage) Save(ctx context.Context, change Change) error {
	return errors.New("quota exceeded")
}

func TestPersistFailureIsReported(t *testing.T) {
	s, rec := newTestStore(t, failingStorage{NewMemoryStorage()})
	err := s.Add(context.Background(), "men-briefcase-001", 1)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Empty(t, rec.All(), "no success notification when the save failed")
}
