package products

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockledger/stockledger/internal/masterdata/shared"
)

type memoryRepo struct {
	items  map[int64]Product
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Product{}, nextID: 1}
}

func (m *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range m.items {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.items[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	for _, existing := range m.items {
		if existing.SKU == product.SKU {
			return Product{}, shared.ErrDuplicate
		}
	}
	product.ID = m.nextID
	m.nextID++
	m.items[product.ID] = product
	return product, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	m.items[id] = product
	return nil
}

func (m *memoryRepo) Deactivate(ctx context.Context, id int64) error {
	p, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = shared.StatusInactive
	m.items[id] = p
	return nil
}

func TestCreateDefaultsStatusAndUnit(t *testing.T) {
	svc := NewService(newMemoryRepo())

	created, err := svc.Create(context.Background(), Product{SKU: "SKU-1", Name: "Widget"})
	require.NoError(t, err)
	require.Equal(t, shared.StatusActive, created.Status)
	require.Equal(t, "pcs", created.Unit)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Name: "No SKU"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{SKU: "SKU-1"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{SKU: "SKU-1", Name: "Widget", MinStockLevel: -5})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{SKU: "SKU-1", Name: "Widget", Status: "archived"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateDuplicateSKU(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{SKU: "SKU-1", Name: "Widget"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Product{SKU: "SKU-1", Name: "Other"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestDeactivateKeepsRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{SKU: "SKU-1", Name: "Widget"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, created.ID))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, shared.StatusInactive, got.Status)
}

func TestGetInvalidID(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Get(context.Background(), 0)
	require.True(t, errors.Is(err, shared.ErrInvalidID))
}
