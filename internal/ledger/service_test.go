package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type memoryRepo struct {
	mu       sync.Mutex
	balances map[string]Balance
	entries  []Entry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[string]Balance)}
}

func pairKey(productID, warehouseID int64) string {
	return fmt.Sprintf("%d:%d", productID, warehouseID)
}

// WithTx holds the repo lock for the whole callback, mirroring the row lock
// the SQL repository takes with SELECT ... FOR UPDATE.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshotBalances := make(map[string]Balance, len(r.balances))
	for k, v := range r.balances {
		snapshotBalances[k] = v
	}
	snapshotLen := len(r.entries)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.balances = snapshotBalances
		r.entries = r.entries[:snapshotLen]
		return err
	}
	return nil
}

func (r *memoryRepo) GetBalance(ctx context.Context, productID, warehouseID int64) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bal, ok := r.balances[pairKey(productID, warehouseID)]; ok {
		return bal, nil
	}
	return Balance{ProductID: productID, WarehouseID: warehouseID}, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if filter.ProductID != 0 && e.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != 0 && e.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, productID, warehouseID int64) (Balance, error) {
	if bal, ok := tx.repo.balances[pairKey(productID, warehouseID)]; ok {
		return bal, nil
	}
	return Balance{ProductID: productID, WarehouseID: warehouseID}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[pairKey(balance.ProductID, balance.WarehouseID)] = balance
	return nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry, nil
}

type fakeDirectory struct {
	products   map[int64]bool
	warehouses map[int64]bool
	suppliers  map[int64]bool
	users      map[int64]bool
}

func allowAll() *fakeDirectory {
	return &fakeDirectory{}
}

func (d *fakeDirectory) ProductActive(ctx context.Context, id int64) (bool, error) {
	if d.products == nil {
		return true, nil
	}
	return d.products[id], nil
}

func (d *fakeDirectory) WarehouseActive(ctx context.Context, id int64) (bool, error) {
	if d.warehouses == nil {
		return true, nil
	}
	return d.warehouses[id], nil
}

func (d *fakeDirectory) SupplierActive(ctx context.Context, id int64) (bool, error) {
	if d.suppliers == nil {
		return true, nil
	}
	return d.suppliers[id], nil
}

func (d *fakeDirectory) UserActive(ctx context.Context, id int64) (bool, error) {
	if d.users == nil {
		return true, nil
	}
	return d.users[id], nil
}

func newTestService(repo *memoryRepo, dir Directory) *Service {
	return NewService(repo, dir, nil, nil, nil)
}

func TestReceiveOnEmptyPair(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	entry, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 10, SupplierID: 7, ActorID: 42})
	require.NoError(t, err)
	require.Equal(t, MovementReceipt, entry.Type)
	require.EqualValues(t, 0, entry.StockBefore)
	require.EqualValues(t, 10, entry.StockAfter)
	require.EqualValues(t, 42, entry.CreatedBy)
	require.NotEmpty(t, entry.Code)

	bal, err := svc.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 10, bal.Quantity)
}

func TestReceiveThenIssue(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 10, ActorID: 1})
	require.NoError(t, err)

	entry, err := svc.Issue(ctx, IssueInput{ProductID: 1, WarehouseID: 1, Quantity: 4, ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, MovementIssue, entry.Type)
	require.EqualValues(t, 10, entry.StockBefore)
	require.EqualValues(t, 6, entry.StockAfter)

	bal, err := svc.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 6, bal.Quantity)
}

func TestIssueInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 3, ActorID: 1})
	require.NoError(t, err)

	_, err = svc.Issue(ctx, IssueInput{ProductID: 1, WarehouseID: 1, Quantity: 4, ActorID: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)

	entries, err := svc.List(ctx, EntryFilter{ProductID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	bal, err := svc.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, bal.Quantity)
}

func TestAdjustSignConvention(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustInput{ProductID: 1, WarehouseID: 1, Delta: 6, ActorID: 1})
	require.NoError(t, err)

	entry, err := svc.Adjust(ctx, AdjustInput{ProductID: 1, WarehouseID: 1, Delta: -3, ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, MovementAdjust, entry.Type)
	require.EqualValues(t, 6, entry.StockBefore)
	require.EqualValues(t, 3, entry.StockAfter)
	require.EqualValues(t, -3, entry.EffectiveDelta())

	_, err = svc.Adjust(ctx, AdjustInput{ProductID: 1, WarehouseID: 1, Delta: 0, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Adjust(ctx, AdjustInput{ProductID: 1, WarehouseID: 1, Delta: -4, ActorID: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestZeroAndNegativeQuantityRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 0, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: -5, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Issue(ctx, IssueInput{ProductID: 1, WarehouseID: 1, Quantity: 0, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUnknownReferencesRejected(t *testing.T) {
	repo := newMemoryRepo()
	dir := &fakeDirectory{
		products:   map[int64]bool{1: true},
		warehouses: map[int64]bool{1: true},
		suppliers:  map[int64]bool{7: true},
		users:      map[int64]bool{1: true},
	}
	svc := newTestService(repo, dir)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 99, WarehouseID: 1, Quantity: 1, ActorID: 1})
	require.ErrorIs(t, err, ErrProductNotFound)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 99, Quantity: 1, ActorID: 1})
	require.ErrorIs(t, err, ErrWarehouseNotFound)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 1, SupplierID: 99, ActorID: 1})
	require.ErrorIs(t, err, ErrSupplierNotFound)

	entries, err := svc.List(ctx, EntryFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestActorRequired(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())

	_, err := svc.Receive(context.Background(), ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrActorRequired)
}

func TestUnknownActorRejected(t *testing.T) {
	repo := newMemoryRepo()
	dir := &fakeDirectory{users: map[int64]bool{1: true}}
	svc := newTestService(repo, dir)

	_, err := svc.Receive(context.Background(), ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 1, ActorID: 99})
	require.ErrorIs(t, err, ErrActorUnknown)
}

func TestTransactionCodesUnique(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		entry, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 1, ActorID: 1})
		require.NoError(t, err)
		require.False(t, seen[entry.Code], "duplicate code %s", entry.Code)
		seen[entry.Code] = true
	}
}

func TestBalanceMatchesLedgerHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 25, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, IssueInput{ProductID: 1, WarehouseID: 1, Quantity: 9, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, AdjustInput{ProductID: 1, WarehouseID: 1, Delta: -4, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 8, ActorID: 1})
	require.NoError(t, err)

	entries, err := svc.List(ctx, EntryFilter{ProductID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var sum int64
	for _, e := range entries {
		sum += e.EffectiveDelta()
	}
	bal, err := svc.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, sum, bal.Quantity)
	require.EqualValues(t, 20, bal.Quantity)
}

func TestConcurrentMovementsDoNotLoseUpdates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, allowAll())
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 100, ActorID: 1})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		i := i
		g.Go(func() error {
			if i%2 == 0 {
				_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, WarehouseID: 1, Quantity: 3, ActorID: 1})
				return err
			}
			_, err := svc.Issue(ctx, IssueInput{ProductID: 1, WarehouseID: 1, Quantity: 2, ActorID: 1})
			return err
		})
	}
	require.NoError(t, g.Wait())

	entries, err := svc.List(ctx, EntryFilter{ProductID: 1, WarehouseID: 1, Limit: 500})
	require.NoError(t, err)
	require.Len(t, entries, 51)

	// Replaying the committed history in commit order must land on the stored
	// balance, and every snapshot must chain onto the previous one.
	var replay int64
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		require.Equal(t, replay, e.StockBefore)
		replay += e.EffectiveDelta()
		require.Equal(t, replay, e.StockAfter)
	}
	bal, err := svc.GetBalance(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, replay, bal.Quantity)
	require.EqualValues(t, 100+25*3-25*2, bal.Quantity)
}
