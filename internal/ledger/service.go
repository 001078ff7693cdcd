package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/stockledger/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, productID, warehouseID int64) (Balance, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
}

// Directory is the master-data collaborator consulted before any mutation.
// Lookups happen outside the balance critical section.
type Directory interface {
	ProductActive(ctx context.Context, id int64) (bool, error)
	WarehouseActive(ctx context.Context, id int64) (bool, error)
	SupplierActive(ctx context.Context, id int64) (bool, error)
	UserActive(ctx context.Context, id int64) (bool, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator signals the read side that balances changed.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service is the movement processor: it validates, serialises, and atomically
// applies stock movements.
type Service struct {
	repo        RepositoryPort
	directory   Directory
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       CacheInvalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, directory Directory, audit AuditPort, idem *shared.IdempotencyStore, cache CacheInvalidator) *Service {
	return &Service{repo: repo, directory: directory, audit: audit, idempotency: idem, cache: cache}
}

// Receive posts an inbound receipt. Quantity is a positive magnitude.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Entry, error) {
	if input.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	return s.postMovement(ctx, movementParams{
		ProductID:      input.ProductID,
		WarehouseID:    input.WarehouseID,
		SupplierID:     input.SupplierID,
		Quantity:       input.Quantity,
		Delta:          input.Quantity,
		Type:           MovementReceipt,
		Reason:         input.Reason,
		RefDocument:    input.RefDocument,
		ActorID:        input.ActorID,
		IdempotencyKey: input.IdempotencyKey,
	})
}

// Issue posts an outbound issue. Quantity is a positive magnitude and the
// resulting balance must stay non-negative.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Entry, error) {
	if input.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	return s.postMovement(ctx, movementParams{
		ProductID:      input.ProductID,
		WarehouseID:    input.WarehouseID,
		Quantity:       input.Quantity,
		Delta:          -input.Quantity,
		Type:           MovementIssue,
		Reason:         input.Reason,
		RefDocument:    input.RefDocument,
		ActorID:        input.ActorID,
		IdempotencyKey: input.IdempotencyKey,
	})
}

// Adjust posts a signed correction. A positive delta always adds, a negative
// delta always subtracts; zero is rejected.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Entry, error) {
	if input.Delta == 0 {
		return Entry{}, ErrInvalidQuantity
	}
	return s.postMovement(ctx, movementParams{
		ProductID:      input.ProductID,
		WarehouseID:    input.WarehouseID,
		Quantity:       input.Delta,
		Delta:          input.Delta,
		Type:           MovementAdjust,
		Reason:         input.Reason,
		RefDocument:    input.RefDocument,
		ActorID:        input.ActorID,
		IdempotencyKey: input.IdempotencyKey,
	})
}

// GetBalance returns the current quantity on hand for a pair, zero by default.
func (s *Service) GetBalance(ctx context.Context, productID, warehouseID int64) (Balance, error) {
	if productID <= 0 || warehouseID <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	return s.repo.GetBalance(ctx, productID, warehouseID)
}

// List returns committed ledger entries, newest first.
func (s *Service) List(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("ledger: unknown movement type %q", filter.Type)
	}
	return s.repo.ListEntries(ctx, filter)
}

type movementParams struct {
	ProductID      int64
	WarehouseID    int64
	SupplierID     int64
	Quantity       int64
	Delta          int64
	Type           MovementType
	Reason         string
	RefDocument    string
	ActorID        int64
	IdempotencyKey string
}

func (s *Service) postMovement(ctx context.Context, params movementParams) (Entry, error) {
	if params.ProductID <= 0 {
		return Entry{}, ErrProductNotFound
	}
	if params.WarehouseID <= 0 {
		return Entry{}, ErrWarehouseNotFound
	}
	if params.ActorID <= 0 {
		return Entry{}, ErrActorRequired
	}
	if err := s.checkReferences(ctx, params); err != nil {
		return Entry{}, err
	}

	now := time.Now().UTC()
	code := newTransactionCode(now)

	insertedKey := false
	if s.idempotency != nil && params.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, params.IdempotencyKey, "ledger"); err != nil {
			return Entry{}, err
		}
		insertedKey = true
	}

	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, params.ProductID, params.WarehouseID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{ProductID: params.ProductID, WarehouseID: params.WarehouseID}
		}
		after := balance.Quantity + params.Delta
		if after < 0 {
			return ErrInsufficientStock
		}
		entry = Entry{
			Code:        code,
			ProductID:   params.ProductID,
			WarehouseID: params.WarehouseID,
			SupplierID:  params.SupplierID,
			Quantity:    params.Quantity,
			Type:        params.Type,
			Reason:      params.Reason,
			RefDocument: params.RefDocument,
			StockBefore: balance.Quantity,
			StockAfter:  after,
			CreatedBy:   params.ActorID,
			CreatedAt:   now,
		}
		entry, err = tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		balance.Quantity = after
		return tx.UpsertBalance(ctx, balance)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, params.IdempotencyKey)
		}
		return Entry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  params.ActorID,
			Action:   fmt.Sprintf("ledger:%s", params.Type),
			Entity:   "inventory_transaction",
			EntityID: entry.Code,
			Meta: map[string]any{
				"product_id":   params.ProductID,
				"warehouse_id": params.WarehouseID,
				"quantity":     params.Quantity,
				"stock_before": entry.StockBefore,
				"stock_after":  entry.StockAfter,
			},
		})
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	return entry, nil
}

func (s *Service) checkReferences(ctx context.Context, params movementParams) error {
	if s.directory == nil {
		return nil
	}
	ok, err := s.directory.ProductActive(ctx, params.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProductNotFound
	}
	ok, err = s.directory.WarehouseActive(ctx, params.WarehouseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWarehouseNotFound
	}
	if params.SupplierID != 0 {
		ok, err = s.directory.SupplierActive(ctx, params.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSupplierNotFound
		}
	}
	ok, err = s.directory.UserActive(ctx, params.ActorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrActorUnknown
	}
	return nil
}

func newTransactionCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return fmt.Sprintf("TXN-%s-%s", now.Format("20060102"), suffix)
}
