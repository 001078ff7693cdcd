package ledger

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementReceipt represents an inbound receipt.
	MovementReceipt MovementType = "IN"
	// MovementIssue represents an outbound issue.
	MovementIssue MovementType = "OUT"
	// MovementAdjust indicates manual corrections and stocktakes.
	MovementAdjust MovementType = "ADJUST"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementReceipt, MovementIssue, MovementAdjust:
		return true
	}
	return false
}

// Entry models one committed movement. Entries are append-only: once written
// they are never updated or deleted, corrections arrive as new ADJUST entries.
type Entry struct {
	ID          int64
	Code        string
	ProductID   int64
	WarehouseID int64
	SupplierID  int64 // optional, receipts only
	Quantity    int64 // magnitude for IN/OUT, signed delta for ADJUST
	Type        MovementType
	Reason      string
	RefDocument string
	StockBefore int64
	StockAfter  int64
	CreatedBy   int64
	CreatedAt   time.Time
}

// EffectiveDelta returns the signed quantity applied to the balance.
func (e Entry) EffectiveDelta() int64 {
	switch e.Type {
	case MovementIssue:
		return -e.Quantity
	default:
		return e.Quantity
	}
}

// Balance summarises quantity on hand per product and warehouse.
type Balance struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int64
	UpdatedAt   time.Time
}

// ReceiveInput describes an inbound receipt request.
type ReceiveInput struct {
	ProductID      int64
	WarehouseID    int64
	Quantity       int64
	SupplierID     int64
	Reason         string
	RefDocument    string
	ActorID        int64
	IdempotencyKey string
}

// IssueInput describes an outbound issue request.
type IssueInput struct {
	ProductID      int64
	WarehouseID    int64
	Quantity       int64
	Reason         string
	RefDocument    string
	ActorID        int64
	IdempotencyKey string
}

// AdjustInput describes a signed stock correction.
type AdjustInput struct {
	ProductID      int64
	WarehouseID    int64
	Delta          int64
	Reason         string
	RefDocument    string
	ActorID        int64
	IdempotencyKey string
}

// EntryFilter narrows ledger listings.
type EntryFilter struct {
	ProductID   int64
	WarehouseID int64
	Type        MovementType
	From        time.Time
	To          time.Time
	Limit       int
}

// ErrInvalidQuantity indicates a zero or negative magnitude (or zero delta).
var ErrInvalidQuantity = errors.New("ledger: quantity must be a non-zero whole number")

// ErrInsufficientStock triggered when an issue would drive the balance negative.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// ErrProductNotFound indicates an unknown or inactive product reference.
var ErrProductNotFound = errors.New("ledger: product not found")

// ErrWarehouseNotFound indicates an unknown or inactive warehouse reference.
var ErrWarehouseNotFound = errors.New("ledger: warehouse not found")

// ErrSupplierNotFound indicates an unknown or inactive supplier reference.
var ErrSupplierNotFound = errors.New("ledger: supplier not found")

// ErrActorRequired indicates a movement without an authenticated actor.
var ErrActorRequired = errors.New("ledger: actor required")

// ErrActorUnknown indicates an actor id with no matching active user.
var ErrActorUnknown = errors.New("ledger: unknown actor")

// ErrTxConflict indicates a concurrent writer invalidated the read snapshot;
// callers may safely retry since nothing was committed.
var ErrTxConflict = errors.New("ledger: transaction conflict, retry")
