package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Store is the keyed persistent store. Update runs fn in one atomic
// transaction: either every write commits or none does.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping() error
	Close() error
}

// Tx is the view of the store inside one transaction.
// Values are JSON-encoded by the implementation.
type Tx interface {
	// Create stores a new record paid for by payer. Fails with ErrExists.
	Create(key string, payer Pubkey, v any) error

	// Get decodes an existing record into v. Fails with ErrNotFound.
	Get(key string, v any) error

	// Put overwrites an existing record or inserts a new one.
	Put(key string, v any) error

	// Delete removes a record and reclaims its storage to refundTo.
	Delete(key string, refundTo Pubkey) (Reclaim, error)

	// Scan visits records whose key starts with prefix, in key order.
	// Returning ErrStopScan from fn ends the scan without error.
	Scan(prefix string, fn func(key string, decode func(v any) error) error) error
}

// Reclaim reports the storage released by a Delete.
type Reclaim struct {
	Key         string `json:"key"`
	Payer       Pubkey `json:"payer"`
	Beneficiary Pubkey `json:"beneficiary"`
	Bytes       int64  `json:"bytes"`
}

// ValueTransfer moves token amounts between balances inside a store
// transaction, so a failed operation also rolls the transfer back.
type ValueTransfer interface {
	Transfer(tx Tx, req TransferRequest) error
	Decimals(tx Tx, mint Pubkey) (uint8, error)
	Balance(tx Tx, mint, owner Pubkey) (uint64, error)
}

// Clock returns unix seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// EventSink receives committed events. Implementations must not block
// the caller for long and may drop events.
type EventSink interface {
	Publish(ctx context.Context, events []Event)
}
