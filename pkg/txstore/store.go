package txstore

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/qtx-rewards/pkg/ledger"
)

var (
	// ErrTransactionNotFound is returned when a lookup finds no matching transaction.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateTransaction is returned when the idempotency key was already appended.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

// Store is the append-only transaction log.
type Store interface {
	Append(ctx context.Context, tx *ledger.Transaction) error
	// ListByUser returns the newest transactions first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error)
	FindByExternalRef(ctx context.Context, ref string) (*ledger.Transaction, error)
	// HasPayment reports whether the user has a completed transaction of typ
	// backed by an external payment of at least minAmount.
	HasPayment(ctx context.Context, userID string, typ ledger.Type, minAmount decimal.Decimal) (bool, error)
	TotalEarned(ctx context.Context, userID string) (decimal.Decimal, error)
	// CompletedTotals returns the sum of completed amounts per user.
	CompletedTotals(ctx context.Context) (map[string]decimal.Decimal, error)
}
