package txstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/qtx-rewards/pkg/ledger"
)

type memoryStore struct {
	mu     sync.RWMutex
	txs    []*ledger.Transaction
	keys   map[string]struct{}
	byUser map[string][]int
}

// NewMemoryStore creates an in-process transaction log.
func NewMemoryStore() *memoryStore {
	return &memoryStore{
		keys:   make(map[string]struct{}),
		byUser: make(map[string][]int),
	}
}

func (s *memoryStore) Append(_ context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.keys[tx.IdempotencyKey]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.IdempotencyKey)
	}
	cp := *tx
	s.keys[tx.IdempotencyKey] = struct{}{}
	s.byUser[tx.UserID] = append(s.byUser[tx.UserID], len(s.txs))
	s.txs = append(s.txs, &cp)
	return nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byUser[userID]
	out := make([]*ledger.Transaction, 0, len(idx))
	for i := len(idx) - 1; i >= 0; i-- {
		cp := *s.txs[idx[i]]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) FindByExternalRef(_ context.Context, ref string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.txs {
		if tx.ExternalRef != "" && tx.ExternalRef == ref {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (s *memoryStore) HasPayment(_ context.Context, userID string, typ ledger.Type, minAmount decimal.Decimal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, i := range s.byUser[userID] {
		tx := s.txs[i]
		if tx.Type == typ && tx.Status == ledger.StatusCompleted &&
			tx.ExternalAmount != nil && tx.ExternalAmount.GreaterThanOrEqual(minAmount) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) TotalEarned(_ context.Context, userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ledger.SumEarned(s.userTxsLocked(userID)), nil
}

func (s *memoryStore) CompletedTotals(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]decimal.Decimal, len(s.byUser))
	for userID := range s.byUser {
		totals[userID] = ledger.Sum(s.userTxsLocked(userID))
	}
	return totals, nil
}

func (s *memoryStore) userTxsLocked(userID string) []*ledger.Transaction {
	idx := s.byUser[userID]
	out := make([]*ledger.Transaction, len(idx))
	for i, j := range idx {
		out[i] = s.txs[j]
	}
	return out
}
