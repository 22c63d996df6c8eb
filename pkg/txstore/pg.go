package txstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/qtx-rewards/pkg/ledger"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the transaction log
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) Append(ctx context.Context, tx *ledger.Transaction) error {
	_, err := s.db.NewInsert().
		Model(toTransactionDao(tx)).
		Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.IdempotencyKey)
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *pgStore) ListByUser(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	var daos []TransactionDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return toTransactions(daos)
}

func (s *pgStore) FindByExternalRef(ctx context.Context, ref string) (*ledger.Transaction, error) {
	dao := new(TransactionDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("external_ref = ?", ref).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return toTransaction(dao)
}

func (s *pgStore) HasPayment(ctx context.Context, userID string, typ ledger.Type, minAmount decimal.Decimal) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*TransactionDao)(nil)).
		Where("user_id = ?", userID).
		Where("type = ?", string(typ)).
		Where("status = ?", string(ledger.StatusCompleted)).
		Where("external_amount >= ?::numeric", minAmount.String()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check payments: %w", err)
	}
	return exists, nil
}

func (s *pgStore) TotalEarned(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total sql.NullString
	err := s.db.NewSelect().
		Model((*TransactionDao)(nil)).
		ColumnExpr("SUM(amount)::text").
		Where("user_id = ?", userID).
		Where("status = ?", string(ledger.StatusCompleted)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("type LIKE ?", "%reward%").
				WhereOr("type = ?", string(ledger.TypeFarmClaim))
		}).
		Scan(ctx, &total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum earned transactions: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(total.String)
}

func (s *pgStore) CompletedTotals(ctx context.Context) (map[string]decimal.Decimal, error) {
	var rows []totalRow
	err := s.db.NewSelect().
		Model((*TransactionDao)(nil)).
		Column("user_id").
		ColumnExpr("SUM(amount)::text AS total").
		Where("status = ?", string(ledger.StatusCompleted)).
		Group("user_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	totals := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		total, err := decimal.NewFromString(row.Total)
		if err != nil {
			return nil, fmt.Errorf("failed to parse total for %s: %w", row.UserID, err)
		}
		totals[row.UserID] = total
	}
	return totals, nil
}

func toTransactions(daos []TransactionDao) ([]*ledger.Transaction, error) {
	out := make([]*ledger.Transaction, 0, len(daos))
	for i := range daos {
		tx, err := toTransaction(&daos[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", daos[i].ID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}
