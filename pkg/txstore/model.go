package txstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/chainsafe/qtx-rewards/pkg/ledger"
)

// TransactionDao is a data access object that maps directly to the 'transactions' table in PostgreSQL.
type TransactionDao struct {
	bun.BaseModel  `bun:"table:transactions,alias:t"`
	ID             string            `bun:"id,pk,type:varchar(36)"`
	UserID         string            `bun:"user_id,notnull,type:varchar(128)"`
	Type           string            `bun:"type,notnull,type:varchar(32)"`
	Amount         string            `bun:"amount,notnull,type:numeric(38,18)"`
	Token          string            `bun:"token,notnull,type:varchar(8)"`
	ExternalAmount *string           `bun:"external_amount,type:numeric(38,18)"`
	Status         string            `bun:"status,notnull,type:varchar(16)"`
	ExternalRef    *string           `bun:"external_ref,type:varchar(128)"`
	IdempotencyKey string            `bun:"idempotency_key,notnull,unique,type:varchar(255)"`
	Metadata       map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt      time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// totalRow is the scan target for per-user aggregates.
type totalRow struct {
	UserID string `bun:"user_id"`
	Total  string `bun:"total"`
}

func toTransactionDao(tx *ledger.Transaction) *TransactionDao {
	dao := &TransactionDao{
		ID:             tx.ID,
		UserID:         tx.UserID,
		Type:           string(tx.Type),
		Amount:         tx.Amount.String(),
		Token:          tx.Token,
		Status:         string(tx.Status),
		IdempotencyKey: tx.IdempotencyKey,
		Metadata:       tx.Metadata,
		CreatedAt:      tx.CreatedAt,
	}
	if tx.ExternalAmount != nil {
		s := tx.ExternalAmount.String()
		dao.ExternalAmount = &s
	}
	if tx.ExternalRef != "" {
		dao.ExternalRef = &tx.ExternalRef
	}
	return dao
}

func toTransaction(dao *TransactionDao) (*ledger.Transaction, error) {
	amount, err := decimal.NewFromString(dao.Amount)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Transaction{
		ID:             dao.ID,
		UserID:         dao.UserID,
		Type:           ledger.Type(dao.Type),
		Amount:         amount,
		Token:          dao.Token,
		Status:         ledger.Status(dao.Status),
		IdempotencyKey: dao.IdempotencyKey,
		Metadata:       dao.Metadata,
		CreatedAt:      dao.CreatedAt,
	}
	if dao.ExternalAmount != nil {
		ext, err := decimal.NewFromString(*dao.ExternalAmount)
		if err != nil {
			return nil, err
		}
		tx.ExternalAmount = &ext
	}
	if dao.ExternalRef != nil {
		tx.ExternalRef = *dao.ExternalRef
	}
	return tx, nil
}
