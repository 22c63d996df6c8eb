// Package ledger defines the append-only reward transaction record.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type identifies what produced a transaction.
type Type string

const (
	TypePresale            Type = "presale"
	TypeBoostPurchase      Type = "boost_purchase"
	TypeFarmClaim          Type = "farm_claim"
	TypeTaskReward         Type = "task_reward"
	TypeDailyCheckin       Type = "daily_checkin"
	TypeWelcomeReward      Type = "welcome_reward"
	TypeReferralCommission Type = "referral_commission"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	TokenQTX = "QTX"
	TokenTON = "TON"
)

// IsEarning reports whether the type counts toward a user's total earned.
func (t Type) IsEarning() bool {
	return strings.Contains(string(t), "reward") || t == TypeFarmClaim
}

// Transaction is an immutable record of a balance change.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Type           Type              `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	Token          string            `json:"token"`
	ExternalAmount *decimal.Decimal  `json:"external_amount,omitempty"`
	Status         Status            `json:"status"`
	ExternalRef    string            `json:"external_ref,omitzero"`
	IdempotencyKey string            `json:"-"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// New creates a completed transaction with a fresh id.
func New(userID string, typ Type, amount decimal.Decimal, idempotencyKey string, now time.Time) *Transaction {
	return &Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           typ,
		Amount:         amount,
		Token:          TokenQTX,
		Status:         StatusCompleted,
		IdempotencyKey: idempotencyKey,
		Metadata:       map[string]string{},
		CreatedAt:      now,
	}
}

// WithMeta sets a metadata entry and returns the transaction.
func (t *Transaction) WithMeta(key string, value any) *Transaction {
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	t.Metadata[key] = fmt.Sprint(value)
	return t
}

// WithExternal records the on-chain payment that backs the transaction.
func (t *Transaction) WithExternal(ref string, amount decimal.Decimal) *Transaction {
	t.ExternalRef = ref
	t.ExternalAmount = &amount
	return t
}

// Idempotency keys. Appending two transactions with the same key is rejected
// by the transaction log.

func FarmClaimKey(userID string, claimCount int64) string {
	return fmt.Sprintf("%s:%s:%d", TypeFarmClaim, userID, claimCount)
}

func DailyCheckinKey(userID string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", TypeDailyCheckin, userID, day.Format(time.DateOnly))
}

func TaskRewardKey(userID, taskID string) string {
	return fmt.Sprintf("%s:%s:%s", TypeTaskReward, userID, taskID)
}

func WelcomeRewardKey(userID string) string {
	return fmt.Sprintf("%s:%s", TypeWelcomeReward, userID)
}

func PurchaseKey(typ Type, externalRef string) string {
	return fmt.Sprintf("%s:%s", typ, externalRef)
}

func ReferralCommissionKey(claimTransactionID string) string {
	return fmt.Sprintf("%s:%s", TypeReferralCommission, claimTransactionID)
}

// Sum returns the sum of completed transaction amounts.
func Sum(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Status == StatusCompleted {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// SumEarned returns the sum of completed earning transactions.
func SumEarned(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Status == StatusCompleted && tx.Type.IsEarning() {
			total = total.Add(tx.Amount)
		}
	}
	return total
}
