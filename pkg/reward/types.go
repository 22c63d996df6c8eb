package reward

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	"github.com/chainsafe/qtx-rewards/pkg/catalog"
)

// CompleteTaskRequest represents a task completion claim
type CompleteTaskRequest struct {
	TaskID string `json:"task_id" validate:"required"`
	Proof  string `json:"proof"`
}

// QuotexTaskID is the task rewarded after a Quotex id submission has aged.
const QuotexTaskID = "quotex"

// QuotexSubmissionRequest hands in the user's Quotex account id
type QuotexSubmissionRequest struct {
	QuotexID string `json:"quotex_id" validate:"required,max=128"`
}

// TaskSubmissionResult tells when a submitted task can be completed
type TaskSubmissionResult struct {
	TaskID      string    `json:"task_id"`
	ExternalID  string    `json:"external_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	AvailableAt time.Time `json:"available_at"`
}

// PresaleRequest represents a presale purchase backed by a TON payment
type PresaleRequest struct {
	TONAmount decimal.Decimal `json:"ton_amount"`
	TxRef     string          `json:"tx_ref" validate:"required,max=128"`
}

// BoostPurchaseRequest represents a boost purchase backed by a TON payment.
// A zero TONAmount means the catalog price.
type BoostPurchaseRequest struct {
	BoostID   string          `json:"boost_id" validate:"required"`
	TONAmount decimal.Decimal `json:"ton_amount"`
	TxRef     string          `json:"tx_ref" validate:"required,max=128"`
}

// FarmClaimResult is the receipt of a farm claim
type FarmClaimResult struct {
	TransactionID   string          `json:"transaction_id"`
	Reward          decimal.Decimal `json:"reward"`
	BaseReward      decimal.Decimal `json:"base_reward"`
	Commission      decimal.Decimal `json:"commission"`
	BoostMultiplier decimal.Decimal `json:"boost_multiplier"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	NextClaimTime   time.Time       `json:"next_claim_time"`
}

// DailyCheckinResult is the receipt of a daily check-in
type DailyCheckinResult struct {
	TransactionID string          `json:"transaction_id"`
	Reward        decimal.Decimal `json:"reward"`
	NewStreak     int             `json:"new_streak"`
	Day           int             `json:"day"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	NextClaimTime time.Time       `json:"next_claim_time"`
}

// TaskResult is the receipt of a task reward
type TaskResult struct {
	TransactionID string          `json:"transaction_id"`
	TaskID        string          `json:"task_id"`
	Reward        decimal.Decimal `json:"reward"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// WelcomeResult is the receipt of the welcome reward
type WelcomeResult struct {
	TransactionID string          `json:"transaction_id"`
	Reward        decimal.Decimal `json:"reward"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// PurchaseResult is the receipt of a verified purchase
type PurchaseResult struct {
	TransactionID  string               `json:"transaction_id"`
	PaymentHash    string               `json:"payment_hash"`
	TONAmount      decimal.Decimal      `json:"ton_amount"`
	TokensCredited decimal.Decimal      `json:"tokens_credited"`
	NewBalance     decimal.Decimal      `json:"new_balance"`
	ActiveBoost    *account.ActiveBoost `json:"active_boost,omitempty"`
}

// CatalogView is the public description of the reward tables
type CatalogView struct {
	Token                  string            `json:"token"`
	BaseFarmingReward      decimal.Decimal   `json:"base_farming_reward"`
	FarmingCooldownSeconds int64             `json:"farming_cooldown_seconds"`
	ReferralCommissionRate decimal.Decimal   `json:"referral_commission_rate"`
	WelcomeReward          decimal.Decimal   `json:"welcome_reward"`
	PresaleRate            decimal.Decimal   `json:"presale_rate"`
	DailySchedule          []decimal.Decimal `json:"daily_schedule"`
	Boosts                 []catalog.Boost   `json:"boosts"`
	Tasks                  []catalog.Task    `json:"tasks"`
}

// View builds the public catalog description.
func (r *Rules) View() *CatalogView {
	c := r.catalog
	return &CatalogView{
		Token:                  c.Token(),
		BaseFarmingReward:      c.BaseFarmingReward(),
		FarmingCooldownSeconds: int64(c.FarmingCooldown() / time.Second),
		ReferralCommissionRate: c.ReferralCommissionRate(),
		WelcomeReward:          c.WelcomeReward(),
		PresaleRate:            c.PresaleRate(),
		DailySchedule:          c.DailySchedule(),
		Boosts:                 c.Boosts(),
		Tasks:                  c.Tasks(),
	}
}
