package account

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// NeutralBoostName is the boost name of an account without an active boost.
const NeutralBoostName = "None"

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var one = decimal.NewFromInt(1)

// Account represents the domain model for a reward participant.
type Account struct {
	UserID         string          `json:"user_id"`
	WalletAddress  string          `json:"wallet_address,omitzero"`
	Balance        decimal.Decimal `json:"balance"`
	FarmReadyTime  time.Time       `json:"farm_ready_time,omitzero"`
	FarmClaimCount int64           `json:"farm_claim_count"`
	ActiveBoost    ActiveBoost     `json:"active_boost"`
	DailyCheckin   DailyCheckin    `json:"daily_checkin"`
	ReferralCode   string          `json:"referral_code"`
	ReferredBy     string          `json:"referred_by,omitzero"`
	ReferralCount  int64           `json:"referral_count"`
	WelcomeClaimed bool            `json:"welcome_claimed"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// Version is managed by the account store.
	Version int64 `json:"-"`
}

// ActiveBoost is the farming multiplier currently applied to an account.
type ActiveBoost struct {
	Multiplier decimal.Decimal `json:"multiplier"`
	EndTime    time.Time       `json:"end_time,omitzero"`
	Name       string          `json:"name"`
}

// DailyCheckin tracks the consecutive-day check-in streak.
type DailyCheckin struct {
	Streak    int       `json:"streak"`
	LastClaim time.Time `json:"last_claim,omitzero"`
}

// NeutralBoost returns a boost that leaves farming rewards unchanged.
func NeutralBoost() ActiveBoost {
	return ActiveBoost{Multiplier: one, Name: NeutralBoostName}
}

// MultiplierAt returns the boost multiplier in effect at now.
// A boost applies strictly before its end time.
func (b ActiveBoost) MultiplierAt(now time.Time) decimal.Decimal {
	if b.EndTime.IsZero() || !now.Before(b.EndTime) || b.Multiplier.LessThan(one) {
		return one
	}
	return b.Multiplier
}

// ActiveAt reports whether the boost still applies at now.
func (b ActiveBoost) ActiveAt(now time.Time) bool {
	return !b.EndTime.IsZero() && now.Before(b.EndTime)
}

// TaskSubmission is an external identifier a user handed in for a task that
// is verified after a waiting period.
type TaskSubmission struct {
	UserID      string    `json:"user_id"`
	TaskID      string    `json:"task_id"`
	ExternalID  string    `json:"external_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ReadyAt returns the earliest time the submission can be rewarded.
func (s *TaskSubmission) ReadyAt(delay time.Duration) time.Time {
	return s.SubmittedAt.Add(delay)
}

// New creates an Account with neutral farming state.
func New(userID, referralCode string, now time.Time) *Account {
	return &Account{
		UserID:       userID,
		Balance:      decimal.Zero,
		ActiveBoost:  NeutralBoost(),
		ReferralCode: referralCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a copy of the account that can be mutated independently.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// HasWallet reports whether a TON wallet is connected.
func (a *Account) HasWallet() bool {
	return a.WalletAddress != ""
}

// NewReferralCode returns a random 8 character code drawn from A-Z0-9.
func NewReferralCode() (string, error) {
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	code := make([]byte, referralCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		code[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// IsReferralCode reports whether s has the shape of a referral code.
func IsReferralCode(s string) bool {
	if len(s) != referralCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// RegisterRequest represents an account registration request.
// The user id comes from the bearer token.
type RegisterRequest struct {
	WalletAddress string `json:"wallet_address,omitzero"`
	ReferralCode  string `json:"referral_code,omitzero" validate:"omitempty,len=8,alphanum,uppercase"`
}

// ConnectWalletRequest represents a wallet connection request
type ConnectWalletRequest struct {
	Address   string `json:"address" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Stats is the aggregated view of an account's reward activity.
type Stats struct {
	Balance        decimal.Decimal `json:"balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	FarmClaimCount int64           `json:"farm_claim_count"`
	ReferralCount  int64           `json:"referral_count"`
	ReferralCode   string          `json:"referral_code"`
	DailyStreak    int             `json:"daily_streak"`
	WelcomeClaimed bool            `json:"welcome_claimed"`
	BoostActive    bool            `json:"boost_active"`
	BoostName      string          `json:"boost_name"`
}

// Wallet is the connected wallet with its on-chain TON balance.
type Wallet struct {
	Address      string          `json:"address"`
	UserFriendly string          `json:"user_friendly"`
	BalanceTON   decimal.Decimal `json:"balance_ton"`
}

// PaymentRequest asks for a TON transfer deep link for a purchase.
type PaymentRequest struct {
	Kind      string          `json:"kind" validate:"required,oneof=presale boost"`
	ProductID string          `json:"product_id,omitzero"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentLink is a ton:// transfer link with the memo that identifies the purchase.
type PaymentLink struct {
	Link        string          `json:"link"`
	Destination string          `json:"destination"`
	AmountTON   decimal.Decimal `json:"amount_ton"`
	AmountNano  string          `json:"amount_nano"`
	Memo        string          `json:"memo"`
}
