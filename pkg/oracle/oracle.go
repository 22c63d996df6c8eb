// Package oracle verifies TON payments against an external ledger.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoMatchingPayment is returned when no transfer satisfies the query.
	ErrNoMatchingPayment = errors.New("no matching payment")
	// ErrUpstreamUnavailable is returned for transport errors, timeouts, throttling and 5xx responses.
	ErrUpstreamUnavailable = errors.New("ledger oracle unavailable")
	// ErrInvalidAddress is returned when an address cannot be parsed.
	ErrInvalidAddress = errors.New("invalid TON address")
)

// PaymentQuery describes the transfer a purchase expects.
type PaymentQuery struct {
	Sender      string
	Destination string
	Amount      decimal.Decimal
	Since       time.Time
}

// Payment is a confirmed on-chain transfer.
type Payment struct {
	Hash      string          `json:"hash"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Comment   string          `json:"comment,omitzero"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client queries the external ledger.
type Client interface {
	// FindPayment returns the first transfer matching q or ErrNoMatchingPayment.
	FindPayment(ctx context.Context, q PaymentQuery) (*Payment, error)
	// Balance returns the TON balance of address.
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}
