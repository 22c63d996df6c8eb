package oracle

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/tonkeeper/tongo/ton"
)

const nanoExp = 9

// NormalizeAddress parses any TON address form and returns its raw 0:<hex> form.
func NormalizeAddress(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	acc, err := ton.ParseAccountID(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	return acc.String(), nil
}

// FriendlyAddress converts a raw address to the bounceable URL-safe form.
// Unparseable input is returned unchanged.
func FriendlyAddress(addr string, testnet bool) string {
	acc, err := ton.ParseAccountID(addr)
	if err != nil {
		return addr
	}
	return acc.ToHuman(true, testnet)
}

// SameAddress reports whether a and b denote the same account.
func SameAddress(a, b string) bool {
	ra, err := NormalizeAddress(a)
	if err != nil {
		return false
	}
	rb, err := NormalizeAddress(b)
	if err != nil {
		return false
	}
	return ra == rb
}

// NanoToTON converts nanoTON to TON.
func NanoToTON(nano int64) decimal.Decimal {
	return decimal.New(nano, -nanoExp)
}

// TONToNano converts TON to nanoTON, truncating anything below one nanoTON.
func TONToNano(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(nanoExp).Truncate(0)
}

// PaymentLink builds a ton://transfer deep link asking a wallet to send amount
// to destination with memo as the transfer comment.
func PaymentLink(destination string, amount decimal.Decimal, memo string) string {
	q := url.Values{}
	q.Set("amount", TONToNano(amount).String())
	if memo != "" {
		q.Set("text", memo)
	}
	return fmt.Sprintf("ton://transfer/%s?%s", destination, q.Encode())
}
