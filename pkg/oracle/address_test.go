package oracle

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	friendly := FriendlyAddress(receiverRaw, false)
	require.NotEqual(t, receiverRaw, friendly)

	raw, err := NormalizeAddress(friendly)
	require.NoError(t, err)
	assert.Equal(t, receiverRaw, raw)

	_, err = NormalizeAddress("")
	assert.True(t, errors.Is(err, ErrInvalidAddress))
	_, err = NormalizeAddress("0:zz")
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	assert.True(t, SameAddress(friendly, receiverRaw))
	assert.False(t, SameAddress(senderRaw, receiverRaw))
}

func TestNanoConversion(t *testing.T) {
	assert.True(t, NanoToTON(1_500_000_000).Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "250000000", TONToNano(decimal.RequireFromString("0.25")).String())
	assert.Equal(t, "1", TONToNano(decimal.RequireFromString("0.0000000019")).String())
}

func TestPaymentLink(t *testing.T) {
	link := PaymentLink(receiverRaw, decimal.RequireFromString("2.5"), "boost_3_user42")
	assert.Equal(t, "ton://transfer/"+receiverRaw+"?amount=2500000000&text=boost_3_user42", link)

	noMemo := PaymentLink(receiverRaw, decimal.NewFromInt(1), "")
	assert.Equal(t, "ton://transfer/"+receiverRaw+"?amount=1000000000", noMemo)
}
