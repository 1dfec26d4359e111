package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseUnits(t *testing.T) {
	got, err := BaseUnits(decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	assert.Zero(t, want.Cmp(got))

	got, err = BaseUnits(decimal.Zero)
	require.NoError(t, err)
	assert.Zero(t, got.Sign())

	// Smallest representable amount.
	got, err = BaseUnits(decimal.New(1, -18))
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Int64())
}

func TestBaseUnitsRejectsInvalidAmounts(t *testing.T) {
	_, err := BaseUnits(decimal.RequireFromString("-1"))
	require.Error(t, err)

	// Finer than 18 decimals cannot be represented on chain.
	_, err = BaseUnits(decimal.New(1, -19))
	require.Error(t, err)
}

func TestAmountFromBaseUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("123.456789")
	units, err := BaseUnits(amount)
	require.NoError(t, err)
	assert.True(t, amount.Equal(AmountFromBaseUnits(units)))
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.NoError(t, err)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", addr.Hex())

	_, err = ParseAddress("not-an-address")
	require.Error(t, err)
}

func TestParseHash(t *testing.T) {
	h, err := ParseHash("0x2f1c5c2b495b12b9409de5c4e2225baba4dbd88b9a316ed26d1a1c6ee2a74f54")
	require.NoError(t, err)
	assert.Equal(t, "0x2f1c5c2b495b12b9409de5c4e2225baba4dbd88b9a316ed26d1a1c6ee2a74f54", h.Hex())

	_, err = ParseHash("0x1234")
	require.Error(t, err)
}
