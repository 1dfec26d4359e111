// Package utils holds conversion helpers between human token amounts and
// on-chain base units, plus config parsing.
package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenDecimals is the precision of the payment token (standard ERC-20).
const TokenDecimals = 18

// BaseUnits converts a decimal token amount to integer base units.
// Negative amounts and amounts with sub-base-unit precision are rejected.
func BaseUnits(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount must be non-negative, got %s", amount)
	}
	shifted := amount.Shift(TokenDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s exceeds token precision of %d decimals", amount, TokenDecimals)
	}
	return shifted.BigInt(), nil
}

// AmountFromBaseUnits converts integer base units back to a token amount.
func AmountFromBaseUnits(units *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(units, 0).Shift(-TokenDecimals)
}

// ParseAddress parses and checksums a hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseHash parses a 0x-prefixed 32-byte transaction hash.
func ParseHash(s string) (common.Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash: %q", s)
	}
	return common.HexToHash(s), nil
}
