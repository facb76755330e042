package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is a token quantity as received from an upstream source.
// Scaled reports whether Value is already expressed in whole tokens
// (subgraph BigDecimal fields) or is a raw fixed-point integer that still
// needs dividing by 10^decimals (on-chain log data).
type Amount struct {
	Value  decimal.Decimal
	Scaled bool
}

// RawAmount wraps an on-chain integer.
func RawAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{Value: decimal.Zero}
	}
	return Amount{Value: decimal.NewFromBigInt(v, 0)}
}

// ScaledAmount wraps a value that is already in token units.
func ScaledAmount(v decimal.Decimal) Amount {
	return Amount{Value: v, Scaled: true}
}

// ParseScaledAmount parses a decimal string from an upstream that reports
// human-readable quantities.
func ParseScaledAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return ScaledAmount(v), nil
}

// Human returns the amount in whole-token units. Raw values are shifted by
// decimals exactly once; scaled values are returned unchanged.
func (a Amount) Human(decimals uint8) decimal.Decimal {
	if a.Scaled {
		return a.Value
	}
	return a.Value.Shift(-int32(decimals))
}

func (a Amount) Sign() int {
	return a.Value.Sign()
}

func (a Amount) Abs() Amount {
	return Amount{Value: a.Value.Abs(), Scaled: a.Scaled}
}

func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

func (a Amount) String() string {
	return a.Value.String()
}
