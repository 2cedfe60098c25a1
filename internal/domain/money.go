package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable is returned when a conversion is attempted before the
// exchange rate table has loaded, or for a currency that has no rate.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ToSats converts a fiat amount to satoshis using the given rate.
// rate is expressed as fiat units per satoshi.
func ToSats(fiat, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, ErrRateUnavailable
	}
	return fiat.Div(rate), nil
}

// ToFiat converts a satoshi amount back to fiat using the given rate.
func ToFiat(sats, rate decimal.Decimal) decimal.Decimal {
	return sats.Mul(rate)
}

// Fee computes the platform fee in satoshis: feePercent of the amount,
// rounded to the nearest whole satoshi, floored at minFeeSats.
// The value computed client-side is display-only; the service recomputes it
// on creation and that result is authoritative.
func Fee(amountSats int64, feePercent decimal.Decimal, minFeeSats int64) int64 {
	fee := decimal.NewFromInt(amountSats).
		Mul(feePercent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	if fee < minFeeSats {
		return minFeeSats
	}
	return fee
}
