// Package types provides common types used across Entitle.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Money represents a monetary value in the chain's smallest unit.
// All arithmetic is integer-only; no floating point.
//
// Examples:
//   - SOL(50_000_000)  = ◎0.05 (50,000,000 lamports)
//   - USDC(5_000_000)  = $5.00 (USDC has 6 decimal places)
//   - Lamports(1)      = the smallest representable SOL amount
type Money struct {
	Amount int64  `json:"amount"` // Smallest unit (lamports, micro-USDC, etc)
	Asset  string `json:"asset"`  // Lowercase asset code: "sol", "usdc"
}

// Asset constructors

// SOL creates a Money value in Solana lamports (1 SOL = 1e9 lamports).
func SOL(lamports int64) Money { return Money{Amount: lamports, Asset: "sol"} }

// Lamports is an alias for SOL, for call sites that read better in
// raw chain units.
func Lamports(n int64) Money { return SOL(n) }

// USDC creates a Money value in micro-USDC (1 USDC = 1e6 units).
func USDC(micro int64) Money { return Money{Amount: micro, Asset: "usdc"} }

// Zero returns a zero Money value in the specified asset.
func Zero(asset string) Money { return Money{Amount: 0, Asset: strings.ToLower(asset)} }

// Arithmetic operations

// Add adds two Money values. Panics if assets don't match.
func (m Money) Add(other Money) Money {
	m.assertSameAsset(other)
	return Money{Amount: m.Amount + other.Amount, Asset: m.Asset}
}

// Subtract subtracts another Money value. Panics if assets don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameAsset(other)
	return Money{Amount: m.Amount - other.Amount, Asset: m.Asset}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Asset: m.Asset}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Asset: m.Asset}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and asset).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Asset == other.Asset
}

// LessThan returns true if this Money is less than other. Panics if assets don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameAsset(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if assets don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameAsset(other)
	return m.Amount > other.Amount
}

// AtLeast returns true if this Money is greater than or equal to other.
// Panics if assets don't match.
func (m Money) AtLeast(other Money) bool {
	m.assertSameAsset(other)
	return m.Amount >= other.Amount
}

// Formatting methods

// FormatMajor returns the major unit string without asset symbol.
// SOL(50_000_000) formats as "0.05"; USDC(5_000_000) as "5".
// Trailing zeros after the decimal point are trimmed.
func (m Money) FormatMajor() string {
	decimals := assetDecimals(m.Asset)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	isNegative := m.Amount < 0
	absAmount := m.Amount
	if isNegative {
		absAmount = -absAmount
	}

	major := absAmount / divisor
	minor := absAmount % divisor

	var result string
	if minor == 0 {
		result = fmt.Sprintf("%d", major)
	} else {
		format := fmt.Sprintf("%%d.%%0%dd", decimals)
		result = strings.TrimRight(fmt.Sprintf(format, major, minor), "0")
	}

	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with asset symbol.
// Examples: "◎0.05", "$5", "◎-1.5"
func (m Money) String() string {
	symbol := assetSymbol(m.Asset)
	return symbol + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount  int64  `json:"amount"`
		Asset   string `json:"asset"`
		Display string `json:"display"`
	}{
		Amount:  m.Amount,
		Asset:   m.Asset,
		Display: m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts both the
// marshaled form (with display) and the plain {amount, asset} form.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount int64  `json:"amount"`
		Asset  string `json:"asset"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Amount = raw.Amount
	m.Asset = strings.ToLower(raw.Asset)
	return nil
}

// Helper functions

// assertSameAsset panics if assets don't match.
func (m Money) assertSameAsset(other Money) {
	if m.Asset != other.Asset {
		panic(fmt.Sprintf("money: asset mismatch: %s != %s", m.Asset, other.Asset))
	}
}

// assetSymbol returns the display symbol for an asset code.
func assetSymbol(asset string) string {
	symbols := map[string]string{
		"sol":  "◎",
		"usdc": "$",
		"usdt": "$",
	}
	if sym, ok := symbols[strings.ToLower(asset)]; ok {
		return sym
	}
	return strings.ToUpper(asset) + " "
}

// assetDecimals returns the number of decimal places for an asset.
func assetDecimals(asset string) int {
	decimals := map[string]int{
		"sol":  9, // lamports
		"usdc": 6,
		"usdt": 6,
	}
	if d, ok := decimals[strings.ToLower(asset)]; ok {
		return d
	}
	return 9
}

// Sum calculates the sum of multiple Money values. All must share one asset.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("sol")
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}
