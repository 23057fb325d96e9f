package math

import (
	"errors"
	"math/big"
	"sync"
)

// BasisPointsScale is the denominator for basis-point multipliers.
const BasisPointsScale = 10_000

// ErrInt64Overflow is returned when a checked operation leaves int64 range.
var ErrInt64Overflow = errors.New("fixedpoint: int64 overflow")

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

type RoundingMode int

const (
	RoundDown     RoundingMode = iota // Floor toward negative infinity (default for valuation)
	RoundHalfEven                     // Banker's rounding
)

// MulDiv computes a * b / denominator using int128 intermediates to prevent
// overflow. Fails with ErrInt64Overflow when the quotient leaves int64 range.
func MulDiv(a, b, denominator int64, mode RoundingMode) (int64, error) {
	if denominator == 0 {
		return 0, errors.New("fixedpoint: division by zero")
	}

	numerator := getInt128()
	numerator.Mul(big.NewInt(a), big.NewInt(b))

	result, err := divInt128(numerator, denominator, mode)
	putInt128(numerator)
	return result, err
}

func divInt128(numerator *big.Int, denominator int64, mode RoundingMode) (int64, error) {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()
	defer putInt128(quotient)
	defer putInt128(remainder)

	// QuoRem truncates toward zero; RoundDown adjusts negatives to floor.
	quotient.QuoRem(numerator, denom, remainder)

	if !quotient.IsInt64() {
		return 0, ErrInt64Overflow
	}
	result := quotient.Int64()

	switch mode {
	case RoundDown:
		if remainder.Sign() != 0 && (numerator.Sign() < 0) != (denominator < 0) {
			result--
		}
	case RoundHalfEven:
		half := big.NewInt(denominator / 2)
		remainder.Abs(remainder)
		cmp := remainder.Cmp(half)
		if cmp > 0 {
			result++
		} else if cmp == 0 && denominator%2 == 0 && result%2 != 0 {
			result++
		}
	}

	return result, nil
}

// ConvertByFraction values an amount of one token in another unit using an
// integer price fraction: amount * priceAmount / volume, floored.
func ConvertByFraction(amount, priceAmount, volume int64) (int64, error) {
	return MulDiv(amount, priceAmount, volume, RoundDown)
}

// SharesForValue converts a base-token value into a share count at the given
// unitary value: value * scale / unitaryValue, floored.
func SharesForValue(value, scale, unitaryValue int64) (int64, error) {
	if unitaryValue <= 0 {
		return 0, errors.New("fixedpoint: unitary value must be positive")
	}
	return MulDiv(value, scale, unitaryValue, RoundDown)
}

// UnitaryValue computes totalValue * scale / effectiveSupply, floored.
func UnitaryValue(totalValue, scale, effectiveSupply int64) (int64, error) {
	if effectiveSupply <= 0 {
		return 0, errors.New("fixedpoint: effective supply must be positive")
	}
	return MulDiv(totalValue, scale, effectiveSupply, RoundDown)
}

// ApplyBps computes amount * bps / 10000, floored.
func ApplyBps(amount int64, bps uint16) (int64, error) {
	return MulDiv(amount, int64(bps), BasisPointsScale, RoundDown)
}

// AddChecked adds two int64 values with overflow detection.
func AddChecked(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrInt64Overflow
	}
	return sum, nil
}

// SubChecked subtracts b from a with overflow detection.
func SubChecked(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, ErrInt64Overflow
	}
	return diff, nil
}

// Pow10 returns 10^n as int64. n must be in [0, 18].
func Pow10(n int) int64 {
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}
