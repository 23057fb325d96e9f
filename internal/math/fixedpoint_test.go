package math_test

import (
	stdmath "math"
	"testing"

	"NavLedger/internal/math"
)

func TestMulDiv_RoundDown(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d int64
		want    int64
	}{
		{"exact", 10, 3, 6, 5},
		{"floors positive", 10, 1, 3, 3},
		{"floors negative", -10, 1, 3, -4},
		{"negative denominator", 10, 1, -3, -4},
		{"zero amount", 0, 100, 7, 0},
		{"large operands", 1_000_000_000_000, 1_000_000, 1_000_000_000, 1_000_000_000},
	}

	for _, tt := range tests {
		got, err := math.MulDiv(tt.a, tt.b, tt.d, math.RoundDown)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMulDiv_RoundHalfEven(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d int64
		want    int64
	}{
		{"below half rounds down", 9, 1, 4, 2},  // 2.25 → 2
		{"tie to even down", 10, 1, 4, 2},       // 2.5 → 2
		{"tie to even up", 14, 1, 4, 4},         // 3.5 → 4
		{"above half rounds up", 11, 1, 4, 3},   // 2.75 → 3
		{"no remainder unchanged", 12, 1, 4, 3},
	}

	for _, tt := range tests {
		got, err := math.MulDiv(tt.a, tt.b, tt.d, math.RoundHalfEven)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMulDiv_Overflow(t *testing.T) {
	_, err := math.MulDiv(stdmath.MaxInt64, stdmath.MaxInt64, 1, math.RoundDown)
	if err != math.ErrInt64Overflow {
		t.Errorf("got %v, want ErrInt64Overflow", err)
	}
}

func TestMulDiv_DivisionByZero(t *testing.T) {
	if _, err := math.MulDiv(1, 1, 0, math.RoundDown); err == nil {
		t.Error("expected error for zero denominator")
	}
}

func TestMulDiv_IntermediateOverflowSurvives(t *testing.T) {
	// a*b overflows int64 but the quotient fits.
	got, err := math.MulDiv(stdmath.MaxInt64, 2, 4, math.RoundDown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := int64(stdmath.MaxInt64 / 2)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestConvertByFraction(t *testing.T) {
	// 1500 units at 3 quote per 2 token = 2250.
	got, err := math.ConvertByFraction(1500, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2250 {
		t.Errorf("got %d, want 2250", got)
	}
}

func TestSharesForValue(t *testing.T) {
	scale := int64(1_000_000)

	// At par, value converts one-to-one.
	shares, err := math.SharesForValue(500_000, scale, scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shares != 500_000 {
		t.Errorf("at par: got %d, want 500_000", shares)
	}

	// Above par, fewer shares per unit of value, floored.
	shares, err = math.SharesForValue(1_000_000, scale, 1_500_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shares != 666_666 {
		t.Errorf("above par: got %d, want 666_666", shares)
	}

	if _, err := math.SharesForValue(100, scale, 0); err == nil {
		t.Error("expected error for zero unitary value")
	}
}

func TestUnitaryValue(t *testing.T) {
	scale := int64(1_000_000)

	uv, err := math.UnitaryValue(2_000_000, scale, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uv != 2_000_000 {
		t.Errorf("got %d, want 2_000_000", uv)
	}

	// Floors: 1 value over 3 shares.
	uv, err = math.UnitaryValue(1, scale, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uv != 333_333 {
		t.Errorf("got %d, want 333_333", uv)
	}

	if _, err := math.UnitaryValue(100, scale, 0); err == nil {
		t.Error("expected error for zero supply")
	}
}

func TestApplyBps(t *testing.T) {
	tests := []struct {
		amount int64
		bps    uint16
		want   int64
	}{
		{10_000, 10_000, 10_000},
		{10_000, 5_000, 5_000},
		{10_000, 1, 1},
		{10_000, 0, 0},
		{3, 5_000, 1}, // floors
	}
	for _, tt := range tests {
		got, err := math.ApplyBps(tt.amount, tt.bps)
		if err != nil {
			t.Errorf("ApplyBps(%d, %d): unexpected error: %v", tt.amount, tt.bps, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ApplyBps(%d, %d): got %d, want %d", tt.amount, tt.bps, got, tt.want)
		}
	}
}

func TestAddChecked_Overflow(t *testing.T) {
	if _, err := math.AddChecked(stdmath.MaxInt64, 1); err != math.ErrInt64Overflow {
		t.Errorf("got %v, want ErrInt64Overflow", err)
	}
	if got, err := math.AddChecked(stdmath.MaxInt64, -1); err != nil || got != stdmath.MaxInt64-1 {
		t.Errorf("got (%d, %v)", got, err)
	}
}

func TestSubChecked_Overflow(t *testing.T) {
	if _, err := math.SubChecked(stdmath.MinInt64, 1); err != math.ErrInt64Overflow {
		t.Errorf("got %v, want ErrInt64Overflow", err)
	}
	if got, err := math.SubChecked(100, 40); err != nil || got != 60 {
		t.Errorf("got (%d, %v)", got, err)
	}
}

func TestPow10(t *testing.T) {
	if got := math.Pow10(0); got != 1 {
		t.Errorf("Pow10(0): got %d", got)
	}
	if got := math.Pow10(6); got != 1_000_000 {
		t.Errorf("Pow10(6): got %d", got)
	}
	if got := math.Pow10(18); got != 1_000_000_000_000_000_000 {
		t.Errorf("Pow10(18): got %d", got)
	}
}
