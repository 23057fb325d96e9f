package pricing_test

import (
	"errors"
	"testing"

	"NavLedger/internal/pricing"
)

func TestRateTable_ConvertBothDirections(t *testing.T) {
	rt := pricing.NewRateTable()
	// 1 ETH = 3000 USDC.
	if err := rt.SetRate("ETH", "USDC", 3000, 1); err != nil {
		t.Fatalf("set rate: %v", err)
	}

	got, err := rt.Convert("ETH", 2, "USDC")
	if err != nil {
		t.Fatalf("convert forward: %v", err)
	}
	if got != 6000 {
		t.Errorf("forward: got %d, want 6000", got)
	}

	got, err = rt.Convert("USDC", 7500, "ETH")
	if err != nil {
		t.Fatalf("convert inverse: %v", err)
	}
	if got != 2 {
		t.Errorf("inverse floors: got %d, want 2", got)
	}
}

func TestRateTable_SameTokenShortCircuits(t *testing.T) {
	rt := pricing.NewRateTable()
	got, err := rt.Convert("USDC", 123, "USDC")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != 123 {
		t.Errorf("got %d, want 123", got)
	}
}

func TestRateTable_ZeroAmountNeedsNoRoute(t *testing.T) {
	rt := pricing.NewRateTable()
	got, err := rt.Convert("GHOST", 0, "USDC")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestRateTable_NoRoute(t *testing.T) {
	rt := pricing.NewRateTable()
	if _, err := rt.Convert("GHOST", 1, "USDC"); !errors.Is(err, pricing.ErrNoRoute) {
		t.Errorf("got %v, want ErrNoRoute", err)
	}
}

func TestRateTable_RejectsInvalidRate(t *testing.T) {
	rt := pricing.NewRateTable()
	if err := rt.SetRate("ETH", "USDC", 0, 1); !errors.Is(err, pricing.ErrInvalidRate) {
		t.Errorf("zero price: got %v, want ErrInvalidRate", err)
	}
	if err := rt.SetRate("ETH", "USDC", 1, -1); !errors.Is(err, pricing.ErrInvalidRate) {
		t.Errorf("negative volume: got %v, want ErrInvalidRate", err)
	}
}

func TestRateTable_ExportImportRoundTrip(t *testing.T) {
	rt := pricing.NewRateTable()
	rt.SetRate("ETH", "USDC", 3000, 1)
	rt.SetIdentity("USDC")

	restored := pricing.NewRateTable()
	restored.Import(rt.Export())

	got, err := restored.Convert("ETH", 3, "USDC")
	if err != nil {
		t.Fatalf("convert after import: %v", err)
	}
	if got != 9000 {
		t.Errorf("got %d, want 9000", got)
	}
}
