package nav_test

import (
	"errors"
	"testing"

	"NavLedger/internal/ledger"
	"NavLedger/internal/nav"
	"NavLedger/internal/positions"
	"NavLedger/internal/pricing"
)

type fixture struct {
	pools     *ledger.Pools
	pool      *ledger.Pool
	wallets   *ledger.WalletTracker
	virtual   *ledger.VirtualLedger
	registry  *ledger.ActivationRegistry
	rates     *pricing.RateTable
	positions *positions.Cache
	engine    *nav.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		pools:     ledger.NewPools(),
		wallets:   ledger.NewWalletTracker(),
		virtual:   ledger.NewVirtualLedger(),
		registry:  ledger.NewActivationRegistry(),
		rates:     pricing.NewRateTable(),
		positions: positions.NewCache(),
	}
	p, err := f.pools.Register("vault-1", "USDC", "ETH", "WETH", 6, []string{"ARB"})
	if err != nil {
		t.Fatalf("register pool: %v", err)
	}
	f.pool = p
	f.rates.SetIdentity("USDC")
	f.engine = nav.NewEngine(f.rates, f.registry, f.wallets, f.virtual, f.positions)
	return f
}

func TestCompute_EmptyPoolAtPar(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Compute(f.pool)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.UnitaryValue != f.pool.Scale {
		t.Errorf("empty pool unitary: got %d, want %d", res.UnitaryValue, f.pool.Scale)
	}
	if res.TotalValue != 0 {
		t.Errorf("total value: got %d, want 0", res.TotalValue)
	}
}

func TestCompute_DrainedPoolKeepsStoredUnitary(t *testing.T) {
	f := newFixture(t)
	// Supply went back to zero after trading above par. The stored unitary
	// value must survive so the next depositor does not enter at par.
	f.pool.UnitaryValue = 1_500_000

	res, err := f.engine.Compute(f.pool)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.UnitaryValue != 1_500_000 {
		t.Errorf("drained pool unitary: got %d, want 1_500_000", res.UnitaryValue)
	}
}

func TestCompute_ValueWithoutSupplyFails(t *testing.T) {
	f := newFixture(t)
	f.wallets.Apply("vault-1", "USDC", 1_000)

	if _, err := f.engine.Compute(f.pool); !errors.Is(err, nav.ErrEffectiveSupplyZero) {
		t.Errorf("got %v, want ErrEffectiveSupplyZero", err)
	}
}

func TestCompute_UnitaryValueFloors(t *testing.T) {
	f := newFixture(t)
	f.wallets.Apply("vault-1", "USDC", 10_000_001)
	f.pool.TotalSupply = 10_000_000

	res, err := f.engine.Compute(f.pool)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// 10_000_001 * 1e6 / 10_000_000 floors to 1_000_000 (plus dust).
	if res.UnitaryValue != 1_000_000 {
		t.Errorf("unitary: got %d, want 1_000_000", res.UnitaryValue)
	}
}

func TestCompute_SumsAllComponents(t *testing.T) {
	f := newFixture(t)
	f.rates.SetRate("ETH", "USDC", 3_000, 1)

	f.wallets.Apply("vault-1", "USDC", 5_000)
	f.wallets.Apply("vault-1", "ETH", 2)              // 6_000 in base
	f.virtual.AdjustBalance("vault-1", "USDC", 1_500) // in-flight value, base-keyed
	f.positions.Set("vault-1", "lending", 500)
	f.pool.TotalSupply = 13_000

	res, err := f.engine.Compute(f.pool)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.WalletValue != 11_000 {
		t.Errorf("wallet value: got %d, want 11_000", res.WalletValue)
	}
	if res.VirtualValue != 1_500 {
		t.Errorf("virtual value: got %d, want 1_500", res.VirtualValue)
	}
	if res.PositionValue != 500 {
		t.Errorf("position value: got %d, want 500", res.PositionValue)
	}
	if res.TotalValue != 13_000 {
		t.Errorf("total value: got %d, want 13_000", res.TotalValue)
	}
	if res.UnitaryValue != f.pool.Scale {
		t.Errorf("unitary at par: got %d, want %d", res.UnitaryValue, f.pool.Scale)
	}
}

func TestWalletValue_InactiveSupportedTokenInvisible(t *testing.T) {
	f := newFixture(t)
	f.rates.SetRate("ARB", "USDC", 1, 1)
	f.wallets.Apply("vault-1", "ARB", 100)

	v, err := f.engine.WalletValue(f.pool)
	if err != nil {
		t.Fatalf("wallet value: %v", err)
	}
	if v != 0 {
		t.Errorf("inactive holding counted: got %d, want 0", v)
	}

	// Activation makes the same holding count.
	f.registry.ActivateIfNew(f.pool, "ARB")
	v, err = f.engine.WalletValue(f.pool)
	if err != nil {
		t.Fatalf("wallet value: %v", err)
	}
	if v != 100 {
		t.Errorf("got %d, want 100", v)
	}
}

func TestWalletValue_UnknownTokenIgnoredAsDust(t *testing.T) {
	f := newFixture(t)
	f.wallets.Apply("vault-1", "USDC", 1_000)
	f.wallets.Apply("vault-1", "AIRDROP", 999_999)

	v, err := f.engine.WalletValue(f.pool)
	if err != nil {
		t.Fatalf("wallet value: %v", err)
	}
	if v != 1_000 {
		t.Errorf("got %d, want 1_000 (dust must not count)", v)
	}
}

func TestWalletValue_MissingRouteAborts(t *testing.T) {
	f := newFixture(t)
	// ETH held but no ETH/USDC rate published yet.
	f.wallets.Apply("vault-1", "ETH", 1)

	if _, err := f.engine.WalletValue(f.pool); !errors.Is(err, pricing.ErrNoRoute) {
		t.Errorf("got %v, want ErrNoRoute", err)
	}
}

func TestTotalAssets_TotalWithZeroSupply(t *testing.T) {
	f := newFixture(t)
	f.wallets.Apply("vault-1", "USDC", 777)

	total, err := f.engine.TotalAssets(f.pool)
	if err != nil {
		t.Fatalf("total assets: %v", err)
	}
	if total != 777 {
		t.Errorf("got %d, want 777", total)
	}
}
