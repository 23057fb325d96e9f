package ledger_test

import (
	"errors"
	"testing"

	"NavLedger/internal/ledger"
)

func newTestPools(t *testing.T) (*ledger.Pools, *ledger.Pool) {
	t.Helper()
	pools := ledger.NewPools()
	p, err := pools.Register("vault-1", "USDC", "ETH", "WETH", 6, []string{"ARB", "OP"})
	if err != nil {
		t.Fatalf("register pool: %v", err)
	}
	return pools, p
}

// ============================================================================
// Test: Pools
// ============================================================================

func TestPools_Register(t *testing.T) {
	_, p := newTestPools(t)

	if p.Scale != 1_000_000 {
		t.Errorf("scale: got %d, want 1_000_000", p.Scale)
	}
	if !p.SupportsCrossChain("ARB") {
		t.Error("ARB should be whitelisted")
	}
	if p.SupportsCrossChain("DOGE") {
		t.Error("DOGE should not be whitelisted")
	}
}

func TestPools_RegisterDuplicate(t *testing.T) {
	pools, _ := newTestPools(t)
	if _, err := pools.Register("vault-1", "USDC", "ETH", "WETH", 6, nil); !errors.Is(err, ledger.ErrPoolAlreadyRegistered) {
		t.Errorf("got %v, want ErrPoolAlreadyRegistered", err)
	}
}

func TestPools_RegisterDecimalsOutOfRange(t *testing.T) {
	pools := ledger.NewPools()
	if _, err := pools.Register("vault-x", "USDC", "ETH", "WETH", 19, nil); err == nil {
		t.Error("expected error for 19 decimals")
	}
}

func TestPools_GetUnknown(t *testing.T) {
	pools := ledger.NewPools()
	if _, err := pools.Get("nope"); !errors.Is(err, ledger.ErrPoolNotFound) {
		t.Errorf("got %v, want ErrPoolNotFound", err)
	}
}

// ============================================================================
// Test: WalletTracker
// ============================================================================

func TestWalletTracker_ApplyAndBalance(t *testing.T) {
	wt := ledger.NewWalletTracker()

	if err := wt.Apply("vault-1", "USDC", 1_000); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := wt.Apply("vault-1", "USDC", -400); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := wt.Balance("vault-1", "USDC"); got != 600 {
		t.Errorf("balance: got %d, want 600", got)
	}
}

func TestWalletTracker_Underflow(t *testing.T) {
	wt := ledger.NewWalletTracker()
	wt.Apply("vault-1", "USDC", 100)

	err := wt.Apply("vault-1", "USDC", -101)
	if !errors.Is(err, ledger.ErrBalanceUnderflow) {
		t.Errorf("got %v, want ErrBalanceUnderflow", err)
	}
	if got := wt.Balance("vault-1", "USDC"); got != 100 {
		t.Errorf("failed apply mutated balance: got %d, want 100", got)
	}
}

func TestWalletTracker_UnwrapRewrap(t *testing.T) {
	wt := ledger.NewWalletTracker()
	wt.Apply("vault-1", "WETH", 500)
	wt.Apply("vault-1", "ETH", 200)

	moved, err := wt.Unwrap("vault-1", "WETH", "ETH")
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if moved != 500 {
		t.Errorf("moved: got %d, want 500", moved)
	}
	if got := wt.Balance("vault-1", "WETH"); got != 0 {
		t.Errorf("wrapped after unwrap: got %d, want 0", got)
	}
	if got := wt.Balance("vault-1", "ETH"); got != 700 {
		t.Errorf("native after unwrap: got %d, want 700", got)
	}

	if err := wt.Rewrap("vault-1", "WETH", "ETH", moved); err != nil {
		t.Fatalf("rewrap: %v", err)
	}
	if got := wt.Balance("vault-1", "WETH"); got != 500 {
		t.Errorf("wrapped after rewrap: got %d, want 500", got)
	}
	if got := wt.Balance("vault-1", "ETH"); got != 200 {
		t.Errorf("native after rewrap: got %d, want 200", got)
	}
}

// ============================================================================
// Test: VirtualLedger
// ============================================================================

func TestVirtualLedger_BalanceAndSupply(t *testing.T) {
	vl := ledger.NewVirtualLedger()

	if err := vl.AdjustBalance("vault-1", "ARB", 300); err != nil {
		t.Fatalf("adjust balance: %v", err)
	}
	if err := vl.AdjustSupply("vault-1", 50); err != nil {
		t.Fatalf("adjust supply: %v", err)
	}

	if got := vl.Balance("vault-1", "ARB"); got != 300 {
		t.Errorf("balance: got %d, want 300", got)
	}
	if got := vl.Supply("vault-1"); got != 50 {
		t.Errorf("supply: got %d, want 50", got)
	}

	total, err := vl.TotalBalance("vault-1")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 300 {
		t.Errorf("total: got %d, want 300", total)
	}
}

func TestVirtualLedger_Underflow(t *testing.T) {
	vl := ledger.NewVirtualLedger()
	vl.AdjustBalance("vault-1", "ARB", 100)

	if err := vl.AdjustBalance("vault-1", "ARB", -101); !errors.Is(err, ledger.ErrBalanceUnderflow) {
		t.Errorf("balance: got %v, want ErrBalanceUnderflow", err)
	}
	if err := vl.AdjustSupply("vault-1", -1); !errors.Is(err, ledger.ErrBalanceUnderflow) {
		t.Errorf("supply: got %v, want ErrBalanceUnderflow", err)
	}
}

// ============================================================================
// Test: ActivationRegistry
// ============================================================================

func TestActivationRegistry_ActivateIfNew(t *testing.T) {
	_, p := newTestPools(t)
	reg := ledger.NewActivationRegistry()

	activated, err := reg.ActivateIfNew(p, "ARB")
	if err != nil {
		t.Fatalf("first activation: %v", err)
	}
	if !activated {
		t.Error("first activation should report activated")
	}

	// Second call is a no-op, not an error.
	activated, err = reg.ActivateIfNew(p, "ARB")
	if err != nil {
		t.Fatalf("second activation: %v", err)
	}
	if activated {
		t.Error("second activation should be a no-op")
	}
	if !reg.IsActive(p, "ARB") {
		t.Error("ARB should be active")
	}
}

func TestActivationRegistry_CoreTokensAlwaysActive(t *testing.T) {
	_, p := newTestPools(t)
	reg := ledger.NewActivationRegistry()

	for _, token := range []string{"USDC", "ETH", "WETH"} {
		activated, err := reg.ActivateIfNew(p, token)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", token, err)
		}
		if activated {
			t.Errorf("%s: core token should never need activation", token)
		}
		if !reg.IsActive(p, token) {
			t.Errorf("%s: core token should always be active", token)
		}
	}
}

func TestActivationRegistry_RejectsUnsupportedToken(t *testing.T) {
	_, p := newTestPools(t)
	reg := ledger.NewActivationRegistry()

	if _, err := reg.ActivateIfNew(p, "DOGE"); !errors.Is(err, ledger.ErrUnsupportedCrossChainToken) {
		t.Errorf("got %v, want ErrUnsupportedCrossChainToken", err)
	}
}

// ============================================================================
// Test: Journal
// ============================================================================

func TestJournal_ApplyBatch(t *testing.T) {
	pools, p := newTestPools(t)
	wallets := ledger.NewWalletTracker()
	virtual := ledger.NewVirtualLedger()
	j := ledger.NewJournal(pools, wallets, virtual)

	batch := &ledger.Batch{Entries: []ledger.Entry{
		{Kind: ledger.KindWallet, Pool: p.ID, Token: "USDC", Delta: 1_000},
		{Kind: ledger.KindVirtualBalance, Pool: p.ID, Token: "ARB", Delta: 250},
		{Kind: ledger.KindVirtualSupply, Pool: p.ID, Delta: 10},
		{Kind: ledger.KindTotalSupply, Pool: p.ID, Delta: 500},
		{Kind: ledger.KindUnitaryValue, Pool: p.ID, Delta: 7},
	}}
	if err := j.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := wallets.Balance(p.ID, "USDC"); got != 1_000 {
		t.Errorf("wallet: got %d", got)
	}
	if got := virtual.Balance(p.ID, "ARB"); got != 250 {
		t.Errorf("virtual balance: got %d", got)
	}
	if got := virtual.Supply(p.ID); got != 10 {
		t.Errorf("virtual supply: got %d", got)
	}
	if p.TotalSupply != 500 {
		t.Errorf("total supply: got %d", p.TotalSupply)
	}
	if p.UnitaryValue != 7 {
		t.Errorf("unitary value: got %d", p.UnitaryValue)
	}
}

func TestJournal_ApplyRevertsPrefixOnFailure(t *testing.T) {
	pools, p := newTestPools(t)
	wallets := ledger.NewWalletTracker()
	virtual := ledger.NewVirtualLedger()
	j := ledger.NewJournal(pools, wallets, virtual)

	batch := &ledger.Batch{Entries: []ledger.Entry{
		{Kind: ledger.KindWallet, Pool: p.ID, Token: "USDC", Delta: 1_000},
		// Underflows: no virtual balance exists yet.
		{Kind: ledger.KindVirtualBalance, Pool: p.ID, Token: "ARB", Delta: -1},
	}}
	if err := j.Apply(batch); !errors.Is(err, ledger.ErrBalanceUnderflow) {
		t.Fatalf("got %v, want ErrBalanceUnderflow", err)
	}

	if got := wallets.Balance(p.ID, "USDC"); got != 0 {
		t.Errorf("prefix not reverted: wallet has %d", got)
	}
}

func TestJournal_Revert(t *testing.T) {
	pools, p := newTestPools(t)
	wallets := ledger.NewWalletTracker()
	virtual := ledger.NewVirtualLedger()
	j := ledger.NewJournal(pools, wallets, virtual)

	entries := []ledger.Entry{
		{Kind: ledger.KindWallet, Pool: p.ID, Token: "USDC", Delta: 1_000},
		{Kind: ledger.KindVirtualSupply, Pool: p.ID, Delta: 42},
	}
	if err := j.Apply(&ledger.Batch{Entries: entries}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	j.Revert(entries)

	if got := wallets.Balance(p.ID, "USDC"); got != 0 {
		t.Errorf("wallet after revert: got %d", got)
	}
	if got := virtual.Supply(p.ID); got != 0 {
		t.Errorf("virtual supply after revert: got %d", got)
	}
}

func TestJournal_UnknownPool(t *testing.T) {
	pools, _ := newTestPools(t)
	j := ledger.NewJournal(pools, ledger.NewWalletTracker(), ledger.NewVirtualLedger())

	err := j.ApplyEntry(ledger.Entry{Kind: ledger.KindWallet, Pool: "ghost", Token: "USDC", Delta: 1})
	if !errors.Is(err, ledger.ErrPoolNotFound) {
		t.Errorf("got %v, want ErrPoolNotFound", err)
	}
}

// ============================================================================
// Test: Snapshot / Restore
// ============================================================================

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	_, p := newTestPools(t)
	wallets := ledger.NewWalletTracker()
	virtual := ledger.NewVirtualLedger()
	registry := ledger.NewActivationRegistry()

	wallets.Apply(p.ID, "USDC", 1_000)
	wallets.Apply(p.ID, "ETH", 25)
	virtual.AdjustBalance(p.ID, "ARB", 300)
	virtual.AdjustSupply(p.ID, 50)
	registry.ActivateIfNew(p, "ARB")

	wallets2 := ledger.NewWalletTracker()
	virtual2 := ledger.NewVirtualLedger()
	registry2 := ledger.NewActivationRegistry()
	wallets2.Restore(p.ID, wallets.Snapshot(p.ID))
	virtual2.Restore(p.ID, virtual.SnapshotBalances(p.ID), virtual.Supply(p.ID))
	registry2.Restore(p.ID, registry.Snapshot(p.ID))

	if got := wallets2.Balance(p.ID, "USDC"); got != 1_000 {
		t.Errorf("restored USDC: got %d, want 1_000", got)
	}
	if got := wallets2.Balance(p.ID, "ETH"); got != 25 {
		t.Errorf("restored ETH: got %d, want 25", got)
	}
	if got := virtual2.Balance(p.ID, "ARB"); got != 300 {
		t.Errorf("restored virtual balance: got %d, want 300", got)
	}
	if got := virtual2.Supply(p.ID); got != 50 {
		t.Errorf("restored virtual supply: got %d, want 50", got)
	}
	if !registry2.IsActive(p, "ARB") {
		t.Error("restored registry lost the ARB activation")
	}
	if registry2.IsActive(p, "OP") {
		t.Error("restored registry invented an OP activation")
	}
}
