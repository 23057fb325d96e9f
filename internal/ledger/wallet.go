package ledger

import (
	"fmt"

	"NavLedger/internal/math"
)

// WalletTracker mirrors the on-chain token balances of each pool wallet.
// Balances are token-native units; valuation converts them lazily at NAV
// time so price moves never touch this structure.
type WalletTracker struct {
	balances map[string]map[string]int64 // pool -> token -> amount
}

func NewWalletTracker() *WalletTracker {
	return &WalletTracker{balances: make(map[string]map[string]int64)}
}

func (wt *WalletTracker) tokens(pool string) map[string]int64 {
	m, ok := wt.balances[pool]
	if !ok {
		m = make(map[string]int64)
		wt.balances[pool] = m
	}
	return m
}

// Apply adds a signed delta to (pool, token). Wallet balances track a real
// chain account and can never be negative.
func (wt *WalletTracker) Apply(pool, token string, delta int64) error {
	m := wt.tokens(pool)
	next, err := math.AddChecked(m[token], delta)
	if err != nil {
		return err
	}
	if next < 0 {
		return fmt.Errorf("%w: wallet %s/%s has %d, delta %d", ErrBalanceUnderflow, pool, token, m[token], delta)
	}
	if next == 0 {
		delete(m, token)
		return nil
	}
	m[token] = next
	return nil
}

func (wt *WalletTracker) Balance(pool, token string) int64 {
	return wt.balances[pool][token]
}

// Unwrap re-keys the full wrapped-native balance onto the native token,
// mirroring a WETH-style withdraw executed during finalize. Returns the
// moved amount so the caller can undo on rollback.
func (wt *WalletTracker) Unwrap(pool, wrapped, native string) (int64, error) {
	m := wt.tokens(pool)
	amount := m[wrapped]
	if amount == 0 {
		return 0, nil
	}
	next, err := math.AddChecked(m[native], amount)
	if err != nil {
		return 0, err
	}
	delete(m, wrapped)
	m[native] = next
	return amount, nil
}

// Rewrap reverses a prior Unwrap during session rollback.
func (wt *WalletTracker) Rewrap(pool, wrapped, native string, amount int64) error {
	if amount == 0 {
		return nil
	}
	if err := wt.Apply(pool, native, -amount); err != nil {
		return err
	}
	return wt.Apply(pool, wrapped, amount)
}

// Snapshot copies a pool's balances for persistence.
func (wt *WalletTracker) Snapshot(pool string) map[string]int64 {
	out := make(map[string]int64, len(wt.balances[pool]))
	for token, amount := range wt.balances[pool] {
		out[token] = amount
	}
	return out
}

// Restore replaces a pool's balances wholesale on snapshot recovery.
func (wt *WalletTracker) Restore(pool string, balances map[string]int64) {
	m := make(map[string]int64, len(balances))
	for token, amount := range balances {
		if amount != 0 {
			m[token] = amount
		}
	}
	wt.balances[pool] = m
}

// Tokens lists tokens with a nonzero balance; order is unspecified.
func (wt *WalletTracker) Tokens(pool string) []string {
	out := make([]string, 0, len(wt.balances[pool]))
	for token := range wt.balances[pool] {
		out = append(out, token)
	}
	return out
}
