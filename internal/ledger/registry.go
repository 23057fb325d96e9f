package ledger

import "fmt"

// ActivationRegistry tracks which cross-chain tokens have been seen at least
// once per pool. A token must be activated before its balances participate
// in valuation; activation is permanent and idempotent.
type ActivationRegistry struct {
	active map[string]map[string]bool // pool -> token -> activated
}

func NewActivationRegistry() *ActivationRegistry {
	return &ActivationRegistry{active: make(map[string]map[string]bool)}
}

// ActivateIfNew activates token for pool on first sight. Repeat calls are
// no-ops. Tokens outside the pool's cross-chain whitelist are rejected,
// except the pool's own base and native tokens which are always active.
func (ar *ActivationRegistry) ActivateIfNew(pool *Pool, token string) (activated bool, err error) {
	if token == pool.BaseToken || token == pool.NativeToken || token == pool.WrappedNative {
		return false, nil
	}
	if !pool.SupportsCrossChain(token) {
		return false, fmt.Errorf("%w: %s for pool %s", ErrUnsupportedCrossChainToken, token, pool.ID)
	}

	m, ok := ar.active[pool.ID]
	if !ok {
		m = make(map[string]bool)
		ar.active[pool.ID] = m
	}
	if m[token] {
		return false, nil
	}
	m[token] = true
	return true, nil
}

// IsActive reports whether token participates in the pool's valuation. Base,
// native and wrapped-native tokens are implicitly active.
func (ar *ActivationRegistry) IsActive(pool *Pool, token string) bool {
	if token == pool.BaseToken || token == pool.NativeToken || token == pool.WrappedNative {
		return true
	}
	return ar.active[pool.ID][token]
}

// Snapshot lists activated tokens for a pool; order is unspecified.
func (ar *ActivationRegistry) Snapshot(pool string) []string {
	out := make([]string, 0, len(ar.active[pool]))
	for token := range ar.active[pool] {
		out = append(out, token)
	}
	return out
}

// Restore replaces a pool's activations on snapshot recovery.
func (ar *ActivationRegistry) Restore(pool string, tokens []string) {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	ar.active[pool] = m
}
