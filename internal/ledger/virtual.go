package ledger

import (
	"fmt"

	"NavLedger/internal/math"
)

// VirtualLedger carries value the pool owns but the wallet does not hold:
// per-token virtual balances covering in-flight bridge transfers, and the
// virtual supply of unbacked shares minted against them.
//
// Virtual balances are denominated in BASE-TOKEN units, converted once at
// the moment they are created. NAV sums them directly, so a later price move
// on the underlying token never re-values in-flight capital.
type VirtualLedger struct {
	balances map[string]map[string]int64 // pool -> token -> base units
	supply   map[string]int64            // pool -> virtual shares
}

func NewVirtualLedger() *VirtualLedger {
	return &VirtualLedger{
		balances: make(map[string]map[string]int64),
		supply:   make(map[string]int64),
	}
}

// AdjustBalance adds a signed base-unit delta to the virtual balance of
// (pool, token). Virtual balances may not go negative: a clear can only
// consume what an outbound transfer previously credited.
func (vl *VirtualLedger) AdjustBalance(pool, token string, delta int64) error {
	m, ok := vl.balances[pool]
	if !ok {
		m = make(map[string]int64)
		vl.balances[pool] = m
	}
	next, err := math.AddChecked(m[token], delta)
	if err != nil {
		return err
	}
	if next < 0 {
		return fmt.Errorf("%w: virtual balance %s/%s has %d, delta %d", ErrBalanceUnderflow, pool, token, m[token], delta)
	}
	if next == 0 {
		delete(m, token)
		return nil
	}
	m[token] = next
	return nil
}

func (vl *VirtualLedger) Balance(pool, token string) int64 {
	return vl.balances[pool][token]
}

// TotalBalance sums a pool's virtual balances across tokens. All entries are
// already base units, so this is a plain checked sum.
func (vl *VirtualLedger) TotalBalance(pool string) (int64, error) {
	var total int64
	for _, v := range vl.balances[pool] {
		var err error
		total, err = math.AddChecked(total, v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// AdjustSupply adds a signed delta to the pool's virtual supply.
func (vl *VirtualLedger) AdjustSupply(pool string, delta int64) error {
	next, err := math.AddChecked(vl.supply[pool], delta)
	if err != nil {
		return err
	}
	if next < 0 {
		return fmt.Errorf("%w: virtual supply %s has %d, delta %d", ErrBalanceUnderflow, pool, vl.supply[pool], delta)
	}
	if next == 0 {
		delete(vl.supply, pool)
		return nil
	}
	vl.supply[pool] = next
	return nil
}

func (vl *VirtualLedger) Supply(pool string) int64 {
	return vl.supply[pool]
}

// SnapshotBalances copies a pool's virtual balances for persistence.
func (vl *VirtualLedger) SnapshotBalances(pool string) map[string]int64 {
	out := make(map[string]int64, len(vl.balances[pool]))
	for token, v := range vl.balances[pool] {
		out[token] = v
	}
	return out
}

// Restore replaces a pool's virtual state wholesale on snapshot recovery.
func (vl *VirtualLedger) Restore(pool string, balances map[string]int64, supply int64) {
	m := make(map[string]int64, len(balances))
	for token, v := range balances {
		if v != 0 {
			m[token] = v
		}
	}
	vl.balances[pool] = m
	if supply != 0 {
		vl.supply[pool] = supply
	} else {
		delete(vl.supply, pool)
	}
}
