package ledger

import (
	"fmt"

	"NavLedger/internal/math"
)

// Pool is the accounting identity of one vault: its base denomination, share
// scale, and the bridge token whitelist. Mutable NAV state (supply, stored
// unitary value) lives here too because every reconciliation reads and
// writes it under the same single-threaded pipeline.
type Pool struct {
	ID            string
	BaseToken     string
	NativeToken   string
	WrappedNative string
	Decimals      uint8
	Scale         int64

	TotalSupply  int64
	UnitaryValue int64

	crossChain map[string]bool
}

// SupportsCrossChain reports whether the bridge may deliver token to this
// pool at all, independent of activation state.
func (p *Pool) SupportsCrossChain(token string) bool {
	return p.crossChain[token]
}

// CrossChainTokens returns the whitelist in stable order for snapshots.
func (p *Pool) CrossChainTokens() []string {
	out := make([]string, 0, len(p.crossChain))
	for t := range p.crossChain {
		out = append(out, t)
	}
	return out
}

// Pools indexes registered pools by ID.
type Pools struct {
	byID map[string]*Pool
}

func NewPools() *Pools {
	return &Pools{byID: make(map[string]*Pool)}
}

// Register creates a pool. Decimals bound keeps 10^Decimals inside int64.
func (ps *Pools) Register(id, baseToken, nativeToken, wrappedNative string, decimals uint8, crossChainTokens []string) (*Pool, error) {
	if _, exists := ps.byID[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyRegistered, id)
	}
	if decimals > 18 {
		return nil, fmt.Errorf("pool %s: decimals %d out of range", id, decimals)
	}

	p := &Pool{
		ID:            id,
		BaseToken:     baseToken,
		NativeToken:   nativeToken,
		WrappedNative: wrappedNative,
		Decimals:      decimals,
		Scale:         math.Pow10(int(decimals)),
		crossChain:    make(map[string]bool, len(crossChainTokens)),
	}
	for _, t := range crossChainTokens {
		p.crossChain[t] = true
	}
	ps.byID[id] = p
	return p, nil
}

func (ps *Pools) Get(id string) (*Pool, error) {
	p, ok := ps.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return p, nil
}

// All returns every pool; iteration order is unspecified.
func (ps *Pools) All() []*Pool {
	out := make([]*Pool, 0, len(ps.byID))
	for _, p := range ps.byID {
		out = append(out, p)
	}
	return out
}

// RestorePool re-creates a pool from snapshot state, including mutable
// fields skipped by Register.
func (ps *Pools) RestorePool(p *Pool, crossChainTokens []string) {
	restored := *p
	restored.crossChain = make(map[string]bool, len(crossChainTokens))
	for _, t := range crossChainTokens {
		restored.crossChain[t] = true
	}
	ps.byID[p.ID] = &restored
}
