package nav

import (
	"errors"
	"fmt"

	"NavLedger/internal/ledger"
	"NavLedger/internal/math"
	"NavLedger/internal/positions"
	"NavLedger/internal/pricing"
)

// ErrEffectiveSupplyZero means the pool holds value but no shares exist to
// price it against. Computing a unitary value would divide by zero, and
// defaulting to par would let the first depositor capture the stray value.
var ErrEffectiveSupplyZero = errors.New("effective supply is zero with positive value")

// Result is one full valuation of a pool.
type Result struct {
	UnitaryValue    int64
	TotalValue      int64
	EffectiveSupply int64

	WalletValue   int64
	VirtualValue  int64
	PositionValue int64
}

// Engine computes pool NAV from live state. Wallet balances are converted to
// base units at current rates; virtual balances and app positions are
// already base-denominated and summed directly.
type Engine struct {
	converter pricing.Converter
	registry  *ledger.ActivationRegistry
	wallets   *ledger.WalletTracker
	virtual   *ledger.VirtualLedger
	positions *positions.Cache
}

func NewEngine(converter pricing.Converter, registry *ledger.ActivationRegistry, wallets *ledger.WalletTracker, virtual *ledger.VirtualLedger, positions *positions.Cache) *Engine {
	return &Engine{
		converter: converter,
		registry:  registry,
		wallets:   wallets,
		virtual:   virtual,
		positions: positions,
	}
}

// WalletValue converts the pool wallet's holdings to base units. Only
// activated tokens count: a supported token the registry has not seen yet is
// invisible to valuation until its first reconciliation activates it, and
// anything outside the pool's token set is ignored as dust. Any conversion
// failure on a counted token aborts the valuation rather than understating
// it.
func (e *Engine) WalletValue(p *ledger.Pool) (int64, error) {
	var total int64
	for _, token := range e.wallets.Tokens(p.ID) {
		bal := e.wallets.Balance(p.ID, token)
		switch {
		case token == p.BaseToken:
			// already base units
		case token == p.NativeToken || token == p.WrappedNative:
			// priced like any other holding
		case p.SupportsCrossChain(token):
			if !e.registry.IsActive(p, token) {
				continue
			}
		default:
			continue
		}

		inBase, err := e.converter.Convert(token, bal, p.BaseToken)
		if err != nil {
			return 0, fmt.Errorf("value wallet %s/%s: %w", p.ID, token, err)
		}
		total, err = math.AddChecked(total, inBase)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Convert values an amount at the engine's current rates, with the same
// floor rounding valuation uses.
func (e *Engine) Convert(tokenIn string, amount int64, tokenOut string) (int64, error) {
	return e.converter.Convert(tokenIn, amount, tokenOut)
}

// HasRoute reports whether the engine can price tokenIn in tokenOut units.
func (e *Engine) HasRoute(tokenIn, tokenOut string) bool {
	return e.converter.HasRoute(tokenIn, tokenOut)
}

// TotalAssets values everything the pool owns in base units without
// deriving a per-share price, so it stays total even when no shares exist.
func (e *Engine) TotalAssets(p *ledger.Pool) (int64, error) {
	walletValue, err := e.WalletValue(p)
	if err != nil {
		return 0, err
	}
	virtualValue, err := e.virtual.TotalBalance(p.ID)
	if err != nil {
		return 0, err
	}
	positionValue, err := e.positions.Total(p.ID)
	if err != nil {
		return 0, err
	}
	total, err := math.AddChecked(walletValue, virtualValue)
	if err != nil {
		return 0, err
	}
	return math.AddChecked(total, positionValue)
}

// Compute values the pool and derives its unitary value with floor
// rounding. A fresh pool with no value and no shares is at par; a pool
// whose supply returns to zero keeps its last stored unitary value so the
// next depositor enters at the price the last one exited at.
func (e *Engine) Compute(p *ledger.Pool) (Result, error) {
	walletValue, err := e.WalletValue(p)
	if err != nil {
		return Result{}, err
	}
	virtualValue, err := e.virtual.TotalBalance(p.ID)
	if err != nil {
		return Result{}, err
	}
	positionValue, err := e.positions.Total(p.ID)
	if err != nil {
		return Result{}, err
	}

	totalValue, err := math.AddChecked(walletValue, virtualValue)
	if err != nil {
		return Result{}, err
	}
	totalValue, err = math.AddChecked(totalValue, positionValue)
	if err != nil {
		return Result{}, err
	}

	effectiveSupply, err := math.AddChecked(p.TotalSupply, e.virtual.Supply(p.ID))
	if err != nil {
		return Result{}, err
	}

	res := Result{
		TotalValue:      totalValue,
		EffectiveSupply: effectiveSupply,
		WalletValue:     walletValue,
		VirtualValue:    virtualValue,
		PositionValue:   positionValue,
	}

	if effectiveSupply <= 0 {
		if totalValue == 0 {
			res.UnitaryValue = p.Scale
			if p.UnitaryValue != 0 {
				res.UnitaryValue = p.UnitaryValue
			}
			return res, nil
		}
		return Result{}, fmt.Errorf("%w: pool %s holds %d", ErrEffectiveSupplyZero, p.ID, totalValue)
	}

	res.UnitaryValue, err = math.UnitaryValue(totalValue, p.Scale, effectiveSupply)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
