package reconcile

import (
	"fmt"

	"NavLedger/internal/ledger"
	"NavLedger/internal/math"
)

// Outcome reports what a mode handler did with the bridged value, all in
// base-token units except the minted share count.
type Outcome struct {
	VirtualBalanceCleared int64
	VirtualSupplyMinted   int64
	NeutralizedInBase     int64
}

// SettleContext is the pool state a handler may read: the pool's
// base-keyed virtual balance (value can leave as one token and return as
// another, so in-flight value is tracked in base units under one key) and
// the unitary value stored before the lock window opened. Handlers never
// read live NAV; settlement prices at the pre-lock value so the incoming
// amount cannot price itself.
type SettleContext struct {
	VirtualBalance    int64
	StoredUnitary     int64
	SyncMultiplierBps uint16
}

// ModeHandler turns a settled bridge amount into ledger entries. Handlers
// are pure: they produce entries, the session applies and owns rollback.
type ModeHandler interface {
	Op() OpType
	Settle(p *ledger.Pool, token string, amountInBase int64, ctx SettleContext) ([]ledger.Entry, Outcome, error)
}

// TransferHandler settles user bridge transfers. The received value first
// clears the virtual balance the outbound leg created; any remainder is new
// depositor capital, so matching virtual supply is minted at the stored
// unitary value to keep NAV per share unchanged.
type TransferHandler struct{}

func (TransferHandler) Op() OpType { return OpTransfer }

func (TransferHandler) Settle(p *ledger.Pool, token string, amountInBase int64, ctx SettleContext) ([]ledger.Entry, Outcome, error) {
	cleared := amountInBase
	if ctx.VirtualBalance < cleared {
		cleared = ctx.VirtualBalance
	}

	var entries []ledger.Entry
	if cleared > 0 {
		entries = append(entries, ledger.Entry{Kind: ledger.KindVirtualBalance, Pool: p.ID, Token: p.BaseToken, Delta: -cleared})
	}

	out := Outcome{VirtualBalanceCleared: cleared}
	remainder := amountInBase - cleared
	if remainder > 0 {
		minted, err := math.SharesForValue(remainder, p.Scale, ctx.StoredUnitary)
		if err != nil {
			return nil, Outcome{}, fmt.Errorf("mint for remainder %d: %w", remainder, err)
		}
		if minted > 0 {
			entries = append(entries, ledger.Entry{Kind: ledger.KindVirtualSupply, Pool: p.ID, Delta: minted})
			out.VirtualSupplyMinted = minted
		}
	}
	return entries, out, nil
}

// SyncHandler settles protocol-initiated rebalances. A configured fraction
// of the received value is neutralized against the token's virtual balance;
// supply is never touched because a rebalance moves the pool's own capital,
// not a depositor's.
type SyncHandler struct{}

func (SyncHandler) Op() OpType { return OpSync }

func (SyncHandler) Settle(p *ledger.Pool, token string, amountInBase int64, ctx SettleContext) ([]ledger.Entry, Outcome, error) {
	target, err := math.ApplyBps(amountInBase, ctx.SyncMultiplierBps)
	if err != nil {
		return nil, Outcome{}, err
	}
	neutralized := target
	if ctx.VirtualBalance < neutralized {
		neutralized = ctx.VirtualBalance
	}

	var entries []ledger.Entry
	if neutralized > 0 {
		entries = append(entries, ledger.Entry{Kind: ledger.KindVirtualBalance, Pool: p.ID, Token: p.BaseToken, Delta: -neutralized})
	}
	return entries, Outcome{VirtualBalanceCleared: neutralized, NeutralizedInBase: neutralized}, nil
}

// HandlerFor resolves the handler for an op type; the op set is closed.
func HandlerFor(op OpType) (ModeHandler, error) {
	switch op {
	case OpTransfer:
		return TransferHandler{}, nil
	case OpSync:
		return SyncHandler{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidOpType, int32(op))
	}
}
