package ledger

import (
	"fmt"
	"time"

	"NavLedger/internal/math"
)

// EntryKind selects which balance an entry moves.
type EntryKind int32

const (
	KindWallet EntryKind = iota + 1
	KindVirtualBalance
	KindVirtualSupply
	KindUnitaryValue
	KindTotalSupply
)

func (k EntryKind) String() string {
	switch k {
	case KindWallet:
		return "wallet"
	case KindVirtualBalance:
		return "virtual_balance"
	case KindVirtualSupply:
		return "virtual_supply"
	case KindUnitaryValue:
		return "unitary_value"
	case KindTotalSupply:
		return "total_supply"
	default:
		return "unknown"
	}
}

// Entry is one signed movement. Every state change flows through entries so
// the journal row set is a complete replayable record, and any applied
// prefix can be reverted by negation.
type Entry struct {
	Kind  EntryKind
	Pool  string
	Token string
	Delta int64
}

func (e Entry) negated() Entry {
	e.Delta = -e.Delta
	return e
}

// Batch groups the entries produced by one event, tagged with the event's
// envelope sequence for persistence ordering.
type Batch struct {
	Sequence  int64
	Cause     string
	Timestamp time.Time
	Entries   []Entry
}

// Journal applies entries against the live state. It owns no state of its
// own; it is the single choke point through which all mutations pass.
type Journal struct {
	pools   *Pools
	wallets *WalletTracker
	virtual *VirtualLedger
}

func NewJournal(pools *Pools, wallets *WalletTracker, virtual *VirtualLedger) *Journal {
	return &Journal{pools: pools, wallets: wallets, virtual: virtual}
}

// ApplyEntry validates and applies one entry.
func (j *Journal) ApplyEntry(e Entry) error {
	p, err := j.pools.Get(e.Pool)
	if err != nil {
		return err
	}

	switch e.Kind {
	case KindWallet:
		return j.wallets.Apply(e.Pool, e.Token, e.Delta)
	case KindVirtualBalance:
		return j.virtual.AdjustBalance(e.Pool, e.Token, e.Delta)
	case KindVirtualSupply:
		return j.virtual.AdjustSupply(e.Pool, e.Delta)
	case KindUnitaryValue:
		next, err := math.AddChecked(p.UnitaryValue, e.Delta)
		if err != nil {
			return err
		}
		p.UnitaryValue = next
		return nil
	case KindTotalSupply:
		next, err := math.AddChecked(p.TotalSupply, e.Delta)
		if err != nil {
			return err
		}
		if next < 0 {
			return fmt.Errorf("%w: total supply %s has %d, delta %d", ErrBalanceUnderflow, e.Pool, p.TotalSupply, e.Delta)
		}
		p.TotalSupply = next
		return nil
	default:
		return fmt.Errorf("unknown entry kind %d", e.Kind)
	}
}

// Apply applies a batch atomically: on any failure the applied prefix is
// reverted and the first error returned.
func (j *Journal) Apply(batch *Batch) error {
	for i, e := range batch.Entries {
		if err := j.ApplyEntry(e); err != nil {
			j.Revert(batch.Entries[:i])
			return err
		}
	}
	return nil
}

// Revert undoes previously applied entries in reverse order. Entries are
// deltas, so undo is negation. Revert of a successfully applied list cannot
// fail; an error here means state was mutated outside the journal.
func (j *Journal) Revert(entries []Entry) {
	for i := len(entries) - 1; i >= 0; i-- {
		if err := j.ApplyEntry(entries[i].negated()); err != nil {
			panic(fmt.Sprintf("journal revert failed: %v", err))
		}
	}
}
