package reconcile

import (
	"fmt"

	"NavLedger/internal/math"
)

// OpType is the closed set of reconciliation operations a finalize message
// may request.
type OpType int32

const (
	// OpTransfer settles a user-initiated bridge transfer: clear the
	// virtual balance it created, mint virtual supply for any remainder.
	OpTransfer OpType = iota + 1
	// OpSync settles a protocol rebalance: neutralize a fraction of the
	// received value against the virtual balance, never touch supply.
	OpSync
)

func (o OpType) String() string {
	switch o {
	case OpTransfer:
		return "transfer"
	case OpSync:
		return "sync"
	default:
		return "unknown"
	}
}

// ParseOpType maps the wire string to an OpType. "rebalance" is a legacy
// alias for sync kept for older bridge deployments.
func ParseOpType(s string) (OpType, error) {
	switch s {
	case "transfer":
		return OpTransfer, nil
	case "sync", "rebalance":
		return OpSync, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOpType, s)
	}
}

// MessageParams are the finalize parameters after wire validation.
type MessageParams struct {
	Token              string
	Amount             int64
	Op                 OpType
	ShouldUnwrapNative bool
	SyncMultiplierBps  uint16
}

// Validate checks the parameter ranges that do not depend on pool state.
func (mp MessageParams) Validate() error {
	if mp.Amount < 0 {
		return fmt.Errorf("negative transfer amount %d", mp.Amount)
	}
	switch mp.Op {
	case OpTransfer, OpSync:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidOpType, int32(mp.Op))
	}
	if mp.Op == OpSync && mp.SyncMultiplierBps > math.BasisPointsScale {
		return fmt.Errorf("%w: %d bps", ErrSyncMultiplierRange, mp.SyncMultiplierBps)
	}
	return nil
}
