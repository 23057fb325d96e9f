package event

import (
	"time"

	"github.com/google/uuid"
)

// DonationLocked is the sentinel lock call opening a reconciliation session
// for (pool, token). It carries no value; it only marks the snapshot point
// immediately before the bridged tokens land in the pool wallet.
type DonationLocked struct {
	LockID    uuid.UUID
	Pool      string
	Token     string
	Sequence  int64
	Timestamp time.Time
}

func (d *DonationLocked) IdempotencyKey() string {
	return d.LockID.String()
}

func (d *DonationLocked) EventType() EventType {
	return EventTypeDonationLocked
}

func (d *DonationLocked) PoolID() *string {
	return &d.Pool
}

func (d *DonationLocked) SourceSequence() int64 {
	return d.Sequence
}

// BridgeFillFinalized is the finalize call consuming an open session. Amount
// is the nominal bridged amount in token-native units; the actual received
// delta is derived from wallet balances and may exceed it (solver surplus).
type BridgeFillFinalized struct {
	FillID             uuid.UUID
	Pool               string
	Token              string
	Amount             int64
	OpType             string // "transfer", "sync" or the legacy alias "rebalance"
	ShouldUnwrapNative bool
	SyncMultiplierBps  uint16
	Sequence           int64
	Timestamp          time.Time
}

func (b *BridgeFillFinalized) IdempotencyKey() string {
	return b.FillID.String()
}

func (b *BridgeFillFinalized) EventType() EventType {
	return EventTypeBridgeFillFinalized
}

func (b *BridgeFillFinalized) PoolID() *string {
	return &b.Pool
}

func (b *BridgeFillFinalized) SourceSequence() int64 {
	return b.Sequence
}

// OutboundBridgeInitiated is the source-chain leg of a bridge transfer:
// tokens left the pool wallet and their base-token value is credited to the
// virtual balance until the destination chain settles.
type OutboundBridgeInitiated struct {
	TransferID uuid.UUID
	Pool       string
	Token      string
	Amount     int64
	Sequence   int64
	Timestamp  time.Time
}

func (o *OutboundBridgeInitiated) IdempotencyKey() string {
	return o.TransferID.String()
}

func (o *OutboundBridgeInitiated) EventType() EventType {
	return EventTypeOutboundBridgeInitiated
}

func (o *OutboundBridgeInitiated) PoolID() *string {
	return &o.Pool
}

func (o *OutboundBridgeInitiated) SourceSequence() int64 {
	return o.Sequence
}
