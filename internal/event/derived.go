package event

import (
	"time"

	"github.com/google/uuid"
)

// TokensReceived is emitted after a successful finalize. It reports what the
// reconciliation actually did with the bridged amount, for downstream
// consumers (accounting, alerting, the destination-chain relayer).
type TokensReceived struct {
	ReceiptID           uuid.UUID
	Pool                string
	Token               string
	AmountReceived      int64
	AmountInBase        int64
	VirtualBalanceUsed  int64
	VirtualSupplyMinted int64
	NeutralizedInBase   int64
	OpType              string
	UnitaryValue        int64
	TriggeredBySequence int64
	Timestamp           time.Time
}

func (t *TokensReceived) IdempotencyKey() string {
	return t.ReceiptID.String()
}

func (t *TokensReceived) EventType() EventType {
	return EventTypeTokensReceived
}

func (t *TokensReceived) PoolID() *string {
	return &t.Pool
}

func (t *TokensReceived) SourceSequence() int64 {
	return t.TriggeredBySequence
}

// ReconciliationFailed is emitted when a finalize is rejected and rolled
// back. The session lock is already released when this event is recorded.
type ReconciliationFailed struct {
	FailureID           uuid.UUID
	Pool                string
	Token               string
	Reason              string
	TriggeredBySequence int64
	Timestamp           time.Time
}

func (r *ReconciliationFailed) IdempotencyKey() string {
	return r.FailureID.String()
}

func (r *ReconciliationFailed) EventType() EventType {
	return EventTypeReconciliationFailed
}

func (r *ReconciliationFailed) PoolID() *string {
	return &r.Pool
}

func (r *ReconciliationFailed) SourceSequence() int64 {
	return r.TriggeredBySequence
}
