package event

import (
	"time"

	"github.com/google/uuid"
)

// PoolRegistered declares a pool before any other event may reference it.
// BaseToken denominates the pool's accounting; Decimals sets the share scale.
type PoolRegistered struct {
	RegistrationID uuid.UUID
	Pool           string
	BaseToken      string
	NativeToken    string
	WrappedNative  string
	Decimals       uint8
	// CrossChainTokens are the tokens the bridge is allowed to deliver.
	CrossChainTokens []string
	// TotalSupply and UnitaryValue seed a pool migrated with existing shares.
	// Both are zero for a fresh pool.
	TotalSupply  int64
	UnitaryValue int64
	Sequence     int64
	Timestamp    time.Time
}

func (p *PoolRegistered) IdempotencyKey() string {
	return p.RegistrationID.String()
}

func (p *PoolRegistered) EventType() EventType {
	return EventTypePoolRegistered
}

func (p *PoolRegistered) PoolID() *string {
	return &p.Pool
}

func (p *PoolRegistered) SourceSequence() int64 {
	return p.Sequence
}

// WalletTransfer mirrors an observed on-chain balance change of the pool
// wallet. Delta is signed: deposits positive, withdrawals negative.
type WalletTransfer struct {
	TransferID uuid.UUID
	Pool       string
	Token      string
	Delta      int64
	Sequence   int64
	Timestamp  time.Time
}

func (w *WalletTransfer) IdempotencyKey() string {
	return w.TransferID.String()
}

func (w *WalletTransfer) EventType() EventType {
	return EventTypeWalletTransfer
}

func (w *WalletTransfer) PoolID() *string {
	return &w.Pool
}

func (w *WalletTransfer) SourceSequence() int64 {
	return w.Sequence
}

// SupplyUpdate reports the pool's share token total supply after a mint or
// burn settled on chain. Supply is absolute, not a delta.
type SupplyUpdate struct {
	UpdateID uuid.UUID
	Pool     string
	Supply   int64
	// Reason labels the settlement that moved the supply ("deposit",
	// "withdrawal", ...). Informational only.
	Reason    string
	Sequence  int64
	Timestamp time.Time
}

func (s *SupplyUpdate) IdempotencyKey() string {
	return s.UpdateID.String()
}

func (s *SupplyUpdate) EventType() EventType {
	return EventTypeSupplyUpdate
}

func (s *SupplyUpdate) PoolID() *string {
	return &s.Pool
}

func (s *SupplyUpdate) SourceSequence() int64 {
	return s.Sequence
}
