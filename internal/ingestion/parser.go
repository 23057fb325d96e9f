package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"NavLedger/internal/event"
)

// ParseRawEvent converts a raw message into a typed event.Event. The
// ingestion shell owns all wire validation; the core only sees well-formed
// events.
func ParseRawEvent(raw RawEvent) (event.Event, error) {
	switch raw.EventType {
	case "PoolRegistered":
		return parsePoolRegistered(raw.Data)
	case "SupplyUpdate":
		return parseSupplyUpdate(raw.Data)
	case "WalletTransfer":
		return parseWalletTransfer(raw.Data)
	case "DonationLocked":
		return parseDonationLocked(raw.Data)
	case "BridgeFillFinalized":
		return parseBridgeFillFinalized(raw.Data)
	case "OutboundBridgeInitiated":
		return parseOutboundBridge(raw.Data)
	case "PriceUpdate":
		return parsePriceUpdate(raw.Data)
	case "AppPositionUpdate":
		return parseAppPositionUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", raw.EventType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Timestamps are
// microseconds since epoch.

type poolRegisteredJSON struct {
	RegistrationID   string   `json:"registration_id"`
	Pool             string   `json:"pool"`
	BaseToken        string   `json:"base_token"`
	NativeToken      string   `json:"native_token"`
	WrappedNative    string   `json:"wrapped_native"`
	Decimals         uint8    `json:"decimals"`
	CrossChainTokens []string `json:"cross_chain_tokens"`
	TotalSupply      int64    `json:"total_supply"`
	UnitaryValue     int64    `json:"unitary_value"`
	Sequence         int64    `json:"sequence"`
	TimestampUs      int64    `json:"timestamp_us"`
}

func parsePoolRegistered(data []byte) (*event.PoolRegistered, error) {
	var j poolRegisteredJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolRegistered: %w", err)
	}
	id, err := uuid.Parse(j.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("parse registration_id: %w", err)
	}
	if j.Pool == "" || j.BaseToken == "" {
		return nil, fmt.Errorf("pool and base_token are required")
	}
	if j.TotalSupply < 0 || j.UnitaryValue < 0 {
		return nil, fmt.Errorf("total_supply and unitary_value must be non-negative")
	}
	return &event.PoolRegistered{
		RegistrationID:   id,
		Pool:             j.Pool,
		BaseToken:        j.BaseToken,
		NativeToken:      j.NativeToken,
		WrappedNative:    j.WrappedNative,
		Decimals:         j.Decimals,
		CrossChainTokens: j.CrossChainTokens,
		TotalSupply:      j.TotalSupply,
		UnitaryValue:     j.UnitaryValue,
		Sequence:         j.Sequence,
		Timestamp:        time.UnixMicro(j.TimestampUs),
	}, nil
}

type supplyUpdateJSON struct {
	UpdateID    string `json:"update_id"`
	Pool        string `json:"pool"`
	Supply      int64  `json:"supply"`
	Reason      string `json:"reason"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseSupplyUpdate(data []byte) (*event.SupplyUpdate, error) {
	var j supplyUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SupplyUpdate: %w", err)
	}
	id, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	if j.Supply < 0 {
		return nil, fmt.Errorf("supply must be non-negative, got %d", j.Supply)
	}
	return &event.SupplyUpdate{
		UpdateID:  id,
		Pool:      j.Pool,
		Supply:    j.Supply,
		Reason:    j.Reason,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type walletTransferJSON struct {
	TransferID  string `json:"transfer_id"`
	Pool        string `json:"pool"`
	Token       string `json:"token"`
	Delta       int64  `json:"delta"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseWalletTransfer(data []byte) (*event.WalletTransfer, error) {
	var j walletTransferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WalletTransfer: %w", err)
	}
	id, err := uuid.Parse(j.TransferID)
	if err != nil {
		return nil, fmt.Errorf("parse transfer_id: %w", err)
	}
	if j.Delta == 0 {
		return nil, fmt.Errorf("transfer delta must be nonzero")
	}
	return &event.WalletTransfer{
		TransferID: id,
		Pool:       j.Pool,
		Token:      j.Token,
		Delta:      j.Delta,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type donationLockedJSON struct {
	LockID      string `json:"lock_id"`
	Pool        string `json:"pool"`
	Token       string `json:"token"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDonationLocked(data []byte) (*event.DonationLocked, error) {
	var j donationLockedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DonationLocked: %w", err)
	}
	id, err := uuid.Parse(j.LockID)
	if err != nil {
		return nil, fmt.Errorf("parse lock_id: %w", err)
	}
	return &event.DonationLocked{
		LockID:    id,
		Pool:      j.Pool,
		Token:     j.Token,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type bridgeFillJSON struct {
	FillID             string `json:"fill_id"`
	Pool               string `json:"pool"`
	Token              string `json:"token"`
	Amount             int64  `json:"amount"`
	OpType             string `json:"op_type"`
	ShouldUnwrapNative bool   `json:"should_unwrap_native"`
	SyncMultiplierBps  uint16 `json:"sync_multiplier_bps"`
	Sequence           int64  `json:"sequence"`
	TimestampUs        int64  `json:"timestamp_us"`
}

func parseBridgeFillFinalized(data []byte) (*event.BridgeFillFinalized, error) {
	var j bridgeFillJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BridgeFillFinalized: %w", err)
	}
	id, err := uuid.Parse(j.FillID)
	if err != nil {
		return nil, fmt.Errorf("parse fill_id: %w", err)
	}
	if j.Amount < 0 {
		return nil, fmt.Errorf("amount must be non-negative, got %d", j.Amount)
	}
	return &event.BridgeFillFinalized{
		FillID:             id,
		Pool:               j.Pool,
		Token:              j.Token,
		Amount:             j.Amount,
		OpType:             j.OpType,
		ShouldUnwrapNative: j.ShouldUnwrapNative,
		SyncMultiplierBps:  j.SyncMultiplierBps,
		Sequence:           j.Sequence,
		Timestamp:          time.UnixMicro(j.TimestampUs),
	}, nil
}

type outboundBridgeJSON struct {
	TransferID  string `json:"transfer_id"`
	Pool        string `json:"pool"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseOutboundBridge(data []byte) (*event.OutboundBridgeInitiated, error) {
	var j outboundBridgeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OutboundBridgeInitiated: %w", err)
	}
	id, err := uuid.Parse(j.TransferID)
	if err != nil {
		return nil, fmt.Errorf("parse transfer_id: %w", err)
	}
	if j.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", j.Amount)
	}
	return &event.OutboundBridgeInitiated{
		TransferID: id,
		Pool:       j.Pool,
		Token:      j.Token,
		Amount:     j.Amount,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type priceUpdateJSON struct {
	TickID      string `json:"tick_id"`
	Token       string `json:"token"`
	QuoteToken  string `json:"quote_token"`
	PriceAmount int64  `json:"price_amount"`
	Volume      int64  `json:"volume"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}
	id, err := uuid.Parse(j.TickID)
	if err != nil {
		return nil, fmt.Errorf("parse tick_id: %w", err)
	}
	if j.PriceAmount <= 0 || j.Volume <= 0 {
		return nil, fmt.Errorf("rate fraction must be positive, got %d/%d", j.PriceAmount, j.Volume)
	}
	return &event.PriceUpdate{
		TickID:      id,
		Token:       j.Token,
		QuoteToken:  j.QuoteToken,
		PriceAmount: j.PriceAmount,
		Volume:      j.Volume,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

type appPositionJSON struct {
	ReadingID   string `json:"reading_id"`
	Pool        string `json:"pool"`
	App         string `json:"app"`
	Value       int64  `json:"value"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAppPositionUpdate(data []byte) (*event.AppPositionUpdate, error) {
	var j appPositionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AppPositionUpdate: %w", err)
	}
	id, err := uuid.Parse(j.ReadingID)
	if err != nil {
		return nil, fmt.Errorf("parse reading_id: %w", err)
	}
	if j.Value < 0 {
		return nil, fmt.Errorf("position value must be non-negative, got %d", j.Value)
	}
	return &event.AppPositionUpdate{
		ReadingID: id,
		Pool:      j.Pool,
		App:       j.App,
		Value:     j.Value,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
