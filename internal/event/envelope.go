package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePoolRegistered
	EventTypeWalletTransfer
	EventTypeDonationLocked
	EventTypeBridgeFillFinalized
	EventTypeOutboundBridgeInitiated
	EventTypePriceUpdate
	EventTypeAppPositionUpdate
	EventTypeSupplyUpdate
	EventTypeTokensReceived
	EventTypeReconciliationFailed
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Pool context (nullable for global events such as price updates)
	PoolID *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// PoolID returns the pool context (nil for global events)
	PoolID() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypePoolRegistered:
		return "PoolRegistered"
	case EventTypeWalletTransfer:
		return "WalletTransfer"
	case EventTypeDonationLocked:
		return "DonationLocked"
	case EventTypeBridgeFillFinalized:
		return "BridgeFillFinalized"
	case EventTypeOutboundBridgeInitiated:
		return "OutboundBridgeInitiated"
	case EventTypePriceUpdate:
		return "PriceUpdate"
	case EventTypeAppPositionUpdate:
		return "AppPositionUpdate"
	case EventTypeSupplyUpdate:
		return "SupplyUpdate"
	case EventTypeTokensReceived:
		return "TokensReceived"
	case EventTypeReconciliationFailed:
		return "ReconciliationFailed"
	default:
		return "Unknown"
	}
}
