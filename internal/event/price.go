package event

import (
	"time"

	"github.com/google/uuid"
)

// PriceUpdate publishes an exchange rate between two tokens as a fraction:
// Volume units of Token are worth PriceAmount units of QuoteToken. Fractions
// avoid committing the feed to a fixed price scale.
//
// Price streams are gap-tolerant: a missed update is superseded by the next
// one, so sequence gaps are not fatal for this event type.
type PriceUpdate struct {
	TickID      uuid.UUID
	Token       string
	QuoteToken  string
	PriceAmount int64
	Volume      int64
	Sequence    int64
	Timestamp   time.Time
}

func (p *PriceUpdate) IdempotencyKey() string {
	return p.TickID.String()
}

func (p *PriceUpdate) EventType() EventType {
	return EventTypePriceUpdate
}

func (p *PriceUpdate) PoolID() *string {
	// Rates are global, not scoped to a pool.
	return nil
}

func (p *PriceUpdate) SourceSequence() int64 {
	return p.Sequence
}
