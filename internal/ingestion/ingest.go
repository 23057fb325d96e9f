package ingestion

import (
	"errors"
	"time"
)

// ErrIngestBackpressure means the event channel was full and the submission
// was not queued. HTTP callers should retry with backoff.
var ErrIngestBackpressure = errors.New("ingest channel full")

// DirectIngest accepts events from the HTTP API and feeds them into the
// same channel the NATS consumers use, so both surfaces share one ordering
// point in front of the core.
type DirectIngest struct {
	eventChan chan<- RawEvent
}

func NewDirectIngest(eventChan chan<- RawEvent) *DirectIngest {
	return &DirectIngest{eventChan: eventChan}
}

// Submit queues one raw event without blocking. HTTP submissions have no
// broker redelivery behind them, so instead of stalling the request we
// reject on a full channel.
func (di *DirectIngest) Submit(eventType string, payload []byte) error {
	raw := RawEvent{
		Subject:   "direct",
		EventType: eventType,
		Data:      payload,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
	select {
	case di.eventChan <- raw:
		return nil
	default:
		return ErrIngestBackpressure
	}
}
