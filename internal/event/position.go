package event

import (
	"time"

	"github.com/google/uuid"
)

// AppPositionUpdate reports the current base-token value of capital the pool
// has deployed into an external app (lending market, LP position, etc).
// Value is absolute and replaces the previous reading for (pool, app).
//
// Like price feeds, position streams are gap-tolerant.
type AppPositionUpdate struct {
	ReadingID uuid.UUID
	Pool      string
	App       string
	Value     int64
	Sequence  int64
	Timestamp time.Time
}

func (a *AppPositionUpdate) IdempotencyKey() string {
	return a.ReadingID.String()
}

func (a *AppPositionUpdate) EventType() EventType {
	return EventTypeAppPositionUpdate
}

func (a *AppPositionUpdate) PoolID() *string {
	return &a.Pool
}

func (a *AppPositionUpdate) SourceSequence() int64 {
	return a.Sequence
}
