package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes events and ledger entries to Postgres using
// multi-row INSERTs. Writes are idempotent: replays conflict on sequence and
// are dropped.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is a row in event_log.events.
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	Pool           *string
	Payload        []byte
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// EntryRow is a row in event_log.entries: one signed balance movement.
type EntryRow struct {
	EntryID   string
	Sequence  int64
	Kind      string
	Pool      string
	Token     string
	Delta     int64
	Cause     string
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// DB exposes the underlying handle for transactional flushes.
func (w *EventLogWriter) DB() *sql.DB {
	return w.db
}

// WriteEventBatch writes events inside the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, idempotency_key, pool, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)
	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.Pool,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteEntryBatch writes ledger entries inside the given transaction.
func (w *EventLogWriter) WriteEntryBatch(ctx context.Context, tx *sql.Tx, entries []EntryRow) error {
	if len(entries) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.entries
		(entry_id, sequence, kind, pool, token, delta, cause, timestamp)
		VALUES `

	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*8)
	for i, e := range entries {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, e.EntryID, e.Sequence, e.Kind, e.Pool, e.Token, e.Delta, e.Cause, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (entry_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarshalEventPayload serializes an event payload to JSON for storage.
func MarshalEventPayload(payload interface{}) ([]byte, error) {
	return json.Marshal(payload)
}
