package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"NavLedger/internal/pricing"
)

// SnapshotManager creates and loads state snapshots for warm restarts.
// A snapshot captures everything the core holds in memory: pool state,
// balances, open sessions, rates, positions, partition watermarks, and the
// hash chain tip.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the full in-memory state at a point in time.
type SnapshotData struct {
	Sequence        int64            `json:"sequence"`
	StateHash       []byte           `json:"state_hash"`
	Pools           []PoolSnapshot   `json:"pools"`
	Rates           []pricing.Rate   `json:"rates"`
	Sessions        []SessionSnap    `json:"sessions"`
	SequenceState   map[string]int64 `json:"sequence_state"`
	IdempotencyKeys []string         `json:"idempotency_keys"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PoolSnapshot is one pool's complete serialized state.
type PoolSnapshot struct {
	ID               string           `json:"id"`
	BaseToken        string           `json:"base_token"`
	NativeToken      string           `json:"native_token"`
	WrappedNative    string           `json:"wrapped_native"`
	Decimals         uint8            `json:"decimals"`
	TotalSupply      int64            `json:"total_supply"`
	UnitaryValue     int64            `json:"unitary_value"`
	CrossChainTokens []string         `json:"cross_chain_tokens"`
	ActiveTokens     []string         `json:"active_tokens"`
	WalletBalances   map[string]int64 `json:"wallet_balances"`
	VirtualBalances  map[string]int64 `json:"virtual_balances"`
	VirtualSupply    int64            `json:"virtual_supply"`
	AppPositions     map[string]int64 `json:"app_positions"`
}

// SessionSnap is a serialized open reconciliation session.
type SessionSnap struct {
	Pool          string    `json:"pool"`
	Token         string    `json:"token"`
	StoredAssets  int64     `json:"stored_assets"`
	StoredBalance int64     `json:"stored_balance"`
	StoredUnitary int64     `json:"stored_unitary"`
	Sequence      int64     `json:"sequence"`
	LockedAt      time.Time `json:"locked_at"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot. Snapshots are taken periodically;
// recovery loads the newest verified one and replays forward.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, 1, $5, FALSE, $6)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $5
	`, uuid.New(), snap.Sequence, data, snap.StateHash, len(data), snap.CreatedAt)
	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil on a
// cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// MarkVerified marks a snapshot as verified after an integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx,
		`UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1`, sequence)
	return err
}

// LoadEventsFrom loads events for replay, ordered by sequence.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, pool, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.Pool,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log, or zero
// when the log is empty.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_log.events`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
