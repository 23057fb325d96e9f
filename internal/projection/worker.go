package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Output carries what projection workers need from a processed event.
// The orchestrator bridges between core.Output and this.
type Output struct {
	Sequence  int64
	EventType string
	Pool      *string
	Entries   []Entry
	Payload   []byte
	Timestamp time.Time
}

// Entry is a simplified ledger entry for projection consumption.
type Entry struct {
	Kind  string
	Pool  string
	Token string
	Delta int64
}

// Worker updates projection tables from processed events. The projection
// channel is lossy: a failed or dropped update only delays the read model,
// which can always be rebuilt from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Output
	log       zerolog.Logger
	lastSeq   int64
}

func NewWorker(db *sql.DB, inputChan <-chan Output, log zerolog.Logger) *Worker {
	return &Worker{db: db, inputChan: inputChan, log: log}
}

// Run drains the projection channel until the context ends or the channel
// closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case output, ok := <-w.inputChan:
			if !ok {
				return nil
			}
			if err := w.processOutput(ctx, output); err != nil {
				w.log.Warn().Int64("sequence", output.Sequence).Err(err).Msg("projection update failed")
			}
			w.lastSeq = output.Sequence
		}
	}
}

func (w *Worker) processOutput(ctx context.Context, output Output) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range output.Entries {
		if err := w.applyEntry(ctx, tx, output.Sequence, e); err != nil {
			return fmt.Errorf("entry projection: %w", err)
		}
	}

	switch output.EventType {
	case "DonationLocked":
		err = w.applySessionLocked(ctx, tx, output)
	case "TokensReceived":
		err = w.applyTokensReceived(ctx, tx, output)
	case "ReconciliationFailed":
		err = w.applyReconciliationFailed(ctx, tx, output)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (w *Worker) applyEntry(ctx context.Context, tx *sql.Tx, seq int64, e Entry) error {
	switch e.Kind {
	case "wallet", "virtual_balance":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (pool, token, kind, balance, last_sequence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (pool, token, kind)
			DO UPDATE SET balance = projections.balances.balance + $4, last_sequence = $5
		`, e.Pool, e.Token, e.Kind, e.Delta, seq)
		return err
	case "virtual_supply":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.pool_state (pool, unitary_value, total_supply, virtual_supply, last_sequence, updated_at)
			VALUES ($1, 0, 0, $2, $3, NOW())
			ON CONFLICT (pool)
			DO UPDATE SET virtual_supply = projections.pool_state.virtual_supply + $2, last_sequence = $3, updated_at = NOW()
		`, e.Pool, e.Delta, seq)
		return err
	case "total_supply":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.pool_state (pool, unitary_value, total_supply, virtual_supply, last_sequence, updated_at)
			VALUES ($1, 0, $2, 0, $3, NOW())
			ON CONFLICT (pool)
			DO UPDATE SET total_supply = projections.pool_state.total_supply + $2, last_sequence = $3, updated_at = NOW()
		`, e.Pool, e.Delta, seq)
		return err
	case "unitary_value":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.pool_state (pool, unitary_value, total_supply, virtual_supply, last_sequence, updated_at)
			VALUES ($1, $2, 0, 0, $3, NOW())
			ON CONFLICT (pool)
			DO UPDATE SET unitary_value = projections.pool_state.unitary_value + $2, last_sequence = $3, updated_at = NOW()
		`, e.Pool, e.Delta, seq)
		return err
	default:
		return nil
	}
}

// tokensReceivedPayload matches the persisted receipt fields this worker
// needs; unmarshal is name-based so extra fields are ignored.
type tokensReceivedPayload struct {
	Pool                string
	Token               string
	AmountInBase        int64
	VirtualBalanceUsed  int64
	VirtualSupplyMinted int64
	OpType              string
	UnitaryValue        int64
}

func (w *Worker) applyTokensReceived(ctx context.Context, tx *sql.Tx, output Output) error {
	var p tokensReceivedPayload
	if err := json.Unmarshal(output.Payload, &p); err != nil {
		return fmt.Errorf("decode receipt payload: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.nav_history
			(pool, sequence, unitary_value, amount_in_base, virtual_balance_used, virtual_supply_minted, op_type, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pool, sequence) DO NOTHING
	`, p.Pool, output.Sequence, p.UnitaryValue, p.AmountInBase, p.VirtualBalanceUsed, p.VirtualSupplyMinted, p.OpType, output.Timestamp); err != nil {
		return fmt.Errorf("nav history insert: %w", err)
	}

	return w.setSessionState(ctx, tx, p.Pool, p.Token, false, "", output.Sequence)
}

type sessionPayload struct {
	Pool   string
	Token  string
	Reason string
}

func (w *Worker) applySessionLocked(ctx context.Context, tx *sql.Tx, output Output) error {
	var p sessionPayload
	if err := json.Unmarshal(output.Payload, &p); err != nil {
		return fmt.Errorf("decode lock payload: %w", err)
	}
	return w.setSessionState(ctx, tx, p.Pool, p.Token, true, "", output.Sequence)
}

func (w *Worker) applyReconciliationFailed(ctx context.Context, tx *sql.Tx, output Output) error {
	var p sessionPayload
	if err := json.Unmarshal(output.Payload, &p); err != nil {
		return fmt.Errorf("decode failure payload: %w", err)
	}
	return w.setSessionState(ctx, tx, p.Pool, p.Token, false, p.Reason, output.Sequence)
}

func (w *Worker) setSessionState(ctx context.Context, tx *sql.Tx, pool, token string, locked bool, reason string, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.sessions (pool, token, locked, last_reason, last_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (pool, token)
		DO UPDATE SET locked = $3, last_reason = $4, last_sequence = $5, updated_at = NOW()
	`, pool, token, locked, reason, seq)
	return err
}
