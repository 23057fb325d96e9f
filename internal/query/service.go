package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Service answers read queries from the projection tables. Reads are
// eventually consistent with the core; Watermark exposes how far behind.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// PoolNav is the projected valuation state of one pool.
type PoolNav struct {
	Pool          string `json:"pool"`
	UnitaryValue  int64  `json:"unitary_value"`
	TotalSupply   int64  `json:"total_supply"`
	VirtualSupply int64  `json:"virtual_supply"`
	LastSequence  int64  `json:"last_sequence"`
}

// TokenBalance is one projected balance row.
type TokenBalance struct {
	Token        string `json:"token"`
	Balance      int64  `json:"balance"`
	LastSequence int64  `json:"last_sequence"`
}

// NavHistoryEntry is one reconciliation receipt in pool history.
type NavHistoryEntry struct {
	Sequence            int64     `json:"sequence"`
	UnitaryValue        int64     `json:"unitary_value"`
	AmountInBase        int64     `json:"amount_in_base"`
	VirtualBalanceUsed  int64     `json:"virtual_balance_used"`
	VirtualSupplyMinted int64     `json:"virtual_supply_minted"`
	OpType              string    `json:"op_type"`
	Timestamp           time.Time `json:"timestamp"`
}

// SessionStatus is the projected lock state of one (pool, token) pair.
type SessionStatus struct {
	Pool         string    `json:"pool"`
	Token        string    `json:"token"`
	Locked       bool      `json:"locked"`
	LastReason   string    `json:"last_reason,omitempty"`
	LastSequence int64     `json:"last_sequence"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ErrNotFound is returned when no projection row exists.
var ErrNotFound = sql.ErrNoRows

// GetPoolNav returns the projected valuation of a pool.
func (s *Service) GetPoolNav(ctx context.Context, pool string) (*PoolNav, error) {
	var nav PoolNav
	nav.Pool = pool
	err := s.db.QueryRowContext(ctx, `
		SELECT unitary_value, total_supply, virtual_supply, last_sequence
		FROM projections.pool_state
		WHERE pool = $1
	`, pool).Scan(&nav.UnitaryValue, &nav.TotalSupply, &nav.VirtualSupply, &nav.LastSequence)
	if err != nil {
		return nil, err
	}
	return &nav, nil
}

// GetBalances returns projected balances of a pool for one kind
// ("wallet" or "virtual_balance").
func (s *Service) GetBalances(ctx context.Context, pool, kind string) ([]TokenBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, balance, last_sequence
		FROM projections.balances
		WHERE pool = $1 AND kind = $2 AND balance != 0
		ORDER BY token
	`, pool, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TokenBalance
	for rows.Next() {
		var b TokenBalance
		if err := rows.Scan(&b.Token, &b.Balance, &b.LastSequence); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetNavHistory returns the newest reconciliation receipts for a pool.
func (s *Service) GetNavHistory(ctx context.Context, pool string, limit int) ([]NavHistoryEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, unitary_value, amount_in_base, virtual_balance_used, virtual_supply_minted, op_type, timestamp
		FROM projections.nav_history
		WHERE pool = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, pool, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NavHistoryEntry
	for rows.Next() {
		var e NavHistoryEntry
		if err := rows.Scan(&e.Sequence, &e.UnitaryValue, &e.AmountInBase, &e.VirtualBalanceUsed, &e.VirtualSupplyMinted, &e.OpType, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetSessionStatus returns the projected lock state of (pool, token).
func (s *Service) GetSessionStatus(ctx context.Context, pool, token string) (*SessionStatus, error) {
	var st SessionStatus
	err := s.db.QueryRowContext(ctx, `
		SELECT pool, token, locked, last_reason, last_sequence, updated_at
		FROM projections.sessions
		WHERE pool = $1 AND token = $2
	`, pool, token).Scan(&st.Pool, &st.Token, &st.Locked, &st.LastReason, &st.LastSequence, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Watermark returns the last sequence applied to projections.
func (s *Service) Watermark(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark: %w", err)
	}
	return seq.Int64, nil
}
