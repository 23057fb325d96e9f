package reconcile

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"NavLedger/internal/ledger"
	"NavLedger/internal/math"
	"NavLedger/internal/nav"
)

// Session is the state snapshotted when a donation lock opens: the pool's
// total asset value, the wallet balance of the incoming token, and the
// unitary value settlement will price against. It exists only between Lock
// and Finalize.
type Session struct {
	Pool          string
	Token         string
	StoredAssets  int64
	StoredBalance int64
	StoredUnitary int64
	Sequence      int64
	LockedAt      time.Time
}

// Manager runs reconciliation sessions. One session may be open per
// (pool, token); a separate per-pool guard rejects a finalize arriving while
// another finalize on the same pool is mid-flight.
//
// Every Finalize exit path, success or failure, releases the lock and
// discards the stored scalars: a failed settlement must never leave the pair
// locked or let stale snapshot values leak into the next session.
type Manager struct {
	pools    *ledger.Pools
	wallets  *ledger.WalletTracker
	virtual  *ledger.VirtualLedger
	registry *ledger.ActivationRegistry
	nav      *nav.Engine
	journal  *ledger.Journal
	log      zerolog.Logger

	sessions   map[string]*Session
	finalizing map[string]bool
}

func NewManager(pools *ledger.Pools, wallets *ledger.WalletTracker, virtual *ledger.VirtualLedger, registry *ledger.ActivationRegistry, navEngine *nav.Engine, journal *ledger.Journal, log zerolog.Logger) *Manager {
	return &Manager{
		pools:      pools,
		wallets:    wallets,
		virtual:    virtual,
		registry:   registry,
		nav:        navEngine,
		journal:    journal,
		log:        log,
		sessions:   make(map[string]*Session),
		finalizing: make(map[string]bool),
	}
}

func sessionKey(pool, token string) string {
	return pool + "/" + token
}

// Lock opens a session for (pool, token), snapshotting the state the
// matching finalize will reconcile against.
func (m *Manager) Lock(poolID, token string, seq int64, at time.Time) error {
	p, err := m.pools.Get(poolID)
	if err != nil {
		return err
	}
	key := sessionKey(poolID, token)
	if _, open := m.sessions[key]; open {
		return fmt.Errorf("%w: session already open for %s", ErrDonationLock, key)
	}
	if token != p.BaseToken && token != p.NativeToken && token != p.WrappedNative && !p.SupportsCrossChain(token) {
		return fmt.Errorf("%w: %s for pool %s", ledger.ErrUnsupportedCrossChainToken, token, poolID)
	}

	// A pre-existing balance of a not-yet-activated token is invisible to the
	// asset snapshot but becomes visible once finalize activates the token,
	// which would trip the manipulation check. Activate it up front when it
	// can be priced; an unpriceable token is rejected at finalize anyway.
	if p.SupportsCrossChain(token) && !m.registry.IsActive(p, token) &&
		m.wallets.Balance(poolID, token) > 0 && m.nav.HasRoute(token, p.BaseToken) {
		if _, err := m.registry.ActivateIfNew(p, token); err != nil {
			return err
		}
	}

	assets, err := m.nav.TotalAssets(p)
	if err != nil {
		return fmt.Errorf("snapshot assets for %s: %w", key, err)
	}

	m.sessions[key] = &Session{
		Pool:          poolID,
		Token:         token,
		StoredAssets:  assets,
		StoredBalance: m.walletBalance(p, token),
		StoredUnitary: p.UnitaryValue,
		Sequence:      seq,
		LockedAt:      at,
	}

	m.log.Debug().
		Str("pool", poolID).
		Str("token", token).
		Int64("stored_assets", assets).
		Int64("stored_unitary", p.UnitaryValue).
		Msg("reconciliation session locked")
	return nil
}

// Locked reports whether a session is open for (pool, token).
func (m *Manager) Locked(poolID, token string) bool {
	_, open := m.sessions[sessionKey(poolID, token)]
	return open
}

// Result is a successful finalize: the entries applied, what the handler did
// with the value, and the refreshed valuation.
type Result struct {
	Entries        []ledger.Entry
	Outcome        Outcome
	AmountReceived int64
	AmountInBase   int64
	Valuation      nav.Result
}

// Finalize consumes the open session for (pool, params.Token). It measures
// what actually arrived, verifies pool assets moved only by the bridged
// amount, settles via the op's handler, re-verifies, and refreshes the
// stored unitary value. Any failure rolls every mutation back; the session
// lock is released on all paths.
func (m *Manager) Finalize(poolID string, params MessageParams, seq int64, at time.Time) (res Result, err error) {
	p, err := m.pools.Get(poolID)
	if err != nil {
		return Result{}, err
	}
	if m.finalizing[poolID] {
		return Result{}, fmt.Errorf("%w: pool %s", ErrReentrantCall, poolID)
	}
	m.finalizing[poolID] = true
	defer delete(m.finalizing, poolID)

	key := sessionKey(poolID, params.Token)
	sess, open := m.sessions[key]
	if !open {
		return Result{}, fmt.Errorf("%w: no session open for %s", ErrDonationLock, key)
	}
	// Lock release and scalar cleanup happen on every exit path.
	defer delete(m.sessions, key)

	defer func() {
		if err != nil {
			m.log.Warn().
				Str("pool", poolID).
				Str("token", params.Token).
				Err(err).
				Msg("reconciliation finalize rejected")
		}
	}()

	if err = params.Validate(); err != nil {
		return Result{}, err
	}
	handler, err := HandlerFor(params.Op)
	if err != nil {
		return Result{}, err
	}

	// Undo state, unwound in reverse order on failure. Activation is not
	// part of it: the delivered tokens stay in the wallet either way, so a
	// rolled-back finalize leaves the token active and priced rather than
	// hiding a balance the pool demonstrably holds.
	var (
		applied   []ledger.Entry
		unwrapped int64
	)
	rollback := func() {
		m.journal.Revert(applied)
		if unwrapped > 0 {
			if rerr := m.wallets.Rewrap(poolID, p.WrappedNative, p.NativeToken, unwrapped); rerr != nil {
				m.log.Error().Err(rerr).Str("pool", poolID).Msg("rewrap during rollback failed")
			}
		}
	}

	if params.ShouldUnwrapNative {
		unwrapped, err = m.wallets.Unwrap(poolID, p.WrappedNative, p.NativeToken)
		if err != nil {
			return Result{}, err
		}
	}

	// A token may only activate once it can be priced.
	if !m.nav.HasRoute(params.Token, p.BaseToken) {
		rollback()
		return Result{}, fmt.Errorf("%w: no rate for %s/%s", ledger.ErrTokenNotInitialized, params.Token, p.BaseToken)
	}
	if _, err = m.registry.ActivateIfNew(p, params.Token); err != nil {
		rollback()
		return Result{}, err
	}

	balNow := m.walletBalance(p, params.Token)
	received, err := math.SubChecked(balNow, sess.StoredBalance)
	if err != nil {
		rollback()
		return Result{}, err
	}
	if received < 0 {
		rollback()
		return Result{}, fmt.Errorf("%w: balance %d below locked %d for %s",
			ledger.ErrBalanceUnderflow, balNow, sess.StoredBalance, params.Token)
	}
	if received < params.Amount {
		rollback()
		return Result{}, fmt.Errorf("%w: received %d, declared %d", ErrCallerTransferAmount, received, params.Amount)
	}

	// Value both balances at current rates and subtract, so the delta and
	// the asset totals floor the same way.
	balNowInBase, err := m.convert(p, params.Token, balNow)
	if err != nil {
		rollback()
		return Result{}, err
	}
	storedInBase, err := m.convert(p, params.Token, sess.StoredBalance)
	if err != nil {
		rollback()
		return Result{}, err
	}
	deltaInBase := balNowInBase - storedInBase

	assetsNow, err := m.nav.TotalAssets(p)
	if err != nil {
		rollback()
		return Result{}, err
	}
	if assetsNow != sess.StoredAssets+deltaInBase {
		rollback()
		return Result{}, fmt.Errorf("%w: assets %d, expected %d (stored %d + delta %d)",
			ErrNavManipulationDetected, assetsNow, sess.StoredAssets+deltaInBase, sess.StoredAssets, deltaInBase)
	}

	amountInBase, err := m.convert(p, params.Token, params.Amount)
	if err != nil {
		rollback()
		return Result{}, err
	}

	entries, outcome, err := handler.Settle(p, params.Token, amountInBase, SettleContext{
		VirtualBalance:    m.virtual.Balance(poolID, p.BaseToken),
		StoredUnitary:     sess.StoredUnitary,
		SyncMultiplierBps: params.SyncMultiplierBps,
	})
	if err != nil {
		rollback()
		return Result{}, err
	}
	if err = m.journal.Apply(&ledger.Batch{Entries: entries}); err != nil {
		rollback()
		return Result{}, err
	}
	applied = append(applied, entries...)

	// Settlement may only have consumed virtual balance and minted supply:
	// total assets must have dropped by exactly the cleared amount.
	assetsAfter, err := m.nav.TotalAssets(p)
	if err != nil {
		rollback()
		return Result{}, err
	}
	if assetsAfter != assetsNow-outcome.VirtualBalanceCleared {
		rollback()
		return Result{}, fmt.Errorf("%w: post-settlement assets %d, expected %d",
			ErrNavManipulationDetected, assetsAfter, assetsNow-outcome.VirtualBalanceCleared)
	}

	valuation, err := m.nav.Compute(p)
	if err != nil {
		rollback()
		return Result{}, err
	}
	if uvDelta := valuation.UnitaryValue - p.UnitaryValue; uvDelta != 0 {
		uvEntry := ledger.Entry{Kind: ledger.KindUnitaryValue, Pool: poolID, Delta: uvDelta}
		if err = m.journal.ApplyEntry(uvEntry); err != nil {
			rollback()
			return Result{}, err
		}
		applied = append(applied, uvEntry)
	}

	m.log.Info().
		Str("pool", poolID).
		Str("token", params.Token).
		Str("op", params.Op.String()).
		Int64("received", received).
		Int64("amount_in_base", amountInBase).
		Int64("vb_cleared", outcome.VirtualBalanceCleared).
		Int64("vs_minted", outcome.VirtualSupplyMinted).
		Int64("unitary_value", valuation.UnitaryValue).
		Msg("reconciliation finalized")

	return Result{
		Entries:        applied,
		Outcome:        outcome,
		AmountReceived: received,
		AmountInBase:   amountInBase,
		Valuation:      valuation,
	}, nil
}

// walletBalance reads the settleable balance of a token. Native and
// wrapped-native are one holding: the bridge delivers wrapped units that
// finalize may re-key, so both lock and finalize measure them combined.
// The rate table prices wrapped-native at par with native.
func (m *Manager) walletBalance(p *ledger.Pool, token string) int64 {
	bal := m.wallets.Balance(p.ID, token)
	if token == p.NativeToken && p.WrappedNative != "" {
		bal += m.wallets.Balance(p.ID, p.WrappedNative)
	}
	return bal
}

func (m *Manager) convert(p *ledger.Pool, token string, amount int64) (int64, error) {
	v, err := m.nav.Convert(token, amount, p.BaseToken)
	if err != nil {
		return 0, fmt.Errorf("convert %d %s to %s: %w", amount, token, p.BaseToken, err)
	}
	return v, nil
}

// Sessions returns the open sessions for snapshotting; order is unspecified.
func (m *Manager) Sessions() []*Session {
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		copied := *s
		out = append(out, &copied)
	}
	return out
}

// Restore reinstates sessions from a snapshot.
func (m *Manager) Restore(sessions []*Session) {
	m.sessions = make(map[string]*Session, len(sessions))
	for _, s := range sessions {
		copied := *s
		m.sessions[sessionKey(s.Pool, s.Token)] = &copied
	}
}
