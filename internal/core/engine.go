package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"NavLedger/internal/event"
	"NavLedger/internal/ledger"
	"NavLedger/internal/nav"
	"NavLedger/internal/observability"
	"NavLedger/internal/positions"
	"NavLedger/internal/pricing"
	"NavLedger/internal/reconcile"
)

// Output is one sequenced result of event processing: the envelope for the
// event log, the entry batch it produced, and the state digest bytes.
type Output struct {
	Envelope   *event.EventEnvelope
	Batch      *ledger.Batch
	StateDelta []byte
}

// Core is the single-threaded event processor. All state mutation happens
// here, in envelope-sequence order, so replaying the event log reproduces
// the exact same state and hash chain.
type Core struct {
	sequence int64
	hasher   *StateHasher

	pools     *ledger.Pools
	wallets   *ledger.WalletTracker
	virtual   *ledger.VirtualLedger
	registry  *ledger.ActivationRegistry
	journal   *ledger.Journal
	rates     *pricing.RateTable
	positions *positions.Cache
	navEngine *nav.Engine
	sessions  *reconcile.Manager

	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	log               zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output
}

func NewCore(
	startSequence int64,
	persistChan, projectionChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Core {
	pools := ledger.NewPools()
	wallets := ledger.NewWalletTracker()
	virtual := ledger.NewVirtualLedger()
	registry := ledger.NewActivationRegistry()
	rates := pricing.NewRateTable()
	posCache := positions.NewCache()
	journal := ledger.NewJournal(pools, wallets, virtual)
	navEngine := nav.NewEngine(rates, registry, wallets, virtual, posCache)
	sessions := reconcile.NewManager(pools, wallets, virtual, registry, navEngine, journal, log)

	return &Core{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		pools:             pools,
		wallets:           wallets,
		virtual:           virtual,
		registry:          registry,
		journal:           journal,
		rates:             rates,
		positions:         posCache,
		navEngine:         navEngine,
		sessions:          sessions,
		idempotency:       NewIdempotencyChecker(1_000_000, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		log:               log,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// sequenced pairs a processed event with the batch it produced, before
// envelope assignment. Derived events (receipts, failures) ride along as
// extra sequenced outputs of the triggering event.
type sequenced struct {
	evt   event.Event
	batch *ledger.Batch
}

// ProcessEvent runs the full pipeline for one event: dedup, sequence
// validation, dispatch, digest, hash chain, emit. A rejected reconciliation
// is a processed outcome, not a pipeline error: the caller should only see
// an error when the event must be redelivered (ordering violations).
func (c *Core) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Feed events are gap-tolerant and stale-droppable; everything else is
	// strictly ordered per pool.
	switch e := evt.(type) {
	case *event.PriceUpdate:
		if stale := c.sequenceValidator.ValidateFeedSequence("rate:"+e.Token+"/"+e.QuoteToken, e.Sequence); stale {
			return nil
		}
	case *event.AppPositionUpdate:
		if stale := c.sequenceValidator.ValidateFeedSequence("position:"+e.Pool+"/"+e.App, e.Sequence); stale {
			return nil
		}
	default:
		if err := c.sequenceValidator.ValidateSequence(c.partition(evt), evt.SourceSequence(), isDuplicate); err != nil {
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	if isDuplicate {
		if c.metrics != nil {
			c.metrics.EventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	results, err := c.dispatch(evt)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}

	outputs := make([]Output, 0, len(results))
	for _, r := range results {
		payload, err := json.Marshal(r.evt)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		stateDigest := c.computeStateDigest(r.evt, r.batch)
		prevHash := c.hasher.PrevHash()
		stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

		envelope := &event.EventEnvelope{
			Sequence:       c.sequence,
			IdempotencyKey: r.evt.IdempotencyKey(),
			EventType:      r.evt.EventType(),
			PoolID:         r.evt.PoolID(),
			Timestamp:      eventTimestamp(r.evt),
			SourceSequence: r.evt.SourceSequence(),
			Payload:        payload,
			StateHash:      stateHash,
			PrevHash:       prevHash,
		}
		outputs = append(outputs, Output{Envelope: envelope, Batch: r.batch, StateDelta: stateDigest})
		c.sequence++
	}

	for _, output := range outputs {
		// Persistence backpressures the core; projections are lossy and
		// rebuild from the event log when they fall behind.
		c.persistChan <- output
		select {
		case c.projectionChan <- output:
		default:
		}
	}

	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.EventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.EventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}
	return nil
}

func (c *Core) partition(evt event.Event) string {
	if poolID := evt.PoolID(); poolID != nil {
		return "pool:" + *poolID
	}
	return "global"
}

func (c *Core) dispatch(evt event.Event) ([]sequenced, error) {
	switch e := evt.(type) {
	case *event.PoolRegistered:
		return c.handlePoolRegistered(e)
	case *event.WalletTransfer:
		return c.handleWalletTransfer(e)
	case *event.SupplyUpdate:
		return c.handleSupplyUpdate(e)
	case *event.PriceUpdate:
		return c.handlePriceUpdate(e)
	case *event.AppPositionUpdate:
		c.positions.Set(e.Pool, e.App, e.Value)
		return []sequenced{{evt: e, batch: emptyBatch(e.Sequence, "app_position_update", e.Timestamp)}}, nil
	case *event.OutboundBridgeInitiated:
		return c.handleOutboundBridge(e)
	case *event.DonationLocked:
		return c.handleDonationLocked(e)
	case *event.BridgeFillFinalized:
		return c.handleBridgeFillFinalized(e)
	default:
		return nil, fmt.Errorf("unhandled event type %T", evt)
	}
}

func emptyBatch(seq int64, cause string, ts time.Time) *ledger.Batch {
	return &ledger.Batch{Sequence: seq, Cause: cause, Timestamp: ts}
}

func (c *Core) handlePoolRegistered(e *event.PoolRegistered) ([]sequenced, error) {
	// Validate seeds before registering: failing afterwards would leave the
	// pool behind and every redelivery would hit ErrPoolAlreadyRegistered.
	if e.TotalSupply < 0 {
		return nil, fmt.Errorf("negative total supply %d for pool %s", e.TotalSupply, e.Pool)
	}
	if e.UnitaryValue < 0 {
		return nil, fmt.Errorf("negative unitary value %d for pool %s", e.UnitaryValue, e.Pool)
	}
	p, err := c.pools.Register(e.Pool, e.BaseToken, e.NativeToken, e.WrappedNative, e.Decimals, e.CrossChainTokens)
	if err != nil {
		return nil, err
	}
	c.rates.SetIdentity(p.BaseToken)

	batch := emptyBatch(e.Sequence, "pool_registered", e.Timestamp)
	if e.TotalSupply > 0 {
		batch.Entries = append(batch.Entries,
			ledger.Entry{Kind: ledger.KindTotalSupply, Pool: e.Pool, Delta: e.TotalSupply})
	}
	if e.UnitaryValue > 0 {
		batch.Entries = append(batch.Entries,
			ledger.Entry{Kind: ledger.KindUnitaryValue, Pool: e.Pool, Delta: e.UnitaryValue})
	}
	if len(batch.Entries) > 0 {
		if err := c.journal.Apply(batch); err != nil {
			return nil, err
		}
	}

	c.log.Info().
		Str("pool", p.ID).
		Str("base_token", p.BaseToken).
		Uint8("decimals", p.Decimals).
		Int64("total_supply", e.TotalSupply).
		Msg("pool registered")
	return []sequenced{{evt: e, batch: batch}}, nil
}

func (c *Core) handleWalletTransfer(e *event.WalletTransfer) ([]sequenced, error) {
	batch := &ledger.Batch{
		Sequence:  e.Sequence,
		Cause:     "wallet_transfer",
		Timestamp: e.Timestamp,
		Entries: []ledger.Entry{
			{Kind: ledger.KindWallet, Pool: e.Pool, Token: e.Token, Delta: e.Delta},
		},
	}
	if err := c.journal.Apply(batch); err != nil {
		return nil, err
	}
	return []sequenced{{evt: e, batch: batch}}, nil
}

func (c *Core) handleSupplyUpdate(e *event.SupplyUpdate) ([]sequenced, error) {
	p, err := c.pools.Get(e.Pool)
	if err != nil {
		return nil, err
	}
	if e.Supply < 0 {
		return nil, fmt.Errorf("negative supply %d for pool %s", e.Supply, e.Pool)
	}

	batch := emptyBatch(e.Sequence, "supply_update", e.Timestamp)
	if delta := e.Supply - p.TotalSupply; delta != 0 {
		batch.Entries = []ledger.Entry{{Kind: ledger.KindTotalSupply, Pool: e.Pool, Delta: delta}}
		if err := c.journal.Apply(batch); err != nil {
			return nil, err
		}
		c.log.Debug().
			Str("pool", e.Pool).
			Int64("supply", e.Supply).
			Str("reason", e.Reason).
			Msg("supply updated")
	}
	return []sequenced{{evt: e, batch: batch}}, nil
}

func (c *Core) handlePriceUpdate(e *event.PriceUpdate) ([]sequenced, error) {
	if err := c.rates.SetRate(e.Token, e.QuoteToken, e.PriceAmount, e.Volume); err != nil {
		return nil, err
	}
	return []sequenced{{evt: e, batch: emptyBatch(e.Sequence, "price_update", e.Timestamp)}}, nil
}

// handleOutboundBridge moves tokens out of the wallet and credits their
// base-token value to the virtual balance. The conversion happens once,
// here: later price moves never re-value in-flight capital. The credit is
// keyed at the base token because the value may return as a different token
// than it left as, and settlement clears the base-keyed balance.
func (c *Core) handleOutboundBridge(e *event.OutboundBridgeInitiated) ([]sequenced, error) {
	p, err := c.pools.Get(e.Pool)
	if err != nil {
		return nil, err
	}
	if e.Amount <= 0 {
		return nil, fmt.Errorf("outbound amount %d must be positive", e.Amount)
	}
	inBase, err := c.rates.Convert(e.Token, e.Amount, p.BaseToken)
	if err != nil {
		return nil, err
	}

	batch := &ledger.Batch{
		Sequence:  e.Sequence,
		Cause:     "outbound_bridge_initiated",
		Timestamp: e.Timestamp,
		Entries: []ledger.Entry{
			{Kind: ledger.KindWallet, Pool: e.Pool, Token: e.Token, Delta: -e.Amount},
			{Kind: ledger.KindVirtualBalance, Pool: e.Pool, Token: p.BaseToken, Delta: inBase},
		},
	}
	if err := c.journal.Apply(batch); err != nil {
		return nil, err
	}
	return []sequenced{{evt: e, batch: batch}}, nil
}

func (c *Core) handleDonationLocked(e *event.DonationLocked) ([]sequenced, error) {
	if err := c.sessions.Lock(e.Pool, e.Token, e.Sequence, e.Timestamp); err != nil {
		// A missing pool means the registration event has not arrived yet;
		// redeliver. Anything else is a deterministic rejection: consume
		// the event and emit a failure receipt.
		if errors.Is(err, ledger.ErrPoolNotFound) {
			return nil, err
		}
		if c.metrics != nil {
			c.metrics.ReconcileRejected.WithLabelValues("lock", rejectReason(err)).Inc()
		}
		c.log.Warn().Str("pool", e.Pool).Str("token", e.Token).Err(err).Msg("donation lock rejected")
		failure := &event.ReconciliationFailed{
			FailureID:           derivedID(e.LockID, "lock_failed"),
			Pool:                e.Pool,
			Token:               e.Token,
			Reason:              rejectReason(err),
			TriggeredBySequence: e.Sequence,
			Timestamp:           e.Timestamp,
		}
		return []sequenced{
			{evt: e, batch: emptyBatch(e.Sequence, "donation_locked", e.Timestamp)},
			{evt: failure, batch: emptyBatch(e.Sequence, "reconciliation_failed", e.Timestamp)},
		}, nil
	}
	if c.metrics != nil {
		c.metrics.SessionsOpen.Inc()
	}
	return []sequenced{{evt: e, batch: emptyBatch(e.Sequence, "donation_locked", e.Timestamp)}}, nil
}

// handleBridgeFillFinalized settles an open session. A rejected settlement
// is still a processed event: state is rolled back, the lock is released,
// and a failure receipt is emitted in place of the success receipt.
func (c *Core) handleBridgeFillFinalized(e *event.BridgeFillFinalized) ([]sequenced, error) {
	params := reconcile.MessageParams{
		Token:              e.Token,
		Amount:             e.Amount,
		ShouldUnwrapNative: e.ShouldUnwrapNative,
		SyncMultiplierBps:  e.SyncMultiplierBps,
	}
	// An unknown op string still goes through Finalize so the session
	// lock is consumed and released; Finalize rejects the zero op.
	if op, parseErr := reconcile.ParseOpType(e.OpType); parseErr == nil {
		params.Op = op
	}

	res, err := c.sessions.Finalize(e.Pool, params, e.Sequence, e.Timestamp)
	if err != nil {
		if errors.Is(err, ledger.ErrPoolNotFound) {
			return nil, err
		}
		return c.reconciliationFailed(e, err)
	}

	if c.metrics != nil {
		c.metrics.SessionsOpen.Dec()
		c.metrics.ReconcileFinalized.WithLabelValues(params.Op.String()).Inc()
		c.metrics.PoolUnitaryValue.WithLabelValues(e.Pool).Set(float64(res.Valuation.UnitaryValue))
		c.metrics.PoolTotalValue.WithLabelValues(e.Pool).Set(float64(res.Valuation.TotalValue))
		c.metrics.PoolEffectiveSupply.WithLabelValues(e.Pool).Set(float64(res.Valuation.EffectiveSupply))
	}

	batch := &ledger.Batch{
		Sequence:  e.Sequence,
		Cause:     "bridge_fill_finalized",
		Timestamp: e.Timestamp,
		Entries:   res.Entries,
	}

	receipt := &event.TokensReceived{
		ReceiptID:           derivedID(e.FillID, "received"),
		Pool:                e.Pool,
		Token:               e.Token,
		AmountReceived:      res.AmountReceived,
		AmountInBase:        res.AmountInBase,
		VirtualBalanceUsed:  res.Outcome.VirtualBalanceCleared,
		VirtualSupplyMinted: res.Outcome.VirtualSupplyMinted,
		NeutralizedInBase:   res.Outcome.NeutralizedInBase,
		OpType:              params.Op.String(),
		UnitaryValue:        res.Valuation.UnitaryValue,
		TriggeredBySequence: e.Sequence,
		Timestamp:           e.Timestamp,
	}

	return []sequenced{
		{evt: e, batch: batch},
		{evt: receipt, batch: emptyBatch(e.Sequence, "tokens_received", e.Timestamp)},
	}, nil
}

// reconciliationFailed converts a settlement rejection into a failure
// receipt so the event is consumed instead of redelivered forever.
func (c *Core) reconciliationFailed(e *event.BridgeFillFinalized, cause error) ([]sequenced, error) {
	if c.metrics != nil {
		// The session was only consumed when one was actually open.
		if !errors.Is(cause, reconcile.ErrDonationLock) && !errors.Is(cause, reconcile.ErrReentrantCall) {
			c.metrics.SessionsOpen.Dec()
		}
		c.metrics.ReconcileRejected.WithLabelValues("finalize", rejectReason(cause)).Inc()
	}
	c.log.Warn().
		Str("pool", e.Pool).
		Str("token", e.Token).
		Err(cause).
		Msg("bridge fill rejected")

	failure := &event.ReconciliationFailed{
		FailureID:           derivedID(e.FillID, "failed"),
		Pool:                e.Pool,
		Token:               e.Token,
		Reason:              rejectReason(cause),
		TriggeredBySequence: e.Sequence,
		Timestamp:           e.Timestamp,
	}
	return []sequenced{
		{evt: e, batch: emptyBatch(e.Sequence, "bridge_fill_finalized", e.Timestamp)},
		{evt: failure, batch: emptyBatch(e.Sequence, "reconciliation_failed", e.Timestamp)},
	}, nil
}

// derivedID makes a deterministic UUID for derived events so replay
// reproduces the same event log byte for byte.
func derivedID(parent uuid.UUID, suffix string) uuid.UUID {
	return uuid.NewSHA1(parent, []byte(suffix))
}

// rejectReason maps a settlement error to a stable label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrDonationLock):
		return "donation_lock"
	case errors.Is(err, reconcile.ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, reconcile.ErrCallerTransferAmount):
		return "caller_transfer_amount"
	case errors.Is(err, reconcile.ErrInvalidOpType):
		return "invalid_op_type"
	case errors.Is(err, reconcile.ErrSyncMultiplierRange):
		return "sync_multiplier_range"
	case errors.Is(err, reconcile.ErrNavManipulationDetected):
		return "nav_manipulation"
	case errors.Is(err, ledger.ErrTokenNotInitialized):
		return "token_not_initialized"
	case errors.Is(err, ledger.ErrUnsupportedCrossChainToken):
		return "unsupported_token"
	case errors.Is(err, ledger.ErrBalanceUnderflow):
		return "balance_underflow"
	case errors.Is(err, ledger.ErrPoolNotFound):
		return "pool_not_found"
	default:
		return "internal"
	}
}

func eventTimestamp(evt event.Event) time.Time {
	// The core never calls time.Now(); all timestamps are event inputs.
	switch e := evt.(type) {
	case *event.PoolRegistered:
		return e.Timestamp
	case *event.WalletTransfer:
		return e.Timestamp
	case *event.SupplyUpdate:
		return e.Timestamp
	case *event.PriceUpdate:
		return e.Timestamp
	case *event.AppPositionUpdate:
		return e.Timestamp
	case *event.OutboundBridgeInitiated:
		return e.Timestamp
	case *event.DonationLocked:
		return e.Timestamp
	case *event.BridgeFillFinalized:
		return e.Timestamp
	case *event.TokensReceived:
		return e.Timestamp
	case *event.ReconciliationFailed:
		return e.Timestamp
	default:
		panic(fmt.Sprintf("no versioned timestamp for event type %T", evt))
	}
}

// computeStateDigest builds canonical bytes for the pools the event touched:
// scalar state plus sorted wallet and virtual balances.
func (c *Core) computeStateDigest(evt event.Event, batch *ledger.Batch) []byte {
	affected := make(map[string]bool)
	if poolID := evt.PoolID(); poolID != nil {
		affected[*poolID] = true
	}
	if batch != nil {
		for _, e := range batch.Entries {
			affected[e.Pool] = true
		}
	}

	poolIDs := make([]string, 0, len(affected))
	for id := range affected {
		poolIDs = append(poolIDs, id)
	}
	sort.Strings(poolIDs)

	digest := make([]byte, 0, len(poolIDs)*128)
	for _, id := range poolIDs {
		p, err := c.pools.Get(id)
		if err != nil {
			continue
		}
		digest = append(digest, byte(len(id)))
		digest = append(digest, []byte(id)...)
		digest = appendInt64LE(digest, p.UnitaryValue)
		digest = appendInt64LE(digest, p.TotalSupply)
		digest = appendInt64LE(digest, c.virtual.Supply(id))
		digest = appendBalances(digest, c.wallets.Snapshot(id))
		digest = appendBalances(digest, c.virtual.SnapshotBalances(id))
	}
	return digest
}

func appendBalances(digest []byte, balances map[string]int64) []byte {
	tokens := make([]string, 0, len(balances))
	for t := range balances {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	for _, t := range tokens {
		digest = append(digest, byte(len(t)))
		digest = append(digest, []byte(t)...)
		digest = appendInt64LE(digest, balances[t])
	}
	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// Sequence returns the next envelope sequence to be assigned.
func (c *Core) Sequence() int64 {
	return c.sequence
}

// Pools exposes pool state for snapshots.
func (c *Core) Pools() *ledger.Pools { return c.pools }

// Wallets exposes wallet balances for snapshots.
func (c *Core) Wallets() *ledger.WalletTracker { return c.wallets }

// Virtual exposes the virtual ledger for snapshots.
func (c *Core) Virtual() *ledger.VirtualLedger { return c.virtual }

// Registry exposes token activations for snapshots.
func (c *Core) Registry() *ledger.ActivationRegistry { return c.registry }

// Rates exposes the rate table for snapshots.
func (c *Core) Rates() *pricing.RateTable { return c.rates }

// Positions exposes the app position cache for snapshots.
func (c *Core) Positions() *positions.Cache { return c.positions }

// Sessions exposes the session manager for snapshots.
func (c *Core) Sessions() *reconcile.Manager { return c.sessions }

// Nav exposes the valuation engine.
func (c *Core) Nav() *nav.Engine { return c.navEngine }

// SequenceValidator exposes partition watermarks for snapshots.
func (c *Core) SequenceValidator() *SequenceValidator { return c.sequenceValidator }

// Hasher exposes the hash chain tip for snapshots.
func (c *Core) Hasher() *StateHasher { return c.hasher }

// Idempotency exposes the dedup checker for LRU warming on restart.
func (c *Core) Idempotency() *IdempotencyChecker { return c.idempotency }

// SetSequence seeds the envelope sequence during recovery.
func (c *Core) SetSequence(seq int64) {
	c.sequence = seq
}
