package ledger

import "errors"

var (
	ErrPoolNotFound          = errors.New("pool not found")
	ErrPoolAlreadyRegistered = errors.New("pool already registered")

	// ErrBalanceUnderflow means a debit would push a wallet or virtual
	// balance below zero where the movement requires real backing.
	ErrBalanceUnderflow = errors.New("balance underflow")

	// ErrTokenNotInitialized means a cross-chain token was referenced
	// before its first activation for the pool.
	ErrTokenNotInitialized = errors.New("token not initialized for pool")

	// ErrUnsupportedCrossChainToken rejects bridge tokens outside the
	// pool's registered cross-chain set.
	ErrUnsupportedCrossChainToken = errors.New("unsupported cross-chain token")
)
