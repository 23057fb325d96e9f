package reconcile

import "errors"

var (
	// ErrDonationLock rejects a lock for a (pool, token) pair that
	// already has an open session, and a finalize for one that does not.
	ErrDonationLock = errors.New("donation lock state conflict")

	// ErrReentrantCall rejects a finalize issued while another finalize
	// for the same pool is still in flight.
	ErrReentrantCall = errors.New("reentrant finalize call")

	// ErrCallerTransferAmount means the wallet received less than the
	// finalize message claims was bridged.
	ErrCallerTransferAmount = errors.New("received amount below declared transfer amount")

	// ErrInvalidOpType rejects finalize messages with an operation type
	// outside the closed set.
	ErrInvalidOpType = errors.New("invalid reconciliation op type")

	// ErrSyncMultiplierRange rejects sync multipliers above 100%.
	ErrSyncMultiplierRange = errors.New("sync multiplier out of range")

	// ErrNavManipulationDetected means pool assets moved during the lock
	// window in a way the bridged transfer cannot explain, or the
	// post-reconciliation totals do not reconcile. The session rolls
	// back and the lock is released.
	ErrNavManipulationDetected = errors.New("nav manipulation detected")
)
