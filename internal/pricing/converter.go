package pricing

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"NavLedger/internal/math"
)

var (
	// ErrNoRoute means no rate is known for the requested token pair.
	ErrNoRoute = errors.New("no conversion route for token pair")
	// ErrInvalidRate rejects rates with a non-positive numerator or volume.
	ErrInvalidRate = errors.New("invalid rate fraction")
)

// Converter turns an amount of one token into another token's units at the
// current rate. Implementations must round down so converted values never
// overstate holdings.
type Converter interface {
	Convert(tokenIn string, amount int64, tokenOut string) (int64, error)
	HasRoute(tokenIn, tokenOut string) bool
}

type rate struct {
	priceAmount int64
	volume      int64
}

// RateTable is an in-memory Converter fed by price updates. Rates are stored
// as fractions (priceAmount per volume) directly off the feed, with the
// inverse derived on demand.
//
// The table is read from the deterministic pipeline and written by the same
// goroutine during event application, but queries also read it, hence the
// lock.
type RateTable struct {
	mu    sync.RWMutex
	rates map[string]rate // key: tokenIn + "/" + tokenOut
}

func NewRateTable() *RateTable {
	return &RateTable{rates: make(map[string]rate)}
}

func pairKey(tokenIn, tokenOut string) string {
	return tokenIn + "/" + tokenOut
}

// SetRate records that volume units of tokenIn are worth priceAmount units
// of tokenOut, replacing any previous rate for the pair. The inverse pair is
// stored as the flipped fraction so both directions stay consistent.
func (rt *RateTable) SetRate(tokenIn, tokenOut string, priceAmount, volume int64) error {
	if priceAmount <= 0 || volume <= 0 {
		return fmt.Errorf("%w: %d/%d for %s->%s", ErrInvalidRate, priceAmount, volume, tokenIn, tokenOut)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.rates[pairKey(tokenIn, tokenOut)] = rate{priceAmount: priceAmount, volume: volume}
	rt.rates[pairKey(tokenOut, tokenIn)] = rate{priceAmount: volume, volume: priceAmount}
	return nil
}

// SetIdentity marks a token as convertible to itself at par. Registered for
// every pool base token so Convert(base, x, base) works uniformly.
func (rt *RateTable) SetIdentity(token string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.rates[pairKey(token, token)] = rate{priceAmount: 1, volume: 1}
}

func (rt *RateTable) HasRoute(tokenIn, tokenOut string) bool {
	if tokenIn == tokenOut {
		return true
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.rates[pairKey(tokenIn, tokenOut)]
	return ok
}

// Rate is one stored pair rate, exported for snapshots.
type Rate struct {
	TokenIn     string `json:"token_in"`
	TokenOut    string `json:"token_out"`
	PriceAmount int64  `json:"price_amount"`
	Volume      int64  `json:"volume"`
}

// Export copies all stored rates for snapshotting; order is unspecified.
func (rt *RateTable) Export() []Rate {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]Rate, 0, len(rt.rates))
	for key, r := range rt.rates {
		i := strings.IndexByte(key, '/')
		out = append(out, Rate{
			TokenIn:     key[:i],
			TokenOut:    key[i+1:],
			PriceAmount: r.priceAmount,
			Volume:      r.volume,
		})
	}
	return out
}

// Import replaces the table contents from a snapshot.
func (rt *RateTable) Import(rates []Rate) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.rates = make(map[string]rate, len(rates))
	for _, r := range rates {
		rt.rates[pairKey(r.TokenIn, r.TokenOut)] = rate{priceAmount: r.PriceAmount, volume: r.Volume}
	}
}

// Convert applies the stored fraction with floor rounding. Zero amounts
// short-circuit so pairs without routes can still "convert" nothing; this
// keeps NAV computation total over empty balances.
func (rt *RateTable) Convert(tokenIn string, amount int64, tokenOut string) (int64, error) {
	if amount == 0 || tokenIn == tokenOut {
		return amount, nil
	}

	rt.mu.RLock()
	r, ok := rt.rates[pairKey(tokenIn, tokenOut)]
	rt.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s->%s", ErrNoRoute, tokenIn, tokenOut)
	}

	return math.ConvertByFraction(amount, r.priceAmount, r.volume)
}
