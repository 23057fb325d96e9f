package core

import (
	"container/list"
	"fmt"
)

// DBIdempotencyChecker is the cold-path dedup lookup backed by Postgres.
type DBIdempotencyChecker interface {
	IsDuplicate(eventType string, idempotencyKey string) (bool, error)
}

// IdempotencyChecker deduplicates events in two tiers: an in-memory LRU for
// the hot path and a database lookup for keys that aged out of it.
// Not thread-safe — only accessed from the single-threaded core.
type IdempotencyChecker struct {
	lru       *idempotencyLRU
	dbChecker DBIdempotencyChecker

	tier2Errors int64
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       newIdempotencyLRU(capacity),
		dbChecker: dbChecker,
	}
}

func compositeKey(eventType, idempotencyKey string) string {
	return fmt.Sprintf("%s:%s", eventType, idempotencyKey)
}

// IsDuplicate reports whether the event was already processed. A database
// error is treated as "not a duplicate" so a DB outage cannot stall the
// pipeline; replay safety comes from the event log's unique key constraint.
func (ic *IdempotencyChecker) IsDuplicate(eventType, idempotencyKey string) bool {
	key := compositeKey(eventType, idempotencyKey)
	if ic.lru.contains(key) {
		return true
	}

	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(eventType, idempotencyKey)
		if err != nil {
			ic.tier2Errors++
			return false
		}
		if isDup {
			ic.lru.add(key)
			return true
		}
	}
	return false
}

// MarkProcessed records the key after successful processing.
func (ic *IdempotencyChecker) MarkProcessed(eventType, idempotencyKey string) {
	ic.lru.add(compositeKey(eventType, idempotencyKey))
}

// AttachDB installs the cold-path checker. During replay the event log
// already contains the rows being re-applied, so the database tier is
// attached only after replay finishes.
func (ic *IdempotencyChecker) AttachDB(dbChecker DBIdempotencyChecker) {
	ic.dbChecker = dbChecker
}

// Warm preloads composite keys after restart so recently processed events
// skip the cold path.
func (ic *IdempotencyChecker) Warm(keys []string) {
	for _, key := range keys {
		ic.lru.add(key)
	}
}

// Keys returns up to limit composite keys in most-recent-first order, for
// snapshotting the hot tier.
func (ic *IdempotencyChecker) Keys(limit int) []string {
	out := make([]string, 0, limit)
	for elem := ic.lru.order.Front(); elem != nil && len(out) < limit; elem = elem.Next() {
		out = append(out, elem.Value.(string))
	}
	return out
}

// Tier2Errors returns the number of failed database lookups.
func (ic *IdempotencyChecker) Tier2Errors() int64 {
	return ic.tier2Errors
}

// idempotencyLRU is a plain LRU over composite keys.
// Not thread-safe — only accessed from the single-threaded core.
type idempotencyLRU struct {
	capacity int
	cache    map[string]*list.Element
	order    *list.List
}

func newIdempotencyLRU(capacity int) *idempotencyLRU {
	return &idempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (lru *idempotencyLRU) contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.order.MoveToFront(elem)
	}
	return exists
}

func (lru *idempotencyLRU) add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.order.MoveToFront(elem)
		return
	}
	lru.cache[key] = lru.order.PushFront(key)

	if lru.order.Len() > lru.capacity {
		oldest := lru.order.Back()
		lru.order.Remove(oldest)
		delete(lru.cache, oldest.Value.(string))
	}
}
