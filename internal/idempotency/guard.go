// Package idempotency gives mutating entry points at-most-once
// execution semantics.
//
// Keys are route plus a caller-supplied token. The first caller runs
// the wrapped function and its result is stored for the key's
// lifetime; replays return the stored result without re-executing.
// Concurrent duplicates collapse onto the in-flight execution instead
// of running the mutation twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrConflict indicates a replay of the same idempotency key with a
// different request payload.
var ErrConflict = errors.New("idempotency key reused with a different payload")

// record is a completed execution pinned for the key's lifetime.
type record struct {
	value       any
	err         error
	payloadHash string
	expiresAt   time.Time
}

// Guard wraps mutating functions with at-most-once semantics.
type Guard struct {
	group      singleflight.Group
	mu         sync.Mutex
	records    map[string]*record
	ttl        time.Duration
	maxEntries int
}

// NewGuard creates a guard; records live for ttl and the store is
// bounded to maxEntries (oldest-expiry eviction).
func NewGuard(ttl time.Duration, maxEntries int) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &Guard{
		records:    make(map[string]*record),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// HashPayload derives the conflict-detection hash for a request body.
func HashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Result carries the outcome of a guarded execution.
type Result struct {
	Value    any
	Replayed bool
}

// RunOnce executes fn at most once per key.
//
// The first caller executes fn; its value and error are stored until
// the key expires and handed back verbatim to every replay. Concurrent
// duplicates block on the in-flight execution and share its result.
// A replay whose payload hash differs from the original returns
// ErrConflict without touching fn.
func (g *Guard) RunOnce(ctx context.Context, key, payloadHash string, fn func(ctx context.Context) (any, error)) (Result, error) {
	if rec, ok := g.lookup(key); ok {
		if rec.payloadHash != payloadHash {
			return Result{}, ErrConflict
		}
		return Result{Value: rec.value, Replayed: true}, rec.err
	}

	type outcome struct {
		value    any
		err      error
		hash     string
		replayed bool
	}

	v, _, shared := g.group.Do(key, func() (any, error) {
		// Re-check under the flight: a previous caller may have
		// completed between the lookup above and entering the group.
		if rec, ok := g.lookup(key); ok {
			return outcome{value: rec.value, err: rec.err, hash: rec.payloadHash, replayed: true}, nil
		}

		value, err := fn(ctx)
		g.store(key, &record{
			value:       value,
			err:         err,
			payloadHash: payloadHash,
			expiresAt:   time.Now().Add(g.ttl),
		})
		return outcome{value: value, err: err, hash: payloadHash}, nil
	})

	out := v.(outcome)
	// A caller that shared someone else's flight (or hit a stored
	// record inside it) still conflicts when its payload differs.
	if out.hash != payloadHash {
		return Result{}, ErrConflict
	}
	return Result{Value: out.value, Replayed: out.replayed || shared}, out.err
}

func (g *Guard) lookup(key string) (*record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(rec.expiresAt) {
		delete(g.records, key)
		return nil, false
	}
	return rec, true
}

func (g *Guard) store(key string, rec *record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.records) >= g.maxEntries {
		g.evictOldest()
	}
	g.records[key] = rec
}

// caller must hold the lock.
func (g *Guard) evictOldest() {
	now := time.Now()
	var oldestKey string
	var oldestExpiry time.Time
	first := true
	for key, rec := range g.records {
		if now.After(rec.expiresAt) {
			delete(g.records, key)
			continue
		}
		if first || rec.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = rec.expiresAt
			first = false
		}
	}
	if len(g.records) >= g.maxEntries && oldestKey != "" {
		delete(g.records, oldestKey)
	}
}
