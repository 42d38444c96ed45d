package deckcache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammad-safakhou/deckray/models"
)

// ComputeFunc runs the full ingestion for one fingerprint. cacheable
// reports whether the result may be stored; terminal session failures
// like timeouts stay uncached so a plain retry recomputes.
type ComputeFunc func(ctx context.Context) (result models.DeckResult, cacheable bool, err error)

// Memoizer guarantees at-most-one computation per fingerprint: concurrent
// callers for the same key coalesce onto a single in-flight run, and
// completed runs are served from the Store until TTL.
type Memoizer struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// NewMemoizer wraps a Store.
func NewMemoizer(store Store, ttl time.Duration) *Memoizer {
	return &Memoizer{store: store, ttl: ttl}
}

type memoized struct {
	result models.DeckResult
	cached bool
}

// Do returns the cached result for fingerprint or runs compute exactly
// once across concurrent callers. The second return reports whether the
// result came from cache.
func (m *Memoizer) Do(ctx context.Context, fingerprint string, compute ComputeFunc) (models.DeckResult, bool, error) {
	if entry, ok, err := m.store.Get(ctx, fingerprint); err == nil && ok {
		return entry.Result, true, nil
	}

	// The flight serves every coalesced caller, so it must not die with
	// whichever caller happened to start it. The computation still bounds
	// itself (session timeout); only the initiator's cancellation is shed.
	flightCtx := context.WithoutCancel(ctx)

	v, err, _ := m.group.Do(fingerprint, func() (interface{}, error) {
		// A racing caller may have finished between our lookup and the
		// flight start.
		if entry, ok, err := m.store.Get(flightCtx, fingerprint); err == nil && ok {
			return memoized{result: entry.Result, cached: true}, nil
		}
		result, cacheable, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			if _, err := m.store.PutIfAbsent(flightCtx, fingerprint, result, m.ttl); err != nil {
				return memoized{result: result}, nil // result still valid, cache write is best effort
			}
		}
		return memoized{result: result}, nil
	})
	if err != nil {
		return models.DeckResult{}, false, err
	}
	mv := v.(memoized)
	return mv.result, mv.cached, nil
}
