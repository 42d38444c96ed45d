package deckcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/deckray/models"
)

func TestMemoryPutIfAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ok, err := m.PutIfAbsent(ctx, "fp", models.DeckResult{Fingerprint: "fp", TotalPages: 3}, time.Hour)
	if err != nil || !ok {
		t.Fatalf("first insert should win: ok=%v err=%v", ok, err)
	}
	ok, err = m.PutIfAbsent(ctx, "fp", models.DeckResult{Fingerprint: "fp", TotalPages: 99}, time.Hour)
	if err != nil || ok {
		t.Fatalf("second insert must not overwrite: ok=%v err=%v", ok, err)
	}
	entry, found, err := m.Get(ctx, "fp")
	if err != nil || !found {
		t.Fatalf("expected entry: found=%v err=%v", found, err)
	}
	if entry.Result.TotalPages != 3 {
		t.Fatalf("entry mutated: %+v", entry.Result)
	}
}

func TestMemoryLazyExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	if _, err := m.PutIfAbsent(ctx, "fp", models.DeckResult{Fingerprint: "fp"}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, found, _ := m.Get(ctx, "fp"); found {
		t.Fatalf("expired entry must be evicted on lookup")
	}
	// Expired slot is free again; a later entry replaces, never mutates.
	ok, err := m.PutIfAbsent(ctx, "fp", models.DeckResult{Fingerprint: "fp", TotalPages: 5}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected replacement insert after expiry: ok=%v err=%v", ok, err)
	}
}

func TestMemoizerIdempotence(t *testing.T) {
	ctx := context.Background()
	m := NewMemoizer(NewMemory(), time.Hour)
	var computes int32

	compute := func(context.Context) (models.DeckResult, bool, error) {
		atomic.AddInt32(&computes, 1)
		return models.DeckResult{Fingerprint: "fp", TotalPages: 2, Success: true}, true, nil
	}

	first, cached, err := m.Do(ctx, "fp", compute)
	if err != nil || cached {
		t.Fatalf("first call must compute: cached=%v err=%v", cached, err)
	}
	second, cached, err := m.Do(ctx, "fp", compute)
	if err != nil || !cached {
		t.Fatalf("second call must hit cache: cached=%v err=%v", cached, err)
	}
	if atomic.LoadInt32(&computes) != 1 {
		t.Fatalf("expected exactly one computation, got %d", computes)
	}
	if first.TotalPages != second.TotalPages || first.Fingerprint != second.Fingerprint {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
}

func TestMemoizerCoalescesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoizer(NewMemory(), time.Hour)
	var computes int32
	release := make(chan struct{})

	compute := func(context.Context) (models.DeckResult, bool, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return models.DeckResult{Fingerprint: "fp", TotalPages: 7, Success: true}, true, nil
	}

	const callers = 8
	results := make([]models.DeckResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, _, err := m.Do(ctx, "fp", compute)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	time.Sleep(50 * time.Millisecond) // let every caller join the flight
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&computes); got != 1 {
		t.Fatalf("expected one underlying run, got %d", got)
	}
	for i, res := range results {
		if res.TotalPages != 7 {
			t.Fatalf("caller %d got wrong result: %+v", i, res)
		}
	}
}

func TestMemoizerFlightSurvivesInitiatorCancel(t *testing.T) {
	m := NewMemoizer(NewMemory(), time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	var flightErr error

	compute := func(ctx context.Context) (models.DeckResult, bool, error) {
		close(started)
		<-release
		flightErr = ctx.Err()
		return models.DeckResult{Fingerprint: "fp", TotalPages: 4, Success: true}, true, nil
	}

	type outcome struct {
		res models.DeckResult
		err error
	}
	initiator := make(chan outcome, 1)
	joined := make(chan outcome, 1)

	ctxA, cancelA := context.WithCancel(context.Background())
	go func() {
		res, _, err := m.Do(ctxA, "fp", compute)
		initiator <- outcome{res, err}
	}()
	<-started
	go func() {
		res, _, err := m.Do(context.Background(), "fp", compute)
		joined <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond) // let the second caller join the flight
	cancelA()
	close(release)

	for _, ch := range []chan outcome{initiator, joined} {
		out := <-ch
		if out.err != nil {
			t.Fatalf("coalesced caller failed: %v", out.err)
		}
		if out.res.TotalPages != 4 {
			t.Fatalf("coalesced caller got wrong result: %+v", out.res)
		}
	}
	if flightErr != nil {
		t.Fatalf("flight inherited initiator cancellation: %v", flightErr)
	}
}

func TestMemoizerDoesNotCacheWhenNotCacheable(t *testing.T) {
	ctx := context.Background()
	m := NewMemoizer(NewMemory(), time.Hour)
	var computes int32

	compute := func(context.Context) (models.DeckResult, bool, error) {
		atomic.AddInt32(&computes, 1)
		return models.DeckResult{Fingerprint: "fp"}, false, nil
	}
	if _, _, err := m.Do(ctx, "fp", compute); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, cached, err := m.Do(ctx, "fp", compute); err != nil || cached {
		t.Fatalf("uncacheable result must recompute: cached=%v err=%v", cached, err)
	}
	if atomic.LoadInt32(&computes) != 2 {
		t.Fatalf("expected two computations, got %d", computes)
	}
}
