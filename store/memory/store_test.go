package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/tier"
)

func testRecord(principal string) *subscription.Record {
	free, _ := tier.Default().Lookup(tier.Free)
	return subscription.NewFree(principal, free, time.Now().UTC())
}

func TestRecordGetCreate(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetRecord(ctx, "w1"); !errors.Is(err, entitle.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	rec := testRecord("w1")
	if err := s.CreateRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRecord(ctx, testRecord("w1")); !errors.Is(err, entitle.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := s.GetRecord(ctx, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Principal != "w1" || got.Tier != tier.Free {
		t.Errorf("unexpected record %+v", got)
	}

	// The returned copy must not alias stored state.
	got.MessagesUsed = 999
	again, _ := s.GetRecord(ctx, "w1")
	if again.MessagesUsed != 0 {
		t.Error("GetRecord must return an isolated copy")
	}
}

func TestCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec := testRecord("w1")
	if err := s.CreateRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	loaded, _ := s.GetRecord(ctx, "w1")
	loaded.MessagesUsed = 1

	ok, err := s.CompareAndSwapRecord(ctx, loaded, loaded.Version)
	if err != nil || !ok {
		t.Fatalf("first CAS should win: ok=%v err=%v", ok, err)
	}
	if loaded.Version != 1 {
		t.Errorf("committed version should be reflected back, got %d", loaded.Version)
	}

	// Stale version loses.
	stale := loaded.Clone()
	ok, err = s.CompareAndSwapRecord(ctx, stale, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("stale CAS must fail")
	}

	if _, err := s.CompareAndSwapRecord(ctx, testRecord("missing"), 0); !errors.Is(err, entitle.ErrRecordNotFound) {
		t.Errorf("CAS on absent principal: got %v", err)
	}
}

func TestCompareAndSwapConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateRecord(ctx, testRecord("w1")); err != nil {
		t.Fatal(err)
	}

	const writers = 50
	var wg sync.WaitGroup
	wins := make(chan struct{}, writers)

	base, _ := s.GetRecord(ctx, "w1")
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := base.Clone()
			c.MessagesUsed++
			ok, err := s.CompareAndSwapRecord(ctx, c, base.Version)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var won int
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("exactly one same-version CAS should win, got %d", won)
	}
}

func TestTryReserveSignature(t *testing.T) {
	ctx := context.Background()
	s := New()

	sig := signature.New("tx-abc", "w1", time.Now().UTC())

	ok, err := s.TryReserveSignature(ctx, sig)
	if err != nil || !ok {
		t.Fatalf("first reservation should win: ok=%v err=%v", ok, err)
	}
	ok, err = s.TryReserveSignature(ctx, signature.New("tx-abc", "w2", time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second reservation of the same signature must lose")
	}

	if err := s.ReleaseSignature(ctx, "tx-abc"); err != nil {
		t.Fatal(err)
	}
	ok, _ = s.TryReserveSignature(ctx, signature.New("tx-abc", "w1", time.Now().UTC()))
	if !ok {
		t.Error("released signature should be reservable again")
	}

	// Releasing an absent signature is not an error.
	if err := s.ReleaseSignature(ctx, "never-reserved"); err != nil {
		t.Error(err)
	}
}

func TestTryReserveSignatureConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()

	const callers = 10
	var wg sync.WaitGroup
	var won int64
	var mu sync.Mutex

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryReserveSignature(ctx, signature.New("tx-race", "w1", time.Now().UTC()))
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("exactly one concurrent reservation should win, got %d", won)
	}
}

func TestUsageIngestQueryPurge(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	events := []*meter.UsageEvent{
		{Principal: "w1", Model: "sonnet", Timestamp: now.Add(-2 * time.Hour)},
		{Principal: "w1", Model: "opus", Premium: true, Timestamp: now},
		{Principal: "w2", Model: "sonnet", Timestamp: now},
	}
	if err := s.IngestUsage(ctx, events); err != nil {
		t.Fatal(err)
	}

	got, err := s.QueryUsage(ctx, "w1", meter.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for w1, got %d", len(got))
	}

	premium := true
	got, _ = s.QueryUsage(ctx, "w1", meter.QueryOpts{Premium: &premium})
	if len(got) != 1 || got[0].Model != "opus" {
		t.Errorf("premium filter mismatch: %+v", got)
	}

	purged, err := s.PurgeUsage(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged event, got %d", purged)
	}
	got, _ = s.QueryUsage(ctx, "w1", meter.QueryOpts{})
	if len(got) != 1 {
		t.Errorf("expected 1 remaining event for w1, got %d", len(got))
	}
}

func TestPingAfterClose(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping on open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); !errors.Is(err, entitle.ErrStoreClosed) {
		t.Errorf("ping after close: got %v, want ErrStoreClosed", err)
	}
}
