package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/entitle"
	"github.com/xraph/entitle/meter"
	"github.com/xraph/entitle/signature"
	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/tier"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return New(client)
}

func testRecord(principal string) *subscription.Record {
	free, _ := tier.Default().Lookup(tier.Free)
	return subscription.NewFree(principal, free, time.Now().UTC())
}

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

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
	if got.Principal != "w1" || got.Tier != tier.Free || got.Version != 0 {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestCompareAndSwapRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateRecord(ctx, testRecord("w1")); err != nil {
		t.Fatal(err)
	}

	loaded, _ := s.GetRecord(ctx, "w1")
	loaded.MessagesUsed = 5

	ok, err := s.CompareAndSwapRecord(ctx, loaded, 0)
	if err != nil || !ok {
		t.Fatalf("first CAS should win: ok=%v err=%v", ok, err)
	}
	if loaded.Version != 1 {
		t.Errorf("committed version should be reflected back, got %d", loaded.Version)
	}

	// Stale version loses without error.
	stale := loaded.Clone()
	ok, err = s.CompareAndSwapRecord(ctx, stale, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("stale CAS must fail")
	}

	got, _ := s.GetRecord(ctx, "w1")
	if got.MessagesUsed != 5 || got.Version != 1 {
		t.Errorf("stored record = %+v", got)
	}

	if _, err := s.CompareAndSwapRecord(ctx, testRecord("missing"), 0); !errors.Is(err, entitle.ErrRecordNotFound) {
		t.Errorf("CAS on absent principal: got %v", err)
	}
}

func TestCompareAndSwapRecordConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.CreateRecord(ctx, testRecord("w1")); err != nil {
		t.Fatal(err)
	}
	base, _ := s.GetRecord(ctx, "w1")

	const writers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var won int

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
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("exactly one same-version CAS should win, got %d", won)
	}
}

func TestSignatureReservation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.TryReserveSignature(ctx, signature.New("tx-abc", "w1", time.Now().UTC()))
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
}

func TestUsageEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
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
	// Newest first.
	if got[0].Model != "opus" {
		t.Errorf("expected opus first, got %s", got[0].Model)
	}

	premium := true
	got, _ = s.QueryUsage(ctx, "w1", meter.QueryOpts{Premium: &premium})
	if len(got) != 1 || got[0].Model != "opus" {
		t.Errorf("premium filter mismatch: %+v", got)
	}

	got, _ = s.QueryUsage(ctx, "w1", meter.QueryOpts{Start: now.Add(-time.Hour)})
	if len(got) != 1 {
		t.Errorf("time filter: expected 1 event, got %d", len(got))
	}

	purged, err := s.PurgeUsage(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged event, got %d", purged)
	}
	got, _ = s.QueryUsage(ctx, "w2", meter.QueryOpts{})
	if len(got) != 1 {
		t.Errorf("w2 events should survive the purge, got %d", len(got))
	}
}
