package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mfolsen/brewstock/internal/kv"
)

func newTestLedger(now *time.Time) *Ledger {
	ledger := NewLedger(kv.NewMemoryStorage())
	ledger.now = func() time.Time { return *now }
	return ledger
}

func TestLedgerMarkPendingAndDone(t *testing.T) {
	now := time.Now()
	ledger := newTestLedger(&now)
	ctx := context.Background()

	if err := ledger.MarkPending(ctx, "v1-abc"); err != nil {
		t.Fatalf("mark pending failed: %v", err)
	}

	entries := ledger.Read(ctx)
	if entries["v1-abc"].Status != StatusPending {
		t.Fatalf("expected pending entry, got %+v", entries["v1-abc"])
	}

	if err := ledger.MarkDone(ctx, "v1-abc"); err != nil {
		t.Fatalf("mark done failed: %v", err)
	}
	entries = ledger.Read(ctx)
	if entries["v1-abc"].Status != StatusDone {
		t.Fatalf("expected done entry, got %+v", entries["v1-abc"])
	}

	if err := ledger.Remove(ctx, "v1-abc"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, ok := ledger.Read(ctx)["v1-abc"]; ok {
		t.Fatalf("expected entry to be removed")
	}
}

func TestLedgerTTLExpiry(t *testing.T) {
	start := time.Now()
	now := start
	ledger := newTestLedger(&now)
	ctx := context.Background()

	if err := ledger.MarkPending(ctx, "v1-expiring"); err != nil {
		t.Fatalf("mark pending failed: %v", err)
	}

	now = start.Add(EntryTTL - time.Millisecond)
	if _, ok := ledger.Read(ctx)["v1-expiring"]; !ok {
		t.Fatalf("expected entry to survive just inside the TTL")
	}

	now = start.Add(EntryTTL + time.Millisecond)
	if _, ok := ledger.Read(ctx)["v1-expiring"]; ok {
		t.Fatalf("expected entry to be purged just past the TTL")
	}

	// Purge is persisted: rolling the clock back does not resurrect it.
	now = start
	if _, ok := ledger.Read(ctx)["v1-expiring"]; ok {
		t.Fatalf("expected purge to be written back to storage")
	}
}

func TestLedgerReadToleratesCorruptPayload(t *testing.T) {
	storage := kv.NewMemoryStorage()
	ledger := NewLedger(storage)
	ctx := context.Background()

	if err := storage.Set(ctx, "brewstock:import:ledger", []byte("not json")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if entries := ledger.Read(ctx); len(entries) != 0 {
		t.Fatalf("expected corrupt ledger to read as empty, got %v", entries)
	}
}

func TestLedgerOverRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ledger := NewLedger(kv.NewRedisStorage(client))
	ctx := context.Background()

	if err := ledger.MarkPending(ctx, "v1-redis"); err != nil {
		t.Fatalf("mark pending failed: %v", err)
	}
	if ledger.Read(ctx)["v1-redis"].Status != StatusPending {
		t.Fatalf("expected pending entry via redis storage")
	}
}
