package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mfolsen/brewstock/internal/kv"
)

const ledgerStorageKey = "brewstock:import:ledger"

// EntryTTL bounds how long ledger entries survive. A "done" entry rejects
// accidental resubmits until it expires.
const EntryTTL = 30 * time.Minute

// Status tracks the lifecycle of one import attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Entry is one ledger record for an idempotency key.
type Entry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"ts"`
}

// Ledger is a time-bounded local record of in-flight and completed import
// keys. It is a UX guard against double submission, not a distributed lock;
// the server-side import receipt provides the real dedup guarantee.
type Ledger struct {
	storage kv.Storage
	ttl     time.Duration
	now     func() time.Time
}

// NewLedger creates a ledger over the given storage with the default TTL.
func NewLedger(storage kv.Storage) *Ledger {
	return &Ledger{storage: storage, ttl: EntryTTL, now: time.Now}
}

// Read loads the ledger, purging entries older than the TTL before
// returning. The purged map is written back so expiry is visible to
// subsequent readers. Storage failures report an empty ledger.
func (l *Ledger) Read(ctx context.Context) map[string]Entry {
	payload, err := l.storage.Get(ctx, ledgerStorageKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Printf("[IDEMPOTENCY] failed to read ledger, treating as empty: %v", err)
		}
		return map[string]Entry{}
	}

	entries := map[string]Entry{}
	if err := json.Unmarshal(payload, &entries); err != nil {
		log.Printf("[IDEMPOTENCY] discarding corrupt ledger: %v", err)
		return map[string]Entry{}
	}

	cutoff := l.now().Add(-l.ttl)
	purged := false
	for key, entry := range entries {
		if entry.Timestamp.Before(cutoff) {
			delete(entries, key)
			purged = true
		}
	}
	if purged {
		if err := l.Write(ctx, entries); err != nil {
			log.Printf("[IDEMPOTENCY] failed to persist purged ledger: %v", err)
		}
	}

	return entries
}

// Write persists the full ledger, overwriting the previous contents.
func (l *Ledger) Write(ctx context.Context, entries map[string]Entry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := l.storage.Set(ctx, ledgerStorageKey, payload); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

// MarkPending records an in-flight commit for the key.
func (l *Ledger) MarkPending(ctx context.Context, key string) error {
	entries := l.Read(ctx)
	entries[key] = Entry{Status: StatusPending, Timestamp: l.now()}
	return l.Write(ctx, entries)
}

// MarkDone records a completed commit for the key. The entry lingers until
// TTL expiry so a duplicate submission shortly after success is rejected.
func (l *Ledger) MarkDone(ctx context.Context, key string) error {
	entries := l.Read(ctx)
	entries[key] = Entry{Status: StatusDone, Timestamp: l.now()}
	return l.Write(ctx, entries)
}

// Remove deletes the entry for the key, permitting a retry.
func (l *Ledger) Remove(ctx context.Context, key string) error {
	entries := l.Read(ctx)
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return l.Write(ctx, entries)
}
