package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfolsen/brewstock/internal/domain"
	"github.com/mfolsen/brewstock/internal/kv"
)

const keyPrefix = "brewstock:mapping"

// Store persists reusable column mappings keyed by user and header signature.
// Storage failures are treated as cache misses so a broken store only costs
// the user a re-prompt, never a failed import.
type Store struct {
	storage kv.Storage
	now     func() time.Time
}

// NewStore creates a mapping store over the given key-value storage.
func NewStore(storage kv.Storage) *Store {
	return &Store{storage: storage, now: time.Now}
}

func storageKey(userID uuid.UUID, sig string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, userID, sig)
}

// Save writes a StoredMapping for the given user and header signature,
// overwriting any prior entry for the same key.
func (s *Store) Save(ctx context.Context, userID uuid.UUID, sig string, m domain.FieldMapping, rawHeaders []string) error {
	stored := domain.StoredMapping{
		SavedAt: s.now(),
		Headers: rawHeaders,
		Mapping: m.Clone(),
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}

	if err := s.storage.Set(ctx, storageKey(userID, sig), payload); err != nil {
		return fmt.Errorf("failed to persist mapping: %w", err)
	}
	return nil
}

// Load performs an exact-key lookup. A missing entry, a storage failure, or
// a corrupt payload all report found=false.
func (s *Store) Load(ctx context.Context, userID uuid.UUID, sig string) (domain.StoredMapping, bool) {
	payload, err := s.storage.Get(ctx, storageKey(userID, sig))
	if err != nil {
		return domain.StoredMapping{}, false
	}

	var stored domain.StoredMapping
	if err := json.Unmarshal(payload, &stored); err != nil {
		log.Printf("[MAPPING] discarding corrupt stored mapping for %s: %v", sig, err)
		return domain.StoredMapping{}, false
	}
	return stored, true
}

// IsComplete reports whether every required field of the target maps to a
// header present in the current header list. A stale mapping that references
// a header missing from a newly uploaded file is incomplete.
func IsComplete(target domain.ImportTarget, headers []string, m domain.FieldMapping) bool {
	available := make(map[string]bool, len(headers))
	for _, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		if normalized != "" {
			available[normalized] = true
		}
	}

	for _, key := range domain.RequiredFieldsFor(target) {
		mapped := strings.ToLower(strings.TrimSpace(m[key]))
		if mapped == "" || !available[mapped] {
			return false
		}
	}
	return true
}
