package idempotency

import (
	"crypto"
	_ "crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfolsen/brewstock/internal/domain"
)

const (
	keyVersionPrefix = "v1-"
	fallbackPrefix   = "fallback-"
)

// FileInfo carries the raw content and metadata of an uploaded file.
type FileInfo struct {
	Name  string
	Size  int64
	MIME  string
	Bytes []byte
}

// Computer derives content-addressed idempotency keys for import commits.
type Computer struct {
	hash crypto.Hash
	now  func() time.Time
}

// NewComputer returns a Computer using SHA-256.
func NewComputer() *Computer {
	return &Computer{hash: crypto.SHA256, now: time.Now}
}

// Compute derives a deterministic key from the file content, the chosen
// mapping, and the user. Identical inputs always produce identical keys.
// When the digest algorithm is unavailable the key degrades to a timestamped
// fallback that no longer deduplicates; callers can detect this via
// IsFallback.
func (c *Computer) Compute(file FileInfo, m domain.FieldMapping, userID uuid.UUID) string {
	if !c.hash.Available() {
		log.Printf("[IDEMPOTENCY] digest unavailable, using fallback key for %s", file.Name)
		return c.fallbackKey(file, userID)
	}

	contentDigest := c.hash.New()
	contentDigest.Write(file.Bytes)

	// json.Marshal emits map keys in sorted order, which keeps the mapping
	// serialization canonical.
	mappingJSON, err := json.Marshal(m)
	if err != nil {
		log.Printf("[IDEMPOTENCY] failed to serialize mapping, using fallback key: %v", err)
		return c.fallbackKey(file, userID)
	}

	metaDigest := c.hash.New()
	metaDigest.Write([]byte(strings.Join([]string{
		userID.String(),
		file.Name,
		fmt.Sprintf("%d", file.Size),
		file.MIME,
		string(mappingJSON),
	}, "|")))

	return keyVersionPrefix +
		hex.EncodeToString(contentDigest.Sum(nil)) +
		"-" +
		hex.EncodeToString(metaDigest.Sum(nil))
}

func (c *Computer) fallbackKey(file FileInfo, userID uuid.UUID) string {
	return fmt.Sprintf("%s%s|%s|%d|%d", fallbackPrefix, userID, file.Name, file.Size, c.now().UnixNano())
}

// IsFallback reports whether a key was produced without content digesting
// and therefore carries no dedup guarantee.
func IsFallback(key string) bool {
	return strings.HasPrefix(key, fallbackPrefix)
}
