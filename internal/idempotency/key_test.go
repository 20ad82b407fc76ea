package idempotency

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfolsen/brewstock/internal/domain"
)

func testFile() FileInfo {
	content := []byte("Item name,Quantity,Amount\nLatte,2,9.00\n")
	return FileInfo{
		Name:  "sales.csv",
		Size:  int64(len(content)),
		MIME:  "text/csv",
		Bytes: content,
	}
}

func testMapping() domain.FieldMapping {
	return domain.FieldMapping{
		"product_name":  "Item name",
		"quantity_sold": "Quantity",
		"sale_price":    "Amount",
	}
}

func TestComputeDeterminism(t *testing.T) {
	computer := NewComputer()
	userID := uuid.New()

	first := computer.Compute(testFile(), testMapping(), userID)
	second := computer.Compute(testFile(), testMapping(), userID)

	if first != second {
		t.Fatalf("expected identical keys for identical inputs: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "v1-") {
		t.Fatalf("expected version prefix, got %q", first)
	}
	if IsFallback(first) {
		t.Fatalf("did not expect a fallback key")
	}
}

func TestComputeSensitivity(t *testing.T) {
	computer := NewComputer()
	userID := uuid.New()
	base := computer.Compute(testFile(), testMapping(), userID)

	changedFile := testFile()
	changedFile.Bytes = append(changedFile.Bytes, []byte("Mocha,1,4.50\n")...)
	changedFile.Size = int64(len(changedFile.Bytes))
	if computer.Compute(changedFile, testMapping(), userID) == base {
		t.Fatalf("expected different key for different file content")
	}

	changedMapping := testMapping()
	changedMapping["sale_date"] = "Date"
	if computer.Compute(testFile(), changedMapping, userID) == base {
		t.Fatalf("expected different key for different mapping")
	}

	if computer.Compute(testFile(), testMapping(), uuid.New()) == base {
		t.Fatalf("expected different key for different user")
	}
}

func TestComputeFallbackWhenDigestUnavailable(t *testing.T) {
	computer := &Computer{
		hash: 0, // no algorithm registered
		now:  func() time.Time { return time.Unix(1700000000, 0) },
	}
	userID := uuid.New()

	key := computer.Compute(testFile(), testMapping(), userID)
	if !IsFallback(key) {
		t.Fatalf("expected fallback key, got %q", key)
	}
	if !strings.Contains(key, "sales.csv") {
		t.Fatalf("expected fallback key to carry the filename, got %q", key)
	}
}
