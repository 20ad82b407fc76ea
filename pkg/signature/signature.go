package signature

import (
	"sort"
	"strings"
)

// Empty is returned when a header list contains no usable entries.
const Empty = "empty"

// Delimiter joins normalized headers into a signature string.
const Delimiter = "|"

// Normalize derives an order-independent fingerprint from a list of raw
// column headers. Blank and whitespace-only entries are dropped, the rest
// are trimmed, lowercased, and sorted before joining. Two header lists that
// are permutations of each other (ignoring case and surrounding whitespace)
// produce the same signature.
func Normalize(headers []string) string {
	cleaned := make([]string, 0, len(headers))
	for _, header := range headers {
		trimmed := strings.ToLower(strings.TrimSpace(header))
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}

	if len(cleaned) == 0 {
		return Empty
	}

	sort.Strings(cleaned)
	return strings.Join(cleaned, Delimiter)
}
