package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint computes the deterministic deduplication key for an
// event. The event fields are serialized as a JSON object, whose keys
// Go marshals in sorted order, so the wire-level field order of the
// incoming submission never affects the hash. Audience order does:
// the same people in a different order is a different event.
func Fingerprint(e Event) string {
	canonical := map[string]any{
		"title":    e.Title,
		"message":  e.Message,
		"severity": e.Severity,
		"audience": e.Audience,
	}
	// Marshal of map[string]any with string/[]string values cannot fail.
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
