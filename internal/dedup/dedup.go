// Package dedup implements signal deduplication: the
// DistressEvent fingerprint and an Outcome type naming the two results
// of an insert. The store layer itself reports the result as a bool from
// InsertDistressEvent (false for a duplicate fingerprint).
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/heatline/core/internal/types"
)

// Outcome is what happened when a DistressEvent insert was attempted.
type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
)

// Fingerprint computes the globally-unique dedup key for a distress
// signal: sha256(apn ":" county ":" event_type ":" source), hex-encoded.
func Fingerprint(apn, county string, eventType types.EventType, source string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s", apn, county, eventType, source)))
	return hex.EncodeToString(sum[:])
}
