package dedup

import (
	"testing"

	"github.com/heatline/core/internal/types"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("123456789", "Maricopa", types.EventProbate, "propertyradar")
	b := Fingerprint("123456789", "Maricopa", types.EventProbate, "propertyradar")
	if a != b {
		t.Errorf("same inputs produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprint_DistinguishesComponents(t *testing.T) {
	base := Fingerprint("123", "Cook", types.EventTaxLien, "feed")
	variants := []string{
		Fingerprint("124", "Cook", types.EventTaxLien, "feed"),
		Fingerprint("123", "Lake", types.EventTaxLien, "feed"),
		Fingerprint("123", "Cook", types.EventProbate, "feed"),
		Fingerprint("123", "Cook", types.EventTaxLien, "other-feed"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base fingerprint", i)
		}
	}
}
