package core

import "strings"

// Tier is the capacity class governing a model's rate and concurrency ceilings.
type Tier string

const (
	// TierFree is the marketplace free tier: burst-limited, slow refill.
	TierFree Tier = "free"
	// TierPaid is the marketplace paid tier, and the conservative default
	// for identifiers we do not recognize.
	TierPaid Tier = "paid"
	// TierNative is the first-party provider accessed directly.
	TierNative Tier = "native"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPaid, TierNative:
		return true
	default:
		return false
	}
}

const freeSuffix = ":free"

// The first-party provider serves both the gemini text family and the
// imagen image family; both classify native so they route to its driver.
var nativePrefixes = []string{"gemini-", "models/gemini", "imagen-", "models/imagen"}

// Classify maps a model identifier to its capacity tier.
//
// Pure and deterministic: the same identifier always yields the same tier,
// which plan construction relies on for reproducibility.
func Classify(modelID string) Tier {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if id == "" {
		return TierPaid
	}

	if strings.HasSuffix(id, freeSuffix) {
		return TierFree
	}

	for _, prefix := range nativePrefixes {
		if strings.HasPrefix(id, prefix) {
			return TierNative
		}
	}

	return TierPaid
}
