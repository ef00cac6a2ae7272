package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// StableID computes the content-hash identifier described in spec.md §4.6:
// a pure function of (originating tool, native rule id, canonical location),
// order-independent and reproducible across runs on identical inputs.
func StableID(tool, nativeRuleID string, loc Location) string {
	line := -1
	if loc.Line != nil {
		line = *loc.Line
	}
	col := -1
	if loc.Column != nil {
		col = *loc.Column
	}

	h := sha256.New()
	fmt.Fprintf(h, "tool=%s\x00rule=%s\x00file=%s\x00line=%d\x00column=%d\x00function=%s\x00contract=%s",
		tool, nativeRuleID, loc.File, line, col, loc.Function, loc.Contract)
	return hex.EncodeToString(h.Sum(nil))
}
