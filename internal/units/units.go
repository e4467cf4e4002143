// Package units parses the human-readable quantities RouterOS reports.
package units

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseBitsPerSecond converts a link rate such as "1Gbps" or "2.5Gbps" to
// bits per second using SI multipliers. Unknown suffixes are an error.
func ParseBitsPerSecond(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)

	number, ok := strings.CutSuffix(trimmed, "bps")
	if !ok || number == "" {
		return 0, fmt.Errorf("parsing rate %q: missing bps unit", s)
	}

	// humanize treats a trailing "b" as bytes, the prefixes are what matter.
	if strings.HasSuffix(strings.ToLower(number), "b") {
		return 0, fmt.Errorf("parsing rate %q: unexpected unit", s)
	}

	bps, err := humanize.ParseBytes(number)
	if err != nil {
		return 0, fmt.Errorf("parsing rate %q: %w", s, err)
	}

	return bps, nil
}
