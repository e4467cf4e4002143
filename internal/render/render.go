// Package render serializes canonical metrics to the Prometheus text
// exposition format, one line at a time.
package render

import (
	"iter"
	"strconv"
	"strings"

	"github.com/ethpandaops/rosprobe/internal/translate"
)

// Lines renders metrics as exposition lines without trailing newlines. The
// first sample of each name is preceded by its TYPE line. Extra labels are
// merged into every sample, overriding same-named labels.
//
// Label values are written verbatim; the translators never produce quotes,
// backslashes or newlines.
func Lines(
	metrics iter.Seq2[translate.Metric, error],
	prefix string,
	extra translate.Labels,
) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		seen := make(map[string]struct{})

		for m, err := range metrics {
			if err != nil {
				yield("", err)

				return
			}

			name := prefix + m.Name

			if _, ok := seen[m.Name]; !ok {
				seen[m.Name] = struct{}{}

				if !yield(TypeLine(name, m.Kind), nil) {
					return
				}
			}

			if !yield(Sample(name, m.Labels.Merge(extra), m.Value), nil) {
				return
			}
		}
	}
}

// TypeLine returns the "# TYPE" declaration for name.
func TypeLine(name string, kind translate.Kind) string {
	return "# TYPE " + name + " " + kind.String()
}

// Sample returns a single sample line. Braces are omitted for an empty
// label set.
func Sample(name string, labels translate.Labels, value float64) string {
	var sb strings.Builder

	sb.WriteString(name)

	if len(labels) > 0 {
		sb.WriteByte('{')

		for i, l := range labels {
			if i > 0 {
				sb.WriteByte(',')
			}

			sb.WriteString(l.Name)
			sb.WriteString(`="`)
			sb.WriteString(l.Value)
			sb.WriteByte('"')
		}

		sb.WriteByte('}')
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatFloat(value, 'f', -1, 64))

	return sb.String()
}
