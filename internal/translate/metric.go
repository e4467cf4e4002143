package translate

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/ethpandaops/rosprobe/internal/device"
)

// Kind is the exposition type of a metric.
type Kind int

const (
	Counter Kind = iota
	Gauge
)

func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	default:
		return "untyped"
	}
}

// Label is one name/value pair of a label set.
type Label struct {
	Name  string
	Value string
}

// Labels is an ordered label set with unique names. Methods never mutate
// the receiver; they return a new set.
type Labels []Label

// L builds a label set from alternating name, value arguments.
func L(pairs ...string) Labels {
	out := make(Labels, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = out.With(pairs[i], pairs[i+1])
	}

	return out
}

// Get returns the value of the named label.
func (l Labels) Get(name string) (string, bool) {
	for _, lbl := range l {
		if lbl.Name == name {
			return lbl.Value, true
		}
	}

	return "", false
}

// With returns a copy with name set to value. An existing label keeps its
// position; a new one is appended.
func (l Labels) With(name, value string) Labels {
	out := make(Labels, len(l), len(l)+1)
	copy(out, l)

	for i := range out {
		if out[i].Name == name {
			out[i].Value = value

			return out
		}
	}

	return append(out, Label{Name: name, Value: value})
}

// Merge returns l with every label of other applied on top.
func (l Labels) Merge(other Labels) Labels {
	out := make(Labels, len(l), len(l)+len(other))
	copy(out, l)

	for _, lbl := range other {
		out = out.With(lbl.Name, lbl.Value)
	}

	return out
}

// Metric is one canonical sample produced by a translator.
type Metric struct {
	Name   string
	Kind   Kind
	Value  float64
	Labels Labels
}

// batch accumulates the samples derived from one record.
type batch []Metric

func (b *batch) counter(name string, value float64, labels Labels) {
	*b = append(*b, Metric{Name: name, Kind: Counter, Value: value, Labels: labels})
}

func (b *batch) gauge(name string, value float64, labels Labels) {
	*b = append(*b, Metric{Name: name, Kind: Gauge, Value: value, Labels: labels})
}

// info appends an informational gauge: value 1, all variance in labels.
func (b *batch) info(name string, labels Labels) {
	b.gauge(name, 1, labels)
}

// eachRecord turns a per-record translation into a lazy metric sequence.
// The first error from the device or from fn ends the sequence.
func eachRecord(
	records iter.Seq2[device.Record, error],
	fn func(device.Record) (batch, error),
) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		for rec, err := range records {
			if err != nil {
				yield(Metric{}, err)

				return
			}

			metrics, err := fn(rec)
			if err != nil {
				yield(Metric{}, err)

				return
			}

			for _, m := range metrics {
				if !yield(m, nil) {
					return
				}
			}
		}
	}
}

// concat chains sequences, stopping at the first error.
func concat(seqs ...iter.Seq2[Metric, error]) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		for _, seq := range seqs {
			for m, err := range seq {
				if !yield(m, err) || err != nil {
					return
				}
			}
		}
	}
}

func fail(err error) iter.Seq2[Metric, error] {
	return func(yield func(Metric, error) bool) {
		yield(Metric{}, err)
	}
}

// optionalFloat parses key when present. Absent is not an error.
func optionalFloat(rec device.Record, key string) (float64, bool, error) {
	raw, ok := rec.Lookup(key)
	if !ok {
		return 0, false, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing %s=%q: %w", key, raw, err)
	}

	return v, true, nil
}

// requiredFloat parses key and fails when the device omitted it.
func requiredFloat(rec device.Record, key string) (float64, error) {
	v, ok, err := optionalFloat(rec, key)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, fmt.Errorf("record missing field %q", key)
	}

	return v, nil
}

// parseBool accepts the API's true/false and the console's yes/no.
// Absent is false.
func parseBool(rec device.Record, key string) (bool, error) {
	raw, ok := rec.Lookup(key)
	if !ok {
		return false, nil
	}

	switch strings.ToLower(raw) {
	case "true", "yes":
		return true, nil
	case "false", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("parsing %s=%q: not a boolean", key, raw)
	}
}

func boolString(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
