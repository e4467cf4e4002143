package translate

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/rosprobe/internal/device"
)

func records(recs ...device.Record) iter.Seq2[device.Record, error] {
	return func(yield func(device.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func failing(err error, recs ...device.Record) iter.Seq2[device.Record, error] {
	return func(yield func(device.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}

		yield(nil, err)
	}
}

func drain(t *testing.T, seq iter.Seq2[Metric, error]) []Metric {
	t.Helper()

	var out []Metric

	for m, err := range seq {
		require.NoError(t, err)

		out = append(out, m)
	}

	return out
}

func drainErr(seq iter.Seq2[Metric, error]) ([]Metric, error) {
	var out []Metric

	for m, err := range seq {
		if err != nil {
			return out, err
		}

		out = append(out, m)
	}

	return out, nil
}

func named(metrics []Metric, name string) []Metric {
	var out []Metric

	for _, m := range metrics {
		if m.Name == name {
			out = append(out, m)
		}
	}

	return out
}

func label(m Metric, name string) string {
	v, _ := m.Labels.Get(name)

	return v
}

// fakeQuerier serves canned replies keyed by the full command line.
type fakeQuerier struct {
	replies map[string][]device.Record
	errs    map[string]error
	issued  []string
}

func (f *fakeQuerier) key(path string, args []string) string {
	return strings.Join(append([]string{path}, args...), " ")
}

func (f *fakeQuerier) Query(_ context.Context, path string, args ...string) iter.Seq2[device.Record, error] {
	key := f.key(path, args)

	return func(yield func(device.Record, error) bool) {
		f.issued = append(f.issued, key)

		if err := f.errs[key]; err != nil {
			yield(nil, err)

			return
		}

		for _, r := range f.replies[key] {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (f *fakeQuerier) QueryOptional(ctx context.Context, path string, args ...string) iter.Seq2[device.Record, error] {
	return f.Query(ctx, path, args...)
}

var errDevice = errors.New("device went away")
