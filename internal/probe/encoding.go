package probe

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Content-Encoding values the probe endpoint can produce.
const (
	EncodingIdentity = "identity"
	EncodingGzip     = "gzip"
	EncodingZstd     = "zstd"
	EncodingDeflate  = "deflate"
	EncodingSnappy   = "snappy"
)

// preference is the server-side order used when a client accepts several
// encodings with equal weight.
var preference = []string{
	EncodingZstd,
	EncodingGzip,
	EncodingDeflate,
	EncodingSnappy,
}

// encoder is a streaming body writer. Flush pushes buffered output to the
// underlying writer without ending the stream.
type encoder interface {
	io.Writer
	Flush() error
	Close() error
	Reset(w io.Writer)
}

type identityEncoder struct {
	io.Writer
}

func (e *identityEncoder) Reset(w io.Writer) { e.Writer = w }
func (*identityEncoder) Flush() error { return nil }
func (*identityEncoder) Close() error { return nil }

// newEncoder wraps w with the streaming writer for encoding.
func newEncoder(encoding string, w io.Writer) (encoder, error) {
	switch encoding {
	case EncodingIdentity, "":
		return &identityEncoder{w}, nil
	case EncodingGzip:
		return gzip.NewWriter(w), nil
	case EncodingZstd:
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}

		return enc, nil
	case EncodingDeflate:
		// HTTP "deflate" is the zlib format.
		return zlib.NewWriter(w), nil
	case EncodingSnappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding: %s", encoding)
	}
}

// negotiate picks a response encoding from an Accept-Encoding header.
// Explicit q=0 entries are refused; among the rest the highest weight wins,
// ties broken by server preference.
func negotiate(header string) string {
	if strings.TrimSpace(header) == "" {
		return EncodingIdentity
	}

	weights := make(map[string]float64, 4)
	wildcard := -1.0

	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))

		if name == "" {
			continue
		}

		q := 1.0

		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.ToLower(strings.TrimSpace(k)) != "q" {
				continue
			}

			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}

			q = parsed
		}

		if name == "*" {
			wildcard = q

			continue
		}

		weights[name] = q
	}

	best, bestQ := EncodingIdentity, 0.0

	for _, enc := range preference {
		q, ok := weights[enc]
		if !ok {
			q = wildcard
		}

		if q > bestQ {
			best, bestQ = enc, q
		}
	}

	return best
}
