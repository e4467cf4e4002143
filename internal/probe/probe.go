// Package probe serves the /probe endpoint: it validates the request,
// borrows the target's session from the pool and streams the translated
// metrics back as Prometheus exposition text.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/rosprobe/internal/device"
	"github.com/ethpandaops/rosprobe/internal/export"
	"github.com/ethpandaops/rosprobe/internal/oui"
	"github.com/ethpandaops/rosprobe/internal/render"
	"github.com/ethpandaops/rosprobe/internal/translate"
	"github.com/ethpandaops/rosprobe/internal/version"
)

// flushEvery bounds how many lines sit in the encoder before they are
// pushed to the client.
const flushEvery = 64

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Config configures the probe endpoint.
type Config struct {
	// Prefix is prepended to every metric name. Defaults to "mikrotik_".
	Prefix string `yaml:"prefix"`

	// ExtendedByDefault includes bridge host and neighbor tables even
	// without module=full.
	ExtendedByDefault bool `yaml:"extended_by_default"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix: "mikrotik_",
	}
}

// Sessions runs fn with exclusive use of a target's authenticated session.
type Sessions interface {
	WithSession(
		ctx context.Context,
		target device.Target,
		creds device.Credentials,
		fn func(device.Session) error,
	) error
}

// Handler is the /probe http.Handler.
type Handler struct {
	log      logrus.FieldLogger
	cfg      Config
	device   device.Config
	sessions Sessions
	vendors  oui.Resolver
	health   *export.HealthMetrics
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates the probe handler. health and vendors may be nil.
func NewHandler(
	log logrus.FieldLogger,
	cfg Config,
	deviceCfg device.Config,
	sessions Sessions,
	vendors oui.Resolver,
	health *export.HealthMetrics,
) *Handler {
	if vendors == nil {
		vendors = oui.Nop()
	}

	return &Handler{
		log:      log.WithField("component", "probe"),
		cfg:      cfg,
		device:   deviceCfg,
		sessions: sessions,
		vendors:  vendors,
		health:   health,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		h.observe(start, strconv.Itoa(http.StatusMethodNotAllowed), 0)

		return
	}

	s := &stream{w: w, rc: http.NewResponseController(w)}

	log, err := h.probe(r, s)
	if err == nil {
		h.observe(start, strconv.Itoa(http.StatusOK), s.lines)

		return
	}

	s.discard()

	var we *writeError

	switch {
	case errors.As(err, &we):
		log.WithError(err).Debug("Scraper went away mid-stream")
		h.observe(start, "aborted", s.lines)

	case s.started:
		// Headers are gone; only a broken stream tells the scraper the
		// body is incomplete.
		log.WithError(err).Error("Probe failed mid-stream")
		h.observe(start, "aborted", s.lines)

		panic(http.ErrAbortHandler)

	default:
		status := statusFor(err)

		entry := log.WithError(err).WithField("status", status)
		if status == http.StatusBadRequest {
			entry.Warn("Rejected probe request")
		} else {
			entry.Error("Probe failed")
		}

		http.Error(w, err.Error(), status)
		h.observe(start, strconv.Itoa(status), 0)
	}
}

func (h *Handler) probe(r *http.Request, s *stream) (logrus.FieldLogger, error) {
	log := h.log

	target, err := ParseTarget(r.URL.Query().Get("target"), h.device.DefaultPort)
	if err != nil {
		return log, err
	}

	log = log.WithFields(logrus.Fields{
		"target": target.Host,
		"port":   target.Port,
	})

	creds, err := credentials(r, h.device)
	if err != nil {
		return log, err
	}

	opts := translate.Options{
		Extended: h.cfg.ExtendedByDefault || r.URL.Query().Get("module") == "full",
		Vendors:  h.vendors,
	}

	s.encoding = negotiate(r.Header.Get("Accept-Encoding"))

	ctx := r.Context()

	return log, h.sessions.WithSession(ctx, target, creds, func(sess device.Session) error {
		identity, err := translate.Identity(ctx, sess)
		if err != nil {
			return err
		}

		if err := s.start(); err != nil {
			return err
		}

		lines := render.Lines(
			translate.Scrape(ctx, sess, opts),
			h.cfg.Prefix,
			translate.L("identity", identity),
		)

		for line, err := range lines {
			if err != nil {
				return err
			}

			if err := s.writeLine(line); err != nil {
				return err
			}
		}

		return s.close()
	})
}

func (h *Handler) observe(start time.Time, status string, lines int) {
	if h.health == nil {
		return
	}

	h.health.ProbeRequests.WithLabelValues(status).Inc()
	h.health.ProbeDuration.Observe(time.Since(start).Seconds())
	h.health.ProbeLines.Add(float64(lines))
}

// statusFor maps a failure that happened before any byte was written.
func statusFor(err error) int {
	var (
		invalid *RequestValidationError
		auth    *device.AuthenticationError
	)

	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &auth):
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError marks a failure writing to the scraper. It is not a session
// fault, so the pool keeps the session.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return fmt.Sprintf("writing response: %v", e.err) }
func (e *writeError) Unwrap() error { return e.err }

// stream writes exposition lines through the negotiated encoder.
type stream struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	encoding string
	enc      encoder

	started bool
	lines   int
}

func (s *stream) start() error {
	enc, err := newEncoder(s.encoding, s.w)
	if err != nil {
		return err
	}

	s.enc = enc

	header := s.w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Server", version.UserAgent())
	header.Set("Vary", "Accept-Encoding")

	if s.encoding != EncodingIdentity {
		header.Set("Content-Encoding", s.encoding)
	}

	s.w.WriteHeader(http.StatusOK)
	s.started = true

	return nil
}

func (s *stream) writeLine(line string) error {
	if _, err := io.WriteString(s.enc, line+"\n"); err != nil {
		return &writeError{err: err}
	}

	s.lines++

	if s.lines%flushEvery == 0 {
		return s.flush()
	}

	return nil
}

func (s *stream) flush() error {
	if err := s.enc.Flush(); err != nil {
		return &writeError{err: err}
	}

	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return &writeError{err: err}
	}

	return nil
}

// discard releases the encoder without writing anything more.
func (s *stream) discard() {
	if s.enc == nil {
		return
	}

	s.enc.Reset(io.Discard)
	_ = s.enc.Close()
}

func (s *stream) close() error {
	if err := s.enc.Close(); err != nil {
		return &writeError{err: err}
	}

	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return &writeError{err: err}
	}

	return nil
}
