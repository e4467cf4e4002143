package device

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/routeros.v2"

	"github.com/ethpandaops/rosprobe/internal/export"
)

// State is the lifecycle state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Querier issues API commands and streams the reply records.
type Querier interface {
	// Query runs path with args. A trap reply ends the sequence with a
	// *ProtocolError.
	Query(ctx context.Context, path string, args ...string) iter.Seq2[Record, error]
	// QueryOptional is Query for menus that only exist on some hardware or
	// packages: a "no such command" trap yields an empty sequence.
	QueryOptional(ctx context.Context, path string, args ...string) iter.Seq2[Record, error]
}

// Session is an API connection to one device. It is not safe for
// concurrent use; the pool serializes access.
type Session interface {
	Querier

	// Connect opens the transport. It is a no-op when already connected.
	Connect(ctx context.Context) error
	// Authenticate logs in over the open transport.
	Authenticate(creds Credentials) error
	// Authenticated reports whether the session is logged in as creds.
	Authenticated(creds Credentials) bool
	// State returns the current lifecycle state.
	State() State
	// Close tears down the transport.
	Close() error
}

// Factory builds a new, not yet connected session for a target.
type Factory func(target Target) Session

type session struct {
	log    logrus.FieldLogger
	cfg    Config
	health *export.HealthMetrics
	target Target

	conn   net.Conn
	client *routeros.Client
	async  <-chan error
	creds  Credentials
	state  State
}

// NewFactory returns a Factory producing RouterOS API sessions.
func NewFactory(
	log logrus.FieldLogger,
	cfg Config,
	health *export.HealthMetrics,
) Factory {
	return func(target Target) Session {
		return NewSession(log, cfg, health, target)
	}
}

// NewSession creates a disconnected RouterOS API session.
func NewSession(
	log logrus.FieldLogger,
	cfg Config,
	health *export.HealthMetrics,
	target Target,
) Session {
	return &session{
		log: log.WithFields(logrus.Fields{
			"component": "session",
			"target":    target.String(),
		}),
		cfg:    cfg,
		health: health,
		target: target,
		state:  StateDisconnected,
	}
}

func (s *session) State() State {
	return s.state
}

func (s *session) Connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	s.state = StateConnecting

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", s.target.Address())
	if err != nil {
		s.state = StateFaulted

		return &TransportError{Target: s.target, Err: err}
	}

	client, err := routeros.NewClient(conn)
	if err != nil {
		s.state = StateFaulted
		conn.Close()

		return &TransportError{Target: s.target, Err: err}
	}

	s.conn = conn
	s.client = client

	s.log.Debug("Connected to device")

	return nil
}

func (s *session) Authenticate(creds Credentials) error {
	if s.client == nil {
		return &TransportError{
			Target: s.target,
			Err:    errors.New("authenticate before connect"),
		}
	}

	s.setDeadline(context.Background())

	err := s.client.Login(creds.Username, creds.Password)

	s.clearDeadline()

	if err != nil {
		s.state = StateFaulted

		return classifyLogin(s.target, err)
	}

	// Tagged commands let the client drop the !done that follows a !trap
	// instead of reading it as the next command's reply.
	if s.async == nil {
		s.async = s.client.Async()
	}

	s.creds = creds
	s.state = StateAuthenticated

	s.log.WithField("user", creds.Username).Debug("Authenticated to device")

	return nil
}

func (s *session) Authenticated(creds Credentials) bool {
	return s.state == StateAuthenticated && s.creds == creds
}

func (s *session) Query(
	ctx context.Context,
	path string,
	args ...string,
) iter.Seq2[Record, error] {
	return s.query(ctx, false, path, args)
}

func (s *session) QueryOptional(
	ctx context.Context,
	path string,
	args ...string,
) iter.Seq2[Record, error] {
	return s.query(ctx, true, path, args)
}

func (s *session) query(
	ctx context.Context,
	optional bool,
	path string,
	args []string,
) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		records, err := s.run(ctx, path, args)
		if err != nil {
			if optional && isMissingCommand(err) {
				return
			}

			yield(nil, err)

			return
		}

		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// run sends one command and waits for its reply. Records are buffered so
// an abandoned iteration never leaves the command outstanding.
func (s *session) run(
	ctx context.Context,
	path string,
	args []string,
) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.state != StateAuthenticated {
		return nil, &TransportError{
			Target: s.target,
			Err:    fmt.Errorf("query %s on %s session", path, s.state),
		}
	}

	if err := s.readerErr(); err != nil {
		s.state = StateFaulted

		return nil, &TransportError{Target: s.target, Err: err}
	}

	s.setDeadline(ctx)

	start := time.Now()
	reply, err := s.client.RunArgs(append([]string{path}, args...))

	s.clearDeadline()
	s.observe(path, start, err)

	if err != nil {
		classified := classifyQuery(s.target, path, err)
		if !isMissingCommand(classified) {
			s.state = StateFaulted
		}

		return nil, classified
	}

	records := make([]Record, 0, len(reply.Re))
	for _, sen := range reply.Re {
		records = append(records, Record(sen.Map))
	}

	return records, nil
}

func (s *session) setDeadline(ctx context.Context) {
	if s.conn == nil {
		return
	}

	// Zero clears any previous deadline.
	var deadline time.Time
	if s.cfg.IOTimeout > 0 {
		deadline = time.Now().Add(s.cfg.IOTimeout)
	}

	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}

	if err := s.conn.SetDeadline(deadline); err != nil {
		s.log.WithError(err).Debug("Failed to set connection deadline")
	}
}

// readerErr reports why the reply reader stopped, or nil while it runs.
func (s *session) readerErr() error {
	select {
	case err, ok := <-s.async:
		if ok && err != nil {
			return fmt.Errorf("reply reader stopped: %w", err)
		}

		return errors.New("reply reader stopped")
	default:
		return nil
	}
}

// clearDeadline lets the reader idle between scrapes without timing out.
func (s *session) clearDeadline() {
	if s.conn == nil {
		return
	}

	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		s.log.WithError(err).Debug("Failed to clear connection deadline")
	}
}

func (s *session) observe(path string, start time.Time, err error) {
	if s.health == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	s.health.DeviceQueries.WithLabelValues(path, status).Inc()
	s.health.DeviceQueryDuration.WithLabelValues(path).
		Observe(time.Since(start).Seconds())
}

func (s *session) Close() error {
	if s.client == nil {
		return nil
	}

	// Closes the underlying conn and ends the reader goroutine.
	s.client.Close()

	s.client = nil
	s.conn = nil
	s.async = nil
	s.state = StateDisconnected

	return nil
}

// classifyLogin maps a login failure: a device reply means the credentials
// were refused, anything else is the transport.
func classifyLogin(target Target, err error) error {
	var devErr *routeros.DeviceError
	if errors.As(err, &devErr) && devErr.Sentence != nil &&
		devErr.Sentence.Word != "!fatal" {
		return &AuthenticationError{Target: target, Err: err}
	}

	return &TransportError{Target: target, Err: err}
}

// classifyQuery maps a command failure: !trap is a protocol error, !fatal
// closes the connection so it is a transport error, as is any I/O error.
func classifyQuery(target Target, path string, err error) error {
	var devErr *routeros.DeviceError
	if errors.As(err, &devErr) && devErr.Sentence != nil {
		if devErr.Sentence.Word == "!fatal" {
			return &TransportError{Target: target, Err: err}
		}

		return &ProtocolError{
			Target:  target,
			Path:    path,
			Message: devErr.Sentence.Map["message"],
			Err:     err,
		}
	}

	return &TransportError{Target: target, Err: err}
}

func isMissingCommand(err error) bool {
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		return false
	}

	return strings.HasPrefix(protoErr.Message, "no such command")
}
