// Package pool keeps at most one warm device session per target and
// serializes every query sequence against a target.
package pool

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ethpandaops/rosprobe/internal/device"
	"github.com/ethpandaops/rosprobe/internal/export"
)

type entry struct {
	session device.Session
	// gate admits one query sequence at a time. A weighted semaphore of
	// size 1 is a mutex whose acquisition honours context cancellation.
	gate *semaphore.Weighted
}

// Pool maps targets to their session and gate. The map is the only state
// shared between requests; mu guards it and is never held during I/O.
type Pool struct {
	log        logrus.FieldLogger
	newSession device.Factory
	health     *export.HealthMetrics

	mu      sync.Mutex
	entries map[device.Target]*entry
}

// New creates an empty pool. Entries are created on first use and removed
// on fault; the pool is never torn down.
func New(
	log logrus.FieldLogger,
	newSession device.Factory,
	health *export.HealthMetrics,
) *Pool {
	return &Pool{
		log:        log.WithField("component", "pool"),
		newSession: newSession,
		health:     health,
		entries:    make(map[device.Target]*entry),
	}
}

// Acquire returns the session and gate for target, creating a disconnected
// session on first use. Concurrent first acquisitions of one target get the
// same entry.
func (p *Pool) Acquire(target device.Target) (device.Session, *semaphore.Weighted) {
	e := p.acquire(target)

	return e.session, e.gate
}

func (p *Pool) acquire(target device.Target) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[target]; ok {
		return e
	}

	e := &entry{
		session: p.newSession(target),
		gate:    semaphore.NewWeighted(1),
	}
	p.entries[target] = e

	p.updateGauge()

	return e
}

// Len returns the number of pooled sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}

// WithSession runs fn with exclusive use of target's session, connecting
// and authenticating it first when needed. Any session fault, from login or
// from fn, evicts the entry before the error is returned. Errors that did
// not come from the session, such as a failed response write, leave it
// pooled.
func (p *Pool) WithSession(
	ctx context.Context,
	target device.Target,
	creds device.Credentials,
	fn func(device.Session) error,
) error {
	e, err := p.lock(ctx, target)
	if err != nil {
		return err
	}
	defer e.gate.Release(1)

	if err := p.prepare(ctx, e.session, creds); err != nil {
		p.evict(target, e, err)

		return err
	}

	if err := fn(e.session); err != nil {
		if device.IsSessionFault(err) {
			p.evict(target, e, err)
		}

		return err
	}

	return nil
}

// lock takes the target's gate. An entry evicted while we waited is stale,
// so retry against whatever the pool holds now.
func (p *Pool) lock(ctx context.Context, target device.Target) (*entry, error) {
	for {
		e := p.acquire(target)

		if err := e.gate.Acquire(ctx, 1); err != nil {
			return nil, err
		}

		p.mu.Lock()
		current := p.entries[target] == e
		p.mu.Unlock()

		if current {
			return e, nil
		}

		e.gate.Release(1)
	}
}

func (p *Pool) prepare(ctx context.Context, s device.Session, creds device.Credentials) error {
	if s.Authenticated(creds) {
		return nil
	}

	// Logged in as someone else: start over on a fresh connection.
	if s.State() == device.StateAuthenticated {
		if err := s.Close(); err != nil {
			p.log.WithError(err).Debug("Closing session for re-authentication")
		}
	}

	if err := s.Connect(ctx); err != nil {
		return err
	}

	return s.Authenticate(creds)
}

func (p *Pool) evict(target device.Target, e *entry, cause error) {
	p.mu.Lock()
	if p.entries[target] == e {
		delete(p.entries, target)
	}
	p.updateGauge()
	p.mu.Unlock()

	reason := device.FaultReason(cause)

	p.log.WithError(cause).WithFields(logrus.Fields{
		"target": target.String(),
		"reason": reason,
	}).Warn("Evicting device session")

	if err := e.session.Close(); err != nil {
		p.log.WithError(err).WithField("target", target.String()).
			Debug("Error closing evicted session")
	}

	if p.health != nil {
		p.health.PoolEvictions.WithLabelValues(reason).Inc()
	}
}

// updateGauge must be called with mu held.
func (p *Pool) updateGauge() {
	if p.health != nil {
		p.health.PoolSessions.Set(float64(len(p.entries)))
	}
}
