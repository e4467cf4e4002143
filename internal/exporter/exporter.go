// Package exporter wires the probe endpoint, session pool and device
// sessions into one running server.
package exporter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/rosprobe/internal/device"
	"github.com/ethpandaops/rosprobe/internal/export"
	"github.com/ethpandaops/rosprobe/internal/oui"
	"github.com/ethpandaops/rosprobe/internal/pool"
	"github.com/ethpandaops/rosprobe/internal/probe"
	"github.com/ethpandaops/rosprobe/internal/version"
)

// Exporter is the top-level orchestrator for rosprobe.
type Exporter interface {
	// Start begins serving probe requests.
	Start(ctx context.Context) error
	// Stop shuts the server down. Pooled sessions are left to process exit.
	Stop() error
	// Addr returns the address the server listens on.
	Addr() string
}

type exporter struct {
	log     logrus.FieldLogger
	cfg     *Config
	health  *export.HealthMetrics
	pool    *pool.Pool
	handler *probe.Handler
}

// New creates an Exporter. The OUI database, when configured, is loaded
// here so a bad path fails before the server starts.
func New(log logrus.FieldLogger, cfg *Config) (Exporter, error) {
	health := export.NewHealthMetrics(log, export.HealthConfig{
		Addr: cfg.ListenAddr,
	})

	vendors, err := oui.Open(log, cfg.OUIFile)
	if err != nil {
		return nil, fmt.Errorf("loading vendor database: %w", err)
	}

	p := pool.New(log, device.NewFactory(log, cfg.Device, health), health)

	return &exporter{
		log:     log.WithField("component", "exporter"),
		cfg:     cfg,
		health:  health,
		pool:    p,
		handler: probe.NewHandler(log, cfg.Probe, cfg.Device, p, vendors, health),
	}, nil
}

func (e *exporter) Start(ctx context.Context) error {
	if err := e.health.Start(ctx, e.handler); err != nil {
		return fmt.Errorf("starting probe server: %w", err)
	}

	_, fallback := e.cfg.Device.DefaultCredentials()

	e.log.WithFields(logrus.Fields{
		"version":              version.Full(),
		"addr":                 e.health.Addr(),
		"prefix":               e.cfg.Probe.Prefix,
		"extended_by_default":  e.cfg.Probe.ExtendedByDefault,
		"fallback_credentials": fallback,
	}).Info("Exporter started")

	return nil
}

func (e *exporter) Stop() error {
	e.log.WithField("sessions", e.pool.Len()).Info("Stopping exporter")

	if err := e.health.Stop(); err != nil {
		return fmt.Errorf("stopping probe server: %w", err)
	}

	return nil
}

func (e *exporter) Addr() string {
	return e.health.Addr()
}
