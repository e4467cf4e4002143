package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/rosprobe/internal/version"
)

// HealthConfig configures the HTTP server that serves probes and the
// exporter's own metrics.
type HealthConfig struct {
	// Addr is the listen address. Defaults to ":9436".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes Prometheus metrics about the exporter itself.
// Device metrics are never registered here; they are streamed by /probe.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	BuildInfo *prometheus.GaugeVec // version, commit

	// Probe endpoint
	ProbeRequests *prometheus.CounterVec // status
	ProbeDuration prometheus.Histogram
	ProbeLines    prometheus.Counter

	// Session pool
	PoolSessions  prometheus.Gauge
	PoolEvictions *prometheus.CounterVec // reason

	// Device session
	DeviceQueries       *prometheus.CounterVec   // path, status
	DeviceQueryDuration *prometheus.HistogramVec // path

	running atomic.Bool
}

// NewHealthMetrics creates the self-observability registry.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rosprobe",
				Name:      "build_info",
				Help:      "Build information, value is always 1.",
			},
			[]string{"version", "commit"},
		),
		ProbeRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rosprobe",
				Name:      "probe_requests_total",
				Help:      "Total probe requests by HTTP status.",
			},
			[]string{"status"},
		),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rosprobe",
			Name:      "probe_duration_seconds",
			Help:      "Wall time of a probe request including device queries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, // 50ms-30s
		}),
		ProbeLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rosprobe",
			Name:      "probe_lines_total",
			Help:      "Total exposition lines streamed to scrapers.",
		}),
		PoolSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rosprobe",
			Name:      "pool_sessions",
			Help:      "Number of device sessions currently held by the pool.",
		}),
		PoolEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rosprobe",
				Name:      "pool_evictions_total",
				Help:      "Total sessions evicted from the pool by fault class.",
			},
			[]string{"reason"},
		),
		DeviceQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rosprobe",
				Name:      "device_queries_total",
				Help:      "Total API commands sent to devices by path and outcome.",
			},
			[]string{"path", "status"},
		),
		DeviceQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rosprobe",
				Name:      "device_query_duration_seconds",
				Help:      "Device API command round-trip time by path.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}, // 5ms-5s
			},
			[]string{"path"},
		),
	}

	reg.MustRegister(
		h.BuildInfo,
		h.ProbeRequests,
		h.ProbeDuration,
		h.ProbeLines,
		h.PoolSessions,
		h.PoolEvictions,
		h.DeviceQueries,
		h.DeviceQueryDuration,
	)

	h.BuildInfo.WithLabelValues(version.Release, version.GitCommit).Set(1)

	return h
}

// Start begins serving /probe, /metrics and /healthz. The probe handler is
// supplied by the caller so this package stays independent of it.
func (h *HealthMetrics) Start(_ context.Context, probe http.Handler) error {
	if h.addr == "" {
		h.addr = ":9436"
	}

	mux := http.NewServeMux()
	mux.Handle("/probe", probe)
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", h.healthz)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Probe server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Probe server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// healthz reports 503 once the server is not serving.
func (h *HealthMetrics) healthz(w http.ResponseWriter, _ *http.Request) {
	if !h.running.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "stopping")

		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// Stop shuts down the server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	h.running.Store(false)

	return h.server.Close()
}
