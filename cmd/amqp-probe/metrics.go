package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/rabbitmq"
)

// probeMetrics always keeps the counters the summary reports. With an
// address it also exports them to Prometheus for the length of the run.
type probeMetrics struct {
	stats     *rabbitmq.StandardMetricsCollector
	collector rabbitmq.MetricsCollector
	registry  *prometheus.Registry
	server    *http.Server
	logger    *zap.Logger
}

func newProbeMetrics(addr string, logger *zap.Logger) (*probeMetrics, error) {
	m := &probeMetrics{stats: rabbitmq.NewStandardMetricsCollector(), logger: logger}
	m.collector = m.stats
	if addr == "" {
		return m, nil
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(collectors.NewGoCollector())
	prom, err := rabbitmq.NewPrometheusMetricsCollector(m.registry)
	if err != nil {
		return nil, err
	}
	m.collector = rabbitmq.NewMultiMetricsCollector(m.stats, prom)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler())
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return m, nil
}

func (m *probeMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// serve listens in the background. A nil server serves nothing.
func (m *probeMetrics) serve() error {
	if m.server == nil {
		return nil
	}
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return err
	}
	m.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (m *probeMetrics) shutdown() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.server.Shutdown(ctx)
}
