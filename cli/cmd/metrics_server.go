package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justapithecus/rawzeo/log"
	"github.com/justapithecus/rawzeo/metrics"
)

// metricsServer exposes a session collector on /metrics.
type metricsServer struct {
	srv    *http.Server
	ln     net.Listener
	logger *log.Logger
}

// startMetricsServer listens on addr and serves the collector until stop
// is called. The listener is bound before returning so a bad address is a
// setup error.
func startMetricsServer(addr string, c *metrics.Collector, logger *log.Logger) (*metricsServer, error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg, c); err != nil {
		return nil, err
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &metricsServer{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", map[string]any{"addr": addr, "error": err.Error()})
		}
	}()
	logger.Info("metrics server listening", map[string]any{"addr": ln.Addr().String()})
	return s, nil
}

// Addr returns the bound address.
func (s *metricsServer) Addr() string { return s.ln.Addr().String() }

func (s *metricsServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
