package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exgateway/logger"
)

// Prometheus exposes gateway measurements for scraping:
//
//	gateway_call_duration_seconds{exchange,operation}
//	gateway_call_errors_total{exchange,operation,error_kind}
//	gateway_rate_limit_wait_seconds{exchange,operation}
//	gateway_exchange_up{exchange}
//
// plus the go_* and process_* collectors.
type Prometheus struct {
	registry *prometheus.Registry
	calls    *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	waits    *prometheus.HistogramVec
	health   *prometheus.GaugeVec

	server *http.Server
	log    *logger.Entry
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Latency of exchange calls made through the gateway",
			Buckets: prometheus.DefBuckets,
		}, []string{"exchange", "operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_call_errors_total",
			Help: "Failed exchange calls by translated error kind",
		}, []string{"exchange", "operation", "error_kind"}),
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the request spacing limiter",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"exchange", "operation"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_exchange_up",
			Help: "1 when the last health probe of the exchange succeeded",
		}, []string{"exchange"}),
		log: logger.GetLogger().WithComponent("prometheus"),
	}
	p.registry.MustRegister(
		p.calls, p.errors, p.waits, p.health,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve binds addr and serves the handler under path in the background.
// Bind errors are returned synchronously.
func (p *Prometheus) Serve(addr, path string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(path, p.Handler())
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.WithError(err).Error("metrics server failed")
		}
	}()
	p.log.WithFields(logger.Fields{"addr": ln.Addr().String(), "path": path}).Info("serving Prometheus metrics")
	return nil
}

// Shutdown stops the metrics server if Serve was called.
func (p *Prometheus) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}

func (p *Prometheus) RecordCall(exchange, operation string, latency time.Duration, errorKind string) {
	p.calls.WithLabelValues(exchange, operation).Observe(latency.Seconds())
	if errorKind != "" {
		p.errors.WithLabelValues(exchange, operation, errorKind).Inc()
	}
}

func (p *Prometheus) RecordRateLimitWait(exchange, operation string, wait time.Duration) {
	p.waits.WithLabelValues(exchange, operation).Observe(wait.Seconds())
}

func (p *Prometheus) RecordHealth(exchange string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	p.health.WithLabelValues(exchange).Set(v)
}
