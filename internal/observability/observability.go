package observability

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rolemetrics "github.com/rolewarden/rolewarden/internal/observability/metrics/rolemessage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Config selects where telemetry goes.
type Config struct {
	Environment    string
	MetricsAddress string
}

// Observability bundles the logger, tracer, and per-module metrics the
// application wires into every module.
type Observability struct {
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Registry    *prometheus.Registry
	RoleMetrics rolemetrics.RoleMetrics

	server *http.Server
}

// Init builds the observability stack: a JSON slog logger on stderr, a
// prometheus registry with the module collectors, and the global OTel
// tracer (a no-op unless the host process installed a provider).
func Init(cfg Config) *Observability {
	level := slog.LevelInfo
	if cfg.Environment == "development" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Observability{
		Logger:      logger,
		Tracer:      otel.GetTracerProvider().Tracer("rolewarden"),
		Registry:    registry,
		RoleMetrics: rolemetrics.NewPrometheusMetrics(registry),
	}
}

// ServeMetrics exposes the prometheus registry on addr until Shutdown.
// No-op when addr is empty.
func (o *Observability) ServeMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Registry, promhttp.HandlerOpts{}))
	o.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			o.Logger.Error("Metrics server stopped", slog.Any("error", err))
		}
	}()
}

// Shutdown stops the metrics server if one is running.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o.server == nil {
		return nil
	}
	return o.server.Shutdown(ctx)
}
