package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/log"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

const traceShutdownTimeout = 5 * time.Second

// traceHandler owns the tracer provider behind the store.load and
// store.persist spans.
type traceHandler struct {
	provider *trace.TracerProvider
	log      log.Logger
}

func newTraceHandler(ctx context.Context, res *resource.Resource, conf *config.TraceConfig, l log.Logger) *traceHandler {
	if !conf.Otlp.Enabled {
		return nil
	}
	logger := l.WithPrefix("traces")
	exporter, err := newSpanExporter(ctx, &conf.Otlp)
	if err != nil {
		logger.Errorf("failed to configure OTLP exporter: %s", err)
		return nil
	}
	target := conf.Otlp.Protocol
	if conf.Otlp.Endpoint != "" {
		target += " to " + conf.Otlp.Endpoint
	}
	logger.Reportf("otlp exporter enabled over %s", target)
	return &traceHandler{
		provider: trace.NewTracerProvider(trace.WithResource(res), trace.WithBatcher(exporter)),
		log:      logger,
	}
}

// newSpanExporter builds the OTLP exporter for the configured protocol.
// Only "https" keeps transport security on.
func newSpanExporter(ctx context.Context, conf *config.OtlpExporterConfig) (trace.SpanExporter, error) {
	switch conf.Protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if conf.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(conf.Endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "https":
		var opts []otlptracehttp.Option
		if conf.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(conf.Endpoint))
		}
		if conf.Protocol == "http" {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported protocol '%s'", conf.Protocol)
	}
}

// shutdown flushes pending spans before the provider stops.
func (h *traceHandler) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), traceShutdownTimeout)
	defer cancel()

	h.log.Reportf("flushing pending spans")
	if err := h.provider.Shutdown(ctx); err != nil {
		h.log.Errorf("shutdown error: %s", err)
		return
	}
	h.log.Reportf("shutdown complete")
}
