package telemetry

import (
	"context"
	"time"

	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/log"
	"github.com/prometheus/otlptranslator"
	otelhost "go.opentelemetry.io/contrib/instrumentation/host"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type metricsHandler struct {
	writes          otelmetric.Int64Counter
	notifications   otelmetric.Int64Counter
	persistDuration otelmetric.Float64Histogram
	snapshotSize    otelmetric.Int64Gauge
	provider        *metric.MeterProvider
	log             log.Logger

	ctx       context.Context
	ctxCancel func()
}

const (
	meterName = "github.com/origami-state/osm"

	resultOk    = "ok"
	resultError = "error"
)

func newMetricsHandler(ctx context.Context, resource *resource.Resource, conf *config.MetricsConfig, log log.Logger) *metricsHandler {
	if !conf.Prometheus.Enabled && !conf.Otlp.Enabled {
		return nil
	}
	logger := log.WithPrefix("metrics")
	providerOpts := []metric.Option{metric.WithResource(resource)}
	if conf.Prometheus.Enabled {
		exporter, err := promexporter.New(
			promexporter.WithNamespace("osm"),
			promexporter.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes))
		if err != nil {
			logger.Errorf("failed to configure Prometheus exporter: %s", err)
			return nil
		}
		providerOpts = append(providerOpts, metric.WithReader(exporter))
		logger.Reportf("prometheus exporter enabled on /metrics")
	}
	if conf.Otlp.Enabled {
		switch conf.Otlp.Protocol {
		case "grpc":
			var opts []otlpmetricgrpc.Option
			if conf.Otlp.Endpoint != "" {
				opts = append(opts, otlpmetricgrpc.WithEndpoint(conf.Otlp.Endpoint))
			}
			opts = append(opts, otlpmetricgrpc.WithInsecure())
			r, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				logger.Errorf("failed to configure OTLP gRPC exporter: %s", err)
				return nil
			}
			providerOpts = append(providerOpts, metric.WithReader(metric.NewPeriodicReader(r)))
		case "http", "https":
			var opts []otlpmetrichttp.Option
			if conf.Otlp.Endpoint != "" {
				opts = append(opts, otlpmetrichttp.WithEndpoint(conf.Otlp.Endpoint))
			}
			if conf.Otlp.Protocol == "http" {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			}
			r, err := otlpmetrichttp.New(ctx, opts...)
			if err != nil {
				logger.Errorf("failed to configure OTLP HTTP exporter: %s", err)
				return nil
			}
			providerOpts = append(providerOpts, metric.WithReader(metric.NewPeriodicReader(r)))
		}
		var ep string
		if conf.Otlp.Endpoint != "" {
			ep = " to " + conf.Otlp.Endpoint
		}
		logger.Reportf("otlp exporter enabled over %s%s", conf.Otlp.Protocol, ep)
	}
	return newMetricsHandlerWithOpts(providerOpts, logger)
}

func newMetricsHandlerWithOpts(opts []metric.Option, logger log.Logger) *metricsHandler {
	provider := metric.NewMeterProvider(opts...)
	meter := provider.Meter(meterName)

	err := otelruntime.Start(otelruntime.WithMeterProvider(provider))
	if err != nil {
		logger.Errorf("failed to start runtime metrics: %s", err)
	}
	err = otelhost.Start(otelhost.WithMeterProvider(provider))
	if err != nil {
		logger.Errorf("failed to start host metrics: %s", err)
	}

	writes, err := meter.Int64Counter("store.writes.total",
		otelmetric.WithDescription("Total number of writes applied to store keys."))
	if err != nil {
		logger.Errorf("failed to configure writes counter: %s", err)
		return nil
	}

	notifications, err := meter.Int64Counter("store.notifications.total",
		otelmetric.WithDescription("Total number of subscriber notifications delivered."))
	if err != nil {
		logger.Errorf("failed to configure notifications counter: %s", err)
		return nil
	}

	persistDuration, err := meter.Float64Histogram("store.persist.duration",
		otelmetric.WithDescription("Duration of whole-store snapshot writes."),
		otelmetric.WithUnit("s"))
	if err != nil {
		logger.Errorf("failed to configure persist duration histogram: %s", err)
		return nil
	}

	snapshotSize, err := meter.Int64Gauge("store.snapshot.size",
		otelmetric.WithDescription("Size of the last persisted snapshot."),
		otelmetric.WithUnit("By"))
	if err != nil {
		logger.Errorf("failed to configure snapshot size gauge: %s", err)
		return nil
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &metricsHandler{
		writes:          writes,
		notifications:   notifications,
		persistDuration: persistDuration,
		snapshotSize:    snapshotSize,
		provider:        provider,
		log:             logger,
		ctx:             ctx,
		ctxCancel:       ctxCancel,
	}
}

func (r *metricsHandler) addWriteCount(store string, key string) {
	r.writes.Add(r.ctx, 1, otelmetric.WithAttributes(
		attribute.Key("store").String(store),
		attribute.Key("key").String(key),
	))
}

func (r *metricsHandler) addNotificationCount(count int, store string, key string) {
	r.notifications.Add(r.ctx, int64(count), otelmetric.WithAttributes(
		attribute.Key("store").String(store),
		attribute.Key("key").String(key),
	))
}

func (r *metricsHandler) recordPersistDuration(duration time.Duration, store string, success bool) {
	result := resultOk
	if !success {
		result = resultError
	}
	r.persistDuration.Record(r.ctx, duration.Seconds(), otelmetric.WithAttributes(
		attribute.Key("store").String(store),
		attribute.Key("result").String(result),
	))
}

func (r *metricsHandler) recordSnapshotSize(size int64, store string) {
	r.snapshotSize.Record(r.ctx, size, otelmetric.WithAttributes(
		attribute.Key("store").String(store),
	))
}

func (r *metricsHandler) shutdown() {
	r.log.Reportf("initiating shutdown")
	r.ctxCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.provider.Shutdown(ctx)
	if err != nil {
		r.log.Errorf("shutdown error: %s", err)
	}
	r.log.Reportf("shutdown complete")
}
