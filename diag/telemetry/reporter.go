package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type K string
type V string

type KV struct {
	Key   K
	Value V
}

func (k K) V(val string) KV {
	return KV{
		Key:   k,
		Value: V(val),
	}
}

const StoreKey K = "store"

type Reporter interface {
	GetPrometheusHttpHandler() http.Handler

	AddWriteCount(store string, key string)
	AddNotificationCount(count int, store string, key string)
	RecordPersistDuration(duration time.Duration, store string, success bool)
	RecordSnapshotSize(size int64, store string)

	StartSpan(ctx context.Context, name string, attributes ...KV) (context.Context, trace.Span)
	ForceFlush(ctx context.Context)

	InstrumentHttp(operation string, method string, handler http.HandlerFunc) http.HandlerFunc

	InstrumentRedis(rdb redis.UniversalClient)
	InstrumentMongoDb(opts *options.ClientOptions)
	InstrumentAws(opts *aws.Config)

	Shutdown()
}

const (
	traceName = "github.com/origami-state/osm"
)

type reporter struct {
	conf           *config.DiagConfig
	metricsHandler *metricsHandler
	traceHandler   *traceHandler
	tracer         trace.Tracer
	log            log.Logger
}

func NewReporter(conf *config.DiagConfig, version string, log log.Logger) Reporter {
	logger := log.WithPrefix("telemetry")
	res := buildResource(version)

	var mh *metricsHandler
	var th *traceHandler
	var tracer trace.Tracer
	if conf.IsMetricsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		mh = newMetricsHandler(ctx, res, &conf.Metrics, logger)
	}
	if conf.IsTracesEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		th = newTraceHandler(ctx, res, &conf.Traces, logger)
		if th != nil {
			tracer = th.provider.Tracer(traceName)
		}
	}

	return &reporter{
		conf:           conf,
		metricsHandler: mh,
		traceHandler:   th,
		tracer:         tracer,
		log:            logger,
	}
}

func NewEmptyReporter() Reporter {
	return &reporter{conf: &config.DiagConfig{}, log: log.NewNullLogger()}
}

func (r *reporter) GetPrometheusHttpHandler() http.Handler {
	return promhttp.Handler()
}

func (r *reporter) ForceFlush(ctx context.Context) {
	if r.metricsHandler != nil {
		err := r.metricsHandler.provider.ForceFlush(ctx)
		if err != nil {
			r.log.Errorf("failed to force flush metrics: %v", err)
		}
	}
	if r.traceHandler != nil {
		err := r.traceHandler.provider.ForceFlush(ctx)
		if err != nil {
			r.log.Errorf("failed to force flush traces: %v", err)
		}
	}
}

func (r *reporter) AddWriteCount(store string, key string) {
	if r.metricsHandler == nil {
		return
	}
	r.metricsHandler.addWriteCount(store, key)
}

func (r *reporter) AddNotificationCount(count int, store string, key string) {
	if r.metricsHandler == nil || count == 0 {
		return
	}
	r.metricsHandler.addNotificationCount(count, store, key)
}

func (r *reporter) RecordPersistDuration(duration time.Duration, store string, success bool) {
	if r.metricsHandler == nil {
		return
	}
	r.metricsHandler.recordPersistDuration(duration, store, success)
}

func (r *reporter) RecordSnapshotSize(size int64, store string) {
	if r.metricsHandler == nil {
		return
	}
	r.metricsHandler.recordSnapshotSize(size, store)
}

func (r *reporter) StartSpan(ctx context.Context, name string, attributes ...KV) (context.Context, trace.Span) {
	if r.tracer == nil {
		return noop.NewTracerProvider().Tracer("noop").Start(ctx, "noop", trace.WithAttributes(toAttributeArray(attributes...)...))
	}
	return r.tracer.Start(ctx, name, trace.WithAttributes(toAttributeArray(attributes...)...), trace.WithSpanKind(trace.SpanKindInternal))
}

func (r *reporter) InstrumentHttp(operation string, method string, handler http.HandlerFunc) http.HandlerFunc {
	var otelOpts []otelhttp.Option
	if r.metricsHandler != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(r.metricsHandler.provider), otelhttp.WithMetricAttributesFn(func(r *http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{semconv.HTTPRoute(r.URL.Path)}
		}))
	}
	if r.traceHandler != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(r.traceHandler.provider))
	}
	if len(otelOpts) > 0 {
		return otelhttp.NewHandler(handler, "HTTP "+method+" "+operation, otelOpts...).ServeHTTP
	}
	return handler
}

func (r *reporter) InstrumentRedis(rdb redis.UniversalClient) {
	if r.metricsHandler != nil {
		err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(r.metricsHandler.provider))
		if err != nil {
			r.log.Errorf("failed to instrument redis: %v", err)
		}
	}
	if r.traceHandler != nil {
		err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(r.traceHandler.provider))
		if err != nil {
			r.log.Errorf("failed to instrument redis: %v", err)
		}
	}
}

func (r *reporter) InstrumentMongoDb(opts *options.ClientOptions) {
	if r.traceHandler != nil {
		opts.Monitor = otelmongo.NewMonitor(otelmongo.WithTracerProvider(r.traceHandler.provider))
	}
}

func (r *reporter) InstrumentAws(opts *aws.Config) {
	if r.traceHandler != nil {
		otelaws.AppendMiddlewares(&opts.APIOptions, otelaws.WithTracerProvider(r.traceHandler.provider))
	}
}

func (r *reporter) Shutdown() {
	if r.metricsHandler != nil {
		r.metricsHandler.shutdown()
	}
	if r.traceHandler != nil {
		r.traceHandler.shutdown()
	}
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func buildResource(version string) *resource.Resource {
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("osm"),
			semconv.ServiceVersion(version),
		))
	return res
}

func toAttributeArray(attributes ...KV) []attribute.KeyValue {
	var result []attribute.KeyValue
	for _, attr := range attributes {
		result = append(result, attribute.String(string(attr.Key), string(attr.Value)))
	}
	return result
}
