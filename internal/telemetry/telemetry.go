// Package telemetry wires optional OpenTelemetry export for the front desk.
// Traces, metrics and logs all travel to one OTLP collector over a single
// shared gRPC connection.
//
// Without a telemetry block in the config the global providers stay no-ops,
// so instrumented packages (sync, roomcache, api) cost nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/njoerd114/frontdesk/internal/config"
)

// DefaultServiceName is reported as service.name when none is configured.
const DefaultServiceName = "frontdesk"

// Config describes the collector and how this process identifies itself.
type Config struct {
	// OTLPEndpoint is the collector's gRPC host:port.
	OTLPEndpoint string

	// Insecure dials the collector without TLS.
	Insecure bool

	// ServiceName defaults to DefaultServiceName.
	ServiceName string

	// ServiceVersion is attached as service.version when set.
	ServiceVersion string

	// Headers travel as gRPC metadata on every export, typically an
	// Authorization bearer token.
	Headers map[string]string
}

// FromConfig converts the YAML telemetry block. It returns false when the
// block is absent, meaning telemetry stays disabled.
func FromConfig(tc *config.TelemetryConfig, version string) (Config, bool) {
	if tc == nil {
		return Config{}, false
	}
	return Config{
		OTLPEndpoint:   tc.OTLPEndpoint,
		Insecure:       tc.Insecure,
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
		Headers:        tc.Headers,
	}, true
}

// ShutdownFunc flushes pending telemetry and closes the collector
// connection. Pass a fresh context: the main one is usually cancelled by
// the time it runs.
type ShutdownFunc func(context.Context) error

// Setup installs global trace, metric and log providers exporting to
// cfg.OTLPEndpoint. The returned ShutdownFunc is never nil, so callers may
// defer it even when Setup fails.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	res, err := newResource(cfg)
	if err != nil {
		return noopShutdown, err
	}

	conn, err := dial(cfg)
	if err != nil {
		return noopShutdown, err
	}

	var p providers
	p.conn = conn
	if err := p.start(ctx, cfg.Headers, res); err != nil {
		_ = p.shutdown(ctx)
		return noopShutdown, err
	}

	otel.SetTracerProvider(p.traces)
	otel.SetMeterProvider(p.metrics)
	global.SetLoggerProvider(p.logs)
	return p.shutdown, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	// Schemaless so the SDK default resource and this semconv version never
	// disagree on schema URL.
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("building OTel resource: %w", err)
	}
	return res, nil
}

func dial(cfg Config) (*grpc.ClientConn, error) {
	creds := credentials.NewTLS(nil)
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(cfg.OTLPEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dialling OTLP collector at %q: %w", cfg.OTLPEndpoint, err)
	}
	return conn, nil
}

// providers owns everything Setup creates; fields stay nil until started.
type providers struct {
	conn    *grpc.ClientConn
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider
}

func (p *providers) start(ctx context.Context, headers map[string]string, res *resource.Resource) error {
	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithGRPCConn(p.conn),
		otlptracegrpc.WithHeaders(headers),
	)
	if err != nil {
		return fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithGRPCConn(p.conn),
		otlpmetricgrpc.WithHeaders(headers),
	)
	if err != nil {
		return fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	p.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)

	logExp, err := otlploggrpc.New(ctx,
		otlploggrpc.WithGRPCConn(p.conn),
		otlploggrpc.WithHeaders(headers),
	)
	if err != nil {
		return fmt.Errorf("creating OTLP log exporter: %w", err)
	}
	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	return nil
}

// shutdown flushes whichever providers were started, then closes the conn.
func (p *providers) shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		if err := p.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if p.metrics != nil {
		if err := p.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric provider shutdown: %w", err))
		}
	}
	if p.logs != nil {
		if err := p.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider shutdown: %w", err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing OTLP gRPC connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func noopShutdown(context.Context) error { return nil }
