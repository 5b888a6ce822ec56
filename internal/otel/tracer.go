// Package otel exports run traces to an OTLP collector. A run produces a
// root span and one child span per stage instance.
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/weft-org/weft/internal/cmdutil"
	"github.com/weft-org/weft/internal/core"
)

// TracerName is the instrumentation scope name.
const TracerName = "github.com/weft-org/weft"

// Tracer wraps an OpenTelemetry tracer configured from a pipeline. When
// the pipeline has no otel block the tracer is a no-op.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   *core.OTelConfig
}

// NewTracer creates a tracer for one run of the pipeline.
func NewTracer(ctx context.Context, p *core.Pipeline) (*Tracer, error) {
	if p.OTel == nil || !p.OTel.Enabled {
		return &Tracer{tracer: otel.Tracer(TracerName)}, nil
	}

	cfg, err := evalConfig(*p.OTel)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate otel config: %w", err)
	}

	exporter, err := createExporter(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create otel exporter: %w", err)
	}

	res, err := createResource(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   otel.Tracer(TracerName),
		provider: provider,
		config:   p.OTel,
	}, nil
}

// evalConfig expands environment references in the endpoint and header
// values, e.g. Authorization: "Bearer ${OTEL_TOKEN}".
func evalConfig(cfg core.OTelConfig) (core.OTelConfig, error) {
	endpoint, err := cmdutil.EvalString(cfg.Endpoint)
	if err != nil {
		return cfg, err
	}
	cfg.Endpoint = endpoint

	if len(cfg.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			evaled, err := cmdutil.EvalString(v)
			if err != nil {
				return cfg, err
			}
			headers[k] = evaled
		}
		cfg.Headers = headers
	}
	return cfg, nil
}

// createExporter picks the OTLP transport from the endpoint: paths ending
// in /v1/traces use HTTP, everything else gRPC.
func createExporter(ctx context.Context, cfg *core.OTelConfig) (sdktrace.SpanExporter, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		return nil, fmt.Errorf("otel endpoint is required")
	}

	const httpPath = "/v1/traces"
	if len(endpoint) > len(httpPath) && endpoint[len(endpoint)-len(httpPath):] == httpPath {
		return createHTTPExporter(ctx, cfg)
	}
	return createGRPCExporter(ctx, cfg)
}

func createHTTPExporter(ctx context.Context, cfg *core.OTelConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		}))
	}
	return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
}

func createGRPCExporter(ctx context.Context, cfg *core.OTelConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithHeaders(cfg.Headers),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	} else {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		}))))
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

// createResource builds the resource attributes. String values in the
// configured resource map may reference ${PIPELINE_NAME} or real
// environment variables.
func createResource(p *core.Pipeline) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName("weft"),
	}

	if p.OTel != nil && p.OTel.Resource != nil {
		vars := map[string]string{
			"PIPELINE_NAME": p.Name,
		}
		for key, val := range p.OTel.Resource {
			switch v := val.(type) {
			case string:
				expanded := os.Expand(v, func(name string) string {
					if val, ok := vars[name]; ok {
						return val
					}
					return os.Getenv(name)
				})
				attrs = append(attrs, attribute.String(key, expanded))
			case int:
				attrs = append(attrs, attribute.Int(key, v))
			case int64:
				attrs = append(attrs, attribute.Int64(key, v))
			case float64:
				attrs = append(attrs, attribute.Float64(key, v))
			case bool:
				attrs = append(attrs, attribute.Bool(key, v))
			}
		}
	}

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...), nil
}

// Start starts a span. Safe on a no-op tracer.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// IsEnabled reports whether spans are exported.
func (t *Tracer) IsEnabled() bool {
	return t.config != nil && t.config.Enabled
}
