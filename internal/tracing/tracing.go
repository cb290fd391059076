// Package tracing sets up OpenTelemetry trace export over OTLP/gRPC.
package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/moolen/mergetrace/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "mergetrace"
	serviceVersion = "0.1.0"
)

// Provider wraps the SDK tracer provider and implements lifecycle.Component
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	logger         *logging.Logger
	enabled        bool
}

// Config holds tracing configuration
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP gRPC endpoint, e.g. "collector:4317"
	TLSCAPath   string // CA certificate for TLS verification (optional)
	TLSInsecure bool   // TLS without certificate verification
}

// New creates the provider. A disabled configuration yields a provider whose
// tracers come from the global (no-op by default) provider.
func New(cfg Config) (*Provider, error) {
	logger := logging.GetLogger("tracing")

	if !cfg.Enabled {
		logger.Debug("Tracing disabled")
		return &Provider{logger: logger}, nil
	}

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	otlpOptions, err := exporterOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx, otlpOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	p, err := newWithExporter(ctx, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.tracerProvider)

	logger.Info("Tracing initialized with endpoint: %s", cfg.Endpoint)
	return p, nil
}

func exporterOptions(cfg Config, logger *logging.Logger) ([]otlptracegrpc.Option, error) {
	var dialOptions []grpc.DialOption
	var otlpOptions []otlptracegrpc.Option

	switch {
	case cfg.TLSInsecure:
		creds := credentials.NewTLS(&tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		})
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(creds))
		logger.Warn("TLS enabled for tracing with certificate verification disabled")
	case cfg.TLSCAPath != "":
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate to pool")
		}
		creds := credentials.NewTLS(&tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		})
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(creds))
		logger.Info("TLS enabled for tracing with CA from: %s", cfg.TLSCAPath)
	default:
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
		otlpOptions = append(otlpOptions, otlptracegrpc.WithInsecure())
		logger.Debug("TLS disabled for tracing")
	}

	return append(otlpOptions,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dialOptions...),
	), nil
}

// newWithExporter builds an enabled provider around an export pipeline.
func newWithExporter(ctx context.Context, pipeline sdktrace.TracerProviderOption) (*Provider, error) {
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		pipeline,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return &Provider{
		tracerProvider: tp,
		logger:         logging.GetLogger("tracing"),
		enabled:        true,
	}, nil
}

// Start implements lifecycle.Component
func (p *Provider) Start(ctx context.Context) error {
	return nil
}

// Stop flushes pending spans and shuts the exporter down.
func (p *Provider) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}

	p.logger.Debug("Shutting down tracing provider")
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		p.logger.Error("Error shutting down tracer provider: %v", err)
		return err
	}
	return nil
}

// Name implements lifecycle.Component
func (p *Provider) Name() string {
	return "Tracing Provider"
}

// Tracer returns a tracer for instrumenting code
func (p *Provider) Tracer(name string) trace.Tracer {
	if !p.enabled {
		return otel.GetTracerProvider().Tracer(name)
	}
	return p.tracerProvider.Tracer(name)
}

// IsEnabled returns whether tracing is enabled
func (p *Provider) IsEnabled() bool {
	return p.enabled
}
