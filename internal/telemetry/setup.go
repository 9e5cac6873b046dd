// Package telemetry configures OpenTelemetry tracing for playtime checks.
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/Nlkomaru/vrc-playtime/internal/logger"
)

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// InitTracer installs a global tracer provider that writes spans as JSON to w.
// When tracing is disabled the global no-op provider is left in place.
func InitTracer(enabled bool, serviceName, version string, w io.Writer, log *logger.Logger) ShutdownFunc {
	if !enabled {
		return noop
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		log.Error("telemetry exporter init failed", nil, err)
		return noop
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		)),
	)

	otel.SetTracerProvider(provider)
	log.Debug("Tracing enabled", logger.Fields{"service": serviceName})

	return provider.Shutdown
}
