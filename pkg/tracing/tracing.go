package tracing

import (
	"context"

	"procurement-service/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Init installs a stdout trace exporter when tracing is enabled. The returned
// shutdown func is always safe to call.
func Init(cfg *config.Config, log *zap.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Tracing.Enabled {
		log.Info("Tracing disabled")
		return noop, nil
	}

	exporter, err := stdouttrace.New()
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Server.Env),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info("Tracing enabled", zap.String("exporter", "stdout"))

	return tp.Shutdown, nil
}
