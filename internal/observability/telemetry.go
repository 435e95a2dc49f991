package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/annel0/voxel-stream/internal/logging"
)

// Options задаёт параметры трассировки
type Options struct {
	Enabled     bool
	ServiceName string
	// Exporter заменяет OTLP HTTP экспортер (например, в тестах)
	Exporter sdktrace.SpanExporter
}

// ShutdownFunc завершает провайдер, выгружая оставшиеся спаны
type ShutdownFunc func(context.Context) error

// InitTelemetry настраивает экспортер и устанавливает глобальный TracerProvider.
// При Enabled == false провайдер не меняется (спаны no-op), shutdown пустой.
func InitTelemetry(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp := opts.Exporter
	if exp == nil {
		// OTLP HTTP экспортер (по умолчанию localhost:4318)
		var err error
		exp, err = otlptracehttp.New(ctx)
		if err != nil {
			return nil, err
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	logging.Info("OpenTelemetry инициализирован (service=%s)", opts.ServiceName)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}
