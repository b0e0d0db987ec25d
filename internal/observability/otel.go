package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/RishiKendai/cellguard"

// Tracer returns the service tracer. Spans are dropped unless the process
// installs an SDK provider with otel.SetTracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
