// Package tracer configures OpenTelemetry tracing for stockgate.
//
// New installs an SDK tracer provider as the global provider, so packages
// that call otel.Tracer pick it up without further wiring. When an OTLP
// endpoint is configured spans are batched to it over HTTP; otherwise spans
// are still created, which keeps trace IDs available for log correlation,
// but nothing is exported.
package tracer
