// Package adapter contains implementations of interfaces defined in app:
// the Redis login limiter and the Secrets Manager signing-secret source.
package adapter

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("bff/adapter")
