// Package rivertrace exposes the OpenTelemetry tracer the channel core uses
// to span process_invocation/open_session/handshake calls.
//
// Unlike this corpus's internal/telemetry package, which owns the OTLP
// exporter's entire lifecycle (Init/shutdown, sampler, resource
// attributes), this module does not start a tracer provider: a library
// embedded in someone else's process must not install global telemetry
// behind the caller's back. It only asks otel.Tracer for a handle, which is
// a documented no-op until the embedding application installs a global
// TracerProvider — the same fallback the corpus uses before its own Init
// runs, just permanent here rather than transitional.
package rivertrace

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/riverproto/channel"

// Tracer returns the package tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Attribute keys for process_invocation/open_session/handshake spans,
// following this corpus's fs.*/rpc.* attribute-key convention.
const (
	AttrInvocationID = "river.invocation_id"
	AttrMethod       = "river.method"
	AttrOutcome      = "river.outcome"
)

// Outcome labels recorded on a span once a call resolves.
const (
	OutcomeOK                   = "ok"
	OutcomeApplicationException = "application_exception"
	OutcomeProtocolError        = "protocol_error"
	OutcomeClosed               = "closed"
)

// InvocationID returns an attribute for the invocation id allocated to a
// process_invocation or open_session call.
func InvocationID(id uint16) attribute.KeyValue {
	return attribute.Int64(AttrInvocationID, int64(id))
}

// Method returns an attribute for the method locator or name a
// process_invocation call targets.
func Method(name string) attribute.KeyValue {
	return attribute.String(AttrMethod, name)
}

// Outcome returns an attribute for the terminal outcome of a span.
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}
