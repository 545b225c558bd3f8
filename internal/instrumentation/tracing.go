package instrumentation

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the crmgate module.
const TracerName = "github.com/teemow/crmgate"

// Span attribute keys for operations.
const (
	// SpanAttrOperation is the registered operation name.
	SpanAttrOperation = "crm.operation"

	// SpanAttrCorrelationID is the telemetry correlation id.
	SpanAttrCorrelationID = "crm.correlation_id"

	// SpanAttrHandlerKind is the handler calling convention (none, object, named).
	SpanAttrHandlerKind = "crm.handler_kind"

	// SpanAttrRequestID is the caller-supplied envelope id.
	SpanAttrRequestID = "rpc.request_id"

	// SpanAttrEndpoint is the normalized CRM API endpoint.
	SpanAttrEndpoint = "crm.endpoint"

	// SpanAttrHTTPMethod is the outbound HTTP method.
	SpanAttrHTTPMethod = "http.request.method"

	// SpanAttrReadOnly indicates if the operation is read-only.
	SpanAttrReadOnly = "crm.read_only"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 6),
	}
}

// WithOperation adds the operation name attribute.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithCorrelationID adds the correlation id attribute.
func (b *SpanAttributeBuilder) WithCorrelationID(id string) *SpanAttributeBuilder {
	if id != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrCorrelationID, id))
	}
	return b
}

// WithKind adds the handler kind attribute.
func (b *SpanAttributeBuilder) WithKind(kind string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrHandlerKind, kind))
	return b
}

// WithRequestID adds the envelope id attribute.
func (b *SpanAttributeBuilder) WithRequestID(id string) *SpanAttributeBuilder {
	if id != "" && id != "null" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrRequestID, id))
	}
	return b
}

// WithReadOnly adds the read-only indicator attribute.
func (b *SpanAttributeBuilder) WithReadOnly(readOnly bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrReadOnly, readOnly))
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartOperationSpan starts a server span named "operation.<name>".
func StartOperationSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrOperation, operation))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "operation."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartCRMAPISpan starts a client span for an outbound CRM call, named
// "piperun.<method> <endpoint>" with the endpoint normalized.
func StartCRMAPISpan(ctx context.Context, method, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	endpoint := NormalizeEndpoint(path)
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrHTTPMethod, method),
		attribute.String(SpanAttrEndpoint, endpoint),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "piperun."+strings.ToLower(method)+" "+endpoint,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the current span in context.
// Returns empty string if no valid span is present.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
