package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name repository spans are recorded under.
const TracerName = "github.com/kart-io/docbase/pkg/mongodb/repository"

// Attribute keys set on repository spans.
const (
	ClientKey       = attribute.Key("docbase.client")
	DatabaseKey     = attribute.Key("db.name")
	CollectionKey   = attribute.Key("db.mongodb.collection")
	OperationKey    = attribute.Key("db.operation")
	dbSystemKey     = attribute.Key("db.system")
	dbSystemMongoDB = "mongodb"
)

// Start starts a client span named "docbase.<op>" on the global tracer provider.
func Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	attrs = append(attrs, dbSystemKey.String(dbSystemMongoDB), OperationKey.String(op))
	return otel.Tracer(TracerName).Start(ctx, "docbase."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
