package logger

import (
	"context"
	"testing"

	"github.com/kart-io/logger/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestWithFieldsKeepsOrderAndReplaces(t *testing.T) {
	ctx := WithFields(context.Background(), "client", "primary", "collection", "orderline")
	ctx = WithFields(ctx, "client", "archive")

	assert.Equal(t, []interface{}{"client", "archive", "collection", "orderline"}, Fields(ctx))
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	parent := WithFields(context.Background(), "client", "primary")
	_ = WithFields(parent, "database", "orders")

	assert.Equal(t, []interface{}{"client", "primary"}, Fields(parent))
}

func TestWithFieldsIgnoresIncompletePairs(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithFields(ctx, "lonely"))

	ctx = WithFields(ctx, "a", 1, "b")
	assert.Equal(t, []interface{}{"a", 1}, Fields(ctx))

	ctx = WithFields(ctx, 42, "not-a-key")
	assert.Equal(t, []interface{}{"a", 1}, Fields(ctx))
}

func TestFieldsIncludeSpanContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithFields(ctx, "client", "primary")

	assert.Equal(t, []interface{}{
		"client", "primary",
		"trace_id", "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id", "00f067aa0ba902b7",
	}, Fields(ctx))
}

func TestFromWithoutFieldsReturnsBase(t *testing.T) {
	base := core.NewNoOpLogger(nil)
	assert.Same(t, base, From(context.Background(), base))
	assert.NotNil(t, From(WithFields(context.Background(), "k", "v"), base))
}
