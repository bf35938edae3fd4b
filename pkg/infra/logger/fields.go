// Package logger carries structured logging fields through a context.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger/core"
)

type contextKey int

const loggerFieldsKey contextKey = iota

// fields keeps insertion order so log lines are stable.
type fields struct {
	keys   []string
	values map[string]interface{}
}

func (f *fields) clone() *fields {
	c := &fields{
		keys:   make([]string, len(f.keys)),
		values: make(map[string]interface{}, len(f.values)),
	}
	copy(c.keys, f.keys)
	for k, v := range f.values {
		c.values[k] = v
	}
	return c
}

func (f *fields) set(key string, value interface{}) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *fields) slice() []interface{} {
	if len(f.keys) == 0 {
		return nil
	}
	out := make([]interface{}, 0, len(f.keys)*2)
	for _, k := range f.keys {
		out = append(out, k, f.values[k])
	}
	return out
}

func fromContext(ctx context.Context) *fields {
	if ctx != nil {
		if f, ok := ctx.Value(loggerFieldsKey).(*fields); ok {
			return f
		}
	}
	return &fields{values: map[string]interface{}{}}
}

// WithFields adds key-value pairs to the context. A later value for the same
// key replaces the earlier one. A trailing key without a value is dropped.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}

	f := fromContext(ctx).clone()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			f.set(key, keysAndValues[i+1])
		}
	}
	return context.WithValue(ctx, loggerFieldsKey, f)
}

// Fields returns the fields stored in ctx followed by the trace and span IDs
// of a valid span context.
func Fields(ctx context.Context) []interface{} {
	out := fromContext(ctx).slice()
	if ctx == nil {
		return out
	}

	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		out = append(out, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return out
}

// From returns base with the fields of ctx attached.
func From(ctx context.Context, base core.Logger) core.Logger {
	f := Fields(ctx)
	if len(f) == 0 {
		return base
	}
	return base.With(f...)
}
