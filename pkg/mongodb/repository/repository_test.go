package repository

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kart-io/logger/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kart-io/docbase/pkg/errors"
	"github.com/kart-io/docbase/pkg/infra/config"
	"github.com/kart-io/docbase/pkg/infra/datasource"
	"github.com/kart-io/docbase/pkg/infra/pool"
	"github.com/kart-io/docbase/pkg/infra/tracing"
	"github.com/kart-io/docbase/pkg/mongodb/convention"
	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

type OrderLine struct {
	UserName string
}

type Customer struct{}

func (Customer) CollectionName() string { return "Clients" }

func newOptions() *options.Options {
	primary := options.NewClientOptions("primary")
	primary.ConnectionString = "mongodb://localhost:27017"
	primary.Database = "orders"

	archive := options.NewClientOptions("archive")
	archive.ConnectionString = "mongodb://localhost:27017"
	archive.Database = "orders_archive"
	archive.Collections = []*options.CollectionOptions{
		{Key: "orderline", Name: "order_lines"},
		{Key: "clients", Name: "crm_clients"},
	}

	offline := options.NewClientOptions("offline")
	offline.ConnectionString = "mongodb://127.0.0.1:1"
	offline.Database = "orders"
	offline.ServerSelectionTimeout = 50 * time.Millisecond

	noURI := options.NewClientOptions("no-uri")
	noURI.Database = "orders"

	return &options.Options{
		Clients:    []*options.ClientOptions{primary, archive, offline, noURI},
		DefaultKey: "primary",
	}
}

func newTestBase(t *testing.T, opts *options.Options, extra ...Option) (*Base, *datasource.Manager) {
	t.Helper()

	log := core.NewNoOpLogger(nil)
	mgr := datasource.NewManager(datasource.WithLogger(log), datasource.WithRegisterer(nil))
	t.Cleanup(func() { _ = mgr.CloseAll() })

	p, err := pool.NewPool("test-async", pool.AsyncPool, nil)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	reg := convention.NewRegistry()
	convention.RegisterDefaults(reg)

	base := []Option{WithLogger(log), WithManager(mgr), WithPool(p), WithConventions(reg)}
	b, err := New(opts, append(base, extra...)...)
	require.NoError(t, err)
	return b, mgr
}

func TestNewRejectsNilOptions(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConnectionConfiguration)
}

func TestCollectionForScenario(t *testing.T) {
	b, _ := newTestBase(t, newOptions())

	coll, err := CollectionFor[OrderLine](context.Background(), b, "primary")
	require.NoError(t, err)

	assert.Equal(t, "orderline", coll.Name())
	assert.Equal(t, "orders", coll.Collection.Database().Name())
	assert.Equal(t, "orders", coll.Database.Name())
	assert.Equal(t, "primary", coll.Config.Key)
	assert.Equal(t, "primary", coll.Client.Name())
}

func TestCollectionOverrides(t *testing.T) {
	b, _ := newTestBase(t, newOptions())
	ctx := context.Background()

	coll, err := CollectionFor[OrderLine](ctx, b, "ARCHIVE")
	require.NoError(t, err)
	assert.Equal(t, "order_lines", coll.Name())
	assert.Equal(t, "orders_archive", coll.Database.Name())

	customers, err := CollectionFor[Customer](ctx, b, "archive")
	require.NoError(t, err)
	assert.Equal(t, "crm_clients", customers.Name())

	customers, err = CollectionFor[Customer](ctx, b, "primary")
	require.NoError(t, err)
	assert.Equal(t, "clients", customers.Name())

	raw, err := b.Collection(ctx, "archive", "Events")
	require.NoError(t, err)
	assert.Equal(t, "Events", raw.Name())

	named, err := NamedCollection[OrderLine](ctx, b, "archive", "OrderLine")
	require.NoError(t, err)
	assert.Equal(t, "order_lines", named.Name())
}

func TestConfigurationErrors(t *testing.T) {
	b, mgr := newTestBase(t, newOptions())
	ctx := context.Background()

	_, err := CollectionFor[OrderLine](ctx, b, "missing")
	assert.ErrorIs(t, err, errors.ErrInvalidClientConfiguration)

	_, err = b.Database(ctx, "no-uri")
	assert.ErrorIs(t, err, errors.ErrInvalidConnectionString)

	_, err = b.Collection(ctx, "primary", "")
	assert.ErrorIs(t, err, errors.ErrMissingParam)

	_, err = b.DropCollection(ctx, "missing", "orderline")
	assert.ErrorIs(t, err, errors.ErrInvalidClientConfiguration)

	assert.Zero(t, mgr.Len())
}

func TestClientIsSharedAcrossCalls(t *testing.T) {
	var built atomic.Int64
	b, mgr := newTestBase(t, newOptions(), WithClientInitializer(func(cfg *options.ClientOptions, o *mongoopts.ClientOptions) {
		built.Add(1)
		o.SetAppName("docbase-" + cfg.Key)
	}))
	ctx := context.Background()

	first, err := b.Database(ctx, "primary")
	require.NoError(t, err)
	second, err := b.Database(ctx, "PRIMARY")
	require.NoError(t, err)

	assert.Same(t, first.Client, second.Client)
	assert.EqualValues(t, 1, built.Load())
	assert.Equal(t, 1, mgr.Len())
}

func TestClientUsesConventionCodecs(t *testing.T) {
	var registry interface{}
	b, _ := newTestBase(t, newOptions(), WithClientInitializer(func(_ *options.ClientOptions, o *mongoopts.ClientOptions) {
		registry = o.Registry
	}))

	_, err := b.Database(context.Background(), "primary")
	require.NoError(t, err)
	assert.Same(t, b.Conventions().Codecs(), registry)
}

func TestConnectionInitializer(t *testing.T) {
	var calls atomic.Int64
	b, _ := newTestBase(t, newOptions(), WithConnectionInitializer(func(o *options.Options) *options.Options {
		calls.Add(1)
		tenant := options.NewClientOptions("tenant-b")
		tenant.ConnectionString = "mongodb://localhost:27017"
		tenant.Database = "tenant_b"
		return &options.Options{Clients: append([]*options.ClientOptions{tenant}, o.Clients...)}
	}))

	db, err := b.Database(context.Background(), "tenant-b")
	require.NoError(t, err)
	assert.Equal(t, "tenant_b", db.Database.Name())
	assert.EqualValues(t, 1, calls.Load())

	nilConfig, _ := newTestBase(t, newOptions(), WithConnectionInitializer(func(*options.Options) *options.Options { return nil }))
	_, err = nilConfig.Database(context.Background(), "primary")
	assert.ErrorIs(t, err, errors.ErrInvalidConnectionConfiguration)
}

func TestAsyncMatchesSync(t *testing.T) {
	b, _ := newTestBase(t, newOptions())
	ctx := context.Background()

	sync, err := CollectionFor[OrderLine](ctx, b, "archive")
	require.NoError(t, err)

	res := <-CollectionForAsync[OrderLine](ctx, b, "archive")
	require.NoError(t, res.Err)
	assert.Equal(t, sync.Name(), res.Value.Name())
	assert.Equal(t, sync.Database.Name(), res.Value.Database.Name())
	assert.Same(t, sync.Client, res.Value.Client)

	named := <-NamedCollectionAsync[OrderLine](ctx, b, "archive", "orderline")
	require.NoError(t, named.Err)
	assert.Equal(t, "order_lines", named.Value.Name())

	raw := <-b.CollectionAsync(ctx, "primary", "events")
	require.NoError(t, raw.Err)
	assert.Equal(t, "events", raw.Value.Name())

	failed := <-CollectionForAsync[OrderLine](ctx, b, "missing")
	assert.ErrorIs(t, failed.Err, errors.ErrInvalidClientConfiguration)
}

func TestDropErrorsPassThrough(t *testing.T) {
	b, _ := newTestBase(t, newOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := b.DropCollection(ctx, "offline", "orderline")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, -1, errors.GetCode(err), "driver errors are returned unchanged")

	ok, err = DropCollectionFor[OrderLine](ctx, b, "offline")
	assert.Error(t, err)
	assert.False(t, ok)

	res := <-b.DropCollectionAsync(ctx, "offline", "orderline")
	assert.Error(t, res.Err)
	assert.False(t, res.Value)

	res = <-DropCollectionForAsync[OrderLine](ctx, b, "missing")
	assert.ErrorIs(t, res.Err, errors.ErrInvalidClientConfiguration)
}

func TestUpsertOptions(t *testing.T) {
	b, _ := newTestBase(t, newOptions())

	opts := b.UpsertOptions()
	require.NotNil(t, opts.Upsert)
	assert.True(t, *opts.Upsert)
}

func TestSingle(t *testing.T) {
	opts := newOptions()
	b, _ := newTestBase(t, opts)

	s := b.Bind(opts.DefaultKey)
	assert.Equal(t, "primary", s.Key())
	assert.Same(t, b, s.Base())
	ctx := context.Background()

	coll, err := SingleCollectionFor[OrderLine](ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "orderline", coll.Name())
	assert.Equal(t, "orders", coll.Database.Name())

	viaBase, err := CollectionFor[OrderLine](ctx, b, "primary")
	require.NoError(t, err)
	assert.Equal(t, viaBase.Name(), coll.Name())
	assert.Same(t, viaBase.Client, coll.Client)

	db, err := s.Database(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders", db.Database.Name())

	raw, err := s.Collection(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, "events", raw.Name())

	named, err := SingleNamedCollection[bson.M](ctx, s, "orderline")
	require.NoError(t, err)
	assert.Equal(t, "orderline", named.Name())

	res := <-SingleCollectionForAsync[OrderLine](ctx, s)
	require.NoError(t, res.Err)
	assert.Equal(t, "orderline", res.Value.Name())

	namedAsync := <-SingleNamedCollectionAsync[OrderLine](ctx, s, "audit")
	require.NoError(t, namedAsync.Err)
	assert.Equal(t, "audit", namedAsync.Value.Name())

	rawAsync := <-s.CollectionAsync(ctx, "events")
	require.NoError(t, rawAsync.Err)
	assert.Equal(t, "events", rawAsync.Value.Name())
}

func TestSingleDropErrors(t *testing.T) {
	b, _ := newTestBase(t, newOptions())
	s := b.Bind("offline")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := s.DropCollection(ctx, "orderline")
	assert.Error(t, err)
	assert.False(t, ok)

	ok, err = SingleDropCollectionFor[OrderLine](ctx, s)
	assert.Error(t, err)
	assert.False(t, ok)

	res := <-s.DropCollectionAsync(ctx, "orderline")
	assert.Error(t, res.Err)

	res = <-SingleDropCollectionForAsync[OrderLine](ctx, b.Bind("missing"))
	assert.ErrorIs(t, res.Err, errors.ErrInvalidClientConfiguration)
}

func TestNewSingle(t *testing.T) {
	log := core.NewNoOpLogger(nil)
	mgr := datasource.NewManager(datasource.WithLogger(log), datasource.WithRegisterer(nil))
	t.Cleanup(func() { _ = mgr.CloseAll() })

	s, err := NewSingle(newOptions(), WithLogger(log), WithManager(mgr))
	require.NoError(t, err)
	assert.Equal(t, "primary", s.Key())

	only := options.NewClientOptions("solo")
	only.ConnectionString = "mongodb://localhost:27017"
	only.Database = "solo"
	s, err = NewSingle(&options.Options{Clients: []*options.ClientOptions{only}}, WithLogger(log), WithManager(mgr))
	require.NoError(t, err)
	assert.Equal(t, "solo", s.Key())

	ambiguous := newOptions()
	ambiguous.DefaultKey = ""
	_, err = NewSingle(ambiguous, WithLogger(log), WithManager(mgr))
	assert.ErrorIs(t, err, errors.ErrInvalidConnectionConfiguration)
}

func TestDocumentsRoundTripThroughConventions(t *testing.T) {
	b, _ := newTestBase(t, newOptions())

	data, err := b.Conventions().Marshal(OrderLine{UserName: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada", bson.Raw(data).Lookup("userName").StringValue())

	cm, err := b.Conventions().ClassMap(reflect.TypeOf(OrderLine{}))
	require.NoError(t, err)
	assert.True(t, cm.IgnoreExtraElements())
}

func TestReloadedConfigurationAppliesToNextCall(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
mongodb:
  clients:
    - key: primary
      connection-string: mongodb://localhost:27017
      database: orders
`)))
	store, err := config.NewStore(v, "mongodb")
	require.NoError(t, err)

	b, _ := newTestBase(t, store.Current(), WithConnectionInitializer(store.Initialize))
	ctx := context.Background()

	coll, err := CollectionFor[OrderLine](ctx, b, "primary")
	require.NoError(t, err)
	assert.Equal(t, "orderline", coll.Name())

	require.NoError(t, v.ReadConfig(strings.NewReader(`
mongodb:
  clients:
    - key: primary
      connection-string: mongodb://localhost:27017
      database: orders
      collections:
        - key: orderline
          name: order_lines
`)))
	require.NoError(t, store.Reload(v))

	reloaded, err := CollectionFor[OrderLine](ctx, b, "primary")
	require.NoError(t, err)
	assert.Equal(t, "order_lines", reloaded.Name())
	assert.Same(t, coll.Client, reloaded.Client)
}

func TestOperationsAreTraced(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	b, _ := newTestBase(t, newOptions())
	ctx := context.Background()

	_, err := b.Database(ctx, "primary")
	require.NoError(t, err)
	_, err = b.Database(ctx, "missing")
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "docbase.Database", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, tracing.DatabaseKey.String("orders"))
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Contains(t, spans[1].Attributes, tracing.ClientKey.String("missing"))
}
