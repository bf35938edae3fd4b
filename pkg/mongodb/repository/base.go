// Package repository hands out correctly scoped, named and mapped MongoDB
// collection handles for a tenant key.
//
// Each call resolves the key's client configuration, gets or creates the
// key's client, derives the database, resolves the collection name and
// returns a handle bound to all of them. Failures are logged with the
// operation name and returned unchanged.
package repository

import (
	"context"
	"sync"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"go.mongodb.org/mongo-driver/bson"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/docbase/pkg/component/mongodb"
	"github.com/kart-io/docbase/pkg/errors"
	"github.com/kart-io/docbase/pkg/infra/datasource"
	ctxlog "github.com/kart-io/docbase/pkg/infra/logger"
	"github.com/kart-io/docbase/pkg/infra/pool"
	"github.com/kart-io/docbase/pkg/infra/tracing"
	"github.com/kart-io/docbase/pkg/mongodb/convention"
	"github.com/kart-io/docbase/pkg/mongodb/naming"
	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

// ConnectionInitializer adjusts the connection configuration before a key is
// resolved. It must return a configuration; returning its argument is fine.
type ConnectionInitializer func(*options.Options) *options.Options

// ClientInitializer customizes the driver options of a client before it is
// built. It runs once per key.
type ClientInitializer func(cfg *options.ClientOptions, o *mongoopts.ClientOptions)

// Base resolves collections for any configured key.
type Base struct {
	opts        *options.Options
	clients     *datasource.Manager
	conventions *convention.Registry
	pool        *pool.Pool
	log         core.Logger

	initConnection ConnectionInitializer
	initClient     ClientInitializer
}

// Option configures a Base.
type Option func(*Base)

// WithManager sets the client cache. Defaults to datasource.GetGlobal().
func WithManager(m *datasource.Manager) Option {
	return func(b *Base) { b.clients = m }
}

// WithConventions sets the convention registry used to map documents.
// Defaults to convention.Default() with the canonical pack registered.
func WithConventions(r *convention.Registry) Option {
	return func(b *Base) { b.conventions = r }
}

// WithPool sets the pool that runs asynchronous calls.
func WithPool(p *pool.Pool) Option {
	return func(b *Base) { b.pool = p }
}

// WithLogger sets the logger. Defaults to logger.Global().
func WithLogger(l core.Logger) Option {
	return func(b *Base) { b.log = l }
}

// WithConnectionInitializer sets the hook run on the configuration before each resolution.
func WithConnectionInitializer(fn ConnectionInitializer) Option {
	return func(b *Base) { b.initConnection = fn }
}

// WithClientInitializer sets the hook run on driver options before a client is built.
func WithClientInitializer(fn ClientInitializer) Option {
	return func(b *Base) { b.initClient = fn }
}

var (
	asyncPoolOnce sync.Once
	asyncPool     *pool.Pool
	asyncPoolErr  error
)

func defaultPool() (*pool.Pool, error) {
	asyncPoolOnce.Do(func() {
		asyncPool, asyncPoolErr = pool.NewPool("repository-async", pool.AsyncPool, nil)
	})
	return asyncPool, asyncPoolErr
}

// New creates a Base over opts.
func New(opts *options.Options, opt ...Option) (*Base, error) {
	if opts == nil {
		return nil, errors.ErrInvalidConnectionConfiguration.WithMessage("connection configuration is nil")
	}

	b := &Base{opts: opts}
	for _, o := range opt {
		o(b)
	}

	if b.log == nil {
		b.log = logger.Global()
	}
	if b.clients == nil {
		b.clients = datasource.GetGlobal()
	}
	if b.conventions == nil {
		b.conventions = convention.Default()
		convention.RegisterDefaults(b.conventions)
	}
	if b.pool == nil {
		p, err := defaultPool()
		if err != nil {
			return nil, err
		}
		b.pool = p
	}
	return b, nil
}

// Conventions returns the convention registry documents are mapped with.
func (b *Base) Conventions() *convention.Registry {
	return b.conventions
}

// UpsertOptions returns replace options that insert the document when no
// document matches the filter.
func (b *Base) UpsertOptions() *mongoopts.ReplaceOptions {
	return mongoopts.Replace().SetUpsert(true)
}

// Database resolves the database for key, creating the key's client on first use.
func (b *Base) Database(ctx context.Context, key string) (resp *DatabaseResponse, err error) {
	const op = "Database"

	ctx, span := tracing.Start(ctx, op, tracing.ClientKey.String(key))
	defer func() { tracing.End(span, err) }()

	opts := b.opts
	if b.initConnection != nil {
		opts = b.initConnection(opts)
	}

	cfg, err := opts.ResolveClient(key)
	if err != nil {
		return nil, b.fail(ctx, op, key, err)
	}
	span.SetAttributes(tracing.DatabaseKey.String(cfg.Database))

	client, err := b.clients.Client(ctx, cfg, b.hooks(cfg)...)
	if err != nil {
		return nil, b.fail(ctx, op, key, err)
	}

	return &DatabaseResponse{
		Client:   client,
		Config:   cfg,
		Database: client.DatabaseByName(cfg.Database),
	}, nil
}

func (b *Base) hooks(cfg *options.ClientOptions) []mongodb.Hook {
	codecs := b.conventions.Codecs()
	hooks := []mongodb.Hook{func(o *mongoopts.ClientOptions) { o.SetRegistry(codecs) }}
	if b.initClient != nil {
		hooks = append(hooks, func(o *mongoopts.ClientOptions) { b.initClient(cfg, o) })
	}
	return hooks
}

// Collection returns an untyped handle for the collection named name.
func (b *Base) Collection(ctx context.Context, key, name string) (*Collection[bson.M], error) {
	return NamedCollection[bson.M](ctx, b, key, name)
}

// CollectionAsync is the asynchronous form of Collection.
func (b *Base) CollectionAsync(ctx context.Context, key, name string) <-chan Result[*Collection[bson.M]] {
	return NamedCollectionAsync[bson.M](ctx, b, key, name)
}

// DropCollection drops the collection named name. It reports true once the
// server has dropped it; a server error is returned unchanged.
func (b *Base) DropCollection(ctx context.Context, key, name string) (bool, error) {
	return drop(ctx, b, "DropCollection", key, name)
}

// DropCollectionAsync is the asynchronous form of DropCollection.
func (b *Base) DropCollectionAsync(ctx context.Context, key, name string) <-chan Result[bool] {
	return pool.Go(ctx, b.pool, func(ctx context.Context) (bool, error) {
		return b.DropCollection(ctx, key, name)
	})
}

func (b *Base) fail(ctx context.Context, op, key string, err error) error {
	ctxlog.From(ctx, b.log).Errorw("Repository operation failed", "operation", op, "key", key, "error", err)
	return err
}

// CollectionFor returns the handle of T's collection for key.
func CollectionFor[T any](ctx context.Context, b *Base, key string) (*Collection[T], error) {
	return NamedCollection[T](ctx, b, key, naming.KeyOf[T]())
}

// NamedCollection returns a handle whose documents decode into T for the
// collection named name. name is looked up in the client's overrides first.
func NamedCollection[T any](ctx context.Context, b *Base, key, name string) (*Collection[T], error) {
	const op = "Collection"

	if name == "" {
		return nil, b.fail(ctx, op, key, errors.ErrMissingParam.WithMessage("collection name is required"))
	}

	db, err := b.Database(ctx, key)
	if err != nil {
		return nil, err
	}

	coll := db.Database.Collection(
		naming.Resolve(db.Config, name),
		mongoopts.Collection().SetRegistry(b.conventions.Codecs()),
	)
	return &Collection[T]{DatabaseResponse: *db, Collection: coll}, nil
}

// DropCollectionFor drops T's collection for key.
func DropCollectionFor[T any](ctx context.Context, b *Base, key string) (bool, error) {
	return drop(ctx, b, "DropCollectionFor", key, naming.KeyOf[T]())
}

func drop(ctx context.Context, b *Base, op, key, name string) (ok bool, err error) {
	ctx, span := tracing.Start(ctx, op, tracing.ClientKey.String(key))
	defer func() { tracing.End(span, err) }()

	coll, err := NamedCollection[bson.M](ctx, b, key, name)
	if err != nil {
		return false, err
	}
	span.SetAttributes(
		tracing.DatabaseKey.String(coll.Database.Name()),
		tracing.CollectionKey.String(coll.Name()),
	)

	if err = coll.Collection.Drop(ctx); err != nil {
		return false, b.fail(ctx, op, key, err)
	}

	ctxlog.From(ctx, b.log).Infow("Collection dropped", "key", key, "collection", coll.Name(), "database", coll.Database.Name())
	return true, nil
}

// CollectionForAsync is the asynchronous form of CollectionFor.
func CollectionForAsync[T any](ctx context.Context, b *Base, key string) <-chan Result[*Collection[T]] {
	return pool.Go(ctx, b.pool, func(ctx context.Context) (*Collection[T], error) {
		return CollectionFor[T](ctx, b, key)
	})
}

// NamedCollectionAsync is the asynchronous form of NamedCollection.
func NamedCollectionAsync[T any](ctx context.Context, b *Base, key, name string) <-chan Result[*Collection[T]] {
	return pool.Go(ctx, b.pool, func(ctx context.Context) (*Collection[T], error) {
		return NamedCollection[T](ctx, b, key, name)
	})
}

// DropCollectionForAsync is the asynchronous form of DropCollectionFor.
func DropCollectionForAsync[T any](ctx context.Context, b *Base, key string) <-chan Result[bool] {
	return pool.Go(ctx, b.pool, func(ctx context.Context) (bool, error) {
		return DropCollectionFor[T](ctx, b, key)
	})
}
