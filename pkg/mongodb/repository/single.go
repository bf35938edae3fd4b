package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

// Single is a repository bound to one key, taken from configuration rather
// than passed per call. Its contract is otherwise that of Base.
type Single struct {
	base *Base
	key  string
}

// NewSingle creates a Single bound to opts.DefaultKey, or to the only
// configured client when no default key is set.
func NewSingle(opts *options.Options, opt ...Option) (*Single, error) {
	b, err := New(opts, opt...)
	if err != nil {
		return nil, err
	}

	key, err := opts.ResolveDefaultKey()
	if err != nil {
		return nil, b.fail(context.Background(), "NewSingle", opts.DefaultKey, err)
	}
	return &Single{base: b, key: key}, nil
}

// Bind returns a Single bound to key that shares b's clients and conventions.
func (b *Base) Bind(key string) *Single {
	return &Single{base: b, key: key}
}

// Key returns the bound key.
func (s *Single) Key() string { return s.key }

// Base returns the underlying Base.
func (s *Single) Base() *Base { return s.base }

// Database resolves the bound database.
func (s *Single) Database(ctx context.Context) (*DatabaseResponse, error) {
	return s.base.Database(ctx, s.key)
}

// Collection returns an untyped handle for the collection named name.
func (s *Single) Collection(ctx context.Context, name string) (*Collection[bson.M], error) {
	return s.base.Collection(ctx, s.key, name)
}

// CollectionAsync is the asynchronous form of Collection.
func (s *Single) CollectionAsync(ctx context.Context, name string) <-chan Result[*Collection[bson.M]] {
	return s.base.CollectionAsync(ctx, s.key, name)
}

// DropCollection drops the collection named name.
func (s *Single) DropCollection(ctx context.Context, name string) (bool, error) {
	return s.base.DropCollection(ctx, s.key, name)
}

// DropCollectionAsync is the asynchronous form of DropCollection.
func (s *Single) DropCollectionAsync(ctx context.Context, name string) <-chan Result[bool] {
	return s.base.DropCollectionAsync(ctx, s.key, name)
}

// SingleCollectionFor returns the handle of T's collection.
func SingleCollectionFor[T any](ctx context.Context, s *Single) (*Collection[T], error) {
	return CollectionFor[T](ctx, s.base, s.key)
}

// SingleNamedCollection returns a handle whose documents decode into T for the collection named name.
func SingleNamedCollection[T any](ctx context.Context, s *Single, name string) (*Collection[T], error) {
	return NamedCollection[T](ctx, s.base, s.key, name)
}

// SingleDropCollectionFor drops T's collection.
func SingleDropCollectionFor[T any](ctx context.Context, s *Single) (bool, error) {
	return DropCollectionFor[T](ctx, s.base, s.key)
}

// SingleCollectionForAsync is the asynchronous form of SingleCollectionFor.
func SingleCollectionForAsync[T any](ctx context.Context, s *Single) <-chan Result[*Collection[T]] {
	return CollectionForAsync[T](ctx, s.base, s.key)
}

// SingleNamedCollectionAsync is the asynchronous form of SingleNamedCollection.
func SingleNamedCollectionAsync[T any](ctx context.Context, s *Single, name string) <-chan Result[*Collection[T]] {
	return NamedCollectionAsync[T](ctx, s.base, s.key, name)
}

// SingleDropCollectionForAsync is the asynchronous form of SingleDropCollectionFor.
func SingleDropCollectionForAsync[T any](ctx context.Context, s *Single) <-chan Result[bool] {
	return DropCollectionForAsync[T](ctx, s.base, s.key)
}
