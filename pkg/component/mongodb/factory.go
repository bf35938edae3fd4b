package mongodb

import (
	"context"

	"github.com/kart-io/docbase/pkg/component/storage"
	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

var _ storage.Factory = (*Factory)(nil)

// Factory creates MongoDB clients from one client configuration.
type Factory struct {
	cfg   *options.ClientOptions
	hooks []Hook
}

// NewFactory creates a factory for cfg. Hooks are applied to every client it creates.
func NewFactory(cfg *options.ClientOptions, hooks ...Hook) *Factory {
	return &Factory{cfg: cfg, hooks: hooks}
}

// Create implements storage.Factory.
func (f *Factory) Create(ctx context.Context) (storage.Client, error) {
	return f.CreateClient(ctx)
}

// CreateClient creates a typed MongoDB client.
func (f *Factory) CreateClient(ctx context.Context) (*Client, error) {
	return NewWithContext(ctx, f.cfg, f.hooks...)
}
