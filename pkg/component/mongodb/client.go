// Package mongodb wraps the MongoDB driver client behind the storage.Client
// contract. A Client is built from one configured ClientOptions entry and
// is meant to be owned by the client cache for the lifetime of the process.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/docbase/pkg/component/storage"
	"github.com/kart-io/docbase/pkg/errors"
	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

var _ storage.Client = (*Client)(nil)

// closeTimeout bounds Disconnect in Close.
const closeTimeout = 10 * time.Second

// Hook customizes driver options before the client connects.
// Hooks run in order after the configured pool and timeout settings.
type Hook func(*mongoopts.ClientOptions)

// Client wraps mongo.Client with the storage.Client interface.
//
// Example usage:
//
//	cfg := options.NewClientOptions("primary")
//	cfg.ConnectionString = "mongodb://localhost:27017"
//	cfg.Database = "orders"
//
//	client, err := mongodb.New(cfg)
//	if err != nil {
//	    log.Fatalf("failed to create MongoDB client: %v", err)
//	}
//	defer client.Close()
//
//	coll := client.Database().Collection("orderline")
type Client struct {
	client *mongo.Client
	cfg    *options.ClientOptions
}

// New creates a new MongoDB client from the provided options.
func New(cfg *options.ClientOptions, hooks ...Hook) (*Client, error) {
	return NewWithContext(context.Background(), cfg, hooks...)
}

// NewWithContext creates a new MongoDB client.
//
// The driver connects lazily, so no server round trip happens here unless
// cfg.PingOnConnect is set. Returns an error if:
//   - cfg is nil or has no connection string
//   - the driver rejects the connection string or options
//   - the initial ping fails (PingOnConnect only)
func NewWithContext(ctx context.Context, cfg *options.ClientOptions, hooks ...Hook) (*Client, error) {
	if cfg == nil {
		return nil, errors.ErrInvalidClientConfiguration.WithMessage("mongodb client options cannot be nil")
	}
	if cfg.ConnectionString == "" {
		return nil, errors.ErrInvalidConnectionString.WithMessagef("client %q has no connection string", cfg.Key)
	}

	client, err := mongo.Connect(ctx, DriverOptions(cfg, hooks...))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb %q: %w", cfg.Key, err)
	}

	if cfg.PingOnConnect {
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ping mongodb %q: %w", cfg.Key, err)
		}
	}

	return &Client{client: client, cfg: cfg}, nil
}

// DriverOptions builds the driver options for cfg and applies hooks.
func DriverOptions(cfg *options.ClientOptions, hooks ...Hook) *mongoopts.ClientOptions {
	clientOpts := mongoopts.Client().ApplyURI(cfg.ConnectionString)

	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.MaxConnIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(cfg.MaxConnIdleTime)
	}
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}

	for _, hook := range hooks {
		if hook != nil {
			hook(clientOpts)
		}
	}
	return clientOpts
}

// Name returns the configured client key.
func (c *Client) Name() string {
	return c.cfg.Key
}

// Options returns the configuration the client was built from.
func (c *Client) Options() *options.ClientOptions {
	return c.cfg
}

// Ping checks if the connection to MongoDB is alive.
func (c *Client) Ping(ctx context.Context) error {
	if c.client == nil {
		return errors.ErrDBConnection.WithMessage("client is nil")
	}
	return c.client.Ping(ctx, nil)
}

// Close disconnects the client. It is safe to call more than once.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := c.client.Disconnect(ctx)
	if err == mongo.ErrClientDisconnected {
		return nil
	}
	return err
}

// Health returns a HealthChecker function for MongoDB health monitoring.
func (c *Client) Health() storage.HealthChecker {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return c.Ping(ctx)
	}
}

// Database returns the configured database.
func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.cfg.Database)
}

// DatabaseByName returns a database by name.
func (c *Client) DatabaseByName(name string) *mongo.Database {
	return c.client.Database(name)
}

// Raw returns the underlying mongo.Client.
func (c *Client) Raw() *mongo.Client {
	return c.client
}
