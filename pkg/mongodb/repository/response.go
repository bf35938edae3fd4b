package repository

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kart-io/docbase/pkg/component/mongodb"
	"github.com/kart-io/docbase/pkg/infra/pool"
	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

// Result carries the outcome of an asynchronous call.
type Result[T any] = pool.Result[T]

// DatabaseResponse is a database handle with the client and configuration it
// was resolved from. It is cheap to derive and is not cached.
type DatabaseResponse struct {
	Client   *mongodb.Client
	Config   *options.ClientOptions
	Database *mongo.Database
}

// Collection is a collection handle whose documents decode into T.
// It is cheap to derive and safe to create repeatedly.
type Collection[T any] struct {
	DatabaseResponse
	Collection *mongo.Collection
}

// Name returns the physical collection name.
func (c *Collection[T]) Name() string {
	return c.Collection.Name()
}
