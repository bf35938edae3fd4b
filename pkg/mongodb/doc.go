// Package mongodb is the multi-tenant document repository layer of docbase.
//
// Applications keep one entry per tenant or logical store in the connection
// configuration (options/mongodb). Every entry names a connection string, a
// database and optional collection-name overrides. The packages below turn
// that configuration into typed collection handles:
//
//   - convention: maps Go structs to BSON documents. The default pack
//     excludes members tagged "-", tolerates unknown elements, omits null
//     members and lower-cases the first character of element names.
//   - naming: derives a collection key from a document type and resolves it
//     against the client's overrides.
//   - repository: resolves clients through the shared client cache and hands
//     out database and collection handles, synchronously or on the async pool.
//
// # Basic Usage
//
//	opts := options.NewOptions()
//	primary := options.NewClientOptions("primary")
//	primary.ConnectionString = "mongodb://localhost:27017"
//	primary.Database = "orders"
//	opts.Clients = append(opts.Clients, primary)
//
//	repo, err := repository.New(opts)
//	if err != nil {
//	    return err
//	}
//
//	lines, err := repository.CollectionFor[OrderLine](ctx, repo, "primary")
//	if err != nil {
//	    return err
//	}
//	// lines.Collection is bound to orders.orderline
//
// # Collection Overrides
//
// A client may rename any collection key:
//
//	primary.Collections = []*options.CollectionOptions{
//	    {Key: "orderline", Name: "order_lines"},
//	}
//
// Types may also declare their own key by implementing naming.CollectionNamer.
//
// # Single Database
//
// Services bound to one database use repository.Single, which resolves the
// configured default key, or the only configured client:
//
//	single, err := repository.NewSingle(opts)
//	lines, err := repository.SingleCollectionFor[OrderLine](ctx, single)
//
// Clients are created once per key and shared for the life of the process.
// Call datasource.GetGlobal().CloseAll() on shutdown.
package mongodb
