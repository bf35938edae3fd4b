// Package docbase implements the docbase command: an operator tool for
// inspecting and maintaining the document stores of a multi-tenant
// connection configuration.
package docbase

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docbase/pkg/infra/app"
	"github.com/kart-io/docbase/pkg/infra/datasource"
	"github.com/kart-io/docbase/pkg/infra/pool"
	"github.com/kart-io/docbase/pkg/infra/tracing"
	"github.com/kart-io/docbase/pkg/mongodb/repository"
)

const (
	appName        = "docbase"
	appDescription = `docbase resolves and maintains the MongoDB stores of a
multi-tenant connection configuration.

Examples:
  # Show the physical collection behind a key
  docbase resolve primary orderline -c configs/docbase.yaml

  # Ping every configured client
  docbase ping

  # Drop a collection
  docbase drop primary orderline

Configuration:
  Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (prefix: DOCBASE_)
  - Configuration file (YAML)
  - Default values (lowest priority)`
)

// env is the state shared by commands once options are prepared.
type env struct {
	opts    *Options
	clients *datasource.Manager
	health  *pool.Pool
	tracer  *tracing.Provider
}

// NewApp creates the docbase application.
func NewApp() *app.App {
	e := &env{opts: NewOptions()}

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("Inspect and maintain multi-tenant MongoDB stores"),
		app.WithDescription(appDescription),
		app.WithOptions(e.opts),
		app.WithInitFunc(e.init),
		app.WithCommands(
			newClientsCommand(e),
			newResolveCommand(e),
			newPingCommand(e),
			newDropCommand(e),
		),
	)
}

func (e *env) init() error {
	if err := e.opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, err := tracing.NewProvider(e.opts.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	e.tracer = tracer

	health, err := pool.NewPool("docbase-health", pool.HealthCheckPool, nil)
	if err != nil {
		return err
	}
	e.health = health
	e.clients = datasource.NewManager(
		datasource.WithLogger(logger.Global()),
		datasource.WithHealthPool(health),
	)
	return nil
}

// repository returns a repository over the loaded configuration.
func (e *env) repository() (*repository.Base, error) {
	return repository.New(e.opts.MongoDB,
		repository.WithManager(e.clients),
		repository.WithLogger(logger.Global()),
	)
}

// shutdown closes every client created by the command.
func (e *env) shutdown() {
	if e.clients != nil {
		if err := e.clients.CloseAll(); err != nil {
			logger.Global().Warnw("Failed to close clients", "error", err)
		}
	}
	if e.health != nil {
		e.health.Release()
	}
	if e.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.Tracing.ExportTimeout)
		defer cancel()
		if err := e.tracer.Shutdown(ctx); err != nil {
			logger.Global().Warnw("Failed to flush spans", "error", err)
		}
	}
	_ = logger.Flush()
}
