package datasource

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kart-io/docbase/pkg/component/mongodb"
	"github.com/kart-io/docbase/pkg/component/storage"
	"github.com/kart-io/docbase/pkg/errors"
	"github.com/kart-io/docbase/pkg/infra/pool"
	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

// BuildFunc constructs a client for cfg. The default goes through a
// mongodb.Factory; it is replaceable for tests.
type BuildFunc func(ctx context.Context, cfg *options.ClientOptions, hooks ...mongodb.Hook) (*mongodb.Client, error)

func buildFromFactory(ctx context.Context, cfg *options.ClientOptions, hooks ...mongodb.Hook) (*mongodb.Client, error) {
	return mongodb.NewFactory(cfg, hooks...).CreateClient(ctx)
}

// Manager owns the MongoDB clients of the process, one per configured key.
type Manager struct {
	cache   *Cache[*mongodb.Client]
	build   BuildFunc
	hooks   []mongodb.Hook
	log     core.Logger
	metrics *metrics
	pool    *pool.Pool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to logger.Global().
func WithLogger(l core.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithRegisterer sets where cache metrics are registered.
// Defaults to prometheus.DefaultRegisterer. Pass nil to disable registration.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) { m.metrics = newMetrics(reg) }
}

// WithHooks adds driver option hooks applied to every client this manager builds.
func WithHooks(hooks ...mongodb.Hook) Option {
	return func(m *Manager) { m.hooks = append(m.hooks, hooks...) }
}

// WithBuildFunc replaces the client constructor.
func WithBuildFunc(fn BuildFunc) Option {
	return func(m *Manager) { m.build = fn }
}

// WithHealthPool runs health checks on p instead of plain goroutines.
func WithHealthPool(p *pool.Pool) Option {
	return func(m *Manager) { m.pool = p }
}

// NewManager creates a manager with no clients.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cache: NewCache[*mongodb.Client](),
		build: buildFromFactory,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Global()
	}
	if m.metrics == nil {
		m.metrics = newMetrics(prometheus.DefaultRegisterer)
	}
	return m
}

// CacheKey returns the key a client configuration is cached under.
// Keys compare case-insensitively, so "Primary" and "primary" share a client.
func CacheKey(cfg *options.ClientOptions) string {
	return strings.ToLower(cfg.Key)
}

// Client returns the client for cfg, building it on first use.
//
// Concurrent callers for the same key wait on a single construction that
// uses the first caller's ctx. A failed construction is returned to all of
// them and retried by the next call. hooks run after the manager's own hooks
// and only matter for the call that builds the client.
func (m *Manager) Client(ctx context.Context, cfg *options.ClientOptions, hooks ...mongodb.Hook) (*mongodb.Client, error) {
	if cfg == nil {
		return nil, errors.ErrInvalidClientConfiguration.WithMessage("client options cannot be nil")
	}

	key := CacheKey(cfg)
	client, hit, err := m.cache.getOrCreate(key, func() (*mongodb.Client, error) {
		all := make([]mongodb.Hook, 0, len(m.hooks)+len(hooks))
		all = append(all, m.hooks...)
		all = append(all, hooks...)

		start := time.Now()
		c, err := m.build(ctx, cfg, all...)
		m.metrics.duration.WithLabelValues(key).Observe(time.Since(start).Seconds())
		if err != nil {
			m.metrics.failures.WithLabelValues(key).Inc()
			m.log.Errorw("Failed to build mongodb client",
				"client", cfg.Key,
				"uri", options.RedactConnectionString(cfg.ConnectionString),
				"error", err,
			)
			return nil, err
		}

		m.metrics.constructions.WithLabelValues(key).Inc()
		m.log.Infow("MongoDB client created",
			"client", cfg.Key,
			"database", cfg.Database,
			"uri", options.RedactConnectionString(cfg.ConnectionString),
			"duration", time.Since(start),
		)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers that joined an in-flight construction are not hits.
	if hit {
		m.metrics.hits.WithLabelValues(key).Inc()
	}
	return client, nil
}

// Lookup returns an already built client without building one.
func (m *Manager) Lookup(key string) (*mongodb.Client, bool) {
	return m.cache.Get(strings.ToLower(key))
}

// Clients returns a snapshot of the built clients keyed by cache key.
// The owning process uses it to close clients at shutdown.
func (m *Manager) Clients() map[string]*mongodb.Client {
	return m.cache.Snapshot()
}

// Len returns the number of built clients.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// HealthCheckAll pings every built client concurrently.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]storage.HealthStatus {
	clients := m.cache.Snapshot()
	results := make(map[string]storage.HealthStatus, len(clients))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for key, client := range clients {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			status := storage.Check(ctx, client)
			status.Name = key

			mu.Lock()
			results[key] = status
			mu.Unlock()
		}

		if m.pool == nil || m.pool.Submit(task) != nil {
			go task()
		}
	}

	wg.Wait()
	return results
}

// IsHealthy returns true if every built client answers a ping.
func (m *Manager) IsHealthy(ctx context.Context) bool {
	for _, status := range m.HealthCheckAll(ctx) {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// CloseAll disconnects every built client. Closed clients stay cached, so
// CloseAll is meant for process shutdown only.
func (m *Manager) CloseAll() error {
	var errs []error
	for key, client := range m.cache.Snapshot() {
		if err := client.Close(); err != nil {
			m.log.Warnw("Failed to close mongodb client", "client", key, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.ErrDBConnection.WithCause(stderrors.Join(errs...))
	}
	return nil
}
