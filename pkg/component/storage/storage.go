// Package storage defines the contract shared by storage clients.
//
// A client that satisfies Client can be owned by the client cache, health
// checked, and closed at process shutdown without the caller knowing which
// backend it talks to.
package storage

import (
	"context"
	"time"
)

// Client is the base interface implemented by storage clients.
type Client interface {
	// Name returns the client identifier used in logs and health reports.
	Name() string

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the client's connections. It is safe to call more than once.
	Close() error

	// Health returns a HealthChecker bound to this client.
	Health() HealthChecker
}

// HealthChecker performs a health check on a storage client.
type HealthChecker func() error

// HealthStatus represents the result of a health check.
type HealthStatus struct {
	Name    string
	Healthy bool
	Latency time.Duration
	Error   error
}

// Factory creates storage clients.
type Factory interface {
	Create(ctx context.Context) (Client, error)
}

// Check pings c and reports the outcome as a HealthStatus.
func Check(ctx context.Context, c Client) HealthStatus {
	start := time.Now()
	err := c.Ping(ctx)

	return HealthStatus{
		Name:    c.Name(),
		Healthy: err == nil,
		Latency: time.Since(start),
		Error:   err,
	}
}
