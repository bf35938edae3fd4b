package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockClient struct {
	name    string
	healthy bool
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) Ping(ctx context.Context) error {
	if !m.healthy {
		return context.DeadlineExceeded
	}
	return nil
}

func (m *mockClient) Close() error { return nil }

func (m *mockClient) Health() HealthChecker {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return m.Ping(ctx)
	}
}

var _ Client = (*mockClient)(nil)

func TestHealthChecker(t *testing.T) {
	assert.NoError(t, (&mockClient{name: "up", healthy: true}).Health()())
	assert.Error(t, (&mockClient{name: "down"}).Health()())
}

func TestCheck(t *testing.T) {
	status := Check(context.Background(), &mockClient{name: "primary", healthy: true})
	assert.Equal(t, "primary", status.Name)
	assert.True(t, status.Healthy)
	assert.NoError(t, status.Error)

	status = Check(context.Background(), &mockClient{name: "archive"})
	assert.False(t, status.Healthy)
	assert.ErrorIs(t, status.Error, context.DeadlineExceeded)
}
