package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kart-io/logger/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/kart-io/docbase/pkg/errors"
)

const initialConfig = `
mongodb:
  clients:
    - key: primary
      connection-string: mongodb://localhost:27017
      database: orders
`

const reloadedConfig = `
mongodb:
  clients:
    - key: primary
      connection-string: mongodb://localhost:27017
      database: orders_v2
      collections:
        - key: orderline
          name: order_lines
    - key: archive
      connection-string: mongodb://localhost:27017
      database: archive
`

const brokenConfig = `
mongodb:
  clients:
    - key: primary
    - key: PRIMARY
`

func newViper(t *testing.T, body string) (*viper.Viper, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docbase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	return v, path
}

func rewrite(t *testing.T, v *viper.Viper, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	require.NoError(t, v.ReadInConfig())
}

func TestStoreLoadAndReload(t *testing.T) {
	v, path := newViper(t, initialConfig)

	s, err := NewStore(v, "mongodb")
	require.NoError(t, err)
	cfg, err := s.Current().ResolveClient("primary")
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.Database)

	rewrite(t, v, path, reloadedConfig)
	require.NoError(t, s.Reload(v))

	cfg, err = s.Initialize(nil).ResolveClient("primary")
	require.NoError(t, err)
	assert.Equal(t, "orders_v2", cfg.Database)
	name, ok := cfg.CollectionName("orderline")
	assert.True(t, ok)
	assert.Equal(t, "order_lines", name)
	assert.NotNil(t, s.Current().Client("archive"))
}

func TestStoreRejectsInvalidReload(t *testing.T) {
	v, path := newViper(t, initialConfig)
	s, err := NewStore(v, "mongodb")
	require.NoError(t, err)
	before := s.Current()

	rewrite(t, v, path, brokenConfig)
	err = s.Reload(v)
	assert.ErrorIs(t, err, docerrors.ErrInvalidConnectionConfiguration)
	assert.Same(t, before, s.Current())
}

func TestNewStoreMissingKey(t *testing.T) {
	v, _ := newViper(t, initialConfig)
	_, err := NewStore(v, "postgres")
	assert.ErrorIs(t, err, docerrors.ErrInvalidConnectionConfiguration)
}

func TestWatcherNotify(t *testing.T) {
	v, path := newViper(t, initialConfig)
	s, err := NewStore(v, "mongodb")
	require.NoError(t, err)

	w := NewWatcher(v, core.NewNoOpLogger(nil))
	w.Subscribe("store", s.Handler())
	w.Subscribe("broken", func(*viper.Viper) error { return errors.New("boom") })
	assert.Equal(t, 2, w.HandlerCount())

	rewrite(t, v, path, reloadedConfig)
	assert.Equal(t, 1, w.Notify())
	assert.Equal(t, "orders_v2", s.Current().Client("primary").Database)

	w.Unsubscribe("broken")
	assert.Equal(t, 0, w.Notify())
	assert.Equal(t, 1, w.HandlerCount())
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	v, path := newViper(t, initialConfig)
	s, err := NewStore(v, "mongodb")
	require.NoError(t, err)

	var reloads atomic.Int64
	w := NewWatcher(v, core.NewNoOpLogger(nil))
	w.Subscribe("store", func(v *viper.Viper) error {
		reloads.Add(1)
		return s.Reload(v)
	})
	w.Start()
	w.Start()
	assert.True(t, w.IsWatching())

	require.NoError(t, os.WriteFile(path, []byte(reloadedConfig), 0o600))
	assert.Eventually(t, func() bool {
		return s.Current().Client("archive") != nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Positive(t, reloads.Load())
}
