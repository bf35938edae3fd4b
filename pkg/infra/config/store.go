package config

import (
	"sync/atomic"

	"github.com/spf13/viper"

	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

// Store holds the current connection configuration loaded from a viper key.
// Readers always see a complete, validated table.
type Store struct {
	key     string
	current atomic.Pointer[options.Options]
}

// NewStore loads the connection configuration stored under key in v.
func NewStore(v *viper.Viper, key string) (*Store, error) {
	o, err := options.Load(v, key)
	if err != nil {
		return nil, err
	}
	s := &Store{key: key}
	s.current.Store(o)
	return s, nil
}

// Current returns the latest loaded configuration.
func (s *Store) Current() *options.Options {
	return s.current.Load()
}

// Reload loads the configuration from v. An invalid table is rejected and
// the previous configuration stays current.
func (s *Store) Reload(v *viper.Viper) error {
	o, err := options.Load(v, s.key)
	if err != nil {
		return err
	}
	s.current.Store(o)
	return nil
}

// Handler returns a ChangeHandler that reloads the store.
func (s *Store) Handler() ChangeHandler {
	return s.Reload
}

// Initialize ignores the configuration a repository was created with and
// returns the current one. It is meant for repository.WithConnectionInitializer.
//
// Reloading changes which database and collection names a key resolves to
// on the next call. A key's client, once created, keeps its original
// connection string for the life of the process.
func (s *Store) Initialize(*options.Options) *options.Options {
	return s.Current()
}
