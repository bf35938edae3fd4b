// Package mongodb provides MongoDB connection options.
//
// Options is the per-key connection table consumed by the repository layer:
// an ordered list of clients, each carrying a connection string, a database
// name and optional collection name overrides. It is loaded once at startup
// and treated as immutable afterwards.
package mongodb

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kart-io/docbase/pkg/errors"
	"github.com/kart-io/docbase/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// redactedPassword is the placeholder used when serializing passwords.
	redactedPassword = "[REDACTED]"

	// EnvConnectionString supplies the default client's connection string.
	// A client keyed "tenant-a" can also read MONGODB_CONNECTION_STRING_TENANT_A.
	EnvConnectionString = "MONGODB_CONNECTION_STRING"

	// DefaultClientKey is the key used for the client bound from flags.
	DefaultClientKey = "default"
)

// CollectionOptions maps a logical collection key to a physical collection name.
type CollectionOptions struct {
	Key  string `json:"key" mapstructure:"key"`
	Name string `json:"name" mapstructure:"name"`
}

// ClientOptions configures one MongoDB client.
type ClientOptions struct {
	Key              string               `json:"key" mapstructure:"key"`
	ConnectionString string               `json:"-" mapstructure:"connection-string"` // use env var for secrets
	Database         string               `json:"database" mapstructure:"database"`
	Collections      []*CollectionOptions `json:"collections" mapstructure:"collections"`

	// Connection Pool
	MaxPoolSize     uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize     uint64        `json:"min-pool-size" mapstructure:"min-pool-size"`
	MaxConnIdleTime time.Duration `json:"max-conn-idle-time" mapstructure:"max-conn-idle-time"`

	// Timeouts
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`

	// PingOnConnect verifies the server is reachable when the client is built.
	PingOnConnect bool `json:"ping-on-connect" mapstructure:"ping-on-connect"`
}

// Options defines the connection configuration for all MongoDB clients.
type Options struct {
	Clients []*ClientOptions `json:"clients" mapstructure:"clients"`

	// DefaultKey selects the client used by single-database repositories.
	DefaultKey string `json:"default-key" mapstructure:"default-key"`
}

// NewOptions creates a new, empty Options object.
func NewOptions() *Options {
	return &Options{
		Clients: []*ClientOptions{},
	}
}

// NewClientOptions creates client options with default pool and timeout values.
func NewClientOptions(key string) *ClientOptions {
	return &ClientOptions{
		Key:                    key,
		Collections:            []*CollectionOptions{},
		MaxPoolSize:            100,
		MinPoolSize:            0,
		MaxConnIdleTime:        5 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 30 * time.Second,
	}
}

// Load reads the options stored under key in v.
// The loaded options are completed and validated; a missing key or a
// structurally invalid table yields ErrInvalidConnectionConfiguration.
func Load(v *viper.Viper, key string) (*Options, error) {
	if v == nil || !v.IsSet(key) {
		return nil, errors.ErrInvalidConnectionConfiguration.WithMessagef("configuration key %q not found", key)
	}

	o := NewOptions()
	if err := v.UnmarshalKey(key, o); err != nil {
		return nil, errors.ErrInvalidConnectionConfiguration.WithCause(err)
	}
	if err := options.Prepare(o); err != nil {
		return nil, errors.ErrInvalidConnectionConfiguration.WithCause(err)
	}

	return o, nil
}

// Client returns the first client whose key matches key case-insensitively,
// or nil when none does.
func (o *Options) Client(key string) *ClientOptions {
	if o == nil {
		return nil
	}
	for _, c := range o.Clients {
		if c != nil && strings.EqualFold(c.Key, key) {
			return c
		}
	}
	return nil
}

// ResolveClient returns the client configured for key.
//
// The failures are distinguishable with errors.Is:
//   - ErrInvalidConnectionConfiguration: o is nil
//   - ErrInvalidClientConfiguration: no client matches key
//   - ErrInvalidConnectionString: the match has no connection string
//   - ErrInvalidDatabase: the match has no database
//
// The connection string is checked before the database.
func (o *Options) ResolveClient(key string) (*ClientOptions, error) {
	if o == nil {
		return nil, errors.ErrInvalidConnectionConfiguration
	}

	c := o.Client(key)
	if c == nil {
		return nil, errors.ErrInvalidClientConfiguration.WithMessagef("no client configured for key %q", key)
	}
	if c.ConnectionString == "" {
		return nil, errors.ErrInvalidConnectionString.WithMessagef("client %q has no connection string", c.Key)
	}
	if c.Database == "" {
		return nil, errors.ErrInvalidDatabase.WithMessagef("client %q has no database", c.Key)
	}

	return c, nil
}

// ResolveDefaultKey returns the key bound to single-database repositories:
// DefaultKey when set, otherwise the key of the only configured client.
func (o *Options) ResolveDefaultKey() (string, error) {
	if o == nil {
		return "", errors.ErrInvalidConnectionConfiguration
	}
	if o.DefaultKey != "" {
		return o.DefaultKey, nil
	}
	if len(o.Clients) == 1 && o.Clients[0] != nil {
		return o.Clients[0].Key, nil
	}
	return "", errors.ErrInvalidConnectionConfiguration.WithMessage("default-key is required when more than one client is configured")
}

// CollectionName returns the physical name overriding the logical key, if any.
func (c *ClientOptions) CollectionName(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, coll := range c.Collections {
		if coll != nil && strings.EqualFold(coll.Key, key) {
			return coll.Name, true
		}
	}
	return "", false
}

// Complete fills connection strings from the environment for clients that
// leave them empty.
func (o *Options) Complete() error {
	for _, c := range o.Clients {
		if c == nil || c.ConnectionString != "" {
			continue
		}
		c.ConnectionString = os.Getenv(clientEnvName(c.Key))
		if c.ConnectionString == "" && strings.EqualFold(c.Key, o.DefaultKey) {
			c.ConnectionString = os.Getenv(EnvConnectionString)
		}
	}
	if o.DefaultKey == "" && len(o.Clients) == 1 && o.Clients[0] != nil &&
		o.Clients[0].ConnectionString == "" {
		o.Clients[0].ConnectionString = os.Getenv(EnvConnectionString)
	}
	return nil
}

// Validate checks the structure of the table: every client and override has
// a key, client keys are unique and DefaultKey names a configured client.
// Empty connection strings and databases are reported by ResolveClient when
// the key is used, since secrets may be supplied after loading.
func (o *Options) Validate() []error {
	if o == nil {
		return []error{errors.ErrInvalidConnectionConfiguration}
	}

	var errs []error
	seen := make(map[string]int, len(o.Clients))
	for i, c := range o.Clients {
		if c == nil {
			errs = append(errs, errors.ErrConfigInvalid.WithMessagef("clients[%d] is empty", i))
			continue
		}
		if c.Key == "" {
			errs = append(errs, errors.ErrConfigInvalid.WithMessagef("clients[%d] has no key", i))
			continue
		}

		k := strings.ToLower(c.Key)
		if first, dup := seen[k]; dup {
			errs = append(errs, errors.ErrConfigInvalid.WithMessagef(
				"clients[%d] key %q duplicates clients[%d]", i, c.Key, first))
		} else {
			seen[k] = i
		}

		for j, coll := range c.Collections {
			if coll == nil || coll.Key == "" || coll.Name == "" {
				errs = append(errs, errors.ErrConfigInvalid.WithMessagef(
					"client %q collections[%d] requires key and name", c.Key, j))
			}
		}

		if c.MinPoolSize > c.MaxPoolSize && c.MaxPoolSize > 0 {
			errs = append(errs, errors.ErrConfigInvalid.WithMessagef(
				"client %q min-pool-size cannot exceed max-pool-size", c.Key))
		}
	}

	if o.DefaultKey != "" && o.Client(o.DefaultKey) == nil {
		errs = append(errs, errors.ErrInvalidClientConfiguration.WithMessagef(
			"default-key %q does not name a configured client", o.DefaultKey))
	}

	return errs
}

// AddFlags binds the first client (created as DefaultClientKey when absent)
// to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	switch {
	case len(o.Clients) == 0:
		o.Clients = []*ClientOptions{NewClientOptions(DefaultClientKey)}
	case o.Clients[0] == nil:
		o.Clients[0] = NewClientOptions(DefaultClientKey)
	}
	c := o.Clients[0]
	p := options.Join(prefixes...) + "mongodb."

	fs.StringVar(&o.DefaultKey, p+"default-key", o.DefaultKey, "Client key used by single-database repositories.")
	fs.StringVar(&c.Key, p+"key", c.Key, "Key of the client configured from flags.")
	fs.StringVar(&c.ConnectionString, p+"connection-string", c.ConnectionString,
		"MongoDB connection string (DEPRECATED: use "+EnvConnectionString+" env var instead).")
	fs.StringVar(&c.Database, p+"database", c.Database, "Database name for the client to use.")
	fs.Uint64Var(&c.MaxPoolSize, p+"max-pool-size", c.MaxPoolSize, "Maximum number of connections in the pool.")
	fs.Uint64Var(&c.MinPoolSize, p+"min-pool-size", c.MinPoolSize, "Minimum number of connections in the pool.")
	fs.DurationVar(&c.MaxConnIdleTime, p+"max-conn-idle-time", c.MaxConnIdleTime, "Maximum connection idle time.")
	fs.DurationVar(&c.ConnectTimeout, p+"connect-timeout", c.ConnectTimeout, "Timeout for connection.")
	fs.DurationVar(&c.ServerSelectionTimeout, p+"server-selection-timeout", c.ServerSelectionTimeout, "Timeout for server selection.")
	fs.BoolVar(&c.PingOnConnect, p+"ping-on-connect", c.PingOnConnect, "Ping the server when the client is created.")
}

// MarshalJSON implements json.Marshaler with the connection string redacted.
// This prevents accidental password exposure in logs or debug output.
func (c *ClientOptions) MarshalJSON() ([]byte, error) {
	type plain ClientOptions
	return json.Marshal(struct {
		*plain
		ConnectionString string `json:"connection-string"`
	}{
		plain:            (*plain)(c),
		ConnectionString: RedactConnectionString(c.ConnectionString),
	})
}

// String returns a string representation with password redacted.
// Safe for logging and debugging.
func (c *ClientOptions) String() string {
	return fmt.Sprintf("MongoDB{key=%s, uri=%s, database=%s, collections=%d}",
		c.Key, RedactConnectionString(c.ConnectionString), c.Database, len(c.Collections))
}

// String returns a string representation with passwords redacted.
func (o *Options) String() string {
	keys := make([]string, 0, len(o.Clients))
	for _, c := range o.Clients {
		if c != nil {
			keys = append(keys, c.Key)
		}
	}
	return fmt.Sprintf("MongoDBClients{default=%s, keys=[%s]}", o.DefaultKey, strings.Join(keys, ","))
}

// RedactConnectionString replaces the password of a connection string.
// Strings that cannot be parsed are redacted entirely.
func RedactConnectionString(cs string) string {
	if cs == "" {
		return ""
	}
	u, err := url.Parse(cs)
	if err != nil {
		return redactedPassword
	}
	if u.User == nil {
		return cs
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return cs
	}

	user := url.User(u.User.Username()).String()
	u.User = url.User(u.User.Username())
	return strings.Replace(u.String(), "://"+user+"@", "://"+user+":"+redactedPassword+"@", 1)
}

func clientEnvName(key string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return EnvConnectionString + "_" + strings.ToUpper(r.Replace(key))
}
