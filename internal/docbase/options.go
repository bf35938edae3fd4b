package docbase

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/docbase/pkg/options"
	logopts "github.com/kart-io/docbase/pkg/options/logger"
	mongoopts "github.com/kart-io/docbase/pkg/options/mongodb"
	tracingopts "github.com/kart-io/docbase/pkg/options/tracing"
)

var _ options.IOptions = (*Options)(nil)

// Options is the docbase command configuration.
type Options struct {
	Log     *logopts.Options     `json:"log" mapstructure:"log"`
	MongoDB *mongoopts.Options   `json:"mongodb" mapstructure:"mongodb"`
	Tracing *tracingopts.Options `json:"tracing" mapstructure:"tracing"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Log:     logopts.NewOptions(),
		MongoDB: mongoopts.NewOptions(),
		Tracing: tracingopts.NewOptions(),
	}
}

// AddFlags adds flags for every option group.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.Log.AddFlags(fs, prefixes...)
	o.MongoDB.AddFlags(fs, prefixes...)
	o.Tracing.AddFlags(fs, prefixes...)
}

// Complete fills values derived from the environment.
func (o *Options) Complete() error {
	if err := o.MongoDB.Complete(); err != nil {
		return err
	}
	return o.Tracing.Complete()
}

// Validate validates every option group.
func (o *Options) Validate() []error {
	errs := o.Log.Validate()
	errs = append(errs, o.MongoDB.Validate()...)
	return append(errs, o.Tracing.Validate()...)
}
