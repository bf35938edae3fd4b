// Package options defines the generic options interface and common utilities.
package options

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
)

// Join concatenates prefixes with "." separator.
// If the result is non-empty, it appends a trailing ".".
// This is used to build flag names like "mongodb.database" or "prefix.mongodb.database".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions defines methods to implement a generic options.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags related to given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Completable is implemented by options that derive values before validation.
type Completable interface {
	Complete() error
}

// Prepare completes (when supported) and validates o, joining every
// validation error into one.
func Prepare(o IOptions) error {
	if c, ok := o.(Completable); ok {
		if err := c.Complete(); err != nil {
			return err
		}
	}
	return errors.Join(o.Validate()...)
}
