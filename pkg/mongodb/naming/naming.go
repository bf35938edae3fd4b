// Package naming resolves physical collection names.
//
// A collection is addressed by a logical key. For a document type the key is
// the name it declares through CollectionNamer, or else its type name, always
// lower-cased. The configured overrides of the client then map the key to a
// physical name; without an override the key is the name.
package naming

import (
	"reflect"
	"strings"

	options "github.com/kart-io/docbase/pkg/options/mongodb"
)

// CollectionNamer is implemented by document types that declare their
// collection key.
type CollectionNamer interface {
	CollectionName() string
}

var namerType = reflect.TypeOf((*CollectionNamer)(nil)).Elem()

// Resolve returns the physical collection name for key under cfg.
// Overrides match key case-insensitively; without a match key is returned
// unchanged.
func Resolve(cfg *options.ClientOptions, key string) string {
	if name, ok := cfg.CollectionName(key); ok {
		return name
	}
	return key
}

// KeyFor returns the collection key of t.
func KeyFor(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if name := declaredName(t); name != "" {
		return strings.ToLower(name)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.ToLower(typeName(t))
}

// KeyOf returns the collection key of T.
func KeyOf[T any]() string {
	return KeyFor(reflect.TypeOf((*T)(nil)).Elem())
}

// ResolveType returns the physical collection name for T under cfg.
func ResolveType[T any](cfg *options.ClientOptions) string {
	return Resolve(cfg, KeyOf[T]())
}

// declaredName calls CollectionName on the zero value of t or *t. An empty
// result counts as no declaration.
func declaredName(t reflect.Type) string {
	base := t
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() == reflect.Interface {
		return ""
	}

	switch {
	case base.Implements(namerType):
		return reflect.Zero(base).Interface().(CollectionNamer).CollectionName()
	case reflect.PointerTo(base).Implements(namerType):
		return reflect.New(base).Interface().(CollectionNamer).CollectionName()
	}
	return ""
}

// typeName returns the identifier of t without package path or type arguments.
func typeName(t reflect.Type) string {
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}
