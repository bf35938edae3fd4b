package convention

import (
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"

	"github.com/kart-io/docbase/pkg/errors"
)

var (
	// ErrAlreadyMapped is returned by MapType for a type that already has a class map.
	ErrAlreadyMapped = errors.ErrTypeAlreadyMapped

	// ErrUnknownElement is returned when decoding a document with an unmapped
	// field into a type that does not ignore extra elements.
	ErrUnknownElement = errors.ErrUnknownElement
)

type registeredPack struct {
	name   string
	pack   Pack
	filter Filter
}

// Registry holds registered convention packs and the class maps built from them.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	packs []registeredPack
	names map[string]struct{}

	classMaps sync.Map // reflect.Type -> *ClassMap

	codecsOnce sync.Once
	codecs     *bsoncodec.Registry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]struct{}),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// RegisterDefaults registers the canonical pack on r under DefaultPackName.
// It reports whether this call registered it.
func RegisterDefaults(r *Registry) bool {
	return r.Register(DefaultPackName, Defaults(), nil)
}

// Register adds pack under name. Registering a name a second time is a no-op
// and returns false. Types mapped before the call are not affected.
func (r *Registry) Register(name string, pack Pack, filter Filter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[name]; ok {
		return false
	}
	r.names[name] = struct{}{}
	r.packs = append(r.packs, registeredPack{
		name:   name,
		pack:   append(Pack(nil), pack...),
		filter: filter,
	})
	return true
}

// IsRegistered reports whether a pack is registered under name.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.names[name]
	return ok
}

// MapType builds the class map of t now, running fn after the registered
// conventions. It fails with ErrAlreadyMapped if t already has a class map.
func (r *Registry) MapType(t reflect.Type, fn func(*ClassMap)) (*ClassMap, error) {
	t = structType(t)
	if t == nil {
		return nil, errors.ErrInvalidParam.WithMessage("convention: only struct types can be mapped")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.classMaps.Load(t); ok {
		return nil, ErrAlreadyMapped.WithMessagef("type %s is already mapped", t)
	}
	return r.buildLocked(t, fn)
}

// Map is the generic form of MapType.
func Map[T any](r *Registry, fn func(*ClassMap)) (*ClassMap, error) {
	return r.MapType(reflect.TypeOf((*T)(nil)).Elem(), fn)
}

// IsMapped reports whether t already has a class map.
func (r *Registry) IsMapped(t reflect.Type) bool {
	t = structType(t)
	if t == nil {
		return false
	}
	_, ok := r.classMaps.Load(t)
	return ok
}

// ClassMap returns the frozen class map of t, building it on first use.
// Pointer types resolve to their element type.
func (r *Registry) ClassMap(t reflect.Type) (*ClassMap, error) {
	t = structType(t)
	if t == nil {
		return nil, errors.ErrInvalidParam.WithMessage("convention: only struct types can be mapped")
	}
	return r.lookup(t)
}

func (r *Registry) lookup(t reflect.Type) (*ClassMap, error) {
	if cm, ok := r.classMaps.Load(t); ok {
		return cm.(*ClassMap), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cm, ok := r.classMaps.Load(t); ok {
		return cm.(*ClassMap), nil
	}
	return r.buildLocked(t, nil)
}

// buildLocked stores the class map only once it is frozen, so a failed
// build leaves no trace of fn behind.
func (r *Registry) buildLocked(t reflect.Type, fn func(*ClassMap)) (*ClassMap, error) {
	cm := newClassMap(t)
	for _, p := range r.packs {
		if p.filter != nil && !p.filter(t) {
			continue
		}
		for _, c := range p.pack {
			cm.apply(c)
		}
	}
	if fn != nil {
		fn(cm)
	}
	if err := cm.freeze(); err != nil {
		return nil, err
	}

	r.classMaps.Store(t, cm)
	return cm, nil
}

// Codecs returns a driver codec registry that maps every struct through this
// registry. Types with their own codecs, such as time.Time, keep them.
func (r *Registry) Codecs() *bsoncodec.Registry {
	r.codecsOnce.Do(func() {
		reg := bson.NewRegistry()
		codec := &structCodec{registry: r}
		reg.RegisterKindEncoder(reflect.Struct, codec)
		reg.RegisterKindDecoder(reflect.Struct, codec)
		r.codecs = reg
	})
	return r.codecs
}

// Marshal encodes v with the registry's codecs.
func (r *Registry) Marshal(v interface{}) ([]byte, error) {
	return bson.MarshalWithRegistry(r.Codecs(), v)
}

// Unmarshal decodes data into v with the registry's codecs.
func (r *Registry) Unmarshal(data []byte, v interface{}) error {
	return bson.UnmarshalWithRegistry(r.Codecs(), data, v)
}

func structType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}
