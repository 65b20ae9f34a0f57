// Package codec implements the pluggable type codec framework (the design's
// "Serializer" concept): a registry of codecs that convert native Go values
// to and from the wire.Value tree, keyed by native reflect.Type and/or JSON
// shape, plus the built-in codec implementations themselves.
package codec

import (
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// Serializer is implemented by every codec registered with a Registry.
//
// CanSerialize reports whether this codec applies to the (nativeType,
// jsonKind) pair. Either argument may be the zero value when the caller
// only knows one side (nativeType is nil when unmarshaling is only
// constrained by JSON shape; jsonKind is wire.KindNull when marshaling,
// since jsonKind describes an *input* shape).
//
// TryUnmarshal performs a cheap compatibility check; it records nothing in
// the state and never constructs a heavyweight value.
//
// Unmarshal performs the actual conversion.
//
// Marshal converts a native value to a wire.Value.
type Serializer interface {
	CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool
	TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error)
	Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error)
	// Marshal converts native to a wire.Value. path is native's own position
	// in the tree being built, used to record fixups if native turns out to
	// be a duplicate or a cycle relative to an ancestor.
	Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error)
}

// Registry indexes registered codecs for lookup from either direction. It is
// populated once at construction time and treated as immutable afterwards,
// so reads never need to take a lock.
type Registry struct {
	codecs   []Serializer
	resolver ReferenceMarshaler
}

// ReferenceMarshaler lets the reference codec ask whatever owns handle
// allocation (the bridge) whether a value should cross the wire as an
// opaque reference rather than by value. Kept separate from
// state.ReferenceResolver, which only resolves handles that are already
// known, because MarshalHandle may allocate a new one.
type ReferenceMarshaler interface {
	IsReferenceType(t reflect.Type) bool
	MarshalHandle(instance interface{}) (handle int, callable bool, ok bool)
}

// NewRegistry creates a Registry pre-loaded with every built-in codec, in
// the priority order that matters when more than one codec could claim a
// given (type, shape) pair (references before beans, beans before the
// generic interface{} fallback, and so on). resolver may be nil, in which
// case no value is ever marshaled by reference and no wire reference is
// ever accepted on unmarshal; a bridge wires itself in via WithReferences.
func NewRegistry(resolver ReferenceMarshaler) *Registry {
	r := &Registry{resolver: resolver}
	r.Register(
		&referenceCodec{resolver: resolver},
		&rawJSONCodec{},
		&primitiveCodec{},
		&booleanCodec{},
		&stringCodec{},
		&dateCodec{},
		&enumCodec{},
		&arrayCodec{registry: r},
		&containerCodec{registry: r},
		&beanCodec{registry: r},
		&objectCodec{registry: r},
	)
	return r
}

// WithReferences rebinds the reference codec to resolver after construction,
// used when the bridge that owns the registry becomes available only after
// NewRegistry has already been called (breaking an initialization cycle).
func (r *Registry) WithReferences(resolver ReferenceMarshaler) {
	r.resolver = resolver
	for _, c := range r.codecs {
		if rc, ok := c.(*referenceCodec); ok {
			rc.resolver = resolver
		}
	}
}

// WithTypeByName wires a javaClass-name-to-type resolver into the container
// and bean codecs, letting a wire hint override the statically declared
// target type. Like WithReferences, this exists to break an initialization
// cycle: the bridge's class table is normally only populated after
// NewRegistry has already built the codec chain.
func (r *Registry) WithTypeByName(resolve TypeByName) {
	for _, c := range r.codecs {
		switch t := c.(type) {
		case *containerCodec:
			t.TypeByName = resolve
		case *beanCodec:
			t.TypeByName = resolve
		case *objectCodec:
			t.TypeByName = resolve
		}
	}
}

// Register appends codecs to the registry. Earlier registrations take
// priority when several codecs claim the same type.
func (r *Registry) Register(codecs ...Serializer) {
	r.codecs = append(r.codecs, codecs...)
}

// ForMarshal returns the first codec able to marshal a value of nativeType.
func (r *Registry) ForMarshal(nativeType reflect.Type) (Serializer, bool) {
	for _, c := range r.codecs {
		if c.CanSerialize(nativeType, wire.KindNull) {
			return c, true
		}
	}
	return nil, false
}

// ForUnmarshal returns every codec able to unmarshal targetType from a node
// shaped like jsonKind. TryUnmarshal on the wire.Value.Kind of node should
// still be used to make the final choice; this is mainly useful for the
// overload resolver, which needs to consider "any codec that could work"
// before running the more expensive TryUnmarshal check.
func (r *Registry) ForUnmarshal(targetType reflect.Type, jsonKind wire.Kind) []Serializer {
	var matches []Serializer
	for _, c := range r.codecs {
		if c.CanSerialize(targetType, jsonKind) {
			matches = append(matches, c)
		}
	}
	return matches
}

// Marshal converts native into a wire.Value using the first applicable
// codec, recursing through st for identity tracking. path is native's own
// position in the tree being built (see Serializer.Marshal).
func (r *Registry) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	if !native.IsValid() {
		return wire.Null(), nil
	}
	// Unwrap interface{} values to their concrete dynamic type so codecs
	// see the real reflect.Type.
	for native.Kind() == reflect.Interface {
		if native.IsNil() {
			return wire.Null(), nil
		}
		native = native.Elem()
	}
	if isNilable(native) && native.IsNil() {
		return wire.Null(), nil
	}

	c, ok := r.ForMarshal(native.Type())
	if !ok {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
	return c.Marshal(st, native, path)
}

// Unmarshal converts node into a value assignable to targetType using the
// first codec whose TryUnmarshal call reports a non-mismatch score.
func (r *Registry) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	for _, c := range r.codecs {
		if !c.CanSerialize(targetType, node.Kind) {
			continue
		}
		if _, err := c.TryUnmarshal(st, targetType, node); err != nil {
			continue
		}
		return c.Unmarshal(st, targetType, node)
	}
	return reflect.Value{}, &MismatchError{Codec: "registry", Reason: "no codec for " + targetType.String()}
}

// TryUnmarshal scores how well node fits targetType across every applicable
// codec and returns the best (lowest) match found, or ErrUnmarshalMismatch
// if none applies. Used by the overload resolver.
func (r *Registry) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	best := Match(1 << 30)
	found := false
	for _, c := range r.codecs {
		if !c.CanSerialize(targetType, node.Kind) {
			continue
		}
		m, err := c.TryUnmarshal(st, targetType, node)
		if err != nil {
			continue
		}
		found = true
		if m < best {
			best = m
		}
	}
	if !found {
		return 0, &MismatchError{Codec: "registry", Reason: "no codec for " + targetType.String()}
	}
	return best, nil
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	default:
		return false
	}
}
