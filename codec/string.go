package codec

import (
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// stringCodec is a trivial pass-through for string and *string. Unlike
// numeric/boolean codecs, a JSON string is the only shape it ever accepts;
// it never coerces numbers or booleans to strings. Coercion happens only in
// the numeric codec (a JSON string may satisfy a numeric parameter, but a
// JSON number never satisfies a string one).
type stringCodec struct{}

func stringElemType(t reflect.Type) (reflect.Type, bool, bool) {
	if t == nil {
		return nil, false, false
	}
	boxed := t.Kind() == reflect.Ptr
	elem := t
	if boxed {
		elem = t.Elem()
	}
	return elem, boxed, elem.Kind() == reflect.String
}

func (c *stringCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		_, _, ok := stringElemType(nativeType)
		return ok
	}
	return jsonKind == wire.KindString || jsonKind == wire.KindNull
}

func (c *stringCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	_, boxed, ok := stringElemType(targetType)
	if !ok {
		return 0, &MismatchError{Codec: "string"}
	}
	if node.IsNull() {
		if boxed {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "string", Reason: "null is incompatible with an unboxed string"}
	}
	if node.Kind != wire.KindString {
		return 0, &MismatchError{Codec: "string", Reason: "node is not a string"}
	}
	return MatchExact, nil
}

func (c *stringCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	elem, boxed, ok := stringElemType(targetType)
	if !ok {
		return reflect.Value{}, &MismatchError{Codec: "string"}
	}
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}
	if node.Kind != wire.KindString {
		return reflect.Value{}, &BadValueError{Codec: "string", Reason: "node is not a string"}
	}
	v := reflect.New(elem).Elem()
	v.SetString(node.Str)
	if boxed {
		ptr := reflect.New(elem)
		ptr.Elem().Set(v)
		return ptr, nil
	}
	return v, nil
}

func (c *stringCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	v := native
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.String {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
	return wire.String(v.String()), nil
}
