package codec

import (
	"encoding"
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// enumCodec handles Go's usual stand-in for a Java enum: a named type
// implementing encoding.TextMarshaler/TextUnmarshaler. Wire shape:
// {javaClass:"<type>", name:"<value>"}, matching how the design serializes
// enum constants by name rather than by ordinal.
type enumCodec struct{}

func addressableUnmarshaler(t reflect.Type) (reflect.Type, bool) {
	if t.Implements(textUnmarshalerType) {
		return t, true
	}
	if t.Kind() != reflect.Ptr && reflect.PtrTo(t).Implements(textUnmarshalerType) {
		return t, true
	}
	return nil, false
}

func (c *enumCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		if nativeType == timeType || nativeType == rawValueType {
			return false
		}
		if nativeType.Implements(textMarshalerType) {
			return true
		}
		if nativeType.Kind() != reflect.Ptr && reflect.PtrTo(nativeType).Implements(textMarshalerType) {
			return true
		}
		_, ok := addressableUnmarshaler(nativeType)
		return ok
	}
	return jsonKind == wire.KindObject
}

func (c *enumCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	if _, ok := addressableUnmarshaler(targetType); !ok {
		return 0, &MismatchError{Codec: "enum"}
	}
	if node.IsNull() {
		if targetType.Kind() == reflect.Ptr {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "enum", Reason: "null is incompatible with an unboxed enum"}
	}
	if node.Kind != wire.KindObject {
		return 0, &MismatchError{Codec: "enum", Reason: "node is not an enum shape"}
	}
	name := node.Get("name")
	if name == nil || name.Kind != wire.KindString {
		return 0, &MismatchError{Codec: "enum", Reason: "missing name field"}
	}
	return MatchExact, nil
}

func (c *enumCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}
	name := node.Get("name")
	if name == nil || name.Kind != wire.KindString {
		return reflect.Value{}, &BadValueError{Codec: "enum", Reason: "missing name field"}
	}

	elem := targetType
	boxed := targetType.Kind() == reflect.Ptr
	if boxed {
		elem = targetType.Elem()
	}

	ptr := reflect.New(elem)
	tu, ok := ptr.Interface().(encoding.TextUnmarshaler)
	if !ok {
		return reflect.Value{}, &BadValueError{Codec: "enum", Reason: "type does not implement TextUnmarshaler"}
	}
	if err := tu.UnmarshalText([]byte(name.Str)); err != nil {
		return reflect.Value{}, &BadValueError{Codec: "enum", Reason: err.Error()}
	}
	if boxed {
		return ptr, nil
	}
	return ptr.Elem(), nil
}

func (c *enumCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	v := native
	if v.Kind() != reflect.Ptr && v.CanAddr() && reflect.PtrTo(v.Type()).Implements(textMarshalerType) {
		v = v.Addr()
	}
	tm, ok := v.Interface().(encoding.TextMarshaler)
	if !ok {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return wire.Null(), nil
		}
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return wire.Null(), nil
	}
	text, err := tm.MarshalText()
	if err != nil {
		return nil, err
	}
	out := wire.Object()
	out.Set("javaClass", wire.String(native.Type().String()))
	out.Set("name", wire.String(string(text)))
	return out, nil
}
