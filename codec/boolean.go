package codec

import (
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// booleanCodec is a trivial pass-through for bool and *bool.
type booleanCodec struct{}

func boolElemType(t reflect.Type) (reflect.Type, bool, bool) {
	if t == nil {
		return nil, false, false
	}
	boxed := t.Kind() == reflect.Ptr
	elem := t
	if boxed {
		elem = t.Elem()
	}
	return elem, boxed, elem.Kind() == reflect.Bool
}

func (c *booleanCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		_, _, ok := boolElemType(nativeType)
		return ok
	}
	return jsonKind == wire.KindBool || jsonKind == wire.KindNull
}

func (c *booleanCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	_, boxed, ok := boolElemType(targetType)
	if !ok {
		return 0, &MismatchError{Codec: "boolean"}
	}
	if node.IsNull() {
		if boxed {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "boolean", Reason: "null is incompatible with an unboxed bool"}
	}
	if node.Kind != wire.KindBool {
		return 0, &MismatchError{Codec: "boolean", Reason: "node is not a boolean"}
	}
	return MatchExact, nil
}

func (c *booleanCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	elem, boxed, ok := boolElemType(targetType)
	if !ok {
		return reflect.Value{}, &MismatchError{Codec: "boolean"}
	}
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}
	if node.Kind != wire.KindBool {
		return reflect.Value{}, &BadValueError{Codec: "boolean", Reason: "node is not a boolean"}
	}
	v := reflect.New(elem).Elem()
	v.SetBool(node.Bool)
	if boxed {
		ptr := reflect.New(elem)
		ptr.Elem().Set(v)
		return ptr, nil
	}
	return v, nil
}

func (c *booleanCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	v := native
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Bool {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
	return wire.Bool(v.Bool()), nil
}
