package codec

import (
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

var rawValueType = reflect.TypeOf(&wire.Value{})

// rawJSONCodec lets a handler declare a parameter or return value of type
// *wire.Value to receive/produce arbitrary JSON untouched, mirroring the
// design's raw-JSON pass-through serializer.
type rawJSONCodec struct{}

func (c *rawJSONCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		return nativeType == rawValueType
	}
	return true
}

func (c *rawJSONCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	if targetType != rawValueType {
		return 0, &MismatchError{Codec: "rawjson"}
	}
	return MatchExact, nil
}

func (c *rawJSONCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	if targetType != rawValueType {
		return reflect.Value{}, &MismatchError{Codec: "rawjson"}
	}
	return reflect.ValueOf(node), nil
}

func (c *rawJSONCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	if native.Type() != rawValueType {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
	v, _ := native.Interface().(*wire.Value)
	return v, nil
}
