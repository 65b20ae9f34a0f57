package codec

import (
	"reflect"
	"time"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

var timeType = reflect.TypeOf(time.Time{})

const dateJavaClass = "time.Time"

// dateCodec emits {javaClass:"time.Time", time:<epoch-millis>} for
// time.Time values, and accepts either that shape or a bare epoch-millis
// number on unmarshal.
type dateCodec struct{}

func (c *dateCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		t := nativeType
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		return t == timeType
	}
	return jsonKind == wire.KindObject || jsonKind == wire.KindNumber || jsonKind == wire.KindNull
}

func (c *dateCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	boxed := targetType.Kind() == reflect.Ptr
	if node.IsNull() {
		if boxed {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "date", Reason: "null is incompatible with an unboxed time.Time"}
	}
	switch node.Kind {
	case wire.KindNumber:
		return MatchCompatible, nil
	case wire.KindObject:
		if jc := node.Get("javaClass"); jc != nil && jc.Kind == wire.KindString && jc.Str == dateJavaClass {
			if t := node.Get("time"); t != nil && t.Kind == wire.KindNumber {
				return MatchExact, nil
			}
		}
		return 0, &MismatchError{Codec: "date", Reason: "object is not a date shape"}
	default:
		return 0, &MismatchError{Codec: "date", Reason: "node is not a date shape"}
	}
}

func (c *dateCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	boxed := targetType.Kind() == reflect.Ptr
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}

	var millis float64
	switch node.Kind {
	case wire.KindNumber:
		millis, _ = node.AsFloat()
	case wire.KindObject:
		t := node.Get("time")
		if t == nil || t.Kind != wire.KindNumber {
			return reflect.Value{}, &BadValueError{Codec: "date", Reason: "missing time field"}
		}
		millis, _ = t.AsFloat()
	default:
		return reflect.Value{}, &BadValueError{Codec: "date", Reason: "node is not a date shape"}
	}

	value := time.UnixMilli(int64(millis)).UTC()
	if boxed {
		ptr := reflect.New(timeType)
		ptr.Elem().Set(reflect.ValueOf(value))
		return ptr, nil
	}
	return reflect.ValueOf(value), nil
}

func (c *dateCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	v := native
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t, ok := v.Interface().(time.Time)
	if !ok {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
	out := wire.Object()
	out.Set("javaClass", wire.String(dateJavaClass))
	out.Set("time", wire.Number(float64(t.UnixMilli())))
	return out, nil
}
