package codec

import (
	"math"
	"reflect"
	"strconv"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

var (
	intKinds = map[reflect.Kind]bool{
		reflect.Int: true, reflect.Int8: true, reflect.Int16: true,
		reflect.Int32: true, reflect.Int64: true,
		reflect.Uint: true, reflect.Uint8: true, reflect.Uint16: true,
		reflect.Uint32: true, reflect.Uint64: true,
	}
	floatKinds = map[reflect.Kind]bool{reflect.Float32: true, reflect.Float64: true}
)

// primitiveCodec handles Go's numeric kinds, both unboxed (int, float64, ...)
// and boxed (*int, *float64, ...). It is the codec for component 4.C's
// "primitives, boxed numbers" family.
type primitiveCodec struct{}

func numericElemType(t reflect.Type) (reflect.Type, bool, bool) {
	if t == nil {
		return nil, false, false
	}
	boxed := t.Kind() == reflect.Ptr
	elem := t
	if boxed {
		elem = t.Elem()
	}
	if intKinds[elem.Kind()] || floatKinds[elem.Kind()] {
		return elem, boxed, true
	}
	return nil, false, false
}

// integerFitsExactly reports whether f is a whole number that round-trips
// losslessly through kind's range, used to score a wire number as an exact
// match only for the integer width/signedness it actually fits, rather than
// always favoring the widest declared candidate (§4.C: "exact if
// widths/signedness match, otherwise compatible").
func integerFitsExactly(f float64, kind reflect.Kind) bool {
	if f != math.Trunc(f) {
		return false
	}
	switch kind {
	case reflect.Int8:
		return f >= math.MinInt8 && f <= math.MaxInt8
	case reflect.Int16:
		return f >= math.MinInt16 && f <= math.MaxInt16
	case reflect.Int32:
		return f >= math.MinInt32 && f <= math.MaxInt32
	case reflect.Int, reflect.Int64:
		return f >= math.MinInt64 && f <= math.MaxInt64
	case reflect.Uint8:
		return f >= 0 && f <= math.MaxUint8
	case reflect.Uint16:
		return f >= 0 && f <= math.MaxUint16
	case reflect.Uint32:
		return f >= 0 && f <= math.MaxUint32
	case reflect.Uint, reflect.Uint64:
		return f >= 0 && f <= math.MaxUint64
	default:
		return false
	}
}

func (c *primitiveCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		_, _, ok := numericElemType(nativeType)
		return ok
	}
	return jsonKind == wire.KindNumber || jsonKind == wire.KindString || jsonKind == wire.KindNull
}

func (c *primitiveCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	elem, boxed, ok := numericElemType(targetType)
	if !ok {
		return 0, &MismatchError{Codec: "primitive", Reason: "not a numeric type"}
	}

	if node.IsNull() {
		if boxed {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "primitive", Reason: "null is incompatible with an unboxed numeric"}
	}

	switch node.Kind {
	case wire.KindNumber:
		if elem.Kind() == reflect.Float64 {
			return MatchExact, nil
		}
		if f, _ := node.AsFloat(); integerFitsExactly(f, elem.Kind()) {
			return MatchExact, nil
		}
		return MatchCompatible, nil
	case wire.KindString:
		if _, err := strconv.ParseFloat(node.Str, 64); err == nil {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "primitive", Reason: "string does not parse as a number"}
	default:
		return 0, &MismatchError{Codec: "primitive", Reason: "node is not numeric"}
	}
}

func (c *primitiveCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	elem, boxed, ok := numericElemType(targetType)
	if !ok {
		return reflect.Value{}, &MismatchError{Codec: "primitive"}
	}

	if node.IsNull() {
		if !boxed {
			return reflect.Value{}, &BadValueError{Codec: "primitive", Reason: "null for unboxed numeric"}
		}
		return reflect.Zero(targetType), nil
	}

	var f float64
	switch node.Kind {
	case wire.KindNumber:
		f, _ = node.AsFloat()
	case wire.KindString:
		var err error
		f, err = strconv.ParseFloat(node.Str, 64)
		if err != nil {
			return reflect.Value{}, &BadValueError{Codec: "primitive", Reason: err.Error()}
		}
	default:
		return reflect.Value{}, &BadValueError{Codec: "primitive", Reason: "node is not numeric"}
	}

	v := reflect.New(elem).Elem()
	switch {
	case intKinds[elem.Kind()] && (elem.Kind() == reflect.Uint || elem.Kind() == reflect.Uint8 || elem.Kind() == reflect.Uint16 || elem.Kind() == reflect.Uint32 || elem.Kind() == reflect.Uint64):
		v.SetUint(uint64(f))
	case intKinds[elem.Kind()]:
		v.SetInt(int64(f))
	default:
		v.SetFloat(f)
	}

	if boxed {
		ptr := reflect.New(elem)
		ptr.Elem().Set(v)
		return ptr, nil
	}
	return v, nil
}

func (c *primitiveCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	v := native
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch {
	case intKinds[v.Kind()] && isUnsignedKind(v.Kind()):
		return wire.Number(float64(v.Uint())), nil
	case intKinds[v.Kind()]:
		return wire.Number(float64(v.Int())), nil
	case floatKinds[v.Kind()]:
		return wire.Number(v.Float()), nil
	default:
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
}

func isUnsignedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
