package codec

import (
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// arrayCodec handles plain Go arrays and slices (component 4.C's "array
// (typed and object)" family): each element is marshaled with the element
// type's own codec and the result is a bare JSON array, no javaClass
// wrapper. []interface{} is the "object array" branch: its elements recurse
// through the registry's generic dispatcher instead of a fixed element
// codec.
type arrayCodec struct {
	registry *Registry
}

func (c *arrayCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		k := nativeType.Kind()
		if nativeType == rawValueType {
			return false
		}
		return (k == reflect.Slice || k == reflect.Array) && nativeType != listType && nativeType != setType
	}
	return jsonKind == wire.KindArray || jsonKind == wire.KindNull
}

func (c *arrayCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	k := targetType.Kind()
	if k != reflect.Slice && k != reflect.Array {
		return 0, &MismatchError{Codec: "array"}
	}
	if node.IsNull() {
		if k == reflect.Slice {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "array", Reason: "null is incompatible with a fixed-size array"}
	}
	if node.Kind != wire.KindArray {
		return 0, &MismatchError{Codec: "array", Reason: "node is not an array"}
	}
	if k == reflect.Array && targetType.Len() != len(node.Array) {
		return 0, &MismatchError{Codec: "array", Reason: "length mismatch"}
	}

	elemType := targetType.Elem()
	worst := MatchExact
	for _, elem := range node.Array {
		m, err := c.registry.TryUnmarshal(st, elemType, elem)
		if err != nil {
			return 0, err
		}
		worst = Max(worst, m)
	}
	return worst, nil
}

func (c *arrayCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	k := targetType.Kind()
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}
	if node.Kind != wire.KindArray {
		return reflect.Value{}, &BadValueError{Codec: "array", Reason: "node is not an array"}
	}

	elemType := targetType.Elem()
	var out reflect.Value
	if k == reflect.Array {
		out = reflect.New(targetType).Elem()
	} else {
		out = reflect.MakeSlice(targetType, len(node.Array), len(node.Array))
	}

	for i, elem := range node.Array {
		v, err := c.registry.Unmarshal(st, elemType, elem)
		if err != nil {
			return reflect.Value{}, &BadValueError{Codec: "array", Reason: err.Error()}
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func (c *arrayCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	k := native.Kind()
	if k != reflect.Slice && k != reflect.Array {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}

	if k == reflect.Slice {
		switch st.MarshalVisit(native, path) {
		case state.VisitCycle, state.VisitDuplicate:
			return wire.Null(), nil
		}
		defer st.Leave(native)
	}

	elems := make([]*wire.Value, native.Len())
	for i := 0; i < native.Len(); i++ {
		v, err := c.registry.Marshal(st, native.Index(i), path.Append(wire.IndexToken(i)))
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return wire.Array(elems...), nil
}
