package codec

import (
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

var interfaceType = reflect.TypeOf((*interface{})(nil)).Elem()

// objectCodec is the catch-all for a statically interface{}-typed parameter,
// field, or return value: the design's generic dispatcher that an
// object-array or object-map element recurses through when it carries no
// more specific static type. It never competes with a concrete codec (it
// only claims targetType.Kind()==reflect.Interface) and is registered last
// so every other codec gets first refusal.
type objectCodec struct {
	registry   *Registry
	TypeByName TypeByName
}

func (c *objectCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		return nativeType.Kind() == reflect.Interface
	}
	return false
}

func (c *objectCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	if targetType.Kind() != reflect.Interface {
		return 0, &MismatchError{Codec: "object"}
	}
	return MatchCompatible, nil
}

func (c *objectCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	if targetType.Kind() != reflect.Interface {
		return reflect.Value{}, &MismatchError{Codec: "object"}
	}
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}

	switch node.Kind {
	case wire.KindBool:
		return reflect.ValueOf(node.Bool), nil
	case wire.KindNumber:
		f, _ := node.AsFloat()
		return reflect.ValueOf(f), nil
	case wire.KindString:
		return reflect.ValueOf(node.Str), nil
	case wire.KindArray:
		out := reflect.MakeSlice(reflect.SliceOf(interfaceType), len(node.Array), len(node.Array))
		for i, e := range node.Array {
			v, err := c.registry.Unmarshal(st, interfaceType, e)
			if err != nil {
				return reflect.Value{}, &BadValueError{Codec: "object", Reason: err.Error()}
			}
			out.Index(i).Set(v)
		}
		return out, nil
	case wire.KindObject:
		return c.unmarshalObject(st, node)
	default:
		return reflect.Value{}, &BadValueError{Codec: "object", Reason: "unknown wire kind"}
	}
}

// unmarshalObject recognizes the same family of object shapes the
// concrete codecs do (reference, date, wrapped container, javaClass-hinted
// bean) before falling back to a plain string-keyed map, so a generic
// interface{} slot sees the same materialized value a statically typed one
// would.
func (c *objectCodec) unmarshalObject(st *state.State, node *wire.Value) (reflect.Value, error) {
	if handle, ok := referenceShape(node); ok && st.Resolver != nil {
		if instance, ok := st.Resolver.Lookup(handle); ok {
			return reflect.ValueOf(instance), nil
		}
	}

	if jc := node.Get("javaClass"); jc != nil && jc.Kind == wire.KindString {
		if jc.Str == dateJavaClass {
			return c.registry.Unmarshal(st, timeType, node)
		}
		if c.TypeByName != nil {
			if t, ok := c.TypeByName(jc.Str); ok {
				return c.registry.Unmarshal(st, t, node)
			}
		}
	}

	if kind, _, _ := containerShape(node); kind != "" {
		switch kind {
		case "list":
			return c.registry.Unmarshal(st, listType, node)
		case "set":
			return c.registry.Unmarshal(st, setType, node)
		case "map":
			return c.registry.Unmarshal(st, dictType, node)
		}
	}

	if prev, ok := st.PreviouslyUnmarshaled(node); ok {
		return prev, nil
	}
	out := reflect.MakeMapWithSize(dictType, len(node.Keys))
	st.RememberUnmarshaled(node, out)
	for _, k := range node.Keys {
		v, err := c.registry.Unmarshal(st, interfaceType, node.Fields[k])
		if err != nil {
			return reflect.Value{}, &BadValueError{Codec: "object", Reason: err.Error()}
		}
		out.SetMapIndex(reflect.ValueOf(k), v)
	}
	return out, nil
}

// Marshal is never reached in practice: Registry.Marshal unwraps any
// interface{}-kind value to its concrete dynamic type before picking a
// codec, so no codec's Marshal ever sees a native value of Kind()==Interface.
func (c *objectCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	return nil, &UnsupportedError{TypeName: native.Type().String()}
}
