package codec

import (
	"reflect"
	"sort"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// List, Set and Dict are the concrete container types the container codec
// marshals with a javaClass wrapper (component 4.C's "list/set/map/
// dictionary containers" family). They also serve as the "default concrete
// type that satisfies the requested interface" fallback described in the
// design when a javaClass hint on the wire doesn't name a registered type.
type (
	List []interface{}
	Set  []interface{}
	Dict map[string]interface{}
)

var (
	listType = reflect.TypeOf(List{})
	setType  = reflect.TypeOf(Set{})
	dictType = reflect.TypeOf(Dict{})
)

// TypeByName resolves a javaClass string to a registered concrete type, used
// to honor a container's or bean's javaClass hint. The bridge wires this to
// its class table; a nil resolver (the default) means javaClass hints on
// containers are always ignored in favor of List/Set/Dict.
type TypeByName func(name string) (reflect.Type, bool)

// containerCodec implements the wrapped list/set/map wire shape. Plain Go
// maps other than Dict are also accepted for marshaling convenience, keyed
// by their Go type name.
type containerCodec struct {
	registry   *Registry
	TypeByName TypeByName
}

func (c *containerCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		if nativeType == listType || nativeType == setType || nativeType == dictType {
			return true
		}
		return nativeType.Kind() == reflect.Map
	}
	return jsonKind == wire.KindObject || jsonKind == wire.KindNull
}

func containerShape(node *wire.Value) (kind string, payload *wire.Value, javaClass string) {
	if node == nil || node.Kind != wire.KindObject {
		return "", nil, ""
	}
	for _, key := range []string{"list", "set", "map"} {
		if payload = node.Get(key); payload != nil {
			kind = key
			break
		}
	}
	if jc := node.Get("javaClass"); jc != nil && jc.Kind == wire.KindString {
		javaClass = jc.Str
	}
	return
}

func (c *containerCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	if targetType.Kind() != reflect.Map && targetType != listType && targetType != setType && targetType != dictType {
		return 0, &MismatchError{Codec: "container"}
	}
	if node.IsNull() {
		return MatchCompatible, nil
	}
	kind, _, _ := containerShape(node)
	if kind == "" {
		return 0, &MismatchError{Codec: "container", Reason: "object is not a list/set/map shape"}
	}
	if targetType == listType && kind != "list" {
		return 0, &MismatchError{Codec: "container", Reason: "shape/type mismatch"}
	}
	if targetType == setType && kind != "set" {
		return 0, &MismatchError{Codec: "container", Reason: "shape/type mismatch"}
	}
	if (targetType == dictType || targetType.Kind() == reflect.Map) && kind != "map" {
		return 0, &MismatchError{Codec: "container", Reason: "shape/type mismatch"}
	}
	return MatchExact, nil
}

func (c *containerCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}

	if prev, ok := st.PreviouslyUnmarshaled(node); ok {
		return prev, nil
	}

	kind, payload, javaClass := containerShape(node)
	if kind == "" {
		return reflect.Value{}, &BadValueError{Codec: "container", Reason: "object is not a list/set/map shape"}
	}

	// Honor a resolvable javaClass hint over the static target, mirroring
	// the bean codec's override rule.
	if javaClass != "" && c.TypeByName != nil {
		if t, ok := c.TypeByName(javaClass); ok && t.AssignableTo(targetType) {
			targetType = t
		}
	}

	switch kind {
	case "list", "set":
		elemType := reflect.TypeOf((*interface{})(nil)).Elem()
		out := reflect.MakeSlice(reflect.SliceOf(elemType), len(payload.Array), len(payload.Array))
		st.RememberUnmarshaled(node, out)
		for i, e := range payload.Array {
			v, err := c.registry.Unmarshal(st, elemType, e)
			if err != nil {
				return reflect.Value{}, &BadValueError{Codec: "container", Reason: err.Error()}
			}
			out.Index(i).Set(v)
		}
		converted := reflect.New(targetType).Elem()
		converted.Set(out.Convert(targetType))
		return converted, nil
	case "map":
		elemType := reflect.TypeOf((*interface{})(nil)).Elem()
		mt := targetType
		if mt.Kind() != reflect.Map {
			mt = dictType
		}
		out := reflect.MakeMapWithSize(mt, len(payload.Keys))
		st.RememberUnmarshaled(node, out)
		for _, k := range payload.Keys {
			v, err := c.registry.Unmarshal(st, elemType, payload.Fields[k])
			if err != nil {
				return reflect.Value{}, &BadValueError{Codec: "container", Reason: err.Error()}
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(mt.Key()), v.Convert(mt.Elem()))
		}
		if mt != targetType {
			converted := reflect.New(targetType).Elem()
			converted.Set(out.Convert(targetType))
			return converted, nil
		}
		return out, nil
	default:
		return reflect.Value{}, &BadValueError{Codec: "container", Reason: "unknown container shape"}
	}
}

func (c *containerCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	switch st.MarshalVisit(native, path) {
	case state.VisitCycle, state.VisitDuplicate:
		return wire.Null(), nil
	}
	defer st.Leave(native)

	out := wire.Object()
	out.Set("javaClass", wire.String(native.Type().String()))

	switch native.Type() {
	case listType, setType:
		key := "list"
		if native.Type() == setType {
			key = "set"
		}
		elems := make([]*wire.Value, native.Len())
		for i := 0; i < native.Len(); i++ {
			v, err := c.registry.Marshal(st, native.Index(i), path.Append(wire.IndexToken(i)))
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		out.Set(key, wire.Array(elems...))
		return out, nil
	default:
		if native.Kind() != reflect.Map {
			return nil, &UnsupportedError{TypeName: native.Type().String()}
		}
		payload := wire.Object()
		keys := native.MapKeys()
		strKeys := make([]string, len(keys))
		byStr := make(map[string]reflect.Value, len(keys))
		for i, k := range keys {
			s := formatMapKey(k)
			strKeys[i] = s
			byStr[s] = k
		}
		sort.Strings(strKeys)
		for _, s := range strKeys {
			v, err := c.registry.Marshal(st, native.MapIndex(byStr[s]), path.Append(wire.FieldToken(s)))
			if err != nil {
				return nil, err
			}
			payload.Set(s, v)
		}
		out.Set("map", payload)
		return out, nil
	}
}

func formatMapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return reflect.ValueOf(k.Interface()).String()
}
