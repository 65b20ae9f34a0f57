package codec

import (
	"reflect"
	"strings"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// beanCodec is the fallback codec for plain structs: the design's generic
// "bean" serializer that walks exported fields reflectively rather than
// requiring a hand-written serializer per type. Wire shape:
// {javaClass:"<type>", <field>: <value>, ...}.
type beanCodec struct {
	registry   *Registry
	TypeByName TypeByName
}

func isBeanType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

// beanFieldName returns the wire name for a struct field, honoring a
// `jsonrpc:"name"` tag when present, and reports whether the field should be
// skipped entirely (unexported, or tagged jsonrpc:"-").
func beanFieldName(f reflect.StructField) (string, bool) {
	if f.PkgPath != "" {
		return "", true
	}
	tag := f.Tag.Get("jsonrpc")
	if tag == "-" {
		return "", true
	}
	if tag == "" {
		return f.Name, false
	}
	if idx := strings.IndexByte(tag, ','); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return f.Name, false
	}
	return tag, false
}

func (c *beanCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		if nativeType == rawValueType {
			return false
		}
		return isBeanType(nativeType)
	}
	return jsonKind == wire.KindObject || jsonKind == wire.KindNull
}

func structOf(targetType reflect.Type) (reflect.Type, bool) {
	t := targetType
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

func (c *beanCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	structType, ok := structOf(targetType)
	if !ok || structType == timeType {
		return 0, &MismatchError{Codec: "bean"}
	}
	if node.IsNull() {
		if targetType.Kind() == reflect.Ptr {
			return MatchCompatible, nil
		}
		return 0, &MismatchError{Codec: "bean", Reason: "null is incompatible with an unboxed struct"}
	}
	if node.Kind != wire.KindObject {
		return 0, &MismatchError{Codec: "bean", Reason: "node is not an object"}
	}

	worst := MatchExact
	for i := 0; i < structType.NumField(); i++ {
		name, skip := beanFieldName(structType.Field(i))
		if skip {
			continue
		}
		child := node.Get(name)
		if child == nil {
			worst = Max(worst, MatchCompatible)
			continue
		}
		m, err := c.registry.TryUnmarshal(st, structType.Field(i).Type, child)
		if err != nil {
			return 0, err
		}
		worst = Max(worst, m)
	}
	return worst, nil
}

func (c *beanCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	structType, ok := structOf(targetType)
	if !ok {
		return reflect.Value{}, &MismatchError{Codec: "bean"}
	}
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}

	// Honor node identity: if this exact wire node was already unmarshaled
	// earlier in the same call (because an inbound fixup aliased it here),
	// hand back the same native pointer instead of building a second copy,
	// so that duplicate/cyclic references survive the request-side round
	// trip symmetrically with the marshal side (§4.D).
	if targetType.Kind() == reflect.Ptr {
		if prev, ok := st.PreviouslyUnmarshaled(node); ok {
			return prev, nil
		}
	}

	if c.TypeByName != nil {
		if jc := node.Get("javaClass"); jc != nil && jc.Kind == wire.KindString {
			if t, ok := c.TypeByName(jc.Str); ok {
				if st, ok2 := structOf(t); ok2 && (t.AssignableTo(targetType) || targetType.Kind() == reflect.Interface) {
					structType = st
				}
			}
		}
	}

	ptr := reflect.New(structType)
	if targetType.Kind() == reflect.Ptr {
		// Record identity before descending into fields: a field that
		// refers back to this same node (an inbound cycle fixup) must see
		// this pointer already present in the map when it looks it up.
		st.RememberUnmarshaled(node, ptr)
	}
	elem := ptr.Elem()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		name, skip := beanFieldName(field)
		if skip {
			continue
		}
		child := node.Get(name)
		if child == nil {
			continue
		}
		v, err := c.registry.Unmarshal(st, field.Type, child)
		if err != nil {
			return reflect.Value{}, &BadValueError{Codec: "bean", Reason: field.Name + ": " + err.Error()}
		}
		elem.Field(i).Set(v)
	}

	if targetType.Kind() == reflect.Ptr {
		return ptr, nil
	}
	return elem, nil
}

func (c *beanCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	structVal := native
	if native.Kind() == reflect.Ptr {
		switch st.MarshalVisit(native, path) {
		case state.VisitCycle, state.VisitDuplicate:
			return wire.Null(), nil
		}
		defer st.Leave(native)
		structVal = native.Elem()
	}
	if structVal.Kind() != reflect.Struct {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}

	out := wire.Object()
	out.Set("javaClass", wire.String(structVal.Type().String()))
	for i := 0; i < structVal.NumField(); i++ {
		field := structVal.Type().Field(i)
		name, skip := beanFieldName(field)
		if skip {
			continue
		}
		fieldVal := structVal.Field(i)
		if isNilable(fieldVal) && fieldVal.IsNil() {
			continue
		}
		child, err := c.registry.Marshal(st, fieldVal, path.Append(wire.FieldToken(name)))
		if err != nil {
			return nil, err
		}
		out.Set(name, child)
	}
	return out, nil
}
