package codec

import (
	"reflect"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// referenceCodec marshals a value as an opaque handle rather than by value,
// for whatever types the resolver (normally the bridge's registration
// tables) reports as reference types, and reconstructs a live instance from
// a handle already known to the current State on unmarshal.
//
// Wire shape: {javaClass:"<type>", objectID:<handle>, JSONRPCType:
// "Reference"|"CallableReference"}, mirroring the design's opaque-handle
// references while keeping the callable/non-callable distinction visible on
// the wire.
type referenceCodec struct {
	resolver ReferenceMarshaler
}

func (c *referenceCodec) CanSerialize(nativeType reflect.Type, jsonKind wire.Kind) bool {
	if nativeType != nil {
		return c.resolver != nil && c.resolver.IsReferenceType(nativeType)
	}
	return jsonKind == wire.KindObject
}

func referenceShape(node *wire.Value) (handle int, ok bool) {
	if node == nil || node.Kind != wire.KindObject {
		return 0, false
	}
	oid := node.Get("objectID")
	if oid == nil || oid.Kind != wire.KindNumber {
		return 0, false
	}
	f, _ := oid.AsFloat()
	return int(f), true
}

func (c *referenceCodec) TryUnmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (Match, error) {
	if c.resolver == nil || st.Resolver == nil {
		return 0, &MismatchError{Codec: "reference", Reason: "no reference resolver configured"}
	}
	if node.IsNull() {
		return MatchCompatible, nil
	}
	handle, ok := referenceShape(node)
	if !ok {
		return 0, &MismatchError{Codec: "reference", Reason: "object is not a reference shape"}
	}
	instance, ok := st.Resolver.Lookup(handle)
	if !ok {
		return 0, &BadValueError{Codec: "reference", Reason: "stale or unknown handle"}
	}
	if !reflect.TypeOf(instance).AssignableTo(targetType) && targetType.Kind() != reflect.Interface {
		return 0, &MismatchError{Codec: "reference", Reason: "referenced instance is not assignable to target"}
	}
	return MatchExact, nil
}

func (c *referenceCodec) Unmarshal(st *state.State, targetType reflect.Type, node *wire.Value) (reflect.Value, error) {
	if node.IsNull() {
		return reflect.Zero(targetType), nil
	}
	handle, ok := referenceShape(node)
	if !ok {
		return reflect.Value{}, &BadValueError{Codec: "reference", Reason: "object is not a reference shape"}
	}
	instance, ok := st.Resolver.Lookup(handle)
	if !ok {
		return reflect.Value{}, &BadValueError{Codec: "reference", Reason: "stale or unknown handle"}
	}
	return reflect.ValueOf(instance), nil
}

func (c *referenceCodec) Marshal(st *state.State, native reflect.Value, path wire.Path) (*wire.Value, error) {
	instance := native.Interface()
	handle, callable, ok := c.resolver.MarshalHandle(instance)
	if !ok {
		return nil, &UnsupportedError{TypeName: native.Type().String()}
	}
	jsonRPCType := "Reference"
	if callable {
		jsonRPCType = "CallableReference"
	}
	out := wire.Object()
	out.Set("javaClass", wire.String(native.Type().String()))
	out.Set("objectID", wire.Number(float64(handle)))
	out.Set("JSONRPCType", wire.String(jsonRPCType))
	return out, nil
}
