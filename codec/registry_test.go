package codec

import (
	"reflect"
	"testing"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

func TestRegistryMarshalUnwrapsInterfaceAndNil(t *testing.T) {
	reg := NewRegistry(nil)
	st := state.New(nil)

	var iface interface{} = "hello"
	out, err := reg.Marshal(st, reflect.ValueOf(iface), wire.Root("x"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Str != "hello" {
		t.Fatalf("expected the interface to unwrap to its concrete string, got %v", out)
	}

	var nilPtr *int
	out, err = reg.Marshal(st, reflect.ValueOf(nilPtr), wire.Root("x"))
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsNull() {
		t.Fatalf("expected a nil pointer to marshal as null")
	}
}

func TestRegistryMarshalUnsupportedType(t *testing.T) {
	reg := NewRegistry(nil)
	st := state.New(nil)

	ch := make(chan int)
	if _, err := reg.Marshal(st, reflect.ValueOf(ch), wire.Root("x")); err == nil {
		t.Fatalf("expected an unsupported type (chan) to fail marshaling")
	}
}

func TestRegistryTryUnmarshalPicksBestAcrossCodecs(t *testing.T) {
	reg := NewRegistry(nil)
	st := state.New(nil)

	// float64 is claimed by only the primitive codec; a bare number against
	// it should score as an exact match.
	m, err := reg.TryUnmarshal(st, reflect.TypeOf(float64(0)), wire.Number(3))
	if err != nil {
		t.Fatal(err)
	}
	if m != MatchExact {
		t.Fatalf("expected MatchExact, got %v", m)
	}
}

func TestRegistryUnmarshalNoCodecApplies(t *testing.T) {
	reg := NewRegistry(nil)
	st := state.New(nil)

	_, err := reg.Unmarshal(st, reflect.TypeOf(make(chan int)), wire.Null())
	if err == nil {
		t.Fatalf("expected unmarshal into an unsupported type to fail")
	}
}

func TestRegistryWithTypeByNameWiresBeanAndContainer(t *testing.T) {
	reg := NewRegistry(nil)
	called := map[string]bool{}
	reg.WithTypeByName(func(name string) (reflect.Type, bool) {
		called[name] = true
		return nil, false
	})

	node := wire.Object()
	node.Set("javaClass", wire.String("some.Type"))
	_, _ = reg.Unmarshal(state.New(nil), reflect.TypeOf(&beanFixture{}), node)

	if !called["some.Type"] {
		t.Fatalf("expected WithTypeByName's resolver to be consulted during bean unmarshal")
	}
}

func TestRegistryWithReferencesRebindsResolver(t *testing.T) {
	reg := NewRegistry(nil)
	resolver := &fakeReferenceResolver{}
	reg.WithReferences(resolver)

	st := state.New(resolver)
	out, err := reg.Marshal(st, reflect.ValueOf(&refFixture{ID: 9}), wire.Root("x"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Get("objectID") == nil {
		t.Fatalf("expected the rebound reference codec to marshal refFixture by handle")
	}
}
