package codec

import (
	"reflect"
	"testing"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

type refFixture struct{ ID int }

type fakeReferenceResolver struct {
	byHandle map[int]interface{}
	next     int
}

func (f *fakeReferenceResolver) IsReferenceType(t reflect.Type) bool {
	return t == reflect.TypeOf(&refFixture{})
}

func (f *fakeReferenceResolver) MarshalHandle(instance interface{}) (int, bool, bool) {
	if _, ok := instance.(*refFixture); !ok {
		return 0, false, false
	}
	f.next++
	if f.byHandle == nil {
		f.byHandle = map[int]interface{}{}
	}
	f.byHandle[f.next] = instance
	return f.next, false, true
}

func (f *fakeReferenceResolver) HandleFor(instance interface{}) (int, bool, bool) {
	return f.MarshalHandle(instance)
}

func (f *fakeReferenceResolver) Lookup(handle int) (interface{}, bool) {
	v, ok := f.byHandle[handle]
	return v, ok
}

func TestReferenceMarshalMintsHandle(t *testing.T) {
	resolver := &fakeReferenceResolver{}
	c := &referenceCodec{resolver: resolver}
	st := state.New(resolver)

	out, err := c.Marshal(st, reflect.ValueOf(&refFixture{ID: 1}), wire.Root("result"))
	if err != nil {
		t.Fatal(err)
	}
	oid := out.Get("objectID")
	if oid == nil {
		t.Fatalf("expected an objectID field on the wire")
	}
	if jt := out.Get("JSONRPCType"); jt == nil || jt.Str != "Reference" {
		t.Fatalf("expected JSONRPCType=Reference for a non-callable reference, got %v", jt)
	}
}

func TestReferenceUnmarshalResolvesHandle(t *testing.T) {
	resolver := &fakeReferenceResolver{}
	c := &referenceCodec{resolver: resolver}
	st := state.New(resolver)

	instance := &refFixture{ID: 5}
	handle, _, _ := resolver.MarshalHandle(instance)

	node := wire.Object()
	node.Set("objectID", wire.Number(float64(handle)))

	v, err := c.Unmarshal(st, reflect.TypeOf(&refFixture{}), node)
	if err != nil {
		t.Fatal(err)
	}
	if v.Interface().(*refFixture) != instance {
		t.Fatalf("expected the resolved instance to be the same pointer")
	}
}

func TestReferenceTryUnmarshalStaleHandle(t *testing.T) {
	resolver := &fakeReferenceResolver{}
	c := &referenceCodec{resolver: resolver}
	st := state.New(resolver)

	node := wire.Object()
	node.Set("objectID", wire.Number(999))

	if _, err := c.TryUnmarshal(st, reflect.TypeOf(&refFixture{}), node); err == nil {
		t.Fatalf("expected a stale handle to be rejected")
	}
}

func TestReferenceTryUnmarshalWithoutResolverConfigured(t *testing.T) {
	c := &referenceCodec{resolver: nil}
	st := state.New(nil)

	node := wire.Object()
	node.Set("objectID", wire.Number(1))
	if _, err := c.TryUnmarshal(st, reflect.TypeOf(&refFixture{}), node); err == nil {
		t.Fatalf("expected an unconfigured resolver to reject every reference node")
	}
}
