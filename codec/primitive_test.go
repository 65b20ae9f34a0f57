package codec

import (
	"reflect"
	"testing"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

func TestPrimitiveTryUnmarshalExactVsCompatible(t *testing.T) {
	c := &primitiveCodec{}
	st := state.New(nil)

	m, err := c.TryUnmarshal(st, reflect.TypeOf(float64(0)), wire.Number(3.5))
	if err != nil || m != MatchExact {
		t.Fatalf("expected an exact match for float64, got %v, %v", m, err)
	}

	m, err = c.TryUnmarshal(st, reflect.TypeOf(int(0)), wire.Number(3))
	if err != nil || m != MatchExact {
		t.Fatalf("expected an exact match for an integral number into int, got %v, %v", m, err)
	}

	m, err = c.TryUnmarshal(st, reflect.TypeOf(int(0)), wire.Number(3.5))
	if err != nil || m != MatchCompatible {
		t.Fatalf("expected a compatible (not exact) match for a fractional number into int, got %v, %v", m, err)
	}

	m, err = c.TryUnmarshal(st, reflect.TypeOf(float64(0)), wire.String("3.5"))
	if err != nil || m != MatchCompatible {
		t.Fatalf("expected a compatible match for a numeric string into float64, got %v, %v", m, err)
	}
}

func TestPrimitiveNullRequiresBoxing(t *testing.T) {
	c := &primitiveCodec{}
	st := state.New(nil)

	if _, err := c.TryUnmarshal(st, reflect.TypeOf(int(0)), wire.Null()); err == nil {
		t.Fatalf("expected null to be incompatible with an unboxed int")
	}
	if _, err := c.TryUnmarshal(st, reflect.TypeOf((*int)(nil)), wire.Null()); err != nil {
		t.Fatalf("expected null to be compatible with a *int, got %v", err)
	}

	v, err := c.Unmarshal(st, reflect.TypeOf((*int)(nil)), wire.Null())
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNil() {
		t.Fatalf("expected a nil *int for a null node")
	}
}

func TestPrimitiveUnmarshalUnsignedAndBoxed(t *testing.T) {
	c := &primitiveCodec{}
	st := state.New(nil)

	v, err := c.Unmarshal(st, reflect.TypeOf(uint(0)), wire.Number(42))
	if err != nil {
		t.Fatal(err)
	}
	if v.Uint() != 42 {
		t.Fatalf("expected 42, got %v", v.Uint())
	}

	v, err = c.Unmarshal(st, reflect.TypeOf((*float64)(nil)), wire.Number(2.5))
	if err != nil {
		t.Fatal(err)
	}
	if v.Elem().Float() != 2.5 {
		t.Fatalf("expected a boxed 2.5, got %v", v.Elem().Float())
	}
}

func TestPrimitiveMarshalRoundTrip(t *testing.T) {
	c := &primitiveCodec{}
	st := state.New(nil)

	out, err := c.Marshal(st, reflect.ValueOf(uint8(200)), wire.Root("x"))
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := out.AsFloat(); f != 200 {
		t.Fatalf("expected 200, got %v", f)
	}

	neg := -7
	out, err = c.Marshal(st, reflect.ValueOf(&neg).Elem(), wire.Root("x"))
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := out.AsFloat(); f != -7 {
		t.Fatalf("expected -7, got %v", f)
	}
}
