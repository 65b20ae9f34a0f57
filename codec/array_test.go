package codec

import (
	"reflect"
	"testing"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

func TestArrayMarshalSlice(t *testing.T) {
	reg := NewRegistry(nil)
	st := state.New(nil)

	out, err := reg.Marshal(st, reflect.ValueOf([]int{1, 2, 3}), wire.Root("result"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != wire.KindArray || len(out.Array) != 3 {
		t.Fatalf("expected a 3-element array, got %v", out)
	}
}

func TestArrayUnmarshalFixedLengthMismatch(t *testing.T) {
	c := &arrayCodec{registry: NewRegistry(nil)}
	st := state.New(nil)

	var target [2]int
	node := wire.Array(wire.Number(1), wire.Number(2), wire.Number(3))

	if _, err := c.TryUnmarshal(st, reflect.TypeOf(target), node); err == nil {
		t.Fatalf("expected a fixed-array length mismatch to fail TryUnmarshal")
	}
}

func TestArrayTryUnmarshalAggregatesWorstElementMatch(t *testing.T) {
	c := &arrayCodec{registry: NewRegistry(nil)}
	st := state.New(nil)

	// One exact integral element, one fractional (compatible-only) element:
	// the worst of the two should win.
	node := wire.Array(wire.Number(1), wire.Number(1.5))
	m, err := c.TryUnmarshal(st, reflect.TypeOf([]int{}), node)
	if err != nil {
		t.Fatal(err)
	}
	if m != MatchCompatible {
		t.Fatalf("expected the aggregate match to be MatchCompatible, got %v", m)
	}
}

func TestArrayUnmarshalNullOnlyValidForSlice(t *testing.T) {
	c := &arrayCodec{registry: NewRegistry(nil)}
	st := state.New(nil)

	if _, err := c.TryUnmarshal(st, reflect.TypeOf([]int{}), wire.Null()); err != nil {
		t.Fatalf("expected null to be compatible with a slice, got %v", err)
	}
	if _, err := c.TryUnmarshal(st, reflect.TypeOf([2]int{}), wire.Null()); err == nil {
		t.Fatalf("expected null to be incompatible with a fixed-size array")
	}
}
