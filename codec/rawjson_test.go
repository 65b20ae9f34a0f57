package codec

import (
	"reflect"
	"testing"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

func TestRawJSONPassesValueThroughUntouched(t *testing.T) {
	c := &rawJSONCodec{}
	st := state.New(nil)

	node := wire.Object()
	node.Set("whatever", wire.Array(wire.Number(1), wire.String("x")))

	v, err := c.Unmarshal(st, rawValueType, node)
	if err != nil {
		t.Fatal(err)
	}
	got := v.Interface().(*wire.Value)
	if got != node {
		t.Fatalf("expected the exact same *wire.Value back, not a copy")
	}

	out, err := c.Marshal(st, reflect.ValueOf(node), wire.Root("x"))
	if err != nil {
		t.Fatal(err)
	}
	if out != node {
		t.Fatalf("expected Marshal to hand back the same *wire.Value untouched")
	}
}

func TestRawJSONRejectsOtherTypes(t *testing.T) {
	c := &rawJSONCodec{}
	if c.CanSerialize(reflect.TypeOf(0), wire.KindNull) {
		t.Fatalf("expected rawJSONCodec to reject a concrete int type")
	}
}
