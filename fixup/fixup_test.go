package fixup

import (
	"testing"

	"github.com/poolborges/jabsorb/wire"
)

func TestParseStringSingle(t *testing.T) {
	pairs, err := ParseString(`result[1]=result[0]`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Target.String() != "result[1]" || pairs[0].Source.String() != "result[0]" {
		t.Fatalf("unexpected pair: %+v", pairs[0])
	}
}

func TestParseStringMultipleAndQuotedField(t *testing.T) {
	pairs, err := ParseString(`result["next"]=result;result[0]=result[1]`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Target.String() != `result["next"]` {
		t.Fatalf("unexpected target: %s", pairs[0].Target.String())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pairs := []Pair{
		{Target: wire.Root("result").Append(wire.IndexToken(1)), Source: wire.Root("result").Append(wire.IndexToken(0))},
	}
	node := Encode(pairs)
	if node == nil {
		t.Fatalf("Encode returned nil for non-empty pairs")
	}

	decoded, err := Decode(node)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Target.String() != "result[1]" || decoded[0].Source.String() != "result[0]" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestEncodeEmpty(t *testing.T) {
	if node := Encode(nil); node != nil {
		t.Fatalf("expected nil for empty pairs, got %v", node)
	}
}

func TestApplyDuplicate(t *testing.T) {
	// Apply walks paths from the node that their root token names.
	root := wire.Array(wire.Number(42), wire.Null())

	pairs := []Pair{
		{Target: wire.Root("result").Append(wire.IndexToken(1)), Source: wire.Root("result").Append(wire.IndexToken(0))},
	}
	if err := Apply(root, pairs); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if root.Array[1].Kind != wire.KindNumber {
		t.Fatalf("expected index 1 to be patched to a number, got %v", root.Array[1].Kind)
	}
}

func TestApplyMissingSource(t *testing.T) {
	root := wire.Array(wire.Number(1))

	pairs := []Pair{
		{Target: wire.Root("result").Append(wire.IndexToken(0)), Source: wire.Root("result").Append(wire.IndexToken(5))},
	}
	if err := Apply(root, pairs); err == nil {
		t.Fatalf("expected error for missing source")
	}
}

func TestDecodeStructuredArray(t *testing.T) {
	node := wire.Array(
		wire.Array(
			wire.Array(wire.String("result"), wire.String("[1]")),
			wire.Array(wire.String("result"), wire.String("[0]")),
		),
	)
	pairs, err := Decode(node)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Target.String() != "result[1]" {
		t.Fatalf("unexpected decode: %+v", pairs)
	}
}
