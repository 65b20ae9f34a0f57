package codec

import (
	"errors"
	"testing"
)

func TestMismatchErrorUnwraps(t *testing.T) {
	err := &MismatchError{Codec: "primitive", Reason: "not numeric"}
	if !errors.Is(err, ErrUnmarshalMismatch) {
		t.Fatalf("expected MismatchError to unwrap to ErrUnmarshalMismatch")
	}
}

func TestBadValueErrorUnwraps(t *testing.T) {
	err := &BadValueError{Codec: "enum", Reason: "unknown name"}
	if !errors.Is(err, ErrUnmarshalBadValue) {
		t.Fatalf("expected BadValueError to unwrap to ErrUnmarshalBadValue")
	}
}

func TestUnsupportedErrorUnwraps(t *testing.T) {
	err := &UnsupportedError{TypeName: "chan int"}
	if !errors.Is(err, ErrMarshalUnsupported) {
		t.Fatalf("expected UnsupportedError to unwrap to ErrMarshalUnsupported")
	}
}
