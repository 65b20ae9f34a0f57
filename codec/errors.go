package codec

import "fmt"

// Sentinel error values returned by codecs. Callers use errors.Is against
// these; the concrete errors returned by codecs wrap them with context.
var (
	// ErrUnmarshalMismatch means the codec is not applicable to the
	// requested (targetType, node) pair. Cheap, expected to happen often
	// during overload resolution.
	ErrUnmarshalMismatch = fmt.Errorf("codec: unmarshal mismatch")

	// ErrUnmarshalBadValue means the codec matched but the node's value
	// could not be converted (e.g. a string that doesn't parse as a
	// number, an unknown enum name).
	ErrUnmarshalBadValue = fmt.Errorf("codec: bad value")

	// ErrMarshalUnsupported means no codec claims the native value being
	// marshaled.
	ErrMarshalUnsupported = fmt.Errorf("codec: unsupported type")

	// ErrStaleHandle means a Reference/CallableReference node named a
	// handle that is no longer present in the owning bridge's reference
	// table.
	ErrStaleHandle = fmt.Errorf("codec: stale reference handle")
)

// MismatchError wraps ErrUnmarshalMismatch with the offending type pair.
type MismatchError struct {
	Codec  string
	Reason string
}

func (e *MismatchError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Codec, ErrUnmarshalMismatch)
	}
	return fmt.Sprintf("%s: %v: %s", e.Codec, ErrUnmarshalMismatch, e.Reason)
}

func (e *MismatchError) Unwrap() error { return ErrUnmarshalMismatch }

// BadValueError wraps ErrUnmarshalBadValue with the offending value's detail.
type BadValueError struct {
	Codec  string
	Reason string
}

func (e *BadValueError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Codec, ErrUnmarshalBadValue, e.Reason)
}

func (e *BadValueError) Unwrap() error { return ErrUnmarshalBadValue }

// UnsupportedError wraps ErrMarshalUnsupported with the offending type.
type UnsupportedError struct {
	TypeName string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMarshalUnsupported, e.TypeName)
}

func (e *UnsupportedError) Unwrap() error { return ErrMarshalUnsupported }
