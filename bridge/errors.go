package bridge

import "fmt"

// Error codes are stable wire integers, never renumbered.
const (
	CodeSuccess       = 0
	CodeRemoteError   = 490
	CodeClientError   = 550
	CodeParseError    = 590
	CodeNoMethod      = 591
	CodeUnmarshal     = 592
	CodeMarshal       = 593
)

// WireError is implemented by every error the dispatch pipeline can produce
// on the wire, so the envelope builder never has to guess a code.
type WireError interface {
	error
	Code() int
}

// ParseError reports a malformed request: not valid JSON, or missing a
// required field.
type ParseError struct{ Reason string }

func (e *ParseError) Error() string { return "parse: " + e.Reason }
func (e *ParseError) Code() int     { return CodeParseError }

// NoMethodError reports that method lookup, overload resolution, or arity
// checking failed.
type NoMethodError struct{ Reason string }

func (e *NoMethodError) Error() string { return "no method: " + e.Reason }
func (e *NoMethodError) Code() int     { return CodeNoMethod }

// UnmarshalError reports that a codec rejected an argument.
type UnmarshalError struct{ Reason string }

func (e *UnmarshalError) Error() string { return "unmarshal: " + e.Reason }
func (e *UnmarshalError) Code() int     { return CodeUnmarshal }

// MarshalError reports that a return value had no applicable codec.
type MarshalError struct{ Reason string }

func (e *MarshalError) Error() string { return "marshal: " + e.Reason }
func (e *MarshalError) Code() int     { return CodeMarshal }

// RemoteException reports that the invoked method returned a non-nil error
// or panicked. Trace is only populated for a recovered panic.
type RemoteException struct {
	Message string
	Trace   string
}

func (e *RemoteException) Error() string { return "remote exception: " + e.Message }
func (e *RemoteException) Code() int     { return CodeRemoteError }

// FixupError reports a malformed fixup path or a missing source node.
type FixupError struct{ Reason string }

func (e *FixupError) Error() string { return "fixup: " + e.Reason }
func (e *FixupError) Code() int     { return CodeParseError }

// NameConflictError is returned directly to RegisterClass callers; it never
// reaches the wire.
type NameConflictError struct{ Name string }

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("bridge: %q is already registered to a different class", e.Name)
}

// ScopeError is returned directly to RegisterReference/RegisterCallableReference
// callers when invoked on the global bridge, and to RegisterObject callers
// whose instance does not implement the given interface; it never reaches
// the wire.
type ScopeError struct{ Reason string }

func (e *ScopeError) Error() string { return "bridge: " + e.Reason }
