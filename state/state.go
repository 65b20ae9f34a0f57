// Package state implements the per-invocation graph tracker described as the
// SerializerState in the design: it detects duplicate and cyclic references
// while marshaling a native object graph into a wire.Value tree, and
// accumulates the FixUp scripts needed to rebuild that topology on the peer.
package state

import (
	"reflect"

	"github.com/poolborges/jabsorb/wire"
)

// ReferenceResolver is implemented by the owning bridge. It lets the
// reference/callable-reference codec assign and look up opaque handles
// without the codec package importing the bridge package.
type ReferenceResolver interface {
	// HandleFor returns the stable integer handle for instance, allocating
	// one on first use. ok is false if instance's type is not registered
	// as a reference or callable-reference type.
	HandleFor(instance interface{}) (handle int, callable bool, ok bool)

	// Lookup resolves a handle back into the instance it was minted for.
	// ok is false for unknown or stale handles.
	Lookup(handle int) (instance interface{}, ok bool)
}

// identityKey uniquely names a native value for cycle/duplicate detection.
// Only non-nil reference kinds (pointer, map, slice, chan, func) get
// tracked; keyFor does not track an interface-kind value itself, and
// everything else is compared by value and can never legitimately
// participate in a cycle.
type identityKey struct {
	kind    reflect.Kind
	pointer uintptr
}

func keyFor(v reflect.Value) (identityKey, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return identityKey{}, false
		}
		return identityKey{kind: v.Kind(), pointer: v.Pointer()}, true
	default:
		return identityKey{}, false
	}
}

// FixUp is a post-parse assignment (target := source) recorded while
// marshaling a graph with cycles or duplicate nodes.
type FixUp struct {
	Target wire.Path
	Source wire.Path
}

// State is created fresh for every Bridge.Call invocation and discarded once
// the envelope has been built.
type State struct {
	Resolver ReferenceResolver

	// seen maps a native identity to the path where it was first
	// encountered during the current marshal.
	seen map[identityKey]wire.Path

	// ancestors is the construction stack: the identities currently being
	// marshaled, innermost last. Used to distinguish a cycle (identity is
	// an ancestor) from a plain duplicate (identity was seen earlier but
	// isn't an ancestor).
	ancestors []identityKey

	// Fixups accumulates every fixup produced by MarshalVisit calls made
	// against this State.
	Fixups []FixUp

	// unmarshaled tracks JSON node identity -> materialized native value,
	// so codecs can special-case a node they're already in the middle of
	// constructing (mirrors the design's "identity map of JSON nodes to
	// materialized natives" for symmetry with the marshal-side map).
	unmarshaled map[*wire.Value]reflect.Value
}

// New creates an empty State bound to the supplied reference resolver.
func New(resolver ReferenceResolver) *State {
	return &State{
		Resolver:    resolver,
		seen:        make(map[identityKey]wire.Path),
		unmarshaled: make(map[*wire.Value]reflect.Value),
	}
}

// VisitResult reports what MarshalVisit discovered about a native value.
type VisitResult int

const (
	// VisitFirst means this is the first time the value has been seen;
	// the caller should marshal it normally and call Leave when done.
	VisitFirst VisitResult = iota
	// VisitCycle means the value is one of its own ancestors; the caller
	// must emit a null placeholder and not recurse.
	VisitCycle
	// VisitDuplicate means the value was seen earlier in this marshal but
	// isn't an ancestor; same placeholder treatment as VisitCycle.
	VisitDuplicate
)

// MarshalVisit records that native is about to be marshaled at path. For
// non-reference kinds (anything keyFor doesn't track, including all
// scalars and strings) it always returns VisitFirst and Leave is a no-op.
func (s *State) MarshalVisit(native reflect.Value, path wire.Path) VisitResult {
	key, ok := keyFor(native)
	if !ok {
		return VisitFirst
	}

	if firstPath, exists := s.seen[key]; exists {
		s.Fixups = append(s.Fixups, FixUp{Target: path, Source: firstPath})
		return s.classify(key)
	}

	s.seen[key] = path
	s.ancestors = append(s.ancestors, key)
	return VisitFirst
}

func (s *State) classify(key identityKey) VisitResult {
	for _, a := range s.ancestors {
		if a == key {
			return VisitCycle
		}
	}
	return VisitDuplicate
}

// Leave pops native off the ancestor stack. Must be called exactly once for
// every MarshalVisit call that returned VisitFirst, after the value's
// children (if any) have been marshaled.
func (s *State) Leave(native reflect.Value) {
	key, ok := keyFor(native)
	if !ok {
		return
	}
	for i := len(s.ancestors) - 1; i >= 0; i-- {
		if s.ancestors[i] == key {
			s.ancestors = append(s.ancestors[:i], s.ancestors[i+1:]...)
			return
		}
	}
}

// RememberUnmarshaled associates a decoded node with the native value built
// from it, so that a fixup applied later against the same node position can
// be resolved without re-running the codec.
func (s *State) RememberUnmarshaled(node *wire.Value, native reflect.Value) {
	s.unmarshaled[node] = native
}

// PreviouslyUnmarshaled returns the native value previously recorded for
// node, if any.
func (s *State) PreviouslyUnmarshaled(node *wire.Value) (reflect.Value, bool) {
	v, ok := s.unmarshaled[node]
	return v, ok
}
