// Package fixup implements the post-parse assignment scripts ("fixups")
// that let a duplicate-or-cyclic object graph survive a JSON round trip: the
// marshaler leaves a null placeholder where a duplicate/cycle was detected
// and records a (target, source) path pair; the applier replays those pairs
// against the freshly decoded tree before it reaches application code.
package fixup

import (
	"strings"

	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// Pair mirrors state.FixUp on the wire: a target path to overwrite and the
// source path to copy from.
type Pair struct {
	Target wire.Path
	Source wire.Path
}

// FromState converts the fixups a State accumulated during marshal into the
// Pairs that this package's Encode takes and Decode returns.
func FromState(fixups []state.FixUp) []Pair {
	out := make([]Pair, len(fixups))
	for i, f := range fixups {
		out[i] = Pair{Target: f.Target, Source: f.Source}
	}
	return out
}

// Encode renders pairs as the structured array-of-pairs wire form:
// [[target_tokens...], [source_tokens...]], ...]. Returns nil if pairs is
// empty, so callers can omit the fixups field entirely.
func Encode(pairs []Pair) *wire.Value {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]*wire.Value, len(pairs))
	for i, p := range pairs {
		out[i] = wire.Array(tokenArray(p.Target), tokenArray(p.Source))
	}
	return wire.Array(out...)
}

func tokenArray(p wire.Path) *wire.Value {
	toks := p.Tokens()
	elems := make([]*wire.Value, len(toks))
	for i, t := range toks {
		elems[i] = wire.String(t)
	}
	return wire.Array(elems...)
}

// Decode accepts either wire form the design allows on input: the
// structured array-of-pairs (node.Kind == wire.KindArray) or the legacy
// semicolon-joined string (node.Kind == wire.KindString).
func Decode(node *wire.Value) ([]Pair, error) {
	if node == nil || node.IsNull() {
		return nil, nil
	}
	switch node.Kind {
	case wire.KindString:
		return ParseString(node.Str)
	case wire.KindArray:
		return decodeStructured(node)
	default:
		return nil, &Error{Reason: "fixups field is neither a string nor an array"}
	}
}

func decodeStructured(node *wire.Value) ([]Pair, error) {
	pairs := make([]Pair, 0, len(node.Array))
	for _, entry := range node.Array {
		if entry.Kind != wire.KindArray || len(entry.Array) != 2 {
			return nil, &Error{Reason: "malformed fixup pair"}
		}
		target, err := pathFromArray(entry.Array[0])
		if err != nil {
			return nil, err
		}
		source, err := pathFromArray(entry.Array[1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Target: target, Source: source})
	}
	return pairs, nil
}

func pathFromArray(node *wire.Value) (wire.Path, error) {
	if node.Kind != wire.KindArray {
		return nil, &Error{Reason: "fixup path is not an array of tokens"}
	}
	tokens := make([]string, len(node.Array))
	for i, tok := range node.Array {
		if tok.Kind != wire.KindString {
			return nil, &Error{Reason: "fixup path token is not a string"}
		}
		tokens[i] = tok.Str
	}
	p, err := wire.ParseTokens(tokens)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	return p, nil
}

// ParseString parses the legacy semicolon-separated `lhs=rhs;lhs=rhs` form.
func ParseString(s string) ([]Pair, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	pairs := make([]Pair, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return nil, &Error{Reason: "malformed fixup pair " + part}
		}
		target, err := wire.ParseFlat(part[:eq])
		if err != nil {
			return nil, &Error{Reason: err.Error()}
		}
		source, err := wire.ParseFlat(part[eq+1:])
		if err != nil {
			return nil, &Error{Reason: err.Error()}
		}
		pairs = append(pairs, Pair{Target: target, Source: source})
	}
	return pairs, nil
}

// Apply replays each pair against root in order: tree[target] := tree[source].
// The target path's last element is overwritten; every earlier element of
// both paths must already resolve to an existing node.
func Apply(root *wire.Value, pairs []Pair) error {
	for _, p := range pairs {
		value := p.Source.Get(root)
		if value == nil {
			return &Error{Reason: "missing source " + p.Source.String()}
		}
		if !p.Target.Set(root, value) {
			return &Error{Reason: "missing target " + p.Target.String()}
		}
	}
	return nil
}

// Error reports a malformed fixup path or a missing source/target node.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "fixup: " + e.Reason }
