package wire

import (
	"strconv"
	"strings"
)

// Token is one segment of a Path: either a field name (object access) or an
// index (array access). A Token with Field == "" and IsIndex == false denotes
// the synthetic root token ("result" or "params").
type Token struct {
	Field   string
	Index   int
	IsIndex bool
}

// FieldToken builds a Token that accesses an object field.
func FieldToken(name string) Token { return Token{Field: name} }

// IndexToken builds a Token that accesses an array element.
func IndexToken(i int) Token { return Token{Index: i, IsIndex: true} }

// Path is an ordered list of Tokens describing how to reach a node from the
// root of a marshaled value, e.g. Path{Root("result"), FieldToken("next")}
// for "result.next".
type Path []Token

// Root returns a single-token Path naming the root of the tree, either
// "result" or "params".
func Root(name string) Path { return Path{{Field: name}} }

// String renders the path using the fixup wire syntax, e.g. `result[1][0]`.
func (p Path) String() string {
	var b strings.Builder
	for i, tok := range p {
		switch {
		case i == 0:
			b.WriteString(tok.Field)
		case tok.IsIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(tok.Index))
			b.WriteByte(']')
		default:
			b.WriteByte('[')
			b.WriteString(strconv.Quote(tok.Field))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// tokenString renders a single token the way it appears as one element of
// the structured (array-of-pairs) fixup form, e.g. "result", "[1]", `["next"]`.
func tokenString(i int, tok Token) string {
	switch {
	case i == 0:
		return tok.Field
	case tok.IsIndex:
		return "[" + strconv.Itoa(tok.Index) + "]"
	default:
		return "[" + strconv.Quote(tok.Field) + "]"
	}
}

// Tokens renders each element of the path as its own string, the shape used
// by the structured (array-of-pairs) fixup form.
func (p Path) Tokens() []string {
	out := make([]string, len(p))
	for i, tok := range p {
		out[i] = tokenString(i, tok)
	}
	return out
}

// ParseTokens rebuilds a Path from the per-element strings produced by
// Tokens, used to decode the structured fixup form.
func ParseTokens(tokens []string) (Path, error) {
	if len(tokens) == 0 {
		return nil, errBadPath("empty path")
	}
	p := Path{{Field: tokens[0]}}
	for _, tok := range tokens[1:] {
		t, err := parseBracketToken(tok)
		if err != nil {
			return nil, err
		}
		p = append(p, t)
	}
	return p, nil
}

// ParseFlat rebuilds a Path from the concatenated fixup wire syntax produced
// by String, e.g. `result[1]["next"]`.
func ParseFlat(s string) (Path, error) {
	i := 0
	for i < len(s) && s[i] != '[' {
		i++
	}
	if i == 0 {
		return nil, errBadPath("path has no root token")
	}
	p := Path{{Field: s[:i]}}
	for i < len(s) {
		if s[i] != '[' {
			return nil, errBadPath("expected '[' in " + s)
		}
		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			return nil, errBadPath("unterminated '[' in " + s)
		}
		end += i
		tok, err := parseBracketToken(s[i : end+1])
		if err != nil {
			return nil, err
		}
		p = append(p, tok)
		i = end + 1
	}
	return p, nil
}

func parseBracketToken(tok string) (Token, error) {
	if len(tok) < 2 || tok[0] != '[' || tok[len(tok)-1] != ']' {
		return Token{}, errBadPath("malformed path token " + tok)
	}
	inner := tok[1 : len(tok)-1]
	if len(inner) > 0 && inner[0] == '"' {
		field, err := strconv.Unquote(inner)
		if err != nil {
			return Token{}, errBadPath("malformed field token " + tok)
		}
		return Token{Field: field}, nil
	}
	idx, err := strconv.Atoi(inner)
	if err != nil {
		return Token{}, errBadPath("malformed index token " + tok)
	}
	return Token{Index: idx, IsIndex: true}, nil
}

type pathError string

func (e pathError) Error() string { return string(e) }

func errBadPath(msg string) error { return pathError(msg) }

// Append returns a new Path with tok appended, leaving p untouched.
func (p Path) Append(tok Token) Path {
	next := make(Path, len(p)+1)
	copy(next, p)
	next[len(p)] = tok
	return next
}

// Get walks root following p (skipping the root token) and returns the node
// at that position, or nil if any intermediate step is missing.
func (p Path) Get(root *Value) *Value {
	if len(p) == 0 {
		return root
	}
	cur := root
	for _, tok := range p[1:] {
		if cur == nil {
			return nil
		}
		if tok.IsIndex {
			cur = cur.Index(tok.Index)
		} else {
			cur = cur.Get(tok.Field)
		}
	}
	return cur
}

// Set walks root following all but the last token of p and assigns child at
// the final step. It reports whether every intermediate step resolved.
func (p Path) Set(root *Value, child *Value) bool {
	if len(p) <= 1 {
		return false
	}
	parentPath := p[:len(p)-1]
	parent := parentPath.Get(root)
	if parent == nil {
		return false
	}
	last := p[len(p)-1]
	switch {
	case last.IsIndex:
		if parent.Kind != KindArray || last.Index < 0 || last.Index >= len(parent.Array) {
			return false
		}
		parent.Array[last.Index] = child
	default:
		if parent.Kind != KindObject {
			return false
		}
		parent.Set(last.Field, child)
	}
	return true
}
