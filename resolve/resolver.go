// Package resolve implements overload resolution: given every candidate
// method a class exposes under a name and arity, pick the one whose
// parameter types best fit the supplied wire arguments, mirroring the
// design's reflective multi-candidate resolution over ObjectMatch scores.
//
// Local-arg parameters (context.Context, *http.Request, and the like,
// injected from transport context rather than sent over the wire) are
// excluded from arity and scoring: callers supply an IsLocalArg predicate
// so a method's true "wire signature" only counts the parameters a client
// actually has to send.
package resolve

import (
	"fmt"
	"reflect"

	"github.com/poolborges/jabsorb/classdata"
	"github.com/poolborges/jabsorb/codec"
	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// IsLocalArg reports whether a declared parameter type is supplied from
// transport context instead of the wire argument list.
type IsLocalArg func(t reflect.Type) bool

// NoMatchError reports that no candidate accepted the supplied arguments.
type NoMatchError struct {
	Name  string
	Arity int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("resolve: no method %q accepts %d argument(s)", e.Name, e.Arity)
}

// AmbiguousError reports that more than one candidate tied for best match.
type AmbiguousError struct {
	Name  string
	Arity int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("resolve: call to %q with %d argument(s) is ambiguous", e.Name, e.Arity)
}

// Result is the winning candidate plus the wire-supplied arguments, indexed
// by their position in classdata.Method.Params. Positions absent from
// WireArgs are local-arg parameters the caller must fill in separately
// before invoking.
type Result struct {
	Method   *classdata.Method
	WireArgs map[int]reflect.Value
}

// wireSlot records the Params index that one wire argument binds; a slot's
// position in the slice returned by wireSlots is its wire argument index.
type wireSlot struct {
	paramIndex int
}

func wireSlots(m *classdata.Method, isLocalArg IsLocalArg) []wireSlot {
	var slots []wireSlot
	last := len(m.Params) - 1
	for i, t := range m.Params {
		if m.Variadic && i == last {
			slots = append(slots, wireSlot{paramIndex: i})
			continue
		}
		if isLocalArg != nil && isLocalArg(t) {
			continue
		}
		slots = append(slots, wireSlot{paramIndex: i})
	}
	return slots
}

func slotType(m *classdata.Method, slot wireSlot, wireIndex, wireLen int) reflect.Type {
	if m.Variadic && slot.paramIndex == len(m.Params)-1 {
		return m.Params[slot.paramIndex].Elem()
	}
	return m.Params[slot.paramIndex]
}

func acceptsArity(m *classdata.Method, n int, isLocalArg IsLocalArg) bool {
	slots := wireSlots(m, isLocalArg)
	if m.Variadic {
		return n >= len(slots)-1
	}
	return n == len(slots)
}

// Resolve scores every candidate against params and returns the best match.
func Resolve(reg *codec.Registry, st *state.State, name string, candidates []*classdata.Method, params []*wire.Value, isLocalArg IsLocalArg) (*Result, error) {
	type scored struct {
		method *classdata.Method
		score  codec.Match
	}

	var best []scored
	bestScore := codec.Match(1 << 30)

	for _, m := range candidates {
		if !acceptsArity(m, len(params), isLocalArg) {
			continue
		}
		score, ok := scoreCandidate(reg, st, m, params, isLocalArg)
		if !ok {
			continue
		}
		switch {
		case score < bestScore:
			bestScore = score
			best = []scored{{m, score}}
		case score == bestScore:
			best = append(best, scored{m, score})
		}
	}

	if len(best) == 0 {
		return nil, &NoMatchError{Name: name, Arity: len(params)}
	}
	if len(best) > 1 {
		tied := make([]*classdata.Method, len(best))
		for i, s := range best {
			tied[i] = s.method
		}
		winner, ok := mostSpecific(tied, isLocalArg)
		if !ok {
			return nil, &AmbiguousError{Name: name, Arity: len(params)}
		}
		best = []scored{{method: winner}}
	}

	method := best[0].method
	wireArgs, err := buildArgs(reg, st, method, params, isLocalArg)
	if err != nil {
		return nil, err
	}
	return &Result{Method: method, WireArgs: wireArgs}, nil
}

func scoreCandidate(reg *codec.Registry, st *state.State, m *classdata.Method, params []*wire.Value, isLocalArg IsLocalArg) (codec.Match, bool) {
	slots := wireSlots(m, isLocalArg)
	worst := codec.MatchExact
	for i, p := range params {
		t := slotType(m, slots[i], i, len(params))
		score, err := reg.TryUnmarshal(st, t, p)
		if err != nil {
			return 0, false
		}
		worst = codec.Max(worst, score)
	}
	return worst, true
}

// mostSpecific breaks a scoring tie by parameter specificity: candidate a is
// narrower than candidate b if, at every wire slot, a's declared type is
// b's or is assignable to it (e.g. a concrete struct is narrower than an
// interface it implements); candidates with different slot counts are not
// compared. Each candidate is credited once for every other tied candidate
// it is narrower than, and the one with the single highest count wins; if
// that count is shared, the tie is genuinely ambiguous.
func mostSpecific(tied []*classdata.Method, isLocalArg IsLocalArg) (*classdata.Method, bool) {
	narrowerCount := make([]int, len(tied))
	for i, a := range tied {
		aSlots := wireSlots(a, isLocalArg)
		for j, b := range tied {
			if i == j {
				continue
			}
			bSlots := wireSlots(b, isLocalArg)
			if len(aSlots) != len(bSlots) {
				continue
			}
			narrower := true
			for k := range aSlots {
				at := slotType(a, aSlots[k], k, len(aSlots))
				bt := slotType(b, bSlots[k], k, len(bSlots))
				if at != bt && !at.AssignableTo(bt) {
					narrower = false
					break
				}
			}
			if narrower {
				narrowerCount[i]++
			}
		}
	}

	best := 0
	bestCount := narrowerCount[0]
	ambiguous := false
	for i, n := range narrowerCount {
		switch {
		case n > bestCount:
			bestCount = n
			best = i
			ambiguous = false
		case n == bestCount && i != best:
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, false
	}
	return tied[best], true
}

func buildArgs(reg *codec.Registry, st *state.State, m *classdata.Method, params []*wire.Value, isLocalArg IsLocalArg) (map[int]reflect.Value, error) {
	slots := wireSlots(m, isLocalArg)
	out := make(map[int]reflect.Value, len(params))
	for i, p := range params {
		t := slotType(m, slots[i], i, len(params))
		v, err := reg.Unmarshal(st, t, p)
		if err != nil {
			return nil, err
		}
		out[slots[i].paramIndex] = v
	}
	return out, nil
}
