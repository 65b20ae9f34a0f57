package classdata

import (
	"reflect"
	"testing"
)

type sampleService struct{}

func (sampleService) Greet(name string) (string, error) { return "hi " + name, nil }
func (sampleService) Sum(nums ...int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}
func (sampleService) String() string { return "sampleService" }
func (sampleService) Error() string  { return "not a real error" }

func TestFromInstanceExcludesReservedNames(t *testing.T) {
	cd := FromInstance("svc", sampleService{})
	for _, name := range cd.MethodNames() {
		if name == "String" || name == "Error" || name == "GoString" {
			t.Fatalf("expected %q to be excluded from the method table", name)
		}
	}
	if len(cd.CandidatesByName("Greet")) != 1 {
		t.Fatalf("expected exactly one Greet candidate")
	}
}

func TestFromInstanceVariadicArity(t *testing.T) {
	cd := FromInstance("svc", sampleService{})
	candidates := cd.CandidatesByName("Sum")
	if len(candidates) != 1 {
		t.Fatalf("expected exactly one Sum candidate, got %d", len(candidates))
	}
	if !candidates[0].Variadic {
		t.Fatalf("expected Sum to be reported as variadic")
	}
	if len(candidates[0].Params) != 1 {
		t.Fatalf("expected a single variadic param type, got %d", len(candidates[0].Params))
	}
}

func TestFromInstanceMemoization(t *testing.T) {
	a := FromInstance("svc", sampleService{})
	b := FromInstance("svc2", sampleService{})

	// Different wire class names but the same underlying Go type should
	// share the analyzed method table.
	if len(a.CandidatesByName("Greet")) != len(b.CandidatesByName("Greet")) {
		t.Fatalf("expected memoized analysis to be reused across registrations of the same type")
	}
}

func TestFromFunctionsOverloads(t *testing.T) {
	class := FromFunctions("Overload", []FuncEntry{
		{Name: "F", Fn: func(v int) (interface{}, error) { return v, nil }},
		{Name: "F", Fn: func(v string) (interface{}, error) { return v, nil }},
	})

	candidates := class.CandidatesByName("F")
	if len(candidates) != 2 {
		t.Fatalf("expected 2 overloads for F, got %d", len(candidates))
	}
	for _, m := range candidates {
		if !m.ReturnsError {
			t.Fatalf("expected F to be reported as error-returning")
		}
	}
}

func TestMethodInvoke(t *testing.T) {
	class := FromFunctions("svc", []FuncEntry{
		{Name: "Echo", Fn: func(v string) (string, error) { return "echo:" + v, nil }},
	})
	m := class.CandidatesByName("Echo")[0]
	if m.NumOut != 2 {
		t.Fatalf("expected 2 return values, got %d", m.NumOut)
	}

	out := m.Invoke(reflect.Value{}, []reflect.Value{reflect.ValueOf("hi")})
	if out[0].String() != "echo:hi" {
		t.Fatalf("expected %q, got %q", "echo:hi", out[0].String())
	}
	if !out[1].IsNil() {
		t.Fatalf("expected a nil error return, got %v", out[1])
	}
}
