package callback

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/poolborges/jabsorb/classdata"
)

func TestFirePreStopsOnFirstError(t *testing.T) {
	c := NewController()

	var calls []string
	c.RegisterPre(nil, func(_ context.Context, _ interface{}, _, _ string, _ interface{}, _ *classdata.Method, _ []interface{}) error {
		calls = append(calls, "first")
		return nil
	})
	c.RegisterPre(nil, func(_ context.Context, _ interface{}, _, _ string, _ interface{}, _ *classdata.Method, _ []interface{}) error {
		calls = append(calls, "second")
		return errors.New("boom")
	})
	c.RegisterPre(nil, func(_ context.Context, _ interface{}, _, _ string, _ interface{}, _ *classdata.Method, _ []interface{}) error {
		calls = append(calls, "third")
		return nil
	})

	err := c.FirePre(context.Background(), nil, "svc", "Method", nil, nil, nil)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected FirePre to propagate the second hook's error, got %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected only the first two hooks to run, got %v", calls)
	}
}

func TestHooksFilteredByContextType(t *testing.T) {
	c := NewController()

	var fired []string
	c.RegisterPost(reflect.TypeOf(&http.Request{}), func(_ context.Context, _ interface{}, _, _ string, _ interface{}, _ *classdata.Method, _ []interface{}, _ interface{}) {
		fired = append(fired, "http")
	})
	c.RegisterPost(nil, func(_ context.Context, _ interface{}, _, _ string, _ interface{}, _ *classdata.Method, _ []interface{}, _ interface{}) {
		fired = append(fired, "any")
	})

	c.FirePost(context.Background(), "not-an-http-request", "svc", "Method", nil, nil, nil, nil)
	if len(fired) != 1 || fired[0] != "any" {
		t.Fatalf("expected only the wildcard hook to fire, got %v", fired)
	}

	fired = nil
	c.FirePost(context.Background(), &http.Request{}, "svc", "Method", nil, nil, nil, nil)
	if len(fired) != 2 {
		t.Fatalf("expected both hooks to fire for an *http.Request context value, got %v", fired)
	}
}

func TestFirePostReceivesInstanceMethodAndArgs(t *testing.T) {
	c := NewController()

	type svc struct{}
	method := &classdata.Method{Name: "Echo"}
	instance := &svc{}

	var gotInstance interface{}
	var gotMethod *classdata.Method
	var gotArgs []interface{}
	c.RegisterPost(nil, func(_ context.Context, _ interface{}, _, _ string, instance interface{}, method *classdata.Method, args []interface{}, _ interface{}) {
		gotInstance, gotMethod, gotArgs = instance, method, args
	})

	c.FirePost(context.Background(), nil, "svc", "Echo", instance, method, []interface{}{42}, "result")
	if gotInstance != instance {
		t.Fatalf("expected the hook to receive the call's instance, got %v", gotInstance)
	}
	if gotMethod != method {
		t.Fatalf("expected the hook to receive the resolved method")
	}
	if len(gotArgs) != 1 || gotArgs[0] != 42 {
		t.Fatalf("expected the hook to receive the call's arguments, got %v", gotArgs)
	}
}

func TestFireErrorSwallowsNothingButNeverAborts(t *testing.T) {
	c := NewController()

	var seen error
	c.RegisterError(nil, func(_ context.Context, _ interface{}, _, _ string, _ interface{}, _ *classdata.Method, _ []interface{}, err error) {
		seen = err
	})

	c.FireError(context.Background(), nil, "svc", "Method", nil, nil, nil, errors.New("remote exception"))
	if seen == nil || seen.Error() != "remote exception" {
		t.Fatalf("expected the error hook to observe the dispatched error, got %v", seen)
	}
}
