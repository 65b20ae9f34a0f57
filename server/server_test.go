package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poolborges/jabsorb/bridge"
	"github.com/poolborges/jabsorb/transport"
	"github.com/poolborges/jabsorb/transport/memory"
)

type greeter struct{}

func (greeter) Greet(name string) (interface{}, error) {
	return "hello " + name, nil
}

func callAndWait(t *testing.T, tr *memory.InMemory, service, payload string) transport.ImmutableMessage {
	t.Helper()

	req := transport.MakeGenericMessage()
	req.ReceiverField = service
	req.ReceiverEndpointField = CallEndpoint
	req.SetPayload([]byte(payload), nil)

	select {
	case res := <-tr.Request(req):
		return res
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
		return nil
	}
}

func TestListenAndCall(t *testing.T) {
	b := bridge.New()
	if err := b.RegisterObject("svc", greeter{}, nil); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	tr := memory.NewInMemory()
	srv, err := New("svc", b, WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}

	go srv.Listen()
	defer srv.Close()

	// Give the server goroutine a chance to bind and dial.
	time.Sleep(50 * time.Millisecond)

	res := callAndWait(t, tr, "svc", `{"id":1,"method":"svc.Greet","params":["world"]}`)
	defer res.Close()

	payload, err := res.Payload()
	if err != nil {
		t.Fatalf("expected successful response; got error %v", err)
	}

	exp := `"hello world"`
	if !strings.Contains(string(payload), exp) {
		t.Fatalf("expected response payload to contain %s; got %s", exp, payload)
	}
}

func TestListenAlreadyCalled(t *testing.T) {
	b := bridge.New()
	srv, err := New("svc", b, WithTransport(memory.NewInMemory()))
	if err != nil {
		t.Fatal(err)
	}

	go srv.Listen()
	defer srv.Close()
	time.Sleep(50 * time.Millisecond)

	if err := srv.Listen(); err != errServeAlreadyCalled {
		t.Fatalf("expected errServeAlreadyCalled; got %v", err)
	}
}

func TestCloseWithoutListen(t *testing.T) {
	b := bridge.New()
	srv, err := New("svc", b, WithTransport(memory.NewInMemory()))
	if err != nil {
		t.Fatal(err)
	}

	// Close on a server that is not listening should be a no-op.
	srv.Close()
}

func TestPanicRecovery(t *testing.T) {
	b := bridge.New()
	if err := b.RegisterObject("svc", greeter{}, nil); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	var recovered error
	tr := memory.NewInMemory()
	srv, err := New("svc", b, WithTransport(tr), WithPanicHandler(func(err error) {
		recovered = err
	}))
	if err != nil {
		t.Fatal(err)
	}

	req := transport.MakeGenericMessage()
	req.SetPayload(nil, nil)
	res := transport.MakeGenericMessage()
	defer func() {
		req.Close()
		res.Close()
	}()

	// Swap in a middleware that always panics to exercise the recovery path.
	srv.middlewareFactories = []MiddlewareFactory{
		func(_ Middleware) Middleware {
			return MiddlewareFunc(func(_ context.Context, _ transport.ImmutableMessage, _ transport.Message) {
				panic(errors.New("boom"))
			})
		},
	}
	handler := srv.generateHandler()
	handler.Process(req, res)

	if recovered == nil || recovered.Error() != "boom" {
		t.Fatalf("expected panic handler to observe %q; got %v", "boom", recovered)
	}

	_, err = res.Payload()
	if err == nil {
		t.Fatal("expected response payload to carry the panic error")
	}
}

func TestMiddlewareOrdering(t *testing.T) {
	b := bridge.New()
	if err := b.RegisterObject("svc", greeter{}, nil); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	var order []string
	factory := func(name string) MiddlewareFactory {
		return func(next Middleware) Middleware {
			return MiddlewareFunc(func(ctx context.Context, req transport.ImmutableMessage, res transport.Message) {
				order = append(order, name)
				next.Handle(ctx, req, res)
			})
		}
	}

	origGlobal := globalMiddlewareFactories
	globalMiddlewareFactories = []MiddlewareFactory{factory("global")}
	defer func() { globalMiddlewareFactories = origGlobal }()

	srv, err := New("svc", b,
		WithTransport(memory.NewInMemory()),
		WithMiddleware(factory("local")),
	)
	if err != nil {
		t.Fatal(err)
	}

	handler := srv.generateHandler()

	req := transport.MakeGenericMessage()
	req.SetPayload([]byte(`{"id":1,"method":"svc.Greet","params":["world"]}`), nil)
	res := transport.MakeGenericMessage()
	defer func() {
		req.Close()
		res.Close()
	}()

	handler.Process(req, res)

	expOrder := []string{"global", "local"}
	if len(order) != len(expOrder) {
		t.Fatalf("expected middleware order %v; got %v", expOrder, order)
	}
	for i, name := range expOrder {
		if order[i] != name {
			t.Fatalf("expected middleware order %v; got %v", expOrder, order)
		}
	}
}

func TestWithVersion(t *testing.T) {
	b := bridge.New()
	srv, err := New("svc", b, WithTransport(memory.NewInMemory()), WithVersion("1.0"))
	if err != nil {
		t.Fatal(err)
	}

	if srv.serviceVersion != "1.0" {
		t.Fatalf("expected serviceVersion to be %q; got %q", "1.0", srv.serviceVersion)
	}
}
