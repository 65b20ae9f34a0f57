package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poolborges/jabsorb/transport"
	"github.com/poolborges/jabsorb/transport/memory"
)

func TestClientOptionError(t *testing.T) {
	expError := errors.New("option error")
	_, err := New("foo", func(_ *Client) error { return expError })
	if err != expError {
		t.Fatalf("expected to get error %v; got %v", expError, err)
	}
}

func TestClientCallRoundTrip(t *testing.T) {
	tr := memory.NewInMemory()
	expResPayload := `{"id":1,"result":"hello back"}`

	err := tr.Bind("", "service", "call", transport.HandlerFunc(
		func(req transport.ImmutableMessage, res transport.Message) {
			payload, _ := req.Payload()
			if string(payload) != `{"id":1,"method":"svc.Greet","params":[]}` {
				t.Fatalf("unexpected request payload %s", payload)
			}
			res.SetPayload([]byte(expResPayload), nil)
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	c, err := New("service", WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	resp, err := c.Call(context.Background(), "call", []byte(`{"id":1,"method":"svc.Greet","params":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != expResPayload {
		t.Fatalf("expected %s, got %s", expResPayload, resp)
	}
}

func TestClientCallTimeout(t *testing.T) {
	tr := memory.NewInMemory()
	err := tr.Bind("", "service", "call", transport.HandlerFunc(
		func(_ transport.ImmutableMessage, res transport.Message) {
			<-time.After(50 * time.Millisecond)
			res.SetPayload([]byte(`{}`), nil)
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	c, err := New("service", WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	_, err = c.Call(ctx, "call", []byte(`{}`))
	if err != transport.ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

type testMiddleware struct {
	serviceName  string
	name         string
	logChan      chan string
	returnErr    error
}

func testMiddlewareFactory(name string, logChan chan string, returnErr error) MiddlewareFactory {
	return func(serviceName string) Middleware {
		return &testMiddleware{serviceName: serviceName, name: name, logChan: logChan, returnErr: returnErr}
	}
}

func (m *testMiddleware) Pre(ctx context.Context, _ transport.Message) (context.Context, error) {
	m.logChan <- "pre " + m.name
	return ctx, m.returnErr
}

func (m *testMiddleware) Post(_ context.Context, _ transport.ImmutableMessage, _ transport.ImmutableMessage) {
	m.logChan <- "post " + m.name
}

func TestClientMiddlewareChain(t *testing.T) {
	origMiddleware := globalMiddlewareFactories
	defer func() { globalMiddlewareFactories = origMiddleware }()
	ClearGlobalMiddlewareFactories()

	tr := memory.NewInMemory()
	if err := tr.Bind("", "service", "call", transport.HandlerFunc(
		func(_ transport.ImmutableMessage, res transport.Message) {
			res.SetPayload([]byte(`{}`), nil)
		}),
	); err != nil {
		t.Fatal(err)
	}

	logChan := make(chan string, 8)
	RegisterGlobalMiddlewareFactories(testMiddlewareFactory("global 0", logChan, nil))

	c, err := New(
		"service",
		WithTransport(tr),
		WithMiddleware(testMiddlewareFactory("local 0", logChan, nil)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Call(context.Background(), "call", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	expLog := []string{"pre global 0", "pre local 0", "post local 0", "post global 0"}
	for i, want := range expLog {
		got := <-logChan
		if got != want {
			t.Fatalf("[entry %d] expected %q, got %q", i, want, got)
		}
	}
}

func TestClientMiddlewareAbortsRequest(t *testing.T) {
	tr := memory.NewInMemory()
	if err := tr.Bind("", "service", "call", transport.HandlerFunc(
		func(_ transport.ImmutableMessage, res transport.Message) {
			t.Fatalf("transport should not have been reached")
		}),
	); err != nil {
		t.Fatal(err)
	}

	logChan := make(chan string, 8)
	abortErr := transport.ErrNotAuthorized

	c, err := New(
		"service",
		WithTransport(tr),
		WithMiddleware(
			testMiddlewareFactory("local 0", logChan, nil),
			testMiddlewareFactory("local 1", logChan, abortErr),
			testMiddlewareFactory("local 2", logChan, nil),
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.Call(context.Background(), "call", []byte(`{}`))
	if err != abortErr {
		t.Fatalf("expected %v, got %v", abortErr, err)
	}

	expLog := []string{"pre local 0", "pre local 1", "post local 0"}
	for i, want := range expLog {
		got := <-logChan
		if got != want {
			t.Fatalf("[entry %d] expected %q, got %q", i, want, got)
		}
	}
}
