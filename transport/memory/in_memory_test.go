package memory

import (
	"strings"
	"testing"

	"github.com/poolborges/jabsorb/transport"
)

func newMessage(from, to string) transport.Message {
	fromFields := strings.Split(from, "/")
	toFields := strings.Split(to, "/")

	m := transport.MakeGenericMessage()
	m.SenderField = fromFields[0]
	m.SenderEndpointField = fromFields[1]
	m.ReceiverField = toFields[0]
	m.ReceiverEndpointField = toFields[1]

	return m
}

func TestInMemoryBindAndDuplicateBind(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()

	handler := transport.HandlerFunc(func(_ transport.ImmutableMessage, _ transport.Message) {})

	if err := tr.Bind("v0", "service", "endpoint", handler); err != nil {
		t.Fatal(err)
	}
	if err := tr.Bind("v0", "service", "endpoint", handler); err == nil {
		t.Fatalf("expected duplicate binding to fail")
	}
}

func TestInMemoryBindAfterDialFails(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()

	if err := tr.Dial(); err != nil {
		t.Fatal(err)
	}
	handler := transport.HandlerFunc(func(_ transport.ImmutableMessage, _ transport.Message) {})
	if err := tr.Bind("", "service", "endpoint", handler); err != transport.ErrTransportAlreadyDialed {
		t.Fatalf("expected ErrTransportAlreadyDialed, got %v", err)
	}
}

func TestInMemoryRequestUnknownEndpoint(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()

	if err := tr.Dial(); err != nil {
		t.Fatal(err)
	}

	resChan := tr.Request(newMessage("from/fromEndpoint", "missing/endpoint"))
	res := <-resChan
	if _, err := res.Payload(); err != transport.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryRPCRoundTrip(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()

	handler := transport.HandlerFunc(func(req transport.ImmutableMessage, res transport.Message) {
		payload, err := req.Payload()
		if err != nil {
			t.Fatal(err)
		}
		if string(payload) != "hello" {
			t.Fatalf("expected payload %q, got %q", "hello", string(payload))
		}
		res.SetPayload([]byte("hello back!"), nil)
	})

	if err := tr.Bind("v0", "toService", "toEndpoint", handler); err != nil {
		t.Fatal(err)
	}
	if err := tr.Dial(); err != nil {
		t.Fatal(err)
	}

	req := newMessage("fromService/fromEndpoint", "toService/toEndpoint")
	defer req.Close()
	req.SetPayload([]byte("hello"), nil)

	res := <-tr.Request(req)
	payload, err := res.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "hello back!" {
		t.Fatalf("expected %q, got %q", "hello back!", string(payload))
	}

	// A versionless request targets the same binding.
	req.SetReceiverVersion("")
	res = <-tr.Request(req)
	if payload, err = res.Payload(); err != nil || string(payload) != "hello back!" {
		t.Fatalf("expected versionless request to resolve the same binding, got %q, err=%v", payload, err)
	}
}

func TestInMemoryFactory(t *testing.T) {
	tr := InMemoryTransportFactory()
	defer tr.Close()
	if tr == nil {
		t.Fatalf("expected a non-nil transport instance")
	}
}
