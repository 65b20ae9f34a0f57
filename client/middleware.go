package client

import (
	"context"

	"github.com/poolborges/jabsorb/transport"
)

// A MiddlewareFactory generates a Middleware instance bound to a client's
// service name, so middleware (e.g. the circuit breaker) can key its state
// per remote service.
type MiddlewareFactory func(serviceName string) Middleware

// Middleware is an interface implemented by objects that can be injected
// into a client's outgoing request flow.
//
// Pre is invoked before the request message is handed to the transport. It
// may return a modified context to pass on to the rest of the chain and the
// eventual request, or a non-nil error to abort the call before it reaches
// the transport; Post is not invoked for a middleware whose Pre aborted.
//
// Post is invoked (in reverse registration order, for every middleware whose
// Pre already ran) after a response has been received from the remote
// bridge, or immediately once a later middleware's Pre aborts the call — in
// that case res is nil.
type Middleware interface {
	Pre(ctx context.Context, req transport.Message) (context.Context, error)
	Post(ctx context.Context, req, res transport.ImmutableMessage)
}

var globalMiddlewareFactories = []MiddlewareFactory{}

// RegisterGlobalMiddlewareFactories appends one or more MiddlewareFactory to
// the set automatically instantiated for every client.
func RegisterGlobalMiddlewareFactories(factories ...MiddlewareFactory) {
	for _, f := range factories {
		if f == nil {
			continue
		}
		globalMiddlewareFactories = append(globalMiddlewareFactories, f)
	}
}

// ClearGlobalMiddlewareFactories clears the list of global middleware
// factories.
func ClearGlobalMiddlewareFactories() {
	globalMiddlewareFactories = []MiddlewareFactory{}
}
