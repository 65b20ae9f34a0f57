package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/poolborges/jabsorb"
	"github.com/poolborges/jabsorb/bridge"
	"github.com/poolborges/jabsorb/transport"
)

var (
	// DefaultPanicWriter is a sink where the server's default panic handler
	// writes its output when a panic is recovered.
	DefaultPanicWriter io.Writer = os.Stderr

	// CallEndpoint is the single transport endpoint name every Server binds
	// its bridge to. A JSON-RPC request's "method" field carries the actual
	// dispatch target, so the transport layer only ever needs one binding
	// per service.
	CallEndpoint = "call"

	errServeAlreadyCalled = errors.New("server is already listening for incoming requests")
)

// A PanicHandler is invoked by the server when a panic is recovered while
// processing an incoming request.
type PanicHandler func(error)

// Server binds a *bridge.Bridge to a transport.Provider: every request that
// arrives on CallEndpoint is handed, payload untouched, to Bridge.Call, and
// the resulting envelope bytes become the response payload. There is no
// separate marshaling step here; the bridge already speaks JSON-RPC.
//
// The server automatically recovers and handles any panics while a request
// is being handled. A built-in panic handler implementation is used that
// simply writes the error and stack-trace to DefaultPanicWriter. The panic
// handler can be overridden using the WithPanicHandler config option.
type Server struct {
	// A mutex protecting access to the server fields.
	mutex sync.Mutex

	// The transport used by the server.
	transport transport.Provider

	// The bridge that resolves and invokes incoming requests.
	bridge *bridge.Bridge

	// A function for handling panics while serving a request.
	panicHandler PanicHandler

	// The name of the service exposed by the server.
	serviceName string

	// The service version.
	serviceVersion string

	// An optional middleware chain wrapping the bridge-call handler.
	middlewareFactories []MiddlewareFactory

	// A channel to signal the server go-routine to shut down.
	doneChan chan struct{}
}

// New creates a new server instance for the given service name, dispatching
// to b, and applies any supplied server options.
func New(serviceName string, b *bridge.Bridge, options ...Option) (*Server, error) {
	srv := &Server{
		serviceName: serviceName,
		bridge:      b,
	}

	for _, opt := range options {
		if err := opt(srv); err != nil {
			return nil, err
		}
	}

	srv.setDefaults()

	return srv, nil
}

// Listen registers the bridge-call handler with the server's transport and
// begins serving incoming requests.
//
// Calls to Listen block till the server's Close() method is invoked.
func (s *Server) Listen() error {
	s.mutex.Lock()

	if s.doneChan != nil {
		s.mutex.Unlock()
		return errServeAlreadyCalled
	}

	if err := s.transport.Bind(s.serviceVersion, s.serviceName, CallEndpoint, s.generateHandler()); err != nil {
		s.mutex.Unlock()
		return err
	}

	if err := s.transport.Dial(); err != nil {
		s.mutex.Unlock()
		return err
	}

	s.doneChan = make(chan struct{})
	s.mutex.Unlock()

	<-s.doneChan

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.transport.Close()
	s.doneChan <- struct{}{}

	return nil
}

// Close shuts down a server that is listening for incoming connections.
// After calling close, any blocked calls to Listen() will be unblocked.
//
// Calling Close on a server not listening for incoming requests has no effect.
func (s *Server) Close() {
	s.mutex.Lock()
	if s.doneChan == nil {
		s.mutex.Unlock()
		return
	}

	s.doneChan <- struct{}{}
	s.mutex.Unlock()

	<-s.doneChan

	s.mutex.Lock()
	defer s.mutex.Unlock()
	close(s.doneChan)
	s.doneChan = nil
}

func (s *Server) setDefaults() {
	if s.transport == nil {
		s.transport = jabsorb.DefaultTransportFactory()
	}
	if s.panicHandler == nil {
		s.panicHandler = defaultPanicHandler
	}
}

// generateHandler builds the transport.Handler bound to CallEndpoint: it
// passes the request payload to Bridge.Call unchanged, using the incoming
// message as the bridge's context value so registered local-arg resolvers
// can pull headers or sender identity straight off it.
func (s *Server) generateHandler() transport.Handler {
	var chain Middleware = MiddlewareFunc(func(ctx context.Context, req transport.ImmutableMessage, res transport.Message) {
		payload, err := req.Payload()
		if err != nil {
			res.SetPayload(nil, err)
			return
		}
		res.SetPayload(s.bridge.Call(ctx, req, payload), nil)
	})

	for i := len(s.middlewareFactories) - 1; i >= 0; i-- {
		if s.middlewareFactories[i] != nil {
			chain = s.middlewareFactories[i](chain)
		}
	}
	for i := len(globalMiddlewareFactories) - 1; i >= 0; i-- {
		chain = globalMiddlewareFactories[i](chain)
	}

	return transport.HandlerFunc(func(req transport.ImmutableMessage, res transport.Message) {
		if s.panicHandler != nil {
			defer func() {
				if r := recover(); r != nil {
					var err error
					switch errVal := r.(type) {
					case error:
						err = errVal
					default:
						err = errors.New(fmt.Sprint(errVal))
					}
					s.panicHandler(err)
					res.SetPayload(nil, fmt.Errorf("remote endpoint panicked: %s", err))
				}
			}()
		}

		ctx := context.WithValue(
			context.WithValue(context.Background(), CtxFieldServiceName, s.serviceName),
			CtxFieldEndpointName,
			CallEndpoint,
		)
		chain.Handle(ctx, req, res)
	})
}

// CtxFieldServiceName defines the context field name where the server stores
// the service name that responds to an incoming request.
var CtxFieldServiceName interface{} = "Service"

// CtxFieldEndpointName defines the context field name where the server
// stores the endpoint name that responds to an incoming request.
var CtxFieldEndpointName interface{} = "Endpoint"

// defaultPanicHandler implements a PanicHandler that writes its output to
// DefaultPanicWriter.
func defaultPanicHandler(err error) {
	stackBuf := make([]byte, 4096)
	runtime.Stack(stackBuf, false)

	msg := fmt.Sprintf(
		"recovered from panic: %v\n\nstacktrace:\n%v\n",
		err,
		string(stackBuf),
	)

	DefaultPanicWriter.Write([]byte(msg))
}
