package server

import (
	"github.com/poolborges/jabsorb/transport"
)

// Option applies a configuration option to a server instance.
type Option func(s *Server) error

// WithTransport configures the server to use a specific transport instead
// of the default transport.
func WithTransport(t transport.Provider) Option {
	return func(s *Server) error {
		s.transport = t
		return nil
	}
}

// WithPanicHandler configures the server to use a user-defined panic handler.
func WithPanicHandler(handler PanicHandler) Option {
	return func(s *Server) error {
		s.panicHandler = handler
		return nil
	}
}

// WithVersion defines the version of the service provided by the server.
// The version value is passed to Bind calls to the underlying transport.
func WithVersion(version string) Option {
	return func(s *Server) error {
		s.serviceVersion = version
		return nil
	}
}

// WithMiddleware configures server-local middleware, applied closest to the
// bridge-call handler, after any globally registered middleware.
func WithMiddleware(factories ...MiddlewareFactory) Option {
	return func(s *Server) error {
		s.middlewareFactories = append(s.middlewareFactories, factories...)
		return nil
	}
}
