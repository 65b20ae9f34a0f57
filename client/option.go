package client

import (
	"github.com/poolborges/jabsorb/transport"
)

// Option applies a configuration option to a client instance.
type Option func(c *Client) error

// WithTransport configures the client to use a specific transport instead
// of the default transport.
func WithTransport(t transport.Provider) Option {
	return func(c *Client) error {
		c.transport = t
		return nil
	}
}

// WithMiddleware configures the client to use a set of client-specific
// middleware factories, instantiated for this client's service name. The
// resulting middleware runs after any globally registered middleware.
func WithMiddleware(factories ...MiddlewareFactory) Option {
	return func(c *Client) error {
		for _, f := range factories {
			if f == nil {
				continue
			}
			c.middleware = append(c.middleware, f(c.serviceName))
		}
		return nil
	}
}
