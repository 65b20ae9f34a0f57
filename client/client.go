package client

import (
	"context"
	"sync"

	"github.com/poolborges/jabsorb"
	"github.com/poolborges/jabsorb/transport"
)

// Client issues JSON-RPC requests to a remote bridge over a transport.
// Provider. Unlike a typed RPC client bound to per-endpoint request/response
// structs, Client.Call sends and receives the bridge's wire envelope
// unchanged: callers build the `{"method":...,"params":[...]}` request body
// themselves (or via a generated stub) and get back the raw response bytes
// for the bridge package to decode.
//
// Unless overridden with the WithTransport config option, the client uses
// jabsorb.DefaultTransportFactory to obtain a transport instance.
type Client struct {
	mutex sync.Mutex

	transport   transport.Provider
	serviceName string

	middleware []Middleware

	dialed bool
}

// New creates a new client instance for the given service name and applies
// any supplied client options.
func New(serviceName string, options ...Option) (*Client, error) {
	c := &Client{
		serviceName: serviceName,
	}

	for _, factory := range globalMiddlewareFactories {
		c.middleware = append(c.middleware, factory(serviceName))
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.setDefaults()

	if err := c.transport.Dial(); err != nil {
		return nil, err
	}
	c.dialed = true

	return c, nil
}

func (c *Client) setDefaults() {
	if c.transport == nil {
		c.transport = jabsorb.DefaultTransportFactory()
	}
}

// Close shuts down the client's transport. Calling Close on an already
// closed client has no effect.
func (c *Client) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.dialed {
		return
	}
	c.transport.Close()
	c.dialed = false
}

// Call sends a JSON-RPC request payload (the bridge wire envelope, built by
// the caller or a generated stub) to endpoint on this client's service and
// returns the raw response payload, or an error if the transport or a
// middleware in the chain rejected the call.
//
// Calls block until a response is received or ctx's deadline expires; in
// the latter case Call fails with transport.ErrTimeout. A request that times
// out client-side may still execute on the remote bridge.
func (c *Client) Call(ctx context.Context, endpoint string, requestPayload []byte) ([]byte, error) {
	req := transport.MakeGenericMessage()
	req.ReceiverField = c.serviceName
	req.ReceiverEndpointField = endpoint
	req.SetPayload(requestPayload, nil)

	if sender, ok := ctx.Value(serverServiceNameKey).(string); ok {
		req.SenderField = sender
	}
	if senderEndpoint, ok := ctx.Value(serverEndpointNameKey).(string); ok {
		req.SenderEndpointField = senderEndpoint
	}

	ran := 0
	var preErr error
	for _, m := range c.middleware {
		var err error
		ctx, err = m.Pre(ctx, req)
		if err != nil {
			preErr = err
			break
		}
		ran++
	}
	if preErr != nil {
		for i := ran - 1; i >= 0; i-- {
			c.middleware[i].Post(ctx, req, nil)
		}
		return nil, preErr
	}

	post := func(res transport.ImmutableMessage) {
		for i := len(c.middleware) - 1; i >= 0; i-- {
			c.middleware[i].Post(ctx, req, res)
		}
	}

	var res transport.ImmutableMessage
	select {
	case <-ctx.Done():
		return nil, transport.ErrTimeout
	case res = <-c.transport.Request(req):
	}
	defer res.Close()

	post(res)

	return res.Payload()
}

// serverServiceNameKey/serverEndpointNameKey mirror server.CtxFieldServiceName
// and server.CtxFieldEndpointName without importing the server package
// (which itself may embed a client for delegated calls), so a client call
// made from inside a bridge method correctly reports its own identity as the
// outgoing request's sender.
var (
	serverServiceNameKey  interface{} = "Service"
	serverEndpointNameKey interface{} = "Endpoint"
)
