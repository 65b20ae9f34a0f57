// Package jabsorb ties together the reflective bridge (package bridge), its
// wire codecs (package codec), and the transport shells it can be bound to
// (package transport and its subpackages) into a deployable JSON-RPC
// service, the way the reference framework this project grew from wires its
// own transport/encoding defaults.
package jabsorb

import (
	"github.com/poolborges/jabsorb/transport"
	"github.com/poolborges/jabsorb/transport/memory"
)

// DefaultTransportFactory is a function that returns back a new instance of
// the default transport used by Server/Client when no WithTransport option
// is supplied. It defaults to the in-memory transport so that embedding a
// bridge in a single process, or writing tests against one, needs no extra
// wiring; production deployments override it with transport/http's or
// transport/amqp's factory via WithTransport.
var DefaultTransportFactory func() transport.Provider = memory.InMemoryTransportFactory
