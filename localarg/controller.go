// Package localarg lets a registered method declare a parameter that is
// never sent over the wire and is instead injected from the transport
// context of the current call — a *http.Request, a session id, the
// context.Context itself. The design calls these "local arguments"; the
// resolve package strips them from the wire signature and the bridge fills
// them in immediately before invoking the winning candidate.
package localarg

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Resolver produces the value to inject for one local-arg type, given the
// call's context and whatever context value the transport attached to it
// (an *http.Request, a session token, ...). It returns ok=false if it has
// nothing to offer for this call, which the controller treats as an error
// rather than silently passing a zero value.
type Resolver func(ctx context.Context, contextValue interface{}) (interface{}, bool)

type entry struct {
	argType     reflect.Type
	contextType reflect.Type // nil means "matches any context value"
	resolver    Resolver
}

// Controller is the registry of local-arg types a bridge honors, keyed by
// both the declared parameter type and the transport context type: two
// different context shapes (an HTTP handler's *http.Request versus an AMQP
// handler's delivery, say) may each supply their own resolver for the same
// argument type. It is safe for concurrent use; registration is expected at
// startup, resolution on every call.
type Controller struct {
	mu      sync.RWMutex
	entries []entry
}

// NewController returns an empty Controller.
func NewController() *Controller {
	return &Controller{}
}

// Register associates argType with resolver, restricted to calls whose
// context value is assignable to contextType. Pass a nil contextType to
// match every call regardless of transport; a more specific (non-nil)
// registration for the same argType takes priority over it at resolve time.
func (c *Controller) Register(argType, contextType reflect.Type, resolver Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry{argType: argType, contextType: contextType, resolver: resolver})
}

// IsLocalArg reports whether t has at least one registered resolver,
// satisfying resolve.IsLocalArg.
func (c *Controller) IsLocalArg(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.argType == t {
			return true
		}
	}
	return false
}

func contextMatches(e entry, contextValue interface{}) bool {
	if e.contextType == nil {
		return true
	}
	if contextValue == nil {
		return false
	}
	return reflect.TypeOf(contextValue).AssignableTo(e.contextType)
}

// Resolve produces the injected value for t, preferring a resolver
// registered for a contextType matching contextValue over one registered
// with a nil (match-any) contextType, and returns an error if t has no
// applicable resolver or the resolver declines this call.
func (c *Controller) Resolve(ctx context.Context, contextValue interface{}, t reflect.Type) (reflect.Value, error) {
	c.mu.RLock()
	entries := append([]entry(nil), c.entries...)
	c.mu.RUnlock()

	var fallback *entry
	for i := range entries {
		e := entries[i]
		if e.argType != t {
			continue
		}
		if e.contextType == nil {
			if fallback == nil {
				fallback = &e
			}
			continue
		}
		if contextMatches(e, contextValue) {
			return resolveEntry(e, ctx, contextValue, t)
		}
	}
	if fallback != nil {
		return resolveEntry(*fallback, ctx, contextValue, t)
	}
	return reflect.Value{}, &Error{Type: t, Reason: "no local-arg resolver registered"}
}

func resolveEntry(e entry, ctx context.Context, contextValue interface{}, t reflect.Type) (reflect.Value, error) {
	v, ok := e.resolver(ctx, contextValue)
	if !ok {
		return reflect.Value{}, &Error{Type: t, Reason: "resolver declined this call"}
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !rv.Type().AssignableTo(t) {
		return reflect.Value{}, &Error{Type: t, Reason: "resolver produced a value not assignable to the parameter type"}
	}
	return rv, nil
}

// Error reports a failure to resolve a local-arg parameter.
type Error struct {
	Type   reflect.Type
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("localarg: %s: %s", e.Type, e.Reason)
}
