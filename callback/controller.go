// Package callback implements the pre-invoke/post-invoke/error hook chain,
// filtered by context-type assignability: a hook registered for
// *http.Request only fires for calls whose transport context is an
// *http.Request, mirroring the design's CallbackController.
package callback

import (
	"context"
	"reflect"
	"sync"

	"github.com/poolborges/jabsorb/classdata"
)

// PreHook runs before a method is invoked. instance is nil for a
// class-only (static) dispatch. Returning an error aborts the call before
// it reaches the target method or object.
type PreHook func(ctx context.Context, contextValue interface{}, className, methodName string, instance interface{}, method *classdata.Method, args []interface{}) error

// PostHook runs after a method returns successfully.
type PostHook func(ctx context.Context, contextValue interface{}, className, methodName string, instance interface{}, method *classdata.Method, args []interface{}, result interface{})

// ErrorHook runs after a method (or a pre-hook) fails.
type ErrorHook func(ctx context.Context, contextValue interface{}, className, methodName string, instance interface{}, method *classdata.Method, args []interface{}, err error)

type hookEntry struct {
	contextType reflect.Type // nil means "matches any context value"
	pre         PreHook
	post        PostHook
	onError     ErrorHook
}

// Controller holds every registered hook. Registration is expected at
// startup; Fire* methods are called on every dispatch and are safe for
// concurrent use.
type Controller struct {
	mu    sync.RWMutex
	hooks []hookEntry
}

// NewController returns an empty Controller.
func NewController() *Controller {
	return &Controller{}
}

// RegisterPre adds a pre-invoke hook, restricted to calls whose context
// value is assignable to contextType. Pass a nil contextType to match every
// call regardless of transport.
func (c *Controller) RegisterPre(contextType reflect.Type, hook PreHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hookEntry{contextType: contextType, pre: hook})
}

// RegisterPost adds a post-invoke hook, restricted the same way as
// RegisterPre.
func (c *Controller) RegisterPost(contextType reflect.Type, hook PostHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hookEntry{contextType: contextType, post: hook})
}

// RegisterError adds an error hook, restricted the same way as RegisterPre.
func (c *Controller) RegisterError(contextType reflect.Type, hook ErrorHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hookEntry{contextType: contextType, onError: hook})
}

func matches(entry hookEntry, contextValue interface{}) bool {
	if entry.contextType == nil {
		return true
	}
	if contextValue == nil {
		return false
	}
	return reflect.TypeOf(contextValue).AssignableTo(entry.contextType)
}

// FirePre runs every applicable pre-hook in registration order, stopping
// and returning the first error. instance is nil for a static dispatch.
func (c *Controller) FirePre(ctx context.Context, contextValue interface{}, className, methodName string, instance interface{}, method *classdata.Method, args []interface{}) error {
	c.mu.RLock()
	hooks := append([]hookEntry(nil), c.hooks...)
	c.mu.RUnlock()

	for _, h := range hooks {
		if h.pre == nil || !matches(h, contextValue) {
			continue
		}
		if err := h.pre(ctx, contextValue, className, methodName, instance, method, args); err != nil {
			return err
		}
	}
	return nil
}

// FirePost runs every applicable post-hook in registration order.
func (c *Controller) FirePost(ctx context.Context, contextValue interface{}, className, methodName string, instance interface{}, method *classdata.Method, args []interface{}, result interface{}) {
	c.mu.RLock()
	hooks := append([]hookEntry(nil), c.hooks...)
	c.mu.RUnlock()

	for _, h := range hooks {
		if h.post == nil || !matches(h, contextValue) {
			continue
		}
		h.post(ctx, contextValue, className, methodName, instance, method, args, result)
	}
}

// FireError runs every applicable error hook in registration order. Errors
// returned by error hooks themselves are not propagated: a misbehaving
// observer must not be able to turn a successful call into a failed one.
func (c *Controller) FireError(ctx context.Context, contextValue interface{}, className, methodName string, instance interface{}, method *classdata.Method, args []interface{}, err error) {
	c.mu.RLock()
	hooks := append([]hookEntry(nil), c.hooks...)
	c.mu.RUnlock()

	for _, h := range hooks {
		if h.onError == nil || !matches(h, contextValue) {
			continue
		}
		h.onError(ctx, contextValue, className, methodName, instance, method, args, err)
	}
}
