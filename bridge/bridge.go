// Package bridge is the reflective dispatcher at the center of the system:
// it registers server-side objects and function tables, resolves an
// incoming wire method name to a concrete method via the resolve package,
// and marshals results back through the codec registry, issuing opaque
// handles for objects that must cross the wire by reference.
package bridge

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/poolborges/jabsorb/callback"
	"github.com/poolborges/jabsorb/classdata"
	"github.com/poolborges/jabsorb/codec"
	"github.com/poolborges/jabsorb/localarg"
)

// ObjectInstance is one registered server object: a concrete value plus its
// analyzed method table.
type ObjectInstance struct {
	Name     string
	Value    reflect.Value
	Class    *classdata.ClassData
	Iface    reflect.Type // optional; if set, Value's type must implement it
}

// ClassDescriptor is a registered function table standing in for what would
// be a Java class's static methods; Go methods always need a receiver, so a
// class-only registration carries its methods as an explicit table instead
// (see classdata.FromFunctions).
type ClassDescriptor = classdata.ClassData

type identityKey struct {
	typ reflect.Type
	ptr uintptr
}

func keyFor(instance interface{}) (identityKey, bool) {
	v := reflect.ValueOf(instance)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return identityKey{}, false
		}
		return identityKey{typ: v.Type(), ptr: v.Pointer()}, true
	default:
		return identityKey{}, false
	}
}

// Bridge holds every registration table for one scope (global, or a single
// session). A session Bridge delegates unresolved object/class lookups to
// its global Bridge exactly once; the global Bridge itself never delegates.
type Bridge struct {
	global *Bridge

	mu                    sync.RWMutex
	objectMap             map[string]*ObjectInstance
	classMap              map[string]*classdata.ClassData
	referenceSet          map[reflect.Type]bool
	callableReferenceSet  map[reflect.Type]bool
	referenceMap          map[int]interface{}
	handleByIdentity       map[identityKey]int
	typeByName            map[string]reflect.Type

	handleSeq int64

	Registry *codec.Registry
	Callback *callback.Controller
	LocalArg *localarg.Controller
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithGlobal makes b fall back to global for any registration this Bridge
// cannot resolve locally. Only meaningful for a session-scoped Bridge; the
// process-wide Global Bridge is never given one.
func WithGlobal(global *Bridge) Option {
	return func(b *Bridge) { b.global = global }
}

// WithHandleSeed sets the first handle value the reference allocator hands
// out, letting a deployment keep handles from colliding across restarts
// fronted by the same load balancer sticky-session key, or simply keep
// small numbers in tests.
func WithHandleSeed(seed int64) Option {
	return func(b *Bridge) { b.handleSeq = seed - 1 }
}

// New constructs an empty Bridge with a private codec registry wired back
// to it for reference marshaling and javaClass type resolution.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		objectMap:            make(map[string]*ObjectInstance),
		classMap:             make(map[string]*classdata.ClassData),
		referenceSet:         make(map[reflect.Type]bool),
		callableReferenceSet: make(map[reflect.Type]bool),
		referenceMap:         make(map[int]interface{}),
		handleByIdentity:     make(map[identityKey]int),
		typeByName:           make(map[string]reflect.Type),
		Callback:             callback.NewController(),
		LocalArg:             localarg.NewController(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.Registry = codec.NewRegistry(b)
	b.Registry.WithTypeByName(b.TypeByName)
	return b
}

// Global is the process-wide default Bridge. It is an explicit package
// value rather than a hidden singleton reached only through package-level
// functions, so tests can construct isolated bridges with
// bridge.New(bridge.WithGlobal(customGlobal)) instead of sharing this one.
var Global = New()

// RegisterObject upserts instance into objectMap under name, analyzing its
// method set (or reusing the memoized analysis for its type). If iface is
// non-nil, instance's type must implement it or registration fails.
func (b *Bridge) RegisterObject(name string, instance interface{}, iface reflect.Type) error {
	t := reflect.TypeOf(instance)
	if iface != nil && !t.Implements(iface) {
		return &ScopeError{Reason: t.String() + " does not implement " + iface.String()}
	}
	class := classdata.FromInstance(name, instance)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objectMap[name] = &ObjectInstance{Name: name, Value: reflect.ValueOf(instance), Class: class, Iface: iface}
	b.typeByName[t.String()] = t
	return nil
}

// RegisterClass idempotently binds a function-table class to name. Binding
// a different class value to a name already in use fails with
// NameConflictError.
func (b *Bridge) RegisterClass(name string, class *ClassDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.classMap[name]; ok && existing != class {
		return &NameConflictError{Name: name}
	}
	b.classMap[name] = class
	return nil
}

// RegisterType records javaClass name as an alias for t, letting the bean
// and container codecs honor a javaClass hint on the wire by resolving it
// back to a concrete Go type.
func (b *Bridge) RegisterType(name string, t reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typeByName[name] = t
}

// RegisterReference marks t as a reference type: instances of t are
// marshaled as an opaque handle rather than by value. Forbidden on the
// global Bridge.
func (b *Bridge) RegisterReference(t reflect.Type) error {
	if b == Global {
		return &ScopeError{Reason: "reference types cannot be registered on the global bridge"}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.referenceSet[t] = true
	return nil
}

// RegisterCallableReference marks t as a callable reference type: like
// RegisterReference, but the emitted handle is flagged so the peer knows it
// may re-bind method calls onto it via ".obj#<handle>.<method>". Forbidden
// on the global Bridge.
func (b *Bridge) RegisterCallableReference(t reflect.Type) error {
	if b == Global {
		return &ScopeError{Reason: "callable reference types cannot be registered on the global bridge"}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callableReferenceSet[t] = true
	return nil
}

// UnregisterObject removes name from objectMap. No error if absent.
func (b *Bridge) UnregisterObject(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objectMap, name)
}

// UnregisterClass removes name from classMap. No error if absent.
func (b *Bridge) UnregisterClass(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.classMap, name)
}

// LookupObject returns the object registered under name on this Bridge (not
// delegating to global).
func (b *Bridge) LookupObject(name string) (*ObjectInstance, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objectMap[name]
	return obj, ok
}

// LookupClass returns the class registered under name on this Bridge (not
// delegating to global).
func (b *Bridge) LookupClass(name string) (*classdata.ClassData, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	class, ok := b.classMap[name]
	return class, ok
}

// TypeByName satisfies codec.TypeByName, resolving a javaClass hint to a
// concrete registered Go type.
func (b *Bridge) TypeByName(name string) (reflect.Type, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.typeByName[name]
	return t, ok
}

// IsReferenceType satisfies codec.ReferenceMarshaler.
func (b *Bridge) IsReferenceType(t reflect.Type) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.referenceSet[t] || b.callableReferenceSet[t]
}

// MarshalHandle satisfies codec.ReferenceMarshaler: it assigns a fresh
// handle the first time an instance is seen and returns the same handle on
// every later call for an identical (pointer/map/chan/func) instance.
func (b *Bridge) MarshalHandle(instance interface{}) (handle int, callable bool, ok bool) {
	t := reflect.TypeOf(instance)
	b.mu.Lock()
	defer b.mu.Unlock()

	callable = b.callableReferenceSet[t]
	if !callable && !b.referenceSet[t] {
		return 0, false, false
	}

	if key, stable := keyFor(instance); stable {
		if h, found := b.handleByIdentity[key]; found {
			return h, callable, true
		}
		h := int(atomic.AddInt64(&b.handleSeq, 1))
		b.handleByIdentity[key] = h
		b.referenceMap[h] = instance
		return h, callable, true
	}

	h := int(atomic.AddInt64(&b.handleSeq, 1))
	b.referenceMap[h] = instance
	return h, callable, true
}

// HandleFor satisfies state.ReferenceResolver by delegating to MarshalHandle.
func (b *Bridge) HandleFor(instance interface{}) (handle int, callable bool, ok bool) {
	return b.MarshalHandle(instance)
}

// Lookup satisfies both state.ReferenceResolver and the handle-based method
// dispatch path in Call: it resolves a handle back to the live instance it
// was issued for.
func (b *Bridge) Lookup(handle int) (instance interface{}, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	instance, ok = b.referenceMap[handle]
	return instance, ok
}

// allMethodNames returns the sorted, de-duplicated union of every method
// name exposed by this Bridge's own registrations, plus (recursively) its
// global Bridge's, for system.listMethods.
func (b *Bridge) allMethodNames() []string {
	seen := map[string]bool{}
	b.mu.RLock()
	for _, obj := range b.objectMap {
		for _, n := range obj.Class.MethodNames() {
			seen[n] = true
		}
	}
	for _, class := range b.classMap {
		for _, n := range class.MethodNames() {
			seen[n] = true
		}
	}
	b.mu.RUnlock()

	if b.global != nil {
		for _, n := range b.global.allMethodNames() {
			seen[n] = true
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
