package bridge

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/poolborges/jabsorb/classdata"
	"github.com/poolborges/jabsorb/fixup"
	"github.com/poolborges/jabsorb/resolve"
	"github.com/poolborges/jabsorb/state"
	"github.com/poolborges/jabsorb/wire"
)

// dispatchTarget is the parsed form of a request's "method" field (§6's
// grammar): either the ".obj#<handle>.<name>" reference-call form, the
// bare "system.listMethods" form, or the usual "<className>.<methodName>"
// form. listMethods is set whenever methodName is literally "listMethods",
// regardless of which of the other two forms it was attached to.
type dispatchTarget struct {
	systemList  bool
	isHandle    bool
	handle      int
	className   string
	methodName  string
	listMethods bool
}

func parseMethod(method string) (dispatchTarget, error) {
	if method == "system.listMethods" {
		return dispatchTarget{systemList: true}, nil
	}
	if strings.HasPrefix(method, ".obj#") {
		rest := method[len(".obj#"):]
		dot := strings.IndexByte(rest, '.')
		if dot < 0 {
			return dispatchTarget{}, fmt.Errorf("malformed handle method %q", method)
		}
		handle, err := strconv.Atoi(rest[:dot])
		if err != nil {
			return dispatchTarget{}, fmt.Errorf("malformed handle in %q", method)
		}
		methodName := rest[dot+1:]
		if methodName == "" {
			return dispatchTarget{}, fmt.Errorf("malformed handle method %q", method)
		}
		return dispatchTarget{isHandle: true, handle: handle, methodName: methodName, listMethods: methodName == "listMethods"}, nil
	}
	dot := strings.IndexByte(method, '.')
	if dot < 0 {
		return dispatchTarget{}, fmt.Errorf("malformed method %q", method)
	}
	className, methodName := method[:dot], method[dot+1:]
	if className == "" || methodName == "" {
		return dispatchTarget{}, fmt.Errorf("malformed method %q", method)
	}
	return dispatchTarget{className: className, methodName: methodName, listMethods: methodName == "listMethods"}, nil
}

// resolveTarget looks up className in objectMap, then classMap, then (once)
// in the global Bridge, exactly as §4.J describes delegation.
func (b *Bridge) resolveTarget(className string) (reflect.Value, *classdata.ClassData, bool) {
	b.mu.RLock()
	if obj, ok := b.objectMap[className]; ok {
		b.mu.RUnlock()
		return obj.Value, obj.Class, true
	}
	class, ok := b.classMap[className]
	b.mu.RUnlock()
	if ok {
		return reflect.Value{}, class, true
	}
	if b.global != nil {
		return b.global.resolveTarget(className)
	}
	return reflect.Value{}, nil, false
}

// Call runs the full request-dispatch pipeline described in §4.I: apply
// inbound fixups, resolve the method, unmarshal arguments, run hooks,
// invoke, marshal the result, and build the response envelope. It never
// panics: every failure, including a panic inside the invoked method
// itself, is recovered at this boundary and turned into an error envelope.
func (b *Bridge) Call(ctx context.Context, contextValue interface{}, requestJSON []byte) []byte {
	req, err := wire.Decode(requestJSON)
	if err != nil {
		return buildErrorEnvelope(wire.Null(), &ParseError{Reason: err.Error()})
	}
	if req == nil || req.Kind != wire.KindObject {
		return buildErrorEnvelope(wire.Null(), &ParseError{Reason: "request is not a JSON object"})
	}
	id := req.Get("id")
	if id == nil {
		id = wire.Null()
	}

	resultNode, fixupsNode, werr := b.dispatch(ctx, contextValue, req)
	if werr != nil {
		return buildErrorEnvelope(id, werr)
	}

	env := wire.Object()
	env.Set("id", id)
	env.Set("result", resultNode)
	if fixupsNode != nil {
		env.Set("fixups", fixupsNode)
	}
	return wire.Encode(env)
}

func (b *Bridge) dispatch(ctx context.Context, contextValue interface{}, req *wire.Value) (resultNode *wire.Value, fixupsNode *wire.Value, werr WireError) {
	defer func() {
		if r := recover(); r != nil {
			resultNode, fixupsNode = nil, nil
			werr = &RemoteException{Message: fmt.Sprint(r), Trace: string(debug.Stack())}
		}
	}()

	methodNode := req.Get("method")
	if methodNode == nil || methodNode.Kind != wire.KindString {
		return nil, nil, &ParseError{Reason: "missing or invalid method"}
	}
	target, perr := parseMethod(methodNode.Str)
	if perr != nil {
		return nil, nil, &ParseError{Reason: perr.Error()}
	}

	paramsNode := req.Get("params")
	if paramsNode == nil {
		paramsNode = wire.Array()
	}
	if paramsNode.Kind != wire.KindArray {
		return nil, nil, &ParseError{Reason: "params must be an array"}
	}

	if inboundFixups := req.Get("fixups"); inboundFixups != nil {
		pairs, err := fixup.Decode(inboundFixups)
		if err != nil {
			return nil, nil, &FixupError{Reason: err.Error()}
		}
		if err := fixup.Apply(paramsNode, pairs); err != nil {
			return nil, nil, &FixupError{Reason: err.Error()}
		}
	}

	if target.systemList {
		return stringArray(b.allMethodNames()), nil, nil
	}

	instanceValue, class, className, found := b.resolveDispatchClass(target)
	if !found {
		if target.isHandle {
			return nil, nil, &NoMethodError{Reason: fmt.Sprintf("unknown or stale object handle %d", target.handle)}
		}
		return nil, nil, &NoMethodError{Reason: fmt.Sprintf("unknown object or class %q", target.className)}
	}

	if target.listMethods {
		return stringArray(class.MethodNames()), nil, nil
	}

	return b.invokeMethod(ctx, contextValue, className, target.methodName, instanceValue, class, paramsNode)
}

// resolveDispatchClass resolves a dispatch target to the receiver value
// (zero for a class-only registration) and its analyzed method table.
func (b *Bridge) resolveDispatchClass(target dispatchTarget) (reflect.Value, *classdata.ClassData, string, bool) {
	if target.isHandle {
		instance, ok := b.Lookup(target.handle)
		if !ok {
			return reflect.Value{}, nil, "", false
		}
		t := reflect.TypeOf(instance)
		return reflect.ValueOf(instance), classdata.FromInstance(t.String(), instance), t.String(), true
	}
	instanceValue, class, found := b.resolveTarget(target.className)
	return instanceValue, class, target.className, found
}

func (b *Bridge) invokeMethod(ctx context.Context, contextValue interface{}, className, methodName string, instanceValue reflect.Value, class *classdata.ClassData, paramsNode *wire.Value) (*wire.Value, *wire.Value, WireError) {
	candidates := class.CandidatesByName(methodName)
	if len(candidates) == 0 {
		return nil, nil, &NoMethodError{Reason: fmt.Sprintf("%s has no method named %q", className, methodName)}
	}

	st := state.New(b)
	result, err := resolve.Resolve(b.Registry, st, methodName, candidates, paramsNode.Array, b.LocalArg.IsLocalArg)
	if err != nil {
		switch err.(type) {
		case *resolve.NoMatchError, *resolve.AmbiguousError:
			return nil, nil, &NoMethodError{Reason: err.Error()}
		default:
			return nil, nil, &UnmarshalError{Reason: err.Error()}
		}
	}

	args := make([]reflect.Value, len(result.Method.Params))
	for i, pt := range result.Method.Params {
		if v, ok := result.WireArgs[i]; ok {
			args[i] = v
			continue
		}
		v, err := b.LocalArg.Resolve(ctx, contextValue, pt)
		if err != nil {
			return nil, nil, &UnmarshalError{Reason: err.Error()}
		}
		args[i] = v
	}

	var instanceForHook interface{}
	if instanceValue.IsValid() {
		instanceForHook = instanceValue.Interface()
	}
	argsForHook := make([]interface{}, len(args))
	for i, a := range args {
		if a.IsValid() {
			argsForHook[i] = a.Interface()
		}
	}

	if err := b.Callback.FirePre(ctx, contextValue, className, methodName, instanceForHook, result.Method, argsForHook); err != nil {
		b.Callback.FireError(ctx, contextValue, className, methodName, instanceForHook, result.Method, argsForHook, err)
		return nil, nil, &RemoteException{Message: err.Error()}
	}

	rets := result.Method.Invoke(instanceValue, args)

	resultValue, rerr := splitReturn(result.Method, rets)
	if rerr != nil {
		b.Callback.FireError(ctx, contextValue, className, methodName, instanceForHook, result.Method, argsForHook, rerr)
		return nil, nil, &RemoteException{Message: rerr.Error()}
	}

	resultNode := wire.Null()
	if resultValue.IsValid() {
		var merr error
		resultNode, merr = b.Registry.Marshal(st, resultValue, wire.Root("result"))
		if merr != nil {
			b.Callback.FireError(ctx, contextValue, className, methodName, instanceForHook, result.Method, argsForHook, merr)
			return nil, nil, &MarshalError{Reason: merr.Error()}
		}
	}

	var resultForHook interface{}
	if resultValue.IsValid() {
		resultForHook = resultValue.Interface()
	}
	b.Callback.FirePost(ctx, contextValue, className, methodName, instanceForHook, result.Method, argsForHook, resultForHook)

	fixupsNode := fixup.Encode(fixup.FromState(st.Fixups))
	return resultNode, fixupsNode, nil
}

// splitReturn separates a method's return values into the value to marshal
// back to the caller and any error it returned, per classdata.Method's
// ReturnsError/NumOut bookkeeping: the trailing error (if any) never
// reaches the wire itself, only its message via RemoteException.
func splitReturn(m *classdata.Method, rets []reflect.Value) (reflect.Value, error) {
	if m.ReturnsError {
		errVal := rets[len(rets)-1]
		if !errVal.IsNil() {
			return reflect.Value{}, errVal.Interface().(error)
		}
		if m.NumOut >= 2 {
			return rets[0], nil
		}
		return reflect.Value{}, nil
	}
	if m.NumOut >= 1 {
		return rets[0], nil
	}
	return reflect.Value{}, nil
}

func stringArray(names []string) *wire.Value {
	elems := make([]*wire.Value, len(names))
	for i, n := range names {
		elems[i] = wire.String(n)
	}
	return wire.Array(elems...)
}

func buildErrorEnvelope(id *wire.Value, werr WireError) []byte {
	env := wire.Object()
	env.Set("id", id)
	errObj := wire.Object()
	errObj.Set("code", wire.Number(float64(werr.Code())))
	errObj.Set("msg", wire.String(werr.Error()))
	if re, ok := werr.(*RemoteException); ok && re.Trace != "" {
		errObj.Set("trace", wire.String(re.Trace))
	}
	env.Set("error", errObj)
	return wire.Encode(env)
}
