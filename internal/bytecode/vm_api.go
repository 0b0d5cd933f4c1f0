package bytecode

// vm_api.go is the narrow surface the tree-walking interpreter (the other
// execution engine, §1) consumes. Both modes share the value model, the C1
// helper catalog, the strategy tables, and the promise/microtask machinery
// through these entry points — the cross-mode equivalence invariant of §6
// falls out of that sharing rather than from two parallel implementations.

// NewHostVM builds a VM with no compiled program behind it: an empty
// class/function directory plus the shared helper machinery. The
// interpreter drives one of these for its runtime needs.
func NewHostVM() *VM {
	return NewVM(&Program{
		Chunk:     NewChunk("<host>"),
		Classes:   map[string]*ClassRecord{},
		Functions: map[string]*FunctionObject{},
		Modules:   map[string]*ModuleRecord{},
	})
}

// helperThread hands out a scratch thread for native-helper invocation.
func (vm *VM) helperThread() *Thread { return newThread(vm) }

// Invoke calls callee (any function value) with an explicit this binding.
func (vm *VM) Invoke(callee Value, this Value, args []Value) (Value, error) {
	return vm.helperThread().callValue(callee, args, this, true)
}

// InvokeFree calls callee with no this binding (unbound call shape).
func (vm *VM) InvokeFree(callee Value, args []Value) (Value, error) {
	return vm.helperThread().callValue(callee, args, Undefined(), false)
}

// CallBuiltin invokes a named C1 helper or global built-in function.
func (vm *VM) CallBuiltin(name string, args []Value) (Value, error) {
	return vm.helperThread().callBuiltin(name, args)
}

// GlobalGet resolves an undeclared identifier against the built-in global
// environment (§4.3 resolution tier f).
func (vm *VM) GlobalGet(name string) (Value, error) {
	return builtinGlobalGet(vm, vm.helperThread(), Undefined(), []Value{StringValue(name)})
}

// CallMethod performs the full dynamic method-dispatch ladder on recv.
func (vm *VM) CallMethod(recv Value, name string, args []Value) (Value, error) {
	return vm.helperThread().callMethodDynamic(recv, name, args)
}

// CallStaticStrategy invokes a "Namespace.member" strategy directly.
func (vm *VM) CallStaticStrategy(key string, args []Value) (Value, error) {
	t := vm.helperThread()
	if fn, ok := staticStrategies[key]; ok {
		return fn(vm, t, Undefined(), args)
	}
	return Undefined(), t.runtimeErrorf("unknown strategy key %q", key)
}

// Await blocks until v settles (immediately for non-promises), draining the
// microtask queue while waiting.
func (vm *VM) Await(v Value) (Value, error) {
	return vm.helperThread().awaitValue(v)
}

// NewPromise allocates a pending promise handle.
func (vm *VM) NewPromise() *PromiseHandle { return newPromiseHandle(vm) }

// Resolve settles p with v (chaining through a promise v).
func (vm *VM) Resolve(p *PromiseHandle, v Value) { vm.resolvePromise(p, v) }

// Reject settles p as rejected with reason.
func (vm *VM) Reject(p *PromiseHandle, reason Value) { vm.rejectPromise(p, reason) }

// TrackAsync brackets an interpreter-spawned goroutine so RunUntilQuiescent
// waits for it; the returned func must be called when the goroutine ends.
func (vm *VM) TrackAsync() func() {
	vm.asyncStarted()
	return vm.asyncDone
}

// RunUntilQuiescent drains microtasks until no async work remains.
func (vm *VM) RunUntilQuiescent() { vm.runUntilQuiescent() }

// Iterate drains any iterable into a slice via the shared iterator protocol.
func (vm *VM) Iterate(v Value) ([]Value, error) {
	return vm.helperThread().iterateAll(v)
}

// Iterator returns a pull function over v: each call yields the next value
// until done. preferAsync probes the async protocol first.
func (vm *VM) Iterator(v Value, preferAsync bool) (func() (Value, bool, error), error) {
	t := vm.helperThread()
	iter, err := t.newIterator(v, preferAsync)
	if err != nil {
		return nil, err
	}
	return func() (Value, bool, error) { return iter.next(t) }, nil
}

// Construct runs `new` against a runtime callee (class-name string, native
// constructor, or plain function).
func (vm *VM) Construct(callee Value, args []Value) (Value, error) {
	return vm.helperThread().constructDynamic(callee, args)
}

// InstanceOfOperator implements the full `instanceof` semantics including
// Symbol.hasInstance.
func (vm *VM) InstanceOfOperator(v, ctor Value) (bool, error) {
	return vm.helperThread().instanceOf(v, ctor)
}

// Bind implements Function.prototype.bind for a function value.
func (vm *VM) Bind(fn Value, args []Value) (Value, error) {
	return vm.helperThread().bindCallable(fn, args)
}

// ConsoleFormat renders args the way console.log would, without writing.
func ConsoleFormat(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = consoleString(a)
	}
	return joinStrings(parts, " ")
}

// ThrownError wraps a user-thrown value as the error the host propagates.
func ThrownError(v Value) *RuntimeError { return thrownError(v) }

// ThrownValue exposes the value a catch clause would bind for err.
func ThrownValue(err error) Value { return thrownValueOf(asRuntimeError(err)) }

// RuntimeKind reports the C5 receiver-kind key for a runtime value.
func RuntimeKind(v Value) (string, bool) { return runtimeStrategyKind(v) }
