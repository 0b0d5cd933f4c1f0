package bytecode

// BuiltinFunction is the signature native callables (console.log, strategy
// methods, `__`-prefixed compiler helpers) are implemented with.
type BuiltinFunction func(vm *VM, t *Thread, this Value, args []Value) (Value, error)

// callValue invokes callee with args, honoring bound-this/bound-args
// (.bind()), an explicit receiver override (method-call sites), and falling
// back to the callable's own captured `this` otherwise. It recurses into
// t.execute() for user functions and returns directly for natives, so it is
// safe to call from both the opcode dispatch loop and from builtins that
// need to invoke a callback argument (Array.prototype.forEach, etc.).
func (t *Thread) callValue(callee Value, args []Value, explicitThis Value, hasExplicitThis bool) (Value, error) {
	if callee.Type != ValueFunction {
		return Undefined(), t.runtimeErrorf("value is not callable: %s", callee.String())
	}
	c := callee.Data.(*Callable)

	if c.IsBound {
		full := append(append([]Value{}, c.BoundArgs...), args...)
		var bt Value
		if c.BoundThis != nil {
			bt = *c.BoundThis
		}
		return t.invokeCallable(c, full, bt)
	}

	this := c.This
	if hasExplicitThis && !c.PinnedThis {
		this = explicitThis
	}
	return t.invokeCallable(c, args, this)
}

func (t *Thread) invokeCallable(c *Callable, args []Value, this Value) (Value, error) {
	if c.Native != nil {
		return c.Native(t.vm, t, this, args)
	}
	if c.Method == nil {
		return Undefined(), t.runtimeErrorf("callable %q has no body", c.Name)
	}
	return t.callFunctionObject(c.Method, c.Capture, args, this, Undefined())
}

// callFunctionObject runs fn's chunk to completion, binding params from args
// and pushing/popping a frame on this thread's shared operand stack.
func (t *Thread) callFunctionObject(fn *FunctionObject, capture *CaptureRecord, args []Value, this Value, newTarget Value) (Value, error) {
	f := newFrame(fn.Chunk, fn.Chunk.LocalCount)
	f.fn = fn
	f.capture = capture
	f.this = this
	f.newTarget = newTarget
	bindParams(f, fn, args)

	if fn.Kind != FunctionPlain {
		return t.runAsGoroutineBody(fn, f)
	}

	t.frames = append(t.frames, f)
	return t.execute()
}

// bindParams copies positional arguments into declared parameter slots 0..N,
// collecting any remainder into the rest parameter's array when present.
// Missing trailing arguments default to undefined; per-parameter default
// initializers are compiled inline in the function body (compiler_functions.go)
// and run against the already-bound (possibly undefined) slot value.
func bindParams(f *frame, fn *FunctionObject, args []Value) {
	fixed := len(fn.ParamNames)
	if fn.RestIndex >= 0 {
		fixed = fn.RestIndex
	}
	for i := 0; i < fixed; i++ {
		v := Undefined()
		if i < len(args) {
			v = args[i]
		}
		if i < len(f.locals) {
			*f.locals[i] = v
		}
	}
	if fn.RestIndex >= 0 {
		var rest []Value
		if len(args) > fn.RestIndex {
			rest = append(rest, args[fn.RestIndex:]...)
		}
		if fn.RestIndex < len(f.locals) {
			*f.locals[fn.RestIndex] = ArrayValue(NewArrayInstance(rest))
		}
	}
}

// makeClosure implements OpMakeClosure: it discards the N copied values the
// compiler pushed (emitClosureCapture) and instead builds the capture
// record from the *same pointer cells* the creating frame's locals/upvalues
// array holds, so writes from either side of the closure boundary are
// visible to the other (§4.6 option b, true aliasing rather than a snapshot).
func (t *Thread) makeClosure(fn *FunctionObject) Value {
	n := fn.UpvalueCount()
	t.popN(n) // discard the pushed copies; the real cells come from the frame below
	if n == 0 {
		return FunctionValue(&Callable{Name: fn.Name, Method: fn})
	}
	f := t.curFrame()
	fields := make(map[string]*Value, n)
	for _, uv := range fn.UpvalueDefs {
		if uv.IsLocal {
			if uv.Index >= 0 && uv.Index < len(f.locals) {
				fields[uv.Name] = f.locals[uv.Index]
			} else {
				v := Undefined()
				fields[uv.Name] = &v
			}
			continue
		}
		if f.capture != nil {
			if cell, ok := f.capture.Fields[uv.Name]; ok {
				fields[uv.Name] = cell
				continue
			}
		}
		v := Undefined()
		fields[uv.Name] = &v
	}
	return FunctionValue(&Callable{Name: fn.Name, Method: fn, Capture: &CaptureRecord{Fields: fields}})
}

// newInstance allocates cls's fields and runs declared field initializers
// base-class-first without invoking the constructor body; construct calls
// the constructor right after, while OpNewClassInstance runs this alone.
func (t *Thread) newInstance(cls *ClassRecord) (*Instance, error) {
	inst := NewInstance(cls)
	instVal := InstanceValue(inst)
	chain := []*ClassRecord{}
	for c := cls; c != nil; c = c.Super {
		chain = append([]*ClassRecord{c}, chain...)
	}
	for _, c := range chain {
		for name := range c.Properties {
			if _, exists := inst.Fields[name]; !exists {
				inst.Fields[name] = Undefined()
			}
		}
		for _, field := range c.FieldOrder {
			v := Undefined()
			if init, ok := c.FieldInits[field]; ok {
				var err error
				if v, err = t.runChunkBound(init, instVal); err != nil {
					return nil, err
				}
			}
			if c.PrivateFields[field] {
				inst.PrivateFields[field] = v
			} else {
				inst.Fields[field] = v
			}
		}
	}
	return inst, nil
}

// runChunkBound runs a standalone compiled chunk (a field initializer) as a
// zero-argument function bound to this.
func (t *Thread) runChunkBound(chunk *Chunk, this Value) (Value, error) {
	fn := &FunctionObject{Name: chunk.Name, Chunk: chunk, RestIndex: -1}
	return t.callFunctionObject(fn, nil, nil, this, Undefined())
}

// construct implements `new Ctor(args)` against a resolved ClassRecord:
// allocate the instance, run its constructor bound as `this`, discard the
// constructor's own return value (classes ignore it per spec), and yield
// the instance.
func (t *Thread) construct(cls *ClassRecord, args []Value) (Value, error) {
	inst, err := t.newInstance(cls)
	if err != nil {
		return Undefined(), err
	}
	instVal := InstanceValue(inst)
	if ctor, _ := cls.ResolveInstanceMethod("constructor"); ctor != nil {
		if _, err := t.callFunctionObject(ctor, nil, args, instVal, instVal); err != nil {
			return Undefined(), err
		}
	}
	return instVal, nil
}

// constructDynamic implements `new` against a runtime callee rather than a
// statically-named class (OpNewDynamic). Three shapes arrive here: a string
// naming a declared class (classes are first-class as their name), a native
// built-in constructor (Date, Map, Promise, ...) whose return value IS the
// instance, and a plain function used as a constructor, which gets a fresh
// object bound as `this`. A bound callable's captured `this` is ignored —
// `new` always allocates, consistent with Function.prototype.bind.
func (t *Thread) constructDynamic(callee Value, args []Value) (Value, error) {
	if callee.Type == ValueString {
		if cls, ok := t.vm.Classes[callee.AsString()]; ok {
			return t.construct(cls, args)
		}
	}
	if callee.Type != ValueFunction {
		return Undefined(), t.runtimeErrorf("value is not a constructor: %s", callee.String())
	}
	c := callee.Data.(*Callable)
	if c.IsBound {
		args = append(append([]Value{}, c.BoundArgs...), args...)
	}
	if c.Method != nil && c.Method.DeclaringCls != nil {
		if _, isCtor := c.Method.DeclaringCls.Methods["constructor"]; isCtor && c.Name == "constructor" {
			return t.construct(c.Method.DeclaringCls, args)
		}
	}
	obj := NewPlainObject()
	objVal := ObjectValue(obj)
	if c.Method != nil {
		ret, err := t.callFunctionObject(c.Method, c.Capture, args, objVal, objVal)
		if err != nil {
			return Undefined(), err
		}
		if ret.IsObjectLike() && !ret.IsNullish() && ret.Type != ValueUndefined {
			switch ret.Type {
			case ValueObject, ValueInstance, ValueArray, ValueMap, ValueSet, ValueHost, ValuePromise:
				return ret, nil
			}
		}
	} else if c.Native != nil {
		ret, err := c.Native(t.vm, t, objVal, args)
		if err != nil {
			return Undefined(), err
		}
		if !ret.IsUndefined() {
			return ret, nil
		}
	}
	return objVal, nil
}
