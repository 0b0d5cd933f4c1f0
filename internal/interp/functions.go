package interp

import (
	"fmt"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/bytecode"
	"github.com/tscore-lang/tscore/internal/types"
)

// makeFunction wraps a function/arrow expression as a first-class value.
// The wrapper is a native callable over the shared value model, so the VM's
// strategy natives (Array.map and friends) can invoke interpreted callbacks
// with no marshalling; the closure's environment pointer is the capture
// record (§4.6) — cells alias naturally.
func (in *Interpreter) makeFunction(fe *ast.FunctionExpression, defEnv *environment) Value {
	name := fe.Name
	if name == "" {
		name = "<anonymous>"
	}
	return bytecode.FunctionValue(&bytecode.Callable{
		Name: name,
		Native: func(_ *bytecode.VM, _ *bytecode.Thread, this Value, args []Value) (Value, error) {
			return in.invokeFunction(fe, defEnv, this, args)
		},
	})
}

// invokeFunction runs fe's body in a fresh scope under defEnv, dispatching
// on the async/generator kind exactly like the VM's runAsGoroutineBody.
func (in *Interpreter) invokeFunction(fe *ast.FunctionExpression, defEnv *environment, this Value, args []Value) (Value, error) {
	switch {
	case fe.IsGenerator:
		return in.startGenerator(fe, defEnv, this, args, fe.IsAsync), nil
	case fe.IsAsync:
		return in.startAsync(fe, defEnv, this, args), nil
	default:
		return in.callSync(fe, defEnv, this, args, nil)
	}
}

// callSync binds parameters and evaluates the body to completion.
func (in *Interpreter) callSync(fe *ast.FunctionExpression, defEnv *environment, this Value, args []Value, gen *genContext) (Value, error) {
	env := newEnvironment(defEnv)
	env.genBoundary = true
	env.gen = gen
	if !fe.IsArrow {
		// Arrows see the enclosing this through the scope chain; ordinary
		// functions bind their own.
		env.hasThis = true
		env.this = this
	}
	if err := in.bindParams(fe, env, args); err != nil {
		return bytecode.Undefined(), err
	}

	if fe.ExpressionBody != nil {
		return in.eval(fe.ExpressionBody, env)
	}
	err := in.execBlock(fe.Body, env)
	if err != nil {
		if ret, ok := err.(returnSignal); ok {
			return ret.value, nil
		}
		return bytecode.Undefined(), err
	}
	return bytecode.Undefined(), nil
}

func (in *Interpreter) bindParams(fe *ast.FunctionExpression, env *environment, args []Value) error {
	for i, p := range fe.Params {
		if p.Rest {
			var rest []Value
			if i < len(args) {
				rest = append(rest, args[i:]...)
			}
			env.declare(p.Name, bytecode.ArrayValue(bytecode.NewArrayInstance(rest)))
			break
		}
		v := bytecode.Undefined()
		if i < len(args) {
			v = args[i]
		}
		if v.IsUndefined() && p.Default != nil {
			var err error
			if v, err = in.eval(p.Default, env); err != nil {
				return err
			}
		}
		if p.Pattern != nil {
			if err := in.bindPattern(p.Pattern, v, env, true); err != nil {
				return err
			}
			continue
		}
		env.declare(p.Name, v)
	}
	return nil
}

// --- calls -------------------------------------------------------------------

func (in *Interpreter) evalArguments(args []*ast.Argument, env *environment) ([]Value, error) {
	var out []Value
	for _, a := range args {
		v, err := in.eval(a.Value, env)
		if err != nil {
			return nil, err
		}
		if a.Spread {
			items, err := in.vm.Iterate(v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interpreter) evalCall(e *ast.CallExpression, env *environment) (Value, error) {
	// super(...) and super.m(...) resolve against the active class context.
	if _, ok := e.Callee.(*ast.SuperExpression); ok {
		return in.evalSuperCall(e, env)
	}
	if mem, ok := e.Callee.(*ast.MemberExpression); ok {
		if _, isSuper := mem.Object.(*ast.SuperExpression); isSuper {
			return in.evalSuperMethodCall(e, mem, env)
		}
		return in.evalMethodCall(e, mem, env)
	}
	if priv, ok := e.Callee.(*ast.PrivateMemberExpression); ok {
		return in.evalPrivateCall(e, priv, env)
	}

	if id, ok := e.Callee.(*ast.Identifier); ok {
		if _, declared := env.lookup(id.Value); !declared {
			if _, isClass := in.classes[id.Value]; !isClass {
				args, err := in.evalArguments(e.Arguments, env)
				if err != nil {
					return bytecode.Undefined(), err
				}
				return in.vm.CallBuiltin(id.Value, args)
			}
		}
	}

	callee, err := in.eval(e.Callee, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if e.Optional && callee.IsNullish() {
		return bytecode.Undefined(), nil
	}
	args, err := in.evalArguments(e.Arguments, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	return in.vm.InvokeFree(callee, args)
}

func (in *Interpreter) evalMethodCall(e *ast.CallExpression, mem *ast.MemberExpression, env *environment) (Value, error) {
	recv, err := in.eval(mem.Object, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if mem.Optional && recv.IsNullish() {
		return bytecode.Undefined(), nil
	}
	args, err := in.evalArguments(e.Arguments, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if mem.Computed {
		key, err := in.eval(mem.Property, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		callee := in.vm.GetIndex(recv, key)
		return in.vm.Invoke(callee, recv, args)
	}
	name := identKeyName(mem.Property)
	// Interpreter-declared class members dispatch here; everything else
	// rides the shared dynamic-dispatch ladder (strategies included).
	if v, handled := in.classMember(recv, name); handled {
		if v.Type == bytecode.ValueFunction {
			return in.vm.Invoke(v, recv, args)
		}
		return bytecode.Undefined(), fmt.Errorf("interpreter: %s is not a function", name)
	}
	return in.vm.CallMethod(recv, name, args)
}

func (in *Interpreter) evalPrivateCall(e *ast.CallExpression, priv *ast.PrivateMemberExpression, env *environment) (Value, error) {
	recv, err := in.eval(priv.Object, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	args, err := in.evalArguments(e.Arguments, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	inst := recv.AsInstance()
	if inst == nil {
		return bytecode.Undefined(), fmt.Errorf("interpreter: cannot call private method %s on a non-instance", priv.Name)
	}
	ci := in.classes[inst.Class.Name]
	for c := ci; c != nil; c = c.super {
		if m, ok := c.privateMethods[priv.Name]; ok {
			return in.invokeMethod(m, c, recv, args)
		}
	}
	if v, ok := inst.PrivateFields[priv.Name]; ok && v.Type == bytecode.ValueFunction {
		return in.vm.Invoke(v, recv, args)
	}
	return bytecode.Undefined(), fmt.Errorf("interpreter: private method %s not declared on receiver", priv.Name)
}

// --- new ---------------------------------------------------------------------

func (in *Interpreter) evalNew(e *ast.NewExpression, env *environment) (Value, error) {
	args, err := in.evalArguments(e.Arguments, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if id, ok := e.Callee.(*ast.Identifier); ok {
		if ci, found := in.classes[id.Value]; found {
			return in.construct(ci, args)
		}
	}
	callee, err := in.eval(e.Callee, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if callee.Type == bytecode.ValueString {
		if ci, found := in.classes[callee.AsString()]; found {
			return in.construct(ci, args)
		}
	}
	return in.vm.Construct(callee, args)
}

// --- classes -----------------------------------------------------------------

// classInfo is the interpreter's class directory entry. It owns a shared
// ClassRecord so instances carry a chain-walkable runtime type, while the
// method bodies stay AST-interpreted.
type classInfo struct {
	name           string
	super          *classInfo
	record         *bytecode.ClassRecord
	fields         []*ast.FieldDeclaration
	methods        map[string]*ast.FunctionExpression
	getters        map[string]*ast.FunctionExpression
	setters        map[string]*ast.FunctionExpression
	staticMethods  map[string]*ast.FunctionExpression
	privateMethods map[string]*ast.FunctionExpression
	staticFields   map[string]Value
	defEnv         *environment
}

func (in *Interpreter) declareClass(body *ast.ClassBody, env *environment) error {
	var super *classInfo
	if body.SuperClass != nil {
		if ident, ok := body.SuperClass.(*ast.Identifier); ok {
			super = in.classes[ident.Value]
		}
	}
	var superRecord *bytecode.ClassRecord
	if super != nil {
		superRecord = super.record
	}
	record := &bytecode.ClassRecord{
		Name:             body.Name,
		Super:            superRecord,
		Properties:       map[string]types.Kind{},
		ReadonlyProps:    map[string]bool{},
		Methods:          map[string]*bytecode.FunctionObject{},
		StaticMethods:    map[string]*bytecode.FunctionObject{},
		StaticFields:     map[string]Value{},
		PrivateFields:    map[string]bool{},
		PrivateMethods:   map[string]*bytecode.FunctionObject{},
		FieldInits:       map[string]*bytecode.Chunk{},
		StaticFieldInits: map[string]*bytecode.Chunk{},
	}
	ci := &classInfo{
		name:           body.Name,
		super:          super,
		record:         record,
		fields:         body.Fields,
		methods:        map[string]*ast.FunctionExpression{},
		getters:        map[string]*ast.FunctionExpression{},
		setters:        map[string]*ast.FunctionExpression{},
		staticMethods:  map[string]*ast.FunctionExpression{},
		privateMethods: map[string]*ast.FunctionExpression{},
		staticFields:   map[string]Value{},
		defEnv:         env,
	}
	for _, f := range body.Fields {
		if f.IsStatic {
			continue
		}
		if f.IsPrivate {
			record.PrivateFields[f.Name] = true
		} else {
			record.Properties[f.Name] = types.Unknown
			record.ReadonlyProps[f.Name] = f.IsReadonly
		}
		record.FieldOrder = append(record.FieldOrder, f.Name)
	}
	for _, m := range body.Methods {
		switch {
		case m.IsPrivate:
			ci.privateMethods[m.Name] = m.Function
		case m.IsStatic:
			ci.staticMethods[m.Name] = m.Function
		case m.Kind == ast.MethodGetter:
			ci.getters[m.Name] = m.Function
		case m.Kind == ast.MethodSetter:
			ci.setters[m.Name] = m.Function
		default:
			ci.methods[m.Name] = m.Function
		}
	}
	in.classes[body.Name] = ci
	// Registering the record with the shared runtime lets instanceof,
	// static-field reads/writes through class values, and GetProperty all
	// work identically to the VM path.
	in.vm.Classes[body.Name] = record

	// Static field initializers run at declaration time, published before
	// any user code reads them.
	for _, f := range body.Fields {
		if !f.IsStatic {
			continue
		}
		v := bytecode.Undefined()
		if f.Initializer != nil {
			var err error
			if v, err = in.eval(f.Initializer, env); err != nil {
				return err
			}
		}
		ci.staticFields[f.Name] = v
		record.StaticFields[f.Name] = v
	}
	return nil
}

func (in *Interpreter) construct(ci *classInfo, args []Value) (Value, error) {
	inst := bytecode.NewInstance(ci.record)
	instVal := bytecode.InstanceValue(inst)

	// Field initializers run base-first, in declaration order.
	var chain []*classInfo
	for c := ci; c != nil; c = c.super {
		chain = append([]*classInfo{c}, chain...)
	}
	for _, c := range chain {
		for _, f := range c.fields {
			if f.IsStatic {
				continue
			}
			v := bytecode.Undefined()
			if f.Initializer != nil {
				fieldEnv := newEnvironment(c.defEnv)
				fieldEnv.hasThis = true
				fieldEnv.this = instVal
				var err error
				if v, err = in.eval(f.Initializer, fieldEnv); err != nil {
					return bytecode.Undefined(), err
				}
			}
			if f.IsPrivate {
				inst.PrivateFields[f.Name] = v
			} else {
				inst.Fields[f.Name] = v
			}
		}
	}

	if ctor, declaring := resolveClassMethod(ci, "constructor"); ctor != nil {
		if _, err := in.invokeMethod(ctor, declaring, instVal, args); err != nil {
			return bytecode.Undefined(), err
		}
	}
	return instVal, nil
}

func resolveClassMethod(ci *classInfo, name string) (*ast.FunctionExpression, *classInfo) {
	for c := ci; c != nil; c = c.super {
		if m, ok := c.methods[name]; ok {
			return m, c
		}
	}
	return nil, nil
}

// invokeMethod runs a class method body with this bound and the declaring
// class's definition environment as the lexical parent.
func (in *Interpreter) invokeMethod(fe *ast.FunctionExpression, declaring *classInfo, this Value, args []Value) (Value, error) {
	env := newEnvironment(declaring.defEnv)
	env.declare("__class__", bytecode.StringValue(declaring.name))
	switch {
	case fe.IsGenerator:
		return in.startGeneratorIn(fe, env, this, args, fe.IsAsync), nil
	case fe.IsAsync:
		return in.startAsyncIn(fe, env, this, args), nil
	default:
		return in.callSync(fe, env, this, args, nil)
	}
}

// classMember resolves instance methods and getters declared by the
// interpreter's own class directory; handled=false defers to the shared
// runtime's property/strategy path.
func (in *Interpreter) classMember(recv Value, name string) (Value, bool) {
	inst := recv.AsInstance()
	if recv.Type == bytecode.ValueString {
		// Class statics: the class's first-class value is its name.
		if ci, ok := in.classes[recv.AsString()]; ok {
			for c := ci; c != nil; c = c.super {
				if m, found := c.staticMethods[name]; found {
					declaring := c
					return bytecode.FunctionValue(&bytecode.Callable{
						Name: name,
						Native: func(_ *bytecode.VM, _ *bytecode.Thread, this Value, args []Value) (Value, error) {
							return in.invokeMethod(m, declaring, recv, args)
						},
					}), true
				}
				if v, found := c.record.StaticFields[name]; found {
					return v, true
				}
			}
		}
		return bytecode.Undefined(), false
	}
	if inst == nil {
		return bytecode.Undefined(), false
	}
	ci, ok := in.classes[inst.Class.Name]
	if !ok {
		return bytecode.Undefined(), false
	}
	// Declared fields (and extras) win over methods, same as the VM's
	// GetProperty ordering.
	if _, declared := inst.Fields[name]; declared {
		return bytecode.Undefined(), false
	}
	for c := ci; c != nil; c = c.super {
		if g, found := c.getters[name]; found {
			v, err := in.invokeMethod(g, c, recv, nil)
			if err != nil {
				return bytecode.Undefined(), false
			}
			return v, true
		}
		if m, found := c.methods[name]; found {
			declaring := c
			return bytecode.FunctionValue(&bytecode.Callable{
				Name: name,
				Native: func(_ *bytecode.VM, _ *bytecode.Thread, this Value, args []Value) (Value, error) {
					bound := recv
					if !this.IsNullish() {
						bound = this
					}
					return in.invokeMethod(m, declaring, bound, args)
				},
			}), true
		}
	}
	return bytecode.Undefined(), false
}

func (in *Interpreter) evalSuperCall(e *ast.CallExpression, env *environment) (Value, error) {
	ci := in.activeClass(env)
	if ci == nil || ci.super == nil {
		return bytecode.Undefined(), fmt.Errorf("interpreter: 'super' call outside a derived class constructor")
	}
	args, err := in.evalArguments(e.Arguments, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	this := env.lookupThis()
	if ctor, declaring := resolveClassMethod(ci.super, "constructor"); ctor != nil {
		return in.invokeMethod(ctor, declaring, this, args)
	}
	return bytecode.Undefined(), nil
}

func (in *Interpreter) evalSuperMethodCall(e *ast.CallExpression, mem *ast.MemberExpression, env *environment) (Value, error) {
	ci := in.activeClass(env)
	if ci == nil || ci.super == nil {
		return bytecode.Undefined(), fmt.Errorf("interpreter: 'super' used outside a derived class method")
	}
	name := identKeyName(mem.Property)
	m, declaring := resolveClassMethod(ci.super, name)
	if m == nil {
		return bytecode.Undefined(), fmt.Errorf("interpreter: no superclass method %q", name)
	}
	args, err := in.evalArguments(e.Arguments, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	return in.invokeMethod(m, declaring, env.lookupThis(), args)
}

// activeClass finds the class whose method body is currently executing, via
// the __class__ marker invokeMethod plants.
func (in *Interpreter) activeClass(env *environment) *classInfo {
	if v, ok := env.lookup("__class__"); ok {
		return in.classes[v.AsString()]
	}
	return nil
}

// --- async / generators ------------------------------------------------------

// genContext is the interpreter's coroutine mailbox: the body goroutine
// parks in yield() while the consumer drives next/return/throw.
type genContext struct {
	out chan genSignal
	in  chan genResume
}

type genSignal struct {
	done  bool
	value Value
	err   error
}

type genResume struct {
	kind  int // 0 next, 1 throw, 2 return
	value Value
}

func (g *genContext) yield(v Value) (Value, error) {
	g.out <- genSignal{value: v}
	resume := <-g.in
	switch resume.kind {
	case 1:
		return bytecode.Undefined(), bytecode.ThrownError(resume.value)
	case 2:
		return bytecode.Undefined(), returnSignal{value: resume.value}
	default:
		return resume.value, nil
	}
}

func (in *Interpreter) startGenerator(fe *ast.FunctionExpression, defEnv *environment, this Value, args []Value, isAsync bool) Value {
	return in.startGeneratorIn(fe, defEnv, this, args, isAsync)
}

func (in *Interpreter) startGeneratorIn(fe *ast.FunctionExpression, defEnv *environment, this Value, args []Value, isAsync bool) Value {
	gen := &genContext{out: make(chan genSignal), in: make(chan genResume)}
	started := false
	finished := false

	start := func() {
		started = true
		go func() {
			v, err := in.callSync(fe, defEnv, this, args, gen)
			gen.out <- genSignal{done: true, value: v, err: err}
		}()
	}

	drive := func(kind int, arg Value) (Value, error) {
		if finished {
			return iterResultObject(true, bytecode.Undefined()), nil
		}
		if !started {
			switch kind {
			case 2:
				finished = true
				return iterResultObject(true, arg), nil
			case 1:
				finished = true
				return bytecode.Undefined(), bytecode.ThrownError(arg)
			}
			start()
		} else {
			gen.in <- genResume{kind: kind, value: arg}
		}
		sig := <-gen.out
		if sig.done || sig.err != nil {
			finished = true
		}
		if sig.err != nil {
			return bytecode.Undefined(), sig.err
		}
		return iterResultObject(sig.done, sig.value), nil
	}

	wrap := func(v Value, err error) (Value, error) {
		if !isAsync || err != nil {
			return v, err
		}
		p := in.vm.NewPromise()
		in.vm.Resolve(p, v)
		return bytecode.PromiseValue(p), nil
	}

	obj := bytecode.NewPlainObject()
	driver := func(kind int) *bytecode.Callable {
		return &bytecode.Callable{Name: "next", Native: func(_ *bytecode.VM, _ *bytecode.Thread, _ Value, args []Value) (Value, error) {
			a := bytecode.Undefined()
			if len(args) > 0 {
				a = args[0]
			}
			return wrap(drive(kind, a))
		}}
	}
	obj.Set("next", bytecode.FunctionValue(driver(0)))
	obj.Set("throw", bytecode.FunctionValue(driver(1)))
	obj.Set("return", bytecode.FunctionValue(driver(2)))
	return bytecode.ObjectValue(obj)
}

func (in *Interpreter) startAsync(fe *ast.FunctionExpression, defEnv *environment, this Value, args []Value) Value {
	return in.startAsyncIn(fe, defEnv, this, args)
}

func (in *Interpreter) startAsyncIn(fe *ast.FunctionExpression, defEnv *environment, this Value, args []Value) Value {
	p := in.vm.NewPromise()
	done := in.vm.TrackAsync()
	go func() {
		defer done()
		v, err := in.callSync(fe, defEnv, this, args, nil)
		if err != nil {
			in.vm.Reject(p, bytecode.ThrownValue(err))
			return
		}
		in.vm.Resolve(p, v)
	}()
	return bytecode.PromiseValue(p)
}

// yieldDelegate implements yield*: it pulls from iterable through the sync
// iterator protocol (also inside an async generator; the async protocol is
// not probed), awaits promise-valued items, and re-yields every pulled value.
func (in *Interpreter) yieldDelegate(gen *genContext, iterable Value) (Value, error) {
	next, err := in.vm.Iterator(iterable, false)
	if err != nil {
		return bytecode.Undefined(), err
	}
	for {
		item, done, err := next()
		if err != nil {
			return bytecode.Undefined(), err
		}
		if done {
			return item, nil
		}
		if item.Type == bytecode.ValuePromise {
			if item, err = in.vm.Await(item); err != nil {
				return bytecode.Undefined(), err
			}
		}
		if _, err := gen.yield(item); err != nil {
			return bytecode.Undefined(), err
		}
	}
}

func iterResultObject(done bool, value Value) Value {
	obj := bytecode.NewPlainObject()
	obj.Set("value", value)
	obj.Set("done", bytecode.BoolValue(done))
	return bytecode.ObjectValue(obj)
}
