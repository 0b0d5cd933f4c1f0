package bytecode

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// vm_builtins.go implements the C1 helper catalog the compiler targets
// through OpCallBuiltin: the `__`-prefixed lowering trampolines (iterator
// protocol, destructuring rest, module loading), the callable global
// built-in functions (parseInt, Symbol, Date, ...), and the `__globalGet`
// identifier fallback that materializes built-in namespaces on demand.

// DateInstance is the host-object payload backing Date values.
type DateInstance struct {
	Time time.Time
}

// builtinFuncs is the direct-call table: `name(args)` on an undeclared
// identifier compiles straight to OpCallBuiltin with this name.
var builtinFuncs map[string]BuiltinFunction

func init() {
	builtinFuncs = map[string]BuiltinFunction{
		"__globalGet":          builtinGlobalGet,
		"__isUndefined":        func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) { return BoolValue(arg(args, 0).IsUndefined()), nil },
		"__arrayLength":        builtinArrayLength,
		"__arraySliceFrom":     builtinArraySliceFrom,
		"__objectRestExcluding": builtinObjectRestExcluding,
		"__objectSpread":       func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) { return arg(args, 0), nil },
		"__ownKeys":            builtinOwnKeys,
		"__typeofGlobal":       builtinTypeofGlobal,
		"__captureThis":        builtinCaptureThis,
		"__iterNew":            builtinIterNew,
		"__asyncIterNew":       builtinAsyncIterNew,
		"__iterNext":           builtinIterNext,
		"__loadModule":         builtinLoadModule,
		"__dynamicImport":      builtinDynamicImport,

		"parseInt":   builtinParseInt,
		"parseFloat": builtinParseFloat,
		"isNaN":      func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) { return BoolValue(math.IsNaN(ToNumber(arg(args, 0)))), nil },
		"isFinite": func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
			n := ToNumber(arg(args, 0))
			return BoolValue(!math.IsNaN(n) && !math.IsInf(n, 0)), nil
		},
		"String":  func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) { return StringValue(ToDisplayString(arg(args, 0))), nil },
		"Number":  func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) { return NumberValue(ToNumber(arg(args, 0))), nil },
		"Boolean": func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) { return BoolValue(IsTruthy(arg(args, 0))), nil },
		"Symbol":  builtinSymbol,
		"BigInt":  builtinBigInt,
		"Date":    builtinDateCall,
		"Array":   builtinArrayCall,
		"Map":     builtinMapCtor,
		"Set":     builtinSetCtor,
		"WeakMap": func(_ *VM, _ *Thread, _ Value, _ []Value) (Value, error) { return WeakMapValue(NewWeakMapInstance()), nil },
		"WeakSet": func(_ *VM, _ *Thread, _ Value, _ []Value) (Value, error) { return WeakSetValue(NewWeakSetInstance()), nil },
		"RegExp":  builtinRegExpCtor,
		"Promise": builtinPromiseCtor,
		"Error":   builtinErrorCtor,
	}
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined()
}

func (t *Thread) callBuiltin(name string, args []Value) (Value, error) {
	if fn, ok := builtinFuncs[name]; ok {
		return fn(t.vm, t, Undefined(), args)
	}
	return Undefined(), t.runtimeErrorf("%s is not defined", name)
}

// builtinGlobalGet is the §4.3 resolution ladder's final tier: an identifier
// that is no local, capture, global slot, declared function, or class. It
// answers with the built-in namespaces, constructors, and value globals, or
// undefined.
func builtinGlobalGet(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
	name := ToDisplayString(arg(args, 0))
	switch name {
	case "undefined":
		return Undefined(), nil
	case "NaN":
		return NumberValue(math.NaN()), nil
	case "Infinity":
		return NumberValue(math.Inf(1)), nil
	case "console":
		return consoleNamespace(vm), nil
	case "Math":
		return mathNamespace(vm), nil
	case "JSON", "Object", "Number", "Array", "Symbol", "process", "Buffer", "String":
		return strategyNamespace(vm, name), nil
	case "globalThis":
		return ObjectValue(NewPlainObject()), nil
	}
	if fn, ok := builtinFuncs[name]; ok && !strings.HasPrefix(name, "__") {
		return FunctionValue(&Callable{Name: name, Native: fn}), nil
	}
	return Undefined(), nil
}

func builtinTypeofGlobal(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
	v, err := builtinGlobalGet(vm, t, Undefined(), args)
	if err != nil {
		return Undefined(), err
	}
	return StringValue(v.TypeOf()), nil
}

func builtinArrayLength(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
	if a := arg(args, 0).AsArray(); a != nil {
		return NumberValue(float64(a.Len())), nil
	}
	return NumberValue(0), nil
}

func builtinArraySliceFrom(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
	src := arg(args, 0).AsArray()
	start := int(ToNumber(arg(args, 1)))
	if src == nil || start >= len(src.Elements) {
		return ArrayValue(NewArrayInstance(nil)), nil
	}
	return ArrayValue(NewArrayInstance(src.Elements[start:])), nil
}

func builtinObjectRestExcluding(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	src := arg(args, 0)
	excluded := map[string]bool{}
	if ex := arg(args, 1).AsArray(); ex != nil {
		for _, k := range ex.Elements {
			excluded[ToDisplayString(k)] = true
		}
	}
	out := NewPlainObject()
	for _, k := range OwnKeys(src) {
		if excluded[k] {
			continue
		}
		out.Set(k, vm.GetProperty(src, k))
	}
	return ObjectValue(out), nil
}

func builtinOwnKeys(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	keys := OwnKeys(arg(args, 0))
	vals := make([]Value, len(keys))
	for i, k := range keys {
		vals[i] = StringValue(k)
	}
	return ArrayValue(&ArrayInstance{Elements: vals}), nil
}

func builtinCaptureThis(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	closure := arg(args, 0)
	this := arg(args, 1)
	if c := closure.AsCallable(); c != nil {
		c.This = this
		c.PinnedThis = true
	}
	return closure, nil
}

func builtinParseInt(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	s := strings.TrimSpace(ToDisplayString(arg(args, 0)))
	radix := 10
	if len(args) > 1 && !args[1].IsNullish() {
		if r := int(ToNumber(args[1])); r != 0 {
			radix = r
		}
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if radix == 16 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		s = s[2:]
	} else if radix == 10 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		radix, s = 16, s[2:]
	}
	end := 0
	for end < len(s) {
		if _, err := strconv.ParseInt(s[end:end+1], radix, 64); err != nil {
			break
		}
		end++
	}
	if end == 0 {
		return NumberValue(math.NaN()), nil
	}
	n, err := strconv.ParseInt(s[:end], radix, 64)
	if err != nil {
		return NumberValue(math.NaN()), nil
	}
	if neg {
		n = -n
	}
	return NumberValue(float64(n)), nil
}

func builtinParseFloat(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	s := strings.TrimSpace(ToDisplayString(arg(args, 0)))
	end := len(s)
	for end > 0 {
		if _, err := strconv.ParseFloat(s[:end], 64); err == nil {
			break
		}
		end--
	}
	if end == 0 {
		return NumberValue(math.NaN()), nil
	}
	f, _ := strconv.ParseFloat(s[:end], 64)
	return NumberValue(f), nil
}

func builtinSymbol(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	desc := ""
	if len(args) > 0 && !args[0].IsNullish() {
		desc = ToDisplayString(args[0])
	}
	return SymbolValue(NewSymbol(desc)), nil
}

func builtinBigInt(t0 *VM, t *Thread, _ Value, args []Value) (Value, error) {
	v := arg(args, 0)
	switch v.Type {
	case ValueBigInt:
		return v, nil
	case ValueNumber:
		f := v.AsNumber()
		if f != math.Trunc(f) || math.IsNaN(f) || math.IsInf(f, 0) {
			return Undefined(), t.runtimeErrorf("cannot convert %s to a BigInt", v.String())
		}
		bi, _ := parseBigIntLiteral(strconv.FormatFloat(f, 'f', -1, 64))
		return BigIntValue(bi), nil
	case ValueString:
		bi, ok := parseBigIntLiteral(strings.TrimSpace(v.AsString()))
		if !ok {
			return Undefined(), t.runtimeErrorf("cannot convert %q to a BigInt", v.AsString())
		}
		return BigIntValue(bi), nil
	default:
		return Undefined(), t.runtimeErrorf("cannot convert %s to a BigInt", v.Type.String())
	}
}

func builtinDateCall(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	switch len(args) {
	case 0:
		return HostValue(&DateInstance{Time: time.Now()}), nil
	case 1:
		v := args[0]
		if v.Type == ValueString {
			if parsed, err := time.Parse(time.RFC3339, v.AsString()); err == nil {
				return HostValue(&DateInstance{Time: parsed}), nil
			}
			if parsed, err := time.Parse("2006-01-02", v.AsString()); err == nil {
				return HostValue(&DateInstance{Time: parsed.UTC()}), nil
			}
			return HostValue(&DateInstance{}), nil
		}
		ms := ToNumber(v)
		return HostValue(&DateInstance{Time: time.UnixMilli(int64(ms)).UTC()}), nil
	default:
		y := int(ToNumber(args[0]))
		mo := int(ToNumber(arg(args, 1)))
		d := 1
		if len(args) > 2 {
			d = int(ToNumber(args[2]))
		}
		hh, mm, ss := 0, 0, 0
		if len(args) > 3 {
			hh = int(ToNumber(args[3]))
		}
		if len(args) > 4 {
			mm = int(ToNumber(args[4]))
		}
		if len(args) > 5 {
			ss = int(ToNumber(args[5]))
		}
		return HostValue(&DateInstance{Time: time.Date(y, time.Month(mo+1), d, hh, mm, ss, 0, time.UTC)}), nil
	}
}

func builtinArrayCall(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	if len(args) == 1 && args[0].Type == ValueNumber {
		n := int(args[0].AsNumber())
		elems := make([]Value, n)
		for i := range elems {
			elems[i] = Undefined()
		}
		return ArrayValue(&ArrayInstance{Elements: elems}), nil
	}
	return ArrayValue(NewArrayInstance(args)), nil
}

func builtinMapCtor(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
	m := NewMapInstance()
	if len(args) > 0 && !args[0].IsNullish() {
		entries, err := t.iterateAll(args[0])
		if err != nil {
			return Undefined(), err
		}
		for _, e := range entries {
			if pair := e.AsArray(); pair != nil && pair.Len() >= 2 {
				m.Set(pair.Elements[0], pair.Elements[1])
			}
		}
	}
	return MapValue(m), nil
}

func builtinSetCtor(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
	s := NewSetInstance()
	if len(args) > 0 && !args[0].IsNullish() {
		items, err := t.iterateAll(args[0])
		if err != nil {
			return Undefined(), err
		}
		for _, it := range items {
			s.Add(it)
		}
	}
	return SetValue(s), nil
}

func builtinRegExpCtor(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	src := ToDisplayString(arg(args, 0))
	flags := ""
	if len(args) > 1 && !args[1].IsNullish() {
		flags = ToDisplayString(args[1])
	}
	return RegExpValue(&RegExpInstance{Source: src, Flags: flags, Global: strings.ContainsRune(flags, 'g')}), nil
}

// builtinPromiseCtor implements `new Promise(executor)`.
func builtinPromiseCtor(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
	executor := arg(args, 0)
	p := newPromiseHandle(vm)
	resolve := FunctionValue(&Callable{Name: "resolve", Native: func(vm *VM, _ *Thread, _ Value, a []Value) (Value, error) {
		vm.resolvePromise(p, arg(a, 0))
		return Undefined(), nil
	}})
	reject := FunctionValue(&Callable{Name: "reject", Native: func(vm *VM, _ *Thread, _ Value, a []Value) (Value, error) {
		vm.rejectPromise(p, arg(a, 0))
		return Undefined(), nil
	}})
	if executor.Type == ValueFunction {
		if _, err := t.callValue(executor, []Value{resolve, reject}, Undefined(), false); err != nil {
			vm.rejectPromise(p, thrownValueOf(asRuntimeError(err)))
		}
	}
	return PromiseValue(p), nil
}

// builtinErrorCtor backs `new Error(msg)` / `Error(msg)` with a plain
// object carrying message/name — enough for throw/catch round trips.
func builtinErrorCtor(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
	obj := NewPlainObject()
	obj.Set("name", StringValue("Error"))
	obj.Set("message", StringValue(ToDisplayString(arg(args, 0))))
	return ObjectValue(obj), nil
}

// --- Iterator protocol -----------------------------------------------------

// valueIterator is the uniform pull handle every for..of / spread / yield*
// site drives. done=true delivers the iterator's completion value.
type valueIterator struct {
	next func(t *Thread) (v Value, done bool, err error)
}

func builtinIterNew(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
	iter, err := t.newIterator(arg(args, 0), false)
	if err != nil {
		return Undefined(), err
	}
	return HostValue(iter), nil
}

func builtinAsyncIterNew(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
	iter, err := t.newIterator(arg(args, 0), true)
	if err != nil {
		return Undefined(), err
	}
	return HostValue(iter), nil
}

// builtinIterNext pulls one item, answering with the compiler's expected
// [done, value] pair.
func builtinIterNext(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
	h := arg(args, 0)
	iter, ok := h.Data.(*valueIterator)
	if h.Type != ValueHost || !ok {
		return Undefined(), t.runtimeErrorf("value is not an iterator handle")
	}
	v, done, err := iter.next(t)
	if err != nil {
		return Undefined(), err
	}
	return ArrayValue(&ArrayInstance{Elements: []Value{BoolValue(done), v}}), nil
}

// newIterator materializes a pull iterator over any iterable in the value
// universe. preferAsync probes the asynchronous protocol first (§9's mixed
// yield* delegation decision).
func (t *Thread) newIterator(v Value, preferAsync bool) (*valueIterator, error) {
	switch v.Type {
	case ValueArray:
		arr := v.Data.(*ArrayInstance)
		i := 0
		return &valueIterator{next: func(_ *Thread) (Value, bool, error) {
			if i >= len(arr.Elements) {
				return Undefined(), true, nil
			}
			el := arr.Elements[i]
			i++
			return el, false, nil
		}}, nil
	case ValueString:
		runes := []rune(v.AsString())
		i := 0
		return &valueIterator{next: func(_ *Thread) (Value, bool, error) {
			if i >= len(runes) {
				return Undefined(), true, nil
			}
			s := string(runes[i])
			i++
			return StringValue(s), false, nil
		}}, nil
	case ValueMap:
		entries := v.Data.(*MapInstance).Entries()
		i := 0
		return &valueIterator{next: func(_ *Thread) (Value, bool, error) {
			if i >= len(entries) {
				return Undefined(), true, nil
			}
			e := entries[i]
			i++
			return ArrayValue(&ArrayInstance{Elements: []Value{e[0], e[1]}}), false, nil
		}}, nil
	case ValueSet:
		items := v.Data.(*SetInstance).Items()
		i := 0
		return &valueIterator{next: func(_ *Thread) (Value, bool, error) {
			if i >= len(items) {
				return Undefined(), true, nil
			}
			el := items[i]
			i++
			return el, false, nil
		}}, nil
	case ValueHost:
		if iter, ok := v.Data.(*valueIterator); ok {
			return iter, nil
		}
	case ValueObject:
		obj := v.Data.(*PlainObject)
		iterObj := v
		if preferAsync {
			if m, ok := obj.GetSymbol(SymbolAsyncIterator); ok && m.Type == ValueFunction {
				got, err := t.callValue(m, nil, v, true)
				if err != nil {
					return nil, err
				}
				iterObj = got
			}
		}
		if iterObj == v {
			if m, ok := obj.GetSymbol(SymbolIterator); ok && m.Type == ValueFunction {
				got, err := t.callValue(m, nil, v, true)
				if err != nil {
					return nil, err
				}
				iterObj = got
			}
		}
		return t.protocolIterator(iterObj, preferAsync)
	}
	return nil, t.runtimeErrorf("%s is not iterable", v.Type.String())
}

// protocolIterator drives a user-protocol iterator object: anything with a
// callable `next` returning {value, done} records (a promise of one, for
// the async protocol).
func (t *Thread) protocolIterator(iterObj Value, awaitRecords bool) (*valueIterator, error) {
	nextFn := t.vm.GetProperty(iterObj, "next")
	if nextFn.Type != ValueFunction {
		return nil, t.runtimeErrorf("object is not iterable (missing next method)")
	}
	return &valueIterator{next: func(t *Thread) (Value, bool, error) {
		rec, err := t.callValue(nextFn, nil, iterObj, true)
		if err != nil {
			return Undefined(), false, err
		}
		if awaitRecords && rec.Type == ValuePromise {
			if rec, err = t.awaitValue(rec); err != nil {
				return Undefined(), false, err
			}
		}
		done := IsTruthy(t.vm.GetProperty(rec, "done"))
		return t.vm.GetProperty(rec, "value"), done, nil
	}}, nil
}

// iterateAll drains an iterable into a slice — expandSpreadArgs' core.
func (t *Thread) iterateAll(v Value) ([]Value, error) {
	iter, err := t.newIterator(v, false)
	if err != nil {
		return nil, err
	}
	var out []Value
	for {
		item, done, err := iter.next(t)
		if err != nil {
			return nil, err
		}
		if done {
			return out, nil
		}
		out = append(out, item)
	}
}

// --- Module loading --------------------------------------------------------

func builtinLoadModule(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
	path := ToDisplayString(arg(args, 0))
	if vm.LoadModule == nil {
		return Undefined(), t.runtimeErrorf("cannot resolve module %q: no module loader installed", path)
	}
	ns, err := vm.LoadModule(path)
	if err != nil {
		return Undefined(), asRuntimeError(err)
	}
	return ns, nil
}

func builtinDynamicImport(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
	p := newPromiseHandle(vm)
	ns, err := builtinLoadModule(vm, t, Undefined(), args)
	if err != nil {
		vm.rejectPromise(p, thrownValueOf(asRuntimeError(err)))
	} else {
		vm.resolvePromise(p, ns)
	}
	return PromiseValue(p), nil
}
