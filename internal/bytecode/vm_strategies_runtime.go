package bytecode

import (
	"fmt"
	"math"
	"math/big"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// vm_strategies_runtime.go is the runtime half of C5: for every strategy
// key the compiler can emit ("Array.map", "Math.floor", "console.log", ...)
// this file provides the native that executes it. The same tables back the
// fully dynamic OpCallMethod tier, so a receiver whose static type the
// checker missed still reaches the identical implementation.

var instanceStrategies map[string]BuiltinFunction
var staticStrategies map[string]BuiltinFunction

// runtimeStrategyKind classifies a runtime value into its C5 receiver-kind
// key, the dynamic mirror of receiverStrategyTypeName's static answer.
func runtimeStrategyKind(v Value) (string, bool) {
	switch v.Type {
	case ValueArray:
		return "Array", true
	case ValueString:
		return "String", true
	case ValueMap:
		return "Map", true
	case ValueSet:
		return "Set", true
	case ValueWeakMap:
		return "WeakMap", true
	case ValueWeakSet:
		return "WeakSet", true
	case ValueRegExp:
		return "RegExp", true
	case ValueBuffer:
		return "Buffer", true
	case ValuePromise:
		return "Promise", true
	case ValueHost:
		if _, ok := v.Data.(*DateInstance); ok {
			return "Date", true
		}
	case ValueBigInt:
		return "BigInt", true
	case ValueNumber:
		return "Number", true
	}
	return "", false
}

func init() {
	instanceStrategies = map[string]BuiltinFunction{}
	staticStrategies = map[string]BuiltinFunction{}
	registerArrayStrategies()
	registerStringStrategies()
	registerNumberInstanceStrategies()
	registerDateStrategies()
	registerCollectionStrategies()
	registerRegExpBufferStrategies()
	registerPromiseStrategies()
	registerConsoleStrategies()
	registerMathStrategies()
	registerJSONStrategies()
	registerObjectStrategies()
	registerStaticContainerStrategies()
	registerProcessStrategies()
}

func inst(name string, fn BuiltinFunction)   { instanceStrategies[name] = fn }
func static(name string, fn BuiltinFunction) { staticStrategies[name] = fn }

// --- Array ------------------------------------------------------------------

func recvArray(t *Thread, this Value) (*ArrayInstance, error) {
	if a := this.AsArray(); a != nil {
		return a, nil
	}
	return nil, t.runtimeErrorf("receiver is not an array")
}

// normalizeSliceIndex clamps a possibly-negative index against length the
// way slice/at do.
func normalizeSliceIndex(i float64, length int) int {
	n := int(i)
	if n < 0 {
		n += length
	}
	if n < 0 {
		n = 0
	}
	if n > length {
		n = length
	}
	return n
}

func registerArrayStrategies() {
	inst("Array.push", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		a.Elements = append(a.Elements, args...)
		return NumberValue(float64(len(a.Elements))), nil
	})
	inst("Array.pop", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		if len(a.Elements) == 0 {
			return Undefined(), nil
		}
		v := a.Elements[len(a.Elements)-1]
		a.Elements = a.Elements[:len(a.Elements)-1]
		return v, nil
	})
	inst("Array.shift", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		if len(a.Elements) == 0 {
			return Undefined(), nil
		}
		v := a.Elements[0]
		a.Elements = a.Elements[1:]
		return v, nil
	})
	inst("Array.unshift", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		a.Elements = append(append([]Value{}, args...), a.Elements...)
		return NumberValue(float64(len(a.Elements))), nil
	})
	inst("Array.slice", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		start, end := 0, len(a.Elements)
		if len(args) > 0 && !args[0].IsNullish() {
			start = normalizeSliceIndex(ToNumber(args[0]), len(a.Elements))
		}
		if len(args) > 1 && !args[1].IsNullish() {
			end = normalizeSliceIndex(ToNumber(args[1]), len(a.Elements))
		}
		if start > end {
			start = end
		}
		return ArrayValue(NewArrayInstance(a.Elements[start:end])), nil
	})
	inst("Array.splice", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		start := 0
		if len(args) > 0 {
			start = normalizeSliceIndex(ToNumber(args[0]), len(a.Elements))
		}
		deleteCount := len(a.Elements) - start
		if len(args) > 1 {
			deleteCount = int(ToNumber(args[1]))
		}
		if deleteCount < 0 {
			deleteCount = 0
		}
		if start+deleteCount > len(a.Elements) {
			deleteCount = len(a.Elements) - start
		}
		removed := NewArrayInstance(a.Elements[start : start+deleteCount])
		var inserted []Value
		if len(args) > 2 {
			inserted = args[2:]
		}
		tail := append([]Value{}, a.Elements[start+deleteCount:]...)
		a.Elements = append(append(a.Elements[:start], inserted...), tail...)
		return ArrayValue(removed), nil
	})
	inst("Array.concat", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		out := append([]Value{}, a.Elements...)
		for _, v := range args {
			if other := v.AsArray(); other != nil {
				out = append(out, other.Elements...)
			} else {
				out = append(out, v)
			}
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("Array.join", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		sep := ","
		if len(args) > 0 && !args[0].IsNullish() {
			sep = ToDisplayString(args[0])
		}
		parts := make([]string, len(a.Elements))
		for i, el := range a.Elements {
			if el.IsNullish() {
				parts[i] = ""
			} else {
				parts[i] = ToDisplayString(el)
			}
		}
		return StringValue(strings.Join(parts, sep)), nil
	})
	inst("Array.indexOf", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		target := arg(args, 0)
		for i, el := range a.Elements {
			if StrictEquals(el, target) {
				return NumberValue(float64(i)), nil
			}
		}
		return NumberValue(-1), nil
	})
	inst("Array.lastIndexOf", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		target := arg(args, 0)
		for i := len(a.Elements) - 1; i >= 0; i-- {
			if StrictEquals(a.Elements[i], target) {
				return NumberValue(float64(i)), nil
			}
		}
		return NumberValue(-1), nil
	})
	inst("Array.includes", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		target := arg(args, 0)
		for _, el := range a.Elements {
			// includes uses SameValueZero: NaN finds NaN, unlike indexOf.
			if StrictEquals(el, target) || (el.Type == ValueNumber && target.Type == ValueNumber &&
				math.IsNaN(el.AsNumber()) && math.IsNaN(target.AsNumber())) {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil
	})
	inst("Array.at", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		v, _ := a.At(int(ToNumber(arg(args, 0))))
		return v, nil
	})
	inst("Array.find", arrayFindStrategy(false))
	inst("Array.findIndex", arrayFindStrategy(true))
	inst("Array.findLast", func(vm *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		for i := len(a.Elements) - 1; i >= 0; i-- {
			hit, err := arrayCallbackTruthy(t, cb, a.Elements[i], i, this)
			if err != nil {
				return Undefined(), err
			}
			if hit {
				return a.Elements[i], nil
			}
		}
		return Undefined(), nil
	})
	inst("Array.filter", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		var out []Value
		for i, el := range a.Elements {
			hit, err := arrayCallbackTruthy(t, cb, el, i, this)
			if err != nil {
				return Undefined(), err
			}
			if hit {
				out = append(out, el)
			}
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("Array.map", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		out := make([]Value, len(a.Elements))
		for i, el := range a.Elements {
			v, err := t.callValue(cb, []Value{el, NumberValue(float64(i)), this}, Undefined(), false)
			if err != nil {
				return Undefined(), err
			}
			out[i] = v
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("Array.forEach", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		for i, el := range a.Elements {
			if _, err := t.callValue(cb, []Value{el, NumberValue(float64(i)), this}, Undefined(), false); err != nil {
				return Undefined(), err
			}
		}
		return Undefined(), nil
	})
	inst("Array.reduce", arrayReduceStrategy(false))
	inst("Array.reduceRight", arrayReduceStrategy(true))
	inst("Array.some", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		for i, el := range a.Elements {
			hit, err := arrayCallbackTruthy(t, cb, el, i, this)
			if err != nil {
				return Undefined(), err
			}
			if hit {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil
	})
	inst("Array.every", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		for i, el := range a.Elements {
			hit, err := arrayCallbackTruthy(t, cb, el, i, this)
			if err != nil {
				return Undefined(), err
			}
			if !hit {
				return BoolValue(false), nil
			}
		}
		return BoolValue(true), nil
	})
	inst("Array.sort", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		if err := sortElements(t, a.Elements, arg(args, 0)); err != nil {
			return Undefined(), err
		}
		return this, nil
	})
	inst("Array.toSorted", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		out := append([]Value{}, a.Elements...)
		if err := sortElements(t, out, arg(args, 0)); err != nil {
			return Undefined(), err
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("Array.reverse", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		reverseElements(a.Elements)
		return this, nil
	})
	inst("Array.toReversed", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		out := append([]Value{}, a.Elements...)
		reverseElements(out)
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("Array.with", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		idx := int(ToNumber(arg(args, 0)))
		if idx < 0 {
			idx += len(a.Elements)
		}
		if idx < 0 || idx >= len(a.Elements) {
			return Undefined(), t.runtimeErrorf("invalid index %d for Array.with", idx)
		}
		out := append([]Value{}, a.Elements...)
		out[idx] = arg(args, 1)
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("Array.flat", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		depth := 1
		if len(args) > 0 && !args[0].IsNullish() {
			depth = int(ToNumber(args[0]))
		}
		return ArrayValue(&ArrayInstance{Elements: flattenElements(a.Elements, depth)}), nil
	})
	inst("Array.flatMap", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		var out []Value
		for i, el := range a.Elements {
			v, err := t.callValue(cb, []Value{el, NumberValue(float64(i)), this}, Undefined(), false)
			if err != nil {
				return Undefined(), err
			}
			if inner := v.AsArray(); inner != nil {
				out = append(out, inner.Elements...)
			} else {
				out = append(out, v)
			}
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("Array.fill", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		v := arg(args, 0)
		start, end := 0, len(a.Elements)
		if len(args) > 1 {
			start = normalizeSliceIndex(ToNumber(args[1]), len(a.Elements))
		}
		if len(args) > 2 {
			end = normalizeSliceIndex(ToNumber(args[2]), len(a.Elements))
		}
		for i := start; i < end; i++ {
			a.Elements[i] = v
		}
		return this, nil
	})
	inst("Array.copyWithin", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		n := len(a.Elements)
		target := normalizeSliceIndex(ToNumber(arg(args, 0)), n)
		start := 0
		if len(args) > 1 {
			start = normalizeSliceIndex(ToNumber(args[1]), n)
		}
		end := n
		if len(args) > 2 {
			end = normalizeSliceIndex(ToNumber(args[2]), n)
		}
		seg := append([]Value{}, a.Elements[start:end]...)
		for i, v := range seg {
			if target+i >= n {
				break
			}
			a.Elements[target+i] = v
		}
		return this, nil
	})
	inst("Array.keys", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		keys := make([]Value, len(a.Elements))
		for i := range a.Elements {
			keys[i] = NumberValue(float64(i))
		}
		return sliceIteratorObject(keys), nil
	})
	inst("Array.values", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		return sliceIteratorObject(append([]Value{}, a.Elements...)), nil
	})
	inst("Array.entries", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		entries := make([]Value, len(a.Elements))
		for i, el := range a.Elements {
			entries[i] = ArrayValue(&ArrayInstance{Elements: []Value{NumberValue(float64(i)), el}})
		}
		return sliceIteratorObject(entries), nil
	})
}

func arrayFindStrategy(wantIndex bool) BuiltinFunction {
	return func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		for i, el := range a.Elements {
			hit, err := arrayCallbackTruthy(t, cb, el, i, this)
			if err != nil {
				return Undefined(), err
			}
			if hit {
				if wantIndex {
					return NumberValue(float64(i)), nil
				}
				return el, nil
			}
		}
		if wantIndex {
			return NumberValue(-1), nil
		}
		return Undefined(), nil
	}
}

func arrayReduceStrategy(fromRight bool) BuiltinFunction {
	return func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		a, err := recvArray(t, this)
		if err != nil {
			return Undefined(), err
		}
		cb := arg(args, 0)
		order := make([]int, len(a.Elements))
		for i := range order {
			if fromRight {
				order[i] = len(a.Elements) - 1 - i
			} else {
				order[i] = i
			}
		}
		var acc Value
		start := 0
		if len(args) > 1 {
			acc = args[1]
		} else {
			if len(a.Elements) == 0 {
				return Undefined(), t.runtimeErrorf("reduce of empty array with no initial value")
			}
			acc = a.Elements[order[0]]
			start = 1
		}
		for _, idx := range order[start:] {
			v, err := t.callValue(cb, []Value{acc, a.Elements[idx], NumberValue(float64(idx)), this}, Undefined(), false)
			if err != nil {
				return Undefined(), err
			}
			acc = v
		}
		return acc, nil
	}
}

func arrayCallbackTruthy(t *Thread, cb, el Value, i int, this Value) (bool, error) {
	v, err := t.callValue(cb, []Value{el, NumberValue(float64(i)), this}, Undefined(), false)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

func reverseElements(els []Value) {
	for i, j := 0, len(els)-1; i < j; i, j = i+1, j-1 {
		els[i], els[j] = els[j], els[i]
	}
}

func flattenElements(els []Value, depth int) []Value {
	var out []Value
	for _, el := range els {
		if inner := el.AsArray(); inner != nil && depth > 0 {
			out = append(out, flattenElements(inner.Elements, depth-1)...)
		} else {
			out = append(out, el)
		}
	}
	return out
}

// sortElements implements Array.prototype.sort's default string ordering
// plus the user-comparator form; the sort is stable, as required since ES2019.
func sortElements(t *Thread, els []Value, comparator Value) error {
	var sortErr error
	if comparator.Type == ValueFunction {
		sort.SliceStable(els, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			v, err := t.callValue(comparator, []Value{els[i], els[j]}, Undefined(), false)
			if err != nil {
				sortErr = err
				return false
			}
			return ToNumber(v) < 0
		})
		return sortErr
	}
	sort.SliceStable(els, func(i, j int) bool {
		return ToDisplayString(els[i]) < ToDisplayString(els[j])
	})
	return nil
}

// sliceIteratorObject wraps already-materialized items as an iterator-protocol
// object, so Array.keys()/values()/entries() compose with for..of and spread.
func sliceIteratorObject(items []Value) Value {
	i := 0
	obj := NewPlainObject()
	obj.Set("next", FunctionValue(&Callable{Name: "next", Native: func(_ *VM, _ *Thread, _ Value, _ []Value) (Value, error) {
		if i >= len(items) {
			return iterResult(true, Undefined()), nil
		}
		v := items[i]
		i++
		return iterResult(false, v), nil
	}}))
	return ObjectValue(obj)
}

// --- String -----------------------------------------------------------------

func recvString(t *Thread, this Value) (string, error) {
	if this.Type == ValueString {
		return this.AsString(), nil
	}
	return "", t.runtimeErrorf("receiver is not a string")
}

func registerStringStrategies() {
	inst("String.charAt", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		runes := []rune(s)
		i := int(ToNumber(arg(args, 0)))
		if i < 0 || i >= len(runes) {
			return StringValue(""), nil
		}
		return StringValue(string(runes[i])), nil
	})
	inst("String.charCodeAt", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		runes := []rune(s)
		i := int(ToNumber(arg(args, 0)))
		if i < 0 || i >= len(runes) {
			return NumberValue(math.NaN()), nil
		}
		return NumberValue(float64(runes[i])), nil
	})
	inst("String.codePointAt", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		runes := []rune(s)
		i := int(ToNumber(arg(args, 0)))
		if i < 0 || i >= len(runes) {
			return Undefined(), nil
		}
		return NumberValue(float64(runes[i])), nil
	})
	inst("String.indexOf", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		return NumberValue(float64(strings.Index(s, ToDisplayString(arg(args, 0))))), nil
	})
	inst("String.lastIndexOf", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		return NumberValue(float64(strings.LastIndex(s, ToDisplayString(arg(args, 0))))), nil
	})
	inst("String.includes", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		return BoolValue(strings.Contains(s, ToDisplayString(arg(args, 0)))), nil
	})
	inst("String.startsWith", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		return BoolValue(strings.HasPrefix(s, ToDisplayString(arg(args, 0)))), nil
	})
	inst("String.endsWith", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		return BoolValue(strings.HasSuffix(s, ToDisplayString(arg(args, 0)))), nil
	})
	inst("String.slice", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		runes := []rune(s)
		start, end := 0, len(runes)
		if len(args) > 0 && !args[0].IsNullish() {
			start = normalizeSliceIndex(ToNumber(args[0]), len(runes))
		}
		if len(args) > 1 && !args[1].IsNullish() {
			end = normalizeSliceIndex(ToNumber(args[1]), len(runes))
		}
		if start > end {
			return StringValue(""), nil
		}
		return StringValue(string(runes[start:end])), nil
	})
	inst("String.substring", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		runes := []rune(s)
		start, end := 0, len(runes)
		if len(args) > 0 {
			start = clampIndex(int(ToNumber(args[0])), len(runes))
		}
		if len(args) > 1 && !args[1].IsNullish() {
			end = clampIndex(int(ToNumber(args[1])), len(runes))
		}
		if start > end {
			start, end = end, start
		}
		return StringValue(string(runes[start:end])), nil
	})
	inst("String.substr", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		runes := []rune(s)
		start := normalizeSliceIndex(ToNumber(arg(args, 0)), len(runes))
		length := len(runes) - start
		if len(args) > 1 && !args[1].IsNullish() {
			length = int(ToNumber(args[1]))
		}
		if length < 0 {
			length = 0
		}
		if start+length > len(runes) {
			length = len(runes) - start
		}
		return StringValue(string(runes[start : start+length])), nil
	})
	inst("String.split", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		if len(args) == 0 || args[0].IsNullish() {
			return ArrayValue(NewArrayInstance([]Value{StringValue(s)})), nil
		}
		var parts []string
		if re, ok := args[0].Data.(*RegExpInstance); ok && args[0].Type == ValueRegExp {
			gore, err := compileRegExp(re)
			if err != nil {
				return Undefined(), t.runtimeErrorf("%s", err.Error())
			}
			parts = gore.Split(s, -1)
		} else {
			sep := ToDisplayString(args[0])
			if sep == "" {
				runes := []rune(s)
				parts = make([]string, len(runes))
				for i, r := range runes {
					parts[i] = string(r)
				}
			} else {
				parts = strings.Split(s, sep)
			}
		}
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = StringValue(p)
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("String.trim", stringMapStrategy(strings.TrimSpace))
	inst("String.trimStart", stringMapStrategy(func(s string) string { return strings.TrimLeft(s, " \t\n\r\v\f") }))
	inst("String.trimEnd", stringMapStrategy(func(s string) string { return strings.TrimRight(s, " \t\n\r\v\f") }))
	inst("String.toUpperCase", stringMapStrategy(strings.ToUpper))
	inst("String.toLowerCase", stringMapStrategy(strings.ToLower))
	inst("String.repeat", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		n := int(ToNumber(arg(args, 0)))
		if n < 0 {
			return Undefined(), t.runtimeErrorf("invalid count value for repeat: %d", n)
		}
		return StringValue(strings.Repeat(s, n)), nil
	})
	inst("String.padStart", stringPadStrategy(true))
	inst("String.padEnd", stringPadStrategy(false))
	inst("String.replace", stringReplaceStrategy(false))
	inst("String.replaceAll", stringReplaceStrategy(true))
	inst("String.concat", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		var sb strings.Builder
		sb.WriteString(s)
		for _, a := range args {
			sb.WriteString(ToDisplayString(a))
		}
		return StringValue(sb.String()), nil
	})
	inst("String.at", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		runes := []rune(s)
		i := int(ToNumber(arg(args, 0)))
		if i < 0 {
			i += len(runes)
		}
		if i < 0 || i >= len(runes) {
			return Undefined(), nil
		}
		return StringValue(string(runes[i])), nil
	})
	inst("String.match", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		re, ok := arg(args, 0).Data.(*RegExpInstance)
		if !ok {
			return Null(), nil
		}
		gore, cerr := compileRegExp(re)
		if cerr != nil {
			return Undefined(), t.runtimeErrorf("%s", cerr.Error())
		}
		if re.Global {
			all := gore.FindAllString(s, -1)
			if all == nil {
				return Null(), nil
			}
			out := make([]Value, len(all))
			for i, m := range all {
				out[i] = StringValue(m)
			}
			return ArrayValue(&ArrayInstance{Elements: out}), nil
		}
		m := gore.FindStringSubmatch(s)
		if m == nil {
			return Null(), nil
		}
		out := make([]Value, len(m))
		for i, g := range m {
			out[i] = StringValue(g)
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	inst("String.matchAll", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		re, ok := arg(args, 0).Data.(*RegExpInstance)
		if !ok {
			return sliceIteratorObject(nil), nil
		}
		gore, cerr := compileRegExp(re)
		if cerr != nil {
			return Undefined(), t.runtimeErrorf("%s", cerr.Error())
		}
		var matches []Value
		for _, m := range gore.FindAllStringSubmatch(s, -1) {
			groups := make([]Value, len(m))
			for i, g := range m {
				groups[i] = StringValue(g)
			}
			matches = append(matches, ArrayValue(&ArrayInstance{Elements: groups}))
		}
		return sliceIteratorObject(matches), nil
	})
	inst("String.normalize", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		form := "NFC"
		if len(args) > 0 && !args[0].IsNullish() {
			form = ToDisplayString(args[0])
		}
		var f norm.Form
		switch form {
		case "NFC":
			f = norm.NFC
		case "NFD":
			f = norm.NFD
		case "NFKC":
			f = norm.NFKC
		case "NFKD":
			f = norm.NFKD
		default:
			return Undefined(), t.runtimeErrorf("invalid normalization form %q", form)
		}
		return StringValue(f.String(s)), nil
	})
	inst("String.localeCompare", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		other := ToDisplayString(arg(args, 0))
		tag := language.Und
		if len(args) > 1 && !args[1].IsNullish() {
			if parsed, perr := language.Parse(ToDisplayString(args[1])); perr == nil {
				tag = parsed
			}
		}
		c := collate.New(tag)
		return NumberValue(float64(c.CompareString(s, other))), nil
	})

	static("String.fromCharCode", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteRune(rune(int(ToNumber(a))))
		}
		return StringValue(sb.String()), nil
	})
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func stringMapStrategy(f func(string) string) BuiltinFunction {
	return func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		return StringValue(f(s)), nil
	}
}

func stringPadStrategy(atStart bool) BuiltinFunction {
	return func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		target := int(ToNumber(arg(args, 0)))
		pad := " "
		if len(args) > 1 && !args[1].IsNullish() {
			pad = ToDisplayString(args[1])
		}
		runes := []rune(s)
		if len(runes) >= target || pad == "" {
			return StringValue(s), nil
		}
		fill := make([]rune, 0, target-len(runes))
		padRunes := []rune(pad)
		for len(fill) < target-len(runes) {
			fill = append(fill, padRunes[len(fill)%len(padRunes)])
		}
		if atStart {
			return StringValue(string(fill) + s), nil
		}
		return StringValue(s + string(fill)), nil
	}
}

func stringReplaceStrategy(all bool) BuiltinFunction {
	return func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, err := recvString(t, this)
		if err != nil {
			return Undefined(), err
		}
		pattern := arg(args, 0)
		replacement := ToDisplayString(arg(args, 1))
		if re, ok := pattern.Data.(*RegExpInstance); ok && pattern.Type == ValueRegExp {
			gore, cerr := compileRegExp(re)
			if cerr != nil {
				return Undefined(), t.runtimeErrorf("%s", cerr.Error())
			}
			if all || re.Global {
				return StringValue(gore.ReplaceAllString(s, rewriteReplacement(replacement))), nil
			}
			done := false
			out := gore.ReplaceAllStringFunc(s, func(m string) string {
				if done {
					return m
				}
				done = true
				return replacement
			})
			return StringValue(out), nil
		}
		needle := ToDisplayString(pattern)
		if all {
			return StringValue(strings.ReplaceAll(s, needle, replacement)), nil
		}
		return StringValue(strings.Replace(s, needle, replacement, 1)), nil
	}
}

// rewriteReplacement converts JS $1-style group references to Go's ${1}.
func rewriteReplacement(r string) string {
	var sb strings.Builder
	for i := 0; i < len(r); i++ {
		if r[i] == '$' && i+1 < len(r) && r[i+1] >= '0' && r[i+1] <= '9' {
			j := i + 1
			for j < len(r) && r[j] >= '0' && r[j] <= '9' {
				j++
			}
			sb.WriteString("${" + r[i+1:j] + "}")
			i = j - 1
			continue
		}
		sb.WriteByte(r[i])
	}
	return sb.String()
}

// compileRegExp maps the supported ECMAScript pattern subset onto Go's RE2
// syntax; the i/m/s flags translate to inline flags.
func compileRegExp(re *RegExpInstance) (*regexp.Regexp, error) {
	prefix := ""
	var inline []string
	if strings.ContainsRune(re.Flags, 'i') {
		inline = append(inline, "i")
	}
	if strings.ContainsRune(re.Flags, 'm') {
		inline = append(inline, "m")
	}
	if strings.ContainsRune(re.Flags, 's') {
		inline = append(inline, "s")
	}
	if len(inline) > 0 {
		prefix = "(?" + strings.Join(inline, "") + ")"
	}
	return regexp.Compile(prefix + re.Source)
}

// --- Number (instance) ------------------------------------------------------

func registerNumberInstanceStrategies() {
	inst("Number.toFixed", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		digits := int(ToNumber(arg(args, 0)))
		return StringValue(strconv.FormatFloat(ToNumber(this), 'f', digits, 64)), nil
	})
	inst("Number.toString", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		if len(args) > 0 && !args[0].IsNullish() {
			radix := int(ToNumber(args[0]))
			return StringValue(strconv.FormatInt(int64(ToNumber(this)), radix)), nil
		}
		return StringValue(ToDisplayString(this)), nil
	})
	inst("Number.toPrecision", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		p := int(ToNumber(arg(args, 0)))
		return StringValue(strconv.FormatFloat(ToNumber(this), 'g', p, 64)), nil
	})
	inst("BigInt.toString", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		bi, _ := this.Data.(*big.Int)
		if bi == nil {
			return StringValue("0"), nil
		}
		radix := 10
		if len(args) > 0 && !args[0].IsNullish() {
			radix = int(ToNumber(args[0]))
		}
		return StringValue(bi.Text(radix)), nil
	})
}

// --- Date -------------------------------------------------------------------

func recvDate(t *Thread, this Value) (*DateInstance, error) {
	if d, ok := this.Data.(*DateInstance); ok && this.Type == ValueHost {
		return d, nil
	}
	return nil, t.runtimeErrorf("receiver is not a Date")
}

func registerDateStrategies() {
	dateGet := func(f func(d *DateInstance) float64) BuiltinFunction {
		return func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
			d, err := recvDate(t, this)
			if err != nil {
				return Undefined(), err
			}
			return NumberValue(f(d)), nil
		}
	}
	inst("Date.getTime", dateGet(func(d *DateInstance) float64 { return float64(d.Time.UnixMilli()) }))
	inst("Date.valueOf", dateGet(func(d *DateInstance) float64 { return float64(d.Time.UnixMilli()) }))
	inst("Date.getFullYear", dateGet(func(d *DateInstance) float64 { return float64(d.Time.Year()) }))
	inst("Date.getMonth", dateGet(func(d *DateInstance) float64 { return float64(int(d.Time.Month()) - 1) }))
	inst("Date.getDate", dateGet(func(d *DateInstance) float64 { return float64(d.Time.Day()) }))
	inst("Date.getDay", dateGet(func(d *DateInstance) float64 { return float64(int(d.Time.Weekday())) }))
	inst("Date.getHours", dateGet(func(d *DateInstance) float64 { return float64(d.Time.Hour()) }))
	inst("Date.getMinutes", dateGet(func(d *DateInstance) float64 { return float64(d.Time.Minute()) }))
	inst("Date.getSeconds", dateGet(func(d *DateInstance) float64 { return float64(d.Time.Second()) }))
	inst("Date.getMilliseconds", dateGet(func(d *DateInstance) float64 { return float64(d.Time.Nanosecond() / 1e6) }))
	inst("Date.toISOString", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		d, err := recvDate(t, this)
		if err != nil {
			return Undefined(), err
		}
		return StringValue(d.Time.UTC().Format("2006-01-02T15:04:05.000Z")), nil
	})
	inst("Date.toDateString", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		d, err := recvDate(t, this)
		if err != nil {
			return Undefined(), err
		}
		return StringValue(d.Time.Format("Mon Jan 02 2006")), nil
	})
	dateSet := func(f func(d *DateInstance, n int)) BuiltinFunction {
		return func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
			d, err := recvDate(t, this)
			if err != nil {
				return Undefined(), err
			}
			f(d, int(ToNumber(arg(args, 0))))
			return NumberValue(float64(d.Time.UnixMilli())), nil
		}
	}
	inst("Date.setFullYear", dateSet(func(d *DateInstance, n int) {
		t0 := d.Time
		d.Time = time.Date(n, t0.Month(), t0.Day(), t0.Hour(), t0.Minute(), t0.Second(), t0.Nanosecond(), t0.Location())
	}))
	inst("Date.setMonth", dateSet(func(d *DateInstance, n int) {
		t0 := d.Time
		d.Time = time.Date(t0.Year(), time.Month(n+1), t0.Day(), t0.Hour(), t0.Minute(), t0.Second(), t0.Nanosecond(), t0.Location())
	}))
	inst("Date.setDate", dateSet(func(d *DateInstance, n int) {
		t0 := d.Time
		d.Time = time.Date(t0.Year(), t0.Month(), n, t0.Hour(), t0.Minute(), t0.Second(), t0.Nanosecond(), t0.Location())
	}))
	inst("Date.setHours", dateSet(func(d *DateInstance, n int) {
		t0 := d.Time
		d.Time = time.Date(t0.Year(), t0.Month(), t0.Day(), n, t0.Minute(), t0.Second(), t0.Nanosecond(), t0.Location())
	}))

	static("Date.now", func(_ *VM, _ *Thread, _ Value, _ []Value) (Value, error) {
		return NumberValue(float64(time.Now().UnixMilli())), nil
	})
	static("Date.parse", func(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
		v, err := builtinDateCall(vm, t, Undefined(), args)
		if err != nil {
			return Undefined(), err
		}
		d := v.Data.(*DateInstance)
		if d.Time.IsZero() {
			return NumberValue(math.NaN()), nil
		}
		return NumberValue(float64(d.Time.UnixMilli())), nil
	})
}

// --- Map / Set / WeakMap / WeakSet ------------------------------------------

func registerCollectionStrategies() {
	inst("Map.get", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		m, ok := this.Data.(*MapInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Map")
		}
		v, _ := m.Get(arg(args, 0))
		return v, nil
	})
	inst("Map.set", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		m, ok := this.Data.(*MapInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Map")
		}
		m.Set(arg(args, 0), arg(args, 1))
		return this, nil
	})
	inst("Map.has", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		m, ok := this.Data.(*MapInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Map")
		}
		_, found := m.Get(arg(args, 0))
		return BoolValue(found), nil
	})
	inst("Map.delete", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		m, ok := this.Data.(*MapInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Map")
		}
		return BoolValue(m.Delete(arg(args, 0))), nil
	})
	inst("Map.clear", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		m, ok := this.Data.(*MapInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Map")
		}
		*m = *NewMapInstance()
		return Undefined(), nil
	})
	inst("Map.forEach", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		m, ok := this.Data.(*MapInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Map")
		}
		cb := arg(args, 0)
		for _, e := range m.Entries() {
			if _, err := t.callValue(cb, []Value{e[1], e[0], this}, Undefined(), false); err != nil {
				return Undefined(), err
			}
		}
		return Undefined(), nil
	})
	inst("Map.keys", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		m := this.Data.(*MapInstance)
		var keys []Value
		for _, e := range m.Entries() {
			keys = append(keys, e[0])
		}
		return sliceIteratorObject(keys), nil
	})
	inst("Map.values", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		m := this.Data.(*MapInstance)
		var vals []Value
		for _, e := range m.Entries() {
			vals = append(vals, e[1])
		}
		return sliceIteratorObject(vals), nil
	})
	inst("Map.entries", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		m := this.Data.(*MapInstance)
		var entries []Value
		for _, e := range m.Entries() {
			entries = append(entries, ArrayValue(&ArrayInstance{Elements: []Value{e[0], e[1]}}))
		}
		return sliceIteratorObject(entries), nil
	})

	inst("Set.add", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, ok := this.Data.(*SetInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Set")
		}
		s.Add(arg(args, 0))
		return this, nil
	})
	inst("Set.has", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, ok := this.Data.(*SetInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Set")
		}
		return BoolValue(s.Has(arg(args, 0))), nil
	})
	inst("Set.delete", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, ok := this.Data.(*SetInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Set")
		}
		return BoolValue(s.Delete(arg(args, 0))), nil
	})
	inst("Set.clear", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		s, ok := this.Data.(*SetInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Set")
		}
		*s = *NewSetInstance()
		return Undefined(), nil
	})
	inst("Set.forEach", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		s, ok := this.Data.(*SetInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Set")
		}
		cb := arg(args, 0)
		for _, v := range s.Items() {
			if _, err := t.callValue(cb, []Value{v, v, this}, Undefined(), false); err != nil {
				return Undefined(), err
			}
		}
		return Undefined(), nil
	})
	inst("Set.values", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		return sliceIteratorObject(this.Data.(*SetInstance).Items()), nil
	})
	inst("Set.keys", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		return sliceIteratorObject(this.Data.(*SetInstance).Items()), nil
	})
	inst("Set.entries", func(_ *VM, t *Thread, this Value, _ []Value) (Value, error) {
		items := this.Data.(*SetInstance).Items()
		entries := make([]Value, len(items))
		for i, v := range items {
			entries[i] = ArrayValue(&ArrayInstance{Elements: []Value{v, v}})
		}
		return sliceIteratorObject(entries), nil
	})

	inst("WeakMap.get", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		w := this.Data.(*WeakMapInstance)
		v, _ := w.Get(arg(args, 0))
		return v, nil
	})
	inst("WeakMap.set", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		key := arg(args, 0)
		if !key.IsObjectLike() || key.Type == ValueString || key.Type == ValueNumber || key.Type == ValueBool {
			return Undefined(), t.runtimeErrorf("invalid value used as weak map key")
		}
		this.Data.(*WeakMapInstance).Set(key, arg(args, 1))
		return this, nil
	})
	inst("WeakMap.has", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		_, ok := this.Data.(*WeakMapInstance).Get(arg(args, 0))
		return BoolValue(ok), nil
	})
	inst("WeakMap.delete", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		return BoolValue(this.Data.(*WeakMapInstance).Delete(arg(args, 0))), nil
	})
	inst("WeakSet.add", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		this.Data.(*WeakSetInstance).Add(arg(args, 0))
		return this, nil
	})
	inst("WeakSet.has", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		return BoolValue(this.Data.(*WeakSetInstance).Has(arg(args, 0))), nil
	})
	inst("WeakSet.delete", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		return BoolValue(this.Data.(*WeakSetInstance).Delete(arg(args, 0))), nil
	})
}

// --- RegExp / Buffer --------------------------------------------------------

func registerRegExpBufferStrategies() {
	inst("RegExp.test", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		re, ok := this.Data.(*RegExpInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a RegExp")
		}
		gore, err := compileRegExp(re)
		if err != nil {
			return Undefined(), t.runtimeErrorf("%s", err.Error())
		}
		return BoolValue(gore.MatchString(ToDisplayString(arg(args, 0)))), nil
	})
	inst("RegExp.exec", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		re, ok := this.Data.(*RegExpInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a RegExp")
		}
		gore, err := compileRegExp(re)
		if err != nil {
			return Undefined(), t.runtimeErrorf("%s", err.Error())
		}
		m := gore.FindStringSubmatch(ToDisplayString(arg(args, 0)))
		if m == nil {
			return Null(), nil
		}
		out := make([]Value, len(m))
		for i, g := range m {
			out[i] = StringValue(g)
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})

	inst("Buffer.toString", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		buf, ok := this.Data.(*BufferInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Buffer")
		}
		// A non-string encoding argument is coerced, per the value model's
		// permissive coercion helpers.
		encoding := "utf8"
		if len(args) > 0 && !args[0].IsNullish() {
			encoding = ToDisplayString(args[0])
		}
		s, err := encodeBufferString(buf.Bytes, encoding)
		if err != nil {
			return Undefined(), t.runtimeErrorf("%s", err.Error())
		}
		return StringValue(s), nil
	})
	inst("Buffer.slice", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		buf, ok := this.Data.(*BufferInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Buffer")
		}
		start, end := 0, len(buf.Bytes)
		if len(args) > 0 {
			start = normalizeSliceIndex(ToNumber(args[0]), len(buf.Bytes))
		}
		if len(args) > 1 && !args[1].IsNullish() {
			end = normalizeSliceIndex(ToNumber(args[1]), len(buf.Bytes))
		}
		if start > end {
			start = end
		}
		out := append([]byte{}, buf.Bytes[start:end]...)
		return BufferValue(&BufferInstance{Bytes: out}), nil
	})
	inst("Buffer.write", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		buf, ok := this.Data.(*BufferInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Buffer")
		}
		data := []byte(ToDisplayString(arg(args, 0)))
		offset := 0
		if len(args) > 1 {
			offset = int(ToNumber(args[1]))
		}
		n := copy(buf.Bytes[minInt(offset, len(buf.Bytes)):], data)
		return NumberValue(float64(n)), nil
	})
	inst("Buffer.equals", func(_ *VM, t *Thread, this Value, args []Value) (Value, error) {
		buf, ok := this.Data.(*BufferInstance)
		if !ok {
			return Undefined(), t.runtimeErrorf("receiver is not a Buffer")
		}
		other, ok := arg(args, 0).Data.(*BufferInstance)
		if !ok {
			return BoolValue(false), nil
		}
		if len(buf.Bytes) != len(other.Bytes) {
			return BoolValue(false), nil
		}
		for i := range buf.Bytes {
			if buf.Bytes[i] != other.Bytes[i] {
				return BoolValue(false), nil
			}
		}
		return BoolValue(true), nil
	})

	static("Buffer.from", func(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		switch v.Type {
		case ValueString:
			encoding := "utf8"
			if len(args) > 1 && !args[1].IsNullish() {
				encoding = ToDisplayString(args[1])
			}
			b, err := decodeBufferString(v.AsString(), encoding)
			if err != nil {
				return Undefined(), t.runtimeErrorf("%s", err.Error())
			}
			return BufferValue(&BufferInstance{Bytes: b}), nil
		case ValueArray:
			arr := v.AsArray()
			b := make([]byte, arr.Len())
			for i, el := range arr.Elements {
				b[i] = byte(int(ToNumber(el)))
			}
			return BufferValue(&BufferInstance{Bytes: b}), nil
		case ValueBuffer:
			src := v.Data.(*BufferInstance)
			return BufferValue(&BufferInstance{Bytes: append([]byte{}, src.Bytes...)}), nil
		}
		return Undefined(), t.runtimeErrorf("unsupported Buffer.from source %s", v.Type.String())
	})
	static("Buffer.alloc", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		return BufferValue(&BufferInstance{Bytes: make([]byte, int(ToNumber(arg(args, 0))))}), nil
	})
	static("Buffer.concat", func(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
		list := arg(args, 0).AsArray()
		if list == nil {
			return Undefined(), t.runtimeErrorf("Buffer.concat expects an array of buffers")
		}
		var out []byte
		for _, el := range list.Elements {
			if b, ok := el.Data.(*BufferInstance); ok {
				out = append(out, b.Bytes...)
			}
		}
		return BufferValue(&BufferInstance{Bytes: out}), nil
	})
	static("Buffer.byteLength", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if b, ok := v.Data.(*BufferInstance); ok {
			return NumberValue(float64(len(b.Bytes))), nil
		}
		return NumberValue(float64(len(ToDisplayString(v)))), nil
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// --- Promise ----------------------------------------------------------------

func callableOrNil(v Value) *Callable {
	if v.Type == ValueFunction {
		return v.Data.(*Callable)
	}
	return nil
}

func registerPromiseStrategies() {
	inst("Promise.then", func(vm *VM, t *Thread, this Value, args []Value) (Value, error) {
		p := this.AsPromise()
		if p == nil {
			return Undefined(), t.runtimeErrorf("receiver is not a promise")
		}
		return vm.Then(p, callableOrNil(arg(args, 0)), callableOrNil(arg(args, 1))), nil
	})
	inst("Promise.catch", func(vm *VM, t *Thread, this Value, args []Value) (Value, error) {
		p := this.AsPromise()
		if p == nil {
			return Undefined(), t.runtimeErrorf("receiver is not a promise")
		}
		return vm.Then(p, nil, callableOrNil(arg(args, 0))), nil
	})
	inst("Promise.finally", func(vm *VM, t *Thread, this Value, args []Value) (Value, error) {
		p := this.AsPromise()
		if p == nil {
			return Undefined(), t.runtimeErrorf("receiver is not a promise")
		}
		cb := arg(args, 0)
		run := func(passthrough func(*VM)) *Callable {
			return &Callable{Native: func(vm *VM, t *Thread, _ Value, cbArgs []Value) (Value, error) {
				if cb.Type == ValueFunction {
					if _, err := t.callValue(cb, nil, Undefined(), false); err != nil {
						return Undefined(), err
					}
				}
				passthrough(vm)
				return arg(cbArgs, 0), nil
			}}
		}
		onF := run(func(*VM) {})
		onR := &Callable{Native: func(vm *VM, t *Thread, _ Value, cbArgs []Value) (Value, error) {
			if cb.Type == ValueFunction {
				if _, err := t.callValue(cb, nil, Undefined(), false); err != nil {
					return Undefined(), err
				}
			}
			return Undefined(), thrownError(arg(cbArgs, 0))
		}}
		return vm.Then(p, onF, onR), nil
	})

	static("Promise.resolve", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.Type == ValuePromise {
			return v, nil
		}
		p := newPromiseHandle(vm)
		vm.resolvePromise(p, v)
		return PromiseValue(p), nil
	})
	static("Promise.reject", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		p := newPromiseHandle(vm)
		vm.rejectPromise(p, arg(args, 0))
		return PromiseValue(p), nil
	})
	static("Promise.all", promiseCombinator(combAll))
	static("Promise.race", promiseCombinator(combRace))
	static("Promise.allSettled", promiseCombinator(combAllSettled))
	static("Promise.any", promiseCombinator(combAny))
}

type combinatorKind int

const (
	combAll combinatorKind = iota
	combRace
	combAllSettled
	combAny
)

// promiseCombinator implements the four §5 combinators over one shared
// subscription loop. Results keep input index order where the combinator
// calls for it (all/allSettled).
func promiseCombinator(kind combinatorKind) BuiltinFunction {
	return func(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
		items, err := t.iterateAll(arg(args, 0))
		if err != nil {
			return Undefined(), err
		}
		result := newPromiseHandle(vm)
		n := len(items)
		if n == 0 {
			switch kind {
			case combAll, combAllSettled:
				vm.resolvePromise(result, ArrayValue(NewArrayInstance(nil)))
			case combAny:
				vm.rejectPromise(result, StringValue("AggregateError: all promises were rejected"))
			case combRace:
				// Promise.race([]) never settles.
			}
			return PromiseValue(result), nil
		}

		values := make([]Value, n)
		remaining := n
		var mu sync.Mutex
		settleOne := func(i int, v Value, rejected bool) {
			mu.Lock()
			defer mu.Unlock()
			switch kind {
			case combRace:
				if rejected {
					vm.rejectPromise(result, v)
				} else {
					vm.resolvePromise(result, v)
				}
			case combAll:
				if rejected {
					vm.rejectPromise(result, v)
					return
				}
				values[i] = v
				remaining--
				if remaining == 0 {
					vm.resolvePromise(result, ArrayValue(&ArrayInstance{Elements: values}))
				}
			case combAllSettled:
				rec := NewPlainObject()
				if rejected {
					rec.Set("status", StringValue("rejected"))
					rec.Set("reason", v)
				} else {
					rec.Set("status", StringValue("fulfilled"))
					rec.Set("value", v)
				}
				values[i] = ObjectValue(rec)
				remaining--
				if remaining == 0 {
					vm.resolvePromise(result, ArrayValue(&ArrayInstance{Elements: values}))
				}
			case combAny:
				if !rejected {
					vm.resolvePromise(result, v)
					return
				}
				remaining--
				if remaining == 0 {
					vm.rejectPromise(result, StringValue("AggregateError: all promises were rejected"))
				}
			}
		}

		for i, item := range items {
			i := i
			if p := item.AsPromise(); p != nil {
				onF := &Callable{Native: func(_ *VM, _ *Thread, _ Value, a []Value) (Value, error) {
					settleOne(i, arg(a, 0), false)
					return Undefined(), nil
				}}
				onR := &Callable{Native: func(_ *VM, _ *Thread, _ Value, a []Value) (Value, error) {
					settleOne(i, arg(a, 0), true)
					return Undefined(), nil
				}}
				vm.Then(p, onF, onR)
			} else {
				settleOne(i, item, false)
			}
		}
		return PromiseValue(result), nil
	}
}

// --- console ----------------------------------------------------------------

// consoleString renders a value for console output: arrays show their
// elements bracketed (§6 value-visible formats), everything else follows the
// ToString rules.
func consoleString(v Value) string {
	if arr := v.AsArray(); arr != nil {
		parts := make([]string, len(arr.Elements))
		for i, el := range arr.Elements {
			parts[i] = consoleString(el)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ToDisplayString(v)
}

func consoleWrite(vm *VM, toErr bool, args []Value) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = consoleString(a)
	}
	out := vm.Out
	if toErr && vm.ErrOut != nil {
		out = vm.ErrOut
	}
	fmt.Fprintln(out, strings.Join(parts, " "))
}

func registerConsoleStrategies() {
	static("console.log", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		consoleWrite(vm, false, args)
		return Undefined(), nil
	})
	static("console.info", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		consoleWrite(vm, false, args)
		return Undefined(), nil
	})
	static("console.debug", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		consoleWrite(vm, false, args)
		return Undefined(), nil
	})
	static("console.error", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		consoleWrite(vm, true, args)
		return Undefined(), nil
	})
	static("console.warn", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		consoleWrite(vm, true, args)
		return Undefined(), nil
	})
}

// --- Math -------------------------------------------------------------------

func mathUnary(f func(float64) float64) BuiltinFunction {
	return func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		return NumberValue(f(ToNumber(arg(args, 0)))), nil
	}
}

func registerMathStrategies() {
	static("Math.floor", mathUnary(math.Floor))
	static("Math.ceil", mathUnary(math.Ceil))
	static("Math.round", mathUnary(func(f float64) float64 { return math.Floor(f + 0.5) }))
	static("Math.trunc", mathUnary(math.Trunc))
	static("Math.abs", mathUnary(math.Abs))
	static("Math.sqrt", mathUnary(math.Sqrt))
	static("Math.cbrt", mathUnary(math.Cbrt))
	static("Math.sign", mathUnary(func(f float64) float64 {
		switch {
		case math.IsNaN(f):
			return math.NaN()
		case f > 0:
			return 1
		case f < 0:
			return -1
		}
		return f
	}))
	static("Math.log", mathUnary(math.Log))
	static("Math.log2", mathUnary(math.Log2))
	static("Math.log10", mathUnary(math.Log10))
	static("Math.exp", mathUnary(math.Exp))
	static("Math.sin", mathUnary(math.Sin))
	static("Math.cos", mathUnary(math.Cos))
	static("Math.tan", mathUnary(math.Tan))
	static("Math.asin", mathUnary(math.Asin))
	static("Math.acos", mathUnary(math.Acos))
	static("Math.atan", mathUnary(math.Atan))
	static("Math.atan2", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		return NumberValue(math.Atan2(ToNumber(arg(args, 0)), ToNumber(arg(args, 1)))), nil
	})
	static("Math.pow", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		return NumberValue(math.Pow(ToNumber(arg(args, 0)), ToNumber(arg(args, 1)))), nil
	})
	static("Math.hypot", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		sum := 0.0
		for _, a := range args {
			n := ToNumber(a)
			sum += n * n
		}
		return NumberValue(math.Sqrt(sum)), nil
	})
	static("Math.min", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		out := math.Inf(1)
		for _, a := range args {
			n := ToNumber(a)
			if math.IsNaN(n) {
				return NumberValue(math.NaN()), nil
			}
			if n < out {
				out = n
			}
		}
		return NumberValue(out), nil
	})
	static("Math.max", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		out := math.Inf(-1)
		for _, a := range args {
			n := ToNumber(a)
			if math.IsNaN(n) {
				return NumberValue(math.NaN()), nil
			}
			if n > out {
				out = n
			}
		}
		return NumberValue(out), nil
	})
	static("Math.random", func(_ *VM, _ *Thread, _ Value, _ []Value) (Value, error) {
		return NumberValue(rand.Float64()), nil
	})
}

// --- JSON -------------------------------------------------------------------

func registerJSONStrategies() {
	static("JSON.stringify", func(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
		indent := ""
		if len(args) > 2 && !args[2].IsNullish() {
			if args[2].Type == ValueNumber {
				indent = strings.Repeat(" ", int(args[2].AsNumber()))
			} else {
				indent = ToDisplayString(args[2])
			}
		}
		s, ok := jsonStringify(vm, arg(args, 0), indent, "")
		if !ok {
			return Undefined(), nil
		}
		return StringValue(s), nil
	})
	static("JSON.parse", func(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
		v, err := jsonParse(ToDisplayString(arg(args, 0)))
		if err != nil {
			return Undefined(), t.runtimeErrorf("JSON.parse: %s", err.Error())
		}
		return v, nil
	})
}

// --- Object -----------------------------------------------------------------

func registerObjectStrategies() {
	static("Object.keys", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		keys := OwnKeys(arg(args, 0))
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = StringValue(k)
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	static("Object.values", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		src := arg(args, 0)
		keys := OwnKeys(src)
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = vm.GetProperty(src, k)
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	static("Object.entries", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		src := arg(args, 0)
		keys := OwnKeys(src)
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = ArrayValue(&ArrayInstance{Elements: []Value{StringValue(k), vm.GetProperty(src, k)}})
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
	static("Object.assign", func(vm *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		target := arg(args, 0)
		for _, src := range args[1:] {
			if src.IsNullish() {
				continue
			}
			for _, k := range OwnKeys(src) {
				vm.SetProperty(target, k, vm.GetProperty(src, k))
			}
		}
		return target, nil
	})
	static("Object.freeze", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if obj, ok := v.Data.(*PlainObject); ok && v.Type == ValueObject {
			obj.Freeze()
		}
		return v, nil
	})
	static("Object.isFrozen", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if obj, ok := v.Data.(*PlainObject); ok && v.Type == ValueObject {
			return BoolValue(obj.IsFrozen()), nil
		}
		return BoolValue(false), nil
	})
	static("Object.fromEntries", func(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
		items, err := t.iterateAll(arg(args, 0))
		if err != nil {
			return Undefined(), err
		}
		obj := NewPlainObject()
		for _, e := range items {
			if pair := e.AsArray(); pair != nil && pair.Len() >= 2 {
				obj.Set(ToDisplayString(pair.Elements[0]), pair.Elements[1])
			}
		}
		return ObjectValue(obj), nil
	})
	static("Object.getOwnPropertyNames", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		keys := OwnKeys(arg(args, 0))
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = StringValue(k)
		}
		return ArrayValue(&ArrayInstance{Elements: out}), nil
	})
}

// --- Array/Number/Symbol statics, process -----------------------------------

func registerStaticContainerStrategies() {
	static("Array.isArray", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		return BoolValue(arg(args, 0).Type == ValueArray), nil
	})
	static("Array.of", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		return ArrayValue(NewArrayInstance(args)), nil
	})
	static("Array.from", func(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
		items, err := t.iterateAll(arg(args, 0))
		if err != nil {
			return Undefined(), err
		}
		if len(args) > 1 && args[1].Type == ValueFunction {
			for i := range items {
				v, err := t.callValue(args[1], []Value{items[i], NumberValue(float64(i))}, Undefined(), false)
				if err != nil {
					return Undefined(), err
				}
				items[i] = v
			}
		}
		return ArrayValue(&ArrayInstance{Elements: items}), nil
	})

	static("Number.isInteger", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.Type != ValueNumber {
			return BoolValue(false), nil
		}
		f := v.AsNumber()
		return BoolValue(!math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)), nil
	})
	static("Number.isFinite", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		return BoolValue(v.Type == ValueNumber && !math.IsNaN(v.AsNumber()) && !math.IsInf(v.AsNumber(), 0)), nil
	})
	static("Number.isNaN", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		return BoolValue(v.Type == ValueNumber && math.IsNaN(v.AsNumber())), nil
	})
	static("Number.parseFloat", func(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
		return builtinParseFloat(vm, t, Undefined(), args)
	})
	static("Number.parseInt", func(vm *VM, t *Thread, _ Value, args []Value) (Value, error) {
		return builtinParseInt(vm, t, Undefined(), args)
	})

	static("Symbol.for", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		return SymbolValue(SymbolFor(ToDisplayString(arg(args, 0)))), nil
	})
	static("Symbol.keyFor", func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		if s, ok := arg(args, 0).Data.(*Symbol); ok {
			symbolRegistryMu.Lock()
			defer symbolRegistryMu.Unlock()
			for k, reg := range symbolRegistry {
				if reg == s {
					return StringValue(k), nil
				}
			}
		}
		return Undefined(), nil
	})
}

func registerProcessStrategies() {
	static("process.cwd", func(_ *VM, _ *Thread, _ Value, _ []Value) (Value, error) {
		return StringValue(hostWorkingDir()), nil
	})
	static("process.exit", func(_ *VM, t *Thread, _ Value, args []Value) (Value, error) {
		return Undefined(), t.runtimeErrorf("process.exit(%d)", int(ToNumber(arg(args, 0))))
	})
}

// --- Built-in namespace objects (identifier position) -----------------------

// consoleNamespace materializes `console` as a first-class value: its
// methods wrap the same statics the strategy path uses.
func consoleNamespace(vm *VM) Value {
	return namespaceFromStatics(vm, "console", []string{"log", "info", "debug", "error", "warn"})
}

func mathNamespace(vm *VM) Value {
	ns := namespaceFromStatics(vm, "Math", []string{
		"floor", "ceil", "round", "trunc", "abs", "sqrt", "cbrt", "sign",
		"log", "log2", "log10", "exp", "sin", "cos", "tan", "asin", "acos",
		"atan", "atan2", "pow", "hypot", "min", "max", "random",
	})
	obj := ns.Data.(*PlainObject)
	obj.Set("PI", NumberValue(math.Pi))
	obj.Set("E", NumberValue(math.E))
	obj.Set("LN2", NumberValue(math.Ln2))
	obj.Set("LN10", NumberValue(math.Log(10)))
	obj.Set("SQRT2", NumberValue(math.Sqrt2))
	return ns
}

// strategyNamespace builds a namespace object for name from every
// "name.member" entry in the static table, plus the value-constant members
// some namespaces carry.
func strategyNamespace(vm *VM, name string) Value {
	obj := NewPlainObject()
	prefix := name + "."
	var members []string
	for key := range staticStrategies {
		if strings.HasPrefix(key, prefix) {
			members = append(members, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(members)
	for _, m := range members {
		key := prefix + m
		fn := staticStrategies[key]
		obj.Set(m, FunctionValue(&Callable{Name: key, Native: fn}))
	}
	switch name {
	case "Number":
		obj.Set("MAX_SAFE_INTEGER", NumberValue(9007199254740991))
		obj.Set("MIN_SAFE_INTEGER", NumberValue(-9007199254740991))
		obj.Set("EPSILON", NumberValue(math.Nextafter(1, 2)-1))
		obj.Set("POSITIVE_INFINITY", NumberValue(math.Inf(1)))
		obj.Set("NEGATIVE_INFINITY", NumberValue(math.Inf(-1)))
		obj.Set("NaN", NumberValue(math.NaN()))
	case "Symbol":
		obj.Set("iterator", SymbolValue(SymbolIterator))
		obj.Set("asyncIterator", SymbolValue(SymbolAsyncIterator))
		obj.Set("hasInstance", SymbolValue(SymbolHasInstance))
		obj.Set("toStringTag", SymbolValue(SymbolToStringTag))
	case "process":
		argv := make([]Value, len(vm.Argv))
		for i, a := range vm.Argv {
			argv[i] = StringValue(a)
		}
		obj.Set("argv", ArrayValue(&ArrayInstance{Elements: argv}))
		obj.Set("platform", StringValue(hostPlatform()))
		obj.Set("env", ObjectValue(hostEnv()))
	}
	return ObjectValue(obj)
}

func namespaceFromStatics(vm *VM, name string, members []string) Value {
	obj := NewPlainObject()
	for _, m := range members {
		key := name + "." + m
		if fn, ok := staticStrategies[key]; ok {
			obj.Set(m, FunctionValue(&Callable{Name: key, Native: fn}))
		}
	}
	return ObjectValue(obj)
}
