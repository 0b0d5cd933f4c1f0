package bytecode

import (
	"math"
	"strconv"
)

// IsTruthy implements ToBoolean (§3): the fixed falsy set is undefined,
// null, false, 0, NaN, and the empty string; everything else, including
// every object/array/instance, is truthy.
func IsTruthy(v Value) bool {
	switch v.Type {
	case ValueUndefined, ValueNull:
		return false
	case ValueBool:
		return v.Data.(bool)
	case ValueNumber:
		n := v.Data.(float64)
		return n != 0 && !math.IsNaN(n)
	case ValueString:
		return v.Data.(string) != ""
	default:
		return true
	}
}

// ToNumber implements the coercion Add/Sub/relational ops rely on.
func ToNumber(v Value) float64 {
	switch v.Type {
	case ValueNumber:
		return v.Data.(float64)
	case ValueBool:
		if v.Data.(bool) {
			return 1
		}
		return 0
	case ValueNull:
		return 0
	case ValueUndefined:
		return math.NaN()
	case ValueString:
		s := v.Data.(string)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// toInt32 implements ToInt32, used by the bitwise/shift opcodes.
func toInt32(v Value) int32 {
	f := ToNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

func toUint32(v Value) uint32 { return uint32(toInt32(v)) }

// Add implements the `+` operator's string-concat-or-numeric-add dispatch
// (§3): string wins if either operand is a string.
func Add(a, b Value) Value {
	if a.Type == ValueString || b.Type == ValueString {
		return StringValue(ToDisplayString(a) + ToDisplayString(b))
	}
	return NumberValue(ToNumber(a) + ToNumber(b))
}

// ToDisplayString implements the ToString abstract operation for the
// subset of types `+`, template literals, and String() can produce.
func ToDisplayString(v Value) string {
	switch v.Type {
	case ValueString:
		return v.Data.(string)
	case ValueArray:
		arr := v.Data.(*ArrayInstance)
		parts := make([]string, len(arr.Elements))
		for i, el := range arr.Elements {
			if el.IsNullish() {
				parts[i] = ""
			} else {
				parts[i] = ToDisplayString(el)
			}
		}
		return joinStrings(parts, ",")
	case ValueObject, ValueInstance:
		return "[object Object]"
	case ValueMap:
		return "[object Map]"
	case ValueSet:
		return "[object Set]"
	case ValueHost:
		if d, ok := v.Data.(*DateInstance); ok {
			return d.Time.Format("Mon Jan 02 2006 15:04:05 GMT-0700 (MST)")
		}
		return "[object Object]"
	default:
		return v.String()
	}
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

// StrictEquals implements `===` (§3): no coercion, reference identity for
// container types.
func StrictEquals(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValueUndefined, ValueNull:
		return true
	case ValueBool:
		return a.Data.(bool) == b.Data.(bool)
	case ValueNumber:
		return a.Data.(float64) == b.Data.(float64)
	case ValueString:
		return a.Data.(string) == b.Data.(string)
	default:
		return a.Data == b.Data
	}
}

func compareValues(a, b Value) (less, equal bool, ok bool) {
	if a.Type == ValueString && b.Type == ValueString {
		as, bs := a.Data.(string), b.Data.(string)
		return as < bs, as == bs, true
	}
	an, bn := ToNumber(a), ToNumber(b)
	if math.IsNaN(an) || math.IsNaN(bn) {
		return false, false, false
	}
	return an < bn, an == bn, true
}

// GetProperty implements the unified property-read path OpGetProp and the
// dynamic dispatch tiers of OpCallMethod consult: declared instance fields
// first, then extras, then the class's own (non-strategy) method table, so
// a user method named the same as a strategy method on a plain object still
// resolves correctly.
func (vm *VM) GetProperty(recv Value, name string) Value {
	switch recv.Type {
	case ValueInstance:
		inst := recv.Data.(*Instance)
		if v, ok := inst.Fields[name]; ok {
			return v
		}
		if v, ok := inst.Extras.Get(name); ok {
			return v
		}
		if m, _ := inst.Class.ResolveInstanceMethod(name); m != nil {
			return FunctionValue(&Callable{Name: name, Method: m, This: recv})
		}
		return Undefined()
	case ValueObject:
		obj := recv.Data.(*PlainObject)
		if v, ok := obj.Get(name); ok {
			return v
		}
		return Undefined()
	case ValueArray:
		arr := recv.Data.(*ArrayInstance)
		if name == "length" {
			return NumberValue(float64(len(arr.Elements)))
		}
		if idx, ok := arrayIndex(name); ok {
			if idx >= 0 && idx < len(arr.Elements) {
				return arr.Elements[idx]
			}
			return Undefined()
		}
		return Undefined()
	case ValueString:
		s := recv.Data.(string)
		// A string may also be a class used as a first-class value (classes
		// are represented by their name): static members win over the string
		// wrapper's own surface.
		if cls, ok := vm.Classes[s]; ok {
			if v, found := cls.StaticFields[name]; found {
				return v
			}
			if m, found := cls.StaticMethods[name]; found {
				return FunctionValue(&Callable{Name: name, Method: m, This: recv})
			}
			if name == "name" {
				return StringValue(cls.Name)
			}
		}
		if name == "length" {
			return NumberValue(float64(len([]rune(s))))
		}
		if idx, ok := arrayIndex(name); ok {
			runes := []rune(s)
			if idx >= 0 && idx < len(runes) {
				return StringValue(string(runes[idx]))
			}
			return Undefined()
		}
		return Undefined()
	case ValueMap:
		if name == "size" {
			return NumberValue(float64(recv.Data.(*MapInstance).Size()))
		}
		return Undefined()
	case ValueSet:
		if name == "size" {
			return NumberValue(float64(recv.Data.(*SetInstance).Size()))
		}
		return Undefined()
	case ValueBuffer:
		buf := recv.Data.(*BufferInstance)
		if name == "length" {
			return NumberValue(float64(len(buf.Bytes)))
		}
		if idx, ok := arrayIndex(name); ok {
			if idx < len(buf.Bytes) {
				return NumberValue(float64(buf.Bytes[idx]))
			}
			return Undefined()
		}
		return Undefined()
	case ValueFunction:
		c := recv.Data.(*Callable)
		switch name {
		case "name":
			return StringValue(c.Name)
		case "length":
			if c.Method != nil {
				return NumberValue(float64(c.Method.Arity))
			}
			return NumberValue(0)
		}
		return Undefined()
	case ValueRegExp:
		re := recv.Data.(*RegExpInstance)
		switch name {
		case "source":
			return StringValue(re.Source)
		case "flags":
			return StringValue(re.Flags)
		case "global":
			return BoolValue(re.Global)
		}
		return Undefined()
	case ValueSymbol:
		if name == "description" {
			return StringValue(recv.Data.(*Symbol).Description)
		}
		return Undefined()
	default:
		return Undefined()
	}
}

func arrayIndex(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SetProperty implements the unified property-write path, enforcing that
// only declared fields use the typed backing slot (§3 invariant 1).
func (vm *VM) SetProperty(recv Value, name string, v Value) {
	switch recv.Type {
	case ValueString:
		// A class used as a first-class value is its name: writes target the
		// static field table.
		if cls, ok := vm.Classes[recv.Data.(string)]; ok {
			cls.StaticFields[name] = v
		}
	case ValueInstance:
		inst := recv.Data.(*Instance)
		if inst.Class.IsDeclaredProperty(name) {
			inst.Fields[name] = v
			return
		}
		inst.Extras.Set(name, v)
	case ValueObject:
		recv.Data.(*PlainObject).Set(name, v)
	case ValueArray:
		arr := recv.Data.(*ArrayInstance)
		if name == "length" {
			n := int(ToNumber(v))
			resizeArray(arr, n)
			return
		}
		if idx, ok := arrayIndex(name); ok {
			growArray(arr, idx+1)
			arr.Elements[idx] = v
		}
	}
}

func growArray(arr *ArrayInstance, n int) {
	for len(arr.Elements) < n {
		arr.Elements = append(arr.Elements, Undefined())
	}
}

func resizeArray(arr *ArrayInstance, n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(arr.Elements) {
		arr.Elements = arr.Elements[:n]
		return
	}
	growArray(arr, n)
}

// DeleteProperty implements the `delete` operator.
func (vm *VM) DeleteProperty(recv Value, name string) bool {
	switch recv.Type {
	case ValueInstance:
		return recv.Data.(*Instance).Extras.Delete(name)
	case ValueObject:
		return recv.Data.(*PlainObject).Delete(name)
	case ValueArray:
		arr := recv.Data.(*ArrayInstance)
		if idx, ok := arrayIndex(name); ok && idx >= 0 && idx < len(arr.Elements) {
			arr.Elements[idx] = Undefined()
			return true
		}
	}
	return false
}

// HasProperty implements the `in` operator: own or inherited keys.
func (vm *VM) HasProperty(recv Value, name string) bool {
	switch recv.Type {
	case ValueInstance:
		inst := recv.Data.(*Instance)
		if inst.Class.IsDeclaredProperty(name) {
			return true
		}
		if _, ok := inst.Extras.Get(name); ok {
			return true
		}
		m, _ := inst.Class.ResolveInstanceMethod(name)
		return m != nil
	case ValueObject:
		_, ok := recv.Data.(*PlainObject).Get(name)
		return ok
	case ValueArray:
		if name == "length" {
			return true
		}
		if idx, ok := arrayIndex(name); ok {
			return idx >= 0 && idx < len(recv.Data.(*ArrayInstance).Elements)
		}
	}
	return false
}

// OwnKeys implements Object.keys-equivalent enumeration (§3 "for..in").
func OwnKeys(v Value) []string {
	switch v.Type {
	case ValueObject:
		return v.Data.(*PlainObject).Keys()
	case ValueInstance:
		inst := v.Data.(*Instance)
		keys := append([]string{}, inst.Class.FieldOrder...)
		keys = append(keys, inst.Extras.Keys()...)
		return keys
	case ValueArray:
		arr := v.Data.(*ArrayInstance)
		keys := make([]string, len(arr.Elements))
		for i := range arr.Elements {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	default:
		return nil
	}
}

// InstanceOf is the Symbol.hasInstance-free core of the `instanceof`
// operator: class-name strings walk the class chain, callables consult
// their declaring class, built-in constructor names match by value kind.
// (The opcode path additionally honors Symbol.hasInstance before landing
// here.)
func (vm *VM) InstanceOf(v, ctor Value) bool {
	if ctor.Type == ValueString {
		if cls, ok := vm.Classes[ctor.AsString()]; ok {
			inst := v.AsInstance()
			return inst != nil && inst.IsInstanceOf(cls)
		}
		return builtinInstanceOf(v, ctor.AsString())
	}
	if ctor.Type == ValueFunction {
		c := ctor.Data.(*Callable)
		if c.Method != nil && c.Method.DeclaringCls != nil {
			inst := v.AsInstance()
			return inst != nil && inst.IsInstanceOf(c.Method.DeclaringCls)
		}
		return builtinInstanceOf(v, c.Name)
	}
	return false
}

// GetIndex implements computed member access `obj[expr]`.
func (vm *VM) GetIndex(obj, idx Value) Value {
	if obj.Type == ValueMap {
		v, _ := obj.Data.(*MapInstance).Get(idx)
		return v
	}
	return vm.GetProperty(obj, ToDisplayString(idx))
}

// SetIndex implements computed member assignment `obj[expr] = v`.
func (vm *VM) SetIndex(obj, idx, v Value) {
	if obj.Type == ValueMap {
		obj.Data.(*MapInstance).Set(idx, v)
		return
	}
	vm.SetProperty(obj, ToDisplayString(idx), v)
}
