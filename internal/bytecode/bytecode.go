// Package bytecode implements the IL/bytecode emitter and stack-based virtual
// machine for the TypeScript subset this compiler targets. It owns the
// dynamic value model (C1), the per-compilation symbol directory (C2), the
// expression/statement emitter (C3), call-site dispatch (C4), the
// per-receiver-type strategy registry (C5), closure/display-class lowering
// (C6), and the async/generator state-machine rewriter (C7). These are the
// seven cooperating components described by the language core; the lexer,
// parser, and type checker are external collaborators that feed this
// package an AST plus a TypeMap side-table.
package bytecode

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Value is the single uniform slot every TypeScript value is represented by
// at runtime: a type tag plus an opaque payload. Numeric and boolean values
// may transiently exist unboxed on the compiler's abstract stack-type tag
// (see stackTag in compiler_expressions.go) but every Value that crosses a
// function boundary, gets stored in a local/global/field, or is read back
// out of one is this struct — there is no separate unboxed runtime
// representation.
type Value struct {
	Data interface{}
	Type ValueType
}

// ValueType enumerates the fixed tagged universe of §3: every user-visible
// value is exactly one of these kinds.
type ValueType byte

const (
	ValueUndefined ValueType = iota
	ValueNull
	ValueBool
	ValueNumber // 64-bit float, the sole numeric type
	ValueBigInt
	ValueString
	ValueSymbol
	ValueArray
	ValueObject // string-keyed, insertion-ordered plain object
	ValueInstance
	ValueFunction // callable: bound or unbound
	ValuePromise
	ValueRegExp
	ValueBuffer
	ValueMap
	ValueSet
	ValueWeakMap
	ValueWeakSet
	ValueHost // opaque host object, escape hatch for built-in module bodies
)

var valueTypeNames = [...]string{
	ValueUndefined: "undefined",
	ValueNull:      "null",
	ValueBool:      "boolean",
	ValueNumber:    "number",
	ValueBigInt:    "bigint",
	ValueString:    "string",
	ValueSymbol:    "symbol",
	ValueArray:     "array",
	ValueObject:    "object",
	ValueInstance:  "instance",
	ValueFunction:  "function",
	ValuePromise:   "promise",
	ValueRegExp:    "regexp",
	ValueBuffer:    "buffer",
	ValueMap:       "map",
	ValueSet:       "set",
	ValueWeakMap:   "weakmap",
	ValueWeakSet:   "weakset",
	ValueHost:      "host",
}

func (vt ValueType) String() string {
	if int(vt) < len(valueTypeNames) && valueTypeNames[vt] != "" {
		return valueTypeNames[vt]
	}
	return "unknown"
}

// Undefined is the singleton undefined value. Prefer this constructor over
// a bare struct literal so every callsite reads the same way the teacher's
// NilValue()/BoolValue() helpers did.
func Undefined() Value { return Value{Type: ValueUndefined} }

// Null constructs the null value.
func Null() Value { return Value{Type: ValueNull} }

// BoolValue constructs a boxed boolean.
func BoolValue(b bool) Value { return Value{Type: ValueBool, Data: b} }

// NumberValue constructs a boxed 64-bit float, the sole numeric type.
func NumberValue(f float64) Value { return Value{Type: ValueNumber, Data: f} }

// BigIntValue constructs a boxed arbitrary-precision integer.
func BigIntValue(i *big.Int) Value { return Value{Type: ValueBigInt, Data: i} }

// StringValue constructs a boxed string.
func StringValue(s string) Value { return Value{Type: ValueString, Data: s} }

// SymbolValue constructs a boxed symbol.
func SymbolValue(s *Symbol) Value { return Value{Type: ValueSymbol, Data: s} }

// ArrayValue constructs a Value wrapping an array instance.
func ArrayValue(a *ArrayInstance) Value { return Value{Type: ValueArray, Data: a} }

// ObjectValue constructs a Value wrapping a plain object instance.
func ObjectValue(o *PlainObject) Value { return Value{Type: ValueObject, Data: o} }

// InstanceValue constructs a Value wrapping a class instance.
func InstanceValue(i *Instance) Value { return Value{Type: ValueInstance, Data: i} }

// FunctionValue constructs a Value wrapping a callable record.
func FunctionValue(c *Callable) Value { return Value{Type: ValueFunction, Data: c} }

// PromiseValue constructs a Value wrapping a promise handle.
func PromiseValue(p *PromiseHandle) Value { return Value{Type: ValuePromise, Data: p} }

// RegExpValue constructs a Value wrapping a compiled regular expression.
func RegExpValue(r *RegExpInstance) Value { return Value{Type: ValueRegExp, Data: r} }

// BufferValue constructs a Value wrapping a byte buffer.
func BufferValue(b *BufferInstance) Value { return Value{Type: ValueBuffer, Data: b} }

// MapValue constructs a Value wrapping a Map instance.
func MapValue(m *MapInstance) Value { return Value{Type: ValueMap, Data: m} }

// SetValue constructs a Value wrapping a Set instance.
func SetValue(s *SetInstance) Value { return Value{Type: ValueSet, Data: s} }

// WeakMapValue constructs a Value wrapping a WeakMap instance.
func WeakMapValue(w *WeakMapInstance) Value { return Value{Type: ValueWeakMap, Data: w} }

// WeakSetValue constructs a Value wrapping a WeakSet instance.
func WeakSetValue(w *WeakSetInstance) Value { return Value{Type: ValueWeakSet, Data: w} }

// HostValue wraps an arbitrary host-runtime object (built-in module bodies
// live outside this core; this is their escape hatch into the value model).
func HostValue(v interface{}) Value { return Value{Type: ValueHost, Data: v} }

// Type predicates.
func (v Value) IsUndefined() bool { return v.Type == ValueUndefined }
func (v Value) IsNull() bool      { return v.Type == ValueNull }
func (v Value) IsNullish() bool   { return v.Type == ValueUndefined || v.Type == ValueNull }
func (v Value) IsBool() bool      { return v.Type == ValueBool }
func (v Value) IsNumber() bool    { return v.Type == ValueNumber }
func (v Value) IsBigInt() bool    { return v.Type == ValueBigInt }
func (v Value) IsString() bool    { return v.Type == ValueString }
func (v Value) IsSymbol() bool    { return v.Type == ValueSymbol }
func (v Value) IsArray() bool     { return v.Type == ValueArray }
func (v Value) IsObject() bool    { return v.Type == ValueObject }
func (v Value) IsInstance() bool  { return v.Type == ValueInstance }
func (v Value) IsFunction() bool  { return v.Type == ValueFunction }
func (v Value) IsPromise() bool   { return v.Type == ValuePromise }

// IsObjectLike reports whether v is anything other than undefined or null;
// primitives such as strings, numbers and booleans count as object-like.
func (v Value) IsObjectLike() bool {
	switch v.Type {
	case ValueUndefined, ValueNull:
		return false
	default:
		return true
	}
}

func (v Value) AsBool() bool {
	if v.Type == ValueBool {
		return v.Data.(bool)
	}
	return false
}

func (v Value) AsNumber() float64 {
	if v.Type == ValueNumber {
		return v.Data.(float64)
	}
	return 0
}

func (v Value) AsString() string {
	if v.Type == ValueString {
		return v.Data.(string)
	}
	return ""
}

func (v Value) AsArray() *ArrayInstance {
	if v.Type == ValueArray {
		return v.Data.(*ArrayInstance)
	}
	return nil
}

func (v Value) AsInstance() *Instance {
	if v.Type == ValueInstance {
		return v.Data.(*Instance)
	}
	return nil
}

func (v Value) AsCallable() *Callable {
	if v.Type == ValueFunction {
		return v.Data.(*Callable)
	}
	return nil
}

func (v Value) AsPromise() *PromiseHandle {
	if v.Type == ValuePromise {
		return v.Data.(*PromiseHandle)
	}
	return nil
}

// String renders v the way the disassembler and error messages want to see
// it: primitives in their literal form, everything else as a `[kind]` tag,
// since container contents have no single canonical text form.
func (v Value) String() string {
	switch v.Type {
	case ValueUndefined:
		return "undefined"
	case ValueNull:
		return "null"
	case ValueBool:
		if v.Data.(bool) {
			return "true"
		}
		return "false"
	case ValueNumber:
		return formatNumber(v.Data.(float64))
	case ValueBigInt:
		if i, ok := v.Data.(*big.Int); ok {
			return i.String() + "n"
		}
		return "0n"
	case ValueString:
		return v.Data.(string)
	case ValueSymbol:
		if s, ok := v.Data.(*Symbol); ok {
			return "Symbol(" + s.Description + ")"
		}
		return "Symbol()"
	case ValueFunction:
		if c, ok := v.Data.(*Callable); ok && c.Name != "" {
			return "[Function: " + c.Name + "]"
		}
		return "[Function (anonymous)]"
	default:
		return "[" + v.Type.String() + "]"
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// TypeOf implements the `typeof` operator's fixed result set.
func (v Value) TypeOf() string {
	switch v.Type {
	case ValueUndefined:
		return "undefined"
	case ValueNull:
		return "object" // JS quirk, preserved deliberately
	case ValueBool:
		return "boolean"
	case ValueNumber:
		return "number"
	case ValueBigInt:
		return "bigint"
	case ValueString:
		return "string"
	case ValueSymbol:
		return "symbol"
	case ValueFunction:
		return "function"
	default:
		return "object"
	}
}

// Symbol is a uniquely-identified, optionally-described value. Live
// identity is the pointer itself; the ID survives serialization (the module
// cache round-trips compiled chunks to disk), so two structural copies of
// the same symbol still compare equal after a reload.
type Symbol struct {
	ID          uuid.UUID
	Description string
}

// NewSymbol mints a fresh symbol: a new identity every call, matching JS
// `Symbol('x') !== Symbol('x')`.
func NewSymbol(description string) *Symbol {
	return &Symbol{ID: uuid.New(), Description: description}
}

// Well-known symbols, process-wide and published once before any emitted
// code runs (§5 "Shared resources"). Their IDs are pinned so serialized
// chunks referencing them re-link to the live singletons on load.
var (
	SymbolIterator      = &Symbol{ID: uuid.MustParse("8f9f6a3c-0b63-4a48-9c1e-6d1f32aa0001"), Description: "Symbol.iterator"}
	SymbolAsyncIterator = &Symbol{ID: uuid.MustParse("8f9f6a3c-0b63-4a48-9c1e-6d1f32aa0002"), Description: "Symbol.asyncIterator"}
	SymbolHasInstance   = &Symbol{ID: uuid.MustParse("8f9f6a3c-0b63-4a48-9c1e-6d1f32aa0003"), Description: "Symbol.hasInstance"}
	SymbolToStringTag   = &Symbol{ID: uuid.MustParse("8f9f6a3c-0b63-4a48-9c1e-6d1f32aa0004"), Description: "Symbol.toStringTag"}

	symbolRegistry   = map[string]*Symbol{}
	symbolRegistryMu sync.Mutex
)

// SymbolFor implements Symbol.for: a process-wide registry keyed by
// description, so repeated calls with the same key return the same symbol.
func SymbolFor(key string) *Symbol {
	symbolRegistryMu.Lock()
	defer symbolRegistryMu.Unlock()
	if s, ok := symbolRegistry[key]; ok {
		return s
	}
	s := NewSymbol(key)
	symbolRegistry[key] = s
	return s
}

// WellKnownSymbolByID re-links a deserialized well-known symbol reference to
// its live singleton.
func WellKnownSymbolByID(id uuid.UUID) (*Symbol, bool) {
	for _, s := range []*Symbol{SymbolIterator, SymbolAsyncIterator, SymbolHasInstance, SymbolToStringTag} {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// PlainObject is a string-keyed, insertion-ordered mapping — the `object`
// arm of the value universe. Symbol-keyed properties are kept in a
// parallel slice since they must never appear in for..in/Object.keys
// enumeration.
type PlainObject struct {
	keys       []string
	props      map[string]Value
	symbolKeys []*Symbol
	symbolVals map[*Symbol]Value
	frozen     bool
}

// NewPlainObject returns an empty object.
func NewPlainObject() *PlainObject {
	return &PlainObject{props: make(map[string]Value)}
}

// Get returns the property value and whether it was present.
func (o *PlainObject) Get(name string) (Value, bool) {
	v, ok := o.props[name]
	return v, ok
}

// Set assigns name, appending it to the insertion-order key list the first
// time it is seen. Writes to a frozen object are silently dropped.
func (o *PlainObject) Set(name string, v Value) {
	if o.frozen {
		return
	}
	if _, exists := o.props[name]; !exists {
		o.keys = append(o.keys, name)
	}
	o.props[name] = v
}

// Freeze makes the object reject all further property writes and deletes.
func (o *PlainObject) Freeze() { o.frozen = true }

// IsFrozen reports whether Freeze has been called.
func (o *PlainObject) IsFrozen() bool { return o.frozen }

// Delete removes name, preserving insertion order of the rest.
func (o *PlainObject) Delete(name string) bool {
	if o.frozen {
		return false
	}
	if _, ok := o.props[name]; !ok {
		return false
	}
	delete(o.props, name)
	for i, k := range o.keys {
		if k == name {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns own enumerable string keys in insertion order.
func (o *PlainObject) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// GetSymbol/SetSymbol support well-known-symbol protocol methods (iterator,
// asyncIterator, hasInstance, ...) without leaking into string enumeration.
func (o *PlainObject) GetSymbol(s *Symbol) (Value, bool) {
	if o.symbolVals == nil {
		return Value{}, false
	}
	v, ok := o.symbolVals[s]
	return v, ok
}

func (o *PlainObject) SetSymbol(s *Symbol, v Value) {
	if o.symbolVals == nil {
		o.symbolVals = make(map[*Symbol]Value)
	}
	if _, exists := o.symbolVals[s]; !exists {
		o.symbolKeys = append(o.symbolKeys, s)
	}
	o.symbolVals[s] = v
}

// ArrayInstance is the ordered-sequence arm of the value universe.
type ArrayInstance struct {
	Elements []Value
}

// NewArrayInstance wraps items as an array, copying the slice so later
// caller-side mutation of the source slice cannot alias the array.
func NewArrayInstance(items []Value) *ArrayInstance {
	elems := make([]Value, len(items))
	copy(elems, items)
	return &ArrayInstance{Elements: elems}
}

func (a *ArrayInstance) Len() int { return len(a.Elements) }

// At implements Array.prototype.at's negative-index wraparound; out-of-range
// on either side returns (undefined, false).
func (a *ArrayInstance) At(n int) (Value, bool) {
	idx := n
	if idx < 0 {
		idx += len(a.Elements)
	}
	if idx < 0 || idx >= len(a.Elements) {
		return Undefined(), false
	}
	return a.Elements[idx], true
}

// Instance is a class-instance value: declared properties live in typed
// backing slots (fast, invariant-enforcing access); anything assigned that
// was never declared lands in Extras (§3 invariant 1).
type Instance struct {
	Class      *ClassRecord
	Fields     map[string]Value // declared property backing slots
	Extras     *PlainObject     // dynamically added properties
	PrivateFields map[string]Value // keyed by "ClassName#fieldName"
}

// NewInstance allocates a zero-valued instance of cls.
func NewInstance(cls *ClassRecord) *Instance {
	return &Instance{
		Class:         cls,
		Fields:        make(map[string]Value),
		Extras:        NewPlainObject(),
		PrivateFields: make(map[string]Value),
	}
}

// IsInstanceOf walks the superclass chain, per §3 invariant 3: a value
// statically typed Class(C) is guaranteed to be C or a subclass, so any
// downcast the emitter relies on must have already been validated by the
// checker; this is the dynamic confirmation used when the checker's
// guarantee cannot be trusted (`instanceof`, failed-downcast fallback).
func (i *Instance) IsInstanceOf(cls *ClassRecord) bool {
	for c := i.Class; c != nil; c = c.Super {
		if c == cls {
			return true
		}
	}
	return false
}

// Callable is a first-class function value: either an unbound reference to
// a declared function/method, or a capture-instance-bound closure (§4.6),
// or a `.bind()` result layering a fixed `this`/partial arguments.
type Callable struct {
	Name       string
	Method     *FunctionObject
	Capture    *CaptureRecord // display-class instance, nil for free functions
	This       Value          // bound receiver for method values; nullish if unbound
	// PinnedThis marks an arrow closure: its captured This wins over any
	// call-site receiver, since arrows never rebind `this`.
	PinnedThis bool
	BoundThis  *Value // non-nil if produced by Function.prototype.bind
	BoundArgs  []Value
	IsBound    bool
	Native     BuiltinFunction // set for host-provided callables (console.log, etc.)
}

// CaptureRecord is the display-class instance C6 allocates for a nested
// function: one field per free variable the function reads from an
// enclosing scope, plus an optional captured `this`.
type CaptureRecord struct {
	Fields map[string]*Value // pointer cells so outer/inner views alias (§4.6 option b)
	This   *Value
}

// PromiseHandle wraps the host runtime's task abstraction; see
// vm_promise.go for scheduling semantics.
type PromiseHandle struct {
	state      promiseState
	result     Value
	reactions  []promiseReaction
	id         uint64
}

type promiseState byte

const (
	promisePending promiseState = iota
	promiseFulfilled
	promiseRejected
)

type promiseReaction struct {
	onFulfilled *Callable
	onRejected  *Callable
	result      *PromiseHandle
}

// RegExpInstance holds a regular expression's JS-visible source/flags pair;
// compileRegExp translates it to a Go regexp at each use (Go's regexp syntax is close enough to ECMAScript's for
// this core's supported subset; §9 does not ask for full conformance).
type RegExpInstance struct {
	Source string
	Flags  string
	Global bool
}

// BufferInstance is a fixed-size byte buffer exposing toString(encoding).
type BufferInstance struct {
	Bytes []byte
}

// MapInstance preserves insertion order across iteration (§8).
type MapInstance struct {
	keys   []Value
	values map[interface{}]Value
	order  map[interface{}]int
}

func NewMapInstance() *MapInstance {
	return &MapInstance{values: make(map[interface{}]Value), order: make(map[interface{}]int)}
}

func mapKey(v Value) interface{} {
	switch v.Type {
	case ValueString, ValueNumber, ValueBool, ValueUndefined, ValueNull:
		return fmt.Sprintf("%d:%v", v.Type, v.Data)
	default:
		return v.Data // reference identity for objects/arrays/instances
	}
}

func (m *MapInstance) Get(k Value) (Value, bool) {
	v, ok := m.values[mapKey(k)]
	return v, ok
}

func (m *MapInstance) Set(k, v Value) {
	mk := mapKey(k)
	if _, exists := m.values[mk]; !exists {
		m.order[mk] = len(m.keys)
		m.keys = append(m.keys, k)
	}
	m.values[mk] = v
}

func (m *MapInstance) Delete(k Value) bool {
	mk := mapKey(k)
	if _, ok := m.values[mk]; !ok {
		return false
	}
	delete(m.values, mk)
	idx := m.order[mk]
	delete(m.order, mk)
	m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	for key, i := range m.order {
		if i > idx {
			m.order[key] = i - 1
		}
	}
	return true
}

func (m *MapInstance) Size() int { return len(m.keys) }

// Entries returns key/value pairs in insertion order.
func (m *MapInstance) Entries() []([2]Value) {
	out := make([][2]Value, 0, len(m.keys))
	for _, k := range m.keys {
		v := m.values[mapKey(k)]
		out = append(out, [2]Value{k, v})
	}
	return out
}

// SetInstance preserves insertion order across iteration (§8).
type SetInstance struct {
	items []Value
	index map[interface{}]int
}

func NewSetInstance() *SetInstance {
	return &SetInstance{index: make(map[interface{}]int)}
}

func (s *SetInstance) Has(v Value) bool {
	_, ok := s.index[mapKey(v)]
	return ok
}

func (s *SetInstance) Add(v Value) {
	mk := mapKey(v)
	if _, ok := s.index[mk]; ok {
		return
	}
	s.index[mk] = len(s.items)
	s.items = append(s.items, v)
}

func (s *SetInstance) Delete(v Value) bool {
	mk := mapKey(v)
	idx, ok := s.index[mk]
	if !ok {
		return false
	}
	delete(s.index, mk)
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	for key, i := range s.index {
		if i > idx {
			s.index[key] = i - 1
		}
	}
	return true
}

func (s *SetInstance) Size() int      { return len(s.items) }
func (s *SetInstance) Items() []Value { out := make([]Value, len(s.items)); copy(out, s.items); return out }

// WeakMapInstance/WeakSetInstance: the host runtime's GC reclaims entries
// whose object key becomes unreachable. This core delegates reclamation to
// the host runtime (§9 design notes, §1 non-goals) and only enforces
// object-only keys plus non-enumerability.
type WeakMapInstance struct {
	entries map[interface{}]Value
}

func NewWeakMapInstance() *WeakMapInstance { return &WeakMapInstance{entries: make(map[interface{}]Value)} }

func (w *WeakMapInstance) Get(k Value) (Value, bool) { v, ok := w.entries[mapKey(k)]; return v, ok }
func (w *WeakMapInstance) Set(k, v Value)            { w.entries[mapKey(k)] = v }
func (w *WeakMapInstance) Delete(k Value) bool {
	mk := mapKey(k)
	if _, ok := w.entries[mk]; !ok {
		return false
	}
	delete(w.entries, mk)
	return true
}

type WeakSetInstance struct {
	entries map[interface{}]bool
}

func NewWeakSetInstance() *WeakSetInstance { return &WeakSetInstance{entries: make(map[interface{}]bool)} }
func (w *WeakSetInstance) Has(v Value) bool { return w.entries[mapKey(v)] }
func (w *WeakSetInstance) Add(v Value)      { w.entries[mapKey(v)] = true }
func (w *WeakSetInstance) Delete(v Value) bool {
	mk := mapKey(v)
	if !w.entries[mk] {
		return false
	}
	delete(w.entries, mk)
	return true
}

// FunctionObject is a compiled function's code plus the metadata the VM
// needs to invoke it: its chunk, declared capture layout, and async/
// generator kind (consumed by the coroutine runner, vm_async.go).
type FunctionObject struct {
	Chunk        *Chunk
	Name         string
	Arity        int
	RestIndex    int // -1 if no rest parameter
	ParamNames   []string
	Defaults     []*Chunk // per-parameter default-value initializer, nil if none
	UpvalueDefs  []UpvalueDef
	Kind         FunctionKind
	DeclaringCls *ClassRecord // non-nil for methods, used for private-member scoping
}

// FunctionKind distinguishes the four lowering strategies a function body
// can require (C7).
type FunctionKind byte

const (
	FunctionPlain FunctionKind = iota
	FunctionAsync
	FunctionGenerator
	FunctionAsyncGenerator
)

func NewFunctionObject(name string, chunk *Chunk, arity int) *FunctionObject {
	return &FunctionObject{Name: name, Chunk: chunk, Arity: arity, RestIndex: -1}
}

func (fn *FunctionObject) UpvalueCount() int {
	if fn == nil {
		return 0
	}
	return len(fn.UpvalueDefs)
}

// UpvalueDef describes how a closure captures one free variable when it is
// instantiated (C6): either lifted straight from the creating frame's local
// slot, or forwarded from the creating frame's own upvalue list.
type UpvalueDef struct {
	IsLocal bool
	Index   int
	Name    string
}

func sortedStrings(in map[string]struct{}) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
