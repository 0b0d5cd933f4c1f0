package bytecode

import (
	"math"
	"testing"
)

func TestStrictEquals(t *testing.T) {
	nan := NumberValue(math.NaN())
	if StrictEquals(nan, nan) {
		t.Error("NaN === NaN must be false")
	}
	if !StrictEquals(NumberValue(0), NumberValue(math.Copysign(0, -1))) {
		t.Error("+0 === -0 must be true")
	}
	a := ArrayValue(NewArrayInstance([]Value{NumberValue(1)}))
	b := ArrayValue(NewArrayInstance([]Value{NumberValue(1)}))
	if StrictEquals(a, b) {
		t.Error("distinct arrays must not be strictly equal")
	}
	if !StrictEquals(a, a) {
		t.Error("an array must equal itself")
	}
	if StrictEquals(Null(), Undefined()) {
		t.Error("null === undefined must be false")
	}
	if !StrictEquals(StringValue("x"), StringValue("x")) {
		t.Error("equal strings must be strictly equal")
	}
}

func TestIsTruthy(t *testing.T) {
	falsy := []Value{
		Undefined(), Null(), BoolValue(false),
		NumberValue(0), NumberValue(math.NaN()), StringValue(""),
	}
	for _, v := range falsy {
		if IsTruthy(v) {
			t.Errorf("%s should be falsy", v.String())
		}
	}
	truthy := []Value{
		BoolValue(true), NumberValue(-1), StringValue("0"),
		ArrayValue(NewArrayInstance(nil)), ObjectValue(NewPlainObject()),
	}
	for _, v := range truthy {
		if !IsTruthy(v) {
			t.Errorf("%s should be truthy", v.String())
		}
	}
}

func TestAddSemantics(t *testing.T) {
	if got := Add(NumberValue(1), NumberValue(2)); got.AsNumber() != 3 {
		t.Errorf("1+2 = %v", got)
	}
	if got := Add(StringValue("a"), NumberValue(1)); got.AsString() != "a1" {
		t.Errorf("'a'+1 = %v", got)
	}
	if got := Add(NumberValue(1), StringValue("b")); got.AsString() != "1b" {
		t.Errorf("1+'b' = %v", got)
	}
	if got := Add(Undefined(), NumberValue(1)); !math.IsNaN(got.AsNumber()) {
		t.Errorf("undefined+1 = %v, want NaN", got)
	}
}

func TestNumberFormatting(t *testing.T) {
	cases := map[float64]string{
		3:          "3",
		3.5:        "3.5",
		-0.25:      "-0.25",
		math.Inf(1):  "Infinity",
		math.Inf(-1): "-Infinity",
	}
	for in, want := range cases {
		if got := NumberValue(in).String(); got != want {
			t.Errorf("format(%v) = %q, want %q", in, got, want)
		}
	}
	if got := NumberValue(math.NaN()).String(); got != "NaN" {
		t.Errorf("format(NaN) = %q", got)
	}
}

func TestPlainObjectInsertionOrder(t *testing.T) {
	o := NewPlainObject()
	o.Set("z", NumberValue(1))
	o.Set("a", NumberValue(2))
	o.Set("z", NumberValue(3)) // re-set keeps original position
	keys := o.Keys()
	if len(keys) != 2 || keys[0] != "z" || keys[1] != "a" {
		t.Errorf("keys = %v, want [z a]", keys)
	}
	o.Delete("z")
	if keys := o.Keys(); len(keys) != 1 || keys[0] != "a" {
		t.Errorf("keys after delete = %v", keys)
	}
}

func TestPlainObjectFreeze(t *testing.T) {
	o := NewPlainObject()
	o.Set("a", NumberValue(1))
	o.Freeze()
	o.Set("b", NumberValue(2))
	o.Delete("a")
	if _, ok := o.Get("b"); ok {
		t.Error("write to frozen object must be dropped")
	}
	if _, ok := o.Get("a"); !ok {
		t.Error("delete on frozen object must be dropped")
	}
}

func TestMapInsertionOrder(t *testing.T) {
	m := NewMapInstance()
	m.Set(StringValue("c"), NumberValue(1))
	m.Set(StringValue("a"), NumberValue(2))
	m.Set(NumberValue(1), NumberValue(3))
	m.Set(StringValue("c"), NumberValue(9))

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("size = %d, want 3", len(entries))
	}
	if entries[0][0].AsString() != "c" || entries[0][1].AsNumber() != 9 {
		t.Errorf("first entry = %v", entries[0])
	}
	m.Delete(StringValue("a"))
	entries = m.Entries()
	if len(entries) != 2 || entries[1][0].AsNumber() != 1 {
		t.Errorf("entries after delete = %v", entries)
	}
}

func TestSetSemantics(t *testing.T) {
	s := NewSetInstance()
	s.Add(NumberValue(3))
	s.Add(NumberValue(1))
	s.Add(NumberValue(3))
	if s.Size() != 2 {
		t.Errorf("size = %d", s.Size())
	}
	items := s.Items()
	if items[0].AsNumber() != 3 || items[1].AsNumber() != 1 {
		t.Errorf("items = %v, insertion order must hold", items)
	}
	// Object keys compare by identity, not structure.
	a := ObjectValue(NewPlainObject())
	b := ObjectValue(NewPlainObject())
	s.Add(a)
	s.Add(b)
	s.Add(a)
	if s.Size() != 4 {
		t.Errorf("size with object members = %d, want 4", s.Size())
	}
}

func TestArrayAt(t *testing.T) {
	arr := NewArrayInstance([]Value{NumberValue(10), NumberValue(20), NumberValue(30)})
	if v, ok := arr.At(-1); !ok || v.AsNumber() != 30 {
		t.Errorf("At(-1) = %v %v", v, ok)
	}
	if _, ok := arr.At(3); ok {
		t.Error("At(len) must miss")
	}
	if _, ok := arr.At(-4); ok {
		t.Error("At(-len-1) must miss")
	}
}

func TestTypeOf(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Undefined(), "undefined"},
		{Null(), "object"},
		{BoolValue(true), "boolean"},
		{NumberValue(1), "number"},
		{StringValue(""), "string"},
		{SymbolValue(NewSymbol("s")), "symbol"},
		{FunctionValue(&Callable{}), "function"},
		{ObjectValue(NewPlainObject()), "object"},
		{ArrayValue(NewArrayInstance(nil)), "object"},
	}
	for _, c := range cases {
		if got := c.v.TypeOf(); got != c.want {
			t.Errorf("typeof %s = %q, want %q", c.v.Type.String(), got, c.want)
		}
	}
}

func TestSymbolIdentity(t *testing.T) {
	a, b := NewSymbol("same"), NewSymbol("same")
	if a == b || a.ID == b.ID {
		t.Error("fresh symbols must have distinct identities")
	}
	if SymbolFor("key") != SymbolFor("key") {
		t.Error("Symbol.for must intern by key")
	}
	if s, ok := WellKnownSymbolByID(SymbolIterator.ID); !ok || s != SymbolIterator {
		t.Error("well-known symbol must re-link by pinned ID")
	}
}

func TestInstanceChain(t *testing.T) {
	base := newClassRecord("Base", nil)
	derived := newClassRecord("Derived", base)
	inst := NewInstance(derived)
	if !inst.IsInstanceOf(base) || !inst.IsInstanceOf(derived) {
		t.Error("instance must match its class and superclass")
	}
	other := newClassRecord("Other", nil)
	if inst.IsInstanceOf(other) {
		t.Error("instance must not match an unrelated class")
	}
}
