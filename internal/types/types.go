// Package types defines the TypeMap contract the emitter consults for
// optimization (spec §3, §4.2). The real type checker is an external
// collaborator out of this core's scope; this package only defines the
// side-table shape and a best-effort local inferencer that stands in for
// it so the repository has something to drive end to end (see DESIGN.md).
package types

import "github.com/tscore-lang/tscore/internal/ast"

// Kind is the checker's coarse classification of an expression's static
// type — the granularity the emitter actually consumes for dispatch
// decisions (spec §4.4, §4.5): enough to pick a direct call or a type
// strategy, not a full structural type system.
type Kind int

const (
	Unknown Kind = iota
	Any
	Number
	BigIntKind
	StringKind
	Boolean
	Undefined
	Null
	ArrayKind
	ObjectKind
	ClassInstance
	FunctionKind
	UnionKind
)

// TypeInfo is one TypeMap entry.
type TypeInfo struct {
	Kind Kind
	// ClassName is set when Kind == ClassInstance, naming the static class.
	ClassName string
	// ElementKind is set when Kind == ArrayKind, naming the element's kind.
	ElementKind Kind
	// Members holds the constituent kinds of a union type (Kind == UnionKind).
	Members []Kind
}

// String names of built-in wrapper types the strategy registry (C5)
// dispatches on, independent of Kind (a ClassInstance with ClassName =
// "Date" still resolves to the Date strategy).
const (
	ClassArray   = "Array"
	ClassString  = "String"
	ClassDate    = "Date"
	ClassMap     = "Map"
	ClassSet     = "Set"
	ClassWeakMap = "WeakMap"
	ClassWeakSet = "WeakSet"
	ClassRegExp  = "RegExp"
	ClassBuffer  = "Buffer"
	ClassPromise = "Promise"
)

// TypeMap is the AST-node → TypeInfo side table. A missing entry (Get
// returns ok=false) must never be treated as a soundness violation — every
// C3/C4/C5 caller falls back to dynamic dispatch when absent (spec §4.2,
// §7 TypeCheckError tolerance).
type TypeMap struct {
	entries map[ast.Node]TypeInfo
}

// NewTypeMap creates an empty TypeMap.
func NewTypeMap() *TypeMap {
	return &TypeMap{entries: make(map[ast.Node]TypeInfo)}
}

// Get returns the TypeInfo recorded for node, if any.
func (m *TypeMap) Get(node ast.Node) (TypeInfo, bool) {
	if m == nil || node == nil {
		return TypeInfo{}, false
	}
	info, ok := m.entries[node]
	return info, ok
}

// Set records info for node. Used by the stand-in inferencer and by tests
// that want to pin a dispatch decision without running inference.
func (m *TypeMap) Set(node ast.Node, info TypeInfo) {
	m.entries[node] = info
}
