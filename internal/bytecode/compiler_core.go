package bytecode

import (
	"fmt"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/types"
)

// ClassRecord is C2's directory entry for a declared class: its backing
// storage layout, method tables, and superclass link. Property/method
// resolution (ResolveInstanceMethod, ResolvePropertyBackingField) walks
// Super chains rooted here.
type ClassRecord struct {
	Name             string
	Super            *ClassRecord
	Properties       map[string]types.Kind // declared property name -> kind
	ReadonlyProps    map[string]bool
	Methods          map[string]*FunctionObject
	StaticMethods    map[string]*FunctionObject
	StaticFields     map[string]Value
	PrivateFields    map[string]bool // declared #name fields, for GetPrivateField scoping
	PrivateMethods   map[string]*FunctionObject
	FieldOrder       []string // declaration order, for NewClassInstance init
	// FieldInits/StaticFieldInits hold the compiled per-field initializer
	// chunks the VM runs when constructing an instance (declaration order)
	// and once at program start, respectively.
	FieldInits       map[string]*Chunk
	StaticFieldInits map[string]*Chunk
	ConstructorArity int
}

func newClassRecord(name string, super *ClassRecord) *ClassRecord {
	return &ClassRecord{
		Name:           name,
		Super:          super,
		Properties:     make(map[string]types.Kind),
		ReadonlyProps:  make(map[string]bool),
		Methods:        make(map[string]*FunctionObject),
		StaticMethods:  make(map[string]*FunctionObject),
		StaticFields:   make(map[string]Value),
		PrivateFields:    make(map[string]bool),
		PrivateMethods:   make(map[string]*FunctionObject),
		FieldInits:       make(map[string]*Chunk),
		StaticFieldInits: make(map[string]*Chunk),
	}
}

// ResolveInstanceMethod walks the superclass chain starting at cls looking
// for methodName, returning the first match (JS single-inheritance method
// resolution order).
func (cls *ClassRecord) ResolveInstanceMethod(methodName string) (*FunctionObject, *ClassRecord) {
	for c := cls; c != nil; c = c.Super {
		if m, ok := c.Methods[methodName]; ok {
			return m, c
		}
	}
	return nil, nil
}

// ResolvePropertyType walks the superclass chain for a declared property's
// static type.
func (cls *ClassRecord) ResolvePropertyType(name string) (types.Kind, bool) {
	for c := cls; c != nil; c = c.Super {
		if t, ok := c.Properties[name]; ok {
			return t, true
		}
	}
	return types.Unknown, false
}

// IsDeclaredProperty reports whether name is a declared (not extras)
// property anywhere in the chain.
func (cls *ClassRecord) IsDeclaredProperty(name string) bool {
	_, ok := cls.ResolvePropertyType(name)
	return ok
}

// IsReadonlyProperty reports whether name is declared readonly anywhere in
// the chain (§3 invariant 2: only writable from the declaring constructor).
func (cls *ClassRecord) IsReadonlyProperty(name string) bool {
	for c := cls; c != nil; c = c.Super {
		if _, ok := c.Properties[name]; ok {
			return c.ReadonlyProps[name]
		}
	}
	return false
}

// ModuleRecord is C2's per-module export directory: a static storage slot
// per named export plus the reserved `$default` slot (§3, §6).
type ModuleRecord struct {
	Path         string
	ExportSlots  map[string]uint16 // export name ("$default" for default) -> global slot
	ExportsOrder []string
}

// CompilationContext is the symbol and state directory for one
// compilation unit (C2). All cross-component lookups — class/function
// resolution, local slots, generic parameters, module export slots — route
// through it. It is created per compilation, mutated only during emission,
// and discarded once the emitted module is finalized.
type CompilationContext struct {
	Classes    map[string]*ClassRecord
	Functions  map[string]*FunctionObject
	Modules    map[string]*ModuleRecord
	TypeMap   *types.TypeMap
	Generics  map[string]string // source-visible generic identifier -> resolved target type name, valid only while emitting a generic member
	curModule *ModuleRecord
}

func newCompilationContext(tm *types.TypeMap) *CompilationContext {
	return &CompilationContext{
		Classes:   make(map[string]*ClassRecord),
		Functions: make(map[string]*FunctionObject),
		Modules:   make(map[string]*ModuleRecord),
		TypeMap:   tm,
		Generics:  make(map[string]string),
	}
}

// ResolveClassName translates a source-visible simple class name to its
// registered ClassRecord, or nil if undeclared (callers fall back to
// dynamic dispatch in that case rather than treating it as a compile
// error — the identifier may resolve to a value of class type at runtime
// via `any`).
func (ctx *CompilationContext) ResolveClassName(simple string) *ClassRecord {
	return ctx.Classes[simple]
}

// ResolveFunctionName translates a source-visible simple function name to
// its registered FunctionObject.
func (ctx *CompilationContext) ResolveFunctionName(simple string) *FunctionObject {
	return ctx.Functions[simple]
}

// TypeOf returns the checker's inferred TypeInfo for expr, or ok=false —
// components must tolerate a missing TypeMap entry by falling back to
// dynamic dispatch rather than emitting unsound code (§4.2).
func (ctx *CompilationContext) TypeOf(expr ast.Expression) (types.TypeInfo, bool) {
	if ctx.TypeMap == nil {
		return types.TypeInfo{}, false
	}
	return ctx.TypeMap.Get(expr)
}

// local is a lexically-scoped binding: name -> (slot, declared type).
// Shadowing follows lexical scope depth.
type local struct {
	name  string
	depth int
	slot  uint16
	typ   types.Kind
	// captured is set once some nested function closes over this local; the
	// compiler still keeps the local slot live (writes update both, per
	// §4.6) rather than eagerly promoting it to a capture-only cell.
	captured bool
}

type globalVar struct {
	name  string
	index uint16
	typ   types.Kind
}

// loopContext tracks break/continue jump patch lists for the loop currently
// being compiled.
type loopContext struct {
	breakJumps    []int
	continueJumps []int
	loopStart     int
	isLoopLabel   string // labeled-statement name this loop/switch answers to, "" if unlabeled
	// isSwitch marks a frame pushed for a switch statement: it accepts
	// break but, per JS semantics, is never a valid continue target, so
	// continue search skips over it even when unlabeled.
	isSwitch bool
}

// Compiler performs the C3 recursive lowering of one function (or the
// top-level script) body into a Chunk, consulting the shared
// CompilationContext (C2) for cross-scope symbol resolution. Nested
// function bodies get their own child Compiler linked via enclosing, the
// same way the teacher's single-pass compiler threads scope.
type Compiler struct {
	ctx       *CompilationContext
	chunk     *Chunk
	enclosing *Compiler

	locals     []local
	globals    map[string]globalVar
	upvalues   []UpvalueDef
	loopStack  []*loopContext
	scopeDepth int
	nextSlot   uint16
	maxSlot    uint16
	nextGlobal uint16
	lastLine   int

	// currentClass is the ClassRecord being compiled when lowering a
	// method body, nil at top level. Needed for `this`/private-member/
	// super resolution.
	currentClass *ClassRecord
	// currentFunctionKind distinguishes async/generator lowering (C7). Async
	// and generator bodies compile like any other function body; suspension
	// is a VM-level concern (the thread running them parks on a channel at
	// OpAwait/OpYield) rather than a compile-time state-machine rewrite.
	currentFunctionKind FunctionKind

	// pendingLoopLabel is set by compileLabeledLoop just before compiling a
	// labeled loop statement, and consumed (cleared) by the next pushLoop
	// call so that loop's break/continue jump lists answer to the label.
	pendingLoopLabel string

	stackTag stackTypeTag

	optimizeOptions []OptimizeOption
}

// CompilerOption configures a new top-level Compiler.
type CompilerOption func(*Compiler)

func WithCompilerOptimizeOptions(opts ...OptimizeOption) CompilerOption {
	return func(c *Compiler) { c.optimizeOptions = opts }
}

// NewCompiler creates a compiler for one compilation unit (a script or
// module's top-level chunk).
func NewCompiler(chunkName string, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		ctx:      newCompilationContext(nil),
		chunk:    NewChunk(chunkName),
		globals:  make(map[string]globalVar),
		stackTag: stackTagUnknown,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTypeMap attaches the external checker's TypeMap side-table.
func WithTypeMap(tm *types.TypeMap) CompilerOption {
	return func(c *Compiler) { c.ctx.TypeMap = tm }
}

func (c *Compiler) newChildCompiler(name string) *Compiler {
	child := &Compiler{
		ctx:             c.ctx,
		chunk:           NewChunk(name),
		enclosing:       c,
		globals:         c.globals,
		currentClass:    c.currentClass,
		optimizeOptions: c.optimizeOptions,
		stackTag:        stackTagUnknown,
	}
	return child
}

// Compile compiles program as the top-level chunk of a script or module.
func (c *Compiler) Compile(program *ast.Program) (*Chunk, error) {
	if program == nil {
		return nil, fmt.Errorf("bytecode compile error: nil program")
	}
	for _, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	c.chunk.LocalCount = int(c.maxSlot)
	c.chunk.WriteSimple(OpHalt, c.lastLine)
	for _, opt := range c.optimizeOptions {
		_ = opt
	}
	c.chunk.Optimize(c.optimizeOptions...)
	return c.chunk, nil
}

func (c *Compiler) LocalCount() int { return int(c.maxSlot) }

// --- Scope management ------------------------------------------------------

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string, typ types.Kind) (uint16, error) {
	slot := c.nextSlot
	c.nextSlot++
	if c.nextSlot > c.maxSlot {
		c.maxSlot = c.nextSlot
	}
	if c.nextSlot == 0 {
		return 0, fmt.Errorf("too many locals in %q", c.chunk.Name)
	}
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, slot: slot, typ: typ})
	return slot, nil
}

// resolveLocal implements variable-access rule (c) from §4.3: walk locals
// from innermost outward, respecting shadowing.
func (c *Compiler) resolveLocal(name string) (local, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return c.locals[i], true
		}
	}
	return local{}, false
}

// resolveUpvalue implements variable-access rule (b): if name is a local of
// an enclosing compiler, or already an upvalue there, register (or reuse) a
// capture slot on this compiler and return its index.
func (c *Compiler) resolveUpvalue(name string) (int, bool, error) {
	if c.enclosing == nil {
		return 0, false, nil
	}
	if lc, ok := c.enclosing.resolveLocal(name); ok {
		c.enclosing.markCaptured(name)
		return c.addUpvalue(name, true, int(lc.slot)), true, nil
	}
	if idx, ok, err := c.enclosing.resolveUpvalue(name); err != nil {
		return 0, false, err
	} else if ok {
		return c.addUpvalue(name, false, idx), true, nil
	}
	return 0, false, nil
}

func (c *Compiler) markCaptured(name string) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			c.locals[i].captured = true
			return
		}
	}
}

func (c *Compiler) addUpvalue(name string, isLocal bool, index int) int {
	for i, uv := range c.upvalues {
		if uv.IsLocal == isLocal && uv.Index == index {
			return i
		}
	}
	c.upvalues = append(c.upvalues, UpvalueDef{IsLocal: isLocal, Index: index, Name: name})
	return len(c.upvalues) - 1
}

func (c *Compiler) resolveGlobal(name string) (globalVar, bool) {
	g, ok := c.globals[name]
	return g, ok
}

func (c *Compiler) declareGlobal(name string, typ types.Kind) uint16 {
	slot := c.nextGlobal
	c.nextGlobal++
	c.globals[name] = globalVar{name: name, index: slot, typ: typ}
	return slot
}

func (c *Compiler) errorf(node ast.Node, format string, args ...interface{}) error {
	pos := "?"
	if node != nil {
		p := node.Pos()
		pos = fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Errorf("compile error at %s: %s", pos, fmt.Sprintf(format, args...))
}

func lineOf(node ast.Node) int {
	if node == nil {
		return 0
	}
	return node.Pos().Line
}
