// Package interp is the tree-walking execution engine: the second of the
// two modes the engine exposes, sharing the dynamic value model, runtime
// helper catalog, strategy tables, and promise machinery with the bytecode
// VM through internal/bytecode's host API. Identical programs must produce
// identical stdout in both modes; keeping a single C1 underneath both
// engines is what makes that invariant cheap to hold.
package interp

import (
	"io"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/bytecode"
)

// Value aliases the shared dynamic value slot so the evaluator reads
// naturally without importing bytecode at every use site.
type Value = bytecode.Value

// Interpreter evaluates a parsed program directly over the AST.
type Interpreter struct {
	vm      *bytecode.VM
	globals *environment
	classes map[string]*classInfo
	// Exports collects the module's exported bindings (name -> value),
	// `$default` for the default export, mirroring the emitter's module
	// export slots.
	Exports      map[string]Value
	exportsOrder []string
}

// Option configures a new Interpreter.
type Option func(*Interpreter)

// WithOutput redirects console.log output.
func WithOutput(w io.Writer) Option {
	return func(i *Interpreter) { i.vm.WithOutput(w) }
}

// WithErrOutput redirects console.error/console.warn output.
func WithErrOutput(w io.Writer) Option {
	return func(i *Interpreter) { i.vm.WithErrOutput(w) }
}

// WithModuleLoader installs the import-specifier resolver shared with the
// VM path.
func WithModuleLoader(load func(path string) (Value, error)) Option {
	return func(i *Interpreter) { i.vm.LoadModule = load }
}

// WithArgv sets process.argv.
func WithArgv(argv []string) Option {
	return func(i *Interpreter) { i.vm.Argv = argv }
}

// New builds an interpreter with a fresh shared-runtime host.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		vm:      bytecode.NewHostVM(),
		classes: map[string]*classInfo{},
		Exports: map[string]Value{},
	}
	in.globals = newEnvironment(nil)
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run evaluates prog to completion, then drains the shared microtask queue
// until no async work remains, matching the VM's top-level driver loop.
func (in *Interpreter) Run(prog *ast.Program) error {
	// Function and class declarations hoist before any statement runs.
	for _, stmt := range prog.Statements {
		switch s := stmt.(type) {
		case *ast.FunctionDeclaration:
			in.globals.declare(s.Function.Name, in.makeFunction(s.Function, in.globals))
		case *ast.ClassDeclaration:
			if err := in.declareClass(s.Body, in.globals); err != nil {
				return err
			}
		case *ast.ExportStatement:
			if fd, ok := s.Decl.(*ast.FunctionDeclaration); ok {
				in.globals.declare(fd.Function.Name, in.makeFunction(fd.Function, in.globals))
			}
			if cd, ok := s.Decl.(*ast.ClassDeclaration); ok {
				if err := in.declareClass(cd.Body, in.globals); err != nil {
					return err
				}
			}
		}
	}
	for _, stmt := range prog.Statements {
		if err := in.execStatement(stmt, in.globals); err != nil {
			return err
		}
	}
	in.vm.RunUntilQuiescent()
	return nil
}

// environment is one lexical scope: named cells (pointers, so closures and
// their creating scope alias the same storage) plus the scope's `this`.
type environment struct {
	parent  *environment
	vars    map[string]*Value
	this    Value
	hasThis bool
	// gen is non-nil inside a generator body: the rendezvous context yield
	// expressions drive. Looked up through the scope chain so nested blocks
	// inside the body still find it, while nested functions (their own env
	// roots) do not.
	gen *genContext
	// genBoundary marks a function-invocation scope: the yield context does
	// not leak from an enclosing generator into nested non-generator
	// functions defined inside its body.
	genBoundary bool
}

func (e *environment) lookupGen() *genContext {
	for env := e; env != nil; env = env.parent {
		if env.gen != nil {
			return env.gen
		}
		if env.genBoundary {
			return nil
		}
	}
	return nil
}

func newEnvironment(parent *environment) *environment {
	return &environment{parent: parent, vars: map[string]*Value{}}
}

func (e *environment) declare(name string, v Value) {
	cell := v
	e.vars[name] = &cell
}

func (e *environment) cell(name string) (*Value, bool) {
	for env := e; env != nil; env = env.parent {
		if c, ok := env.vars[name]; ok {
			return c, true
		}
	}
	return nil, false
}

func (e *environment) lookup(name string) (Value, bool) {
	c, ok := e.cell(name)
	if !ok {
		return bytecode.Undefined(), false
	}
	return *c, true
}

func (e *environment) assign(name string, v Value) bool {
	c, ok := e.cell(name)
	if !ok {
		return false
	}
	*c = v
	return true
}

func (e *environment) lookupThis() Value {
	for env := e; env != nil; env = env.parent {
		if env.hasThis {
			return env.this
		}
	}
	return bytecode.Undefined()
}

// --- control-flow signals ----------------------------------------------------

type breakSignal struct{ label string }
type continueSignal struct{ label string }
type returnSignal struct{ value Value }

func (breakSignal) Error() string    { return "break" }
func (continueSignal) Error() string { return "continue" }
func (returnSignal) Error() string   { return "return" }
