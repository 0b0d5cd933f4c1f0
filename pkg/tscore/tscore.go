// Package tscore is the embeddable engine surface: parse TypeScript
// source, then execute it through either the tree-walking interpreter or
// the bytecode compiler + VM. Both modes share one parser, one TypeMap
// contract, and one dynamic value model, and produce identical stdout for
// identical programs.
package tscore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/builtinmods"
	"github.com/tscore-lang/tscore/internal/bytecode"
	"github.com/tscore-lang/tscore/internal/errorsx"
	"github.com/tscore-lang/tscore/internal/interp"
	"github.com/tscore-lang/tscore/internal/modcache"
	"github.com/tscore-lang/tscore/internal/modresolve"
	"github.com/tscore-lang/tscore/internal/parser"
	"github.com/tscore-lang/tscore/internal/types"
)

// Mode selects the execution engine.
type Mode int

const (
	// ModeVM compiles to bytecode and runs the stack VM (the default).
	ModeVM Mode = iota
	// ModeInterp walks the AST directly.
	ModeInterp
)

// Engine runs TypeScript programs.
type Engine struct {
	Mode     Mode
	Stdout   io.Writer
	Stderr   io.Writer
	Argv     []string
	Resolver modresolve.Resolver
	// Cache, when non-nil, persists compiled programs keyed by source hash
	// (ModeVM only).
	Cache *modcache.Cache

	// loading guards against import cycles during module loading.
	loading map[string]bool
	// loaded memoizes module namespace objects per canonical path.
	loaded map[string]bytecode.Value
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode selects the execution engine.
func WithMode(m Mode) Option { return func(e *Engine) { e.Mode = m } }

// WithStdout redirects console.log output.
func WithStdout(w io.Writer) Option { return func(e *Engine) { e.Stdout = w } }

// WithStderr redirects console.error/warn output.
func WithStderr(w io.Writer) Option { return func(e *Engine) { e.Stderr = w } }

// WithArgv sets process.argv for executed programs.
func WithArgv(argv []string) Option { return func(e *Engine) { e.Argv = argv } }

// WithCache installs a compiled-module cache.
func WithCache(c *modcache.Cache) Option { return func(e *Engine) { e.Cache = c } }

// New builds an engine with stdout/stderr defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Resolver: modresolve.NewFileResolver(),
		loading:  map[string]bool{},
		loaded:   map[string]bytecode.Value{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse turns source into an AST, reporting syntax errors as ParseError
// diagnostics.
func Parse(filename, source string) (*ast.Program, error) {
	p := parser.New(source)
	prog := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		first := errs[0]
		return nil, errorsx.New(errorsx.KindParse, "%s", strings.Join(msgs, "\n")).
			WithPos(filename, first.Pos.Line, first.Pos.Column)
	}
	return prog, nil
}

// Compile parses, infers, and emits source into a runnable program.
func Compile(filename, source string) (*bytecode.Program, error) {
	prog, err := Parse(filename, source)
	if err != nil {
		return nil, err
	}
	tm := types.Infer(prog)
	compiled, err := bytecode.CompileProgram(prog, bytecode.WithTypeMap(tm))
	if err != nil {
		return nil, errorsx.New(errorsx.KindCompile, "%s", err.Error())
	}
	return compiled, nil
}

// RunFile executes the program at path.
func (e *Engine) RunFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return errorsx.New(errorsx.KindHost, "%s", err.Error()).WithCode("ENOENT")
	}
	return e.RunSource(path, string(source))
}

// RunSource executes source under the engine's configured mode.
func (e *Engine) RunSource(filename, source string) error {
	switch e.Mode {
	case ModeInterp:
		return e.runInterp(filename, source)
	default:
		return e.runVM(filename, source)
	}
}

func (e *Engine) runInterp(filename, source string) error {
	prog, err := Parse(filename, source)
	if err != nil {
		return err
	}
	in := interp.New(
		interp.WithOutput(e.Stdout),
		interp.WithErrOutput(e.Stderr),
		interp.WithArgv(e.Argv),
		interp.WithModuleLoader(func(spec string) (bytecode.Value, error) {
			return e.loadModule(spec, filename)
		}),
	)
	if err := in.Run(prog); err != nil {
		return asDiagnostic(err)
	}
	return nil
}

func (e *Engine) runVM(filename, source string) error {
	compiled, err := e.compileCached(filename, source)
	if err != nil {
		return err
	}
	vm := bytecode.NewVM(compiled).WithOutput(e.Stdout).WithErrOutput(e.Stderr)
	vm.Argv = e.Argv
	vm.LoadModule = func(spec string) (bytecode.Value, error) {
		return e.loadModule(spec, filename)
	}
	if err := vm.Run(compiled); err != nil {
		return asDiagnostic(err)
	}
	return nil
}

// compileCached consults the module cache before re-emitting.
func (e *Engine) compileCached(filename, source string) (*bytecode.Program, error) {
	if e.Cache == nil {
		return Compile(filename, source)
	}
	key := modcache.Key([]byte(source))
	if prog, ok := e.Cache.Get(key); ok {
		return prog, nil
	}
	prog, err := Compile(filename, source)
	if err != nil {
		return nil, err
	}
	_ = e.Cache.Put(key, filename, prog) // cache write failure never fails the run
	return prog, nil
}

// loadModule serves import specifiers: built-in modules come from
// internal/builtinmods; relative specifiers load, execute (always through
// the interpreter, whose exports surface is direct), and expose a
// namespace object with one property per named export plus `$default`.
func (e *Engine) loadModule(specifier, fromFile string) (bytecode.Value, error) {
	canonical, isBuiltin, err := e.Resolver.Resolve(specifier, fromFile)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if isBuiltin || builtinmods.IsBuiltin(canonical) {
		hostVM := bytecode.NewHostVM()
		hostVM.WithOutput(e.Stdout).WithErrOutput(e.Stderr)
		if ns, ok := builtinmods.Lookup(hostVM, canonical); ok {
			return ns, nil
		}
		return bytecode.Undefined(), fmt.Errorf("unknown built-in module %q", canonical)
	}
	if ns, ok := e.loaded[canonical]; ok {
		return ns, nil
	}
	if e.loading[canonical] {
		return bytecode.Undefined(), fmt.Errorf("import cycle detected at %q", canonical)
	}
	e.loading[canonical] = true
	defer delete(e.loading, canonical)

	path := canonical
	if filepath.Ext(path) == "" {
		path += ".ts"
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return bytecode.Undefined(), errorsx.New(errorsx.KindHost, "cannot load module %q: %s", specifier, err.Error()).WithCode("ENOENT")
	}
	prog, err := Parse(path, string(source))
	if err != nil {
		return bytecode.Undefined(), err
	}
	in := interp.New(
		interp.WithOutput(e.Stdout),
		interp.WithErrOutput(e.Stderr),
		interp.WithModuleLoader(func(spec string) (bytecode.Value, error) {
			return e.loadModule(spec, path)
		}),
	)
	if err := in.Run(prog); err != nil {
		return bytecode.Undefined(), err
	}
	ns := bytecode.NewPlainObject()
	for _, name := range in.ExportsOrder() {
		ns.Set(name, in.Exports[name])
	}
	val := bytecode.ObjectValue(ns)
	e.loaded[canonical] = val
	return val, nil
}

// asDiagnostic maps engine-internal errors onto the user-facing taxonomy.
func asDiagnostic(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errorsx.Diagnostic); ok {
		return err
	}
	if re, ok := err.(*bytecode.RuntimeError); ok {
		return errorsx.New(errorsx.KindRuntime, "%s", re.Error())
	}
	return errorsx.New(errorsx.KindRuntime, "%s", err.Error())
}
