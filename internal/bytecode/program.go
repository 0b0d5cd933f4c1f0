package bytecode

import "github.com/tscore-lang/tscore/internal/ast"

// Program is everything the VM needs to run a compiled module: the
// top-level chunk plus the class/function directory the compiler built up
// while emitting it. CompilationContext itself is discarded once emission
// finishes (its mutable resolution state has no further use), but the
// directories it collected must outlive compilation for OpNew/instanceof/
// super dispatch to find classes by name at run time.
type Program struct {
	Chunk      *Chunk
	Classes    map[string]*ClassRecord
	Functions  map[string]*FunctionObject
	Modules    map[string]*ModuleRecord
	GlobalSlots int
}

// CompileProgram compiles prog as a standalone script/module and returns
// the bundle the VM consumes. A file with import/export statements gets a
// ModuleRecord reserving one static slot per named export plus `$default`
// (§6 module loader surface); a plain script skips the record.
func CompileProgram(prog *ast.Program, opts ...CompilerOption) (*Program, error) {
	c := NewCompiler("<module>", opts...)
	if prog != nil && prog.IsModule {
		mod := &ModuleRecord{Path: "<module>", ExportSlots: map[string]uint16{}}
		c.ctx.curModule = mod
		c.ctx.Modules[mod.Path] = mod
	}
	chunk, err := c.Compile(prog)
	if err != nil {
		return nil, err
	}
	return &Program{
		Chunk:       chunk,
		Classes:     c.ctx.Classes,
		Functions:   c.ctx.Functions,
		Modules:     c.ctx.Modules,
		GlobalSlots: int(c.nextGlobal),
	}, nil
}

// Classes exposes the class directory accumulated during compilation.
func (c *Compiler) Classes() map[string]*ClassRecord { return c.ctx.Classes }

// ModuleRecords exposes the per-module export directory accumulated during
// compilation.
func (c *Compiler) ModuleRecords() map[string]*ModuleRecord { return c.ctx.Modules }

// GlobalSlotCount returns the number of module-level global slots declared.
func (c *Compiler) GlobalSlotCount() int { return int(c.nextGlobal) }
