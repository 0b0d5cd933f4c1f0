package bytecode

import (
	"fmt"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/types"
)

// compileStatement lowers one statement, leaving the evaluation stack
// exactly as it found it (expression-statements discard their value).
func (c *Compiler) compileStatement(stmt ast.Statement) error {
	if stmt == nil {
		return nil
	}
	c.lastLine = lineOf(stmt)
	c.resetStackTag()

	switch s := stmt.(type) {
	case *ast.BlockStatement:
		return c.compileBlockStatement(s)
	case *ast.VarStatement:
		return c.compileVarStatement(s)
	case *ast.ExpressionStatement:
		if err := c.compileExpression(s.Expression); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpPop, lineOf(s))
		c.resetStackTag()
		return nil
	case *ast.IfStatement:
		return c.compileIfStatement(s)
	case *ast.WhileStatement:
		return c.compileWhileStatement(s)
	case *ast.DoWhileStatement:
		return c.compileDoWhileStatement(s)
	case *ast.ForStatement:
		return c.compileForStatement(s)
	case *ast.ForOfStatement:
		return c.compileForOfStatement(s)
	case *ast.ForInStatement:
		return c.compileForInStatement(s)
	case *ast.BreakStatement:
		return c.compileBreakStatement(s)
	case *ast.ContinueStatement:
		return c.compileContinueStatement(s)
	case *ast.ReturnStatement:
		return c.compileReturnStatement(s)
	case *ast.ThrowStatement:
		return c.compileThrowStatement(s)
	case *ast.TryStatement:
		return c.compileTryStatement(s)
	case *ast.SwitchStatement:
		return c.compileSwitchStatement(s)
	case *ast.LabeledStatement:
		return c.compileLabeledStatement(s)
	case *ast.FunctionDeclaration:
		return c.compileFunctionDeclaration(s)
	case *ast.ClassDeclaration:
		return c.compileClassDeclaration(s)
	case *ast.ImportStatement:
		return c.compileImportStatement(s)
	case *ast.ExportStatement:
		return c.compileExportStatement(s)
	default:
		return c.errorf(stmt, "unsupported statement node %T", stmt)
	}
}

func (c *Compiler) compileBlockStatement(b *ast.BlockStatement) error {
	c.beginScope()
	defer c.endScope()
	for _, stmt := range b.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileVarStatement(v *ast.VarStatement) error {
	for _, decl := range v.Declarations {
		if decl.Pattern != nil {
			if decl.Init == nil {
				return c.errorf(v, "destructuring declaration requires an initializer")
			}
			if err := c.compileExpression(decl.Init); err != nil {
				return err
			}
			if err := c.bindPattern(decl.Pattern); err != nil {
				return err
			}
			continue
		}
		if decl.Init != nil {
			if err := c.compileExpression(decl.Init); err != nil {
				return err
			}
		} else {
			c.chunk.WriteSimple(OpLoadUndefined, lineOf(v))
		}
		kind, _ := c.ctx.TypeOf(decl.Init)
		if err := c.declareBinding(decl.Name, kind.Kind, v.Kind); err != nil {
			return err
		}
	}
	return nil
}

// declareBinding allocates storage for name: a fresh local slot inside a
// function body, or a module-level global slot at top level (the top-level
// Compiler has no enclosing compiler and scopeDepth tracks block nesting
// only, so "top level" is enclosing == nil && scopeDepth == 0).
func (c *Compiler) declareBinding(name string, kind types.Kind, varKind ast.VarKind) error {
	if c.enclosing == nil && c.scopeDepth == 0 {
		slot := c.declareGlobal(name, kind)
		c.chunk.Write(OpStoreGlobal, 0, slot, c.lastLine)
		return nil
	}
	slot, err := c.declareLocal(name, kind)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, slot, c.lastLine)
	return nil
}

// bindPattern destructures the value on top of the stack into name
// bindings, per the array/object pattern shapes in internal/ast/patterns.go.
func (c *Compiler) bindPattern(p ast.Pattern) error {
	switch pat := p.(type) {
	case *ast.ArrayPattern:
		return c.bindArrayPattern(pat)
	case *ast.ObjectPattern:
		return c.bindObjectPattern(pat)
	default:
		return c.errorf(p, "unsupported destructuring pattern %T", p)
	}
}

func (c *Compiler) bindArrayPattern(pat *ast.ArrayPattern) error {
	line := lineOf(pat)
	srcTmp, err := c.declareLocal(fmt.Sprintf("$destr%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, srcTmp, line)

	for i, el := range pat.Elements {
		if el.Rest {
			c.chunk.Write(OpLoadLocal, 0, srcTmp, line)
			idx := c.chunk.AddConstant(NumberValue(float64(i)))
			c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
			helper := c.chunk.AddConstant(StringValue("__arraySliceFrom"))
			c.chunk.Write(OpCallBuiltin, 2, uint16(helper), line)
			if err := c.bindPatternElement(el, line); err != nil {
				return err
			}
			continue
		}
		c.chunk.Write(OpLoadLocal, 0, srcTmp, line)
		idxc := c.chunk.AddConstant(NumberValue(float64(i)))
		c.chunk.Write(OpLoadConst, 0, uint16(idxc), line)
		c.chunk.WriteSimple(OpGetIndex, line)
		if el.Default != nil {
			c.emitDefaultIfUndefined(el.Default, line)
		}
		if el.Target == nil && el.Name == "" {
			c.chunk.WriteSimple(OpPop, line) // elision `[ , b]`
			continue
		}
		if err := c.bindPatternElement(el, line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) bindPatternElement(el *ast.ArrayPatternElement, line int) error {
	if el.Target != nil {
		return c.bindPattern(el.Target)
	}
	return c.declareBinding(el.Name, types.Unknown, ast.VarLet)
}

func (c *Compiler) bindObjectPattern(pat *ast.ObjectPattern) error {
	line := lineOf(pat)
	srcTmp, err := c.declareLocal(fmt.Sprintf("$destr%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, srcTmp, line)

	taken := make([]string, 0, len(pat.Properties))
	for _, prop := range pat.Properties {
		if prop.Rest {
			c.chunk.Write(OpLoadLocal, 0, srcTmp, line)
			idx := c.chunk.AddConstant(ArrayValue(NewArrayInstance(stringsToValues(taken))))
			c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
			helper := c.chunk.AddConstant(StringValue("__objectRestExcluding"))
			c.chunk.Write(OpCallBuiltin, 2, uint16(helper), line)
			if err := c.declareBinding(prop.Name, types.Unknown, ast.VarLet); err != nil {
				return err
			}
			continue
		}
		key := prop.Key
		taken = append(taken, key)
		c.chunk.Write(OpLoadLocal, 0, srcTmp, line)
		keyIdx := c.chunk.AddConstant(StringValue(key))
		c.chunk.Write(OpGetProp, 0, uint16(keyIdx), line)
		if prop.Default != nil {
			c.emitDefaultIfUndefined(prop.Default, line)
		}
		if prop.Target != nil {
			if err := c.bindPattern(prop.Target); err != nil {
				return err
			}
			continue
		}
		name := prop.Name
		if name == "" {
			name = key
		}
		if err := c.declareBinding(name, types.Unknown, ast.VarLet); err != nil {
			return err
		}
	}
	return nil
}

func stringsToValues(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = StringValue(s)
	}
	return out
}

// emitDefaultIfUndefined replaces a just-pushed value with def's result when
// that value is undefined, via a short-circuit jump.
func (c *Compiler) emitDefaultIfUndefined(def ast.Expression, line int) {
	c.chunk.WriteSimple(OpDup, line)
	idx := c.chunk.AddConstant(StringValue("__isUndefined"))
	c.chunk.Write(OpCallBuiltin, 1, uint16(idx), line)
	jmp := c.chunk.EmitJump(OpJumpIfFalse, line)
	c.chunk.WriteSimple(OpPop, line)
	if err := c.compileExpression(def); err != nil {
		_ = err // default-value expressions are validated by the checker
	}
	_ = c.chunk.PatchJump(jmp)
}

// compileDestructuringAssign destructures valueExpr into an existing
// (already-declared) pattern of targets, used for `[a, b] = expr` rather
// than a `let`/`const` declaration.
func (c *Compiler) compileDestructuringAssign(pat ast.Pattern, valueExpr ast.Expression) error {
	if err := c.compileExpression(valueExpr); err != nil {
		return err
	}
	return c.assignPattern(pat)
}

func (c *Compiler) assignPattern(p ast.Pattern) error {
	line := lineOf(p)
	srcTmp, err := c.declareLocal(fmt.Sprintf("$destrA%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, srcTmp, line)
	switch pat := p.(type) {
	case *ast.ArrayPattern:
		for i, el := range pat.Elements {
			if el.Target == nil && el.Name == "" && !el.Rest {
				continue
			}
			c.chunk.Write(OpLoadLocal, 0, srcTmp, line)
			idxc := c.chunk.AddConstant(NumberValue(float64(i)))
			c.chunk.Write(OpLoadConst, 0, uint16(idxc), line)
			c.chunk.WriteSimple(OpGetIndex, line)
			if el.Target != nil {
				if err := c.assignPattern(el.Target); err != nil {
					return err
				}
				c.chunk.WriteSimple(OpPop, line)
				continue
			}
			if err := c.storeIdentifier(&ast.Identifier{Value: el.Name}); err != nil {
				return err
			}
		}
	case *ast.ObjectPattern:
		for _, prop := range pat.Properties {
			c.chunk.Write(OpLoadLocal, 0, srcTmp, line)
			keyIdx := c.chunk.AddConstant(StringValue(prop.Key))
			c.chunk.Write(OpGetProp, 0, uint16(keyIdx), line)
			if prop.Target != nil {
				if err := c.assignPattern(prop.Target); err != nil {
					return err
				}
				c.chunk.WriteSimple(OpPop, line)
				continue
			}
			name := prop.Name
			if name == "" {
				name = prop.Key
			}
			if err := c.storeIdentifier(&ast.Identifier{Value: name}); err != nil {
				return err
			}
		}
	default:
		return c.errorf(p, "unsupported destructuring assignment pattern %T", p)
	}
	c.chunk.Write(OpLoadLocal, 0, srcTmp, line)
	return nil
}

func (c *Compiler) compileIfStatement(s *ast.IfStatement) error {
	if err := c.compileExpression(s.Test); err != nil {
		return err
	}
	c.resetStackTag()
	elseJump := c.chunk.EmitJump(OpJumpIfFalse, lineOf(s))
	if err := c.compileStatement(s.Consequent); err != nil {
		return err
	}
	if s.Alternate == nil {
		return c.chunk.PatchJump(elseJump)
	}
	endJump := c.chunk.EmitJump(OpJump, lineOf(s))
	if err := c.chunk.PatchJump(elseJump); err != nil {
		return err
	}
	if err := c.compileStatement(s.Alternate); err != nil {
		return err
	}
	return c.chunk.PatchJump(endJump)
}

func (c *Compiler) pushLoop(label string) *loopContext {
	if label == "" && c.pendingLoopLabel != "" {
		label = c.pendingLoopLabel
	}
	c.pendingLoopLabel = ""
	lc := &loopContext{isLoopLabel: label, loopStart: c.chunk.InstructionCount()}
	c.loopStack = append(c.loopStack, lc)
	return lc
}

func (c *Compiler) popLoop() (*loopContext, error) {
	lc := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	for _, j := range lc.breakJumps {
		if err := c.chunk.PatchJump(j); err != nil {
			return nil, err
		}
	}
	return lc, nil
}

func (c *Compiler) compileWhileStatement(s *ast.WhileStatement) error {
	lc := c.pushLoop("")
	lc.loopStart = c.chunk.InstructionCount()
	if err := c.compileExpression(s.Test); err != nil {
		return err
	}
	c.resetStackTag()
	exitJump := c.chunk.EmitJump(OpJumpIfFalse, lineOf(s))
	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	for _, j := range lc.continueJumps {
		if err := c.chunk.PatchJump(j); err != nil {
			return err
		}
	}
	if err := c.chunk.EmitLoop(lc.loopStart, lineOf(s)); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(exitJump); err != nil {
		return err
	}
	_, err := c.popLoop()
	return err
}

func (c *Compiler) compileDoWhileStatement(s *ast.DoWhileStatement) error {
	lc := c.pushLoop("")
	lc.loopStart = c.chunk.InstructionCount()
	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	for _, j := range lc.continueJumps {
		if err := c.chunk.PatchJump(j); err != nil {
			return err
		}
	}
	if err := c.compileExpression(s.Test); err != nil {
		return err
	}
	c.resetStackTag()
	c.chunk.WriteSimple(OpNot, lineOf(s))
	exitJump := c.chunk.EmitJump(OpJumpIfTrue, lineOf(s))
	if err := c.chunk.EmitLoop(lc.loopStart, lineOf(s)); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(exitJump); err != nil {
		return err
	}
	_, err := c.popLoop()
	return err
}

func (c *Compiler) compileForStatement(s *ast.ForStatement) error {
	c.beginScope()
	defer c.endScope()
	switch init := s.Init.(type) {
	case *ast.VarStatement:
		if err := c.compileVarStatement(init); err != nil {
			return err
		}
	case ast.Expression:
		if init != nil {
			if err := c.compileExpression(init); err != nil {
				return err
			}
			c.chunk.WriteSimple(OpPop, lineOf(s))
		}
	}

	lc := c.pushLoop("")
	lc.loopStart = c.chunk.InstructionCount()
	var exitJump int
	hasTest := s.Test != nil
	if hasTest {
		if err := c.compileExpression(s.Test); err != nil {
			return err
		}
		c.resetStackTag()
		exitJump = c.chunk.EmitJump(OpJumpIfFalse, lineOf(s))
	}
	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	for _, j := range lc.continueJumps {
		if err := c.chunk.PatchJump(j); err != nil {
			return err
		}
	}
	if s.Update != nil {
		if err := c.compileExpression(s.Update); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpPop, lineOf(s))
	}
	if err := c.chunk.EmitLoop(lc.loopStart, lineOf(s)); err != nil {
		return err
	}
	if hasTest {
		if err := c.chunk.PatchJump(exitJump); err != nil {
			return err
		}
	}
	_, err := c.popLoop()
	return err
}

// compileForOfStatement lowers `for (const x of iterable)` via the C1
// iterator-protocol helper trampoline: __iterNew/__iterNext, matching the
// `for await` form (IsAwait) by wrapping each pulled value in OpAwait.
func (c *Compiler) compileForOfStatement(s *ast.ForOfStatement) error {
	c.beginScope()
	defer c.endScope()
	line := lineOf(s)
	if err := c.compileExpression(s.Iterable); err != nil {
		return err
	}
	helper := "__iterNew"
	if s.IsAwait {
		helper = "__asyncIterNew"
	}
	idx := c.chunk.AddConstant(StringValue(helper))
	c.chunk.Write(OpCallBuiltin, 1, uint16(idx), line)
	iterTmp, err := c.declareLocal(fmt.Sprintf("$iter%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, iterTmp, line)

	lc := c.pushLoop("")
	lc.loopStart = c.chunk.InstructionCount()
	c.chunk.Write(OpLoadLocal, 0, iterTmp, line)
	nextIdx := c.chunk.AddConstant(StringValue("__iterNext"))
	c.chunk.Write(OpCallBuiltin, 1, uint16(nextIdx), line)
	if s.IsAwait {
		c.chunk.WriteSimple(OpAwait, line)
	}
	// __iterNext returns a 2-element array [done, value].
	doneTmp, err := c.declareLocal(fmt.Sprintf("$done%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.WriteSimple(OpDup, line)
	zeroIdx := c.chunk.AddConstant(NumberValue(0))
	c.chunk.Write(OpLoadConst, 0, uint16(zeroIdx), line)
	c.chunk.WriteSimple(OpGetIndex, line)
	c.chunk.Write(OpStoreLocal, 0, doneTmp, line)
	c.chunk.Write(OpLoadLocal, 0, doneTmp, line)
	exitJump := c.chunk.EmitJump(OpJumpIfTrue, line)

	oneIdx := c.chunk.AddConstant(NumberValue(1))
	c.chunk.Write(OpLoadConst, 0, uint16(oneIdx), line)
	c.chunk.WriteSimple(OpGetIndex, line)
	if err := c.bindForTarget(s); err != nil {
		return err
	}
	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	for _, j := range lc.continueJumps {
		if err := c.chunk.PatchJump(j); err != nil {
			return err
		}
	}
	if err := c.chunk.EmitLoop(lc.loopStart, line); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(exitJump); err != nil {
		return err
	}
	c.chunk.WriteSimple(OpPop, line) // discard the [done,value] pair once done
	_, err = c.popLoop()
	return err
}

func (c *Compiler) bindForTarget(s *ast.ForOfStatement) error {
	if s.Pattern != nil {
		return c.bindPattern(s.Pattern)
	}
	if s.Kind == "" {
		return c.storeIdentifier(&ast.Identifier{Value: s.Name})
	}
	return c.declareBinding(s.Name, types.Unknown, s.Kind)
}

// compileForInStatement lowers `for (const k in obj)` over the object's own
// enumerable string keys (Object.keys order, §3).
func (c *Compiler) compileForInStatement(s *ast.ForInStatement) error {
	c.beginScope()
	defer c.endScope()
	line := lineOf(s)
	if err := c.compileExpression(s.Object); err != nil {
		return err
	}
	idx := c.chunk.AddConstant(StringValue("__ownKeys"))
	c.chunk.Write(OpCallBuiltin, 1, uint16(idx), line)
	keysTmp, err := c.declareLocal(fmt.Sprintf("$keys%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, keysTmp, line)
	i, err := c.declareLocal(fmt.Sprintf("$i%d", c.nextSlot), types.Number)
	if err != nil {
		return err
	}
	zeroIdx := c.chunk.AddConstant(NumberValue(0))
	c.chunk.Write(OpLoadConst, 0, uint16(zeroIdx), line)
	c.chunk.Write(OpStoreLocal, 0, i, line)

	lc := c.pushLoop("")
	lc.loopStart = c.chunk.InstructionCount()
	c.chunk.Write(OpLoadLocal, 0, i, line)
	c.chunk.Write(OpLoadLocal, 0, keysTmp, line)
	lenIdx := c.chunk.AddConstant(StringValue("__arrayLength"))
	c.chunk.Write(OpCallBuiltin, 1, uint16(lenIdx), line)
	c.chunk.WriteSimple(OpLess, line)
	exitJump := c.chunk.EmitJump(OpJumpIfFalse, line)

	c.chunk.Write(OpLoadLocal, 0, keysTmp, line)
	c.chunk.Write(OpLoadLocal, 0, i, line)
	c.chunk.WriteSimple(OpGetIndex, line)
	if s.Kind == "" {
		if err := c.storeIdentifier(&ast.Identifier{Value: s.Name}); err != nil {
			return err
		}
	} else if err := c.declareBinding(s.Name, types.StringKind, s.Kind); err != nil {
		return err
	}
	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	for _, j := range lc.continueJumps {
		if err := c.chunk.PatchJump(j); err != nil {
			return err
		}
	}
	c.chunk.Write(OpLoadLocal, 0, i, line)
	oneIdx := c.chunk.AddConstant(NumberValue(1))
	c.chunk.Write(OpLoadConst, 0, uint16(oneIdx), line)
	c.chunk.WriteSimple(OpAdd, line)
	c.chunk.Write(OpStoreLocal, 0, i, line)
	if err := c.chunk.EmitLoop(lc.loopStart, line); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(exitJump); err != nil {
		return err
	}
	_, err = c.popLoop()
	return err
}

func (c *Compiler) compileBreakStatement(s *ast.BreakStatement) error {
	if len(c.loopStack) == 0 {
		return c.errorf(s, "'break' outside a loop or switch")
	}
	lc := c.findBreakTarget(s.Label)
	if lc == nil {
		return c.errorf(s, "no enclosing loop or switch labeled %q", s.Label)
	}
	j := c.chunk.EmitJump(OpJump, lineOf(s))
	lc.breakJumps = append(lc.breakJumps, j)
	return nil
}

func (c *Compiler) compileContinueStatement(s *ast.ContinueStatement) error {
	lc := c.findContinueTarget(s.Label)
	if lc == nil {
		return c.errorf(s, "'continue' outside a loop")
	}
	j := c.chunk.EmitJump(OpJump, lineOf(s))
	lc.continueJumps = append(lc.continueJumps, j)
	return nil
}

// findBreakTarget answers an unlabeled break from the innermost frame
// (loop or switch); a labeled break may target either kind.
func (c *Compiler) findBreakTarget(label string) *loopContext {
	if label == "" {
		if len(c.loopStack) == 0 {
			return nil
		}
		return c.loopStack[len(c.loopStack)-1]
	}
	for i := len(c.loopStack) - 1; i >= 0; i-- {
		if c.loopStack[i].isLoopLabel == label {
			return c.loopStack[i]
		}
	}
	return nil
}

// findContinueTarget skips switch frames even when unlabeled or labeled,
// since a switch is never a valid continue target in JS.
func (c *Compiler) findContinueTarget(label string) *loopContext {
	for i := len(c.loopStack) - 1; i >= 0; i-- {
		if c.loopStack[i].isSwitch {
			continue
		}
		if label == "" || c.loopStack[i].isLoopLabel == label {
			return c.loopStack[i]
		}
	}
	return nil
}

func (c *Compiler) compileReturnStatement(s *ast.ReturnStatement) error {
	if s.Argument != nil {
		if err := c.compileExpression(s.Argument); err != nil {
			return err
		}
		c.chunk.Write(OpReturn, 1, 0, lineOf(s))
	} else {
		c.chunk.Write(OpReturn, 0, 0, lineOf(s))
	}
	return nil
}

func (c *Compiler) compileThrowStatement(s *ast.ThrowStatement) error {
	if err := c.compileExpression(s.Argument); err != nil {
		return err
	}
	c.chunk.WriteSimple(OpThrow, lineOf(s))
	return nil
}

// compileTryStatement emits a try region whose catch/finally targets are
// recorded as chunk-level metadata (Chunk.SetTryInfo) rather than instruction
// operands, mirroring the teacher's region-table approach to exception
// dispatch.
func (c *Compiler) compileTryStatement(s *ast.TryStatement) error {
	line := lineOf(s)
	tryIdx := c.chunk.WriteSimple(OpTry, line)

	if err := c.compileBlockStatement(s.Block); err != nil {
		return err
	}
	c.chunk.WriteSimple(OpPopTry, line)
	afterTry := c.chunk.EmitJump(OpJump, line)

	info := TryInfo{}
	catchTarget := c.chunk.InstructionCount()
	if s.Catch != nil {
		info.HasCatch = true
		info.CatchTarget = catchTarget
		c.beginScope()
		if s.Catch.Param != "" {
			if _, err := c.declareLocal(s.Catch.Param, types.Unknown); err != nil {
				return err
			}
			slot, _ := c.resolveLocal(s.Catch.Param)
			c.chunk.Write(OpStoreLocal, 0, slot.slot, line)
		} else {
			c.chunk.WriteSimple(OpPop, line)
		}
		for _, stmt := range s.Catch.Body.Statements {
			if err := c.compileStatement(stmt); err != nil {
				return err
			}
		}
		c.endScope()
	}
	afterCatch := c.chunk.EmitJump(OpJump, line)

	finallyTarget := c.chunk.InstructionCount()
	if s.Finally != nil {
		info.HasFinally = true
		info.FinallyTarget = finallyTarget
		if err := c.compileBlockStatement(s.Finally); err != nil {
			return err
		}
	}
	info.FinallyEnd = c.chunk.InstructionCount()

	c.chunk.SetTryInfo(tryIdx, info)
	// Normal completion of the try body, and normal completion of the catch
	// body, must both run the finally block before falling past the whole
	// statement — route both exits through FinallyTarget when one exists
	// instead of straight to the end, so finally is never skipped on the
	// non-exceptional path.
	if info.HasFinally {
		if err := c.patchJumpTo(afterTry, finallyTarget); err != nil {
			return err
		}
		if err := c.patchJumpTo(afterCatch, finallyTarget); err != nil {
			return err
		}
		return nil
	}
	if err := c.chunk.PatchJump(afterTry); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(afterCatch); err != nil {
		return err
	}
	return nil
}

func (c *Compiler) compileSwitchStatement(s *ast.SwitchStatement) error {
	line := lineOf(s)
	if err := c.compileExpression(s.Discriminant); err != nil {
		return err
	}
	discTmp, err := c.declareLocal(fmt.Sprintf("$switch%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, discTmp, line)

	lc := &loopContext{isSwitch: true}
	c.loopStack = append(c.loopStack, lc) // switch participates in break, not continue

	caseJumps := make([]int, len(s.Cases))
	defaultIndex := -1
	for i, cs := range s.Cases {
		if cs.Test == nil {
			defaultIndex = i
			continue
		}
		c.chunk.Write(OpLoadLocal, 0, discTmp, line)
		if err := c.compileExpression(cs.Test); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpStrictEqual, line)
		caseJumps[i] = c.chunk.EmitJump(OpJumpIfTrue, line)
	}
	var toDefault int
	if defaultIndex >= 0 {
		toDefault = c.chunk.EmitJump(OpJump, line)
	} else {
		toDefault = c.chunk.EmitJump(OpJump, line)
	}

	bodyStarts := make([]int, len(s.Cases))
	for i, cs := range s.Cases {
		bodyStarts[i] = c.chunk.InstructionCount()
		for _, stmt := range cs.Statements {
			if err := c.compileStatement(stmt); err != nil {
				return err
			}
		}
	}
	endSwitch := c.chunk.InstructionCount()

	for i, cs := range s.Cases {
		if cs.Test == nil {
			continue
		}
		if err := c.patchJumpTo(caseJumps[i], bodyStarts[i]); err != nil {
			return err
		}
	}
	if defaultIndex >= 0 {
		if err := c.patchJumpTo(toDefault, bodyStarts[defaultIndex]); err != nil {
			return err
		}
	} else {
		if err := c.patchJumpTo(toDefault, endSwitch); err != nil {
			return err
		}
	}

	lc = c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	for _, j := range lc.breakJumps {
		if err := c.chunk.PatchJump(j); err != nil {
			return err
		}
	}
	return nil
}

// patchJumpTo patches a forward jump emitted at jumpIdx to land at an
// already-known absolute instruction index, used by switch dispatch where
// case bodies are laid out after every test has been compiled.
func (c *Compiler) patchJumpTo(jumpIdx, target int) error {
	offset := target - jumpIdx - 1
	if offset > 32767 || offset < -32768 {
		return fmt.Errorf("jump offset too large: %d", offset)
	}
	inst := c.chunk.Code[jumpIdx]
	c.chunk.PatchInstruction(jumpIdx, MakeInstruction(inst.OpCode(), inst.A(), uint16(offset)))
	return nil
}

func (c *Compiler) compileLabeledStatement(s *ast.LabeledStatement) error {
	switch body := s.Body.(type) {
	case *ast.WhileStatement, *ast.DoWhileStatement, *ast.ForStatement, *ast.ForOfStatement, *ast.ForInStatement:
		return c.compileLabeledLoop(s.Label, body)
	default:
		return c.compileStatement(s.Body)
	}
}

func (c *Compiler) compileLabeledLoop(label string, body ast.Statement) error {
	// Stash the label for the loop's own pushLoop call to pick up, since the
	// loop-compiling functions call pushLoop("") directly and don't know the
	// enclosing LabeledStatement's name.
	c.pendingLoopLabel = label
	return c.compileStatement(body)
}

func (c *Compiler) compileFunctionDeclaration(s *ast.FunctionDeclaration) error {
	fn, err := c.compileFunctionBody(s.Function)
	if err != nil {
		return err
	}
	c.ctx.Functions[s.Function.Name] = fn
	return nil
}

func (c *Compiler) compileImportStatement(s *ast.ImportStatement) error {
	line := lineOf(s)
	pathIdx := c.chunk.AddConstant(StringValue(s.Source))
	c.chunk.Write(OpLoadConst, 0, uint16(pathIdx), line)
	helper := c.chunk.AddConstant(StringValue("__loadModule"))
	c.chunk.Write(OpCallBuiltin, 1, uint16(helper), line)
	modTmp, err := c.declareLocal(fmt.Sprintf("$mod%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, modTmp, line)

	if s.NamespaceAs != "" {
		c.chunk.Write(OpLoadLocal, 0, modTmp, line)
		if err := c.declareBinding(s.NamespaceAs, types.Unknown, ast.VarConst); err != nil {
			return err
		}
	}
	for _, spec := range s.Specifiers {
		c.chunk.Write(OpLoadLocal, 0, modTmp, line)
		key := spec.Imported
		if key == "default" {
			key = "$default"
		}
		idx := c.chunk.AddConstant(StringValue(key))
		c.chunk.Write(OpGetProp, 0, uint16(idx), line)
		if err := c.declareBinding(spec.Local, types.Unknown, ast.VarConst); err != nil {
			return err
		}
	}
	return nil
}

// compileExportStatement registers the exported binding(s) in the current
// ModuleRecord's export slot table (§6). A module being compiled without a
// ModuleRecord (a plain script) treats export as a no-op declaration.
func (c *Compiler) compileExportStatement(s *ast.ExportStatement) error {
	if s.Decl != nil {
		if err := c.compileStatement(s.Decl); err != nil {
			return err
		}
		switch d := s.Decl.(type) {
		case *ast.VarStatement:
			for _, decl := range d.Declarations {
				c.recordExportSlot(decl.Name, decl.Name)
			}
		case *ast.FunctionDeclaration:
			c.recordExportSlot(d.Function.Name, d.Function.Name)
		case *ast.ClassDeclaration:
			c.recordExportSlot(d.Body.Name, d.Body.Name)
		}
		return nil
	}
	if s.IsDefault {
		if err := c.compileExpression(s.DefaultExpr); err != nil {
			return err
		}
		slot := c.declareGlobal("$default", types.Unknown)
		c.chunk.Write(OpStoreGlobal, 0, slot, lineOf(s))
		c.recordExportSlot("$default", "$default")
		return nil
	}
	for _, spec := range s.Specifiers {
		c.recordExportSlot(spec.Local, spec.Exported)
	}
	return nil
}

func (c *Compiler) recordExportSlot(localName, exportedName string) {
	if c.ctx.curModule == nil {
		return
	}
	g, ok := c.resolveGlobal(localName)
	if !ok {
		g = globalVar{name: localName, index: c.declareGlobal(localName, types.Unknown)}
	}
	if c.ctx.curModule.ExportSlots == nil {
		c.ctx.curModule.ExportSlots = make(map[string]uint16)
	}
	c.ctx.curModule.ExportSlots[exportedName] = g.index
	c.ctx.curModule.ExportsOrder = append(c.ctx.curModule.ExportsOrder, exportedName)
}
