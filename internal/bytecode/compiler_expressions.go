package bytecode

import (
	"fmt"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/types"
)

// stackTypeTag is the compiler's abstract model of what kind of value sits
// on top of the evaluation stack after the instruction just emitted. It
// exists purely to let the emitter elide redundant coercions (OpConcat
// instead of OpAdd when both operands are already proven strings); it has
// no runtime representation and must be reset to stackTagUnknown at every
// statement boundary and control-flow join, since the compiler does not
// track it across branches.
type stackTypeTag byte

const (
	stackTagUnknown stackTypeTag = iota
	stackTagNumber
	stackTagBoolean
	stackTagString
	stackTagNull
)

func (c *Compiler) resetStackTag() { c.stackTag = stackTagUnknown }

func (c *Compiler) setStackTagForKind(k types.Kind) {
	switch k {
	case types.Number:
		c.stackTag = stackTagNumber
	case types.Boolean:
		c.stackTag = stackTagBoolean
	case types.StringKind:
		c.stackTag = stackTagString
	case types.Null:
		c.stackTag = stackTagNull
	default:
		c.stackTag = stackTagUnknown
	}
}

// compileExpression lowers expr, leaving exactly one value on the stack.
func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		idx := c.chunk.AddConstant(NumberValue(e.Value))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
		c.stackTag = stackTagNumber
		return nil
	case *ast.BigIntLiteral:
		bi, ok := parseBigIntLiteral(e.Value)
		if !ok {
			return c.errorf(e, "invalid bigint literal %q", e.Value)
		}
		idx := c.chunk.AddConstant(BigIntValue(bi))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
		c.stackTag = stackTagUnknown
		return nil
	case *ast.StringLiteral:
		idx := c.chunk.AddConstant(StringValue(e.Value))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
		c.stackTag = stackTagString
		return nil
	case *ast.BooleanLiteral:
		if e.Value {
			c.chunk.WriteSimple(OpLoadTrue, lineOf(e))
		} else {
			c.chunk.WriteSimple(OpLoadFalse, lineOf(e))
		}
		c.stackTag = stackTagBoolean
		return nil
	case *ast.NullLiteral:
		c.chunk.WriteSimple(OpLoadNull, lineOf(e))
		c.stackTag = stackTagNull
		return nil
	case *ast.UndefinedLiteral:
		c.chunk.WriteSimple(OpLoadUndefined, lineOf(e))
		c.stackTag = stackTagUnknown
		return nil
	case *ast.RegexLiteral:
		idx := c.chunk.AddConstant(RegExpValue(&RegExpInstance{Source: e.Pattern, Flags: e.Flags, Global: containsRune(e.Flags, 'g')}))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
		c.stackTag = stackTagUnknown
		return nil
	case *ast.Identifier:
		return c.compileIdentifier(e)
	case *ast.ThisExpression:
		c.chunk.WriteSimple(OpGetSelf, lineOf(e))
		c.stackTag = stackTagUnknown
		return nil
	case *ast.SuperExpression:
		return c.errorf(e, "'super' keyword is only valid inside a class method")
	case *ast.TemplateLiteral:
		return c.compileTemplateLiteral(e)
	case *ast.ArrayLiteral:
		return c.compileArrayLiteral(e)
	case *ast.ObjectLiteral:
		return c.compileObjectLiteral(e)
	case *ast.BinaryExpression:
		return c.compileBinaryExpression(e)
	case *ast.UnaryExpression:
		return c.compileUnaryExpression(e)
	case *ast.UpdateExpression:
		return c.compileUpdateExpression(e)
	case *ast.AssignmentExpression:
		return c.compileAssignmentExpression(e)
	case *ast.ConditionalExpression:
		return c.compileConditionalExpression(e)
	case *ast.SequenceExpression:
		for i, sub := range e.Expressions {
			if err := c.compileExpression(sub); err != nil {
				return err
			}
			if i < len(e.Expressions)-1 {
				c.chunk.WriteSimple(OpPop, lineOf(sub))
			}
		}
		return nil
	case *ast.MemberExpression:
		return c.compileMemberExpression(e)
	case *ast.PrivateMemberExpression:
		return c.compilePrivateMemberRead(e)
	case *ast.CallExpression:
		return c.compileCallExpression(e)
	case *ast.NewExpression:
		return c.compileNewExpression(e)
	case *ast.FunctionExpression:
		return c.compileFunctionExpression(e)
	case *ast.ClassExpression:
		return c.compileClassExpression(e)
	case *ast.YieldExpression:
		return c.compileYieldExpression(e)
	case *ast.SpreadExpression:
		return c.errorf(e, "unexpected spread outside array/object/argument position")
	case *ast.AwaitExpression:
		return c.compileAwaitExpression(e)
	case *ast.DynamicImportExpression:
		return c.compileDynamicImport(e)
	default:
		return c.errorf(expr, "unsupported expression node %T", expr)
	}
}

func containsRune(s string, r rune) bool {
	for _, ch := range s {
		if ch == r {
			return true
		}
	}
	return false
}

// compileIdentifier implements the variable-access resolution order of
// §4.3: captured closure field, then local slot, then module-level global,
// then a declared top-level function reference, then a dynamic global
// binding lookup (console/Math/JSON/globalThis members and the like) as the
// final fallback. There is no separate "hoisted state-machine field" tier:
// this core lowers async/generator suspension onto a goroutine (see
// vm_async.go), so ordinary locals already survive suspension on that
// goroutine's own stack exactly like any other function's locals.
func (c *Compiler) compileIdentifier(id *ast.Identifier) error {
	name := id.Value
	line := lineOf(id)

	if lc, ok := c.resolveLocal(name); ok {
		c.chunk.Write(OpLoadLocal, 0, lc.slot, line)
		c.setStackTagForKind(lc.typ)
		return nil
	}
	if idx, ok, err := c.resolveUpvalue(name); err != nil {
		return err
	} else if ok {
		c.chunk.Write(OpLoadUpvalue, 0, uint16(idx), line)
		c.stackTag = stackTagUnknown
		return nil
	}
	if g, ok := c.resolveGlobal(name); ok {
		c.chunk.Write(OpLoadGlobal, 0, g.index, line)
		c.setStackTagForKind(g.typ)
		return nil
	}
	if fn := c.ctx.ResolveFunctionName(name); fn != nil {
		idx := c.chunk.AddConstant(FunctionValue(&Callable{Name: name, Method: fn}))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
		c.stackTag = stackTagUnknown
		return nil
	}
	if cls := c.ctx.ResolveClassName(name); cls != nil {
		idx := c.chunk.AddConstant(StringValue(cls.Name))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
		c.stackTag = stackTagString
		return nil
	}
	nameIdx := c.chunk.AddConstant(StringValue(name))
	c.chunk.Write(OpLoadConst, 0, uint16(nameIdx), line)
	helper := c.chunk.AddConstant(StringValue("__globalGet"))
	c.chunk.Write(OpCallBuiltin, 1, uint16(helper), line)
	c.stackTag = stackTagUnknown
	return nil
}

func (c *Compiler) compileTemplateLiteral(e *ast.TemplateLiteral) error {
	first := true
	emitConst := func(v Value) {
		idx := c.chunk.AddConstant(v)
		c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
		if first {
			c.stackTag = stackTagString
			first = false
		} else {
			c.chunk.WriteSimple(OpConcat, lineOf(e))
		}
	}
	for i, q := range e.Quasis {
		if q != "" || i == 0 {
			emitConst(StringValue(q))
		}
		if i < len(e.Expressions) {
			if err := c.compileExpression(e.Expressions[i]); err != nil {
				return err
			}
			if c.stackTag != stackTagString {
				idx := c.chunk.AddConstant(StringValue("String"))
				c.chunk.Write(OpCallBuiltin, 1, uint16(idx), lineOf(e))
			}
			if first {
				c.stackTag = stackTagString
				first = false
			} else {
				c.chunk.WriteSimple(OpConcat, lineOf(e))
			}
		}
	}
	if first {
		emitConst(StringValue(""))
	}
	if e.Tag != nil {
		return c.errorf(e, "tagged templates are not supported by this core")
	}
	return nil
}

func (c *Compiler) compileArrayLiteral(e *ast.ArrayLiteral) error {
	spreadMask := uint16(0)
	for i, el := range e.Elements {
		if err := c.compileExpression(el); err != nil {
			return err
		}
		if i < len(e.Spreads) && e.Spreads[i] {
			spreadMask |= 1 << uint(i)
		}
	}
	if spreadMask != 0 {
		c.chunk.Write(OpSpreadArgs, byte(len(e.Elements)), spreadMask, lineOf(e))
	}
	c.chunk.Write(OpNewArray, 0, uint16(len(e.Elements)), lineOf(e))
	c.stackTag = stackTagUnknown
	return nil
}

func (c *Compiler) compileObjectLiteral(e *ast.ObjectLiteral) error {
	count := 0
	for _, prop := range e.Properties {
		if prop.IsSpread {
			// OpNewObject consumes `count` alternating [key, value] pairs, so
			// a spread contributes its own synthetic pair: the spread
			// sentinel key paired with the source object, which the VM
			// expands into the source's own enumerable properties instead of
			// setting a literal property named objectSpreadSentinelKey.
			sentinelIdx := c.chunk.AddConstant(StringValue(objectSpreadSentinelKey))
			c.chunk.Write(OpLoadConst, 0, uint16(sentinelIdx), lineOf(e))
			if err := c.compileExpression(prop.Value); err != nil {
				return err
			}
			idx := c.chunk.AddConstant(StringValue("__objectSpread"))
			c.chunk.Write(OpCallBuiltin, 1, uint16(idx), lineOf(e))
			count++
			continue
		}
		if prop.Computed {
			if err := c.compileExpression(prop.Key); err != nil {
				return err
			}
		} else {
			idx := c.chunk.AddConstant(StringValue(identKeyName(prop.Key)))
			c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
		}
		switch {
		case prop.IsMethod || prop.IsGetter || prop.IsSetter:
			fnExpr, _ := prop.Value.(*ast.FunctionExpression)
			if err := c.compileFunctionExpression(fnExpr); err != nil {
				return err
			}
		case prop.Shorthand:
			ident, _ := prop.Key.(*ast.Identifier)
			if err := c.compileIdentifier(ident); err != nil {
				return err
			}
		default:
			if err := c.compileExpression(prop.Value); err != nil {
				return err
			}
		}
		count++
	}
	c.chunk.Write(OpNewObject, 0, uint16(count), lineOf(e))
	c.stackTag = stackTagUnknown
	return nil
}

func identKeyName(key ast.Expression) string {
	switch k := key.(type) {
	case *ast.Identifier:
		return k.Value
	case *ast.StringLiteral:
		return k.Value
	case *ast.NumberLiteral:
		return fmt.Sprintf("%v", k.Value)
	default:
		return ""
	}
}

var binaryOpcodes = map[ast.BinaryOp]OpCode{
	ast.OpAdd:    OpAdd,
	ast.OpSub:    OpSub,
	ast.OpMul:    OpMul,
	ast.OpDiv:    OpDiv,
	ast.OpMod:    OpMod,
	ast.OpPow:    OpPow,
	ast.OpEqS:    OpStrictEqual,
	ast.OpNeqS:   OpStrictNotEqual,
	ast.OpLt:     OpLess,
	ast.OpLe:     OpLessEqual,
	ast.OpGt:     OpGreater,
	ast.OpGe:     OpGreaterEqual,
	ast.OpBitAnd: OpBitAnd,
	ast.OpBitOr:  OpBitOr,
	ast.OpBitXor: OpBitXor,
	ast.OpShl:    OpShl,
	ast.OpShr:    OpShr,
}

func (c *Compiler) compileBinaryExpression(e *ast.BinaryExpression) error {
	switch e.Operator {
	case ast.OpAnd:
		return c.compileLogicalAnd(e)
	case ast.OpOr:
		return c.compileLogicalOr(e)
	case ast.OpCoalesce:
		return c.compileCoalesce(e)
	case ast.OpEq, ast.OpNeq:
		// Loose equality is a non-goal (§1); lower defensively to the strict
		// form rather than drop the operator if the checker lets one slip
		// through.
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		if e.Operator == ast.OpEq {
			c.chunk.WriteSimple(OpStrictEqual, lineOf(e))
		} else {
			c.chunk.WriteSimple(OpStrictNotEqual, lineOf(e))
		}
		c.stackTag = stackTagBoolean
		return nil
	case ast.OpInstOf:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpInstanceOf, lineOf(e))
		c.stackTag = stackTagBoolean
		return nil
	case ast.OpIn:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpHasProp, lineOf(e))
		c.stackTag = stackTagBoolean
		return nil
	case ast.OpUShr:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpSar, lineOf(e))
		c.stackTag = stackTagNumber
		return nil
	}
	op, ok := binaryOpcodes[e.Operator]
	if !ok {
		return c.errorf(e, "unsupported binary operator %q", e.Operator)
	}
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	leftIsString := c.stackTag == stackTagString
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	if op == OpAdd && leftIsString && c.stackTag == stackTagString {
		c.chunk.WriteSimple(OpConcat, lineOf(e))
		c.stackTag = stackTagString
		return nil
	}
	c.chunk.WriteSimple(op, lineOf(e))
	switch e.Operator {
	case ast.OpAdd:
		c.stackTag = stackTagUnknown
	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpPow,
		ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpShl, ast.OpShr:
		c.stackTag = stackTagNumber
	default:
		c.stackTag = stackTagBoolean
	}
	return nil
}

// compileLogicalAnd/Or lower `&&`/`||` with short-circuit jumps that leave
// the deciding operand on the stack rather than coercing to a real boolean,
// matching JS's "returns one of the operands" semantics.
func (c *Compiler) compileLogicalAnd(e *ast.BinaryExpression) error {
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	jmp := c.chunk.EmitJump(OpJumpIfFalseNoPop, lineOf(e))
	c.chunk.WriteSimple(OpPop, lineOf(e))
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(jmp); err != nil {
		return err
	}
	c.resetStackTag()
	return nil
}

func (c *Compiler) compileLogicalOr(e *ast.BinaryExpression) error {
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	jmp := c.chunk.EmitJump(OpJumpIfTrueNoPop, lineOf(e))
	c.chunk.WriteSimple(OpPop, lineOf(e))
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(jmp); err != nil {
		return err
	}
	c.resetStackTag()
	return nil
}

func (c *Compiler) compileCoalesce(e *ast.BinaryExpression) error {
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	jmp := c.chunk.EmitJump(OpJumpIfNullishNoPop, lineOf(e))
	notNullish := c.chunk.EmitJump(OpJump, lineOf(e))
	if err := c.chunk.PatchJump(jmp); err != nil {
		return err
	}
	c.chunk.WriteSimple(OpPop, lineOf(e))
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(notNullish); err != nil {
		return err
	}
	c.resetStackTag()
	return nil
}

func (c *Compiler) compileUnaryExpression(e *ast.UnaryExpression) error {
	if e.Operator == ast.UnaryTypeof {
		if id, ok := e.Operand.(*ast.Identifier); ok && !c.isDeclaredBinding(id.Value) {
			nameIdx := c.chunk.AddConstant(StringValue(id.Value))
			idx := c.chunk.AddConstant(StringValue("__typeofGlobal"))
			c.chunk.Write(OpLoadConst, 0, uint16(nameIdx), lineOf(e))
			c.chunk.Write(OpCallBuiltin, 1, uint16(idx), lineOf(e))
			c.stackTag = stackTagString
			return nil
		}
	}
	if e.Operator == ast.UnaryDelete {
		mem, ok := e.Operand.(*ast.MemberExpression)
		if !ok {
			return c.errorf(e, "delete target must be a member expression")
		}
		return c.compileDeleteExpression(mem)
	}
	if e.Operator == ast.UnaryVoid {
		if err := c.compileExpression(e.Operand); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpPop, lineOf(e))
		c.chunk.WriteSimple(OpLoadUndefined, lineOf(e))
		c.stackTag = stackTagUnknown
		return nil
	}
	if err := c.compileExpression(e.Operand); err != nil {
		return err
	}
	switch e.Operator {
	case ast.UnaryPlus:
		c.chunk.WriteSimple(OpUnaryPlus, lineOf(e))
		c.stackTag = stackTagNumber
	case ast.UnaryMinus:
		c.chunk.WriteSimple(OpNegate, lineOf(e))
		c.stackTag = stackTagNumber
	case ast.UnaryNot:
		c.chunk.WriteSimple(OpNot, lineOf(e))
		c.stackTag = stackTagBoolean
	case ast.UnaryBitNot:
		c.chunk.WriteSimple(OpBitNot, lineOf(e))
		c.stackTag = stackTagNumber
	case ast.UnaryTypeof:
		c.chunk.WriteSimple(OpTypeOf, lineOf(e))
		c.stackTag = stackTagString
	case ast.UnaryAwait:
		c.chunk.WriteSimple(OpAwait, lineOf(e))
		c.stackTag = stackTagUnknown
	default:
		return c.errorf(e, "unsupported unary operator %q", e.Operator)
	}
	return nil
}

// isDeclaredBinding reports whether name resolves to a local, upvalue,
// global, or declared function/class — used solely to decide whether
// `typeof x` on an undeclared x should take the never-throws global path.
func (c *Compiler) isDeclaredBinding(name string) bool {
	if _, ok := c.resolveLocal(name); ok {
		return true
	}
	if _, ok, _ := c.resolveUpvalue(name); ok {
		return true
	}
	if _, ok := c.resolveGlobal(name); ok {
		return true
	}
	if c.ctx.ResolveFunctionName(name) != nil {
		return true
	}
	if c.ctx.ResolveClassName(name) != nil {
		return true
	}
	return false
}

func (c *Compiler) compileDeleteExpression(mem *ast.MemberExpression) error {
	if err := c.compileExpression(mem.Object); err != nil {
		return err
	}
	if mem.Computed {
		if err := c.compileExpression(mem.Property); err != nil {
			return err
		}
	} else {
		idx := c.chunk.AddConstant(StringValue(identKeyName(mem.Property)))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(mem))
	}
	c.chunk.WriteSimple(OpSwap, lineOf(mem))
	idx := c.chunk.AddConstant(StringValue(identKeyName(mem.Property)))
	c.chunk.Write(OpDeleteProp, 0, uint16(idx), lineOf(mem))
	c.stackTag = stackTagBoolean
	return nil
}

// compileUpdateExpression lowers ++/-- as a load-modify-store sequence.
func (c *Compiler) compileUpdateExpression(e *ast.UpdateExpression) error {
	delta := float64(1)
	if e.Operator == "--" {
		delta = -1
	}
	switch target := e.Operand.(type) {
	case *ast.Identifier:
		if err := c.compileIdentifier(target); err != nil {
			return err
		}
		idx := c.chunk.AddConstant(NumberValue(delta))
		c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
		c.chunk.WriteSimple(OpAdd, lineOf(e))
		if e.Prefix {
			// The store consumes one copy; the other is the expression value.
			c.chunk.WriteSimple(OpDup, lineOf(e))
		} else {
			c.chunk.WriteSimple(OpDup, lineOf(e))
			idx2 := c.chunk.AddConstant(NumberValue(-delta))
			c.chunk.Write(OpLoadConst, 0, uint16(idx2), lineOf(e))
			c.chunk.WriteSimple(OpAdd, lineOf(e))
			c.chunk.WriteSimple(OpSwap, lineOf(e))
		}
		if err := c.storeIdentifier(target); err != nil {
			return err
		}
		c.stackTag = stackTagNumber
		return nil
	case *ast.MemberExpression:
		return c.compileUpdateMember(e, target, delta)
	case *ast.PrivateMemberExpression:
		return c.compileUpdatePrivateMember(e, target, delta)
	default:
		return c.errorf(e, "invalid increment/decrement target")
	}
}

// compileUpdatePrivateMember lowers ++/-- on `this.#x`-style targets with
// the same stash-in-temps shape as compileUpdateMember, but through the
// private-field opcodes so the declaring-class scoping rule still applies.
func (c *Compiler) compileUpdatePrivateMember(e *ast.UpdateExpression, target *ast.PrivateMemberExpression, delta float64) error {
	line := lineOf(e)
	objTmp, err := c.declareLocal(fmt.Sprintf("$upd%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	if err := c.compileExpression(target.Object); err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, objTmp, line)

	key := c.chunk.AddConstant(StringValue(privateFieldKey(c.currentClass, target.Name)))
	c.chunk.Write(OpLoadLocal, 0, objTmp, line)
	c.chunk.Write(OpGetPrivateField, 0, uint16(key), line)

	oldTmp, err := c.declareLocal(fmt.Sprintf("$updold%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, oldTmp, line)
	c.chunk.Write(OpLoadLocal, 0, oldTmp, line)
	idx := c.chunk.AddConstant(NumberValue(delta))
	c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
	c.chunk.WriteSimple(OpAdd, line)

	newTmp, err := c.declareLocal(fmt.Sprintf("$updnew%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, newTmp, line)
	c.chunk.Write(OpLoadLocal, 0, objTmp, line)
	c.chunk.Write(OpLoadLocal, 0, newTmp, line)
	c.chunk.Write(OpSetPrivateField, 0, uint16(key), line)

	if e.Prefix {
		c.chunk.Write(OpLoadLocal, 0, newTmp, line)
	} else {
		c.chunk.Write(OpLoadLocal, 0, oldTmp, line)
	}
	c.stackTag = stackTagNumber
	return nil
}

// compileUpdateMember lowers ++/-- on a member target by stashing the
// receiver (and computed key) in synthetic temp locals, so the
// read-modify-write sequence only ever evaluates the object/key expressions
// once, matching JS's single-evaluation-of-reference semantics.
func (c *Compiler) compileUpdateMember(e *ast.UpdateExpression, target *ast.MemberExpression, delta float64) error {
	line := lineOf(e)
	objTmp, err := c.declareLocal(fmt.Sprintf("$upd%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	if err := c.compileExpression(target.Object); err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, objTmp, line)

	var keyTmp uint16
	if target.Computed {
		keyTmp, err = c.declareLocal(fmt.Sprintf("$updk%d", c.nextSlot), types.Unknown)
		if err != nil {
			return err
		}
		if err := c.compileExpression(target.Property); err != nil {
			return err
		}
		c.chunk.Write(OpStoreLocal, 0, keyTmp, line)
		c.chunk.Write(OpLoadLocal, 0, objTmp, line)
		c.chunk.Write(OpLoadLocal, 0, keyTmp, line)
		c.chunk.WriteSimple(OpGetIndex, line)
	} else {
		c.chunk.Write(OpLoadLocal, 0, objTmp, line)
		nameIdx := c.chunk.AddConstant(StringValue(identKeyName(target.Property)))
		c.chunk.Write(OpGetProp, 0, uint16(nameIdx), line)
	}

	oldTmp, err := c.declareLocal(fmt.Sprintf("$updold%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, oldTmp, line)
	c.chunk.Write(OpLoadLocal, 0, oldTmp, line)
	idx := c.chunk.AddConstant(NumberValue(delta))
	c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
	c.chunk.WriteSimple(OpAdd, line)

	newTmp, err := c.declareLocal(fmt.Sprintf("$updnew%d", c.nextSlot), types.Unknown)
	if err != nil {
		return err
	}
	c.chunk.Write(OpStoreLocal, 0, newTmp, line)

	if target.Computed {
		c.chunk.Write(OpLoadLocal, 0, objTmp, line)
		c.chunk.Write(OpLoadLocal, 0, keyTmp, line)
		c.chunk.Write(OpLoadLocal, 0, newTmp, line)
		c.chunk.WriteSimple(OpSetIndex, line)
	} else {
		c.chunk.Write(OpLoadLocal, 0, objTmp, line)
		c.chunk.Write(OpLoadLocal, 0, newTmp, line)
		nameIdx := c.chunk.AddConstant(StringValue(identKeyName(target.Property)))
		c.chunk.Write(OpSetProp, 0, uint16(nameIdx), line)
	}

	if e.Prefix {
		c.chunk.Write(OpLoadLocal, 0, newTmp, line)
	} else {
		c.chunk.Write(OpLoadLocal, 0, oldTmp, line)
	}
	c.stackTag = stackTagNumber
	return nil
}

func (c *Compiler) storeIdentifier(id *ast.Identifier) error {
	name := id.Value
	line := lineOf(id)
	if lc, ok := c.resolveLocal(name); ok {
		c.chunk.Write(OpStoreLocal, 0, lc.slot, line)
		return nil
	}
	if idx, ok, err := c.resolveUpvalue(name); err != nil {
		return err
	} else if ok {
		c.chunk.Write(OpStoreUpvalue, 0, uint16(idx), line)
		return nil
	}
	if g, ok := c.resolveGlobal(name); ok {
		c.chunk.Write(OpStoreGlobal, 0, g.index, line)
		return nil
	}
	slot := c.declareGlobal(name, types.Unknown)
	c.chunk.Write(OpStoreGlobal, 0, slot, line)
	return nil
}

func (c *Compiler) compileAssignmentExpression(e *ast.AssignmentExpression) error {
	if e.Operator != "=" {
		return c.compileCompoundAssignment(e)
	}
	switch e.Target.(type) {
	case *ast.ArrayPattern, *ast.ObjectPattern:
		return c.compileDestructuringAssign(e.Target.(ast.Pattern), e.Value)
	}
	if err := c.compileExpression(e.Value); err != nil {
		return err
	}
	return c.compileAssignTo(e.Target)
}

// compileAssignTo stores the value already on top of the stack into target,
// leaving a copy of that value as the assignment expression's own result.
// Member targets stash the value in a synthetic temporary local first: that
// makes the obj/key-then-value stack order SetIndex/SetProp expect trivial
// to build without fragile multi-slot stack rotation.
func (c *Compiler) compileAssignTo(target ast.Expression) error {
	line := lineOf(target)
	switch t := target.(type) {
	case *ast.Identifier:
		c.chunk.WriteSimple(OpDup, line)
		return c.storeIdentifier(t)
	case *ast.MemberExpression:
		tmp, err := c.declareLocal(fmt.Sprintf("$assign%d", c.nextSlot), types.Unknown)
		if err != nil {
			return err
		}
		c.chunk.Write(OpStoreLocal, 0, tmp, line)
		if t.Computed {
			if err := c.compileExpression(t.Object); err != nil {
				return err
			}
			if err := c.compileExpression(t.Property); err != nil {
				return err
			}
			c.chunk.Write(OpLoadLocal, 0, tmp, line)
			c.chunk.WriteSimple(OpSetIndex, line)
		} else {
			if err := c.compileExpression(t.Object); err != nil {
				return err
			}
			c.chunk.Write(OpLoadLocal, 0, tmp, line)
			idx := c.chunk.AddConstant(StringValue(identKeyName(t.Property)))
			c.chunk.Write(OpSetProp, 0, uint16(idx), line)
		}
		c.chunk.Write(OpLoadLocal, 0, tmp, line)
		return nil
	case *ast.PrivateMemberExpression:
		tmp, err := c.declareLocal(fmt.Sprintf("$assign%d", c.nextSlot), types.Unknown)
		if err != nil {
			return err
		}
		c.chunk.Write(OpStoreLocal, 0, tmp, line)
		if err := c.compileExpression(t.Object); err != nil {
			return err
		}
		c.chunk.Write(OpLoadLocal, 0, tmp, line)
		idx := c.chunk.AddConstant(StringValue(privateFieldKey(c.currentClass, t.Name)))
		c.chunk.Write(OpSetPrivateField, 0, uint16(idx), line)
		c.chunk.Write(OpLoadLocal, 0, tmp, line)
		return nil
	default:
		return c.errorf(target, "invalid assignment target %T", target)
	}
}

func (c *Compiler) compileCompoundAssignment(e *ast.AssignmentExpression) error {
	binOp, ok := compoundOps[e.Operator]
	if !ok {
		return c.errorf(e, "unsupported compound assignment operator %q", e.Operator)
	}
	synthetic := &ast.BinaryExpression{Left: e.Target, Operator: binOp, Right: e.Value}
	synthetic.BaseNode = e.BaseNode
	if err := c.compileBinaryExpression(synthetic); err != nil {
		return err
	}
	return c.compileAssignTo(e.Target)
}

var compoundOps = map[string]ast.BinaryOp{
	"+=":  ast.OpAdd,
	"-=":  ast.OpSub,
	"*=":  ast.OpMul,
	"/=":  ast.OpDiv,
	"%=":  ast.OpMod,
	"**=": ast.OpPow,
	"&=":  ast.OpBitAnd,
	"|=":  ast.OpBitOr,
	"^=":  ast.OpBitXor,
	"<<=": ast.OpShl,
	">>=": ast.OpShr,
	"??=": ast.OpCoalesce,
	"&&=": ast.OpAnd,
	"||=": ast.OpOr,
}

func (c *Compiler) compileConditionalExpression(e *ast.ConditionalExpression) error {
	if err := c.compileExpression(e.Test); err != nil {
		return err
	}
	c.resetStackTag()
	jmpFalse := c.chunk.EmitJump(OpJumpIfFalse, lineOf(e))
	if err := c.compileExpression(e.Consequent); err != nil {
		return err
	}
	c.resetStackTag()
	jmpEnd := c.chunk.EmitJump(OpJump, lineOf(e))
	if err := c.chunk.PatchJump(jmpFalse); err != nil {
		return err
	}
	if err := c.compileExpression(e.Alternate); err != nil {
		return err
	}
	if err := c.chunk.PatchJump(jmpEnd); err != nil {
		return err
	}
	c.resetStackTag()
	return nil
}

func (c *Compiler) compileMemberExpression(e *ast.MemberExpression) error {
	if _, ok := e.Object.(*ast.SuperExpression); ok {
		return c.compileSuperMember(e)
	}
	if err := c.compileExpression(e.Object); err != nil {
		return err
	}
	if !e.Optional {
		return c.emitPropertyAccess(e)
	}
	jmp := c.chunk.EmitJump(OpJumpIfNullishNoPop, lineOf(e))
	if err := c.emitPropertyAccess(e); err != nil {
		return err
	}
	skip := c.chunk.EmitJump(OpJump, lineOf(e))
	if err := c.chunk.PatchJump(jmp); err != nil {
		return err
	}
	// nullish: replace the receiver with undefined.
	c.chunk.WriteSimple(OpPop, lineOf(e))
	c.chunk.WriteSimple(OpLoadUndefined, lineOf(e))
	if err := c.chunk.PatchJump(skip); err != nil {
		return err
	}
	c.resetStackTag()
	return nil
}

func (c *Compiler) compileSuperMember(e *ast.MemberExpression) error {
	c.chunk.WriteSimple(OpGetSelf, lineOf(e))
	if c.currentClass == nil || c.currentClass.Super == nil {
		return c.errorf(e, "'super' used outside a derived class method")
	}
	name := identKeyName(e.Property)
	m, _ := c.currentClass.Super.ResolveInstanceMethod(name)
	if m == nil {
		return c.errorf(e, "no superclass method %q", name)
	}
	c.chunk.WriteSimple(OpPop, lineOf(e))
	idx := c.chunk.AddConstant(FunctionValue(&Callable{Name: name, Method: m}))
	c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
	c.stackTag = stackTagUnknown
	return nil
}

func (c *Compiler) emitPropertyAccess(e *ast.MemberExpression) error {
	if e.Computed {
		if err := c.compileExpression(e.Property); err != nil {
			return err
		}
		c.chunk.WriteSimple(OpGetIndex, lineOf(e))
		c.stackTag = stackTagUnknown
		return nil
	}
	idx := c.chunk.AddConstant(StringValue(identKeyName(e.Property)))
	c.chunk.Write(OpGetProp, 0, uint16(idx), lineOf(e))
	c.stackTag = stackTagUnknown
	return nil
}

func (c *Compiler) compilePrivateMemberRead(e *ast.PrivateMemberExpression) error {
	if err := c.compileExpression(e.Object); err != nil {
		return err
	}
	idx := c.chunk.AddConstant(StringValue(privateFieldKey(c.currentClass, e.Name)))
	c.chunk.Write(OpGetPrivateField, 0, uint16(idx), lineOf(e))
	c.stackTag = stackTagUnknown
	return nil
}

// privateFieldKey is the Instance.Fields key for a private (#name) field:
// private names are never inherited and may only be written from within
// their declaring class's own methods, so collisions across unrelated
// classes on the same instance cannot happen — no class-qualification
// needed, unlike private METHODS (privateMethodKey).
func privateFieldKey(cls *ClassRecord, name string) string {
	return name
}

// privateMethodKey qualifies a private method name with its declaring
// class, since private methods live in each ClassRecord's own table
// (rather than the instance) and the VM flattens every class's table into
// one lookup keyed this way (§4.1: only the physically-declared class is
// ever consulted).
func privateMethodKey(cls *ClassRecord, name string) string {
	if cls == nil {
		return "#" + name
	}
	return cls.Name + "\x00" + name
}

func (c *Compiler) compileAwaitExpression(e *ast.AwaitExpression) error {
	if err := c.compileExpression(e.Argument); err != nil {
		return err
	}
	c.chunk.WriteSimple(OpAwait, lineOf(e))
	c.stackTag = stackTagUnknown
	return nil
}

func (c *Compiler) compileYieldExpression(e *ast.YieldExpression) error {
	if e.Argument == nil {
		c.chunk.WriteSimple(OpLoadUndefined, lineOf(e))
	} else if err := c.compileExpression(e.Argument); err != nil {
		return err
	}
	if e.Delegate {
		c.chunk.WriteSimple(OpYieldStar, lineOf(e))
	} else {
		c.chunk.WriteSimple(OpYield, lineOf(e))
	}
	c.stackTag = stackTagUnknown
	return nil
}

func (c *Compiler) compileDynamicImport(e *ast.DynamicImportExpression) error {
	if err := c.compileExpression(e.Source); err != nil {
		return err
	}
	idx := c.chunk.AddConstant(StringValue("__dynamicImport"))
	c.chunk.Write(OpCallBuiltin, 1, uint16(idx), lineOf(e))
	c.stackTag = stackTagUnknown
	return nil
}
