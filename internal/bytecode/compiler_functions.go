package bytecode

import (
	"fmt"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/types"
)

// compileFunctionExpression lowers a function/arrow expression into a
// closure value on the stack (C6). The body is compiled in a fresh child
// Compiler; whatever free variables it resolved as upvalues are then pushed
// by this (enclosing) compiler, in the same order the child recorded them,
// immediately before OpMakeClosure pairs them with the compiled function.
func (c *Compiler) compileFunctionExpression(e *ast.FunctionExpression) error {
	fn, err := c.compileFunctionBody(e)
	if err != nil {
		return err
	}
	line := lineOf(e)
	if err := c.emitClosureCapture(fn, line); err != nil {
		return err
	}
	idx := c.chunk.AddConstant(FunctionValue(&Callable{Name: fn.Name, Method: fn}))
	c.chunk.Write(OpMakeClosure, 0, uint16(idx), line)
	if e.IsArrow && c.currentClass != nil {
		c.chunk.WriteSimple(OpGetSelf, line)
		helper := c.chunk.AddConstant(StringValue("__captureThis"))
		c.chunk.Write(OpCallBuiltin, 2, uint16(helper), line)
	}
	c.stackTag = stackTagUnknown
	return nil
}

// emitClosureCapture pushes one value per entry of fn.UpvalueDefs, reading
// each from this (the creating) compiler's own locals or upvalues.
func (c *Compiler) emitClosureCapture(fn *FunctionObject, line int) error {
	for _, uv := range fn.UpvalueDefs {
		if uv.IsLocal {
			c.chunk.Write(OpLoadLocal, 0, uint16(uv.Index), line)
		} else {
			c.chunk.Write(OpLoadUpvalue, 0, uint16(uv.Index), line)
		}
	}
	return nil
}

// compileFunctionBody compiles fe's parameter list and body into a fresh
// Chunk, returning the FunctionObject the caller embeds as a constant
// (function declarations additionally register it in ctx.Functions for
// direct-call dispatch; closures pair it with a capture push + OpMakeClosure).
func (c *Compiler) compileFunctionBody(fe *ast.FunctionExpression) (*FunctionObject, error) {
	name := fe.Name
	if name == "" {
		name = fmt.Sprintf("<anonymous@%d>", lineOf(fe))
	}
	child := c.newChildCompiler(name)
	child.beginScope()

	kind := FunctionPlain
	switch {
	case fe.IsAsync && fe.IsGenerator:
		kind = FunctionAsyncGenerator
	case fe.IsAsync:
		kind = FunctionAsync
	case fe.IsGenerator:
		kind = FunctionGenerator
	}
	child.currentFunctionKind = kind

	restIndex := -1
	paramNames := make([]string, len(fe.Params))
	defaults := make([]*Chunk, len(fe.Params))
	for i, p := range fe.Params {
		if p.Rest {
			restIndex = i
		}
		if p.Pattern != nil {
			slot, err := child.declareLocal(fmt.Sprintf("$param%d", i), types.Unknown)
			if err != nil {
				return nil, err
			}
			child.chunk.Write(OpLoadLocal, 0, slot, lineOf(fe))
			if err := child.bindPattern(p.Pattern); err != nil {
				return nil, err
			}
			paramNames[i] = fmt.Sprintf("$param%d", i)
			continue
		}
		paramNames[i] = p.Name
		slot, err := child.declareLocal(p.Name, typeKindFromAnnotation(p.TypeName))
		if err != nil {
			return nil, err
		}
		if p.Default != nil {
			defChild := child.newChildCompiler(name + ".default." + p.Name)
			if err := defChild.compileExpression(p.Default); err != nil {
				return nil, err
			}
			defChild.chunk.Write(OpReturn, 1, 0, lineOf(p.Default))
			defaults[i] = defChild.chunk
			line := lineOf(fe)
			child.chunk.Write(OpLoadLocal, 0, slot, line)
			helper := child.chunk.AddConstant(StringValue("__isUndefined"))
			child.chunk.Write(OpCallBuiltin, 1, uint16(helper), line)
			jmp := child.chunk.EmitJump(OpJumpIfFalse, line)
			if err := child.compileExpression(p.Default); err != nil {
				return nil, err
			}
			child.chunk.Write(OpStoreLocal, 0, slot, line)
			if err := child.chunk.PatchJump(jmp); err != nil {
				return nil, err
			}
		}
	}

	if fe.ExpressionBody != nil {
		if err := child.compileExpression(fe.ExpressionBody); err != nil {
			return nil, err
		}
		child.chunk.Write(OpReturn, 1, 0, lineOf(fe))
	} else {
		for _, stmt := range fe.Body {
			if err := child.compileStatement(stmt); err != nil {
				return nil, err
			}
		}
		child.chunk.Write(OpReturn, 0, 0, lineOf(fe))
	}

	child.endScope()
	child.chunk.LocalCount = int(child.maxSlot)
	child.chunk.Optimize(child.optimizeOptions...)

	fn := NewFunctionObject(name, child.chunk, len(fe.Params))
	fn.RestIndex = restIndex
	fn.ParamNames = paramNames
	fn.Defaults = defaults
	fn.UpvalueDefs = child.upvalues
	fn.Kind = kind
	fn.DeclaringCls = child.currentClass
	return fn, nil
}

func typeKindFromAnnotation(name string) types.Kind {
	switch name {
	case "number":
		return types.Number
	case "string":
		return types.StringKind
	case "boolean":
		return types.Boolean
	default:
		return types.Unknown
	}
}

// compileClassExpression lowers a class expression: its fields/methods are
// registered into a fresh ClassRecord, and the expression's own value is the
// class name as a string, which OpNewDynamic resolves back to the
// ClassRecord at `new` sites.
func (c *Compiler) compileClassExpression(e *ast.ClassExpression) error {
	cls, err := c.compileClassBody(e.Body)
	if err != nil {
		return err
	}
	idx := c.chunk.AddConstant(StringValue(cls.Name))
	c.chunk.Write(OpLoadConst, 0, uint16(idx), lineOf(e))
	c.stackTag = stackTagString
	return nil
}

func (c *Compiler) compileClassDeclaration(s *ast.ClassDeclaration) error {
	_, err := c.compileClassBody(s.Body)
	return err
}

// compileClassBody registers body's fields and methods into the
// CompilationContext's class directory (§4.1), compiling each method body
// with currentClass set so `this`/private-member/super resolution works.
func (c *Compiler) compileClassBody(body *ast.ClassBody) (*ClassRecord, error) {
	var super *ClassRecord
	if body.SuperClass != nil {
		if ident, ok := body.SuperClass.(*ast.Identifier); ok {
			super = c.ctx.ResolveClassName(ident.Value)
		}
	}
	cls := newClassRecord(body.Name, super)
	c.ctx.Classes[body.Name] = cls

	for _, f := range body.Fields {
		var initChunk *Chunk
		if f.Initializer != nil {
			initChild := c.newChildCompiler(body.Name + "." + f.Name + ".init")
			initChild.currentClass = cls
			if err := initChild.compileExpression(f.Initializer); err != nil {
				return nil, err
			}
			initChild.chunk.Write(OpReturn, 1, 0, lineOf(f.Initializer))
			initChild.chunk.LocalCount = int(initChild.maxSlot)
			initChunk = initChild.chunk
			c.chunk.Classes[body.Name] = appendFieldMetadata(c.chunk.Classes[body.Name], f.Name, initChunk)
		}
		if f.IsStatic {
			cls.StaticFields[f.Name] = Undefined()
			if initChunk != nil {
				cls.StaticFieldInits[f.Name] = initChunk
			}
			continue
		}
		if f.IsPrivate {
			cls.PrivateFields[f.Name] = true
		} else {
			kind, _ := c.ctx.TypeOf(f.Initializer)
			cls.Properties[f.Name] = kind.Kind
			cls.ReadonlyProps[f.Name] = f.IsReadonly
		}
		cls.FieldOrder = append(cls.FieldOrder, f.Name)
		if initChunk != nil {
			cls.FieldInits[f.Name] = initChunk
		}
	}

	for _, m := range body.Methods {
		methodChild := c.newChildCompiler(body.Name + "." + m.Name)
		methodChild.currentClass = cls
		fn, err := methodChild.compileFunctionBodyAsMethod(m.Function, cls)
		if err != nil {
			return nil, err
		}
		switch {
		case m.IsPrivate:
			cls.PrivateMethods[privateMethodKey(cls, m.Name)] = fn
		case m.IsStatic:
			cls.StaticMethods[m.Name] = fn
		default:
			cls.Methods[m.Name] = fn
		}
		if m.Kind == ast.MethodConstructor {
			cls.ConstructorArity = fn.Arity
		}
	}
	return cls, nil
}

// compileFunctionBodyAsMethod is compileFunctionBody specialized for a
// method: it runs in a Compiler whose currentClass is already set (so
// nested closures resolve `this`/private members correctly), and is called
// on the child compiler itself rather than creating another child, since
// compileClassBody already allocated one child per method.
func (c *Compiler) compileFunctionBodyAsMethod(fe *ast.FunctionExpression, cls *ClassRecord) (*FunctionObject, error) {
	c.beginScope()

	kind := FunctionPlain
	switch {
	case fe.IsAsync && fe.IsGenerator:
		kind = FunctionAsyncGenerator
	case fe.IsAsync:
		kind = FunctionAsync
	case fe.IsGenerator:
		kind = FunctionGenerator
	}
	c.currentFunctionKind = kind

	restIndex := -1
	paramNames := make([]string, len(fe.Params))
	defaults := make([]*Chunk, len(fe.Params))
	for i, p := range fe.Params {
		if p.Rest {
			restIndex = i
		}
		paramNames[i] = p.Name
		slot, err := c.declareLocal(p.Name, typeKindFromAnnotation(p.TypeName))
		if err != nil {
			return nil, err
		}
		if p.Default != nil {
			line := lineOf(fe)
			c.chunk.Write(OpLoadLocal, 0, slot, line)
			helper := c.chunk.AddConstant(StringValue("__isUndefined"))
			c.chunk.Write(OpCallBuiltin, 1, uint16(helper), line)
			jmp := c.chunk.EmitJump(OpJumpIfFalse, line)
			if err := c.compileExpression(p.Default); err != nil {
				return nil, err
			}
			c.chunk.Write(OpStoreLocal, 0, slot, line)
			if err := c.chunk.PatchJump(jmp); err != nil {
				return nil, err
			}
		}
	}

	for _, stmt := range fe.Body {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	c.chunk.Write(OpReturn, 0, 0, lineOf(fe))

	c.endScope()
	c.chunk.LocalCount = int(c.maxSlot)
	c.chunk.Optimize(c.optimizeOptions...)

	fn := NewFunctionObject(cls.Name+"."+fe.Name, c.chunk, len(fe.Params))
	fn.RestIndex = restIndex
	fn.ParamNames = paramNames
	fn.Defaults = defaults
	fn.UpvalueDefs = c.upvalues
	fn.Kind = kind
	fn.DeclaringCls = cls
	return fn, nil
}

func appendFieldMetadata(cm *ClassMetadata, name string, init *Chunk) *ClassMetadata {
	if cm == nil {
		cm = &ClassMetadata{Name: name}
	}
	cm.Fields = append(cm.Fields, &FieldMetadata{Name: name, Initializer: init})
	return cm
}

// compileNewExpression lowers `new Expr(args)`: a statically-known class
// name dispatches through OpNew (fast path, §4.4); anything else — a
// variable holding a constructor function, a computed expression — falls
// back to OpNewDynamic.
func (c *Compiler) compileNewExpression(e *ast.NewExpression) error {
	line := lineOf(e)
	if ident, ok := e.Callee.(*ast.Identifier); ok {
		if cls := c.ctx.ResolveClassName(ident.Value); cls != nil {
			if err := c.compileArguments(e.Arguments); err != nil {
				return err
			}
			idx := c.chunk.AddConstant(StringValue(cls.Name))
			c.chunk.Write(OpNew, byte(len(e.Arguments)), uint16(idx), line)
			c.stackTag = stackTagUnknown
			return nil
		}
	}
	if err := c.compileExpression(e.Callee); err != nil {
		return err
	}
	if err := c.compileArguments(e.Arguments); err != nil {
		return err
	}
	c.chunk.Write(OpNewDynamic, byte(len(e.Arguments)), 0, line)
	c.stackTag = stackTagUnknown
	return nil
}

// compileArguments pushes each call/new argument, emitting OpSpreadArgs
// afterward when any argument used `...expr` so the callee sees a flat
// argument vector regardless of how many elements a spread expands to.
func (c *Compiler) compileArguments(args []*ast.Argument) error {
	if len(args) > 0xFFFF {
		return fmt.Errorf("too many arguments: %d", len(args))
	}
	var spreadMask uint16
	for i, a := range args {
		if err := c.compileExpression(a.Value); err != nil {
			return err
		}
		if a.Spread {
			spreadMask |= 1 << uint(i)
		}
	}
	if spreadMask != 0 {
		line := 0
		if len(args) > 0 {
			line = lineOf(args[0].Value)
		}
		c.chunk.Write(OpSpreadArgs, byte(len(args)), spreadMask, line)
	}
	return nil
}
