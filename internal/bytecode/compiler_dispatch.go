package bytecode

import "github.com/tscore-lang/tscore/internal/ast"

// compiler_dispatch.go implements C4: the call-site dispatch chain that
// turns a source-level call expression into the cheapest opcode sequence
// the compiler can prove sound, falling back one tier at a time down to a
// fully dynamic invocation. The order mirrors the priority a reader would
// expect: super calls first (there is only ever one legal lowering), then
// namespaces and type strategies the checker can't get wrong, then direct
// references to declared functions, and only then the dynamic fallback.
func (c *Compiler) compileCallExpression(e *ast.CallExpression) error {
	line := lineOf(e)

	// Priority 1: super(...) invokes the superclass constructor.
	if _, ok := e.Callee.(*ast.SuperExpression); ok {
		return c.compileSuperCall(e, line)
	}

	switch callee := e.Callee.(type) {
	case *ast.MemberExpression:
		if callee.Computed {
			return c.compileComputedMethodCall(e, callee, line)
		}
		if _, ok := callee.Object.(*ast.SuperExpression); ok {
			return c.compileSuperMethodCall(e, callee, line)
		}
		return c.compileNamedMethodCall(e, callee, line)

	case *ast.PrivateMemberExpression:
		if err := c.compileExpression(callee.Object); err != nil {
			return err
		}
		if err := c.compileArguments(e.Arguments); err != nil {
			return err
		}
		idx := c.chunk.AddConstant(StringValue(privateMethodKey(c.currentClass, callee.Name)))
		c.chunk.Write(OpCallPrivateMethod, byte(len(e.Arguments)), uint16(idx), line)
		c.stackTag = stackTagUnknown
		return nil

	case *ast.Identifier:
		return c.compileIdentifierCall(e, callee, line)
	}

	// Fallback: evaluate the callee as an ordinary value and invoke it
	// dynamically (an IIFE, a call through a computed/returned reference).
	if err := c.compileExpression(e.Callee); err != nil {
		return err
	}
	if err := c.compileArguments(e.Arguments); err != nil {
		return err
	}
	c.chunk.Write(OpCallValue, byte(len(e.Arguments)), 0, line)
	c.stackTag = stackTagUnknown
	return nil
}

// compileSuperCall lowers `super(args)` inside a derived class constructor:
// the superclass's own constructor body runs bound to the already-allocated
// `this`.
func (c *Compiler) compileSuperCall(e *ast.CallExpression, line int) error {
	if c.currentClass == nil || c.currentClass.Super == nil {
		return c.errorf(e, "'super' call outside a derived class constructor")
	}
	ctor, _ := c.currentClass.Super.ResolveInstanceMethod("constructor")
	if ctor == nil {
		// No explicit superclass constructor: the call is a no-op beyond
		// evaluating arguments for side effects, but this core still needs a
		// value on the stack to balance the expression-statement pop.
		if err := c.compileArguments(e.Arguments); err != nil {
			return err
		}
		for range e.Arguments {
			c.chunk.WriteSimple(OpPop, line)
		}
		c.chunk.WriteSimple(OpLoadUndefined, line)
		c.stackTag = stackTagUnknown
		return nil
	}
	c.chunk.WriteSimple(OpGetSelf, line)
	idx := c.chunk.AddConstant(FunctionValue(&Callable{Name: "constructor", Method: ctor}))
	c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
	if err := c.compileArguments(e.Arguments); err != nil {
		return err
	}
	c.chunk.Write(OpCallValueMethod, byte(len(e.Arguments)), 0, line)
	c.stackTag = stackTagUnknown
	return nil
}

// compileSuperMethodCall lowers `super.method(args)`: always a statically
// resolved dispatch against the superclass's method table, bound to the
// current `this` (never the dynamic-lookup tiers below — a subclass
// overriding `method` must not be consulted).
func (c *Compiler) compileSuperMethodCall(e *ast.CallExpression, mem *ast.MemberExpression, line int) error {
	if c.currentClass == nil || c.currentClass.Super == nil {
		return c.errorf(e, "'super' used outside a derived class method")
	}
	name := identKeyName(mem.Property)
	m, _ := c.currentClass.Super.ResolveInstanceMethod(name)
	if m == nil {
		return c.errorf(e, "no superclass method %q", name)
	}
	c.chunk.WriteSimple(OpGetSelf, line)
	idx := c.chunk.AddConstant(FunctionValue(&Callable{Name: name, Method: m}))
	c.chunk.Write(OpLoadConst, 0, uint16(idx), line)
	if err := c.compileArguments(e.Arguments); err != nil {
		return err
	}
	c.chunk.Write(OpCallValueMethod, byte(len(e.Arguments)), 0, line)
	c.stackTag = stackTagUnknown
	return nil
}

// compileComputedMethodCall lowers `obj[expr](args)`: the method name isn't
// known until run time, so receiver and callee are both resolved
// dynamically before the fully dynamic bound-call opcode runs.
func (c *Compiler) compileComputedMethodCall(e *ast.CallExpression, mem *ast.MemberExpression, line int) error {
	if err := c.compileExpression(mem.Object); err != nil {
		return err
	}
	c.chunk.WriteSimple(OpDup, line)
	if err := c.compileExpression(mem.Property); err != nil {
		return err
	}
	c.chunk.WriteSimple(OpGetIndex, line)
	// stack is now [receiver, callee], exactly what OpCallValueMethod wants.
	if err := c.compileArguments(e.Arguments); err != nil {
		return err
	}
	c.chunk.Write(OpCallValueMethod, byte(len(e.Arguments)), 0, line)
	c.stackTag = stackTagUnknown
	return nil
}

// compileNamedMethodCall implements the bulk of the dispatch chain for
// `receiver.method(args)` with a statically-named method: console/static
// namespace strategy, then receiver-type strategy, then the statically
// unresolvable (but still named) case, which still gets a single
// CALL_METHOD opcode rather than the fully dynamic GetProp+CallValue pair —
// the VM resolves the method against the receiver's runtime class or own
// properties in one step.
func (c *Compiler) compileNamedMethodCall(e *ast.CallExpression, mem *ast.MemberExpression, line int) error {
	methodName := identKeyName(mem.Property)

	if objID, ok := mem.Object.(*ast.Identifier); ok && !c.isDeclaredBinding(objID.Value) {
		if key, ok := staticStrategyName(objID.Value, methodName); ok {
			if err := c.compileArguments(e.Arguments); err != nil {
				return err
			}
			idx := c.chunk.AddConstant(StringValue(key))
			c.chunk.Write(OpCallStrategy, byte(len(e.Arguments)), uint16(idx), line)
			c.stackTag = stackTagUnknown
			return nil
		}
	}

	if info, ok := c.ctx.TypeOf(mem.Object); ok {
		if receiverType, ok := receiverStrategyTypeName(info); ok {
			if key, ok := strategyMethodName(receiverType, methodName); ok {
				if err := c.compileExpression(mem.Object); err != nil {
					return err
				}
				if err := c.compileArguments(e.Arguments); err != nil {
					return err
				}
				idx := c.chunk.AddConstant(StringValue(key))
				c.chunk.Write(OpCallStrategy, byte(len(e.Arguments)), uint16(idx), line)
				c.stackTag = stackTagUnknown
				return nil
			}
		}
	}

	if err := c.compileExpression(mem.Object); err != nil {
		return err
	}
	if err := c.compileArguments(e.Arguments); err != nil {
		return err
	}
	nameIdx := c.chunk.AddConstant(StringValue(methodName))
	c.chunk.Write(OpCallMethod, byte(len(e.Arguments)), uint16(nameIdx), line)
	c.stackTag = stackTagUnknown
	return nil
}

// compileIdentifierCall handles a bare-identifier callee: a global builtin
// function (when the name is not shadowed by any declared binding), a
// directly resolvable top-level function (the common case, emitting a
// single CALL), or — if the identifier names a local/upvalue/global
// variable — the dynamic fallback, since the value it holds is unknown
// until run time.
func (c *Compiler) compileIdentifierCall(e *ast.CallExpression, id *ast.Identifier, line int) error {
	if !c.isDeclaredBinding(id.Value) {
		if err := c.compileArguments(e.Arguments); err != nil {
			return err
		}
		idx := c.chunk.AddConstant(StringValue(id.Value))
		c.chunk.Write(OpCallBuiltin, byte(len(e.Arguments)), uint16(idx), line)
		c.stackTag = stackTagUnknown
		return nil
	}

	if _, ok := c.resolveLocal(id.Value); !ok {
		if _, ok, _ := c.resolveUpvalue(id.Value); !ok {
			if _, ok := c.resolveGlobal(id.Value); !ok {
				if fn := c.ctx.ResolveFunctionName(id.Value); fn != nil {
					if err := c.compileArguments(e.Arguments); err != nil {
						return err
					}
					idx := c.chunk.AddConstant(FunctionValue(&Callable{Name: id.Value, Method: fn}))
					c.chunk.Write(OpCall, byte(len(e.Arguments)), uint16(idx), line)
					c.stackTag = stackTagUnknown
					return nil
				}
			}
		}
	}

	if err := c.compileExpression(id); err != nil {
		return err
	}
	if err := c.compileArguments(e.Arguments); err != nil {
		return err
	}
	c.chunk.Write(OpCallValue, byte(len(e.Arguments)), 0, line)
	c.stackTag = stackTagUnknown
	return nil
}
