package interp

import (
	"fmt"
	"math"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/bytecode"
)

func (in *Interpreter) eval(expr ast.Expression, env *environment) (Value, error) {
	switch e := expr.(type) {
	case nil:
		return bytecode.Undefined(), nil
	case *ast.NumberLiteral:
		return bytecode.NumberValue(e.Value), nil
	case *ast.BigIntLiteral:
		return in.vm.CallBuiltin("BigInt", []Value{bytecode.StringValue(e.Value)})
	case *ast.StringLiteral:
		return bytecode.StringValue(e.Value), nil
	case *ast.BooleanLiteral:
		return bytecode.BoolValue(e.Value), nil
	case *ast.NullLiteral:
		return bytecode.Null(), nil
	case *ast.UndefinedLiteral:
		return bytecode.Undefined(), nil
	case *ast.RegexLiteral:
		return in.vm.CallBuiltin("RegExp", []Value{bytecode.StringValue(e.Pattern), bytecode.StringValue(e.Flags)})
	case *ast.Identifier:
		return in.evalIdentifier(e.Value, env)
	case *ast.ThisExpression:
		return env.lookupThis(), nil
	case *ast.TemplateLiteral:
		return in.evalTemplate(e, env)
	case *ast.ArrayLiteral:
		return in.evalArrayLiteral(e, env)
	case *ast.ObjectLiteral:
		return in.evalObjectLiteral(e, env)
	case *ast.BinaryExpression:
		return in.evalBinary(e, env)
	case *ast.UnaryExpression:
		return in.evalUnary(e, env)
	case *ast.UpdateExpression:
		return in.evalUpdate(e, env)
	case *ast.AssignmentExpression:
		return in.evalAssignment(e, env)
	case *ast.ConditionalExpression:
		t, err := in.eval(e.Test, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		if bytecode.IsTruthy(t) {
			return in.eval(e.Consequent, env)
		}
		return in.eval(e.Alternate, env)
	case *ast.SequenceExpression:
		var out Value
		for _, sub := range e.Expressions {
			var err error
			if out, err = in.eval(sub, env); err != nil {
				return bytecode.Undefined(), err
			}
		}
		return out, nil
	case *ast.MemberExpression:
		return in.evalMember(e, env)
	case *ast.PrivateMemberExpression:
		return in.evalPrivateMember(e, env)
	case *ast.CallExpression:
		return in.evalCall(e, env)
	case *ast.NewExpression:
		return in.evalNew(e, env)
	case *ast.FunctionExpression:
		return in.makeFunction(e, env), nil
	case *ast.ClassExpression:
		if err := in.declareClass(e.Body, env); err != nil {
			return bytecode.Undefined(), err
		}
		return bytecode.StringValue(e.Body.Name), nil
	case *ast.AwaitExpression:
		v, err := in.eval(e.Argument, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		return in.vm.Await(v)
	case *ast.YieldExpression:
		return in.evalYield(e, env)
	case *ast.DynamicImportExpression:
		src, err := in.eval(e.Source, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		return in.vm.CallBuiltin("__dynamicImport", []Value{src})
	case *ast.SpreadExpression:
		return bytecode.Undefined(), fmt.Errorf("interpreter: unexpected spread outside argument position")
	default:
		return bytecode.Undefined(), fmt.Errorf("interpreter: unsupported expression %T", expr)
	}
}

func (in *Interpreter) evalIdentifier(name string, env *environment) (Value, error) {
	if v, ok := env.lookup(name); ok {
		return v, nil
	}
	if ci, ok := in.classes[name]; ok {
		return bytecode.StringValue(ci.name), nil
	}
	return in.vm.GlobalGet(name)
}

func (in *Interpreter) evalTemplate(e *ast.TemplateLiteral, env *environment) (Value, error) {
	out := ""
	for i, q := range e.Quasis {
		out += q
		if i < len(e.Expressions) {
			v, err := in.eval(e.Expressions[i], env)
			if err != nil {
				return bytecode.Undefined(), err
			}
			out += bytecode.ToDisplayString(v)
		}
	}
	return bytecode.StringValue(out), nil
}

func (in *Interpreter) evalArrayLiteral(e *ast.ArrayLiteral, env *environment) (Value, error) {
	var elems []Value
	for i, el := range e.Elements {
		v, err := in.eval(el, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		if i < len(e.Spreads) && e.Spreads[i] {
			items, err := in.vm.Iterate(v)
			if err != nil {
				return bytecode.Undefined(), err
			}
			elems = append(elems, items...)
			continue
		}
		elems = append(elems, v)
	}
	return bytecode.ArrayValue(&bytecode.ArrayInstance{Elements: elems}), nil
}

func (in *Interpreter) evalObjectLiteral(e *ast.ObjectLiteral, env *environment) (Value, error) {
	obj := bytecode.NewPlainObject()
	for _, prop := range e.Properties {
		if prop.IsSpread {
			src, err := in.eval(prop.Value, env)
			if err != nil {
				return bytecode.Undefined(), err
			}
			for _, k := range bytecode.OwnKeys(src) {
				obj.Set(k, in.vm.GetProperty(src, k))
			}
			continue
		}
		var key string
		if prop.Computed {
			kv, err := in.eval(prop.Key, env)
			if err != nil {
				return bytecode.Undefined(), err
			}
			if kv.Type == bytecode.ValueSymbol {
				v, err := in.eval(prop.Value, env)
				if err != nil {
					return bytecode.Undefined(), err
				}
				obj.SetSymbol(kv.Data.(*bytecode.Symbol), v)
				continue
			}
			key = bytecode.ToDisplayString(kv)
		} else {
			key = identKeyName(prop.Key)
		}
		var v Value
		var err error
		switch {
		case prop.Shorthand:
			ident := prop.Key.(*ast.Identifier)
			v, err = in.evalIdentifier(ident.Value, env)
		default:
			v, err = in.eval(prop.Value, env)
		}
		if err != nil {
			return bytecode.Undefined(), err
		}
		obj.Set(key, v)
	}
	return bytecode.ObjectValue(obj), nil
}

func identKeyName(key ast.Expression) string {
	switch k := key.(type) {
	case *ast.Identifier:
		return k.Value
	case *ast.StringLiteral:
		return k.Value
	case *ast.NumberLiteral:
		return bytecode.ToDisplayString(bytecode.NumberValue(k.Value))
	default:
		return ""
	}
}

func (in *Interpreter) evalBinary(e *ast.BinaryExpression, env *environment) (Value, error) {
	switch e.Operator {
	case ast.OpAnd:
		left, err := in.eval(e.Left, env)
		if err != nil || !bytecode.IsTruthy(left) {
			return left, err
		}
		return in.eval(e.Right, env)
	case ast.OpOr:
		left, err := in.eval(e.Left, env)
		if err != nil || bytecode.IsTruthy(left) {
			return left, err
		}
		return in.eval(e.Right, env)
	case ast.OpCoalesce:
		left, err := in.eval(e.Left, env)
		if err != nil || !left.IsNullish() {
			return left, err
		}
		return in.eval(e.Right, env)
	}

	left, err := in.eval(e.Left, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	right, err := in.eval(e.Right, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	return in.applyBinary(e.Operator, left, right)
}

func (in *Interpreter) applyBinary(op ast.BinaryOp, left, right Value) (Value, error) {
	num := func(f func(a, b float64) float64) (Value, error) {
		return bytecode.NumberValue(f(bytecode.ToNumber(left), bytecode.ToNumber(right))), nil
	}
	switch op {
	case ast.OpAdd:
		return bytecode.Add(left, right), nil
	case ast.OpSub:
		return num(func(a, b float64) float64 { return a - b })
	case ast.OpMul:
		return num(func(a, b float64) float64 { return a * b })
	case ast.OpDiv:
		return num(func(a, b float64) float64 { return a / b })
	case ast.OpMod:
		return num(math.Mod)
	case ast.OpPow:
		return num(math.Pow)
	case ast.OpEq, ast.OpEqS:
		return bytecode.BoolValue(bytecode.StrictEquals(left, right)), nil
	case ast.OpNeq, ast.OpNeqS:
		return bytecode.BoolValue(!bytecode.StrictEquals(left, right)), nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return compareBinary(op, left, right), nil
	case ast.OpBitAnd:
		return bytecode.NumberValue(float64(toInt32(left) & toInt32(right))), nil
	case ast.OpBitOr:
		return bytecode.NumberValue(float64(toInt32(left) | toInt32(right))), nil
	case ast.OpBitXor:
		return bytecode.NumberValue(float64(toInt32(left) ^ toInt32(right))), nil
	case ast.OpShl:
		return bytecode.NumberValue(float64(toInt32(left) << (uint32(toInt32(right)) & 31))), nil
	case ast.OpShr:
		return bytecode.NumberValue(float64(toInt32(left) >> (uint32(toInt32(right)) & 31))), nil
	case ast.OpUShr:
		return bytecode.NumberValue(float64(uint32(toInt32(left)) >> (uint32(toInt32(right)) & 31))), nil
	case ast.OpInstOf:
		res, err := in.vm.InstanceOfOperator(left, right)
		return bytecode.BoolValue(res), err
	case ast.OpIn:
		return bytecode.BoolValue(in.vm.HasProperty(right, bytecode.ToDisplayString(left))), nil
	default:
		return bytecode.Undefined(), fmt.Errorf("interpreter: unsupported binary operator %q", op)
	}
}

func toInt32(v Value) int32 {
	f := bytecode.ToNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

func compareBinary(op ast.BinaryOp, left, right Value) Value {
	if left.Type == bytecode.ValueString && right.Type == bytecode.ValueString {
		a, b := left.AsString(), right.AsString()
		switch op {
		case ast.OpLt:
			return bytecode.BoolValue(a < b)
		case ast.OpLe:
			return bytecode.BoolValue(a <= b)
		case ast.OpGt:
			return bytecode.BoolValue(a > b)
		default:
			return bytecode.BoolValue(a >= b)
		}
	}
	a, b := bytecode.ToNumber(left), bytecode.ToNumber(right)
	if math.IsNaN(a) || math.IsNaN(b) {
		return bytecode.BoolValue(false)
	}
	switch op {
	case ast.OpLt:
		return bytecode.BoolValue(a < b)
	case ast.OpLe:
		return bytecode.BoolValue(a <= b)
	case ast.OpGt:
		return bytecode.BoolValue(a > b)
	default:
		return bytecode.BoolValue(a >= b)
	}
}

func (in *Interpreter) evalUnary(e *ast.UnaryExpression, env *environment) (Value, error) {
	if e.Operator == ast.UnaryTypeof {
		if id, ok := e.Operand.(*ast.Identifier); ok {
			if _, declared := env.lookup(id.Value); !declared {
				if _, isClass := in.classes[id.Value]; !isClass {
					return in.vm.CallBuiltin("__typeofGlobal", []Value{bytecode.StringValue(id.Value)})
				}
			}
		}
	}
	if e.Operator == ast.UnaryDelete {
		mem, ok := e.Operand.(*ast.MemberExpression)
		if !ok {
			return bytecode.Undefined(), fmt.Errorf("interpreter: delete target must be a member expression")
		}
		obj, err := in.eval(mem.Object, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		key, err := in.memberKey(mem, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		return bytecode.BoolValue(in.vm.DeleteProperty(obj, key)), nil
	}

	v, err := in.eval(e.Operand, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	switch e.Operator {
	case ast.UnaryPlus:
		return bytecode.NumberValue(bytecode.ToNumber(v)), nil
	case ast.UnaryMinus:
		return bytecode.NumberValue(-bytecode.ToNumber(v)), nil
	case ast.UnaryNot:
		return bytecode.BoolValue(!bytecode.IsTruthy(v)), nil
	case ast.UnaryBitNot:
		return bytecode.NumberValue(float64(^toInt32(v))), nil
	case ast.UnaryTypeof:
		return bytecode.StringValue(v.TypeOf()), nil
	case ast.UnaryVoid:
		return bytecode.Undefined(), nil
	case ast.UnaryAwait:
		return in.vm.Await(v)
	default:
		return bytecode.Undefined(), fmt.Errorf("interpreter: unsupported unary operator %q", e.Operator)
	}
}

func (in *Interpreter) memberKey(mem *ast.MemberExpression, env *environment) (string, error) {
	if mem.Computed {
		k, err := in.eval(mem.Property, env)
		if err != nil {
			return "", err
		}
		return bytecode.ToDisplayString(k), nil
	}
	return identKeyName(mem.Property), nil
}

func (in *Interpreter) evalUpdate(e *ast.UpdateExpression, env *environment) (Value, error) {
	read := func() (Value, error) { return in.eval(e.Operand, env) }
	write := func(v Value) error { return in.assignTo(e.Operand, v, env) }

	old, err := read()
	if err != nil {
		return bytecode.Undefined(), err
	}
	delta := 1.0
	if e.Operator == "--" {
		delta = -1
	}
	updated := bytecode.NumberValue(bytecode.ToNumber(old) + delta)
	if err := write(updated); err != nil {
		return bytecode.Undefined(), err
	}
	if e.Prefix {
		return updated, nil
	}
	return bytecode.NumberValue(bytecode.ToNumber(old)), nil
}

func (in *Interpreter) evalAssignment(e *ast.AssignmentExpression, env *environment) (Value, error) {
	if e.Operator == "=" {
		switch target := e.Target.(type) {
		case *ast.ArrayPattern, *ast.ObjectPattern:
			src, err := in.eval(e.Value, env)
			if err != nil {
				return bytecode.Undefined(), err
			}
			if err := in.bindPattern(target.(ast.Pattern), src, env, false); err != nil {
				return bytecode.Undefined(), err
			}
			return src, nil
		}
		v, err := in.eval(e.Value, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		return v, in.assignTo(e.Target, v, env)
	}

	// Compound assignment: read-modify-write with the matching binary op.
	binOp, ok := compoundOps[e.Operator]
	if !ok {
		return bytecode.Undefined(), fmt.Errorf("interpreter: unsupported assignment operator %q", e.Operator)
	}
	old, err := in.eval(e.Target, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if e.Operator == "??=" && !old.IsNullish() {
		return old, nil
	}
	if e.Operator == "&&=" && !bytecode.IsTruthy(old) {
		return old, nil
	}
	if e.Operator == "||=" && bytecode.IsTruthy(old) {
		return old, nil
	}
	rhs, err := in.eval(e.Value, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	var v Value
	if binOp == "" { // ??=, &&=, ||= assign the right operand directly
		v = rhs
	} else if v, err = in.applyBinary(binOp, old, rhs); err != nil {
		return bytecode.Undefined(), err
	}
	return v, in.assignTo(e.Target, v, env)
}

var compoundOps = map[string]ast.BinaryOp{
	"+=": ast.OpAdd, "-=": ast.OpSub, "*=": ast.OpMul, "/=": ast.OpDiv,
	"%=": ast.OpMod, "**=": ast.OpPow, "&=": ast.OpBitAnd, "|=": ast.OpBitOr,
	"^=": ast.OpBitXor, "<<=": ast.OpShl, ">>=": ast.OpShr,
	"??=": "", "&&=": "", "||=": "",
}

func (in *Interpreter) assignTo(target ast.Expression, v Value, env *environment) error {
	switch t := target.(type) {
	case *ast.Identifier:
		if !env.assign(t.Value, v) {
			in.globals.declare(t.Value, v)
		}
		return nil
	case *ast.MemberExpression:
		obj, err := in.eval(t.Object, env)
		if err != nil {
			return err
		}
		if t.Computed {
			key, err := in.eval(t.Property, env)
			if err != nil {
				return err
			}
			in.vm.SetIndex(obj, key, v)
			return nil
		}
		in.vm.SetProperty(obj, identKeyName(t.Property), v)
		return nil
	case *ast.PrivateMemberExpression:
		obj, err := in.eval(t.Object, env)
		if err != nil {
			return err
		}
		inst := obj.AsInstance()
		if inst == nil {
			return fmt.Errorf("interpreter: cannot write private member %s to a non-instance", t.Name)
		}
		inst.PrivateFields[t.Name] = v
		return nil
	default:
		return fmt.Errorf("interpreter: invalid assignment target %T", target)
	}
}

func (in *Interpreter) evalMember(e *ast.MemberExpression, env *environment) (Value, error) {
	obj, err := in.eval(e.Object, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	if e.Optional && obj.IsNullish() {
		return bytecode.Undefined(), nil
	}
	if obj.IsNullish() {
		return bytecode.Undefined(), bytecode.ThrownError(bytecode.StringValue(
			fmt.Sprintf("cannot read properties of %s", obj.String())))
	}
	if e.Computed {
		key, err := in.eval(e.Property, env)
		if err != nil {
			return bytecode.Undefined(), err
		}
		return in.vm.GetIndex(obj, key), nil
	}
	name := identKeyName(e.Property)
	if v, handled := in.classMember(obj, name); handled {
		return v, nil
	}
	return in.vm.GetProperty(obj, name), nil
}

func (in *Interpreter) evalPrivateMember(e *ast.PrivateMemberExpression, env *environment) (Value, error) {
	obj, err := in.eval(e.Object, env)
	if err != nil {
		return bytecode.Undefined(), err
	}
	inst := obj.AsInstance()
	if inst == nil {
		return bytecode.Undefined(), fmt.Errorf("interpreter: cannot read private member %s from a non-instance", e.Name)
	}
	if v, ok := inst.PrivateFields[e.Name]; ok {
		return v, nil
	}
	return bytecode.Undefined(), fmt.Errorf("interpreter: private member %s not declared on receiver", e.Name)
}

func (in *Interpreter) evalYield(e *ast.YieldExpression, env *environment) (Value, error) {
	gen := env.lookupGen()
	if gen == nil {
		return bytecode.Undefined(), fmt.Errorf("interpreter: yield outside a generator body")
	}
	v := bytecode.Undefined()
	if e.Argument != nil {
		var err error
		if v, err = in.eval(e.Argument, env); err != nil {
			return bytecode.Undefined(), err
		}
	}
	if e.Delegate {
		return in.yieldDelegate(gen, v)
	}
	return gen.yield(v)
}
