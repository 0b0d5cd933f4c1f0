package types

import "github.com/tscore-lang/tscore/internal/ast"

// Infer walks prog and records a best-effort TypeInfo for expressions whose
// static kind is obvious from syntax alone (literals, `new ClassName(...)`,
// and identifiers bound by `let x = ...` take the kind inferred for their
// initializer; type annotations are not read). It is intentionally shallow — a real checker is out of this
// core's scope (spec §1) — but it is enough to exercise the direct-call and
// type-strategy dispatch paths (spec §4.4 priorities 6–9) instead of always
// falling through to fully dynamic dispatch.
func Infer(prog *ast.Program) *TypeMap {
	tm := NewTypeMap()
	env := map[string]TypeInfo{}
	for _, stmt := range prog.Statements {
		inferStatement(stmt, tm, env)
	}
	return tm
}

func inferStatement(stmt ast.Statement, tm *TypeMap, env map[string]TypeInfo) {
	switch s := stmt.(type) {
	case *ast.VarStatement:
		for _, decl := range s.Declarations {
			if decl.Init != nil {
				info := inferExpression(decl.Init, tm, env)
				if decl.Name != "" {
					env[decl.Name] = info
				}
			}
		}
	case *ast.ExpressionStatement:
		inferExpression(s.Expression, tm, env)
	case *ast.BlockStatement:
		for _, inner := range s.Statements {
			inferStatement(inner, tm, env)
		}
	case *ast.IfStatement:
		inferExpression(s.Test, tm, env)
		inferStatement(s.Consequent, tm, env)
		if s.Alternate != nil {
			inferStatement(s.Alternate, tm, env)
		}
	case *ast.WhileStatement:
		inferStatement(s.Body, tm, env)
	case *ast.ForStatement:
		inferStatement(s.Body, tm, env)
	case *ast.ForOfStatement:
		inferStatement(s.Body, tm, env)
	case *ast.ReturnStatement:
		if s.Argument != nil {
			inferExpression(s.Argument, tm, env)
		}
	case *ast.FunctionDeclaration:
		inferFunctionBody(s.Function, tm)
	case *ast.ClassDeclaration:
		for _, m := range s.Body.Methods {
			inferFunctionBody(m.Function, tm)
		}
	}
}

func inferFunctionBody(fn *ast.FunctionExpression, tm *TypeMap) {
	inner := map[string]TypeInfo{}
	for _, stmt := range fn.Body {
		inferStatement(stmt, tm, inner)
	}
	if fn.ExpressionBody != nil {
		inferExpression(fn.ExpressionBody, tm, inner)
	}
}

func inferExpression(expr ast.Expression, tm *TypeMap, env map[string]TypeInfo) TypeInfo {
	if expr == nil {
		return TypeInfo{Kind: Unknown}
	}
	var info TypeInfo
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		info = TypeInfo{Kind: Number}
	case *ast.BigIntLiteral:
		info = TypeInfo{Kind: BigIntKind}
	case *ast.StringLiteral:
		info = TypeInfo{Kind: StringKind}
	case *ast.TemplateLiteral:
		for _, sub := range e.Expressions {
			inferExpression(sub, tm, env)
		}
		info = TypeInfo{Kind: StringKind}
	case *ast.BooleanLiteral:
		info = TypeInfo{Kind: Boolean}
	case *ast.NullLiteral:
		info = TypeInfo{Kind: Null}
	case *ast.UndefinedLiteral:
		info = TypeInfo{Kind: Undefined}
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			inferExpression(el, tm, env)
		}
		info = TypeInfo{Kind: ArrayKind}
	case *ast.Identifier:
		if known, ok := env[e.Value]; ok {
			info = known
		} else {
			info = TypeInfo{Kind: Unknown}
		}
	case *ast.NewExpression:
		for _, a := range e.Arguments {
			inferExpression(a.Value, tm, env)
		}
		if ident, ok := e.Callee.(*ast.Identifier); ok {
			info = TypeInfo{Kind: ClassInstance, ClassName: ident.Value}
		} else {
			info = TypeInfo{Kind: Unknown}
		}
	case *ast.BinaryExpression:
		left := inferExpression(e.Left, tm, env)
		inferExpression(e.Right, tm, env)
		switch e.Operator {
		case ast.OpEq, ast.OpNeq, ast.OpEqS, ast.OpNeqS, ast.OpLt, ast.OpGt,
			ast.OpLe, ast.OpGe, ast.OpAnd, ast.OpOr, ast.OpInstOf, ast.OpIn:
			info = TypeInfo{Kind: Boolean}
		case ast.OpAdd:
			if left.Kind == StringKind {
				info = TypeInfo{Kind: StringKind}
			} else {
				info = TypeInfo{Kind: Number}
			}
		default:
			info = TypeInfo{Kind: Number}
		}
	case *ast.CallExpression:
		inferExpression(e.Callee, tm, env)
		for _, a := range e.Arguments {
			inferExpression(a.Value, tm, env)
		}
		info = TypeInfo{Kind: Unknown}
	case *ast.MemberExpression:
		inferExpression(e.Object, tm, env)
		info = TypeInfo{Kind: Unknown}
	case *ast.FunctionExpression:
		inferFunctionBody(e, tm)
		info = TypeInfo{Kind: FunctionKind}
	default:
		info = TypeInfo{Kind: Unknown}
	}
	tm.Set(expr, info)
	return info
}
