package parser

import (
	"testing"

	"github.com/tscore-lang/tscore/internal/ast"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(src)
	prog := p.Parse()
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, p.Errors())
	}
	return prog
}

func TestParseVarAndArithmetic(t *testing.T) {
	prog := parseProgram(t, "let x = 1 + 2 * 3;")
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	vs, ok := prog.Statements[0].(*ast.VarStatement)
	if !ok {
		t.Fatalf("expected VarStatement, got %T", prog.Statements[0])
	}
	bin, ok := vs.Declarations[0].Init.(*ast.BinaryExpression)
	if !ok {
		t.Fatalf("expected BinaryExpression init, got %T", vs.Declarations[0].Init)
	}
	if bin.Operator != ast.OpAdd {
		t.Fatalf("expected top-level '+' (precedence climbing), got %s", bin.Operator)
	}
	if _, ok := bin.Right.(*ast.BinaryExpression); !ok {
		t.Fatalf("expected '*' to bind tighter than '+', got %T", bin.Right)
	}
}

func TestParseArrowFunctionSingleParam(t *testing.T) {
	prog := parseProgram(t, "const f = x => x + 1;")
	vs := prog.Statements[0].(*ast.VarStatement)
	fn, ok := vs.Declarations[0].Init.(*ast.FunctionExpression)
	if !ok || !fn.IsArrow {
		t.Fatalf("expected arrow function, got %T", vs.Declarations[0].Init)
	}
	if len(fn.Params) != 1 || fn.Params[0].Name != "x" {
		t.Fatalf("unexpected params: %+v", fn.Params)
	}
	if fn.ExpressionBody == nil {
		t.Fatalf("expected expression body")
	}
}

func TestParseArrowFunctionParenParams(t *testing.T) {
	prog := parseProgram(t, "const add = (a, b) => { return a + b; };")
	vs := prog.Statements[0].(*ast.VarStatement)
	fn := vs.Declarations[0].Init.(*ast.FunctionExpression)
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
	if len(fn.Body) != 1 {
		t.Fatalf("expected block body with 1 statement")
	}
}

func TestParseParenthesizedExpressionNotArrow(t *testing.T) {
	prog := parseProgram(t, "const y = (1 + 2) * 3;")
	vs := prog.Statements[0].(*ast.VarStatement)
	bin, ok := vs.Declarations[0].Init.(*ast.BinaryExpression)
	if !ok || bin.Operator != ast.OpMul {
		t.Fatalf("expected top-level '*', got %+v", vs.Declarations[0].Init)
	}
}

func TestParseClassWithPrivateFieldAndMethod(t *testing.T) {
	src := `
	class Counter {
		#count = 0;
		constructor(start) {
			this.#count = start;
		}
		increment() {
			this.#count++;
			return this.#count;
		}
	}`
	prog := parseProgram(t, src)
	cd, ok := prog.Statements[0].(*ast.ClassDeclaration)
	if !ok {
		t.Fatalf("expected ClassDeclaration, got %T", prog.Statements[0])
	}
	if len(cd.Body.Fields) != 1 || !cd.Body.Fields[0].IsPrivate {
		t.Fatalf("expected one private field, got %+v", cd.Body.Fields)
	}
	if len(cd.Body.Methods) != 2 {
		t.Fatalf("expected constructor + increment, got %d methods", len(cd.Body.Methods))
	}
}

func TestParseTemplateLiteral(t *testing.T) {
	prog := parseProgram(t, "const s = `hello ${name}!`;")
	vs := prog.Statements[0].(*ast.VarStatement)
	tmpl, ok := vs.Declarations[0].Init.(*ast.TemplateLiteral)
	if !ok {
		t.Fatalf("expected TemplateLiteral, got %T", vs.Declarations[0].Init)
	}
	if len(tmpl.Quasis) != 2 || len(tmpl.Expressions) != 1 {
		t.Fatalf("unexpected template shape: %+v", tmpl)
	}
	if tmpl.Quasis[0] != "hello " || tmpl.Quasis[1] != "!" {
		t.Fatalf("unexpected quasis: %q %q", tmpl.Quasis[0], tmpl.Quasis[1])
	}
}

func TestParseForOfAndDestructuring(t *testing.T) {
	prog := parseProgram(t, "for (const [a, b] of pairs) { sum += a + b; }")
	fo, ok := prog.Statements[0].(*ast.ForOfStatement)
	if !ok {
		t.Fatalf("expected ForOfStatement, got %T", prog.Statements[0])
	}
	pat, ok := fo.Pattern.(*ast.ArrayPattern)
	if !ok || len(pat.Elements) != 2 {
		t.Fatalf("expected 2-element array pattern, got %+v", fo.Pattern)
	}
}

func TestParseTryCatchFinally(t *testing.T) {
	prog := parseProgram(t, `
	try {
		risky();
	} catch (e) {
		handle(e);
	} finally {
		cleanup();
	}`)
	ts, ok := prog.Statements[0].(*ast.TryStatement)
	if !ok {
		t.Fatalf("expected TryStatement, got %T", prog.Statements[0])
	}
	if ts.Catch == nil || ts.Catch.Param != "e" {
		t.Fatalf("expected catch clause binding 'e', got %+v", ts.Catch)
	}
	if ts.Finally == nil {
		t.Fatalf("expected finally block")
	}
}

func TestParseAsyncFunctionAndAwait(t *testing.T) {
	prog := parseProgram(t, `
	async function load(url) {
		const res = await fetch(url);
		return res;
	}`)
	fd, ok := prog.Statements[0].(*ast.FunctionDeclaration)
	if !ok || !fd.Function.IsAsync {
		t.Fatalf("expected async FunctionDeclaration, got %+v", prog.Statements[0])
	}
}

func TestParseGeneratorYieldDelegate(t *testing.T) {
	prog := parseProgram(t, `
	function* gen() {
		yield 1;
		yield* other();
	}`)
	fd := prog.Statements[0].(*ast.FunctionDeclaration)
	if !fd.Function.IsGenerator {
		t.Fatalf("expected generator function")
	}
	es, ok := fd.Function.Body[1].(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("expected expression statement, got %T", fd.Function.Body[1])
	}
	y, ok := es.Expression.(*ast.YieldExpression)
	if !ok || !y.Delegate {
		t.Fatalf("expected yield* delegate expression, got %+v", es.Expression)
	}
}

func TestParseOptionalChainingAndNullishCoalescing(t *testing.T) {
	prog := parseProgram(t, "const v = a?.b?.c ?? 'fallback';")
	vs := prog.Statements[0].(*ast.VarStatement)
	bin, ok := vs.Declarations[0].Init.(*ast.BinaryExpression)
	if !ok || bin.Operator != ast.OpCoalesce {
		t.Fatalf("expected top-level '??', got %+v", vs.Declarations[0].Init)
	}
	member, ok := bin.Left.(*ast.MemberExpression)
	if !ok || !member.Optional {
		t.Fatalf("expected optional member chain on left, got %+v", bin.Left)
	}
}

func TestParseImportExportStatements(t *testing.T) {
	prog := parseProgram(t, `
	import { readFile } from "fs";
	export const answer = 42;`)
	if !prog.IsModule {
		t.Fatalf("expected IsModule to be true")
	}
	imp, ok := prog.Statements[0].(*ast.ImportStatement)
	if !ok || len(imp.Specifiers) != 1 || imp.Specifiers[0].Local != "readFile" {
		t.Fatalf("unexpected import statement: %+v", prog.Statements[0])
	}
	exp, ok := prog.Statements[1].(*ast.ExportStatement)
	if !ok || exp.Decl == nil {
		t.Fatalf("unexpected export statement: %+v", prog.Statements[1])
	}
}
