// Package parser implements a recursive-descent/Pratt parser that turns a
// internal/lexer token stream into an internal/ast.Program. Like the lexer,
// the parser is an external collaborator from the core's point of view
// (spec §1) — it exists so the repository has a real front end to drive
// the emitter, interpreter, and value model end to end.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/lexer"
	"github.com/tscore-lang/tscore/internal/token"
)

// ParseError is a syntax fault with source position (spec §7 ParseError —
// passed through by this core, not raised by it, but the front end still
// needs to report malformed input to the caller).
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

type Parser struct {
	l     *lexer.Lexer
	cur   token.Token
	peek  token.Token
	peek2 token.Token
	errs  []*ParseError
}

// New creates a Parser over src.
func New(src string) *Parser {
	p := &Parser{l: lexer.New(src)}
	p.next()
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.peek2
	p.peek2 = p.l.Next()
}

func (p *Parser) errorf(format string, args ...any) {
	p.errs = append(p.errs, &ParseError{Pos: p.cur.Pos, Message: fmt.Sprintf(format, args...)})
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []*ParseError { return p.errs }

func (p *Parser) curIs(k token.Kind) bool  { return p.cur.Kind == k }
func (p *Parser) peekIs(k token.Kind) bool { return p.peek.Kind == k }

func (p *Parser) expect(k token.Kind) token.Token {
	if p.cur.Kind != k {
		p.errorf("expected %s, got %q", token.Name(k), p.cur.Literal)
	}
	t := p.cur
	p.next()
	return t
}

func (p *Parser) accept(k token.Kind) bool {
	if p.curIs(k) {
		p.next()
		return true
	}
	return false
}

// skipColonType consumes an optional `: TypeName` annotation. Type syntax
// itself is not modeled in the AST (the checker is external); only the
// textual name is kept where the emitter's stand-in inferencer can use it.
func (p *Parser) skipTypeAnnotation() string {
	if !p.accept(token.COLON) {
		return ""
	}
	name := p.cur.Literal
	// Consume a simple type expression: Ident, Ident[], Ident<...>, unions.
	depth := 0
	for {
		switch p.cur.Kind {
		case token.LT:
			depth++
		case token.GT:
			if depth > 0 {
				depth--
			} else {
				return name
			}
		case token.LBRACKET:
			p.next()
			p.expect(token.RBRACKET)
			continue
		case token.PIPE, token.AMP:
			p.next()
			continue
		case token.IDENT, token.NULL, token.UNDEFINED, token.VOID, token.NUMBER:
			p.next()
			if depth == 0 && !p.curIs(token.LT) && !p.curIs(token.LBRACKET) && !p.curIs(token.PIPE) && !p.curIs(token.AMP) {
				return name
			}
			continue
		default:
			return name
		}
		p.next()
	}
}

// Parse parses the whole input into a Program.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{}
	for !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
			if _, ok := stmt.(*ast.ImportStatement); ok {
				prog.IsModule = true
			}
			if _, ok := stmt.(*ast.ExportStatement); ok {
				prog.IsModule = true
			}
		}
	}
	return prog
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Kind {
	case token.SEMICOLON:
		p.next()
		return nil
	case token.VAR, token.LET, token.CONST:
		return p.parseVarStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.DO:
		return p.parseDoWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.THROW:
		return p.parseThrowStatement()
	case token.TRY:
		return p.parseTryStatement()
	case token.SWITCH:
		return p.parseSwitchStatement()
	case token.FUNCTION:
		return &ast.FunctionDeclaration{BaseNode: ast.BaseNode{Token: p.cur}, Function: p.parseFunctionLiteral(false)}
	case token.ASYNC:
		if p.peekIs(token.FUNCTION) {
			tok := p.cur
			p.next()
			fn := p.parseFunctionLiteral(true)
			return &ast.FunctionDeclaration{BaseNode: ast.BaseNode{Token: tok}, Function: fn}
		}
	case token.CLASS:
		return &ast.ClassDeclaration{BaseNode: ast.BaseNode{Token: p.cur}, Body: p.parseClassBody()}
	case token.IMPORT:
		return p.parseImportStatement()
	case token.EXPORT:
		return p.parseExportStatement()
	case token.IDENT:
		if p.peekIs(token.COLON) {
			return p.parseLabeledStatement()
		}
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	tok := p.expect(token.LBRACE)
	blk := &ast.BlockStatement{BaseNode: ast.BaseNode{Token: tok}}
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		if s := p.parseStatement(); s != nil {
			blk.Statements = append(blk.Statements, s)
		}
	}
	p.expect(token.RBRACE)
	return blk
}

func (p *Parser) parseVarStatement() *ast.VarStatement {
	tok := p.cur
	kind := ast.VarKind(p.cur.Literal)
	p.next()
	stmt := &ast.VarStatement{BaseNode: ast.BaseNode{Token: tok}, Kind: kind}
	for {
		decl := &ast.VarDeclarator{}
		switch p.cur.Kind {
		case token.LBRACKET, token.LBRACE:
			decl.Pattern = p.parseBindingPattern()
		default:
			decl.Name = p.expect(token.IDENT).Literal
		}
		p.skipTypeAnnotation()
		if p.accept(token.ASSIGN) {
			decl.Init = p.parseAssignExpr()
		}
		stmt.Declarations = append(stmt.Declarations, decl)
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.accept(token.SEMICOLON)
	return stmt
}

func (p *Parser) parseBindingPattern() ast.Pattern {
	if p.curIs(token.LBRACKET) {
		tok := p.cur
		p.next()
		pat := &ast.ArrayPattern{BaseNode: ast.BaseNode{Token: tok}}
		for !p.curIs(token.RBRACKET) {
			el := &ast.ArrayPatternElement{}
			if p.curIs(token.COMMA) {
				pat.Elements = append(pat.Elements, el)
				p.next()
				continue
			}
			if p.accept(token.DOTDOTDOT) {
				el.Rest = true
			}
			if p.curIs(token.LBRACKET) || p.curIs(token.LBRACE) {
				el.Target = p.parseBindingPattern()
			} else {
				el.Name = p.expect(token.IDENT).Literal
			}
			if p.accept(token.ASSIGN) {
				el.Default = p.parseAssignExpr()
			}
			pat.Elements = append(pat.Elements, el)
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RBRACKET)
		return pat
	}
	tok := p.expect(token.LBRACE)
	pat := &ast.ObjectPattern{BaseNode: ast.BaseNode{Token: tok}}
	for !p.curIs(token.RBRACE) {
		prop := &ast.ObjectPatternProperty{}
		if p.accept(token.DOTDOTDOT) {
			prop.Rest = true
			prop.Name = p.expect(token.IDENT).Literal
			pat.Properties = append(pat.Properties, prop)
			p.accept(token.COMMA)
			continue
		}
		key := p.expect(token.IDENT).Literal
		prop.Key = key
		prop.Name = key
		if p.accept(token.COLON) {
			if p.curIs(token.LBRACKET) || p.curIs(token.LBRACE) {
				prop.Target = p.parseBindingPattern()
			} else {
				prop.Name = p.expect(token.IDENT).Literal
			}
		}
		if p.accept(token.ASSIGN) {
			prop.Default = p.parseAssignExpr()
		}
		pat.Properties = append(pat.Properties, prop)
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACE)
	return pat
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	tok := p.cur
	expr := p.parseExpression()
	p.accept(token.SEMICOLON)
	return &ast.ExpressionStatement{BaseNode: ast.BaseNode{Token: tok}, Expression: expr}
}

func (p *Parser) parseIfStatement() ast.Statement {
	tok := p.cur
	p.expect(token.IF)
	p.expect(token.LPAREN)
	test := p.parseExpression()
	p.expect(token.RPAREN)
	cons := p.parseStatement()
	stmt := &ast.IfStatement{BaseNode: ast.BaseNode{Token: tok}, Test: test, Consequent: cons}
	if p.accept(token.ELSE) {
		stmt.Alternate = p.parseStatement()
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	tok := p.cur
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	test := p.parseExpression()
	p.expect(token.RPAREN)
	body := p.parseStatement()
	return &ast.WhileStatement{BaseNode: ast.BaseNode{Token: tok}, Test: test, Body: body}
}

func (p *Parser) parseDoWhileStatement() ast.Statement {
	tok := p.cur
	p.expect(token.DO)
	body := p.parseStatement()
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	test := p.parseExpression()
	p.expect(token.RPAREN)
	p.accept(token.SEMICOLON)
	return &ast.DoWhileStatement{BaseNode: ast.BaseNode{Token: tok}, Body: body, Test: test}
}

func (p *Parser) parseForStatement() ast.Statement {
	tok := p.cur
	p.expect(token.FOR)
	isAwait := p.accept(token.AWAIT)
	p.expect(token.LPAREN)

	var kind ast.VarKind
	var name string
	var pattern ast.Pattern
	hasDecl := false
	if p.curIs(token.VAR) || p.curIs(token.LET) || p.curIs(token.CONST) {
		kind = ast.VarKind(p.cur.Literal)
		p.next()
		hasDecl = true
		if p.curIs(token.LBRACKET) || p.curIs(token.LBRACE) {
			pattern = p.parseBindingPattern()
		} else {
			name = p.expect(token.IDENT).Literal
		}
	}

	if hasDecl && p.curIs(token.OF) {
		p.next()
		iterable := p.parseAssignExpr()
		p.expect(token.RPAREN)
		body := p.parseStatement()
		return &ast.ForOfStatement{BaseNode: ast.BaseNode{Token: tok}, Kind: kind, Name: name, Pattern: pattern, Iterable: iterable, Body: body, IsAwait: isAwait}
	}
	if hasDecl && p.curIs(token.IN) {
		p.next()
		obj := p.parseAssignExpr()
		p.expect(token.RPAREN)
		body := p.parseStatement()
		return &ast.ForInStatement{BaseNode: ast.BaseNode{Token: tok}, Kind: kind, Name: name, Object: obj, Body: body}
	}

	var init ast.Node
	if hasDecl {
		decl := &ast.VarDeclarator{Name: name, Pattern: pattern}
		if p.accept(token.ASSIGN) {
			decl.Init = p.parseAssignExpr()
		}
		vs := &ast.VarStatement{BaseNode: ast.BaseNode{Token: tok}, Kind: kind, Declarations: []*ast.VarDeclarator{decl}}
		for p.accept(token.COMMA) {
			d2 := &ast.VarDeclarator{Name: p.expect(token.IDENT).Literal}
			if p.accept(token.ASSIGN) {
				d2.Init = p.parseAssignExpr()
			}
			vs.Declarations = append(vs.Declarations, d2)
		}
		init = vs
	} else if !p.curIs(token.SEMICOLON) {
		init = p.parseExpression()
	}
	p.expect(token.SEMICOLON)
	var test ast.Expression
	if !p.curIs(token.SEMICOLON) {
		test = p.parseExpression()
	}
	p.expect(token.SEMICOLON)
	var update ast.Expression
	if !p.curIs(token.RPAREN) {
		update = p.parseExpression()
	}
	p.expect(token.RPAREN)
	body := p.parseStatement()
	return &ast.ForStatement{BaseNode: ast.BaseNode{Token: tok}, Init: init, Test: test, Update: update, Body: body}
}

func (p *Parser) parseBreakStatement() ast.Statement {
	tok := p.cur
	p.next()
	stmt := &ast.BreakStatement{BaseNode: ast.BaseNode{Token: tok}}
	if p.curIs(token.IDENT) {
		stmt.Label = p.cur.Literal
		p.next()
	}
	p.accept(token.SEMICOLON)
	return stmt
}

func (p *Parser) parseContinueStatement() ast.Statement {
	tok := p.cur
	p.next()
	stmt := &ast.ContinueStatement{BaseNode: ast.BaseNode{Token: tok}}
	if p.curIs(token.IDENT) {
		stmt.Label = p.cur.Literal
		p.next()
	}
	p.accept(token.SEMICOLON)
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	tok := p.cur
	p.next()
	stmt := &ast.ReturnStatement{BaseNode: ast.BaseNode{Token: tok}}
	if !p.curIs(token.SEMICOLON) && !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		stmt.Argument = p.parseExpression()
	}
	p.accept(token.SEMICOLON)
	return stmt
}

func (p *Parser) parseThrowStatement() ast.Statement {
	tok := p.cur
	p.next()
	arg := p.parseExpression()
	p.accept(token.SEMICOLON)
	return &ast.ThrowStatement{BaseNode: ast.BaseNode{Token: tok}, Argument: arg}
}

func (p *Parser) parseTryStatement() ast.Statement {
	tok := p.cur
	p.expect(token.TRY)
	stmt := &ast.TryStatement{BaseNode: ast.BaseNode{Token: tok}, Block: p.parseBlockStatement()}
	if p.accept(token.CATCH) {
		clause := &ast.CatchClause{}
		if p.accept(token.LPAREN) {
			clause.Param = p.expect(token.IDENT).Literal
			p.expect(token.RPAREN)
		}
		clause.Body = p.parseBlockStatement()
		stmt.Catch = clause
	}
	if p.accept(token.FINALLY) {
		stmt.Finally = p.parseBlockStatement()
	}
	return stmt
}

func (p *Parser) parseSwitchStatement() ast.Statement {
	tok := p.cur
	p.expect(token.SWITCH)
	p.expect(token.LPAREN)
	disc := p.parseExpression()
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)
	stmt := &ast.SwitchStatement{BaseNode: ast.BaseNode{Token: tok}, Discriminant: disc}
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		c := &ast.SwitchCase{}
		if p.accept(token.CASE) {
			c.Test = p.parseExpression()
		} else {
			p.expect(token.DEFAULT)
		}
		p.expect(token.COLON)
		for !p.curIs(token.CASE) && !p.curIs(token.DEFAULT) && !p.curIs(token.RBRACE) {
			if s := p.parseStatement(); s != nil {
				c.Statements = append(c.Statements, s)
			}
		}
		stmt.Cases = append(stmt.Cases, c)
	}
	p.expect(token.RBRACE)
	return stmt
}

func (p *Parser) parseLabeledStatement() ast.Statement {
	tok := p.cur
	label := p.cur.Literal
	p.next()
	p.expect(token.COLON)
	body := p.parseStatement()
	return &ast.LabeledStatement{BaseNode: ast.BaseNode{Token: tok}, Label: label, Body: body}
}

func (p *Parser) parseImportStatement() ast.Statement {
	tok := p.cur
	p.expect(token.IMPORT)
	stmt := &ast.ImportStatement{BaseNode: ast.BaseNode{Token: tok}}
	if p.accept(token.STAR) {
		p.expect(token.AS)
		stmt.NamespaceAs = p.expect(token.IDENT).Literal
		p.expect(token.FROM)
		stmt.Source = p.expect(token.STRING).Literal
		p.accept(token.SEMICOLON)
		return stmt
	}
	if p.curIs(token.IDENT) {
		def := p.cur.Literal
		p.next()
		stmt.Specifiers = append(stmt.Specifiers, &ast.ImportSpecifier{Imported: "default", Local: def})
		p.accept(token.COMMA)
	}
	if p.accept(token.LBRACE) {
		for !p.curIs(token.RBRACE) {
			name := p.expect(token.IDENT).Literal
			local := name
			if p.accept(token.AS) {
				local = p.expect(token.IDENT).Literal
			}
			stmt.Specifiers = append(stmt.Specifiers, &ast.ImportSpecifier{Imported: name, Local: local})
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RBRACE)
	}
	p.expect(token.FROM)
	stmt.Source = p.expect(token.STRING).Literal
	p.accept(token.SEMICOLON)
	return stmt
}

func (p *Parser) parseExportStatement() ast.Statement {
	tok := p.cur
	p.expect(token.EXPORT)
	stmt := &ast.ExportStatement{BaseNode: ast.BaseNode{Token: tok}}
	if p.accept(token.DEFAULT) {
		stmt.IsDefault = true
		stmt.DefaultExpr = p.parseAssignExpr()
		p.accept(token.SEMICOLON)
		return stmt
	}
	if p.curIs(token.LBRACE) {
		p.next()
		for !p.curIs(token.RBRACE) {
			local := p.expect(token.IDENT).Literal
			exported := local
			if p.accept(token.AS) {
				exported = p.expect(token.IDENT).Literal
			}
			stmt.Specifiers = append(stmt.Specifiers, &ast.ExportSpecifier{Local: local, Exported: exported})
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RBRACE)
		p.accept(token.SEMICOLON)
		return stmt
	}
	stmt.Decl = p.parseStatement()
	return stmt
}

// parseFunctionLiteral parses the shared shape of function declarations and
// expressions (name optional depending on call site).
func (p *Parser) parseFunctionLiteral(isAsync bool) *ast.FunctionExpression {
	p.expect(token.FUNCTION)
	fn := &ast.FunctionExpression{IsAsync: isAsync}
	if p.accept(token.STAR) {
		fn.IsGenerator = true
	}
	if p.curIs(token.IDENT) {
		fn.Name = p.cur.Literal
		p.next()
	}
	fn.Params = p.parseParamList()
	p.skipTypeAnnotation()
	fn.Body = p.parseBlockStatement().Statements
	return fn
}

func (p *Parser) parseParamList() []*ast.Param {
	p.expect(token.LPAREN)
	var params []*ast.Param
	for !p.curIs(token.RPAREN) {
		param := &ast.Param{}
		if p.accept(token.DOTDOTDOT) {
			param.Rest = true
		}
		if p.curIs(token.LBRACKET) || p.curIs(token.LBRACE) {
			param.Pattern = p.parseBindingPattern()
		} else {
			param.Name = p.expect(token.IDENT).Literal
		}
		p.accept(token.QUESTION)
		param.TypeName = p.skipTypeAnnotation()
		if p.accept(token.ASSIGN) {
			param.Default = p.parseAssignExpr()
		}
		params = append(params, param)
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return params
}

func (p *Parser) parseClassBody() *ast.ClassBody {
	p.expect(token.CLASS)
	body := &ast.ClassBody{}
	if p.curIs(token.IDENT) {
		body.Name = p.cur.Literal
		p.next()
	}
	if p.accept(token.EXTENDS) {
		body.SuperClass = p.parseLeftHandSide()
	}
	if p.accept(token.IMPLEMENTS) {
		body.Implements = append(body.Implements, p.expect(token.IDENT).Literal)
		for p.accept(token.COMMA) {
			body.Implements = append(body.Implements, p.expect(token.IDENT).Literal)
		}
	}
	p.expect(token.LBRACE)
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		if p.accept(token.SEMICOLON) {
			continue
		}
		p.parseClassMember(body)
	}
	p.expect(token.RBRACE)
	return body
}

func (p *Parser) parseClassMember(body *ast.ClassBody) {
	isStatic := false
	isReadonly := false
	isAsync := false
	isGenerator := false
	kind := ast.MethodOrdinary

	for {
		switch p.cur.Kind {
		case token.STATIC:
			isStatic = true
			p.next()
			continue
		case token.PUBLIC, token.PROTECTED, token.PRIVATE, token.ABSTRACT:
			p.next()
			continue
		case token.READONLY:
			isReadonly = true
			p.next()
			continue
		case token.ASYNC:
			isAsync = true
			p.next()
			continue
		case token.STAR:
			isGenerator = true
			p.next()
			continue
		case token.GET:
			if !p.peekIs(token.LPAREN) {
				kind = ast.MethodGetter
				p.next()
			}
		case token.SET:
			kind = ast.MethodSetter
			p.next()
		}
		break
	}

	isPrivate := false
	var name string
	if p.curIs(token.PRIVATE_IDENT) {
		isPrivate = true
		name = p.cur.Literal
		p.next()
	} else {
		name = p.cur.Literal
		p.next()
	}

	if p.curIs(token.LPAREN) {
		fn := &ast.FunctionExpression{Name: name, IsAsync: isAsync, IsGenerator: isGenerator}
		fn.Params = p.parseParamList()
		p.skipTypeAnnotation()
		fn.Body = p.parseBlockStatement().Statements
		mk := kind
		if name == "constructor" {
			mk = ast.MethodConstructor
		}
		body.Methods = append(body.Methods, &ast.MethodDeclaration{
			Name: name, IsPrivate: isPrivate, IsStatic: isStatic, Kind: mk, Function: fn,
		})
		return
	}

	field := &ast.FieldDeclaration{Name: name, IsPrivate: isPrivate, IsStatic: isStatic, IsReadonly: isReadonly}
	field.TypeName = p.skipTypeAnnotation()
	if p.accept(token.ASSIGN) {
		field.Initializer = p.parseAssignExpr()
	}
	p.accept(token.SEMICOLON)
	body.Fields = append(body.Fields, field)
}

// numberFrom parses a NUMBER token's literal text (supports 0x/0b/0o and
// underscores) into a float64, matching spec §3's "64-bit float is the
// sole numeric type".
func numberFrom(lit string) float64 {
	clean := strings.ReplaceAll(lit, "_", "")
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		v, _ := strconv.ParseInt(clean[2:], 16, 64)
		return float64(v)
	}
	if strings.HasPrefix(clean, "0b") || strings.HasPrefix(clean, "0B") {
		v, _ := strconv.ParseInt(clean[2:], 2, 64)
		return float64(v)
	}
	if strings.HasPrefix(clean, "0o") || strings.HasPrefix(clean, "0O") {
		v, _ := strconv.ParseInt(clean[2:], 8, 64)
		return float64(v)
	}
	v, _ := strconv.ParseFloat(clean, 64)
	return v
}
