package parser

import (
	"github.com/tscore-lang/tscore/internal/ast"
	"github.com/tscore-lang/tscore/internal/token"
)

// precedence levels, lowest to highest (Pratt parsing, spec §3/§4.3 binary
// lowering order mirrors standard TypeScript operator precedence).
const (
	precLowest = iota
	precComma
	precAssign
	precConditional
	precCoalesce
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precExponent
	precUnary
	precPostfix
	precCall
)

var binaryPrecedence = map[token.Kind]int{
	token.QUESTION_QUESTION: precCoalesce,
	token.OR:                precOr,
	token.AND:               precAnd,
	token.PIPE:              precBitOr,
	token.CARET:             precBitXor,
	token.AMP:               precBitAnd,
	token.EQ:                precEquality,
	token.NEQ:               precEquality,
	token.EQ_STRICT:         precEquality,
	token.NEQ_STRICT:        precEquality,
	token.LT:                precRelational,
	token.GT:                precRelational,
	token.LE:                precRelational,
	token.GE:                precRelational,
	token.INSTANCEOF:        precRelational,
	token.IN:                precRelational,
	token.SHL:               precShift,
	token.SHR:               precShift,
	token.USHR:              precShift,
	token.PLUS:              precAdditive,
	token.MINUS:             precAdditive,
	token.STAR:              precMultiplicative,
	token.SLASH:             precMultiplicative,
	token.PERCENT:           precMultiplicative,
	token.STARSTAR:          precExponent,
}

var binaryOps = map[token.Kind]ast.BinaryOp{
	token.QUESTION_QUESTION: ast.OpCoalesce,
	token.AND:                ast.OpAnd,
	token.OR:                 ast.OpOr,
	token.PIPE:               ast.OpBitOr,
	token.CARET:              ast.OpBitXor,
	token.AMP:                ast.OpBitAnd,
	token.EQ:                 ast.OpEq,
	token.NEQ:                ast.OpNeq,
	token.EQ_STRICT:          ast.OpEqS,
	token.NEQ_STRICT:         ast.OpNeqS,
	token.LT:                 ast.OpLt,
	token.GT:                 ast.OpGt,
	token.LE:                 ast.OpLe,
	token.GE:                 ast.OpGe,
	token.INSTANCEOF:         ast.OpInstOf,
	token.IN:                 ast.OpIn,
	token.SHL:                ast.OpShl,
	token.SHR:                ast.OpShr,
	token.USHR:               ast.OpUShr,
	token.PLUS:               ast.OpAdd,
	token.MINUS:              ast.OpSub,
	token.STAR:               ast.OpMul,
	token.SLASH:              ast.OpDiv,
	token.PERCENT:            ast.OpMod,
	token.STARSTAR:           ast.OpPow,
}

var assignOps = map[token.Kind]string{
	token.ASSIGN:               "=",
	token.PLUS_ASSIGN:          "+=",
	token.MINUS_ASSIGN:         "-=",
	token.STAR_ASSIGN:          "*=",
	token.SLASH_ASSIGN:         "/=",
	token.PERCENT_ASSIGN:       "%=",
	token.STARSTAR_ASSIGN:      "**=",
	token.AND_ASSIGN:           "&&=",
	token.OR_ASSIGN:            "||=",
	token.QUESTION_QUESTION_EQ: "??=",
	token.AMP_ASSIGN:           "&=",
	token.PIPE_ASSIGN:          "|=",
	token.CARET_ASSIGN:         "^=",
	token.SHL_ASSIGN:           "<<=",
	token.SHR_ASSIGN:           ">>=",
	token.USHR_ASSIGN:          ">>>=",
}

// parseExpression parses a full expression including the comma operator.
func (p *Parser) parseExpression() ast.Expression {
	expr := p.parseAssignExpr()
	if p.curIs(token.COMMA) {
		tok := p.cur
		seq := &ast.SequenceExpression{BaseNode: ast.BaseNode{Token: tok}, Expressions: []ast.Expression{expr}}
		for p.accept(token.COMMA) {
			seq.Expressions = append(seq.Expressions, p.parseAssignExpr())
		}
		return seq
	}
	return expr
}

// parseAssignExpr parses assignment, the ternary, and everything of higher
// precedence — the entry point used everywhere a single argument/initializer
// is expected (spec §4.3 emits assignment targets via the dispatch chain,
// not a dedicated AST shape, but the parser still needs the distinction).
func (p *Parser) parseAssignExpr() ast.Expression {
	if p.curIs(token.YIELD) {
		return p.parseYieldExpr()
	}
	if arrow := p.tryParseArrow(); arrow != nil {
		return arrow
	}
	left := p.parseConditional()
	if op, ok := assignOps[p.cur.Kind]; ok {
		tok := p.cur
		p.next()
		value := p.parseAssignExpr()
		return &ast.AssignmentExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: op, Target: left, Value: value}
	}
	return left
}

func (p *Parser) parseYieldExpr() ast.Expression {
	tok := p.cur
	p.expect(token.YIELD)
	delegate := p.accept(token.STAR)
	y := &ast.YieldExpression{BaseNode: ast.BaseNode{Token: tok}, Delegate: delegate}
	if !p.curIs(token.SEMICOLON) && !p.curIs(token.RPAREN) && !p.curIs(token.RBRACE) &&
		!p.curIs(token.RBRACKET) && !p.curIs(token.COMMA) && !p.curIs(token.EOF) {
		y.Argument = p.parseAssignExpr()
	}
	return y
}

func (p *Parser) parseConditional() ast.Expression {
	tok := p.cur
	test := p.parseBinary(precLowest + 1)
	if p.accept(token.QUESTION) {
		cons := p.parseAssignExpr()
		p.expect(token.COLON)
		alt := p.parseAssignExpr()
		return &ast.ConditionalExpression{BaseNode: ast.BaseNode{Token: tok}, Test: test, Consequent: cons, Alternate: alt}
	}
	return test
}

func (p *Parser) parseBinary(minPrec int) ast.Expression {
	left := p.parseUnary()
	for {
		prec, ok := binaryPrecedence[p.cur.Kind]
		if !ok || prec < minPrec {
			return left
		}
		tok := p.cur
		op := binaryOps[p.cur.Kind]
		nextMin := prec + 1
		if p.cur.Kind == token.STARSTAR {
			nextMin = prec // right-associative
		}
		p.next()
		right := p.parseBinary(nextMin)
		left = &ast.BinaryExpression{BaseNode: ast.BaseNode{Token: tok}, Left: left, Operator: op, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expression {
	tok := p.cur
	switch p.cur.Kind {
	case token.PLUS:
		p.next()
		return &ast.UnaryExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: ast.UnaryPlus, Operand: p.parseUnary()}
	case token.MINUS:
		p.next()
		return &ast.UnaryExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: ast.UnaryMinus, Operand: p.parseUnary()}
	case token.NOT:
		p.next()
		return &ast.UnaryExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: ast.UnaryNot, Operand: p.parseUnary()}
	case token.TILDE:
		p.next()
		return &ast.UnaryExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: ast.UnaryBitNot, Operand: p.parseUnary()}
	case token.TYPEOF:
		p.next()
		return &ast.UnaryExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: ast.UnaryTypeof, Operand: p.parseUnary()}
	case token.VOID:
		p.next()
		return &ast.UnaryExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: ast.UnaryVoid, Operand: p.parseUnary()}
	case token.DELETE:
		p.next()
		return &ast.UnaryExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: ast.UnaryDelete, Operand: p.parseUnary()}
	case token.AWAIT:
		p.next()
		return &ast.AwaitExpression{BaseNode: ast.BaseNode{Token: tok}, Argument: p.parseUnary()}
	case token.INC, token.DEC:
		op := p.cur.Literal
		p.next()
		operand := p.parseUnary()
		return &ast.UpdateExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: op, Operand: operand, Prefix: true}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parseLeftHandSide()
	if p.curIs(token.INC) || p.curIs(token.DEC) {
		tok := p.cur
		op := p.cur.Literal
		p.next()
		return &ast.UpdateExpression{BaseNode: ast.BaseNode{Token: tok}, Operator: op, Operand: expr, Prefix: false}
	}
	return expr
}

// parseLeftHandSide parses a primary expression followed by any chain of
// member accesses, computed member accesses, and calls — the shape spec
// §4.4's dispatch chain keys its priority decision on (spec §4.4 rules are
// decided per CallExpression node, not here).
func (p *Parser) parseLeftHandSide() ast.Expression {
	var expr ast.Expression
	if p.curIs(token.NEW) {
		expr = p.parseNewExpression()
	} else {
		expr = p.parsePrimary()
	}
	for {
		switch p.cur.Kind {
		case token.DOT:
			tok := p.cur
			p.next()
			if p.curIs(token.PRIVATE_IDENT) {
				name := p.cur.Literal
				p.next()
				expr = &ast.PrivateMemberExpression{BaseNode: ast.BaseNode{Token: tok}, Object: expr, Name: name}
				continue
			}
			prop := &ast.Identifier{BaseNode: ast.BaseNode{Token: p.cur}, Value: p.cur.Literal}
			p.next()
			expr = &ast.MemberExpression{BaseNode: ast.BaseNode{Token: tok}, Object: expr, Property: prop}
		case token.QUESTION_DOT:
			tok := p.cur
			p.next()
			if p.curIs(token.LPAREN) {
				expr = p.finishCall(expr, tok, true)
				continue
			}
			if p.curIs(token.LBRACKET) {
				p.next()
				idx := p.parseExpression()
				p.expect(token.RBRACKET)
				expr = &ast.MemberExpression{BaseNode: ast.BaseNode{Token: tok}, Object: expr, Property: idx, Computed: true, Optional: true}
				continue
			}
			prop := &ast.Identifier{BaseNode: ast.BaseNode{Token: p.cur}, Value: p.cur.Literal}
			p.next()
			expr = &ast.MemberExpression{BaseNode: ast.BaseNode{Token: tok}, Object: expr, Property: prop, Optional: true}
		case token.LBRACKET:
			tok := p.cur
			p.next()
			idx := p.parseExpression()
			p.expect(token.RBRACKET)
			expr = &ast.MemberExpression{BaseNode: ast.BaseNode{Token: tok}, Object: expr, Property: idx, Computed: true}
		case token.LPAREN:
			expr = p.finishCall(expr, p.cur, false)
		default:
			return expr
		}
	}
}

func (p *Parser) parseNewExpression() ast.Expression {
	tok := p.cur
	p.expect(token.NEW)
	callee := p.parseMemberOnlyChain()
	ne := &ast.NewExpression{BaseNode: ast.BaseNode{Token: tok}, Callee: callee}
	if p.curIs(token.LPAREN) {
		ne.Arguments = p.parseArguments()
	}
	return ne
}

// parseMemberOnlyChain parses member accesses without call parens, used for
// `new a.b.c(...)` where the call applies to the whole chain.
func (p *Parser) parseMemberOnlyChain() ast.Expression {
	var expr ast.Expression
	if p.curIs(token.NEW) {
		expr = p.parseNewExpression()
	} else {
		expr = p.parsePrimary()
	}
	for p.curIs(token.DOT) || p.curIs(token.LBRACKET) {
		if p.curIs(token.DOT) {
			tok := p.cur
			p.next()
			prop := &ast.Identifier{BaseNode: ast.BaseNode{Token: p.cur}, Value: p.cur.Literal}
			p.next()
			expr = &ast.MemberExpression{BaseNode: ast.BaseNode{Token: tok}, Object: expr, Property: prop}
		} else {
			tok := p.cur
			p.next()
			idx := p.parseExpression()
			p.expect(token.RBRACKET)
			expr = &ast.MemberExpression{BaseNode: ast.BaseNode{Token: tok}, Object: expr, Property: idx, Computed: true}
		}
	}
	return expr
}

func (p *Parser) finishCall(callee ast.Expression, tok token.Token, optional bool) ast.Expression {
	args := p.parseArguments()
	return &ast.CallExpression{BaseNode: ast.BaseNode{Token: tok}, Callee: callee, Arguments: args, Optional: optional}
}

func (p *Parser) parseArguments() []*ast.Argument {
	p.expect(token.LPAREN)
	var args []*ast.Argument
	for !p.curIs(token.RPAREN) {
		arg := &ast.Argument{}
		if p.accept(token.DOTDOTDOT) {
			arg.Spread = true
		}
		arg.Value = p.parseAssignExpr()
		args = append(args, arg)
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return args
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.cur
	switch p.cur.Kind {
	case token.NUMBER:
		p.next()
		return &ast.NumberLiteral{BaseNode: ast.BaseNode{Token: tok}, Value: numberFrom(tok.Literal)}
	case token.BIGINT:
		p.next()
		return &ast.BigIntLiteral{BaseNode: ast.BaseNode{Token: tok}, Value: tok.Literal}
	case token.STRING:
		p.next()
		return &ast.StringLiteral{BaseNode: ast.BaseNode{Token: tok}, Value: tok.Literal}
	case token.TRUE:
		p.next()
		return &ast.BooleanLiteral{BaseNode: ast.BaseNode{Token: tok}, Value: true}
	case token.FALSE:
		p.next()
		return &ast.BooleanLiteral{BaseNode: ast.BaseNode{Token: tok}, Value: false}
	case token.NULL:
		p.next()
		return &ast.NullLiteral{BaseNode: ast.BaseNode{Token: tok}}
	case token.UNDEFINED:
		p.next()
		return &ast.UndefinedLiteral{BaseNode: ast.BaseNode{Token: tok}}
	case token.THIS:
		p.next()
		return &ast.ThisExpression{BaseNode: ast.BaseNode{Token: tok}}
	case token.SUPER:
		p.next()
		return &ast.SuperExpression{BaseNode: ast.BaseNode{Token: tok}}
	case token.IDENT:
		p.next()
		return &ast.Identifier{BaseNode: ast.BaseNode{Token: tok}, Value: tok.Literal}
	case token.PRIVATE_IDENT:
		p.next()
		return &ast.Identifier{BaseNode: ast.BaseNode{Token: tok}, Value: tok.Literal}
	case token.TEMPLATE_NOSUB:
		p.next()
		return &ast.TemplateLiteral{BaseNode: ast.BaseNode{Token: tok}, Quasis: []string{tok.Literal}}
	case token.TEMPLATE_HEAD:
		return p.parseTemplateLiteral(tok)
	case token.LPAREN:
		p.next()
		expr := p.parseExpression()
		p.expect(token.RPAREN)
		return expr
	case token.LBRACKET:
		return p.parseArrayLiteral()
	case token.LBRACE:
		return p.parseObjectLiteral()
	case token.FUNCTION:
		return p.parseFunctionLiteral(false)
	case token.ASYNC:
		if p.peekIs(token.FUNCTION) {
			p.next()
			return p.parseFunctionLiteral(true)
		}
		p.next()
		return &ast.Identifier{BaseNode: ast.BaseNode{Token: tok}, Value: "async"}
	case token.CLASS:
		return &ast.ClassExpression{BaseNode: ast.BaseNode{Token: tok}, Body: p.parseClassBody()}
	case token.IMPORT:
		p.next()
		p.expect(token.LPAREN)
		src := p.parseAssignExpr()
		p.expect(token.RPAREN)
		return &ast.DynamicImportExpression{BaseNode: ast.BaseNode{Token: tok}, Source: src}
	}
	p.errorf("unexpected token %q in expression", p.cur.Literal)
	p.next()
	return &ast.UndefinedLiteral{BaseNode: ast.BaseNode{Token: tok}}
}

func (p *Parser) parseTemplateLiteral(tok token.Token) ast.Expression {
	lit := &ast.TemplateLiteral{BaseNode: ast.BaseNode{Token: tok}}
	lit.Quasis = append(lit.Quasis, p.cur.Literal)
	p.next() // consume TEMPLATE_HEAD
	for {
		lit.Expressions = append(lit.Expressions, p.parseExpression())
		next := p.l.ResumeTemplate()
		p.cur = next
		p.peek = p.l.Next()
		p.peek2 = p.l.Next()
		lit.Quasis = append(lit.Quasis, p.cur.Literal)
		if p.cur.Kind == token.TEMPLATE_TAIL || p.cur.Kind == token.EOF {
			p.next()
			return lit
		}
		p.next() // consume TEMPLATE_MIDDLE and continue
	}
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.expect(token.LBRACKET)
	lit := &ast.ArrayLiteral{BaseNode: ast.BaseNode{Token: tok}}
	for !p.curIs(token.RBRACKET) {
		if p.curIs(token.COMMA) {
			lit.Elements = append(lit.Elements, nil)
			lit.Spreads = append(lit.Spreads, false)
			p.next()
			continue
		}
		spread := p.accept(token.DOTDOTDOT)
		lit.Elements = append(lit.Elements, p.parseAssignExpr())
		lit.Spreads = append(lit.Spreads, spread)
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACKET)
	return lit
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	tok := p.expect(token.LBRACE)
	lit := &ast.ObjectLiteral{BaseNode: ast.BaseNode{Token: tok}}
	for !p.curIs(token.RBRACE) {
		prop := &ast.ObjectProperty{}
		if p.accept(token.DOTDOTDOT) {
			prop.IsSpread = true
			prop.Value = p.parseAssignExpr()
			lit.Properties = append(lit.Properties, prop)
			if !p.accept(token.COMMA) {
				break
			}
			continue
		}
		if p.curIs(token.GET) && !p.peekIs(token.COLON) && !p.peekIs(token.COMMA) && !p.peekIs(token.RBRACE) && !p.peekIs(token.LPAREN) {
			p.next()
			prop.IsGetter = true
		} else if p.curIs(token.SET) && !p.peekIs(token.COLON) && !p.peekIs(token.COMMA) && !p.peekIs(token.RBRACE) && !p.peekIs(token.LPAREN) {
			p.next()
			prop.IsSetter = true
		}

		if p.curIs(token.LBRACKET) {
			p.next()
			prop.Key = p.parseAssignExpr()
			p.expect(token.RBRACKET)
			prop.Computed = true
		} else {
			keyTok := p.cur
			prop.Key = &ast.Identifier{BaseNode: ast.BaseNode{Token: keyTok}, Value: keyTok.Literal}
			p.next()
		}

		switch {
		case p.curIs(token.LPAREN):
			prop.IsMethod = true || prop.IsGetter || prop.IsSetter
			fn := &ast.FunctionExpression{}
			fn.Params = p.parseParamList()
			p.skipTypeAnnotation()
			fn.Body = p.parseBlockStatement().Statements
			prop.Value = fn
		case p.accept(token.COLON):
			prop.Value = p.parseAssignExpr()
		default:
			prop.Shorthand = true
			if ident, ok := prop.Key.(*ast.Identifier); ok {
				prop.Value = &ast.Identifier{BaseNode: ident.BaseNode, Value: ident.Value}
			}
		}
		lit.Properties = append(lit.Properties, prop)
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACE)
	return lit
}

// tryParseArrow attempts to parse an arrow function at the current position,
// backtracking (by re-lexing from a saved snapshot) if the parenthesized
// head turns out not to be followed by `=>`. Returns nil when the current
// position is not an arrow function.
func (p *Parser) tryParseArrow() ast.Expression {
	if p.curIs(token.IDENT) && p.peekIs(token.ARROW) {
		tok := p.cur
		name := p.cur.Literal
		p.next()
		p.next() // consume =>
		return p.finishArrowBody(tok, []*ast.Param{{Name: name}}, false)
	}
	if p.curIs(token.ASYNC) && p.peekIs(token.IDENT) && p.peek2.Kind == token.ARROW {
		tok := p.cur
		p.next()
		name := p.cur.Literal
		p.next()
		p.next()
		return p.finishArrowBody(tok, []*ast.Param{{Name: name}}, true)
	}
	if p.curIs(token.LPAREN) || (p.curIs(token.ASYNC) && p.peekIs(token.LPAREN)) {
		isAsync := p.curIs(token.ASYNC)
		lexState := p.l.Save()
		curSnap, peekSnap, peek2Snap := p.cur, p.peek, p.peek2
		errsLen := len(p.errs)
		tok := p.cur
		if isAsync {
			p.next()
		}
		params, ok := p.tryParseParenParamList()
		if ok {
			p.skipTypeAnnotation()
			if p.curIs(token.ARROW) {
				p.next()
				return p.finishArrowBody(tok, params, isAsync)
			}
		}
		p.l.Restore(lexState)
		p.cur, p.peek, p.peek2 = curSnap, peekSnap, peek2Snap
		p.errs = p.errs[:errsLen]
	}
	return nil
}

// tryParseParenParamList best-effort parses `(a, b = 1, ...c)` as a param
// list, returning ok=false (caller restores the snapshot) on any shape that
// does not look like one, so the caller can fall back to a parenthesized
// expression instead.
func (p *Parser) tryParseParenParamList() (params []*ast.Param, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if !p.curIs(token.LPAREN) {
		return nil, false
	}
	return p.parseParamList(), true
}

func (p *Parser) finishArrowBody(tok token.Token, params []*ast.Param, isAsync bool) ast.Expression {
	fn := &ast.FunctionExpression{BaseNode: ast.BaseNode{Token: tok}, Params: params, IsArrow: true, IsAsync: isAsync}
	if p.curIs(token.LBRACE) {
		fn.Body = p.parseBlockStatement().Statements
	} else {
		fn.ExpressionBody = p.parseAssignExpr()
	}
	return fn
}
