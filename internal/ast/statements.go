package ast

type VarKind string

const (
	VarVar   VarKind = "var"
	VarLet   VarKind = "let"
	VarConst VarKind = "const"
)

type VarDeclarator struct {
	Name    string
	Pattern Pattern // non-nil for `let [a, b] = ...` / `let {a, b} = ...`
	Init    Expression
}

type VarStatement struct {
	BaseNode
	Kind         VarKind
	Declarations []*VarDeclarator
}

func (v *VarStatement) statementNode() {}
func (v *VarStatement) String() string { return string(v.Kind) + " ..." }

type ExpressionStatement struct {
	BaseNode
	Expression Expression
}

func (e *ExpressionStatement) statementNode() {}
func (e *ExpressionStatement) String() string { return e.Expression.String() + ";" }

type BlockStatement struct {
	BaseNode
	Statements []Statement
}

func (b *BlockStatement) statementNode() {}
func (b *BlockStatement) String() string { return "{ ... }" }

type IfStatement struct {
	BaseNode
	Test       Expression
	Consequent Statement
	Alternate  Statement // nil, another IfStatement, or a BlockStatement
}

func (i *IfStatement) statementNode() {}
func (i *IfStatement) String() string { return "if (...) ..." }

type WhileStatement struct {
	BaseNode
	Test Expression
	Body Statement
}

func (w *WhileStatement) statementNode() {}
func (w *WhileStatement) String() string { return "while (...) ..." }

type DoWhileStatement struct {
	BaseNode
	Body Statement
	Test Expression
}

func (d *DoWhileStatement) statementNode() {}
func (d *DoWhileStatement) String() string { return "do ... while (...)" }

// ForStatement is the classic C-style `for (init; test; update)`.
type ForStatement struct {
	BaseNode
	Init   Node // *VarStatement or Expression or nil
	Test   Expression
	Update Expression
	Body   Statement
}

func (f *ForStatement) statementNode() {}
func (f *ForStatement) String() string { return "for (...) ..." }

// ForOfStatement also models `for await (... of ...)` via IsAwait.
type ForOfStatement struct {
	BaseNode
	Kind     VarKind // empty when iterating an existing binding
	Name     string
	Pattern  Pattern
	Iterable Expression
	Body     Statement
	IsAwait  bool
}

func (f *ForOfStatement) statementNode() {}
func (f *ForOfStatement) String() string { return "for (... of ...) ..." }

type ForInStatement struct {
	BaseNode
	Kind   VarKind
	Name   string
	Object Expression
	Body   Statement
}

func (f *ForInStatement) statementNode() {}
func (f *ForInStatement) String() string { return "for (... in ...) ..." }

type BreakStatement struct {
	BaseNode
	Label string
}

func (b *BreakStatement) statementNode() {}
func (b *BreakStatement) String() string { return "break;" }

type ContinueStatement struct {
	BaseNode
	Label string
}

func (c *ContinueStatement) statementNode() {}
func (c *ContinueStatement) String() string { return "continue;" }

type ReturnStatement struct {
	BaseNode
	Argument Expression // nil for bare `return;`
}

func (r *ReturnStatement) statementNode() {}
func (r *ReturnStatement) String() string { return "return ...;" }

type ThrowStatement struct {
	BaseNode
	Argument Expression
}

func (t *ThrowStatement) statementNode() {}
func (t *ThrowStatement) String() string { return "throw ...;" }

type CatchClause struct {
	Param string // empty for `catch {}`
	Body  *BlockStatement
}

type TryStatement struct {
	BaseNode
	Block   *BlockStatement
	Catch   *CatchClause // nil if no catch
	Finally *BlockStatement // nil if no finally
}

func (t *TryStatement) statementNode() {}
func (t *TryStatement) String() string { return "try { ... }" }

type SwitchCase struct {
	Test       Expression // nil for `default:`
	Statements []Statement
}

type SwitchStatement struct {
	BaseNode
	Discriminant Expression
	Cases        []*SwitchCase
}

func (s *SwitchStatement) statementNode() {}
func (s *SwitchStatement) String() string { return "switch (...) { ... }" }

type LabeledStatement struct {
	BaseNode
	Label string
	Body  Statement
}

func (l *LabeledStatement) statementNode() {}
func (l *LabeledStatement) String() string { return l.Label + ": ..." }

// FunctionDeclaration is a named top-level/nested function statement; its
// signature mirrors FunctionExpression so the emitter shares one lowering
// path (spec §4.3).
type FunctionDeclaration struct {
	BaseNode
	Function *FunctionExpression
}

func (f *FunctionDeclaration) statementNode() {}
func (f *FunctionDeclaration) String() string { return "function " + f.Function.Name + "(...)" }

type ClassDeclaration struct {
	BaseNode
	Body *ClassBody
}

func (c *ClassDeclaration) statementNode() {}
func (c *ClassDeclaration) String() string { return "class " + c.Body.Name }

// ---- Modules (spec §6 loader surface) ----

type ImportSpecifier struct {
	Imported string // source-visible export name, "default" for default import
	Local    string // local binding name
}

type ImportStatement struct {
	BaseNode
	Specifiers []*ImportSpecifier
	NamespaceAs string // non-empty for `import * as ns from '...'`
	Source      string
}

func (i *ImportStatement) statementNode() {}
func (i *ImportStatement) String() string { return "import ... from \"" + i.Source + "\";" }

type ExportSpecifier struct {
	Local    string
	Exported string
}

// ExportStatement covers `export {a, b}`, `export default expr`, and
// `export const/function/class ...` (Decl non-nil in the last case).
type ExportStatement struct {
	BaseNode
	Specifiers []*ExportSpecifier
	IsDefault  bool
	DefaultExpr Expression
	Decl       Statement
}

func (e *ExportStatement) statementNode() {}
func (e *ExportStatement) String() string { return "export ...;" }

// DynamicImportExpression is `import(path)`; the emitter lowers it to a
// promise resolving to a namespace object (spec §6).
type DynamicImportExpression struct {
	BaseNode
	Source Expression
}

func (d *DynamicImportExpression) expressionNode() {}
func (d *DynamicImportExpression) String() string   { return "import(...)" }
