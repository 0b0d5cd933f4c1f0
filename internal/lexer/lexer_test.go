package lexer

import (
	"testing"

	"github.com/tscore-lang/tscore/internal/token"
)

func collect(src string) []token.Token {
	l := New(src)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestNextTokenBasics(t *testing.T) {
	src := `let x = 42; const name = "hi";`
	toks := collect(src)

	want := []token.Kind{
		token.LET, token.IDENT, token.ASSIGN, token.NUMBER, token.SEMICOLON,
		token.CONST, token.IDENT, token.ASSIGN, token.STRING, token.SEMICOLON,
		token.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestOperatorDisambiguation(t *testing.T) {
	tests := []struct {
		src  string
		want token.Kind
	}{
		{"=", token.ASSIGN},
		{"==", token.EQ},
		{"===", token.EQ_STRICT},
		{"=>", token.ARROW},
		{"??", token.QUESTION_QUESTION},
		{"??=", token.QUESTION_QUESTION_EQ},
		{"?.", token.QUESTION_DOT},
		{"...", token.DOTDOTDOT},
		{">>>", token.USHR},
	}
	for _, tt := range tests {
		l := New(tt.src)
		got := l.Next()
		if got.Kind != tt.want {
			t.Errorf("lex(%q) = %v, want %v", tt.src, got.Kind, tt.want)
		}
	}
}

func TestPrivateIdentifier(t *testing.T) {
	toks := collect(`this.#x`)
	if toks[2].Kind != token.PRIVATE_IDENT || toks[2].Literal != "#x" {
		t.Errorf("private ident = %+v", toks[2])
	}
}

func TestNumberForms(t *testing.T) {
	tests := []string{"123", "1.5", "1e10", "0x1F", "0b101", "0o17", "1_000"}
	for _, src := range tests {
		l := New(src)
		tok := l.Next()
		if tok.Kind != token.NUMBER {
			t.Errorf("lex(%q) kind = %v, want NUMBER", src, tok.Kind)
		}
	}
	l := New("10n")
	tok := l.Next()
	if tok.Kind != token.BIGINT || tok.Literal != "10" {
		t.Errorf("bigint literal = %+v", tok)
	}
}

func TestTemplateLiteralWithSubstitution(t *testing.T) {
	l := New("`hello ${1}`")
	head := l.Next()
	if head.Kind != token.TEMPLATE_HEAD || head.Literal != "hello " {
		t.Fatalf("head = %+v", head)
	}
	num := l.Next()
	if num.Kind != token.NUMBER || num.Literal != "1" {
		t.Fatalf("num = %+v", num)
	}
	tail := l.ResumeTemplate()
	if tail.Kind != token.TEMPLATE_TAIL || tail.Literal != "" {
		t.Fatalf("tail = %+v", tail)
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := collect("// comment\nlet x /* inline */ = 1;")
	if toks[0].Kind != token.LET {
		t.Fatalf("expected LET first, got %+v", toks[0])
	}
}

func TestLineColumnTracking(t *testing.T) {
	l := New("let\nx")
	first := l.Next()
	if first.Pos.Line != 1 {
		t.Errorf("first.Line = %d, want 1", first.Pos.Line)
	}
	second := l.Next()
	if second.Pos.Line != 2 {
		t.Errorf("second.Line = %d, want 2", second.Pos.Line)
	}
}

func TestUnicodeIdentifier(t *testing.T) {
	l := New("let Δ = 1;")
	l.Next() // let
	ident := l.Next()
	if ident.Kind != token.IDENT || ident.Literal != "Δ" {
		t.Errorf("unicode ident = %+v", ident)
	}
}
