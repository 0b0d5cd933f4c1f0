package errorsx

import (
	"bytes"
	"strings"
	"testing"
)

func TestDiagnosticError(t *testing.T) {
	d := New(KindRuntime, "boom %d", 7).WithPos("main.ts", 3, 5)
	msg := d.Error()
	if !strings.Contains(msg, "RuntimeError") || !strings.Contains(msg, "boom 7") || !strings.Contains(msg, "main.ts:3:5") {
		t.Errorf("diagnostic text = %q", msg)
	}
}

func TestHostCodeSurfaces(t *testing.T) {
	d := New(KindHost, "no such file").WithCode("ENOENT")
	if !strings.Contains(d.Error(), "[ENOENT]") {
		t.Errorf("host code missing from %q", d.Error())
	}
}

func TestKindNames(t *testing.T) {
	names := map[Kind]string{
		KindParse:     "ParseError",
		KindTypeCheck: "TypeCheckError",
		KindCompile:   "CompileError",
		KindRuntime:   "RuntimeError",
		KindHost:      "HostError",
	}
	for k, want := range names {
		if k.String() != want {
			t.Errorf("%v.String() = %q, want %q", int(k), k.String(), want)
		}
	}
}

func TestRenderCaret(t *testing.T) {
	var out bytes.Buffer
	d := New(KindParse, "unexpected token").WithPos("x.ts", 2, 7)
	Render(&out, d, "let a = 1;\nlet b ! 2;\n", false)
	text := out.String()
	if !strings.Contains(text, "let b ! 2;") {
		t.Errorf("source line missing:\n%s", text)
	}
	if !strings.Contains(text, "      |       ^") {
		t.Errorf("caret misplaced:\n%s", text)
	}
}

func TestRenderWithoutPosition(t *testing.T) {
	var out bytes.Buffer
	Render(&out, New(KindRuntime, "plain"), "", false)
	if !strings.Contains(out.String(), "plain") {
		t.Errorf("message missing: %q", out.String())
	}
	if strings.Contains(out.String(), "-->") {
		t.Errorf("no position, no location line expected: %q", out.String())
	}
}
