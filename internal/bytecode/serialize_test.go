package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/tscore-lang/tscore/internal/bytecode"
	"github.com/tscore-lang/tscore/internal/parser"
	"github.com/tscore-lang/tscore/internal/types"
)

func compileForTest(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	p := parser.New(src)
	prog := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	compiled, err := bytecode.CompileProgram(prog, bytecode.WithTypeMap(types.Infer(prog)))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return compiled
}

func runProgram(t *testing.T, prog *bytecode.Program) string {
	t.Helper()
	var out bytes.Buffer
	vm := bytecode.NewVM(prog).WithOutput(&out).WithErrOutput(&out)
	if err := vm.Run(prog); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

// TestProgramRoundTrip is the module-cache contract: a program that has
// been encoded to the .tsb wire form and decoded back must run with
// identical output.
func TestProgramRoundTrip(t *testing.T) {
	src := `
class Greeter {
	prefix: string = "hello";
	greet(name: string): string { return this.prefix + ", " + name; }
}
function shout(s: string): string { return s.toUpperCase() + "!"; }
let g = new Greeter();
let parts = ["a", "b"].map(x => x + x);
console.log(shout(g.greet("world")), parts.join("/"));
try { throw "x"; } catch (e) { console.log("ok", e); } finally { console.log("done"); }
`
	original := compileForTest(t, src)
	want := runProgram(t, original)

	blob, err := bytecode.EncodeProgram(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := bytecode.DecodeProgram(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := runProgram(t, decoded); got != want {
		t.Errorf("decoded program output = %q, want %q", got, want)
	}
}

func TestRoundTripPreservesStructure(t *testing.T) {
	src := `
class A { n = 1; }
class B extends A { m = 2; }
function top(): number { return 3; }
let big = 123456789012345678901234567890n;
console.log(typeof big, top(), new B().n + new B().m);
`
	original := compileForTest(t, src)
	want := runProgram(t, original)

	blob, err := bytecode.EncodeProgram(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := bytecode.DecodeProgram(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.GlobalSlots != original.GlobalSlots {
		t.Errorf("global slots %d != %d", decoded.GlobalSlots, original.GlobalSlots)
	}
	if len(decoded.Classes) != len(original.Classes) {
		t.Errorf("class count %d != %d", len(decoded.Classes), len(original.Classes))
	}
	if decoded.Classes["B"].Super != decoded.Classes["A"] {
		t.Error("superclass link must re-resolve after decode")
	}
	if got := runProgram(t, decoded); got != want {
		t.Errorf("decoded output = %q, want %q", got, want)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := bytecode.DecodeProgram([]byte("not a module")); err == nil {
		t.Error("garbage input must not decode")
	}
	if _, err := bytecode.DecodeProgram(nil); err == nil {
		t.Error("empty input must not decode")
	}
}
