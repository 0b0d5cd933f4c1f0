package modcache

import (
	"testing"
	"time"

	"github.com/tscore-lang/tscore/internal/bytecode"
	"github.com/tscore-lang/tscore/internal/parser"
	"github.com/tscore-lang/tscore/internal/types"
)

func compileFixture(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	p := parser.New(src)
	prog := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	compiled, err := bytecode.CompileProgram(prog, bytecode.WithTypeMap(types.Infer(prog)))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return compiled
}

func TestPutGetRoundTrip(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	src := `function f(n: number): number { return n + 1; } console.log(f(41));`
	prog := compileFixture(t, src)
	key := Key([]byte(src))

	if _, ok := cache.Get(key); ok {
		t.Fatal("empty cache must miss")
	}
	if err := cache.Put(key, "fixture.ts", prog); err != nil {
		t.Fatal(err)
	}
	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("cache must hit after Put")
	}
	if got.GlobalSlots != prog.GlobalSlots || len(got.Functions) != len(prog.Functions) {
		t.Error("cached program structure differs")
	}
}

func TestKeyIsContentAddressed(t *testing.T) {
	if Key([]byte("a")) == Key([]byte("b")) {
		t.Error("different sources must hash differently")
	}
	if Key([]byte("same")) != Key([]byte("same")) {
		t.Error("identical sources must hash identically")
	}
}

func TestPrune(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	src := `console.log(1);`
	if err := cache.Put(Key([]byte(src)), "x.ts", compileFixture(t, src)); err != nil {
		t.Fatal(err)
	}
	// Nothing is older than an hour yet.
	if n, err := cache.Prune(time.Hour); err != nil || n != 0 {
		t.Errorf("prune(1h) = %d, %v", n, err)
	}
	// Everything is older than -1s from now.
	if n, err := cache.Prune(-time.Second); err != nil || n != 1 {
		t.Errorf("prune(-1s) = %d, %v", n, err)
	}
	if _, ok := cache.Get(Key([]byte(src))); ok {
		t.Error("pruned entry must miss")
	}
}
