package modresolve

import "testing"

func TestBuiltinSpecifiers(t *testing.T) {
	r := NewFileResolver()
	for _, name := range []string{"fs", "os", "crypto", "zlib", "path"} {
		canonical, isBuiltin, err := r.Resolve(name, "/proj/main.ts")
		if err != nil || !isBuiltin || canonical != name {
			t.Errorf("Resolve(%s) = %q, %v, %v", name, canonical, isBuiltin, err)
		}
	}
}

func TestRelativeSpecifiers(t *testing.T) {
	r := NewFileResolver()
	canonical, isBuiltin, err := r.Resolve("./util", "/proj/src/main.ts")
	if err != nil || isBuiltin {
		t.Fatalf("Resolve: %v %v", isBuiltin, err)
	}
	if canonical != "/proj/src/util" {
		t.Errorf("canonical = %q", canonical)
	}
	canonical, _, _ = r.Resolve("../lib/x", "/proj/src/main.ts")
	if canonical != "/proj/lib/x" {
		t.Errorf("parent-relative canonical = %q", canonical)
	}
}

func TestBareSpecifierPassesThrough(t *testing.T) {
	r := NewFileResolver()
	canonical, isBuiltin, err := r.Resolve("leftpad", "/proj/main.ts")
	if err != nil || isBuiltin || canonical != "leftpad" {
		t.Errorf("Resolve(leftpad) = %q, %v, %v", canonical, isBuiltin, err)
	}
}
