package builtinmods

import (
	"testing"

	"github.com/tscore-lang/tscore/internal/bytecode"
)

func callMember(t *testing.T, recv bytecode.Value, name string, args ...bytecode.Value) bytecode.Value {
	t.Helper()
	vm := bytecode.NewHostVM()
	v, err := vm.CallMethod(recv, name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func TestSha256KnownDigest(t *testing.T) {
	vm := bytecode.NewHostVM()
	mod, ok := Lookup(vm, "crypto")
	if !ok {
		t.Fatal("crypto module missing")
	}
	h := callMember(t, mod, "createHash", bytecode.StringValue("sha256"))
	callMember(t, h, "update", bytecode.StringValue("hello"))
	digest := callMember(t, h, "digest", bytecode.StringValue("hex"))
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if digest.AsString() != want {
		t.Errorf("sha256(hello) = %s, want %s", digest.AsString(), want)
	}
}

// TestIncrementalUpdateLaw checks the §8 streaming law: update(a);update(b)
// equals update(a+b).
func TestIncrementalUpdateLaw(t *testing.T) {
	vm := bytecode.NewHostVM()
	mod, _ := Lookup(vm, "crypto")

	split := callMember(t, mod, "createHash", bytecode.StringValue("sha256"))
	callMember(t, split, "update", bytecode.StringValue("foo"))
	callMember(t, split, "update", bytecode.StringValue("bar"))
	a := callMember(t, split, "digest", bytecode.StringValue("hex"))

	joined := callMember(t, mod, "createHash", bytecode.StringValue("sha256"))
	callMember(t, joined, "update", bytecode.StringValue("foobar"))
	b := callMember(t, joined, "digest", bytecode.StringValue("hex"))

	if a.AsString() != b.AsString() {
		t.Errorf("split digest %s != joined digest %s", a.AsString(), b.AsString())
	}
}

func TestUnknownAlgorithmIsHostError(t *testing.T) {
	vm := bytecode.NewHostVM()
	mod, _ := Lookup(vm, "crypto")
	_, err := vm.CallMethod(mod, "createHash", []bytecode.Value{bytecode.StringValue("md4")})
	if err == nil {
		t.Fatal("md4 must be rejected")
	}
	thrown := bytecode.ThrownValue(err)
	code := vm.GetProperty(thrown, "code")
	if code.AsString() != "ERR_CRYPTO_INVALID_DIGEST" {
		t.Errorf("code = %q", code.AsString())
	}
}

func TestZlibRoundTrip(t *testing.T) {
	vm := bytecode.NewHostVM()
	mod, _ := Lookup(vm, "zlib")
	input := bytecode.StringValue("compress me, twice over, compress me")
	packed := callMember(t, mod, "deflateSync", input)
	unpacked := callMember(t, mod, "inflateSync", packed)
	buf, ok := unpacked.Data.(*bytecode.BufferInstance)
	if !ok {
		t.Fatalf("inflateSync returned %s", unpacked.Type.String())
	}
	if string(buf.Bytes) != input.AsString() {
		t.Errorf("round trip = %q", string(buf.Bytes))
	}
}

func TestGzipRoundTrip(t *testing.T) {
	vm := bytecode.NewHostVM()
	mod, _ := Lookup(vm, "zlib")
	input := bytecode.StringValue("gzip me")
	packed := callMember(t, mod, "gzipSync", input)
	unpacked := callMember(t, mod, "gunzipSync", packed)
	buf := unpacked.Data.(*bytecode.BufferInstance)
	if string(buf.Bytes) != "gzip me" {
		t.Errorf("round trip = %q", string(buf.Bytes))
	}
}

func TestPathModule(t *testing.T) {
	vm := bytecode.NewHostVM()
	mod, _ := Lookup(vm, "path")
	joined := callMember(t, mod, "join", bytecode.StringValue("a"), bytecode.StringValue("b"), bytecode.StringValue("c.ts"))
	if joined.AsString() != "a/b/c.ts" {
		t.Errorf("join = %q", joined.AsString())
	}
	if ext := callMember(t, mod, "extname", joined); ext.AsString() != ".ts" {
		t.Errorf("extname = %q", ext.AsString())
	}
	if base := callMember(t, mod, "basename", joined, bytecode.StringValue(".ts")); base.AsString() != "c" {
		t.Errorf("basename = %q", base.AsString())
	}
}

func TestBuiltinNames(t *testing.T) {
	for _, name := range Names() {
		if !IsBuiltin(name) {
			t.Errorf("%s should be builtin", name)
		}
		if !IsBuiltin("node:" + name) {
			t.Errorf("node:%s should be builtin", name)
		}
		vm := bytecode.NewHostVM()
		if _, ok := Lookup(vm, name); !ok {
			t.Errorf("Lookup(%s) failed", name)
		}
	}
	if IsBuiltin("./relative") {
		t.Error("relative specifiers are not builtin")
	}
}
