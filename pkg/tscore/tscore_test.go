package tscore_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/tscore-lang/tscore/pkg/tscore"
)

func runMode(t *testing.T, mode tscore.Mode, filename, src string) string {
	t.Helper()
	var out bytes.Buffer
	engine := tscore.New(
		tscore.WithMode(mode),
		tscore.WithStdout(&out),
		tscore.WithStderr(&out),
	)
	if err := engine.RunSource(filename, src); err != nil {
		t.Fatalf("mode %v: %v\noutput so far:\n%s", mode, err, out.String())
	}
	return out.String()
}

// checkBothModes runs src through the VM and the interpreter, asserting
// each produces want — the §6 cross-mode equivalence invariant.
func checkBothModes(t *testing.T, src, want string) {
	t.Helper()
	vmOut := runMode(t, tscore.ModeVM, "<test>", src)
	interpOut := runMode(t, tscore.ModeInterp, "<test>", src)
	if vmOut != want {
		t.Errorf("vm output = %q, want %q", vmOut, want)
	}
	if interpOut != want {
		t.Errorf("interp output = %q, want %q", interpOut, want)
	}
	if vmOut != interpOut {
		t.Errorf("cross-mode divergence: vm %q vs interp %q", vmOut, interpOut)
	}
}

// The six end-to-end scenarios of the language core's acceptance surface,
// each with its literal expected stdout.

func TestScenarioArrayChaining(t *testing.T) {
	checkBothModes(t,
		`let a=[1,2,3,4,5]; console.log(a.filter(n=>n%2==1).map(n=>n*2).join(","));`,
		"2,6,10\n")
}

func TestScenarioAsyncAwaitPromiseAll(t *testing.T) {
	checkBothModes(t,
		`async function f(){ let r = await Promise.all([Promise.resolve(1), Promise.resolve(2)]); return r[0]+r[1]; } f().then(v=>console.log(v));`,
		"3\n")
}

func TestScenarioGeneratorYieldStar(t *testing.T) {
	checkBothModes(t,
		`function* g(){ yield 1; yield* [2,3]; yield 4; } for(const x of g()) console.log(x);`,
		"1\n2\n3\n4\n")
}

func TestScenarioPrivateFieldEncapsulation(t *testing.T) {
	checkBothModes(t,
		`class C { #x=0; inc(){this.#x++;} get(){return this.#x;}} let c=new C(); c.inc(); c.inc(); console.log(c.get());`,
		"2\n")
}

func TestScenarioClosureCounter(t *testing.T) {
	checkBothModes(t,
		`function mk(){let n=0; return ()=>++n;} let f=mk(); console.log(f()); console.log(f()); console.log(f());`,
		"1\n2\n3\n")
}

func TestScenarioCryptoDigest(t *testing.T) {
	checkBothModes(t,
		`import * as c from 'crypto'; let h=c.createHash('sha256'); h.update('hello'); console.log(h.digest('hex'));`,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824\n")
}

func TestRelativeImports(t *testing.T) {
	dir := t.TempDir()
	util := filepath.Join(dir, "util.ts")
	if err := os.WriteFile(util, []byte(`
export function double(n: number): number { return n * 2; }
export const name = "util";
export default 7;
`), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "main.ts")
	src := `
import dflt, { double, name } from './util';
console.log(double(21), name, dflt);
`
	if err := os.WriteFile(main, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, mode := range []tscore.Mode{tscore.ModeVM, tscore.ModeInterp} {
		var out bytes.Buffer
		engine := tscore.New(tscore.WithMode(mode), tscore.WithStdout(&out), tscore.WithStderr(&out))
		if err := engine.RunFile(main); err != nil {
			t.Fatalf("mode %v: %v", mode, err)
		}
		if got, want := out.String(), "42 util 7\n"; got != want {
			t.Errorf("mode %v output = %q, want %q", mode, got, want)
		}
	}
}

func TestZlibRoundTrip(t *testing.T) {
	checkBothModes(t, `
import * as zlib from 'zlib';
let original = "the quick brown fox jumps over the lazy dog";
let packed = zlib.deflateSync(original);
let unpacked = zlib.inflateSync(packed);
console.log(unpacked.toString("utf8") === original);
console.log(packed.length < 100);`, "true\ntrue\n")
}

func TestHostErrorCarriesCode(t *testing.T) {
	checkBothModes(t, `
import * as fs from 'fs';
try {
	fs.readFileSync("/definitely/not/a/real/path/at/all.txt");
} catch (e) {
	console.log(e.code);
}`, "ENOENT\n")
}

func TestBufferEncodings(t *testing.T) {
	checkBothModes(t, `
let b = Buffer.from("hi!");
console.log(b.toString("utf8"));
console.log(b.toString("hex"));
console.log(b.toString("base64"));
console.log(Buffer.from("686921", "hex").toString("utf8"));`,
		"hi!\n686921\naGkh\nhi!\n")
}

func TestParseErrorIsDiagnostic(t *testing.T) {
	engine := tscore.New(tscore.WithStdout(&bytes.Buffer{}))
	err := engine.RunSource("<bad>", `let = ;`)
	if err == nil {
		t.Fatal("expected a parse diagnostic")
	}
}
