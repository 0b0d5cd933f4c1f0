package bytecode_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tscore-lang/tscore/internal/bytecode"
	"github.com/tscore-lang/tscore/internal/parser"
	"github.com/tscore-lang/tscore/internal/types"
)

// runSource compiles and executes src, returning captured stdout.
func runSource(t *testing.T, src string) string {
	t.Helper()
	p := parser.New(src)
	prog := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	tm := types.Infer(prog)
	compiled, err := bytecode.CompileProgram(prog, bytecode.WithTypeMap(tm))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	vm := bytecode.NewVM(compiled).WithOutput(&out).WithErrOutput(&out)
	if err := vm.Run(compiled); err != nil {
		t.Fatalf("runtime error: %v\noutput so far:\n%s", err, out.String())
	}
	return out.String()
}

func expectOutput(t *testing.T, src, want string) {
	t.Helper()
	if got := runSource(t, src); got != want {
		t.Errorf("wrong output\nsource:\n%s\ngot:  %q\nwant: %q", src, got, want)
	}
}

func TestArithmeticAndStrings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"addition", `console.log(1 + 2);`, "3\n"},
		{"precedence", `console.log(2 + 3 * 4);`, "14\n"},
		{"division", `console.log(7 / 2);`, "3.5\n"},
		{"modulo", `console.log(10 % 3);`, "1\n"},
		{"exponent", `console.log(2 ** 10);`, "1024\n"},
		{"string concat", `console.log("foo" + "bar");`, "foobar\n"},
		{"mixed concat", `console.log("n=" + 42);`, "n=42\n"},
		{"nan", `console.log(0 / 0);`, "NaN\n"},
		{"infinity", `console.log(1 / 0);`, "Infinity\n"},
		{"negative infinity", `console.log(-1 / 0);`, "-Infinity\n"},
		{"template literal", "let x = 6; console.log(`got ${x} and ${x * 7}`);", "got 6 and 42\n"},
		{"bitwise", `console.log((12 & 10) | 1);`, "9\n"},
		{"shift", `console.log(1 << 8);`, "256\n"},
		{"unsigned shift", `console.log(-1 >>> 28);`, "15\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectOutput(t, tt.src, tt.want)
		})
	}
}

func TestVariablesAndControlFlow(t *testing.T) {
	expectOutput(t, `
let total = 0;
for (let i = 1; i <= 10; i++) {
	total += i;
}
console.log(total);`, "55\n")

	expectOutput(t, `
let n = 3;
while (n > 0) {
	console.log(n);
	n--;
}`, "3\n2\n1\n")

	expectOutput(t, `
let i = 0;
do {
	i++;
} while (i < 5);
console.log(i);`, "5\n")

	expectOutput(t, `
for (let i = 0; i < 10; i++) {
	if (i % 2 == 0) continue;
	if (i > 6) break;
	console.log(i);
}`, "1\n3\n5\n")

	expectOutput(t, `
outer: for (let i = 0; i < 3; i++) {
	for (let j = 0; j < 3; j++) {
		if (j > i) continue outer;
		console.log(i * 10 + j);
	}
}`, "0\n10\n11\n20\n21\n22\n")
}

func TestSwitch(t *testing.T) {
	expectOutput(t, `
function classify(n: number): string {
	switch (n) {
		case 0: return "zero";
		case 1:
		case 2: return "small";
		default: return "big";
	}
}
console.log(classify(0));
console.log(classify(2));
console.log(classify(9));`, "zero\nsmall\nbig\n")

	// fallthrough without return
	expectOutput(t, `
let out = "";
switch (2) {
	case 1: out += "a";
	case 2: out += "b";
	case 3: out += "c";
}
console.log(out);`, "bc\n")
}

func TestFunctionsAndClosures(t *testing.T) {
	expectOutput(t, `
function add(a: number, b: number): number { return a + b; }
console.log(add(2, 3));`, "5\n")

	expectOutput(t, `
function greet(name: string, greeting = "hello") {
	return greeting + ", " + name;
}
console.log(greet("world"));
console.log(greet("world", "hi"));`, "hello, world\nhi, world\n")

	expectOutput(t, `
function sum(...nums: number[]): number {
	let total = 0;
	for (const n of nums) total += n;
	return total;
}
console.log(sum(1, 2, 3, 4));`, "10\n")

	// Spec §8 scenario 5: closure over a mutated counter.
	expectOutput(t,
		`function mk(){let n=0; return ()=>++n;} let f=mk(); console.log(f()); console.log(f()); console.log(f());`,
		"1\n2\n3\n")

	// Two closures over the same cell observe each other's writes.
	expectOutput(t, `
function pair() {
	let n = 0;
	return [() => ++n, () => n];
}
let [inc, get] = pair();
inc(); inc();
console.log(get());`, "2\n")

	// IIFE
	expectOutput(t, `console.log((function(x: number) { return x * 2; })(21));`, "42\n")
}

func TestArrayStrategies(t *testing.T) {
	// Spec §8 scenario 1.
	expectOutput(t,
		`let a=[1,2,3,4,5]; console.log(a.filter(n=>n%2==1).map(n=>n*2).join(","));`,
		"2,6,10\n")

	expectOutput(t, `
let a = [3, 1, 2];
console.log(a.length);
a.push(4);
console.log(a.length, a[3]);
console.log(a.indexOf(2));
console.log(a.includes(9));
console.log(a.slice(1, 3).join("-"));`, "3\n4 4\n2\nfalse\n1-2\n")

	expectOutput(t, `
let a = [1, 2, 3];
console.log(a.at(-1));
console.log(a.at(5));
let r = a.toReversed();
console.log(r.join(","), a.join(","));
let s = [3, 1, 2].toSorted((x, y) => x - y);
console.log(s.join(","));
let w = a.with(1, 9);
console.log(w.join(","), a.join(","));`, "3\nundefined\n3,2,1 1,2,3\n1,2,3\n1,9,3 1,2,3\n")

	expectOutput(t, `
console.log([1, [2, [3, [4]]]].flat(2).join(","));
console.log([1, 2, 3].flatMap(n => [n, n * 10]).join(","));
console.log([1, 2, 3, 4].reduce((acc, n) => acc + n, 0));
console.log([1, 2, 3, 4].reduce((acc, n) => acc + n));
console.log([2, 4, 6].every(n => n % 2 == 0), [1, 3].some(n => n > 2));`,
		"1,2,3,4\n1,10,2,20,3,30\n10\n10\ntrue true\n")

	expectOutput(t, `
console.log(Array.isArray([1]), Array.isArray("no"));
console.log(Array.from([1, 2, 3], n => n * 2).join(","));
console.log(Array.of(7, 8).join(","));`, "true false\n2,4,6\n7,8\n")
}

func TestStringStrategies(t *testing.T) {
	expectOutput(t, `
let s = "Hello, World";
console.log(s.toUpperCase());
console.log(s.toLowerCase());
console.log(s.indexOf("World"));
console.log(s.slice(7));
console.log(s.slice(-5));
console.log(s.includes("lo,"), s.startsWith("He"), s.endsWith("ld"));
console.log("  pad  ".trim());
console.log("ab".repeat(3));
console.log("5".padStart(3, "0"));
console.log("a,b,,c".split(",").length);
console.log("x-y-z".replaceAll("-", "+"));
console.log("abc".charCodeAt(1));
console.log("abc".at(-1));`,
		"HELLO, WORLD\nhello, world\n7\nWorld\nWorld\ntrue true true\npad\nababab\n005\n4\nx+y+z\n98\nc\n")
}

func TestObjectsAndDestructuring(t *testing.T) {
	expectOutput(t, `
let o = { a: 1, b: 2, c: 3 };
console.log(o.a + o["b"] + o.c);
o.d = 4;
console.log(Object.keys(o).join(","));
delete o.b;
console.log(Object.keys(o).join(","));`, "6\na,b,c,d\na,c,d\n")

	expectOutput(t, `
let { a, b: renamed, missing = 9 } = { a: 1, b: 2 };
console.log(a, renamed, missing);`, "1 2 9\n")

	expectOutput(t, `
let [x, , z = 30, ...rest] = [1, 2, undefined, 4, 5];
console.log(x, z, rest.join("+"));`, "1 30 4+5\n")

	expectOutput(t, `
let { a, ...others } = { a: 1, b: 2, c: 3 };
console.log(a, Object.keys(others).join(","));`, "1 b,c\n")

	expectOutput(t, `
let base = { a: 1, b: 2 };
let merged = { ...base, b: 9, c: 3 };
console.log(merged.a, merged.b, merged.c);`, "1 9 3\n")

	expectOutput(t, `
let key = "dyn";
let o = { [key]: 1, plain: 2 };
console.log(o.dyn, o.plain);`, "1 2\n")

	expectOutput(t, `
let o = { greet() { return "hi"; }, n: 1 };
console.log(o.greet(), o.n);`, "hi 1\n")
}

func TestClasses(t *testing.T) {
	expectOutput(t, `
class Point {
	x: number;
	y: number;
	constructor(x: number, y: number) {
		this.x = x;
		this.y = y;
	}
	dist(): number {
		return Math.sqrt(this.x * this.x + this.y * this.y);
	}
}
let p = new Point(3, 4);
console.log(p.dist());
console.log(p.x, p.y);`, "5\n3 4\n")

	expectOutput(t, `
class Animal {
	name: string;
	constructor(name: string) { this.name = name; }
	speak(): string { return this.name + " makes a sound"; }
}
class Dog extends Animal {
	constructor(name: string) { super(name); }
	speak(): string { return super.speak() + ": woof"; }
}
let d = new Dog("Rex");
console.log(d.speak());
console.log(d instanceof Dog, d instanceof Animal);`,
		"Rex makes a sound: woof\ntrue true\n")

	// Spec §8 scenario 4: private field encapsulation.
	expectOutput(t,
		`class C { #x=0; inc(){this.#x++;} get(){return this.#x;}} let c=new C(); c.inc(); c.inc(); console.log(c.get());`,
		"2\n")

	expectOutput(t, `
class Counter {
	static count = 0;
	static bump(): number { return ++Counter.count; }
}
Counter.bump();
Counter.bump();
console.log(Counter.count);`, "2\n")

	expectOutput(t, `
class Box {
	value: number = 10;
	extra = "init";
}
let b = new Box();
console.log(b.value, b.extra);`, "10 init\n")

	// Undeclared assignments land in extras, not the declared slots.
	expectOutput(t, `
class Bag { declared = 1; }
let b = new Bag();
b.dynamic = 2;
console.log(b.declared, b.dynamic);`, "1 2\n")
}

func TestGenerators(t *testing.T) {
	// Spec §8 scenario 3.
	expectOutput(t,
		`function* g(){ yield 1; yield* [2,3]; yield 4; } for(const x of g()) console.log(x);`,
		"1\n2\n3\n4\n")

	expectOutput(t, `
function* naturals() {
	let n = 1;
	while (true) yield n++;
}
let it = naturals();
console.log(it.next().value);
console.log(it.next().value);
console.log(it.next().done);`, "1\n2\nfalse\n")

	expectOutput(t, `
function* inner() { yield "a"; yield "b"; }
function* outer() { yield "start"; yield* inner(); yield "end"; }
console.log([...outer()].join(","));`, "start,a,b,end\n")

	expectOutput(t, `
function* g() { let got = yield 1; console.log("got", got); yield 2; }
let it = g();
it.next();
it.next("sent");`, "got sent\n")
}

func TestAsyncAwait(t *testing.T) {
	// Spec §8 scenario 2.
	expectOutput(t,
		`async function f(){ let r = await Promise.all([Promise.resolve(1), Promise.resolve(2)]); return r[0]+r[1]; } f().then(v=>console.log(v));`,
		"3\n")

	expectOutput(t, `
async function one(): Promise<number> { return 1; }
async function two(): Promise<number> { return (await one()) + 1; }
two().then(v => console.log(v));`, "2\n")

	expectOutput(t, `
async function boom() { throw "kaput"; }
boom().catch(e => console.log("caught", e));`, "caught kaput\n")

	expectOutput(t, `
async function f() {
	try {
		await Promise.reject("nope");
	} catch (e) {
		console.log("rejected with", e);
	}
}
f();`, "rejected with nope\n")

	expectOutput(t, `
Promise.all([]).then(v => console.log("empty", v.length));`, "empty 0\n")

	expectOutput(t, `
Promise.race([Promise.resolve("fast"), new Promise(() => {})]).then(v => console.log(v));`, "fast\n")

	expectOutput(t, `
Promise.allSettled([Promise.resolve(1), Promise.reject("no")]).then(rs => {
	console.log(rs[0].status, rs[1].status);
});`, "fulfilled rejected\n")
}

func TestTryCatchFinally(t *testing.T) {
	expectOutput(t, `
try {
	throw "fail";
} catch (e) {
	console.log("caught", e);
}`, "caught fail\n")

	expectOutput(t, `
try {
	console.log("try");
} finally {
	console.log("finally");
}
console.log("after");`, "try\nfinally\nafter\n")

	expectOutput(t, `
try {
	try {
		throw "inner";
	} finally {
		console.log("finally runs");
	}
} catch (e) {
	console.log("outer caught", e);
}`, "finally runs\nouter caught inner\n")

	expectOutput(t, `
function f(): string {
	try {
		return "from try";
	} finally {
		console.log("finally before return");
	}
}
console.log(f());`, "finally before return\nfrom try\n")

	expectOutput(t, `
try {
	throw { code: "E42", message: "boom" };
} catch (e) {
	console.log(e.code, e.message);
}`, "E42 boom\n")

	// Anything can be thrown, including non-objects.
	expectOutput(t, `
try { throw 7; } catch (e) { console.log(typeof e, e); }`, "number 7\n")
}

func TestOptionalChainingAndNullish(t *testing.T) {
	expectOutput(t, `
let o = { inner: { v: 1 } };
let empty = null;
console.log(o?.inner?.v);
console.log(empty?.inner);
console.log(empty ?? "fallback");
console.log(0 ?? "unused");
console.log(undefined ?? null ?? "last");`, "1\nundefined\nfallback\n0\nlast\n")
}

func TestTypeofInstanceofIn(t *testing.T) {
	expectOutput(t, `
console.log(typeof 1, typeof "s", typeof true, typeof undefined);
console.log(typeof null);
console.log(typeof {}, typeof []);
console.log(typeof notDeclaredAnywhere);`,
		"number string boolean undefined\nobject\nobject object\nundefined\n")

	expectOutput(t, `
let o = { a: 1 };
console.log("a" in o, "b" in o);
console.log(0 in [9], 1 in [9]);`, "true false\ntrue false\n")
}

func TestMapSetOrdering(t *testing.T) {
	expectOutput(t, `
let m = new Map();
m.set("z", 1);
m.set("a", 2);
m.set("z", 3);
console.log(m.size);
let keys = [];
m.forEach((v, k) => keys.push(k));
console.log(keys.join(","));
console.log(m.get("z"));
m.delete("z");
console.log(m.has("z"), m.size);`, "2\nz,a\n3\nfalse 1\n")

	expectOutput(t, `
let s = new Set([3, 1, 3, 2]);
console.log(s.size);
console.log([...s].join(","));
s.add(1);
console.log(s.size);`, "3\n3,1,2\n3\n")

	expectOutput(t, `
let m = new Map([["a", 1], ["b", 2]]);
for (const [k, v] of m) console.log(k, v);`, "a 1\nb 2\n")
}

func TestJSON(t *testing.T) {
	expectOutput(t, `
console.log(JSON.stringify({ b: 1, a: [true, null, "x"] }));`,
		"{\"b\":1,\"a\":[true,null,\"x\"]}\n")

	expectOutput(t, `
let parsed = JSON.parse('{"n": 1.5, "list": [1, 2], "nested": {"ok": true}}');
console.log(parsed.n, parsed.list[1], parsed.nested.ok);`, "1.5 2 true\n")

	// Round trip law over the JSON-safe subset.
	expectOutput(t, `
let v = { num: 2.5, s: "hi", flag: false, arr: [1, "two"], obj: { deep: null } };
let round = JSON.parse(JSON.stringify(v));
console.log(JSON.stringify(round) === JSON.stringify(v));`, "true\n")
}

func TestSpreadArguments(t *testing.T) {
	expectOutput(t, `
let nums = [5, 1, 9, 3];
console.log(Math.max(...nums));
console.log(Math.min(...nums, 0));`, "9\n0\n")

	expectOutput(t, `
function three(a: number, b: number, c: number): number { return a * 100 + b * 10 + c; }
let pair = [2, 3];
console.log(three(1, ...pair));`, "123\n")

	expectOutput(t, `
let a = [1, 2];
let b = [0, ...a, 3];
console.log(b.join(","));`, "0,1,2,3\n")

	expectOutput(t, `console.log([..."abc"].join("-"));`, "a-b-c\n")
}

func TestForIn(t *testing.T) {
	expectOutput(t, `
let o = { one: 1, two: 2, three: 3 };
let keys = [];
for (const k in o) keys.push(k);
console.log(keys.join(","));`, "one,two,three\n")
}

func TestStrictEqualitySemantics(t *testing.T) {
	expectOutput(t, `
console.log(NaN === NaN);
console.log(0 === -0);
let a = [1];
let b = [1];
console.log(a === b, a === a);
console.log("x" === "x");
console.log(null === undefined);`, "false\ntrue\nfalse true\ntrue\nfalse\n")
}

func TestConsoleFormatting(t *testing.T) {
	expectOutput(t, `console.log();`, "\n")
	expectOutput(t, `console.log(1, "two", true);`, "1 two true\n")
	expectOutput(t, `console.log([1,2,3]);`, "[1,2,3]\n")
	expectOutput(t, `console.log({});`, "[object Object]\n")
	expectOutput(t, `console.log(undefined, null);`, "undefined null\n")
}

func TestConsoleErrorGoesToStderr(t *testing.T) {
	src := `console.log("out"); console.error("err");`
	p := parser.New(src)
	prog := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	compiled, err := bytecode.CompileProgram(prog, bytecode.WithTypeMap(types.Infer(prog)))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var stdout, stderr bytes.Buffer
	vm := bytecode.NewVM(compiled).WithOutput(&stdout).WithErrOutput(&stderr)
	if err := vm.Run(compiled); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if stdout.String() != "out\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "out\n")
	}
	if stderr.String() != "err\n" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "err\n")
	}
}

func TestUncaughtThrowSurfacesAsError(t *testing.T) {
	src := `throw "unhandled";`
	p := parser.New(src)
	prog := p.Parse()
	compiled, err := bytecode.CompileProgram(prog, bytecode.WithTypeMap(types.Infer(prog)))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	vm := bytecode.NewVM(compiled).WithOutput(&bytes.Buffer{})
	runErr := vm.Run(compiled)
	if runErr == nil {
		t.Fatal("expected an error for an uncaught throw")
	}
	if !strings.Contains(runErr.Error(), "unhandled") {
		t.Errorf("error %q does not carry the thrown value", runErr.Error())
	}
}

func TestFunctionValues(t *testing.T) {
	expectOutput(t, `
function double(n: number): number { return n * 2; }
let f = double;
console.log(f(21));`, "42\n")

	expectOutput(t, `
let obj = { n: 10 };
function getN() { return this.n; }
let bound = getN.bind(obj);
console.log(bound());
console.log(getN.call({ n: 7 }));
console.log(getN.apply({ n: 8 }, []));`, "10\n7\n8\n")

	// First bind wins; later binds only accumulate arguments.
	expectOutput(t, `
function pairWith(a, b) { return this.tag + ":" + a + b; }
let once = pairWith.bind({ tag: "t" }, "x");
let twice = once.bind({ tag: "other" });
console.log(twice("y"));`, "t:xy\n")
}

func TestCompoundAssignmentTargets(t *testing.T) {
	expectOutput(t, `
let o = { n: 1 };
o.n += 5;
console.log(o.n);
let a = [1, 2];
a[1] *= 10;
console.log(a[1]);
let x = 1;
x <<= 4;
console.log(x);`, "6\n20\n16\n")

	expectOutput(t, `
let o = { n: 5 };
console.log(o.n++, o.n, ++o.n);`, "5 6 7\n")
}

func TestGlobalBuiltins(t *testing.T) {
	expectOutput(t, `
console.log(parseInt("42px"));
console.log(parseInt("ff", 16));
console.log(parseFloat("2.5rem"));
console.log(isNaN(parseInt("no")));
console.log(isFinite(1 / 0));
console.log(Number("12") + 1, String(34) + "!", Boolean(""));`,
		"42\n255\n2.5\ntrue\nfalse\n13 34! false\n")
}

func TestBigInt(t *testing.T) {
	expectOutput(t, `
let big = 9007199254740993n;
console.log(typeof big);
console.log(big);`, "bigint\n9007199254740993n\n")
}

func TestSymbols(t *testing.T) {
	expectOutput(t, `
let a = Symbol("tag");
let b = Symbol("tag");
console.log(a === b, a === a);
console.log(typeof a);
console.log(Symbol.for("k") === Symbol.for("k"));`, "false true\nsymbol\ntrue\n")
}
