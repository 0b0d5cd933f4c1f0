package interp_test

import (
	"bytes"
	"testing"

	"github.com/tscore-lang/tscore/internal/interp"
	"github.com/tscore-lang/tscore/internal/parser"
)

func runSource(t *testing.T, src string) string {
	t.Helper()
	p := parser.New(src)
	prog := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	var out bytes.Buffer
	in := interp.New(interp.WithOutput(&out), interp.WithErrOutput(&out))
	if err := in.Run(prog); err != nil {
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

func TestBasics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic", `console.log(2 + 3 * 4);`, "14\n"},
		{"strings", `console.log("a" + "b" + 1);`, "ab1\n"},
		{"template", "let n = 2; console.log(`n is ${n}`);", "n is 2\n"},
		{"ternary", `console.log(1 < 2 ? "yes" : "no");`, "yes\n"},
		{"logical", `console.log(null ?? "dflt", 0 || "or", 1 && 2);`, "dflt or 2\n"},
		{"typeof", `console.log(typeof 1, typeof "s", typeof undefined, typeof null);`, "number string undefined object\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectOutput(t, tt.src, tt.want)
		})
	}
}

func TestControlFlow(t *testing.T) {
	expectOutput(t, `
let total = 0;
for (let i = 1; i <= 10; i++) total += i;
console.log(total);`, "55\n")

	expectOutput(t, `
for (const x of [10, 20, 30]) console.log(x);`, "10\n20\n30\n")

	expectOutput(t, `
let o = { a: 1, b: 2 };
for (const k in o) console.log(k);`, "a\nb\n")

	expectOutput(t, `
for (let i = 0; i < 6; i++) {
	if (i % 2 == 0) continue;
	if (i > 4) break;
	console.log(i);
}`, "1\n3\n")

	expectOutput(t, `
switch ("b") {
	case "a": console.log("first"); break;
	case "b": console.log("second"); break;
	default: console.log("none");
}`, "second\n")
}

func TestClosures(t *testing.T) {
	// Spec §8 scenario 5.
	expectOutput(t,
		`function mk(){let n=0; return ()=>++n;} let f=mk(); console.log(f()); console.log(f()); console.log(f());`,
		"1\n2\n3\n")

	expectOutput(t, `
function counter() {
	let n = 0;
	return { inc: () => ++n, get: () => n };
}
let c = counter();
c.inc(); c.inc(); c.inc();
console.log(c.get());`, "3\n")
}

func TestArraysAndStrategies(t *testing.T) {
	// Spec §8 scenario 1.
	expectOutput(t,
		`let a=[1,2,3,4,5]; console.log(a.filter(n=>n%2==1).map(n=>n*2).join(","));`,
		"2,6,10\n")

	expectOutput(t, `
let a = [5, 3, 1];
a.push(7);
console.log(a.length, a.at(-1));
console.log(a.toSorted((x, y) => x - y).join(","));
console.log(a.join(","));`, "4 7\n1,3,5,7\n5,3,1,7\n")

	expectOutput(t, `
console.log(Math.max(...[4, 9, 2]));
console.log([0, ...[1, 2], 3].join(","));`, "9\n0,1,2,3\n")
}

func TestDestructuring(t *testing.T) {
	expectOutput(t, `
let [a, , c = 9, ...rest] = [1, 2, undefined, 4, 5];
console.log(a, c, rest.join(","));`, "1 9 4,5\n")

	expectOutput(t, `
let { x, y: renamed, z = "dflt", ...others } = { x: 1, y: 2, w: 3 };
console.log(x, renamed, z, Object.keys(others).join(","));`, "1 2 dflt w\n")
}

func TestClasses(t *testing.T) {
	expectOutput(t, `
class Point {
	x: number;
	y: number;
	constructor(x: number, y: number) { this.x = x; this.y = y; }
	len(): number { return Math.sqrt(this.x * this.x + this.y * this.y); }
}
let p = new Point(3, 4);
console.log(p.len(), p.x, p.y);`, "5 3 4\n")

	// Spec §8 scenario 4.
	expectOutput(t,
		`class C { #x=0; inc(){this.#x++;} get(){return this.#x;}} let c=new C(); c.inc(); c.inc(); console.log(c.get());`,
		"2\n")

	expectOutput(t, `
class Base {
	tag(): string { return "base"; }
	describe(): string { return "I am " + this.tag(); }
}
class Derived extends Base {
	tag(): string { return "derived via " + super.tag(); }
}
console.log(new Derived().describe());
console.log(new Derived() instanceof Base);`,
		"I am derived via base\ntrue\n")

	expectOutput(t, `
class Counter {
	static count = 0;
	static bump(): number { return ++Counter.count; }
}
Counter.bump();
Counter.bump();
console.log(Counter.count);`, "2\n")

	expectOutput(t, `
class WithInit { n = 41; }
let w = new WithInit();
w.extra = 1;
console.log(w.n + w.extra);`, "42\n")
}

func TestGenerators(t *testing.T) {
	// Spec §8 scenario 3.
	expectOutput(t,
		`function* g(){ yield 1; yield* [2,3]; yield 4; } for(const x of g()) console.log(x);`,
		"1\n2\n3\n4\n")

	expectOutput(t, `
function* g() { yield "a"; yield "b"; }
let it = g();
console.log(it.next().value, it.next().value, it.next().done);`, "a b true\n")
}

func TestAsyncAwait(t *testing.T) {
	// Spec §8 scenario 2.
	expectOutput(t,
		`async function f(){ let r = await Promise.all([Promise.resolve(1), Promise.resolve(2)]); return r[0]+r[1]; } f().then(v=>console.log(v));`,
		"3\n")

	expectOutput(t, `
async function f() {
	try {
		await Promise.reject("nope");
	} catch (e) {
		console.log("caught", e);
	}
}
f();`, "caught nope\n")
}

func TestTryCatchFinally(t *testing.T) {
	expectOutput(t, `
try {
	throw { code: "E1" };
} catch (e) {
	console.log("caught", e.code);
} finally {
	console.log("finally");
}`, "caught E1\nfinally\n")

	expectOutput(t, `
function f(): string {
	try {
		return "value";
	} finally {
		console.log("cleanup");
	}
}
console.log(f());`, "cleanup\nvalue\n")
}

func TestMapsAndSets(t *testing.T) {
	expectOutput(t, `
let m = new Map();
m.set("b", 2); m.set("a", 1);
let ks = [];
m.forEach((v, k) => ks.push(k));
console.log(ks.join(","), m.size);
let s = new Set([1, 1, 2]);
console.log(s.size, s.has(2));`, "b,a 2\n2 true\n")
}

func TestJSONRoundTrip(t *testing.T) {
	expectOutput(t, `
let v = { a: [1, "two", null], b: { c: true } };
console.log(JSON.stringify(JSON.parse(JSON.stringify(v))) === JSON.stringify(v));`,
		"true\n")
}

func TestExports(t *testing.T) {
	src := `
export const answer = 42;
export function mul(a: number, b: number): number { return a * b; }
export default "main";
`
	p := parser.New(src)
	prog := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	in := interp.New(interp.WithOutput(&bytes.Buffer{}))
	if err := in.Run(prog); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := in.Exports["answer"].AsNumber(); got != 42 {
		t.Errorf("answer export = %v, want 42", got)
	}
	if in.Exports["$default"].AsString() != "main" {
		t.Errorf("default export = %v", in.Exports["$default"])
	}
	order := in.ExportsOrder()
	if len(order) != 3 || order[0] != "answer" || order[2] != "$default" {
		t.Errorf("export order = %v", order)
	}
}
