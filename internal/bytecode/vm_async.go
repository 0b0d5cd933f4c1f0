package bytecode

// vm_async.go implements C7's async/generator lowering using this host
// runtime's native coroutine primitive — goroutines — per the design note
// in §9 licensing exactly that substitution in place of an explicit
// state-machine/label-dispatch rewriter. A generator function's body runs
// on its own thread (its own operand stack and frame list) that parks on a
// channel at every OpYield/OpAwait and is resumed by a send from whichever
// goroutine is driving it (.next(), the for-of trampoline, or the promise
// microtask queue).

// coroutineMailbox is the rendezvous point between a suspended body thread
// and whatever resumed it: one value flows out (yielded/settled), one flows
// back in (the argument passed to .next()/.throw()/.return(), or nothing
// for a plain resume).
type coroutineMailbox struct {
	out chan coroutineSignal
	in  chan coroutineResume
}

type coroutineSignal struct {
	done  bool
	value Value
	err   *RuntimeError
}

type resumeKind byte

const (
	resumeNext resumeKind = iota
	resumeThrow
	resumeReturn
)

type coroutineResume struct {
	kind  resumeKind
	value Value
}

func newCoroutineMailbox() *coroutineMailbox {
	return &coroutineMailbox{
		out: make(chan coroutineSignal),
		in:  make(chan coroutineResume),
	}
}

// runAsGoroutineBody starts fn's body as a generator object (lazy) or an
// async function's eagerly-running body (returning a pending Promise
// immediately), per FunctionKind.
func (t *Thread) runAsGoroutineBody(fn *FunctionObject, f *frame) (Value, error) {
	switch fn.Kind {
	case FunctionGenerator, FunctionAsyncGenerator:
		return t.newGeneratorObject(fn, f), nil
	case FunctionAsync:
		return t.startAsyncFunction(fn, f), nil
	default:
		t.frames = append(t.frames, f)
		return t.execute()
	}
}

// newGeneratorObject builds the user-visible generator value: a plain
// object whose next/return/throw properties are native closures driving one
// shared mailbox. The body thread is not spawned until the first call.
func (t *Thread) newGeneratorObject(fn *FunctionObject, f *frame) Value {
	mb := newCoroutineMailbox()
	started := false
	finished := false
	vm := t.vm
	isAsync := fn.Kind == FunctionAsyncGenerator

	start := func() {
		started = true
		body := newThread(vm)
		body.frames = append(body.frames, f)
		body.mailbox = mb
		go func() {
			v, err := body.execute()
			sig := coroutineSignal{done: true, value: v}
			if err != nil {
				if re, ok := err.(*RuntimeError); ok {
					sig.err = re
				} else {
					sig.err = newRuntimeError("%s", err.Error())
				}
			}
			mb.out <- sig
		}()
	}

	drive := func(kind resumeKind, arg Value) (Value, error) {
		if finished {
			return iterResult(true, Undefined()), nil
		}
		if !started {
			switch kind {
			case resumeReturn:
				finished = true
				return iterResult(true, arg), nil
			case resumeThrow:
				finished = true
				return Undefined(), thrownError(arg)
			}
			start()
		} else {
			mb.in <- coroutineResume{kind: kind, value: arg}
		}
		sig := <-mb.out
		if sig.done || sig.err != nil {
			finished = true
		}
		if sig.err != nil {
			return Undefined(), sig.err
		}
		return iterResult(sig.done, sig.value), nil
	}

	// An async generator's driver wraps each result record in an
	// already-settled promise, so `gen.next().then(...)` and `for await`
	// both observe the async iterator protocol.
	wrap := func(v Value, err error) (Value, error) {
		if !isAsync || err != nil {
			return v, err
		}
		p := newPromiseHandle(vm)
		vm.resolvePromise(p, v)
		return PromiseValue(p), nil
	}

	obj := NewPlainObject()
	obj.Set("next", FunctionValue(&Callable{Name: "next", Native: func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		arg := Undefined()
		if len(args) > 0 {
			arg = args[0]
		}
		return wrap(drive(resumeNext, arg))
	}}))
	obj.Set("return", FunctionValue(&Callable{Name: "return", Native: func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		arg := Undefined()
		if len(args) > 0 {
			arg = args[0]
		}
		return wrap(drive(resumeReturn, arg))
	}}))
	obj.Set("throw", FunctionValue(&Callable{Name: "throw", Native: func(_ *VM, _ *Thread, _ Value, args []Value) (Value, error) {
		arg := Undefined()
		if len(args) > 0 {
			arg = args[0]
		}
		return wrap(drive(resumeThrow, arg))
	}}))
	return ObjectValue(obj)
}

// iterResult builds the iterator protocol's {value, done} record.
func iterResult(done bool, value Value) Value {
	obj := NewPlainObject()
	obj.Set("value", value)
	obj.Set("done", BoolValue(done))
	return ObjectValue(obj)
}

// startAsyncFunction runs fn's body on its own thread immediately,
// returning a Promise that settles when the body returns or throws. Awaits
// inside the body block that thread in blockOnPromise until the awaited
// promise settles (see vm_promise.go's settle path).
func (t *Thread) startAsyncFunction(fn *FunctionObject, f *frame) Value {
	p := newPromiseHandle(t.vm)
	body := newThread(t.vm)
	body.frames = append(body.frames, f)
	t.vm.asyncStarted()
	go func() {
		defer t.vm.asyncDone()
		v, err := body.execute()
		if err != nil {
			msg := Undefined()
			if re, ok := err.(*RuntimeError); ok && re.HasValue {
				msg = re.Thrown
			} else {
				msg = StringValue(err.Error())
			}
			t.vm.rejectPromise(p, msg)
			return
		}
		t.vm.resolvePromise(p, v)
	}()
	return PromiseValue(p)
}

// awaitValue implements OpAwait. A non-promise value resolves immediately
// (ToPromise-free fast path, matching `await 5` in JS). A promise blocks
// this thread until settled: on the body thread spawned by
// startAsyncFunction this is a real suspension (another goroutine — the
// promise's resolver — wakes it); on the main thread (top-level await) it
// synchronously drains the microtask queue since there is no outer event
// loop driving this program forward otherwise.
func (t *Thread) awaitValue(v Value) (Value, error) {
	if v.Type != ValuePromise {
		return v, nil
	}
	p := v.Data.(*PromiseHandle)
	return t.vm.blockOnPromise(p)
}
