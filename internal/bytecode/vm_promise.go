package bytecode

import (
	"sync"
	"sync/atomic"
)

// vm_promise.go implements the Promise value's settle/subscribe machinery
// and the microtask queue reactions are drained through. Settlement is
// protected by a mutex plus a condition-style channel rather than the
// goroutine-per-await model alone, since multiple .then() callers and the
// blocking top-level-await fallback all need to observe the same
// settlement.

var promiseIDs uint64
var promiseIDMu sync.Mutex

func nextPromiseID() uint64 {
	promiseIDMu.Lock()
	defer promiseIDMu.Unlock()
	promiseIDs++
	return promiseIDs
}

// promiseExtra holds one channel per goroutine blocked in blockOnPromise
// awaiting settlement; settlePromise closes each exactly once, on whichever
// of resolvePromise/rejectPromise settles the promise first.
type promiseExtra struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

var promiseExtras = struct {
	mu sync.Mutex
	m  map[*PromiseHandle]*promiseExtra
}{m: make(map[*PromiseHandle]*promiseExtra)}

func extraFor(p *PromiseHandle) *promiseExtra {
	promiseExtras.mu.Lock()
	defer promiseExtras.mu.Unlock()
	if e, ok := promiseExtras.m[p]; ok {
		return e
	}
	e := &promiseExtra{}
	promiseExtras.m[p] = e
	return e
}

func newPromiseHandle(vm *VM) *PromiseHandle {
	return &PromiseHandle{state: promisePending, id: nextPromiseID()}
}

// asyncStarted/asyncDone bracket every goroutine whose completion can still
// schedule microtasks, so runUntilQuiescent knows when the program is done.
func (vm *VM) asyncStarted() { atomic.AddInt32(&vm.pendingAsync, 1) }
func (vm *VM) asyncDone()    { atomic.AddInt32(&vm.pendingAsync, -1) }

func (vm *VM) resolvePromise(p *PromiseHandle, v Value) {
	if v.Type == ValuePromise {
		// Resolving with a thenable chains through it rather than nesting
		// promises (§8 Promise semantics).
		inner := v.Data.(*PromiseHandle)
		vm.asyncStarted()
		go func() {
			defer vm.asyncDone()
			res, err := vm.blockOnPromise(inner)
			if err != nil {
				if re, ok := err.(*RuntimeError); ok && re.HasValue {
					vm.rejectPromise(p, re.Thrown)
					return
				}
				vm.rejectPromise(p, StringValue(err.Error()))
				return
			}
			vm.resolvePromise(p, res)
		}()
		return
	}
	vm.settlePromise(p, promiseFulfilled, v)
}

func (vm *VM) rejectPromise(p *PromiseHandle, reason Value) {
	vm.settlePromise(p, promiseRejected, reason)
}

func (vm *VM) settlePromise(p *PromiseHandle, state promiseState, v Value) {
	e := extraFor(p)
	e.mu.Lock()
	if p.state != promisePending {
		e.mu.Unlock()
		return
	}
	p.state = state
	p.result = v
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
	for _, r := range p.reactions {
		vm.scheduleReaction(r, state, v)
	}
	p.reactions = nil
}

func (vm *VM) scheduleReaction(r promiseReaction, state promiseState, v Value) {
	vm.enqueueMicrotask(func() {
		var cb *Callable
		if state == promiseFulfilled {
			cb = r.onFulfilled
		} else {
			cb = r.onRejected
		}
		if cb == nil {
			// Passthrough .then(onlyOnFulfilled) on a rejection, or vice versa.
			if state == promiseFulfilled {
				vm.resolvePromise(r.result, v)
			} else {
				vm.rejectPromise(r.result, v)
			}
			return
		}
		t := newThread(vm)
		out, err := t.invokeCallable(cb, []Value{v}, Undefined())
		if err != nil {
			reason := Undefined()
			if re, ok := err.(*RuntimeError); ok && re.HasValue {
				reason = re.Thrown
			} else {
				reason = StringValue(err.Error())
			}
			vm.rejectPromise(r.result, reason)
			return
		}
		vm.resolvePromise(r.result, out)
	})
}

// Then implements Promise.prototype.then/.catch/.finally's shared core.
func (vm *VM) Then(p *PromiseHandle, onFulfilled, onRejected *Callable) Value {
	result := newPromiseHandle(vm)
	e := extraFor(p)
	e.mu.Lock()
	state, v := p.state, p.result
	if state == promisePending {
		p.reactions = append(p.reactions, promiseReaction{onFulfilled: onFulfilled, onRejected: onRejected, result: result})
		e.mu.Unlock()
		return PromiseValue(result)
	}
	e.mu.Unlock()
	vm.scheduleReaction(promiseReaction{onFulfilled: onFulfilled, onRejected: onRejected, result: result}, state, v)
	return PromiseValue(result)
}

// enqueueMicrotask schedules fn on the VM's microtask queue, or runs it
// inline when the queue's buffer is full.
func (vm *VM) enqueueMicrotask(fn func()) {
	select {
	case vm.microtasks <- fn:
	default:
		// Queue is momentarily full under pathological fan-out; run inline
		// rather than deadlock the scheduler.
		fn()
	}
}

// drainMicrotasksOnce runs at most one queued reaction, non-blockingly, and
// reports whether it ran one. Called by blockOnPromise while a thread waits on a
// promise with no other goroutine around to make progress (the top-level
// await fallback).
func (vm *VM) drainMicrotasksOnce() bool {
	select {
	case fn := <-vm.microtasks:
		fn()
		return true
	default:
		return false
	}
}

// blockOnPromise waits for p to settle, driving the microtask queue forward
// in the meantime so a single-threaded script with no external event loop
// still makes progress (top-level await, or await inside a generator thread
// with nothing else scheduled).
func (vm *VM) blockOnPromise(p *PromiseHandle) (Value, error) {
	e := extraFor(p)
	e.mu.Lock()
	if p.state != promisePending {
		state, v := p.state, p.result
		e.mu.Unlock()
		return finishAwait(state, v)
	}
	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()

	for {
		select {
		case <-ch:
			e.mu.Lock()
			state, v := p.state, p.result
			e.mu.Unlock()
			return finishAwait(state, v)
		default:
			if !vm.drainMicrotasksOnce() {
				<-ch
				e.mu.Lock()
				state, v := p.state, p.result
				e.mu.Unlock()
				return finishAwait(state, v)
			}
		}
	}
}

func finishAwait(state promiseState, v Value) (Value, error) {
	if state == promiseRejected {
		return Undefined(), thrownError(v)
	}
	return v, nil
}
