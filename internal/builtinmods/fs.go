package builtinmods

import (
	"fmt"
	"os"

	"github.com/tscore-lang/tscore/internal/bytecode"
)

// hostError builds the HostError shape of §7: a RuntimeError whose thrown
// value carries a `code` field, so user try/catch observes err.code the
// way host-module failures surface in JS.
func hostError(code, format string, args ...interface{}) error {
	obj := bytecode.NewPlainObject()
	obj.Set("name", bytecode.StringValue("Error"))
	obj.Set("code", bytecode.StringValue(code))
	obj.Set("message", bytecode.StringValue(fmt.Sprintf(format, args...)))
	return bytecode.ThrownError(bytecode.ObjectValue(obj))
}

func codeForOSError(err error) string {
	switch {
	case os.IsNotExist(err):
		return "ENOENT"
	case os.IsPermission(err):
		return "EACCES"
	case os.IsExist(err):
		return "EEXIST"
	default:
		return "EIO"
	}
}

// fsModule implements the synchronous file-system call shapes plus the
// promise-returning readFile/writeFile pair (§5: async helpers return a
// promise handle without suspending the caller).
func fsModule(vm *bytecode.VM) bytecode.Value {
	ns := bytecode.NewPlainObject()
	ns.Set("readFileSync", native("readFileSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		path := bytecode.ToDisplayString(arg(args, 0))
		data, err := os.ReadFile(path)
		if err != nil {
			return bytecode.Undefined(), hostError(codeForOSError(err), "%s", err.Error())
		}
		if len(args) > 1 && !args[1].IsNullish() {
			// An encoding argument means a string result.
			return bytecode.StringValue(string(data)), nil
		}
		return bytecode.BufferValue(&bytecode.BufferInstance{Bytes: data}), nil
	}))
	ns.Set("writeFileSync", native("writeFileSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		path := bytecode.ToDisplayString(arg(args, 0))
		if err := os.WriteFile(path, valueBytes(arg(args, 1)), 0o644); err != nil {
			return bytecode.Undefined(), hostError(codeForOSError(err), "%s", err.Error())
		}
		return bytecode.Undefined(), nil
	}))
	ns.Set("existsSync", native("existsSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		_, err := os.Stat(bytecode.ToDisplayString(arg(args, 0)))
		return bytecode.BoolValue(err == nil), nil
	}))
	ns.Set("mkdirSync", native("mkdirSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		if err := os.MkdirAll(bytecode.ToDisplayString(arg(args, 0)), 0o755); err != nil {
			return bytecode.Undefined(), hostError(codeForOSError(err), "%s", err.Error())
		}
		return bytecode.Undefined(), nil
	}))
	ns.Set("unlinkSync", native("unlinkSync", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		if err := os.Remove(bytecode.ToDisplayString(arg(args, 0))); err != nil {
			return bytecode.Undefined(), hostError(codeForOSError(err), "%s", err.Error())
		}
		return bytecode.Undefined(), nil
	}))
	ns.Set("readFile", native("readFile", func(vm *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		p := vm.NewPromise()
		path := bytecode.ToDisplayString(arg(args, 0))
		wantString := len(args) > 1 && !args[1].IsNullish()
		done := vm.TrackAsync()
		go func() {
			defer done()
			data, err := os.ReadFile(path)
			if err != nil {
				vm.Reject(p, bytecode.ThrownValue(hostError(codeForOSError(err), "%s", err.Error())))
				return
			}
			if wantString {
				vm.Resolve(p, bytecode.StringValue(string(data)))
				return
			}
			vm.Resolve(p, bytecode.BufferValue(&bytecode.BufferInstance{Bytes: data}))
		}()
		return bytecode.PromiseValue(p), nil
	}))
	ns.Set("writeFile", native("writeFile", func(vm *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, args []bytecode.Value) (bytecode.Value, error) {
		p := vm.NewPromise()
		path := bytecode.ToDisplayString(arg(args, 0))
		data := valueBytes(arg(args, 1))
		done := vm.TrackAsync()
		go func() {
			defer done()
			if err := os.WriteFile(path, data, 0o644); err != nil {
				vm.Reject(p, bytecode.ThrownValue(hostError(codeForOSError(err), "%s", err.Error())))
				return
			}
			vm.Resolve(p, bytecode.Undefined())
		}()
		return bytecode.PromiseValue(p), nil
	}))
	return bytecode.ObjectValue(ns)
}
