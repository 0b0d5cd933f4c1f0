package builtinmods

import (
	"os"
	"runtime"

	"github.com/tscore-lang/tscore/internal/bytecode"
)

func osModule(vm *bytecode.VM) bytecode.Value {
	ns := bytecode.NewPlainObject()
	ns.Set("platform", native("platform", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, _ []bytecode.Value) (bytecode.Value, error) {
		if runtime.GOOS == "windows" {
			return bytecode.StringValue("win32"), nil
		}
		return bytecode.StringValue(runtime.GOOS), nil
	}))
	ns.Set("arch", native("arch", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, _ []bytecode.Value) (bytecode.Value, error) {
		return bytecode.StringValue(runtime.GOARCH), nil
	}))
	ns.Set("tmpdir", native("tmpdir", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, _ []bytecode.Value) (bytecode.Value, error) {
		return bytecode.StringValue(os.TempDir()), nil
	}))
	ns.Set("homedir", native("homedir", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, _ []bytecode.Value) (bytecode.Value, error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return bytecode.Undefined(), hostError("ENOENT", "homedir: %s", err.Error())
		}
		return bytecode.StringValue(home), nil
	}))
	ns.Set("hostname", native("hostname", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, _ []bytecode.Value) (bytecode.Value, error) {
		name, err := os.Hostname()
		if err != nil {
			return bytecode.Undefined(), hostError("EIO", "hostname: %s", err.Error())
		}
		return bytecode.StringValue(name), nil
	}))
	ns.Set("cpus", native("cpus", func(_ *bytecode.VM, _ *bytecode.Thread, _ bytecode.Value, _ []bytecode.Value) (bytecode.Value, error) {
		n := runtime.NumCPU()
		out := make([]bytecode.Value, n)
		for i := range out {
			cpu := bytecode.NewPlainObject()
			cpu.Set("model", bytecode.StringValue("cpu"))
			out[i] = bytecode.ObjectValue(cpu)
		}
		return bytecode.ArrayValue(&bytecode.ArrayInstance{Elements: out}), nil
	}))
	ns.Set("EOL", bytecode.StringValue(eol()))
	return bytecode.ObjectValue(ns)
}

func eol() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}
